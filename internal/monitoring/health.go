// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// HealthCheck is a named probe. A failing critical check makes the whole
// service unhealthy; other failures only degrade it.
type HealthCheck struct {
	Name      string
	Critical  bool
	Timeout   time.Duration
	CheckFunc func(ctx context.Context) HealthCheckResult
}

// CheckReport is one check's result in a health response.
type CheckReport struct {
	HealthCheckResult
	Critical bool          `json:"critical"`
	Duration time.Duration `json:"duration"`
}

// SystemHealth is the health endpoint body.
type SystemHealth struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckReport `json:"checks"`
}

// HealthManager runs registered checks on demand.
type HealthManager struct {
	mu      sync.RWMutex
	checks  map[string]*HealthCheck
	started time.Time
	version string
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checks:  make(map[string]*HealthCheck),
		started: time.Now(),
		version: version,
	}
}

// RegisterCheck registers a new health check
func (hm *HealthManager) RegisterCheck(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = 5 * time.Second
	}
	hm.mu.Lock()
	hm.checks[check.Name] = check
	hm.mu.Unlock()
}

// GetHealth runs every check and folds the results into one status.
func (hm *HealthManager) GetHealth(ctx context.Context) SystemHealth {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	checks := make([]*HealthCheck, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		checks = append(checks, hm.checks[name])
	}
	hm.mu.RUnlock()

	health := SystemHealth{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.started).Round(time.Second).String(),
		Version:   hm.version,
		Checks:    make(map[string]CheckReport, len(checks)),
	}
	for _, check := range checks {
		report := hm.runCheck(ctx, check)
		health.Checks[check.Name] = report
		switch report.Status {
		case HealthStatusHealthy:
		case HealthStatusUnhealthy:
			if check.Critical {
				health.Status = HealthStatusUnhealthy
			} else if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		default:
			if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		}
	}
	return health
}

func (hm *HealthManager) runCheck(ctx context.Context, check *HealthCheck) CheckReport {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	result := HealthCheckResult{Status: HealthStatusDegraded, Message: "no check function defined"}
	if check.CheckFunc != nil {
		result = check.CheckFunc(checkCtx)
	}
	return CheckReport{HealthCheckResult: result, Critical: check.Critical, Duration: time.Since(start)}
}

// HealthHandler serves the health report. Unhealthy answers 503.
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.GetHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(health)
	}
}

// GoroutineHealthCheck creates a goroutine count health check
func GoroutineHealthCheck(maxGoroutines int) *HealthCheck {
	return &HealthCheck{
		Name: "goroutines",
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			count := runtime.NumGoroutine()
			metadata := map[string]interface{}{
				"goroutine_count": count,
				"max_allowed":     maxGoroutines,
			}
			if count > maxGoroutines {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("High goroutine count: %d", count),
					Metadata: metadata,
				}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Metadata: metadata}
		},
	}
}
