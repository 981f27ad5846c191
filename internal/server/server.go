// internal/server/server.go

// Package server exposes a merged store directory over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/monitoring"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

const maxPageSize = 1000

// Server serves one directory file.
type Server struct {
	cfg       config.ServerConfig
	directory *Directory
	metrics   *monitoring.MetricsManager
	health    *monitoring.HealthManager
	logger    utils.Logger
	router    *mux.Router
	watcher   *config.FileWatcher
}

// New loads the directory at path and builds the router. metrics may be nil.
func New(cfg config.ServerConfig, path string, metrics *monitoring.MetricsManager, logger utils.Logger, version string) (*Server, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	s := &Server{
		cfg:       cfg,
		directory: NewDirectory(path),
		metrics:   metrics,
		health:    monitoring.NewHealthManager(version),
		logger:    logger.WithField("component", "server"),
	}
	if err := s.directory.Load(); err != nil {
		return nil, err
	}
	s.observeDirectory()

	s.health.RegisterCheck(&monitoring.HealthCheck{
		Name:     "directory",
		Critical: true,
		CheckFunc: func(context.Context) monitoring.HealthCheckResult {
			dir := s.directory.Current()
			if dir == nil {
				return monitoring.HealthCheckResult{Status: monitoring.HealthStatusUnhealthy, Message: "directory not loaded"}
			}
			return monitoring.HealthCheckResult{
				Status: monitoring.HealthStatusHealthy,
				Metadata: map[string]interface{}{
					"stores":    len(dir.Stores),
					"brands":    len(dir.BrandStats),
					"loaded_at": s.directory.LoadedAt(),
				},
			}
		},
	})
	s.health.RegisterCheck(monitoring.GoroutineHealthCheck(10000))

	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.rateLimitMiddleware, s.instrumentMiddleware)

	r.HandleFunc("/healthz", s.health.HealthHandler()).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.MetricsHandler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/stores", s.listStores).Methods(http.MethodGet)
	api.HandleFunc("/stores/{key}", s.getStore).Methods(http.MethodGet)
	api.HandleFunc("/brands", s.listBrands).Methods(http.MethodGet)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Directory returns the served directory holder.
func (s *Server) Directory() *Directory { return s.directory }

// Watch reloads the directory whenever its file changes. A file that fails to
// parse leaves the previous directory in place.
func (s *Server) Watch() error {
	fw, err := config.NewFileWatcher(s.directory.path, s.logger)
	if err != nil {
		return err
	}
	fw.OnChange(s.Reload)
	s.watcher = fw
	return nil
}

// Reload re-reads the directory file.
func (s *Server) Reload() {
	if err := s.directory.Load(); err != nil {
		s.logger.Errorf("directory reload failed, keeping previous: %v", err)
		return
	}
	s.observeDirectory()
	s.logger.WithField("stores", len(s.directory.Current().Stores)).Info("directory reloaded")
}

func (s *Server) observeDirectory() {
	if s.metrics != nil {
		s.metrics.ObserveDirectory(s.directory.Current())
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("listen", s.cfg.Listen).Info("directory API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.closeWatcher()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeWatcher()
	return err
}

func (s *Server) closeWatcher() {
	if s.watcher != nil {
		_ = s.watcher.Close()
		s.watcher = nil
	}
}

// StoreList is the body of the store list endpoint.
type StoreList struct {
	Total  int                           `json:"total"`
	Count  int                           `json:"count"`
	Offset int                           `json:"offset"`
	Stores []*types.CanonicalStoreRecord `json:"stores"`
}

func (s *Server) listStores(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := StoreFilter{
		Brand: strings.TrimSpace(q.Get("brand")),
		State: strings.TrimSpace(q.Get("state")),
		City:  strings.TrimSpace(q.Get("city")),
	}
	var err error
	if f.MinBrands, err = intParam(q.Get("min_brands"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "min_brands: %v", err)
		return
	}
	limit, err := intParam(q.Get("limit"), maxPageSize)
	if err != nil || limit == 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset: %v", err)
		return
	}

	matched := s.directory.Filter(f)
	start := min(offset, len(matched))
	end := start + min(limit, len(matched)-start)
	page := matched[start:end]
	writeJSON(w, http.StatusOK, StoreList{Total: len(matched), Count: len(page), Offset: offset, Stores: page})
}

func (s *Server) getStore(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	store, ok := s.directory.Lookup(key)
	if !ok {
		writeError(w, http.StatusNotFound, "store %q not found", key)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

// BrandEntry is one row of the brands endpoint.
type BrandEntry struct {
	Brand string `json:"brand"`
	types.BrandStats
	// Stores counts canonical stores currently carrying the brand.
	Stores int `json:"stores"`
}

func (s *Server) listBrands(w http.ResponseWriter, _ *http.Request) {
	dir := s.directory.Current()
	carried := make(map[string]int)
	for _, store := range dir.Stores {
		for _, b := range store.Brands {
			carried[b]++
		}
	}

	brands := make([]BrandEntry, 0, len(dir.BrandStats))
	for _, name := range dir.Brands() {
		brands = append(brands, BrandEntry{Brand: name, BrandStats: *dir.BrandStats[name], Stores: carried[name]})
	}
	sort.SliceStable(brands, func(i, j int) bool { return brands[i].Stores > brands[j].Stores })
	writeJSON(w, http.StatusOK, brands)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.cfg.RateLimit <= 0 {
		return next
	}
	limiter := utils.NewRateLimiter(s.cfg.RateLimit, int(math.Ceil(s.cfg.RateLimit*2)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, rec.status, elapsed)
		}
		s.logger.WithFields(map[string]interface{}{
			"method":   r.Method,
			"route":    route,
			"status":   rec.status,
			"duration": utils.FormatDuration(elapsed),
		}).Debug("request served")
	})
}
