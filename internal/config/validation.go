// internal/config/validation.go - configuration validation with detailed error messages
package config

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"

	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/utils"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

func (r *ValidationResult) addError(field, value, format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	})
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	result := c.ValidateWithDetails()
	if len(result.Errors) > 0 {
		return formatValidationError(result)
	}
	return nil
}

// ValidateWithDetails provides detailed validation results
func (c *Config) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	c.validateHTTP(result)
	c.validateBrowser(result)
	c.validatePlatforms(result)
	c.validateBrands(result)
	c.validateMerge(result)
	c.validateOutput(result)

	return result
}

func (c *Config) validateHTTP(result *ValidationResult) {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		result.addError("log_level", c.LogLevel, "Log level must be one of debug, info, warn, error")
	}
	if c.HTTP.Timeout < 0 {
		result.addError("http.timeout", c.HTTP.Timeout.String(), "Timeout cannot be negative")
	}
	if c.HTTP.RequestDelay < 0 {
		result.addError("http.request_delay", c.HTTP.RequestDelay.String(), "Request delay cannot be negative")
	}
	if c.HTTP.RequestDelay == 0 {
		result.Warnings = append(result.Warnings,
			"http.request_delay is zero; third-party locator APIs may rate limit")
	}
}

func (c *Config) validateBrowser(result *ValidationResult) {
	b := c.Browser
	if !b.Enabled {
		return
	}
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		result.addError("browser.viewport", fmt.Sprintf("%dx%d", b.ViewportWidth, b.ViewportHeight),
			"Viewport dimensions must be positive")
	}
	if b.PollInterval > b.WidgetTimeout {
		result.Warnings = append(result.Warnings,
			"browser.poll_interval exceeds browser.widget_timeout; the widget is polled once")
	}
	for i, sel := range b.CloseSelectors {
		if err := validateCSSSelector(sel); err != nil {
			result.addError(fmt.Sprintf("browser.close_selectors[%d]", i), sel, "Invalid CSS selector: %s", err)
		}
	}
	for i, sig := range b.WidgetSignals {
		if strings.HasPrefix(sig, "window.") {
			continue
		}
		if err := validateCSSSelector(sig); err != nil {
			result.addError(fmt.Sprintf("browser.widget_signals[%d]", i), sig, "Invalid CSS selector: %s", err)
		}
	}
}

func (c *Config) validatePlatforms(result *ValidationResult) {
	p := c.Platforms
	validateEndpoints(result, "platforms.storerocket.endpoints", p.StoreRocket.Endpoints)
	validateEndpoints(result, "platforms.storepoint.endpoints", p.StorePoint.Endpoints)
	validateEndpoints(result, "platforms.storemapper.endpoints", p.Storemapper.Endpoints)
	validateEndpoints(result, "platforms.stockist.endpoint", []string{p.Stockist.Endpoint})

	if p.Stockist.RadiusKM <= 0 {
		result.addError("platforms.stockist.radius_km", fmt.Sprint(p.Stockist.RadiusKM), "Search radius must be positive")
	}
	if p.Stockist.RegionDelay < 0 {
		result.addError("platforms.stockist.region_delay", p.Stockist.RegionDelay.String(), "Region delay cannot be negative")
	}
	seen := make(map[string]bool)
	for i, r := range p.Stockist.Regions {
		field := fmt.Sprintf("platforms.stockist.regions[%d]", i)
		if r.Name == "" {
			result.addError(field+".name", "", "Region name is required")
		} else if seen[r.Name] {
			result.addError(field+".name", r.Name, "Duplicate region name: %s", r.Name)
		}
		seen[r.Name] = true
		if r.Lat < -90 || r.Lat > 90 {
			result.addError(field+".lat", fmt.Sprint(r.Lat), "Latitude must be within [-90, 90]")
		}
		if r.Lon < -180 || r.Lon > 180 {
			result.addError(field+".lon", fmt.Sprint(r.Lon), "Longitude must be within [-180, 180]")
		}
	}
}

func validateEndpoints(result *ValidationResult, field string, endpoints []string) {
	for i, ep := range endpoints {
		f := fmt.Sprintf("%s[%d]", field, i)
		if !strings.Contains(ep, "{id}") {
			result.addError(f, ep, "Endpoint template must contain {id}")
			continue
		}
		if !utils.IsValidURL(strings.ReplaceAll(ep, "{id}", "x")) {
			result.addError(f, ep, "Endpoint must be an absolute http(s) URL")
		}
	}
}

func (c *Config) validateBrands(result *ValidationResult) {
	for stem, name := range c.Brands.Aliases {
		if strings.TrimSpace(name) == "" {
			result.addError("brands.aliases."+stem, "", "Alias display name cannot be empty")
		}
	}
	if err := validateTargets(c.Brands.Targets); err != nil {
		result.addError("brands.targets", "", "%s", err)
	}
}

func (c *Config) validateMerge(result *ValidationResult) {
	if t := c.Merge.SimilarityThreshold; t < 0 || t > 1 {
		result.addError("merge.similarity_threshold", fmt.Sprint(t), "Similarity threshold must be within [0, 1]")
	}
	if c.Merge.TopStores < 0 {
		result.addError("merge.top_stores", fmt.Sprint(c.Merge.TopStores), "Top stores cannot be negative")
	}
}

func (c *Config) validateOutput(result *ValidationResult) {
	validDrivers := []string{"sqlite3", "postgres", "mysql", "mongodb"}
	if !contains(validDrivers, c.Output.Database.Driver) {
		result.addError("output.database.driver", c.Output.Database.Driver,
			"Invalid database driver. Valid drivers: %s", strings.Join(validDrivers, ", "))
	}
	if c.Output.Database.BatchSize < 0 {
		result.addError("output.database.batch_size", fmt.Sprint(c.Output.Database.BatchSize), "Batch size cannot be negative")
	}
}

// validateTargets checks a batch brand list.
func validateTargets(targets []BrandTarget) error {
	var problems []string
	names := make(map[string]bool)
	for i, t := range targets {
		if strings.TrimSpace(t.Name) == "" {
			problems = append(problems, fmt.Sprintf("target %d: name is required", i))
		} else if names[t.Name] {
			problems = append(problems, fmt.Sprintf("target %d: duplicate brand %q", i, t.Name))
		}
		names[t.Name] = true
		if !utils.IsValidURL(t.URL) {
			problems = append(problems, fmt.Sprintf("target %d (%s): url must be an absolute http(s) URL", i, t.Name))
		}
		if (t.Platform == "") != (t.InstanceID == "") {
			problems = append(problems, fmt.Sprintf("target %d (%s): platform and instance_id must be set together", i, t.Name))
		}
	}
	if len(problems) > 0 {
		return apperrors.Newf(apperrors.KindConfig, "config.brands", "%s", strings.Join(problems, "; "))
	}
	return nil
}

// validateCSSSelector compiles a selector group the way goquery will.
func validateCSSSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return fmt.Errorf("selector cannot be empty")
	}
	_, err := cascadia.ParseGroup(selector)
	return err
}

func formatValidationError(result *ValidationResult) error {
	var errorMsg strings.Builder

	errorMsg.WriteString("Configuration validation failed:\n")

	for i, err := range result.Errors {
		errorMsg.WriteString(fmt.Sprintf("  %d. %s", i+1, err.Message))
		if err.Field != "" {
			errorMsg.WriteString(fmt.Sprintf(" (field: %s)", err.Field))
		}
		if err.Value != "" {
			errorMsg.WriteString(fmt.Sprintf(" (value: %s)", err.Value))
		}
		errorMsg.WriteString("\n")
	}

	return apperrors.New(apperrors.KindConfig, "config.validate", fmt.Errorf("%s", errorMsg.String()))
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
