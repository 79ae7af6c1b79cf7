package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the gateway. It supports
// three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithPort(8080),
//	    WithAPIKey("secret"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Port      int    `json:"port" env:"PORT" default:"3000"`
	APIKey    string `json:"api_key" env:"API_KEY"`
	Namespace string `json:"namespace" env:"GATEWAY_NAMESPACE" default:"default"`

	HTTP      HTTPConfig      `json:"http"`
	Workflow  WorkflowConfig  `json:"workflow"`
	State     StateConfig     `json:"state"`
	Logging   LoggingConfig   `json:"logging"`
	Telemetry TelemetryConfig `json:"telemetry"`

	Development DevelopmentConfig `json:"development"`

	// Logger instance for configuration operations (excluded from JSON)
	logger Logger `json:"-"`
}

// HTTPConfig contains HTTP server configuration including timeouts, limits,
// and CORS settings.
type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"read_timeout" env:"GATEWAY_HTTP_READ_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"GATEWAY_HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"GATEWAY_HTTP_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"GATEWAY_HTTP_IDLE_TIMEOUT" default:"120s"`
	MaxHeaderBytes    int           `json:"max_header_bytes" env:"GATEWAY_HTTP_MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"GATEWAY_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	HealthCheckPath   string        `json:"health_check_path" env:"GATEWAY_HTTP_HEALTH_PATH" default:"/"`
	CORS              CORSConfig    `json:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing (CORS) configuration.
// Supports wildcard domains (e.g., *.example.com) and wildcard ports
// (e.g., http://localhost:*).
type CORSConfig struct {
	Enabled          bool     `json:"enabled" env:"GATEWAY_CORS_ENABLED" default:"false"`
	AllowedOrigins   []string `json:"allowed_origins" env:"GATEWAY_CORS_ORIGINS"`
	AllowedMethods   []string `json:"allowed_methods" env:"GATEWAY_CORS_METHODS" default:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `json:"allowed_headers" env:"GATEWAY_CORS_HEADERS" default:"Content-Type,Authorization"`
	ExposedHeaders   []string `json:"exposed_headers" env:"GATEWAY_CORS_EXPOSED_HEADERS"`
	AllowCredentials bool     `json:"allow_credentials" env:"GATEWAY_CORS_CREDENTIALS" default:"false"`
	MaxAge           int      `json:"max_age" env:"GATEWAY_CORS_MAX_AGE" default:"86400"`
}

// WorkflowConfig controls the workflow executor's admission and scheduling
// defaults (spec §4.5, §6.4).
type WorkflowConfig struct {
	MaxConcurrent     int           `json:"max_concurrent" env:"WORKFLOW_MAX_CONCURRENT" default:"5"`
	StepTimeout       time.Duration `json:"step_timeout" env:"WORKFLOW_STEP_TIMEOUT_MS" default:"120000ms"`
	TotalTimeout      time.Duration `json:"total_timeout" env:"WORKFLOW_TOTAL_TIMEOUT_MS" default:"300000ms"`
	ResultTTL         time.Duration `json:"result_ttl" env:"WORKFLOW_RESULT_TTL_SECONDS" default:"604800s"`
}

// StateConfig selects and configures the workflow state backend (spec §4.4).
type StateConfig struct {
	KVStoreURL string `json:"kv_store_url" env:"KV_STORE_URL"`
}

// LoggingConfig controls the ambient structured logger.
type LoggingConfig struct {
	Level      string `json:"level" env:"GOMIND_LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"GOMIND_LOG_FORMAT" default:"json"`
	Output     string `json:"output" env:"GOMIND_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" env:"GOMIND_LOG_TIME_FORMAT" default:"2006-01-02T15:04:05.000Z07:00"`
}

// TelemetryConfig controls optional OpenTelemetry export.
type TelemetryConfig struct {
	Endpoint string `json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// DevelopmentConfig contains settings for local development and testing.
// Enabled turns on request logging for every request. WithDevelopmentMode
// additionally switches to human-readable logs and debug logging; setting
// Enabled through GATEWAY_DEV_MODE does not change the log format or
// enable debug logging.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" env:"GATEWAY_DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" env:"GATEWAY_DEBUG" default:"false"`
}

// Option is a functional option for configuring the gateway. Options are
// applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults, matching
// spec §6.4's documented defaults exactly.
func DefaultConfig() *Config {
	return &Config{
		Port:      3000,
		Namespace: "default",
		HTTP: HTTPConfig{
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1048576,
			ShutdownTimeout:   10 * time.Second,
			HealthCheckPath:   "/",
			CORS: CORSConfig{
				Enabled:        false,
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
				MaxAge:         86400,
			},
		},
		Workflow: WorkflowConfig{
			MaxConcurrent: 5,
			StepTimeout:   120 * time.Second,
			TotalTimeout:  300 * time.Second,
			ResultTTL:     7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		},
	}
}

// NewConfig builds a Config from defaults, environment variables, and the
// supplied functional options, in that priority order, then validates it.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Development, "gateway")
		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}
		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv populates configuration fields from environment variables.
// A field is overwritten whenever its variable is set and non-empty,
// whatever value the field already holds; unset variables leave their
// fields untouched.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		} else {
			return fmt.Errorf("invalid PORT %q: %w", v, ErrInvalidConfiguration)
		}
	}

	if v := os.Getenv("API_KEY"); v != "" {
		c.APIKey = v
	}

	if v := os.Getenv("GATEWAY_NAMESPACE"); v != "" {
		c.Namespace = v
	}

	if v := os.Getenv("WORKFLOW_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workflow.MaxConcurrent = n
		} else {
			return fmt.Errorf("invalid WORKFLOW_MAX_CONCURRENT %q: %w", v, ErrInvalidConfiguration)
		}
	}

	if v := os.Getenv("WORKFLOW_STEP_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Workflow.StepTimeout = time.Duration(ms) * time.Millisecond
		} else {
			return fmt.Errorf("invalid WORKFLOW_STEP_TIMEOUT_MS %q: %w", v, ErrInvalidConfiguration)
		}
	}

	if v := os.Getenv("WORKFLOW_TOTAL_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Workflow.TotalTimeout = time.Duration(ms) * time.Millisecond
		} else {
			return fmt.Errorf("invalid WORKFLOW_TOTAL_TIMEOUT_MS %q: %w", v, ErrInvalidConfiguration)
		}
	}

	if v := os.Getenv("WORKFLOW_RESULT_TTL_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			c.Workflow.ResultTTL = time.Duration(s) * time.Second
		} else {
			return fmt.Errorf("invalid WORKFLOW_RESULT_TTL_SECONDS %q: %w", v, ErrInvalidConfiguration)
		}
	}

	if v := os.Getenv("KV_STORE_URL"); v != "" {
		c.State.KVStoreURL = v
	}

	if v := os.Getenv("GOMIND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GOMIND_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}

	if v := os.Getenv("GATEWAY_DEV_MODE"); v != "" {
		c.Development.Enabled = parseBool(v)
	}
	if v := os.Getenv("GATEWAY_DEBUG"); v != "" {
		c.Development.DebugLogging = parseBool(v)
	}

	if v := os.Getenv("GATEWAY_CORS_ENABLED"); v != "" {
		c.HTTP.CORS.Enabled = parseBool(v)
	}
	if v := os.Getenv("GATEWAY_CORS_ORIGINS"); v != "" {
		c.HTTP.CORS.AllowedOrigins = parseStringList(v)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file, overwriting
// every field the file sets. NewConfig does not call it, so whether file
// settings win over environment variables or functional options depends
// on when the caller invokes it.
func (c *Config) LoadFromFile(path string) error {
	if c.logger != nil {
		c.logger.Info("Loading configuration from file", map[string]interface{}{
			"file_path": path,
		})
	}

	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- path is validated above
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	if c.logger != nil {
		c.logger.Info("Configuration file loaded successfully", map[string]interface{}{
			"file_path": cleanPath,
			"extension": ext,
		})
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
// This is called automatically by NewConfig but can be called again after
// modifying configuration directly.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid port: %d", c.Port),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Workflow.MaxConcurrent < 1 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("workflow max concurrent must be positive, got %d", c.Workflow.MaxConcurrent),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Workflow.StepTimeout <= 0 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "workflow step timeout must be positive",
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Workflow.TotalTimeout <= 0 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "workflow total timeout must be positive",
			Err:     ErrInvalidConfiguration,
		}
	}

	return nil
}

// Helper functions

// parseStringList splits a comma-separated string into a slice of strings.
// Whitespace is trimmed from each element, and empty strings are filtered.
func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBool converts a string to a boolean value. Accepts "true", "1",
// "yes", "on" (case-insensitive) as true; everything else is false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithPort sets the HTTP listen port.
func WithPort(port int) Option {
	return func(c *Config) error {
		c.Port = port
		return nil
	}
}

// WithAPIKey sets the bearer token required on incoming requests. An empty
// key disables authentication entirely (spec §6.1).
func WithAPIKey(key string) Option {
	return func(c *Config) error {
		c.APIKey = key
		return nil
	}
}

// WithNamespace sets Config.Namespace. The telemetry resource's
// gateway.namespace attribute is read from GATEWAY_NAMESPACE directly,
// so this option does not change what is attached to metrics and traces.
func WithNamespace(namespace string) Option {
	return func(c *Config) error {
		c.Namespace = namespace
		return nil
	}
}

// WithWorkflowConcurrency sets the driver pool size.
func WithWorkflowConcurrency(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("workflow concurrency must be positive: %w", ErrInvalidConfiguration)
		}
		c.Workflow.MaxConcurrent = n
		return nil
	}
}

// WithWorkflowTimeouts sets the default per-step and total-workflow timeouts.
func WithWorkflowTimeouts(step, total time.Duration) Option {
	return func(c *Config) error {
		c.Workflow.StepTimeout = step
		c.Workflow.TotalTimeout = total
		return nil
	}
}

// WithResultTTL sets how long a completed workflow's state record survives.
func WithResultTTL(ttl time.Duration) Option {
	return func(c *Config) error {
		c.Workflow.ResultTTL = ttl
		return nil
	}
}

// WithKVStoreURL selects the external (Redis) state backend.
func WithKVStoreURL(url string) Option {
	return func(c *Config) error {
		c.State.KVStoreURL = url
		return nil
	}
}

// WithCORS enables CORS with the given allowed origins.
func WithCORS(origins []string, credentials bool) Option {
	return func(c *Config) error {
		c.HTTP.CORS.Enabled = true
		c.HTTP.CORS.AllowedOrigins = origins
		c.HTTP.CORS.AllowCredentials = credentials
		return nil
	}
}

// WithLogLevel sets the logging level. Only "debug" changes what is
// written: it enables Debug lines. Info, Warn and Error lines are written
// at every level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithDevelopmentMode enables development-friendly defaults: human-readable
// logs and debug-level logging.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.DebugLogging = true
			if c.Logging.Format == "json" {
				c.Logging.Format = "text"
			}
		}
		return nil
	}
}

// WithLogger overrides the configured logger instance directly, bypassing
// ProductionLogger construction. Primarily used in tests.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// Logger returns the configured logger, constructing the default
// ProductionLogger if NewConfig has not yet been called.
func (c *Config) Logger() Logger {
	if c.logger == nil {
		return NewProductionLogger(c.Logging, c.Development, "gateway")
	}
	return c.logger
}

// ============================================================================
// ProductionLogger Implementation - Layered Observability Architecture
// ============================================================================

// ProductionLogger provides layered observability for gateway operations:
// structured log lines, with an optional metrics-emission layer enabled
// once the telemetry package registers itself via SetMetricsRegistry.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer
	component   string

	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:          strings.ToLower(logging.Level),
		debug:          dev.DebugLogging || logging.Level == "debug",
		serviceName:    serviceName,
		format:         logging.Format,
		output:         output,
		metricsEnabled: false,
	}
}

// EnableMetrics is called by the telemetry package to enable the metrics
// emission layer once a MetricsRegistry has been registered.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

// WithComponent returns a logger tagging every line with component, per
// the naming convention documented on ComponentAwareLogger. The
// returned logger shares this one's output/level/metrics configuration.
func (p *ProductionLogger) WithComponent(component string) Logger {
	tagged := *p
	tagged.component = component
	return &tagged
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

// logEvent implements the three logging layers: structured output, request
// context correlation, and (when enabled) metrics emission.
func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"message":   msg,
		}

		if p.component != "" {
			logEntry["component"] = p.component
		}

		if ctx != nil {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}

		for k, v := range fields {
			logEntry[k] = v
		}

		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		component := p.component
		if component == "" {
			component = p.serviceName
		}

		traceInfo := ""
		if ctx != nil {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s] %s%s%s\n",
			timestamp, level, component, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, msg, fields, ctx)
	}
}

// emitFrameworkMetric emits a low-cardinality counter for this log event.
func (p *ProductionLogger) emitFrameworkMetric(level, msg string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{
		"level", level,
		"service", p.serviceName,
	}

	for k, v := range fields {
		switch k {
		case "operation", "status", "error_code", "category", "provider":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "gateway.log_events", 1.0, labels...)
	} else {
		emitMetric("gateway.log_events", 1.0, labels...)
	}
}

// Helper functions for weak coupling to the telemetry package.
func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
