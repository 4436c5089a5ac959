// Package config resolves the suite configuration once at start-up.
//
// Precedence, lowest to highest: built-in defaults, the k6.config.json (or YAML)
// file, environment variables (including a .env file), command-line overrides.
package config

import (
	"errors"
	"fmt"
	"time"

	"yqhp/perf-suite/pkg/logger"
)

// ErrInvalidValue is returned by Validate for out-of-range settings.
var ErrInvalidValue = errors.New("invalid configuration value")

// Config is the fully resolved configuration.
type Config struct {
	// CI is true when CI_ENVIRONMENT is exactly "true".
	CI bool `path:"ci"`

	API        APIConfig
	Project    ProjectConfig
	Test       TestConfig
	Thresholds ThresholdConfig
	HTTPStatus HTTPStatusConfig
	Endpoints  EndpointConfig
	Delays     DelayConfig
	Report     ReportConfig
	Log        LogConfig
	History    HistoryConfig
	Server     ServerConfig
}

// APIConfig holds the target API settings.
type APIConfig struct {
	BaseURL               string        `path:"api.baseUrl" env:"API_BASE_URL"`
	Timeout               time.Duration `path:"api.timeout" env:"API_TIMEOUT"`
	InsecureSkipTLSVerify bool          `path:"api.insecureSkipTLSVerify" env:"INSECURE_SKIP_TLS_VERIFY"`
}

// ProjectConfig identifies the project in k6 Cloud.
type ProjectConfig struct {
	ID   int    `path:"cloud.projectId" env:"K6_PROJECT_ID"`
	Name string `path:"cloud.projectName" env:"K6_PROJECT_NAME"`
}

// TestConfig holds the load profile handed to k6. Durations stay in k6 syntax.
type TestConfig struct {
	VUs      int    `path:"testConfig.vus.value" env:"K6_VUS"`
	Duration string `path:"testConfig.duration.value" env:"K6_DURATION"`
	RampUp   string `path:"testConfig.rampUp.value" env:"K6_RAMP_UP"`
}

// ThresholdConfig holds latency ceilings (ms), error-rate ceilings and
// check-success floors (0..1).
type ThresholdConfig struct {
	P95       float64 `path:"thresholds.p95_threshold.value"`
	P99       float64 `path:"thresholds.p99_threshold.value"`
	StressP95 float64 `path:"thresholds.stress_p95_threshold.value"`
	StressP99 float64 `path:"thresholds.stress_p99_threshold.value"`

	MaxErrorRate        float64 `path:"errorRates.max_error_rate.value"`
	StressErrorRate     float64 `path:"errorRates.stress_error_rate.value"`
	SmokeErrorRate      float64 `path:"errorRates.smoke_error_rate.value"`
	MaxFailedChecksRate float64 `path:"errorRates.max_failed_checks_rate.value"`

	CheckSuccessRate       float64 `path:"checkSuccessRates.normal.value"`
	StressCheckSuccessRate float64 `path:"checkSuccessRates.stress.value"`
	SmokeCheckSuccessRate  float64 `path:"checkSuccessRates.smoke.value"`
}

// HTTPStatusConfig names the status codes the scenarios expect.
type HTTPStatusConfig struct {
	OK            int `path:"httpStatus.ok"`
	Created       int `path:"httpStatus.created"`
	BadRequest    int `path:"httpStatus.bad_request"`
	Unauthorized  int `path:"httpStatus.unauthorized"`
	Forbidden     int `path:"httpStatus.forbidden"`
	NotFound      int `path:"httpStatus.not_found"`
	Conflict      int `path:"httpStatus.conflict"`
	InternalError int `path:"httpStatus.internal_error"`
}

// EndpointConfig holds API paths.
type EndpointConfig struct {
	Users    string `path:"endpoints.users"`
	Products string `path:"endpoints.products"`
	Login    string `path:"endpoints.login"`
}

// DelayConfig holds think times in milliseconds.
type DelayConfig struct {
	Short  int `path:"delays.short.value"`
	Medium int `path:"delays.medium.value"`
	Long   int `path:"delays.long.value"`
}

// ShortDuration returns Short as a duration.
func (d DelayConfig) ShortDuration() time.Duration { return time.Duration(d.Short) * time.Millisecond }

// MediumDuration returns Medium as a duration.
func (d DelayConfig) MediumDuration() time.Duration { return time.Duration(d.Medium) * time.Millisecond }

// LongDuration returns Long as a duration.
func (d DelayConfig) LongDuration() time.Duration { return time.Duration(d.Long) * time.Millisecond }

// ReportConfig holds report inputs and outputs.
type ReportConfig struct {
	Input            string  `path:"report.input" env:"REPORT_INPUT"`
	HTMLOutput       string  `path:"report.html" env:"REPORT_HTML"`
	DetailedOutput   string  `path:"report.detailed" env:"REPORT_DETAILED_HTML"`
	TestType         string  `path:"report.testType" env:"TEST_TYPE"`
	LatencyThreshold float64 `path:"report.latencyThreshold" env:"REPORT_LATENCY_THRESHOLD"`
}

// LogConfig mirrors logger.Config with file paths.
type LogConfig struct {
	Level      string `path:"log.level" env:"LOG_LEVEL"`
	Format     string `path:"log.format" env:"LOG_FORMAT"`
	Output     string `path:"log.output" env:"LOG_OUTPUT"`
	FilePath   string `path:"log.file" env:"LOG_FILE"`
	MaxSize    int    `path:"log.maxSize"`
	MaxBackups int    `path:"log.maxBackups"`
	MaxAge     int    `path:"log.maxAge"`
}

// Logger converts to a logger configuration.
func (l LogConfig) Logger() *logger.Config {
	return &logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		FilePath:   l.FilePath,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
	}
}

// HistoryConfig selects the run-history database. An empty DSN disables it.
type HistoryConfig struct {
	Driver string `path:"history.driver" env:"HISTORY_DRIVER"`
	DSN    string `path:"history.dsn" env:"HISTORY_DSN"`
}

// ServerConfig configures the report server.
type ServerConfig struct {
	Addr string `path:"server.addr" env:"REPORT_SERVER_ADDR"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	lc := logger.DefaultConfig()
	return &Config{
		API: APIConfig{
			BaseURL:               "https://serverest.dev",
			Timeout:               30 * time.Second,
			InsecureSkipTLSVerify: true,
		},
		Project: ProjectConfig{
			Name: "ServeRest Performance Tests",
		},
		Test: TestConfig{
			VUs:      5,
			Duration: "30s",
			RampUp:   "10s",
		},
		Thresholds: ThresholdConfig{
			P95:                    500,
			P99:                    1000,
			StressP95:              1000,
			StressP99:              2000,
			MaxErrorRate:           0.05,
			StressErrorRate:        0.1,
			SmokeErrorRate:         0.2,
			MaxFailedChecksRate:    0.05,
			CheckSuccessRate:       0.95,
			StressCheckSuccessRate: 0.85,
			SmokeCheckSuccessRate:  0.8,
		},
		HTTPStatus: HTTPStatusConfig{
			OK:            200,
			Created:       201,
			BadRequest:    400,
			Unauthorized:  401,
			Forbidden:     403,
			NotFound:      404,
			Conflict:      409,
			InternalError: 500,
		},
		Endpoints: EndpointConfig{
			Users:    "/usuarios",
			Products: "/produtos",
			Login:    "/login",
		},
		Delays: DelayConfig{
			Short:  100,
			Medium: 500,
			Long:   1000,
		},
		Report: ReportConfig{
			Input:            "test-results/results.json",
			HTMLOutput:       "test-results/report.html",
			DetailedOutput:   "test-results/report-detailed.html",
			TestType:         "default",
			LatencyThreshold: 500,
		},
		Log: LogConfig{
			Level:      lc.Level,
			Format:     lc.Format,
			Output:     lc.Output,
			FilePath:   lc.FilePath,
			MaxSize:    lc.MaxSize,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAge,
		},
		History: HistoryConfig{
			Driver: "postgres",
		},
		Server: ServerConfig{
			Addr: ":8089",
		},
	}
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api base url is empty", ErrInvalidValue)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: api timeout must be positive, got %s", ErrInvalidValue, c.API.Timeout)
	}
	if c.Test.VUs <= 0 {
		return fmt.Errorf("%w: vus must be positive, got %d", ErrInvalidValue, c.Test.VUs)
	}

	rates := map[string]float64{
		"max_error_rate":         c.Thresholds.MaxErrorRate,
		"stress_error_rate":      c.Thresholds.StressErrorRate,
		"smoke_error_rate":       c.Thresholds.SmokeErrorRate,
		"max_failed_checks_rate": c.Thresholds.MaxFailedChecksRate,
		"check_success_rate":     c.Thresholds.CheckSuccessRate,
		"stress_check_rate":      c.Thresholds.StressCheckSuccessRate,
		"smoke_check_rate":       c.Thresholds.SmokeCheckSuccessRate,
	}
	for name, v := range rates {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidValue, name, v)
		}
	}

	for name, v := range map[string]float64{
		"p95":        c.Thresholds.P95,
		"p99":        c.Thresholds.P99,
		"stress_p95": c.Thresholds.StressP95,
		"stress_p99": c.Thresholds.StressP99,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidValue, name, v)
		}
	}

	switch c.History.Driver {
	case "", "postgres", "mysql":
	default:
		return fmt.Errorf("%w: unsupported history driver %q", ErrInvalidValue, c.History.Driver)
	}
	return nil
}
