package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const k6ConfigJSON = `{
	"testConfig": {
		"vus": {"value": 20, "description": "virtual users"},
		"duration": {"value": "2m"}
	},
	"thresholds": {
		"p95_threshold": {"value": 800},
		"stress_p99_threshold": {"value": 2500}
	},
	"errorRates": {
		"max_error_rate": {"value": 0.02}
	},
	"checkSuccessRates": {
		"smoke": {"value": 0.9}
	},
	"endpoints": {
		"users": "/users"
	},
	"delays": {
		"short": {"value": 50}
	},
	"api": {
		"timeout": 15000
	}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://serverest.dev", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.API.InsecureSkipTLSVerify)
	assert.Equal(t, "ServeRest Performance Tests", cfg.Project.Name)
	assert.Equal(t, 5, cfg.Test.VUs)
	assert.Equal(t, "30s", cfg.Test.Duration)
	assert.Equal(t, "10s", cfg.Test.RampUp)
	assert.Equal(t, 500.0, cfg.Thresholds.P95)
	assert.Equal(t, 1000.0, cfg.Thresholds.P99)
	assert.Equal(t, 1000.0, cfg.Thresholds.StressP95)
	assert.Equal(t, 2000.0, cfg.Thresholds.StressP99)
	assert.Equal(t, 0.05, cfg.Thresholds.MaxErrorRate)
	assert.Equal(t, 0.1, cfg.Thresholds.StressErrorRate)
	assert.Equal(t, 0.2, cfg.Thresholds.SmokeErrorRate)
	assert.Equal(t, 0.95, cfg.Thresholds.CheckSuccessRate)
	assert.Equal(t, 0.85, cfg.Thresholds.StressCheckSuccessRate)
	assert.Equal(t, 0.8, cfg.Thresholds.SmokeCheckSuccessRate)
	assert.Equal(t, "/usuarios", cfg.Endpoints.Users)
	assert.Equal(t, "/produtos", cfg.Endpoints.Products)
	assert.Equal(t, "/login", cfg.Endpoints.Login)
	assert.Equal(t, 100*time.Millisecond, cfg.Delays.ShortDuration())
	assert.Equal(t, time.Second, cfg.Delays.LongDuration())
	assert.Equal(t, "test-results/results.json", cfg.Report.Input)
	assert.False(t, cfg.CI)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "k6.config.json", k6ConfigJSON)

	cfg, err := NewLoader().WithEnv(nil).WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Test.VUs)
	assert.Equal(t, "2m", cfg.Test.Duration)
	assert.Equal(t, "10s", cfg.Test.RampUp)
	assert.Equal(t, 800.0, cfg.Thresholds.P95)
	assert.Equal(t, 1000.0, cfg.Thresholds.P99)
	assert.Equal(t, 2500.0, cfg.Thresholds.StressP99)
	assert.Equal(t, 0.02, cfg.Thresholds.MaxErrorRate)
	assert.Equal(t, 0.9, cfg.Thresholds.SmokeCheckSuccessRate)
	assert.Equal(t, "/users", cfg.Endpoints.Users)
	assert.Equal(t, "/produtos", cfg.Endpoints.Products)
	assert.Equal(t, 50, cfg.Delays.Short)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
}

func TestLoader_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "perf.yaml", `
api:
  baseUrl: http://localhost:3000
  timeout: 5s
report:
  testType: stress
history:
  driver: mysql
  dsn: user:pass@tcp(localhost:3306)/perf
`)

	cfg, err := NewLoader().WithEnv(nil).WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "stress", cfg.Report.TestType)
	assert.Equal(t, "mysql", cfg.History.Driver)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/perf", cfg.History.DSN)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "k6.config.json", k6ConfigJSON)

	cfg, err := NewLoader().
		WithConfigPath(path).
		WithEnv(map[string]string{
			"API_BASE_URL":             "http://127.0.0.1:3000",
			"API_TIMEOUT":              "45s",
			"K6_VUS":                   "50",
			"INSECURE_SKIP_TLS_VERIFY": "false",
			"K6_PROJECT_ID":            "1234",
			"CI_ENVIRONMENT":           "true",
			"LOG_LEVEL":                "",
		}).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:3000", cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, 50, cfg.Test.VUs)
	assert.False(t, cfg.API.InsecureSkipTLSVerify)
	assert.Equal(t, 1234, cfg.Project.ID)
	assert.True(t, cfg.CI)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoader_CIRequiresExactTrue(t *testing.T) {
	cfg, err := NewLoader().WithEnv(map[string]string{"CI_ENVIRONMENT": "1"}).Load()
	require.NoError(t, err)
	assert.False(t, cfg.CI)
}

func TestLoader_DotEnvFillsGaps(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", `
# comment
export API_BASE_URL="http://from-dotenv:3000"
K6_PROJECT_NAME='Dotenv Project'
LOG_LEVEL=debug
MALFORMED
`)

	cfg, err := NewLoader().
		WithEnvFile(envFile).
		WithEnv(map[string]string{"LOG_LEVEL": "warn"}).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-dotenv:3000", cfg.API.BaseURL)
	assert.Equal(t, "Dotenv Project", cfg.Project.Name)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_OverridesWin(t *testing.T) {
	cfg, err := NewLoader().
		WithEnv(map[string]string{"API_BASE_URL": "http://env"}).
		WithOverrides(map[string]string{
			"api.baseUrl":          "http://flag",
			"report.testType":      "spike",
			"testConfig.vus.value": "7",
		}).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "http://flag", cfg.API.BaseURL)
	assert.Equal(t, "spike", cfg.Report.TestType)
	assert.Equal(t, 7, cfg.Test.VUs)
}

func TestLoader_MissingFilesUseDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewLoader().
		WithEnv(nil).
		WithConfigPath(filepath.Join(dir, "nope.json")).
		WithEnvFile(filepath.Join(dir, ".env")).
		Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidValues(t *testing.T) {
	_, err := NewLoader().WithEnv(map[string]string{"K6_VUS": "many"}).Load()
	assert.Error(t, err)

	dir := t.TempDir()
	path := writeFile(t, dir, "broken.json", `{"testConfig": `)
	_, err = NewLoader().WithEnv(nil).WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"zero vus", func(c *Config) { c.Test.VUs = 0 }},
		{"error rate above one", func(c *Config) { c.Thresholds.MaxErrorRate = 1.5 }},
		{"negative check rate", func(c *Config) { c.Thresholds.CheckSuccessRate = -0.1 }},
		{"zero p95", func(c *Config) { c.Thresholds.P95 = 0 }},
		{"unknown driver", func(c *Config) { c.History.Driver = "sqlite" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "A=1\nB=\"two words\"\n# C=3\nexport D=4\nE='x'\n")

	env, err := LoadDotEnv(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two words", "D": "4", "E": "x"}, env)
}

func TestLoadDotEnv_InlineCommentAndEscapes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", `API_BASE_URL=https://staging.serverest.dev # staging
K6_PROJECT_NAME="Serve\"Rest"
`)

	env, err := LoadDotEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.serverest.dev", env["API_BASE_URL"])
	assert.Equal(t, `Serve"Rest`, env["K6_PROJECT_NAME"])

	cfg, err := NewLoader().WithEnv(map[string]string{}).WithEnvFile(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "https://staging.serverest.dev", cfg.API.BaseURL)
}

func TestLoadDotEnv_Missing(t *testing.T) {
	env, err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestLogConfig_Logger(t *testing.T) {
	lc := DefaultConfig().Log
	lc.Level = "debug"
	l := lc.Logger()
	assert.Equal(t, "debug", l.Level)
	assert.Equal(t, lc.FilePath, l.FilePath)
}
