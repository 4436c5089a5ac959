package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/history"
	"yqhp/perf-suite/internal/reporter/html"
)

const results = `{"type":"Metric","metric":"checks","data":{"name":"checks","type":"rate","contains":"default"}}
{"type":"Point","metric":"checks","data":{"value":1,"tags":{"check":"status 200","group":"::GET /usuarios - List Users"}}}
{"type":"Point","metric":"checks","data":{"value":0,"tags":{"check":"status 200","group":"::GET /usuarios - List Users"}}}
{"type":"Point","metric":"http_req_duration","data":{"value":100}}
{"type":"Point","metric":"http_req_duration","data":{"value":300}}
{"type":"Point","metric":"http_req_failed","data":{"value":1,"tags":{"status":"503"}}}
{"type":"Point","metric":"http_req_failed","data":{"value":0,"tags":{"status":"200"}}}
`

// run executes the root command with an isolated config and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CI_ENVIRONMENT", "")
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{
		"--config", filepath.Join(dir, "missing.json"),
		"--env-file", filepath.Join(dir, "missing.env"),
		"--quiet",
	}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func writeResults(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Perf Suite "+Version)
}

func TestAnalyze(t *testing.T) {
	input := writeResults(t, results)
	summary := filepath.Join(t.TempDir(), "out", "summary.json")

	out, err := run(t, "analyze", input, "--out", "json="+summary)
	require.NoError(t, err)
	assert.Contains(t, out, "Analyzing: "+input)
	assert.Contains(t, out, "status 200")

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	var doc struct {
		Source   string `json:"source"`
		Requests struct {
			Total int `json:"total"`
		} `json:"requests"`
	}
	require.NoError(t, sonic.Unmarshal(data, &doc))
	assert.Equal(t, input, doc.Source)
	assert.Equal(t, 2, doc.Requests.Total)
}

func TestAnalyze_InputMissing(t *testing.T) {
	_, err := run(t, "analyze", filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, analysis.ErrInputNotFound)
}

func TestAnalyze_BadTarget(t *testing.T) {
	input := writeResults(t, results)
	_, err := run(t, "analyze", input, "--out", "csv=out.csv")
	assert.Error(t, err)
}

func TestAnalyze_Thresholds(t *testing.T) {
	input := writeResults(t, results)

	out, err := run(t, "analyze", input, "--thresholds", "smoke")
	require.NoError(t, err)
	assert.Contains(t, out, "rate<0.2")

	_, err = run(t, "analyze", input, "--thresholds", "smoke", "--fail-on-thresholds")
	assert.ErrorIs(t, err, ErrThresholdsFailed)

	_, err = run(t, "analyze", input, "--thresholds", "extreme")
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	input := writeResults(t, results)
	output := filepath.Join(t.TempDir(), "nested", "report.html")

	out, err := run(t, "report", input, output)
	require.NoError(t, err)
	assert.Contains(t, out, "Report generated: "+output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))
}

func TestReport_NoScenarios(t *testing.T) {
	input := writeResults(t, `{"type":"Point","metric":"http_req_duration","data":{"value":100}}`)
	output := filepath.Join(t.TempDir(), "report.html")

	_, err := run(t, "report", input, output)
	assert.ErrorIs(t, err, html.ErrNoScenarios)
	assert.NoFileExists(t, output)
}

func TestDetailed(t *testing.T) {
	input := writeResults(t, results)
	output := filepath.Join(t.TempDir(), "report-detailed.html")

	out, err := run(t, "detailed", input, output, "stress")
	require.NoError(t, err)
	assert.Contains(t, out, "Stress Test")
	assert.Contains(t, out, "Detailed report generated: "+output)
	assert.FileExists(t, output)
}

func TestThresholds(t *testing.T) {
	out, err := run(t, "thresholds", "--profile", "stress")
	require.NoError(t, err)

	var set map[string][]string
	require.NoError(t, sonic.UnmarshalString(out, &set))
	assert.Equal(t, []string{"count > 0"}, set["http_reqs"])
	assert.Len(t, set["http_req_duration"], 2)

	ci, err := run(t, "thresholds", "--profile", "stress", "--ci")
	require.NoError(t, err)
	require.NoError(t, sonic.UnmarshalString(ci, &set))
	assert.Equal(t, []string{"rate<0.30"}, set["http_req_failed"])

	_, err = run(t, "thresholds", "--profile", "nope")
	assert.Error(t, err)
}

func TestProbe(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"unavailable"}`))
	}))
	defer api.Close()

	output := filepath.Join(t.TempDir(), "probe", "results.json")
	out, err := run(t, "probe", output, "--base-url", api.URL, "--analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "Results written: "+output)
	assert.Contains(t, out, "Analyzing: "+output)

	res, err := analysis.AnalyzeFile(output)
	require.NoError(t, err)
	assert.Positive(t, res.TotalRequests())
	assert.Equal(t, res.TotalRequests(), res.Errors.Server)
}

func TestHistory_Disabled(t *testing.T) {
	input := writeResults(t, results)
	t.Setenv("HISTORY_DSN", "")

	_, err := run(t, "history", "save", input)
	assert.ErrorIs(t, err, history.ErrDisabled)

	_, err = run(t, "history", "list")
	assert.ErrorIs(t, err, history.ErrDisabled)
}
