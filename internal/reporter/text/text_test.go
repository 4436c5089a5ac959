package text

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/record"
)

func analyze(t *testing.T, input string) *analysis.Result {
	t.Helper()
	res, err := analysis.Analyze(strings.NewReader(input))
	require.NoError(t, err)
	return res
}

const mixedRun = `{"type":"Point","metric":"checks","data":{"value":1,"tags":{"check":"status is 200","group":"::login"}}}
{"type":"Point","metric":"checks","data":{"value":0,"tags":{"check":"status is 200","group":"::login"}}}
{"type":"Point","metric":"http_reqs","data":{"value":1,"tags":{"group":"::login"}}}
{"type":"Point","metric":"http_reqs","data":{"value":1,"tags":{"group":"::login"}}}
{"type":"Point","metric":"http_req_duration","data":{"value":100}}
{"type":"Point","metric":"http_req_duration","data":{"value":300}}
{"type":"Point","metric":"http_req_failed","data":{"value":0,"tags":{"status":"200"}}}
{"type":"Point","metric":"http_req_failed","data":{"value":1,"tags":{"status":"503"}}}
broken line
`

func TestNew(t *testing.T) {
	r := New(Options{})
	assert.Equal(t, "text", r.Name())
	assert.Equal(t, 80, r.opts.Width)

	r = New(Options{Width: -1, Source: "a.json"})
	assert.Equal(t, 80, r.opts.Width)
	assert.Equal(t, "a.json", r.opts.Source)
}

func TestRender_Sections(t *testing.T) {
	out := String(analyze(t, mixedRun))

	assert.Contains(t, out, "⚠️  status is 200")
	assert.Contains(t, out, "Passed: 1 | Failed: 1 | Rate: 50.00%")
	assert.Contains(t, out, "📊 TOTAL: 1/2 checks passed (50.00%)")
	assert.Contains(t, out, "📍 Scenario: ::login")
	assert.Contains(t, out, "✓ status is 200: 1 executions")
	assert.Contains(t, out, "↳ 2 requests")
	assert.Contains(t, out, "📊 http_req_duration")
	assert.Contains(t, out, "Mean: 200.00ms | Min: 100.00ms | Max: 300.00ms | P95: 300.00ms")
	assert.Contains(t, out, "🔴 Failed requests: 1/2 (50.00%)")
	assert.Contains(t, out, "🔥 Server errors (5xx):     1 (100.00%)")
	assert.Contains(t, out, "• 503: 1 (100.00%)")
	assert.Contains(t, out, "Adjusted failure rate (excluding expected 401): 1/2 (50.00%)")
	assert.Contains(t, out, "looks overloaded")
	assert.Contains(t, out, "1 server error(s) detected")
	assert.Contains(t, out, "Skipped 1 malformed line(s) out of 9")
	assert.Contains(t, out, "⚠️  SOME CHECKS FAILED")
	assert.NotContains(t, out, "THRESHOLDS")

	// sections appear in a fixed order
	order := []string{"CHECK SUMMARY", "TOTAL:", "CHECKS BY SCENARIO", "HTTP METRICS", "ERROR AND FAILURE ANALYSIS", "SOME CHECKS FAILED"}
	last := -1
	for _, s := range order {
		idx := strings.Index(out, s)
		require.Greater(t, idx, last, s)
		last = idx
	}
}

func TestRender_EmptyInputPrintsZeros(t *testing.T) {
	out := String(analyze(t, ""))

	assert.Contains(t, out, "📊 TOTAL: 0/0 checks passed (0.00%)")
	assert.Contains(t, out, "No HTTP requests recorded")
	assert.Contains(t, out, "✅ ALL CHECKS PASSED")
	assert.NotContains(t, out, "NaN")
	assert.NotContains(t, out, "Inf")
}

func TestRender_Advisories(t *testing.T) {
	build := func(failures []string, successes int) *analysis.Result {
		agg := analysis.NewAggregator()
		for _, status := range failures {
			tags := record.Tags{}
			if status != "" {
				tags[record.TagStatus] = status
			}
			agg.Add(record.Record{Type: record.TypePoint, Metric: record.MetricHTTPReqFailed,
				Data: record.Data{Value: record.Float(1), Tags: tags}})
		}
		for i := 0; i < successes; i++ {
			agg.Add(record.Record{Type: record.TypePoint, Metric: record.MetricHTTPReqFailed,
				Data: record.Data{Value: record.Float(0)}})
		}
		return agg.Result()
	}

	// 1 network failure out of 100: acceptable but network-dominant
	out := String(build([]string{""}, 99))
	assert.Contains(t, out, "within acceptable limits")
	assert.Contains(t, out, "Most failures are network errors")
	assert.NotContains(t, out, "server error(s) detected")

	// 6 client failures out of 100: moderate instability
	out = String(build([]string{"404", "404", "404", "404", "404", "404"}, 94))
	assert.Contains(t, out, "moderate instability")
	assert.NotContains(t, out, "Most failures are network errors")

	// 401s are excluded from the adjusted rate
	out = String(build([]string{"401", "401", "401", "401", "401", "401", "401", "401", "401", "401", "401"}, 89))
	assert.Contains(t, out, "Adjusted failure rate (excluding expected 401): 0/100 (0.00%)")
	assert.Contains(t, out, "within acceptable limits")
}

func TestRender_ThresholdsAndPassBanner(t *testing.T) {
	input := `{"type":"Point","metric":"checks","data":{"value":1,"tags":{"check":"ok"}}}
{"type":"ThresholdEvent","metric":"http_req_duration","data":{"name":"p(95)<500","met":true}}
`
	res := analyze(t, input)
	observed := 0.02
	res.Thresholds = append(res.Thresholds, analysis.Threshold{
		Metric: "http_req_failed", Expression: "rate<0.01", Observed: &observed,
		Source: analysis.ThresholdEvaluated,
	}, analysis.Threshold{
		Metric: "http_req_tls_handshaking", Expression: "p(95)<100", Missing: true,
		Source: analysis.ThresholdEvaluated,
	})

	out := String(res)
	assert.Contains(t, out, "🎚️  THRESHOLDS")
	assert.Contains(t, out, "✓ http_req_duration: p(95)<500")
	assert.Contains(t, out, "✗ http_req_failed: rate<0.01 (observed 0.0200)")
	assert.Contains(t, out, "✗ http_req_tls_handshaking: p(95)<100 (no data)")
	assert.Contains(t, out, "1/3 thresholds passed")
	assert.Contains(t, out, "✅ ALL CHECKS PASSED")
}

func TestReporter_WriteIsDeterministic(t *testing.T) {
	r := New(Options{Source: "test-results/results.json", Width: 40})

	var a, b bytes.Buffer
	require.NoError(t, r.Write(context.Background(), analyze(t, mixedRun), &a))
	require.NoError(t, r.Write(context.Background(), analyze(t, mixedRun), &b))

	assert.Equal(t, a.String(), b.String())
	assert.True(t, strings.HasPrefix(a.String(), "\n📂 Analyzing: test-results/results.json"))
	assert.Contains(t, a.String(), strings.Repeat("═", 40)+"\n")
	assert.NotContains(t, a.String(), strings.Repeat("═", 41))
}
