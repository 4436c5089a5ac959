package thresholds

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/config"
)

func TestBuild_NormalLocalAndCI(t *testing.T) {
	cfg := config.DefaultConfig().Thresholds

	local := Build(ProfileNormal, cfg, false)
	assert.Equal(t, []string{"count > 0"}, local["http_reqs"])
	assert.Equal(t, []string{"rate<0.10"}, local["http_req_failed"])
	assert.Equal(t, []string{"p(95)<500", "p(99)<1000"}, local["http_req_duration"])
	assert.Equal(t, []string{"p(95)<100"}, local["http_req_tls_handshaking"])
	assert.Equal(t, []string{"p(95)<500"}, local["http_req_waiting"])
	assert.Equal(t, []string{"rate>0.95"}, local["checks"])

	ci := Build(ProfileNormal, cfg, true)
	assert.Equal(t, []string{"rate<0.20"}, ci["http_req_failed"])
	assert.Equal(t, []string{"p(95)<1000", "p(99)<2000"}, ci["http_req_duration"])
	assert.Equal(t, []string{"p(95)<200"}, ci["http_req_tls_handshaking"])
	assert.Equal(t, []string{"p(95)<1000"}, ci["http_req_waiting"])
	assert.Equal(t, []string{"rate>0.85"}, ci["checks"])
}

func TestBuild_OtherProfiles(t *testing.T) {
	cfg := config.DefaultConfig().Thresholds

	stress := Build(ProfileStress, cfg, false)
	assert.Equal(t, []string{"rate<0.1"}, stress["http_req_failed"])
	assert.Equal(t, []string{"p(95)<1000", "p(99)<2000"}, stress["http_req_duration"])
	assert.Equal(t, []string{"rate>0.85"}, stress["checks"])

	stressCI := Build(ProfileStress, cfg, true)
	assert.Equal(t, []string{"rate<0.30"}, stressCI["http_req_failed"])
	assert.Equal(t, []string{"p(95)<3000", "p(99)<6000"}, stressCI["http_req_duration"])
	assert.Equal(t, []string{"rate>0.80"}, stressCI["checks"])

	spike := Build(ProfileSpike, cfg, false)
	assert.Equal(t, []string{"rate<0.15"}, spike["http_req_failed"])
	assert.Equal(t, []string{"p(95)<1000", "p(99)<2000"}, spike["http_req_duration"])
	assert.Equal(t, []string{"rate>0.80"}, spike["checks"])

	spikeCI := Build(ProfileSpike, cfg, true)
	assert.Equal(t, []string{"p(95)<2000", "p(99)<4000"}, spikeCI["http_req_duration"])
	assert.Equal(t, []string{"rate>0.75"}, spikeCI["checks"])

	smoke := Build(ProfileSmoke, cfg, false)
	assert.Equal(t, []string{"rate<0.2"}, smoke["http_req_failed"])
	assert.Equal(t, []string{"rate>0.8"}, smoke["checks"])
	assert.NotContains(t, smoke, "http_req_duration")
	assert.Equal(t, []string{"count > 0"}, smoke["http_reqs"])
}

func TestProfileFor(t *testing.T) {
	assert.Equal(t, ProfileStress, ProfileFor("stress"))
	assert.Equal(t, ProfileSpike, ProfileFor("spike"))
	assert.Equal(t, ProfileSmoke, ProfileFor("smoke"))
	assert.Equal(t, ProfileNormal, ProfileFor("load"))
	assert.Equal(t, ProfileNormal, ProfileFor("soak"))
	assert.Equal(t, ProfileNormal, ProfileFor(""))
}

func TestSet_JSON(t *testing.T) {
	set := Build(ProfileSmoke, config.DefaultConfig().Thresholds, false)
	data, err := set.JSON()
	require.NoError(t, err)

	var decoded map[string][]string
	require.NoError(t, sonic.Unmarshal(data, &decoded))
	assert.Equal(t, map[string][]string(set), decoded)
	assert.Less(t, strings.Index(string(data), "checks"), strings.Index(string(data), "http_reqs"))
}

func TestParse(t *testing.T) {
	tests := []struct {
		src    string
		agg    Aggregation
		p      float64
		op     string
		target float64
	}{
		{"p(95)<500", AggPercentile, 95, "<", 500},
		{"p(99.9) <= 1500.5", AggPercentile, 99.9, "<=", 1500.5},
		{"rate<0.10", AggRate, 0, "<", 0.10},
		{"rate>0.95", AggRate, 0, ">", 0.95},
		{"count > 0", AggCount, 0, ">", 0},
		{"avg<200", AggAvg, 0, "<", 200},
		{"med!=0", AggMed, 0, "!=", 0},
		{"max>=-1", AggMax, 0, ">=", -1},
		{"min==3", AggMin, 0, "==", 3},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expr, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.agg, expr.Agg)
			assert.Equal(t, tt.p, expr.Percentile)
			assert.Equal(t, tt.op, expr.Op)
			assert.Equal(t, tt.target, expr.Target)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, src := range []string{"", "p95<500", "rate", "rate<<1", "p(101)<1", "stddev<3", "rate<abc"} {
		_, err := Parse(src)
		assert.ErrorIs(t, err, ErrBadExpression, src)
	}
}

func TestEvaluate(t *testing.T) {
	input := `{"type":"Point","metric":"http_reqs","data":{"value":1}}
{"type":"Point","metric":"http_reqs","data":{"value":1}}
{"type":"Point","metric":"http_req_failed","data":{"value":0}}
{"type":"Point","metric":"http_req_failed","data":{"value":1,"tags":{"status":"500"}}}
{"type":"Point","metric":"http_req_duration","data":{"value":100}}
{"type":"Point","metric":"http_req_duration","data":{"value":700}}
{"type":"Point","metric":"checks","data":{"value":1,"tags":{"check":"ok"}}}
{"type":"Point","metric":"checks","data":{"value":1,"tags":{"check":"ok"}}}
{"type":"Point","metric":"checks","data":{"value":1,"tags":{"check":"ok"}}}
{"type":"Point","metric":"checks","data":{"value":0,"tags":{"check":"ok"}}}
`
	res, err := analysis.Analyze(strings.NewReader(input))
	require.NoError(t, err)

	outcomes, err := Evaluate(res, Set{
		"http_reqs":                {"count > 0"},
		"http_req_failed":          {"rate<0.6", "rate<0.5"},
		"http_req_duration":        {"p(95)<500", "avg<=400", "max<1000"},
		"checks":                   {"rate>0.7"},
		"http_req_tls_handshaking": {"p(95)<100"},
	})
	require.NoError(t, err)

	byExpr := map[string]analysis.Threshold{}
	for _, o := range outcomes {
		byExpr[o.Metric+" "+o.Expression] = o
		assert.Equal(t, analysis.ThresholdEvaluated, o.Source)
	}
	require.Len(t, byExpr, 8)

	assert.True(t, byExpr["http_reqs count > 0"].Met)
	assert.Equal(t, 2.0, *byExpr["http_reqs count > 0"].Observed)
	assert.True(t, byExpr["http_req_failed rate<0.6"].Met)
	assert.False(t, byExpr["http_req_failed rate<0.5"].Met)
	assert.False(t, byExpr["http_req_duration p(95)<500"].Met)
	assert.Equal(t, 700.0, *byExpr["http_req_duration p(95)<500"].Observed)
	assert.True(t, byExpr["http_req_duration avg<=400"].Met)
	assert.True(t, byExpr["http_req_duration max<1000"].Met)
	assert.True(t, byExpr["checks rate>0.7"].Met)
	assert.Equal(t, 0.75, *byExpr["checks rate>0.7"].Observed)

	missing := byExpr["http_req_tls_handshaking p(95)<100"]
	assert.True(t, missing.Missing)
	assert.False(t, missing.Met)
	assert.Nil(t, missing.Observed)

	assert.False(t, AllPassed(outcomes))
}

func TestEvaluate_BadExpression(t *testing.T) {
	_, err := Evaluate(analysis.NewResult(), Set{"http_reqs": {"count >> 0"}})
	assert.ErrorIs(t, err, ErrBadExpression)
}

func TestEvaluate_EmptyCountIsMissing(t *testing.T) {
	outcomes, err := Evaluate(analysis.NewResult(), Set{
		"http_reqs": {"count > 0"},
		"checks":    {"count > 0"},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.True(t, o.Missing, o.Metric)
		assert.False(t, o.Met, o.Metric)
		assert.Nil(t, o.Observed, o.Metric)
	}
}

func TestApply(t *testing.T) {
	res := analysis.NewResult()
	res.Metrics["http_reqs"] = []float64{1, 1, 1}

	ok, err := Apply(res, Set{"http_reqs": {"count > 0"}})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, res.Thresholds, 1)
	assert.True(t, res.ThresholdsPassed())

	ok, err = Apply(res, Set{"http_reqs": {"count > 5"}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, res.ThresholdsPassed())
}

// TestBuildParsesProperty checks that every generated threshold parses for any sane configuration.
func TestBuildParsesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := config.DefaultConfig().Thresholds
		cfg.P95 = rapid.Float64Range(1, 10000).Draw(t, "p95")
		cfg.P99 = rapid.Float64Range(1, 20000).Draw(t, "p99")
		cfg.StressErrorRate = rapid.Float64Range(0, 1).Draw(t, "stressErr")
		cfg.CheckSuccessRate = rapid.Float64Range(0, 1).Draw(t, "checkRate")
		profile := rapid.SampledFrom(Profiles).Draw(t, "profile")
		ci := rapid.Bool().Draw(t, "ci")

		for metric, exprs := range Build(profile, cfg, ci) {
			for _, src := range exprs {
				if _, err := Parse(src); err != nil {
					t.Fatalf("%s: %v", metric, err)
				}
			}
		}
	})
}
