package html

import (
	"fmt"
	"strings"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/record"
	"yqhp/perf-suite/pkg/stats"
)

// 颜色分级
const (
	ColorGood    = "#10b981"
	ColorWarn    = "#f59e0b"
	ColorBad     = "#ef4444"
	ColorNeutral = "#6366f1"
)

// PassRate 整体通过所需的 check 通过率（百分比）
const PassRate = 95.0

// HistogramBars 详细报告中延迟直方图的柱数
const HistogramBars = 20

// TestTypeLabels 测试类型显示名称
var TestTypeLabels = map[string]string{
	"smoke":   "🔬 Smoke Test",
	"load":    "📊 Load Test",
	"stress":  "💪 Stress Test",
	"spike":   "⚡ Spike Test",
	"soak":    "⏱️ Soak Test",
	"default": "🎯 Performance Test",
}

// DefaultLatencyThresholds 默认的 P95 阈值（毫秒）
func DefaultLatencyThresholds() map[string]float64 {
	return map[string]float64{
		record.MetricHTTPReqDuration: 500,
		record.MetricHTTPReqWaiting:  500,
	}
}

// TestTypeLabel 返回测试类型显示名称，未知类型使用 default
func TestTypeLabel(testType string) string {
	if label, ok := TestTypeLabels[strings.ToLower(testType)]; ok {
		return label
	}
	return TestTypeLabels["default"]
}

// RateColor 三档通过率颜色
func RateColor(rate float64) string {
	switch {
	case rate >= 95:
		return ColorGood
	case rate >= 80:
		return ColorWarn
	default:
		return ColorBad
	}
}

// LatencyColor P95 相对阈值的颜色。threshold <= 0 表示没有阈值。
func LatencyColor(p95, threshold float64) string {
	switch {
	case threshold <= 0:
		return ColorNeutral
	case p95 <= threshold:
		return ColorGood
	case p95 <= threshold*1.2:
		return ColorWarn
	default:
		return ColorBad
	}
}

// ProgressWidth 进度条宽度百分比，没有阈值时为 50
func ProgressWidth(p95, threshold float64) float64 {
	if threshold <= 0 {
		return 50
	}
	return min(p95/threshold*100, 100)
}

type tile struct {
	Label string
	Value string
	Sub   string
	Color string
}

type scenarioCheckView struct {
	Name   string
	Passed int
	Failed int
	Rate   string
	Color  string
}

type scenarioView struct {
	Name   string
	Rate   string
	Color  string
	Passed int
	Total  int
	Checks []scenarioCheckView
}

type checkView struct {
	Name   string
	Passed int
	Failed int
	Total  int
	Rate   string
	Color  string
}

type metricView struct {
	Name      string
	Unit      string
	Mean      string
	Min       string
	Max       string
	P95       string
	Color     string
	Threshold string
	Progress  string
}

type thresholdView struct {
	Metric     string
	Expression string
	Met        bool
	Detail     string
}

type bucketView struct {
	Label string
	Count int
	Share string
}

type statusView struct {
	Status string
	Count  int
}

type errorsView struct {
	Requests     int
	Failed       int
	FailureRate  string
	AdjustedRate string
	Buckets      []bucketView
	Statuses     []statusView
}

type barView struct {
	Range  string
	Count  int64
	Height string
}

type histogramView struct {
	Metric  string
	Samples int64
	StdDev  string
	Bars    []barView
}

type view struct {
	Title       string
	TestLabel   string
	GeneratedAt string
	Detailed    bool
	Passed      bool
	Tiles       []tile
	Scenarios   []scenarioView
	Checks      []checkView
	Metrics     []metricView
	Thresholds  []thresholdView
	ThresholdOK int
	Errors      *errorsView
	Histogram   *histogramView
	Skipped     int
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func buildView(res *analysis.Result, opts Options) *view {
	total := res.TotalChecks()
	scenarios := res.ScenarioBreakdown()

	v := &view{
		Title:       opts.Title,
		TestLabel:   TestTypeLabel(opts.TestType),
		GeneratedAt: opts.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
		Detailed:    opts.Detailed,
		Passed:      total.Rate() >= PassRate,
		Skipped:     res.Parse.Skipped,
	}
	if v.Title == "" {
		v.Title = "K6 Performance Report"
		if opts.Detailed {
			v.Title = "K6 Detailed Performance Report"
		}
	}

	rateColor := ColorBad
	if v.Passed {
		rateColor = ColorGood
	}
	meanDuration := "n/a"
	if s, ok := res.Summary(record.MetricHTTPReqDuration); ok {
		meanDuration = fmt.Sprintf("%.0fms", s.Mean)
	}
	v.Tiles = []tile{
		{Label: "📊 Check Rate", Value: pct(total.Rate()) + "%", Sub: fmt.Sprintf("✓ %d | ✗ %d", total.Passed, total.Failed), Color: rateColor},
		{Label: "✅ Total Checks", Value: fmt.Sprint(total.Total()), Sub: fmt.Sprintf("%d different checks", len(res.Checks)), Color: ColorGood},
		{Label: "🎯 Scenarios", Value: fmt.Sprint(len(scenarios)), Sub: "Endpoints and flows validated", Color: ColorNeutral},
		{Label: "⏱️ Mean Duration", Value: meanDuration, Sub: "Mean request latency"},
	}
	if !opts.Detailed {
		v.Tiles = append(v.Tiles,
			tile{Label: "🌐 HTTP Requests", Value: fmt.Sprint(res.TotalRequests()), Sub: fmt.Sprintf("%d failed", res.FailedRequests())},
			tile{Label: "📉 HTTP Failure Rate", Value: pct(res.FailureRate()) + "%", Sub: "Adjusted " + pct(res.AdjustedFailureRate()) + "%", Color: RateColor(100 - res.AdjustedFailureRate())},
		)
	}

	for _, sc := range scenarios {
		sv := scenarioView{
			Name:   sc.Display,
			Rate:   pct(sc.Rate()),
			Color:  RateColor(sc.Rate()),
			Passed: sc.Passed,
			Total:  sc.Total(),
		}
		for _, c := range sc.Checks {
			sv.Checks = append(sv.Checks, scenarioCheckView{
				Name:   c.Name,
				Passed: c.Passed,
				Failed: c.Failed,
				Rate:   pct(c.Rate()),
				Color:  RateColor(c.Rate()),
			})
		}
		v.Scenarios = append(v.Scenarios, sv)
	}

	for _, c := range res.RankedChecks() {
		v.Checks = append(v.Checks, checkView{
			Name:   c.Name,
			Passed: c.Passed,
			Failed: c.Failed,
			Total:  c.Total(),
			Rate:   pct(c.Rate()),
			Color:  RateColor(c.Rate()),
		})
	}

	limits := opts.LatencyThresholds
	if limits == nil {
		limits = DefaultLatencyThresholds()
	}
	for _, name := range analysis.HTTPMetrics {
		s, ok := res.Summary(name)
		if !ok {
			continue
		}
		limit := limits[name]
		mv := metricView{
			Name:     name,
			Unit:     metricUnit(name),
			Mean:     pct(s.Mean),
			Min:      pct(s.Min),
			Max:      pct(s.Max),
			P95:      pct(s.P95),
			Color:    LatencyColor(s.P95, limit),
			Progress: pct(ProgressWidth(s.P95, limit)),
		}
		if limit > 0 {
			mv.Threshold = fmt.Sprintf("< %gms", limit)
		}
		v.Metrics = append(v.Metrics, mv)
	}

	if opts.Detailed {
		v.Histogram = buildHistogram(res.Series(record.MetricHTTPReqDuration))
	} else {
		v.Thresholds, v.ThresholdOK = buildThresholds(res.Thresholds)
		v.Errors = buildErrors(res)
	}
	return v
}

func buildThresholds(ts []analysis.Threshold) ([]thresholdView, int) {
	out := make([]thresholdView, 0, len(ts))
	ok := 0
	for _, t := range ts {
		tv := thresholdView{Metric: t.Metric, Expression: t.Expression, Met: t.Met}
		if t.Met {
			ok++
		}
		switch {
		case t.Missing:
			tv.Detail = "no data"
		case t.Observed != nil:
			tv.Detail = fmt.Sprintf("observed %.4g", *t.Observed)
		}
		out = append(out, tv)
	}
	return out, ok
}

var bucketLabels = map[analysis.Bucket]string{
	analysis.BucketExpectedAuth: "🔐 Expected auth (401)",
	analysis.BucketServer:       "🔥 Server errors (5xx)",
	analysis.BucketClient:       "⚠️ Client errors (4xx)",
	analysis.BucketNetwork:      "🌐 Network errors",
}

func buildErrors(res *analysis.Result) *errorsView {
	if res.TotalRequests() == 0 {
		return nil
	}
	e := res.Errors
	ev := &errorsView{
		Requests:     res.TotalRequests(),
		Failed:       res.FailedRequests(),
		FailureRate:  pct(res.FailureRate()),
		AdjustedRate: pct(res.AdjustedFailureRate()),
	}
	for _, b := range analysis.Buckets {
		ev.Buckets = append(ev.Buckets, bucketView{Label: bucketLabels[b], Count: e.Count(b), Share: pct(e.Share(b))})
	}
	for _, sc := range e.StatusCounts() {
		ev.Statuses = append(ev.Statuses, statusView{Status: sc.Status, Count: sc.Count})
	}
	return ev
}

func buildHistogram(series []float64) *histogramView {
	if len(series) == 0 {
		return nil
	}
	d := stats.NewDistribution(series)
	bars := d.Bars(HistogramBars)
	var peak int64
	for _, b := range bars {
		peak = max(peak, b.Count)
	}

	hv := &histogramView{
		Metric:  record.MetricHTTPReqDuration,
		Samples: d.Count(),
		StdDev:  pct(d.StdDev()),
	}
	for _, b := range bars {
		hv.Bars = append(hv.Bars, barView{
			Range:  fmt.Sprintf("%.0f-%.0fms", b.From, b.To),
			Count:  b.Count,
			Height: pct(stats.Rate(float64(b.Count), float64(peak))),
		})
	}
	return hv
}

func metricUnit(name string) string {
	if strings.HasPrefix(name, record.MetricHTTPReqDuration) || name == record.MetricHTTPReqWaiting {
		return "ms"
	}
	return ""
}
