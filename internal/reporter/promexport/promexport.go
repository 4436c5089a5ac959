// Package promexport 把分析结果导出为 Prometheus 指标。
//
// 结果装入独立的 registry，既可以一次性写成文本格式，也可以交给 promhttp 提供服务。
package promexport

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"yqhp/perf-suite/internal/analysis"
)

// DefaultNamespace 导出指标的默认前缀
const DefaultNamespace = "k6"

// Options Prometheus 导出选项
type Options struct {
	// Namespace 指标名前缀，为空时使用 DefaultNamespace
	Namespace string
	// ConstLabels 附加到每个指标的常量标签，例如 test_type
	ConstLabels map[string]string
}

type collectors struct {
	checks        *prometheus.CounterVec
	checkRatio    *prometheus.GaugeVec
	scenarioRatio *prometheus.GaugeVec
	requests      prometheus.Counter
	failed        prometheus.Counter
	adjustedRatio prometheus.Gauge
	failures      *prometheus.CounterVec
	statuses      *prometheus.CounterVec
	metricStats   *prometheus.GaugeVec
	thresholds    *prometheus.GaugeVec
	skippedLines  prometheus.Counter
	passed        prometheus.Gauge
}

func newCollectors(opts Options) *collectors {
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	labels := prometheus.Labels(opts.ConstLabels)

	return &collectors{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "checks_total", ConstLabels: labels,
			Help: "Check samples by check name and result.",
		}, []string{"check", "result"}),
		checkRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "check_pass_ratio", ConstLabels: labels,
			Help: "Share of passing samples per check.",
		}, []string{"check"}),
		scenarioRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "scenario_pass_ratio", ConstLabels: labels,
			Help: "Share of passing check samples per scenario.",
		}, []string{"scenario"}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "http_requests_total", ConstLabels: labels,
			Help: "HTTP requests recorded by http_req_failed.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "http_requests_failed_total", ConstLabels: labels,
			Help: "HTTP requests flagged as failed.",
		}),
		adjustedRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "http_adjusted_failure_ratio", ConstLabels: labels,
			Help: "Failure ratio excluding expected 401 responses.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "http_failures_total", ConstLabels: labels,
			Help: "Failed requests by error bucket.",
		}, []string{"bucket"}),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "http_failures_by_status_total", ConstLabels: labels,
			Help: "Failed requests by status tag.",
		}, []string{"status"}),
		metricStats: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "metric_value", ConstLabels: labels,
			Help: "Summary statistics of each metric series.",
		}, []string{"metric", "stat"}),
		thresholds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "threshold_met", ConstLabels: labels,
			Help: "1 when the threshold expression holds, 0 otherwise.",
		}, []string{"metric", "expression"}),
		skippedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "parse_skipped_lines_total", ConstLabels: labels,
			Help: "Input lines that could not be decoded.",
		}),
		passed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "run_passed", ConstLabels: labels,
			Help: "1 when every check and threshold passed.",
		}),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.checks, c.checkRatio, c.scenarioRatio, c.requests, c.failed, c.adjustedRatio,
		c.failures, c.statuses, c.metricStats, c.thresholds, c.skippedLines, c.passed,
	}
}

func (c *collectors) load(res *analysis.Result) {
	for _, name := range res.CheckNames() {
		check := res.Checks[name]
		c.checks.With(prometheus.Labels{"check": name, "result": "passed"}).Add(float64(check.Passed))
		c.checks.With(prometheus.Labels{"check": name, "result": "failed"}).Add(float64(check.Failed))
		c.checkRatio.WithLabelValues(name).Set(check.Rate() / 100)
	}
	for _, sc := range res.ScenarioBreakdown() {
		c.scenarioRatio.WithLabelValues(sc.Display).Set(sc.Rate() / 100)
	}

	c.requests.Add(float64(res.TotalRequests()))
	c.failed.Add(float64(res.FailedRequests()))
	c.adjustedRatio.Set(res.AdjustedFailureRate() / 100)
	for _, b := range analysis.Buckets {
		c.failures.WithLabelValues(string(b)).Add(float64(res.Errors.Count(b)))
	}
	for _, sc := range res.Errors.StatusCounts() {
		c.statuses.WithLabelValues(sc.Status).Add(float64(sc.Count))
	}

	for _, name := range res.MetricNames() {
		s, ok := res.Summary(name)
		if !ok {
			continue
		}
		for stat, v := range map[string]float64{
			"count": float64(s.Count), "avg": s.Mean, "min": s.Min, "max": s.Max,
			"med": s.Med, "p90": s.P90, "p95": s.P95, "p99": s.P99,
		} {
			c.metricStats.WithLabelValues(name, stat).Set(v)
		}
	}

	for _, t := range res.Thresholds {
		v := 0.0
		if t.Met {
			v = 1
		}
		c.thresholds.WithLabelValues(t.Metric, t.Expression).Set(v)
	}

	c.skippedLines.Add(float64(res.Parse.Skipped))
	if res.TotalChecks().Failed == 0 && res.ThresholdsPassed() {
		c.passed.Set(1)
	}
}

// NewRegistry 创建包含 res 指标的 registry
func NewRegistry(res *analysis.Result, opts Options) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	c := newCollectors(opts)
	for _, collector := range c.all() {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	c.load(res)
	return reg, nil
}

// WriteText 以文本格式写出 g 收集到的所有指标族
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Reporter Prometheus 文本格式报告器
type Reporter struct {
	opts Options
}

// New 创建 Prometheus 报告器
func New(opts Options) *Reporter {
	return &Reporter{opts: opts}
}

// Name 返回报告器名称
func (r *Reporter) Name() string {
	return "prometheus"
}

// Write 把 res 编码写入 w
func (r *Reporter) Write(_ context.Context, res *analysis.Result, w io.Writer) error {
	reg, err := NewRegistry(res, r.opts)
	if err != nil {
		return err
	}
	return WriteText(w, reg)
}
