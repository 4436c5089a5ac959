// Package text 把分析结果渲染为终端文本报告
package text

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/record"
	"yqhp/perf-suite/pkg/stats"
)

// 调整后失败率的提示阈值（百分比）
const (
	OverloadedRate  = 10.0
	UnstableRate    = 5.0
	NetworkDominant = 50.0
)

// Options 文本报告选项
type Options struct {
	// Source 被分析的文件，非空时打印在标题中
	Source string
	// Width 分隔线宽度
	Width int
}

// DefaultOptions 返回默认选项
func DefaultOptions() Options {
	return Options{Width: 80}
}

// Reporter 文本报告生成器
type Reporter struct {
	opts Options
}

// New 创建文本报告生成器
func New(opts Options) *Reporter {
	if opts.Width <= 0 {
		opts.Width = DefaultOptions().Width
	}
	return &Reporter{opts: opts}
}

// Name 返回报告器名称
func (r *Reporter) Name() string {
	return "text"
}

// Write 渲染报告并一次性写入 w
func (r *Reporter) Write(_ context.Context, res *analysis.Result, w io.Writer) error {
	p := &printer{width: r.opts.Width}
	if r.opts.Source != "" {
		p.linef("\n📂 Analyzing: %s", r.opts.Source)
	}
	p.header()
	p.checkSummary(res)
	p.groups(res)
	p.httpMetrics(res)
	p.errorAnalysis(res)
	p.thresholds(res)
	p.parseStats(res)
	p.footer(res)

	_, err := w.Write(p.buf.Bytes())
	return err
}

// Render 把 res 的报告写入 w
func Render(w io.Writer, res *analysis.Result, opts Options) error {
	return New(opts).Write(context.Background(), res, w)
}

// String 使用默认选项返回报告文本
func String(res *analysis.Result) string {
	var b strings.Builder
	_ = Render(&b, res, DefaultOptions())
	return b.String()
}

type printer struct {
	buf   bytes.Buffer
	width int
}

func (p *printer) line(s string) {
	p.buf.WriteString(s)
	p.buf.WriteByte('\n')
}

func (p *printer) linef(format string, args ...any) {
	fmt.Fprintf(&p.buf, format, args...)
	p.buf.WriteByte('\n')
}

func (p *printer) heavy() string { return strings.Repeat("═", p.width) }
func (p *printer) light() string { return strings.Repeat("─", p.width) }

func (p *printer) section(title string) {
	p.line("\n" + p.heavy())
	p.line(title + "\n")
}

func (p *printer) header() {
	p.line("\n" + p.heavy())
	p.line("📊 K6 DETAILED TEST REPORT")
	p.line(p.heavy())
}

func (p *printer) checkSummary(res *analysis.Result) {
	p.line("\n📈 CHECK SUMMARY\n")

	for _, name := range res.CheckNames() {
		c := res.Checks[name]
		mark := "✅"
		if c.Failed > 0 {
			mark = "⚠️ "
		}
		p.linef("%s %s", mark, name)
		p.linef("   Passed: %d | Failed: %d | Rate: %.2f%%\n", c.Passed, c.Failed, c.Rate())
	}

	total := res.TotalChecks()
	p.line(p.light())
	p.linef("📊 TOTAL: %d/%d checks passed (%.2f%%)", total.Passed, total.Total(), total.Rate())
}

func (p *printer) groups(res *analysis.Result) {
	p.section("🎯 CHECKS BY SCENARIO")

	names := res.GroupNames()
	if len(names) == 0 {
		p.line("   (no grouped checks recorded)")
		return
	}
	for _, name := range names {
		g := res.Groups[name]
		p.linef("\n📍 Scenario: %s", name)
		p.line(p.light())
		for _, check := range g.CheckNames() {
			p.linef("   ✓ %s: %s executions", check, formatCount(g.Checks[check]))
		}
		if g.Requests > 0 {
			p.linef("   ↳ %s requests", formatCount(g.Requests))
		}
	}
}

func (p *printer) httpMetrics(res *analysis.Result) {
	p.section("⏱️  HTTP METRICS")

	printed := 0
	for _, name := range analysis.HTTPMetrics {
		s, ok := res.Summary(name)
		if !ok {
			continue
		}
		unit := metricUnit(name)
		p.linef("📊 %s", name)
		p.linef("   Mean: %.2f%s | Min: %.2f%s | Max: %.2f%s | P95: %.2f%s",
			s.Mean, unit, s.Min, unit, s.Max, unit, s.P95, unit)
		p.line("")
		printed++
	}
	if printed == 0 {
		p.line("   (no HTTP samples recorded)")
	}
}

func (p *printer) errorAnalysis(res *analysis.Result) {
	p.section("⚠️  ERROR AND FAILURE ANALYSIS")

	requests := res.TotalRequests()
	if requests == 0 {
		p.line("ℹ️  No HTTP requests recorded")
		return
	}

	failed := res.FailedRequests()
	p.linef("🔴 Failed requests: %d/%d (%.2f%%)", failed, requests, res.FailureRate())

	e := res.Errors
	if e.Total == 0 {
		p.line("✅ No failed requests")
		return
	}

	p.line("\n   By category:")
	p.linef("   🔐 Expected auth (401):     %d (%.2f%%)", e.ExpectedAuth, e.Share(analysis.BucketExpectedAuth))
	p.linef("   🔥 Server errors (5xx):     %d (%.2f%%)", e.Server, e.Share(analysis.BucketServer))
	p.linef("   ⚠️  Client errors (4xx):     %d (%.2f%%)", e.Client, e.Share(analysis.BucketClient))
	p.linef("   🌐 Network errors:          %d (%.2f%%)", e.Network, e.Share(analysis.BucketNetwork))

	if counts := e.StatusCounts(); len(counts) > 0 {
		p.line("\n   By status code:")
		for _, sc := range counts {
			p.linef("   • %s: %d (%.2f%%)", sc.Status, sc.Count, stats.Rate(float64(sc.Count), float64(e.Total)))
		}
	}

	adjusted := res.AdjustedFailureRate()
	p.linef("\n📉 Adjusted failure rate (excluding expected 401): %d/%d (%.2f%%)",
		e.Total-e.ExpectedAuth, requests, adjusted)

	switch {
	case adjusted > OverloadedRate:
		p.line("🔴 Adjusted failure rate above 10%: the local environment looks overloaded. Lower the VUs or add think time.")
	case adjusted > UnstableRate:
		p.line("🟡 Adjusted failure rate above 5%: moderate instability under load.")
	default:
		p.line("🟢 Adjusted failure rate is within acceptable limits.")
	}
	if e.Share(analysis.BucketNetwork) > NetworkDominant {
		p.line("🌐 Most failures are network errors (timeouts or refused connections). Check connectivity and client limits.")
	}
	if e.Server > 0 {
		p.linef("🔥 %d server error(s) detected. Inspect the API logs.", e.Server)
	}
}

func (p *printer) thresholds(res *analysis.Result) {
	if len(res.Thresholds) == 0 {
		return
	}
	p.section("🎚️  THRESHOLDS")

	passed := 0
	for _, t := range res.Thresholds {
		mark := "✗"
		if t.Met {
			mark = "✓"
			passed++
		}
		detail := ""
		switch {
		case t.Missing:
			detail = " (no data)"
		case t.Observed != nil:
			detail = fmt.Sprintf(" (observed %s)", strconv.FormatFloat(*t.Observed, 'f', 4, 64))
		}
		p.linef("   %s %s: %s%s", mark, t.Metric, t.Expression, detail)
	}
	p.linef("\n   %d/%d thresholds passed", passed, len(res.Thresholds))
}

func (p *printer) parseStats(res *analysis.Result) {
	if res.Parse.Skipped == 0 && res.ValuelessChecks == 0 {
		return
	}
	p.line("")
	if res.Parse.Skipped > 0 {
		p.linef("ℹ️  Skipped %d malformed line(s) out of %d", res.Parse.Skipped, res.Parse.Lines)
	}
	if res.ValuelessChecks > 0 {
		p.linef("ℹ️  Ignored %d check sample(s) without a value", res.ValuelessChecks)
	}
}

func (p *printer) footer(res *analysis.Result) {
	p.line(p.heavy())
	if res.TotalChecks().Failed == 0 {
		p.line("✅ ALL CHECKS PASSED\n")
	} else {
		p.line("⚠️  SOME CHECKS FAILED\n")
	}
	p.line(p.heavy())
}

func metricUnit(name string) string {
	if strings.HasPrefix(name, record.MetricHTTPReqDuration) || name == record.MetricHTTPReqWaiting {
		return "ms"
	}
	return ""
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
