// Package html 把分析结果渲染为自包含的 HTML 仪表盘。
package html

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"time"

	"yqhp/perf-suite/internal/analysis"
)

// ErrNoScenarios 结果中没有任何场景，无法生成报告
var ErrNoScenarios = errors.New("no scenario data found")

//go:embed templates/*.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

// Options HTML 报告选项
type Options struct {
	// TestType smoke/load/stress/spike/soak/default
	TestType string
	// GeneratedAt 报告生成时间，相同结果和时间产生相同输出
	GeneratedAt time.Time
	// Detailed 为 true 时生成详细报告（含延迟直方图），否则生成汇总报告（含阈值和错误分析）
	Detailed bool
	// LatencyThresholds 指标名到 P95 阈值（毫秒），为 nil 时使用默认值
	LatencyThresholds map[string]float64
	// Title 页面标题
	Title string
}

// Render 渲染 HTML 报告。没有场景时返回 ErrNoScenarios，不写入任何内容。
func Render(w io.Writer, res *analysis.Result, opts Options) error {
	if len(res.ScenarioBreakdown()) == 0 {
		return ErrNoScenarios
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, buildView(res, opts)); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Reporter HTML 报告器
type Reporter struct {
	opts Options
}

// New 创建 HTML 报告器
func New(opts Options) *Reporter {
	return &Reporter{opts: opts}
}

// Name 返回报告器名称
func (r *Reporter) Name() string {
	if r.opts.Detailed {
		return "html-detailed"
	}
	return "html"
}

// Write 渲染报告到 w
func (r *Reporter) Write(_ context.Context, res *analysis.Result, w io.Writer) error {
	return Render(w, res, r.opts)
}
