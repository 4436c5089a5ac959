// Package jsonexport 输出分析结果的机器可读摘要
package jsonexport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/record"
	"yqhp/perf-suite/pkg/stats"
)

// HistogramBars 每个指标分布导出的桶数
const HistogramBars = 20

// Options JSON 导出选项
type Options struct {
	// Source 被分析的输入文件，写入文档
	Source string
	// GeneratedAt 文档生成时间，零值表示 time.Now
	GeneratedAt time.Time
	// Pretty 缩进输出
	Pretty bool
}

// Document 导出的摘要文档
type Document struct {
	GeneratedAt  time.Time                      `json:"generated_at"`
	Source       string                         `json:"source,omitempty"`
	Passed       bool                           `json:"passed"`
	TotalChecks  analysis.PassFail              `json:"total_checks"`
	CheckRate    float64                        `json:"check_rate"`
	Checks       []*analysis.CheckStat          `json:"checks"`
	Groups       []*analysis.GroupStat          `json:"groups"`
	Scenarios    []analysis.ScenarioStat        `json:"scenarios"`
	Metrics      map[string]Metric              `json:"metrics"`
	Requests     Requests                       `json:"requests"`
	Errors       analysis.ErrorClassification   `json:"errors"`
	Thresholds   []analysis.Threshold           `json:"thresholds"`
	Declarations map[string]analysis.MetricDecl `json:"declarations,omitempty"`
	Parse        Parse                          `json:"parse"`
}

// Metric 单个指标序列的摘要
type Metric struct {
	stats.Summary
	StdDev       float64     `json:"stddev"`
	Distribution []stats.Bar `json:"distribution,omitempty"`
}

// Requests HTTP 请求结果汇总
type Requests struct {
	Total               int     `json:"total"`
	Failed              int     `json:"failed"`
	FailureRate         float64 `json:"failure_rate"`
	AdjustedFailureRate float64 `json:"adjusted_failure_rate"`
}

// Parse 输入解析统计
type Parse struct {
	Lines           int            `json:"lines"`
	Blank           int            `json:"blank"`
	Skipped         int            `json:"skipped"`
	Records         int            `json:"records"`
	ByType          map[string]int `json:"by_type"`
	ValuelessChecks int            `json:"valueless_checks"`
}

// Build 把 res 转换为 Document
func Build(res *analysis.Result, opts Options) *Document {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	total := res.TotalChecks()

	doc := &Document{
		GeneratedAt:  opts.GeneratedAt.UTC(),
		Source:       opts.Source,
		Passed:       total.Failed == 0 && res.ThresholdsPassed(),
		TotalChecks:  total,
		CheckRate:    total.Rate(),
		Checks:       make([]*analysis.CheckStat, 0, len(res.Checks)),
		Groups:       make([]*analysis.GroupStat, 0, len(res.Groups)),
		Scenarios:    res.ScenarioBreakdown(),
		Metrics:      make(map[string]Metric, len(res.Metrics)),
		Errors:       res.Errors,
		Thresholds:   res.Thresholds,
		Declarations: res.Declarations,
		Requests: Requests{
			Total:               res.TotalRequests(),
			Failed:              res.FailedRequests(),
			FailureRate:         res.FailureRate(),
			AdjustedFailureRate: res.AdjustedFailureRate(),
		},
		Parse: Parse{
			Lines:           res.Parse.Lines,
			Blank:           res.Parse.Blank,
			Skipped:         res.Parse.Skipped,
			Records:         res.Parse.Records,
			ByType:          make(map[string]int, len(res.Parse.ByType)),
			ValuelessChecks: res.ValuelessChecks,
		},
	}
	if doc.Thresholds == nil {
		doc.Thresholds = []analysis.Threshold{}
	}

	for _, name := range res.CheckNames() {
		doc.Checks = append(doc.Checks, res.Checks[name])
	}
	for _, name := range res.GroupNames() {
		doc.Groups = append(doc.Groups, res.Groups[name])
	}
	for t, n := range res.Parse.ByType {
		doc.Parse.ByType[string(t)] = n
	}

	for _, name := range res.MetricNames() {
		series := res.Series(name)
		summary, ok := stats.Summarize(series)
		if !ok {
			continue
		}
		m := Metric{Summary: summary}
		if isTiming(name) {
			d := stats.NewDistribution(series)
			m.StdDev = d.StdDev()
			m.Distribution = d.Bars(HistogramBars)
		}
		doc.Metrics[name] = m
	}
	return doc
}

// Marshal 编码文档，map 键排序以保证输出稳定
func Marshal(doc *Document, pretty bool) ([]byte, error) {
	if pretty {
		return sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	}
	return sonic.ConfigStd.Marshal(doc)
}

// Reporter JSON 报告器
type Reporter struct {
	opts Options
}

// New 创建 JSON 报告器
func New(opts Options) *Reporter {
	return &Reporter{opts: opts}
}

// Name 返回报告器名称
func (r *Reporter) Name() string {
	return "json"
}

// Write 编码 res 写入 w，末尾带换行
func (r *Reporter) Write(_ context.Context, res *analysis.Result, w io.Writer) error {
	data, err := Marshal(Build(res, r.opts), r.opts.Pretty)
	if err != nil {
		return fmt.Errorf("marshal json report: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func isTiming(name string) bool {
	switch name {
	case record.MetricHTTPReqDuration, record.MetricHTTPReqWaiting,
		"http_req_blocked", "http_req_connecting", "http_req_tls_handshaking",
		"http_req_sending", "http_req_receiving", "iteration_duration":
		return true
	}
	return strings.HasPrefix(name, record.MetricHTTPReqDuration+"{")
}
