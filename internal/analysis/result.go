// Package analysis 把 k6 事件记录聚合为报告共用的分析结果。
package analysis

import (
	"slices"
	"strings"

	"github.com/duke-git/lancet/v2/maputil"

	"yqhp/perf-suite/internal/record"
	"yqhp/perf-suite/pkg/stats"
)

// DefaultName 缺少 group/scenario 标签时使用的名称
const DefaultName = "default"

// HTTPMetrics 文本和 HTML 报告中展示的 HTTP 指标
var HTTPMetrics = []string{
	record.MetricHTTPReqs,
	record.MetricHTTPReqDuration,
	record.MetricHTTPReqFailed,
	record.MetricHTTPReqWaiting,
	"http_req_duration{expected_response:true}",
}

// PassFail 通过/失败计数
type PassFail struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Total 总数
func (p PassFail) Total() int {
	return p.Passed + p.Failed
}

// Rate 通过率（百分比），总数为 0 时返回 0
func (p PassFail) Rate() float64 {
	return stats.Rate(float64(p.Passed), float64(p.Total()))
}

func (p *PassFail) add(passed bool) {
	if passed {
		p.Passed++
	} else {
		p.Failed++
	}
}

// CheckStat 单个 check 的统计
type CheckStat struct {
	Name string `json:"name"`
	PassFail
	Groups map[string]*PassFail `json:"groups"`
}

// GroupNames 返回排序后的分组名
func (c *CheckStat) GroupNames() []string {
	names := maputil.Keys(c.Groups)
	slices.Sort(names)
	return names
}

// GroupStat 单个分组的统计。Checks 是 check 值的累加和，不区分通过/失败。
type GroupStat struct {
	Name       string             `json:"name"`
	Requests   float64            `json:"requests"`
	Checks     map[string]float64 `json:"checks"`
	checkOrder []string
}

// CheckNames 按首次出现顺序返回 check 名称
func (g *GroupStat) CheckNames() []string {
	return slices.Clone(g.checkOrder)
}

// ThresholdSource 阈值结果来源
type ThresholdSource string

const (
	// ThresholdFromEvent 来自 k6 的 ThresholdEvent 记录
	ThresholdFromEvent ThresholdSource = "event"
	// ThresholdEvaluated 由本工具根据序列计算
	ThresholdEvaluated ThresholdSource = "evaluated"
)

// Threshold 一条阈值判定结果
type Threshold struct {
	Metric     string          `json:"metric"`
	Expression string          `json:"expression"`
	Met        bool            `json:"met"`
	Observed   *float64        `json:"observed,omitempty"`
	Missing    bool            `json:"missing,omitempty"`
	Source     ThresholdSource `json:"source"`
}

// MetricDecl k6 的指标声明
type MetricDecl struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Contains   string   `json:"contains,omitempty"`
	Thresholds []string `json:"thresholds,omitempty"`
}

// Result 一次分析的完整结果，由文本、HTML 以及导出器共同使用。
type Result struct {
	Checks          map[string]*CheckStat
	Groups          map[string]*GroupStat
	Metrics         map[string][]float64
	Scenarios       []string
	Errors          ErrorClassification
	Thresholds      []Threshold
	Declarations    map[string]MetricDecl
	Parse           record.ScanStats
	ValuelessChecks int

	checkOrder      []string
	groupOrder      []string
	checkGroupOrder []string
}

// NewResult 创建空结果
func NewResult() *Result {
	return &Result{
		Checks:       make(map[string]*CheckStat),
		Groups:       make(map[string]*GroupStat),
		Metrics:      make(map[string][]float64),
		Errors:       newErrorClassification(),
		Declarations: make(map[string]MetricDecl),
		Parse:        record.ScanStats{ByType: make(map[record.Type]int)},
	}
}

// CheckNames 按首次出现顺序返回 check 名称
func (r *Result) CheckNames() []string {
	return slices.Clone(r.checkOrder)
}

// GroupNames 按首次出现顺序返回分组名称
func (r *Result) GroupNames() []string {
	return slices.Clone(r.groupOrder)
}

// TotalChecks 所有 check 的合计
func (r *Result) TotalChecks() PassFail {
	var total PassFail
	for _, c := range r.Checks {
		total.Passed += c.Passed
		total.Failed += c.Failed
	}
	return total
}

// TotalRequests 请求总数，即 http_req_failed 样本数
func (r *Result) TotalRequests() int {
	return len(r.Metrics[record.MetricHTTPReqFailed])
}

// FailedRequests http_req_failed 中非 0 样本数
func (r *Result) FailedRequests() int {
	n := 0
	for _, v := range r.Metrics[record.MetricHTTPReqFailed] {
		if v != 0 {
			n++
		}
	}
	return n
}

// FailureRate 失败请求百分比
func (r *Result) FailureRate() float64 {
	return stats.Rate(float64(r.FailedRequests()), float64(r.TotalRequests()))
}

// AdjustedFailureRate 扣除预期 401 后的失败百分比
func (r *Result) AdjustedFailureRate() float64 {
	return stats.Rate(float64(r.Errors.Total-r.Errors.ExpectedAuth), float64(r.TotalRequests()))
}

// Series 返回指标序列
func (r *Result) Series(name string) []float64 {
	return r.Metrics[name]
}

// Summary 返回指标摘要，序列为空时返回 false
func (r *Result) Summary(name string) (stats.Summary, bool) {
	return stats.Summarize(r.Metrics[name])
}

// MetricNames 排序后的指标名称
func (r *Result) MetricNames() []string {
	names := maputil.Keys(r.Metrics)
	slices.Sort(names)
	return names
}

// ScenarioCheck 场景内单个 check 的通过情况
type ScenarioCheck struct {
	Name string `json:"name"`
	PassFail
}

// ScenarioStat 按分组划分的场景
type ScenarioStat struct {
	Name    string          `json:"name"`
	Display string          `json:"display"`
	Checks  []ScenarioCheck `json:"checks"`
	PassFail
}

// DisplayName 去掉 k6 分组名前缀 "::"
func DisplayName(group string) string {
	if trimmed := strings.TrimPrefix(group, "::"); trimmed != "" {
		return trimmed
	}
	return group
}

// ScenarioBreakdown 以 check 记录中的分组为场景，按首次出现顺序返回。
func (r *Result) ScenarioBreakdown() []ScenarioStat {
	out := make([]ScenarioStat, 0, len(r.checkGroupOrder))
	for _, group := range r.checkGroupOrder {
		sc := ScenarioStat{Name: group, Display: DisplayName(group)}
		for _, name := range r.checkOrder {
			pf, ok := r.Checks[name].Groups[group]
			if !ok {
				continue
			}
			sc.Checks = append(sc.Checks, ScenarioCheck{Name: name, PassFail: *pf})
			sc.Passed += pf.Passed
			sc.Failed += pf.Failed
		}
		out = append(out, sc)
	}
	return out
}

// RankedChecks 按通过率降序排列的 check，通过率相同按名称升序
func (r *Result) RankedChecks() []*CheckStat {
	out := make([]*CheckStat, 0, len(r.checkOrder))
	for _, name := range r.checkOrder {
		out = append(out, r.Checks[name])
	}
	slices.SortStableFunc(out, func(a, b *CheckStat) int {
		ra, rb := a.Rate(), b.Rate()
		switch {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// ThresholdsPassed 所有阈值是否满足，没有阈值时返回 true
func (r *Result) ThresholdsPassed() bool {
	for _, t := range r.Thresholds {
		if !t.Met {
			return false
		}
	}
	return true
}
