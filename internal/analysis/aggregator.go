package analysis

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/slice"

	"yqhp/perf-suite/internal/record"
)

// ErrInputNotFound 输入文件不存在
var ErrInputNotFound = errors.New("input file not found")

// excludedSeries 不收集数值序列的指标
var excludedSeries = []string{
	record.MetricChecks,
	record.MetricIterations,
	record.MetricVUs,
	record.MetricVUsMax,
}

// Aggregator 单遍聚合事件记录。非并发安全。
type Aggregator struct {
	res       *Result
	scenarios map[string]struct{}
}

// NewAggregator 创建聚合器
func NewAggregator() *Aggregator {
	return &Aggregator{
		res:       NewResult(),
		scenarios: make(map[string]struct{}),
	}
}

// Add 处理一条记录
func (a *Aggregator) Add(rec record.Record) {
	tags := rec.Data.Tags

	switch rec.Type {
	case record.TypeThresholdEvent:
		a.addThresholdEvent(rec)
	case record.TypeMetric:
		a.addDeclaration(rec)
	}

	if rec.Type == record.TypePoint && rec.Metric == record.MetricChecks {
		if name, ok := tags.Get(record.TagCheck); ok {
			a.addCheck(name, rec)
		}
	}

	if rec.Type == record.TypePoint && rec.Metric != "" && !slice.Contain(excludedSeries, rec.Metric) {
		a.addSample(rec)
	}

	if group, ok := tags.Get(record.TagGroup); ok {
		a.addGroup(group, rec)
	}
}

func (a *Aggregator) addCheck(name string, rec record.Record) {
	if !rec.Data.HasValue() {
		a.res.ValuelessChecks++
		return
	}
	passed := *rec.Data.Value == 1
	group := rec.Data.Tags.GetOr(record.TagGroup, DefaultName)
	scenario := rec.Data.Tags.GetOr(record.TagScenario, DefaultName)
	a.scenarios[scenario] = struct{}{}

	stat, ok := a.res.Checks[name]
	if !ok {
		stat = &CheckStat{Name: name, Groups: make(map[string]*PassFail)}
		a.res.Checks[name] = stat
		a.res.checkOrder = append(a.res.checkOrder, name)
	}
	stat.add(passed)

	bucket, ok := stat.Groups[group]
	if !ok {
		bucket = &PassFail{}
		stat.Groups[group] = bucket
		if !slice.Contain(a.res.checkGroupOrder, group) {
			a.res.checkGroupOrder = append(a.res.checkGroupOrder, group)
		}
	}
	bucket.add(passed)
}

func (a *Aggregator) addSample(rec record.Record) {
	if !rec.Data.HasValue() {
		return
	}
	value := *rec.Data.Value
	a.res.Metrics[rec.Metric] = append(a.res.Metrics[rec.Metric], value)

	if rec.Metric == record.MetricHTTPReqFailed && value == 1 {
		status, present := rec.Data.Tags.Get(record.TagStatus)
		a.res.Errors.add(status, present)
	}
}

func (a *Aggregator) addGroup(group string, rec record.Record) {
	gs, ok := a.res.Groups[group]
	if !ok {
		gs = &GroupStat{Name: group, Checks: make(map[string]float64)}
		a.res.Groups[group] = gs
		a.res.groupOrder = append(a.res.groupOrder, group)
	}

	switch rec.Metric {
	case record.MetricHTTPReqs:
		gs.Requests += rec.Data.ValueOr(0)
	case record.MetricChecks:
		name, ok := rec.Data.Tags.Get(record.TagCheck)
		if !ok {
			return
		}
		if _, seen := gs.Checks[name]; !seen {
			gs.checkOrder = append(gs.checkOrder, name)
		}
		gs.Checks[name] += rec.Data.ValueOr(0)
	}
}

func (a *Aggregator) addThresholdEvent(rec record.Record) {
	met := rec.Data.Met != nil && *rec.Data.Met
	a.res.Thresholds = append(a.res.Thresholds, Threshold{
		Metric:     rec.Metric,
		Expression: rec.Data.Name,
		Met:        met,
		Source:     ThresholdFromEvent,
	})
}

func (a *Aggregator) addDeclaration(rec record.Record) {
	name := rec.Metric
	if name == "" {
		name = rec.Data.Name
	}
	if name == "" {
		return
	}
	a.res.Declarations[name] = MetricDecl{
		Name:       name,
		Type:       rec.Data.MetricType,
		Contains:   rec.Data.Contains,
		Thresholds: rec.Data.Thresholds,
	}
}

// Result 返回聚合结果。之后继续 Add 会修改同一个结果。
func (a *Aggregator) Result() *Result {
	names := maputil.Keys(a.scenarios)
	slices.Sort(names)
	a.res.Scenarios = names
	return a.res
}

// Analyze 读取并聚合整个输入
func Analyze(r io.Reader) (*Result, error) {
	s := record.NewScanner(r)
	agg := NewAggregator()
	for rec := range s.All() {
		agg.Add(rec)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	res := agg.Result()
	res.Parse = s.Stats()
	return res, nil
}

// AnalyzeFile 分析 NDJSON 文件。文件不存在时在读取前返回 ErrInputNotFound。
func AnalyzeFile(path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Analyze(f)
}
