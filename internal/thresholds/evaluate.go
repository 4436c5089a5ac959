package thresholds

import (
	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/record"
	"yqhp/perf-suite/pkg/stats"
)

// observe 计算指标在给定聚合方式下的观测值。没有数据时返回 false。
func observe(res *analysis.Result, metric string, expr Expression) (float64, bool) {
	if metric == record.MetricChecks {
		total := res.TotalChecks()
		if total.Total() == 0 {
			return 0, false
		}
		switch expr.Agg {
		case AggCount:
			return float64(total.Total()), true
		case AggRate:
			return float64(total.Passed) / float64(total.Total()), true
		}
		return 0, false
	}

	series := res.Series(metric)
	if len(series) == 0 {
		return 0, false
	}

	switch expr.Agg {
	case AggCount:
		return stats.Sum(series), true
	case AggRate:
		nonZero := 0
		for _, v := range series {
			if v != 0 {
				nonZero++
			}
		}
		return float64(nonZero) / float64(len(series)), true
	case AggAvg:
		return stats.Mean(series), true
	case AggMin:
		return stats.Min(series), true
	case AggMax:
		return stats.Max(series), true
	case AggMed:
		return stats.Percentile(series, 50), true
	case AggPercentile:
		return stats.Percentile(series, expr.Percentile), true
	}
	return 0, false
}

// Evaluate 针对分析结果评估阈值集合，按指标名排序输出。
// 无法解析的表达式返回错误；没有数据的指标记为未满足且 Missing。
func Evaluate(res *analysis.Result, set Set) ([]analysis.Threshold, error) {
	var out []analysis.Threshold
	for _, metric := range set.Metrics() {
		for _, src := range set[metric] {
			expr, err := Parse(src)
			if err != nil {
				return nil, err
			}

			t := analysis.Threshold{
				Metric:     metric,
				Expression: src,
				Source:     analysis.ThresholdEvaluated,
			}
			if v, ok := observe(res, metric, expr); ok {
				t.Observed = &v
				t.Met = expr.Check(v)
			} else {
				t.Missing = true
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// Apply 评估阈值并追加到结果中，返回是否全部满足
func Apply(res *analysis.Result, set Set) (bool, error) {
	outcomes, err := Evaluate(res, set)
	if err != nil {
		return false, err
	}
	res.Thresholds = append(res.Thresholds, outcomes...)
	return AllPassed(outcomes), nil
}

// AllPassed 所有阈值是否满足
func AllPassed(outcomes []analysis.Threshold) bool {
	for _, o := range outcomes {
		if !o.Met {
			return false
		}
	}
	return true
}
