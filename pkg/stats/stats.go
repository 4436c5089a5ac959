// Package stats 提供数值序列的统计函数。
// 所有函数对空序列返回 0，不会修改输入切片。
package stats

import (
	"math"
	"slices"

	"github.com/duke-git/lancet/v2/slice"
)

// Sum 求和
func Sum(values []float64) float64 {
	return slice.ReduceBy(values, 0.0, func(_ int, v float64, agg float64) float64 {
		return agg + v
	})
}

// Mean 算术平均值
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Min 最小值
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return slices.Min(values)
}

// Max 最大值
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return slices.Max(values)
}

// Sorted 返回升序排序后的副本
func Sorted(values []float64) []float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted
}

// Percentile 最近秩百分位数：index = ceil(p/100 * n) - 1，下限为 0。
// p 会被限制在 [0, 100]。
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return percentileSorted(Sorted(values), p)
}

// percentileSorted 在已排序序列上计算百分位数
func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = math.Max(0, math.Min(100, p))
	idx := int(math.Ceil((p/100)*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Rate 百分比 part/whole*100，whole 为 0 时返回 0
func Rate(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// Ratio part/whole，whole 为 0 时返回 0
func Ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole
}

// Summary 序列摘要
type Summary struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Med   float64 `json:"med"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Summarize 计算序列摘要，空序列返回 false
func Summarize(values []float64) (Summary, bool) {
	if len(values) == 0 {
		return Summary{}, false
	}
	sorted := Sorted(values)
	sum := Sum(values)
	return Summary{
		Count: len(sorted),
		Sum:   sum,
		Mean:  sum / float64(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Med:   percentileSorted(sorted, 50),
		P90:   percentileSorted(sorted, 90),
		P95:   percentileSorted(sorted, 95),
		P99:   percentileSorted(sorted, 99),
	}, true
}
