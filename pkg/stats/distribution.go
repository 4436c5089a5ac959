package stats

import (
	"math"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// 以微秒精度记录毫秒值
	distributionScale = 1000
	// 最大可记录值：1 小时
	distributionMax = int64(3600 * 1000 * distributionScale)
	distributionSigFigs = 3
)

// Distribution 基于 HdrHistogram 的延迟分布
type Distribution struct {
	h       *hdrhistogram.Histogram
	clamped int
}

// Bar 直方图中的一个区间，单位与输入相同（毫秒）
type Bar struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int64   `json:"count"`
}

// NewDistribution 从毫秒序列构建分布。超出范围的值被截断并计数。
func NewDistribution(values []float64) *Distribution {
	d := &Distribution{
		h: hdrhistogram.New(1, distributionMax, distributionSigFigs),
	}
	for _, v := range values {
		d.Record(v)
	}
	return d
}

// Record 记录一个毫秒值
func (d *Distribution) Record(ms float64) {
	v := int64(math.Round(ms * distributionScale))
	if v < 1 {
		v = 1
	}
	if v > distributionMax {
		v = distributionMax
		d.clamped++
	}
	_ = d.h.RecordValue(v)
}

// Count 样本数量
func (d *Distribution) Count() int64 {
	return d.h.TotalCount()
}

// Clamped 被截断的样本数量
func (d *Distribution) Clamped() int {
	return d.clamped
}

// ValueAt 返回 q (0-100) 分位的近似值
func (d *Distribution) ValueAt(q float64) float64 {
	if d.h.TotalCount() == 0 {
		return 0
	}
	return float64(d.h.ValueAtQuantile(q)) / distributionScale
}

// Mean 近似平均值
func (d *Distribution) Mean() float64 {
	return d.h.Mean() / distributionScale
}

// StdDev 近似标准差
func (d *Distribution) StdDev() float64 {
	return d.h.StdDev() / distributionScale
}

// Bars 把分布合并为最多 n 个等宽区间
func (d *Distribution) Bars(n int) []Bar {
	if n <= 0 || d.h.TotalCount() == 0 {
		return nil
	}
	lo := float64(d.h.Min())
	hi := float64(d.h.Max())
	if hi <= lo {
		return []Bar{{
			From:  lo / distributionScale,
			To:    hi / distributionScale,
			Count: d.h.TotalCount(),
		}}
	}

	width := (hi - lo) / float64(n)
	bars := make([]Bar, n)
	for i := range bars {
		bars[i].From = (lo + width*float64(i)) / distributionScale
		bars[i].To = (lo + width*float64(i+1)) / distributionScale
	}
	for _, b := range d.h.Distribution() {
		if b.Count == 0 {
			continue
		}
		idx := int((float64(b.From) - lo) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		bars[idx].Count += b.Count
	}
	return bars
}
