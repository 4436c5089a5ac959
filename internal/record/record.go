// Package record 解析 k6 输出的 NDJSON 事件记录。
package record

import (
	"strconv"
	"time"
)

// Type 记录类型
type Type string

const (
	// TypePoint 单个指标样本
	TypePoint Type = "Point"
	// TypeMetric 指标声明
	TypeMetric Type = "Metric"
	// TypeThresholdEvent 阈值判定事件
	TypeThresholdEvent Type = "ThresholdEvent"
)

// 常用指标名称
const (
	MetricChecks          = "checks"
	MetricIterations      = "iterations"
	MetricVUs             = "vus"
	MetricVUsMax          = "vus_max"
	MetricHTTPReqs        = "http_reqs"
	MetricHTTPReqDuration = "http_req_duration"
	MetricHTTPReqWaiting  = "http_req_waiting"
	MetricHTTPReqFailed   = "http_req_failed"
)

// 常用标签名称
const (
	TagCheck            = "check"
	TagGroup            = "group"
	TagScenario         = "scenario"
	TagStatus           = "status"
	TagName             = "name"
	TagMethod           = "method"
	TagExpectedResponse = "expected_response"
)

// Record 一行 NDJSON 解析后的事件记录，解析后不再修改。
type Record struct {
	Type   Type   `json:"type"`
	Metric string `json:"metric"`
	Data   Data   `json:"data"`
}

// Data 记录的 data 部分。
// Point 使用 Time/Value/Tags，ThresholdEvent 使用 Name/Met，
// Metric 声明使用 MetricType/Contains/Thresholds。
type Data struct {
	Time       time.Time
	Value      *float64
	Tags       Tags
	Name       string
	Met        *bool
	MetricType string
	Contains   string
	Thresholds []string
}

// HasValue 是否携带数值
func (d Data) HasValue() bool {
	return d.Value != nil
}

// ValueOr 返回数值，缺失时返回 def
func (d Data) ValueOr(def float64) float64 {
	if d.Value == nil {
		return def
	}
	return *d.Value
}

// Float 构造一个数值指针
func Float(v float64) *float64 {
	return &v
}

// Bool 构造一个布尔指针
func Bool(v bool) *bool {
	return &v
}

// Tags 样本标签
type Tags map[string]string

// Get 获取标签值，空字符串视为不存在。
func (t Tags) Get(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// GetOr 获取标签值，不存在时返回 def
func (t Tags) GetOr(key, def string) string {
	if v, ok := t.Get(key); ok {
		return v
	}
	return def
}

// normalizeTags 把任意 JSON 标签值转换成字符串
func normalizeTags(raw map[string]any) Tags {
	if len(raw) == 0 {
		return nil
	}
	tags := make(Tags, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			tags[k] = val
		case bool:
			tags[k] = strconv.FormatBool(val)
		case float64:
			tags[k] = strconv.FormatFloat(val, 'f', -1, 64)
		}
		// null 和嵌套值等同于缺失
	}
	return tags
}
