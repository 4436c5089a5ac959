package analysis

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Bucket 失败请求分类
type Bucket string

const (
	// BucketExpectedAuth 预期的 401 认证失败
	BucketExpectedAuth Bucket = "expected_auth"
	// BucketServer 5xx 服务端错误
	BucketServer Bucket = "server"
	// BucketClient 4xx 客户端错误（不含 401）
	BucketClient Bucket = "client"
	// BucketNetwork 无状态码的网络错误（超时、连接失败）
	BucketNetwork Bucket = "network"
)

// Buckets 所有分类，按报告顺序
var Buckets = []Bucket{BucketExpectedAuth, BucketServer, BucketClient, BucketNetwork}

// ClassifyStatus 根据 status 标签把失败请求归入唯一的分类。
// 状态码按整数比较；无法解析或小于 400 的状态码（k6 对传输失败记为 0）视为网络错误。
func ClassifyStatus(status string, present bool) Bucket {
	if !present {
		return BucketNetwork
	}
	code, err := strconv.Atoi(strings.TrimSpace(status))
	if err != nil {
		return BucketNetwork
	}
	switch {
	case code == 401:
		return BucketExpectedAuth
	case code >= 500:
		return BucketServer
	case code >= 400:
		return BucketClient
	default:
		return BucketNetwork
	}
}

// ErrorClassification 失败请求统计
type ErrorClassification struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"by_status"`
	ExpectedAuth int            `json:"expected_auth"`
	Server       int            `json:"server"`
	Client       int            `json:"client"`
	Network      int            `json:"network"`
}

func newErrorClassification() ErrorClassification {
	return ErrorClassification{ByStatus: make(map[string]int)}
}

// add 记录一次失败请求
func (e *ErrorClassification) add(status string, present bool) {
	e.Total++
	if present {
		e.ByStatus[status]++
	}
	switch ClassifyStatus(status, present) {
	case BucketExpectedAuth:
		e.ExpectedAuth++
	case BucketServer:
		e.Server++
	case BucketClient:
		e.Client++
	default:
		e.Network++
	}
}

// Count 返回指定分类的数量
func (e ErrorClassification) Count(b Bucket) int {
	switch b {
	case BucketExpectedAuth:
		return e.ExpectedAuth
	case BucketServer:
		return e.Server
	case BucketClient:
		return e.Client
	case BucketNetwork:
		return e.Network
	}
	return 0
}

// Bucketed 四个分类之和，恒等于 Total
func (e ErrorClassification) Bucketed() int {
	return e.ExpectedAuth + e.Server + e.Client + e.Network
}

// Share 分类占全部失败的百分比
func (e ErrorClassification) Share(b Bucket) float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Count(b)) / float64(e.Total) * 100
}

// StatusCount 单个状态码的失败次数
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// StatusCounts 按次数降序排列，次数相同按状态码升序
func (e ErrorClassification) StatusCounts() []StatusCount {
	out := make([]StatusCount, 0, len(e.ByStatus))
	for status, n := range e.ByStatus {
		out = append(out, StatusCount{Status: status, Count: n})
	}
	slices.SortFunc(out, func(a, b StatusCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Status, b.Status)
	})
	return out
}
