// Package reporter 提供分析结果的报告输出框架。
package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"yqhp/perf-suite/internal/analysis"
)

// ErrUnknownType 未注册的报告器类型
var ErrUnknownType = errors.New("未知的报告器类型")

// Reporter 定义了报告输出的接口。
type Reporter interface {
	// Name 返回报告器名称。
	Name() string

	// Write 把分析结果写入 w。
	Write(ctx context.Context, res *analysis.Result, w io.Writer) error
}

// Type 定义报告器类型。
type Type string

const (
	// TypeText 文本报告。
	TypeText Type = "text"
	// TypeHTML 汇总 HTML 报告。
	TypeHTML Type = "html"
	// TypeHTMLDetailed 详细 HTML 报告。
	TypeHTMLDetailed Type = "html-detailed"
	// TypeJSON 机器可读的 JSON 摘要。
	TypeJSON Type = "json"
	// TypePrometheus Prometheus 文本格式。
	TypePrometheus Type = "prometheus"
)

// Options 创建报告器时共享的选项。
type Options struct {
	// Source 输入文件路径
	Source string
	// TestType smoke/load/stress/spike/soak
	TestType string
	// GeneratedAt 报告生成时间，零值表示当前时间
	GeneratedAt time.Time
	// LatencyThresholds HTML 报告中各指标的 P95 阈值（毫秒）
	LatencyThresholds map[string]float64
	// Title HTML 页面标题
	Title string
	// Pretty JSON 缩进输出
	Pretty bool
}

// Factory 创建特定类型的报告器。
type Factory func(opts Options) (Reporter, error)

// Registry 管理报告器的注册和创建。
type Registry struct {
	factories map[Type]Factory
	mu        sync.RWMutex
}

// NewRegistry 创建一个新的报告器注册表。
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Type]Factory),
	}
}

// Register 为指定类型注册报告器工厂。
func (r *Registry) Register(t Type, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[t]; exists {
		return fmt.Errorf("报告器类型已注册: %s", t)
	}

	r.factories[t] = factory
	return nil
}

// Unregister 移除报告器工厂。
func (r *Registry) Unregister(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, t)
}

// Create 创建指定类型的报告器。
func (r *Registry) Create(t Type, opts Options) (Reporter, error) {
	r.mu.RLock()
	factory, exists := r.factories[t]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}

	return factory(opts)
}

// ListTypes 返回所有已注册的报告器类型（已排序）。
func (r *Registry) ListTypes() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// HasType 检查报告器类型是否已注册。
func (r *Registry) HasType(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[t]
	return exists
}
