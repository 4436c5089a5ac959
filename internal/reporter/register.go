package reporter

import (
	"yqhp/perf-suite/internal/reporter/html"
	"yqhp/perf-suite/internal/reporter/jsonexport"
	"yqhp/perf-suite/internal/reporter/promexport"
	"yqhp/perf-suite/internal/reporter/text"
)

// RegisterBuiltin 注册所有内置报告器
func RegisterBuiltin(registry *Registry) error {
	// 文本报告
	if err := registry.Register(TypeText, func(opts Options) (Reporter, error) {
		cfg := text.DefaultOptions()
		cfg.Source = opts.Source
		return text.New(cfg), nil
	}); err != nil {
		return err
	}

	// HTML 摘要报告和详细报告
	for _, t := range []Type{TypeHTML, TypeHTMLDetailed} {
		detailed := t == TypeHTMLDetailed
		if err := registry.Register(t, func(opts Options) (Reporter, error) {
			return html.New(html.Options{
				TestType:          opts.TestType,
				GeneratedAt:       opts.GeneratedAt,
				Detailed:          detailed,
				LatencyThresholds: opts.LatencyThresholds,
				Title:             opts.Title,
			}), nil
		}); err != nil {
			return err
		}
	}

	// JSON 导出
	if err := registry.Register(TypeJSON, func(opts Options) (Reporter, error) {
		return jsonexport.New(jsonexport.Options{
			Source:      opts.Source,
			GeneratedAt: opts.GeneratedAt,
			Pretty:      opts.Pretty,
		}), nil
	}); err != nil {
		return err
	}

	// Prometheus 导出
	if err := registry.Register(TypePrometheus, func(opts Options) (Reporter, error) {
		cfg := promexport.Options{}
		if opts.TestType != "" {
			cfg.ConstLabels = map[string]string{"test_type": opts.TestType}
		}
		return promexport.New(cfg), nil
	}); err != nil {
		return err
	}

	return nil
}

// NewDefaultRegistry 创建已注册全部内置报告器的注册表
func NewDefaultRegistry() (*Registry, error) {
	registry := NewRegistry()
	if err := RegisterBuiltin(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
