package reporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/pkg/logger"
)

// Stdout 表示输出到标准输出的路径
const Stdout = "-"

// Target 一个输出目标：报告器类型和输出路径
type Target struct {
	Type Type
	Path string
}

// String 返回 type=path 形式
func (t Target) String() string {
	return string(t.Type) + "=" + t.path()
}

// ToStdout 是否输出到标准输出
func (t Target) ToStdout() bool {
	return t.Path == "" || t.Path == Stdout
}

func (t Target) path() string {
	if t.ToStdout() {
		return Stdout
	}
	return t.Path
}

// ParseTarget 解析 "type=path"。省略路径或路径为 "-" 时输出到标准输出。
func ParseTarget(s string) (Target, error) {
	typ, path, _ := strings.Cut(strings.TrimSpace(s), "=")
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return Target{}, fmt.Errorf("无效的输出目标: %q", s)
	}
	return Target{Type: Type(typ), Path: strings.TrimSpace(path)}, nil
}

// ParseTargets 解析多个输出目标
func ParseTargets(specs []string) ([]Target, error) {
	targets := make([]Target, 0, len(specs))
	for _, s := range specs {
		t, err := ParseTarget(s)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Manager 把同一个分析结果输出到多个目标
type Manager struct {
	registry *Registry
	opts     Options
	stdout   io.Writer
	targets  []Target
}

// NewManager 创建输出管理器，registry 为 nil 时使用空注册表
func NewManager(registry *Registry, opts Options) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry: registry,
		opts:     opts,
		stdout:   os.Stdout,
	}
}

// SetStdout 替换标准输出，用于测试
func (m *Manager) SetStdout(w io.Writer) {
	m.stdout = w
}

// AddTarget 添加输出目标，类型必须已注册
func (m *Manager) AddTarget(t Target) error {
	if !m.registry.HasType(t.Type) {
		return fmt.Errorf("%w: %s", ErrUnknownType, t.Type)
	}
	m.targets = append(m.targets, t)
	return nil
}

// Targets 返回已添加的输出目标
func (m *Manager) Targets() []Target {
	out := make([]Target, len(m.targets))
	copy(out, m.targets)
	return out
}

// Emit 依次渲染每个目标。报告先渲染到内存，渲染失败的目标不会写入文件。
func (m *Manager) Emit(ctx context.Context, res *analysis.Result) error {
	var errs []error
	for _, t := range m.targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.emit(ctx, res, t); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Type, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("报告错误: %w", errors.Join(errs...))
	}
	return nil
}

func (m *Manager) emit(ctx context.Context, res *analysis.Result, t Target) error {
	r, err := m.registry.Create(t.Type, m.opts)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := r.Write(ctx, res, &buf); err != nil {
		return err
	}

	if t.ToStdout() {
		_, err := m.stdout.Write(buf.Bytes())
		return err
	}
	if err := WriteFile(t.Path, buf.Bytes()); err != nil {
		return err
	}
	logger.Info("报告已生成", zap.String("type", string(t.Type)), zap.String("path", t.Path))
	return nil
}

// WriteFile 写入文件，父目录不存在时自动创建
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}
