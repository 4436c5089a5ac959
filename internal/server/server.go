// Package server 通过 HTTP 提供分析结果和报告
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/reporter"
	"yqhp/perf-suite/internal/reporter/html"
	"yqhp/perf-suite/internal/reporter/promexport"
)

const (
	mimeHTML = "text/html; charset=utf-8"
	mimeText = "text/plain; charset=utf-8"
	mimeJSON = "application/json"
)

// Server 报告服务
type Server struct {
	app     *fiber.App
	config  *Config
	result  *analysis.Result
	reports *reporter.Registry
	startAt time.Time
}

// Config 报告服务配置
type Config struct {
	// Address 监听地址 (例如 ":8089")
	Address string `yaml:"address"`

	// ReadTimeout 读取整个请求的最长时间
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout 写响应的超时时间
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Source 被分析的结果文件，显示在文本和 JSON 报告中
	Source string `yaml:"source"`

	// TestType 测试类型，决定 HTML 延迟阈值和 Prometheus 的 test_type 标签
	TestType string `yaml:"test_type"`

	// LatencyThresholds 按指标覆盖 HTML 报告的 P95 阈值
	LatencyThresholds map[string]float64 `yaml:"latency_thresholds,omitempty"`

	// DisableRequestLog 关闭请求日志中间件
	DisableRequestLog bool `yaml:"disable_request_log"`
}

// DefaultConfig 返回默认服务配置
func DefaultConfig() *Config {
	return &Config{
		Address:      ":8089",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Scenarios int       `json:"scenarios"`
	Requests  int       `json:"requests"`
}

// ThresholdsResponse 阈值结果响应
type ThresholdsResponse struct {
	Passed     bool                 `json:"passed"`
	Thresholds []analysis.Threshold `json:"thresholds"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewServer 为 res 创建报告服务
func NewServer(res *analysis.Result, config *Config) (*Server, error) {
	if res == nil {
		return nil, errors.New("结果不能为空")
	}
	if config == nil {
		config = DefaultConfig()
	}

	reports, err := reporter.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		ErrorHandler:          customErrorHandler,
		AppName:               "Perf Suite Report",
		DisableStartupMessage: true,
	})

	server := &Server{
		app:     app,
		config:  config,
		result:  res,
		reports: reports,
		startAt: time.Now(),
	}

	if err := server.setupRoutes(); err != nil {
		return nil, err
	}
	return server, nil
}

// setupMiddleware 配置中间件
func (s *Server) setupMiddleware() {
	// 恢复中间件 - 从 panic 中恢复
	s.app.Use(fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
	}))

	// 日志中间件 - 记录 HTTP 请求
	if !s.config.DisableRequestLog {
		s.app.Use(logger.New(logger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}
}

// setupRoutes 配置所有路由
func (s *Server) setupRoutes() error {
	s.setupMiddleware()

	metrics, err := promexport.NewRegistry(s.result, s.metricsOptions())
	if err != nil {
		return fmt.Errorf("注册 Prometheus 指标失败: %w", err)
	}

	s.app.Get("/healthz", s.healthCheck)

	// 报告页面
	s.app.Get("/", s.report(reporter.TypeHTMLDetailed, mimeHTML))
	s.app.Get("/summary", s.report(reporter.TypeHTML, mimeHTML))
	s.app.Get("/report.txt", s.report(reporter.TypeText, mimeText))

	// API
	api := s.app.Group("/api")
	api.Get("/result", s.report(reporter.TypeJSON, mimeJSON))
	api.Get("/thresholds", s.thresholds)

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
	return nil
}

func (s *Server) metricsOptions() promexport.Options {
	opts := promexport.Options{}
	if s.config.TestType != "" {
		opts.ConstLabels = map[string]string{"test_type": s.config.TestType}
	}
	return opts
}

func (s *Server) reportOptions() reporter.Options {
	return reporter.Options{
		Source:            s.config.Source,
		TestType:          s.config.TestType,
		GeneratedAt:       s.startAt,
		LatencyThresholds: s.config.LatencyThresholds,
	}
}

// report 使用类型为 t 的报告器渲染结果
func (s *Server) report(t reporter.Type, contentType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := s.reports.Create(t, s.reportOptions())
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := r.Write(c.UserContext(), s.result, &buf); err != nil {
			if errors.Is(err, html.ErrNoScenarios) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return err
		}

		c.Set(fiber.HeaderContentType, contentType)
		return c.Send(buf.Bytes())
	}
}

func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		StartedAt: s.startAt,
		Scenarios: len(s.result.ScenarioBreakdown()),
		Requests:  s.result.TotalRequests(),
	})
}

func (s *Server) thresholds(c *fiber.Ctx) error {
	outcomes := s.result.Thresholds
	if outcomes == nil {
		outcomes = []analysis.Threshold{}
	}
	return c.JSON(ThresholdsResponse{
		Passed:     s.result.ThresholdsPassed(),
		Thresholds: outcomes,
	})
}

// Start 启动服务
func (s *Server) Start() error {
	return s.app.Listen(s.config.Address)
}

// StartWithContext 启动服务，ctx 结束时关闭
func (s *Server) StartWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.app.Listen(s.config.Address); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.ShutdownWithTimeout(10 * time.Second)
	case err := <-errCh:
		return err
	}
}

// Shutdown 优雅关闭服务
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// ShutdownWithTimeout 带超时的优雅关闭
func (s *Server) ShutdownWithTimeout(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

// App 返回底层 Fiber 应用（用于测试）
func (s *Server) App() *fiber.App {
	return s.app
}

// customErrorHandler 处理 handler 返回的错误
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	} else if err != nil {
		message = err.Error()
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   fmt.Sprintf("error_%d", code),
		Message: message,
	})
}
