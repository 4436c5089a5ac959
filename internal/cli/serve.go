package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/perf-suite/internal/server"
	"yqhp/perf-suite/pkg/logger"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, testType string

	cmd := &cobra.Command{
		Use:   "serve [results.json]",
		Short: "通过 HTTP 提供报告",
		Long: `启动报告服务：
  GET /             详细 HTML 报告
  GET /summary      HTML 汇总报告
  GET /report.txt   文本报告
  GET /api/result   JSON 导出
  GET /api/thresholds
  GET /metrics      Prometheus 指标
  GET /healthz`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := a.inputPath(args, 0)
			res, err := a.loadResult(input)
			if err != nil {
				return err
			}

			cfg := server.DefaultConfig()
			cfg.Address = a.cfg.Server.Addr
			if addr != "" {
				cfg.Address = addr
			}
			cfg.Source = input
			cfg.TestType = a.cfg.Report.TestType
			if testType != "" {
				cfg.TestType = testType
			}
			cfg.LatencyThresholds = a.latencyThresholds()
			cfg.DisableRequestLog = a.flags.quiet

			srv, err := server.NewServer(res, cfg)
			if err != nil {
				return err
			}

			// 处理关闭信号
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !a.flags.quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "🌐 Serving %s on %s\n", input, cfg.Address)
			}
			logger.Info("报告服务已启动", zap.String("addr", cfg.Address), zap.String("input", input))
			if err := srv.StartWithContext(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("报告服务异常退出: %w", err)
			}
			logger.Info("报告服务已停止")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "监听地址 (默认使用配置 server.addr)")
	cmd.Flags().StringVar(&testType, "test-type", "", "测试类型")
	return cmd
}
