// Package cli 提供 perf-suite CLI 的命令实现
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/config"
	"yqhp/perf-suite/internal/record"
	"yqhp/perf-suite/internal/reporter"
	"yqhp/perf-suite/pkg/logger"
)

const (
	// Version 是当前版本号
	Version = "0.1.0"
	// Banner 是 version 输出的 ASCII 艺术
	Banner = `
          /\      |‾‾| Perf Suite %s
     /\  /  \     |  |
    /  \/    \    |  |
   /          \   |  |
  / __________ \  |__|
`
)

// ErrThresholdsFailed 阈值未全部通过
var ErrThresholdsFailed = errors.New("阈值未通过")

// globalFlags 全局 flags
type globalFlags struct {
	cfgFile string
	envFile string
	debug   bool
	quiet   bool
}

// app 在命令之间共享配置
type app struct {
	flags      globalFlags
	cfg        *config.Config
	restoreLog func()
}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "perf-suite",
		Short: "k6 测试结果分析与报告",
		Long: `perf-suite 读取 k6 --out json 生成的 NDJSON 结果，
输出文本分析、HTML 报告、JSON 与 Prometheus 导出，并可离线评估阈值。`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}

	// 全局 flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.cfgFile, "config", "k6.config.json", "配置文件路径 (JSON 或 YAML)")
	pf.StringVar(&a.flags.envFile, "env-file", ".env", ".env 文件路径")
	pf.BoolVar(&a.flags.debug, "debug", false, "启用调试日志")
	pf.BoolVarP(&a.flags.quiet, "quiet", "q", false, "静默模式")

	// 禁用默认的 completion 命令
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// 自定义版本模板
	rootCmd.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newReportCmd(a),
		newDetailedCmd(a),
		newThresholdsCmd(a),
		newServeCmd(a),
		newProbeCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute 执行根命令
func Execute() error {
	return NewRootCmd().Execute()
}

// setup 加载配置并初始化日志
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewLoader().
		WithConfigPath(a.flags.cfgFile).
		WithEnvFile(a.flags.envFile).
		Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	lc := cfg.Log.Logger()
	switch {
	case a.flags.debug:
		lc.Level = "debug"
	case a.flags.quiet:
		lc.Level = "error"
	}
	a.restoreLog = logger.Replace(logger.NewWithWriter(lc, cmd.ErrOrStderr()))

	logger.Debug("配置已加载",
		zap.String("config", a.flags.cfgFile),
		zap.String("base_url", cfg.API.BaseURL),
		zap.Bool("ci", cfg.CI),
	)
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) {
	logger.Sync()
	if a.restoreLog != nil {
		a.restoreLog()
		a.restoreLog = nil
	}
}

// inputPath 位置参数优先，否则使用配置中的默认输入
func (a *app) inputPath(args []string, i int) string {
	if len(args) > i && args[i] != "" {
		return args[i]
	}
	return a.cfg.Report.Input
}

// loadResult 解析结果文件，文件不存在时返回 analysis.ErrInputNotFound
func (a *app) loadResult(path string) (*analysis.Result, error) {
	res, err := analysis.AnalyzeFile(path)
	if err != nil {
		return nil, err
	}
	if res.Parse.Skipped > 0 {
		logger.Warn("跳过无法解析的行", zap.String("file", path), zap.Int("skipped", res.Parse.Skipped))
	}
	return res, nil
}

// reportOptions 报告选项，testType 为空时使用配置
func (a *app) reportOptions(source, testType string) reporter.Options {
	if testType == "" {
		testType = a.cfg.Report.TestType
	}
	return reporter.Options{
		Source:            source,
		TestType:          testType,
		LatencyThresholds: a.latencyThresholds(),
		Pretty:            true,
	}
}

// latencyThresholds HTML 报告的 P95 阈值
func (a *app) latencyThresholds() map[string]float64 {
	limit := a.cfg.Report.LatencyThreshold
	return map[string]float64{
		record.MetricHTTPReqDuration: limit,
		record.MetricHTTPReqWaiting:  limit,
	}
}

// emit 把结果输出到 targets
func (a *app) emit(cmd *cobra.Command, res *analysis.Result, opts reporter.Options, targets ...reporter.Target) error {
	registry, err := reporter.NewDefaultRegistry()
	if err != nil {
		return err
	}
	mgr := reporter.NewManager(registry, opts)
	mgr.SetStdout(cmd.OutOrStdout())
	for _, t := range targets {
		if err := mgr.AddTarget(t); err != nil {
			return err
		}
	}
	return mgr.Emit(cmd.Context(), res)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), Banner+"\n", Version)
		},
	}
}
