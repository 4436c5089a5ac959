package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/perf-suite/internal/reporter"
	"yqhp/perf-suite/internal/thresholds"
	"yqhp/perf-suite/pkg/logger"
)

// analyze 命令的 flags
type analyzeFlags struct {
	outputs          []string
	profile          string
	testType         string
	failOnThresholds bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze [results.json]",
		Short: "输出文本分析报告",
		Long: `解析 k6 NDJSON 结果并把文本分析输出到标准输出。

--out 可以多次指定，把同一结果额外写到其他目标：
  text, html, html-detailed, json, prometheus`,
		Example: `  # 分析默认结果文件
  perf-suite analyze

  # 额外输出 JSON 和 Prometheus 文本
  perf-suite analyze results.json --out json=summary.json --out prometheus=metrics.prom

  # 离线评估 stress 阈值，未通过时退出码为 1
  perf-suite analyze results.json --thresholds stress --fail-on-thresholds`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args, f)
		},
	}

	cmd.Flags().StringArrayVarP(&f.outputs, "out", "o", nil, "额外输出目标 (可多次指定)，格式: type=path，path 为 - 表示标准输出")
	cmd.Flags().StringVar(&f.profile, "thresholds", "", "评估阈值档位 (normal, stress, spike, smoke)")
	cmd.Flags().StringVar(&f.testType, "test-type", "", "测试类型 (smoke, load, stress, spike, soak)")
	cmd.Flags().BoolVar(&f.failOnThresholds, "fail-on-thresholds", false, "阈值未通过时返回错误")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, args []string, f *analyzeFlags) error {
	input := a.inputPath(args, 0)

	// 解析输出配置
	extra, err := reporter.ParseTargets(f.outputs)
	if err != nil {
		return err
	}

	res, err := a.loadResult(input)
	if err != nil {
		return err
	}

	passed := res.ThresholdsPassed()
	if f.profile != "" {
		profile, err := parseProfile(f.profile)
		if err != nil {
			return err
		}
		ok, err := thresholds.Apply(res, thresholds.Build(profile, a.cfg.Thresholds, a.cfg.CI))
		if err != nil {
			return fmt.Errorf("评估阈值失败: %w", err)
		}
		passed = passed && ok
		logger.Debug("阈值已评估", zap.String("profile", string(profile)), zap.Bool("passed", ok))
	}

	targets := append([]reporter.Target{{Type: reporter.TypeText, Path: reporter.Stdout}}, extra...)
	if err := a.emit(cmd, res, a.reportOptions(input, f.testType), targets...); err != nil {
		return err
	}

	if f.failOnThresholds && !passed {
		return ErrThresholdsFailed
	}
	return nil
}

// parseProfile 校验阈值档位
func parseProfile(s string) (thresholds.Profile, error) {
	p := thresholds.Profile(s)
	if !slices.Contains(thresholds.Profiles, p) {
		return "", fmt.Errorf("未知的阈值档位: %s", s)
	}
	return p, nil
}
