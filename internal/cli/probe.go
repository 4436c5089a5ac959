package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"yqhp/perf-suite/internal/apiclient"
	"yqhp/perf-suite/internal/probe"
)

// DefaultProbeOutput probe 命令的默认输出文件
const DefaultProbeOutput = "test-results/probe.json"

func newProbeCmd(a *app) *cobra.Command {
	var baseURL string
	var analyze bool

	cmd := &cobra.Command{
		Use:   "probe [output.json]",
		Short: "对目标 API 执行一次冒烟探测",
		Long: `依次执行用户和商品场景 (列表、创建、查询、更新、删除)，
结果以 k6 NDJSON 格式写入文件，可直接交给 analyze/report 使用。`,
		Example: `  perf-suite probe
  perf-suite probe --base-url http://localhost:3000 test-results/probe.json --analyze`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := DefaultProbeOutput
			if len(args) > 0 && args[0] != "" {
				output = args[0]
			}

			apiCfg := apiclient.ConfigFrom(a.cfg.API)
			if baseURL != "" {
				apiCfg.BaseURL = baseURL
			}

			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return fmt.Errorf("创建目录失败: %w", err)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("创建输出文件失败: %w", err)
			}
			defer f.Close()

			client := apiclient.New(apiCfg)
			summary, err := probe.New(client, probe.ConfigFrom(a.cfg), f).Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("探测失败: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "🔎 %s: %s\n", client.BaseURL(), summary)
			fmt.Fprintf(out, "✅ Results written: %s\n", output)

			if analyze {
				return a.runAnalyze(cmd, []string{output}, &analyzeFlags{})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "目标 API 地址 (覆盖配置 api.baseUrl)")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "探测完成后输出文本分析")
	return cmd
}
