package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"yqhp/perf-suite/internal/reporter"
	"yqhp/perf-suite/internal/reporter/html"
)

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report [results.json] [report.html]",
		Short: "生成 HTML 汇总报告",
		Example: `  perf-suite report
  perf-suite report test-results/results.json test-results/report.html`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := a.inputPath(args, 0)
			output := a.cfg.Report.HTMLOutput
			if len(args) > 1 {
				output = args[1]
			}
			if err := a.writeHTML(cmd, input, output, "", reporter.TypeHTML); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Report generated: %s\n", output)
			return nil
		},
	}
}

func newDetailedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detailed [results.json] [report.html] [test-type]",
		Short: "生成 HTML 详细报告",
		Long: `生成按场景展开的 HTML 详细报告。

test-type 决定页面标题和延迟阈值：smoke, load, stress, spike, soak，
未知类型按 default 处理。`,
		Example: `  perf-suite detailed test-results/results.json test-results/report-detailed.html stress`,
		Args:    cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := a.inputPath(args, 0)
			output := a.cfg.Report.DetailedOutput
			if len(args) > 1 && args[1] != "" {
				output = args[1]
			}
			testType := a.cfg.Report.TestType
			if len(args) > 2 && args[2] != "" {
				testType = args[2]
			}

			out := cmd.OutOrStdout()
			label := html.TestTypeLabel(testType)
			fmt.Fprintf(out, "📊 Generating detailed report... (Type: %s)\n", label)
			if err := a.writeHTML(cmd, input, output, testType, reporter.TypeHTMLDetailed); err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Detailed report generated: %s\n", output)
			fmt.Fprintf(out, "📝 Test type: %s\n", label)
			fmt.Fprintln(out, "📂 Open it in a browser to see checks per scenario")
			return nil
		},
	}
}

func (a *app) writeHTML(cmd *cobra.Command, input, output, testType string, t reporter.Type) error {
	res, err := a.loadResult(input)
	if err != nil {
		return err
	}
	return a.emit(cmd, res, a.reportOptions(input, testType), reporter.Target{Type: t, Path: output})
}
