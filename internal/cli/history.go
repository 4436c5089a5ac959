package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/perf-suite/internal/history"
	"yqhp/perf-suite/pkg/logger"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "管理运行历史",
		Long: `把分析汇总保存到数据库 (mysql 或 postgres)，并列出最近的运行。

数据库由配置 history.driver / history.dsn 或环境变量 HISTORY_DRIVER / HISTORY_DSN 指定。`,
	}
	cmd.AddCommand(newHistorySaveCmd(a), newHistoryListCmd(a))
	return cmd
}

func newHistorySaveCmd(a *app) *cobra.Command {
	var testType string

	cmd := &cobra.Command{
		Use:   "save [results.json]",
		Short: "保存一次运行的汇总",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := a.inputPath(args, 0)
			res, err := a.loadResult(input)
			if err != nil {
				return err
			}
			if testType == "" {
				testType = a.cfg.Report.TestType
			}
			run := history.NewRun(res, input, testType, nil)

			store, err := history.Open(cmd.Context(), a.cfg.History)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Save(cmd.Context(), &run); err != nil {
				return err
			}
			logger.Info("运行记录已保存", zap.String("id", run.ID), zap.Bool("passed", run.Passed))
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Run saved: %s\n", run.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&testType, "test-type", "", "测试类型")
	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出最近的运行",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := history.Open(cmd.Context(), a.cfg.History)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(cmd, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "返回条数")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []history.Run) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tTYPE\tCHECKS\tREQUESTS\tADJ.FAIL\tP95\tRESULT")
	for _, r := range runs {
		result := "PASSED"
		if !r.Passed {
			result = "FAILED"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f%%\t%d\t%.2f%%\t%.2fms\t%s\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.TestType,
			r.CheckRate,
			r.TotalRequests,
			r.AdjustedFailureRate,
			r.P95DurationMs,
			result,
		)
	}
	w.Flush()
}
