package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"yqhp/perf-suite/internal/thresholds"
)

func newThresholdsCmd(a *app) *cobra.Command {
	var profile string
	var ci bool

	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "输出 k6 options.thresholds JSON",
		Long: `按档位生成 k6 阈值。CI_ENVIRONMENT=true 或 --ci 时使用放宽后的 CI 阈值。

档位: normal, stress, spike, smoke`,
		Example: `  perf-suite thresholds --profile stress
  CI_ENVIRONMENT=true perf-suite thresholds --profile spike`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := parseProfile(profile)
			if err != nil {
				return err
			}
			set := thresholds.Build(p, a.cfg.Thresholds, a.cfg.CI || ci)
			data, err := set.JSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", string(thresholds.ProfileNormal), "阈值档位")
	cmd.Flags().BoolVar(&ci, "ci", false, "使用 CI 阈值")
	return cmd
}
