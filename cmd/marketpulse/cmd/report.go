package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/marketpulse/internal/app"
	"github.com/wonny/marketpulse/internal/domain/effect"
	"github.com/wonny/marketpulse/internal/report"
)

var (
	reportMinScore float64
	reportFormat   string
)

// reportCmd 저장된 효과 리포트
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print high-score effects grouped by ticker and the statistical appendix",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(reportFormat)
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(a *app.App) error {
			minScore := reportMinScore
			if !cmd.Flags().Changed("min-score") {
				minScore = a.Effects.AlertMinScore()
			}

			groups, err := a.Effects.Alerts(cmd.Context(), minScore)
			if err != nil {
				return err
			}

			w := report.NewWriter(cmd.OutOrStdout(), format)
			if err := w.Alerts(groups, minScore); err != nil {
				return err
			}

			summary, err := a.Effects.Summary(cmd.Context())
			if errors.Is(err, effect.ErrInsufficientData) {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored effects, run the pipeline first.")
				return nil
			}
			if err != nil {
				return err
			}
			return w.Analysis(summary)
		})
	},
}

func init() {
	reportCmd.Flags().Float64Var(&reportMinScore, "min-score", 0, "minimum sentiment score (default ALERT_MIN_SCORE)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format (text, markdown)")
}
