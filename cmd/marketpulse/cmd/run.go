package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/marketpulse/internal/app"
	"github.com/wonny/marketpulse/internal/report"
)

var runFormat string

// runCmd 파이프라인 1회 실행
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resolve scored events and replace the effect table",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(runFormat)
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(a *app.App) error {
			result, err := a.Effects.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := report.NewWriter(out, format)
			if err := w.RunSummary(result.Summary); err != nil {
				return err
			}
			st := a.Guard.Stats()
			fmt.Fprintf(out, "feed calls: %d (memoized %d, failed %d)\n\n", st.Calls, st.Hits, st.Failed)
			return w.Analysis(result.Analysis)
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runFormat, "format", "text", "output format (text, markdown)")
}
