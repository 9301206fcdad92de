package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/marketpulse/internal/app"
)

// statusCmd 저장소 상태
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the store and the stored effect count",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.Stores.Pinger.Ping(cmd.Context()); err != nil {
				return err
			}

			st, err := a.Effects.Status(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "store:          %s\n", a.Stores.Driver)
			fmt.Fprintf(out, "feed:           %s\n", a.Config.Feed.Provider)
			fmt.Fprintf(out, "stored effects: %d\n", st.StoredEffects)
			return nil
		})
	},
}
