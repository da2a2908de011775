package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server, session and offline cache status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		printf := func(format string, a ...any) { fmt.Fprintf(out, format, a...) }

		printf("Server: %s\n", cfg.ServerURL)
		if err := app.client.Health(ctx); err != nil {
			printf("Backend: unreachable (%s)\n", api.Message(err, "health check failed"))
		} else {
			printf("Backend: ok\n")
		}

		printf("Session: %s\n", app.machine.State())
		if app.machine.Authenticated() {
			me, err := app.client.Me(ctx, session.TokenSource(app.tokens))
			if err != nil {
				printf("Account: unavailable (%s)\n", api.Message(err, "token rejected"))
			} else {
				printf("Account: %s\n", me.Email)
			}
		}

		state := "not installed"
		if app.cache.Active() {
			state = "active"
		}
		printf("Offline cache: %s (%s)\n", app.cache.Name(), state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
