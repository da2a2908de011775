package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/stub"
)

var (
	stubAddr   string
	stubConfig string
)

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Run an in-memory development backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := stub.DefaultConfig()
		if stubConfig != "" {
			var err error
			if c, err = stub.LoadConfig(stubConfig); err != nil {
				return err
			}
		}

		log := app.logger.Named("stub")
		s, err := stub.New(c, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Stub backend listening on %s\n", stubAddr)
		log.Info("starting stub backend", zap.String("addr", stubAddr), zap.Int("users", len(c.Users)))
		return s.ListenAndServe(cmd.Context(), stubAddr)
	},
}

func init() {
	stubCmd.Flags().StringVar(&stubAddr, "addr", ":5000", "listen address")
	stubCmd.Flags().StringVar(&stubConfig, "config", "", "stub config file (.yaml or .json)")
	rootCmd.AddCommand(stubCmd)
}
