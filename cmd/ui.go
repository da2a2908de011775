package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/config"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/logging"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/route"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:       "ui [login|analyze|history]",
	Short:     "Open the interactive terminal UI",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"login", "analyze", "history"},
	RunE: func(cmd *cobra.Command, args []string) error {
		requested := route.Default
		if len(args) == 1 {
			requested = "/" + args[0]
		}
		return runUI(cmd, requested)
	},
}

func runUI(cmd *cobra.Command, requested string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	log := app.logger.Named("ui")

	// Token changes made by other processes, coalesced.
	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		err := session.Watch(ctx, app.dataDir, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err != nil {
			log.Warn("token watch stopped", zap.Error(err))
		}
	}()

	if path, err := config.GlobalPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			err := config.Watch(path, log, func(c config.Config) {
				if err := logging.SetLevel(app.level, c.LogLevel); err != nil {
					log.Warn("ignoring log level from reloaded config", zap.Error(err))
				}
			})
			if err != nil {
				log.Warn("config watch unavailable", zap.Error(err))
			}
		}
	}

	var email string
	if activeProfile != nil {
		email = activeProfile.Email
	}
	err := tui.Run(ctx, tui.Deps{
		Client:  app.client,
		Machine: app.machine,
		Tokens:  app.tokens,
		Logger:  app.logger,
		Email:   email,
		Changes: changes,
	}, requested)
	if err != nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(uiCmd)
}
