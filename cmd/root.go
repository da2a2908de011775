package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/config"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/logging"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/offline"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/profile"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/route"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// activeProfile holds the loaded user profile.
var activeProfile *profile.Profile

var (
	verbose    bool
	serverFlag string
)

// deps are the process-wide collaborators built from cfg.
type deps struct {
	logger   *zap.Logger
	level    zap.AtomicLevel
	closeLog func() error
	dataDir  string
	tokens   session.TokenStore
	machine  *session.Machine
	storage  offline.Storage
	cache    *offline.Cache
	client   *api.Client
}

var app *deps

var rootCmd = &cobra.Command{
	Use:           "ayurveda",
	Short:         "Pulse-based dosha self-assessment client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup check for the setup command itself.
		if cmd.Name() == "setup" {
			return nil
		}

		// First-run: profile missing → run setup wizard automatically.
		// Only do this for the interactive UI on a terminal.
		if !profile.Exists() && (!cmd.HasParent() || cmd.Name() == "ui") && interactive(cmd) {
			if err := runSetup(cmd, true); err != nil {
				return err
			}
		}

		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		}

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		// Profile values fill in config gaps, flags override both.
		if activeProfile != nil && activeProfile.ServerURL != "" {
			c.ServerURL = activeProfile.ServerURL
		}
		if serverFlag != "" {
			c.ServerURL = serverFlag
		}
		cfg = c

		return buildDeps(cmd, cmd.Name() != "stub")
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeDeps()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !interactive(cmd) {
			return cmd.Help()
		}
		return runUI(cmd, route.Default)
	},
}

// interactive reports whether the command reads from a terminal.
func interactive(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// buildDeps creates the logger and, when full is set, the session, the
// offline cache and the API client.
func buildDeps(cmd *cobra.Command, full bool) error {
	if err := closeDeps(); err != nil {
		return err
	}

	dataDir, err := session.DataDir()
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = filepath.Join(dataDir, "logs", "ayurveda.log")
	}
	logger, level, closeLog, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    logFile,
		Verbose: verbose,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	d := &deps{logger: logger, level: level, closeLog: closeLog, dataDir: dataDir}
	app = d
	if !full {
		return nil
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return err
	}

	d.tokens, err = session.NewTokenStoreAt(dataDir)
	if err != nil {
		return err
	}
	d.machine = session.NewMachine(d.tokens, logger.Named("session"))

	dbPath := cfg.CacheDB
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "cache.db")
	}
	d.storage, err = offline.OpenSQLite(dbPath)
	if err != nil {
		return fmt.Errorf("opening offline cache: %w", err)
	}
	d.cache, err = offline.New(cfg.CacheName, cfg.ServerURL, cfg.ShellURLs, d.storage,
		offline.WithLogger(logger.Named("offline")))
	if err != nil {
		return err
	}

	d.client = api.New(cfg.ServerURL,
		api.WithTimeout(timeout),
		api.WithTransport(d.cache),
		api.WithLogger(logger.Named("api")),
	)
	logger.Debug("client ready",
		zap.String("command", cmd.Name()),
		zap.String("server", cfg.ServerURL),
		zap.Stringer("session", d.machine.State()),
	)
	return nil
}

func closeDeps() error {
	if app == nil {
		return nil
	}
	d := app
	app = nil
	var err error
	if d.storage != nil {
		err = d.storage.Close()
	}
	if cerr := d.closeLog(); err == nil {
		err = cerr
	}
	return err
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	closeDeps()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// GetProfile returns the active user profile.
func GetProfile() *profile.Profile {
	return activeProfile
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also write logs to stderr")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "backend base URL (overrides config)")
}
