package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the offline copy of the application shell",
}

var cacheInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Fetch the shell resources and make this cache generation active",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.cache.Install(cmd.Context()); err != nil {
			return err
		}
		keys, err := app.cache.Keys()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed %s with %d resource(s).\n", app.cache.Name(), len(keys))
		return nil
	},
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List the resources held by the active cache generation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if !app.cache.Active() {
			fmt.Fprintf(out, "%s: not installed, run 'ayurveda cache install'\n", app.cache.Name())
			return nil
		}
		keys, err := app.cache.Keys()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: active, %d resource(s)\n", app.cache.Name(), len(keys))
		for _, k := range keys {
			fmt.Fprintf(out, "  %s\n", k)
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInstallCmd, cacheStatusCmd)
	rootCmd.AddCommand(cacheCmd)
}
