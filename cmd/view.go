package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/report"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "View an exported report file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		r, err := report.Parse(data)
		if err != nil {
			return err
		}

		if plainOutput {
			out, err := (&report.TextRenderer{}).Render(r)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}
		return tui.RunReport(r, path)
	},
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
