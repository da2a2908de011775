package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/history"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/report"
)

var (
	historySelect string
	historyExport string
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past analyses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(historyFormat)
		if err != nil {
			return err
		}

		f := history.NewFetcher(app.client, app.tokens, app.logger.Named("history"))
		f.Mount(cmd.Context())
		snap := f.Snapshot()
		if snap.Status == history.Failed {
			return errors.New(snap.Message)
		}

		r := newReport()
		r.Records = snap.Records
		text := report.FormatRecords(snap.Records)

		if historySelect != "" {
			if !f.Select(api.RecordID(historySelect)) {
				return fmt.Errorf("no record with id %s", historySelect)
			}
			sel := f.Snapshot().Selected
			r.Records = []api.Record{*sel}
			text = report.FormatRecord(sel)
		}

		if historyExport != "" {
			return exportReport(cmd, r)
		}
		return writeOutput(cmd.OutOrStdout(), format, r, text)
	},
}

// exportReport writes r to the --export path: JSON for a .json file,
// Markdown otherwise. Relative paths land in the profile's export dir.
func exportReport(cmd *cobra.Command, r *report.Report) error {
	path := historyExport
	if !filepath.IsAbs(path) && activeProfile != nil && activeProfile.ExportDir != "" {
		path = filepath.Join(activeProfile.ExportDir, path)
	}
	format := "markdown"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}

	var buf bytes.Buffer
	if err := writeOutput(&buf, format, r, ""); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d record(s) to %s\n", len(r.Records), path)
	return nil
}

func init() {
	historyCmd.Flags().StringVar(&historySelect, "select", "", "show the details of one record")
	historyCmd.Flags().StringVar(&historyExport, "export", "", "write the records to a report file (.md or .json)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "", "output format: text, markdown or json")
	rootCmd.AddCommand(historyCmd)
}
