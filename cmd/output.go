package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/report"
)

// outputFormat returns flag, else the profile default, else text.
func outputFormat(flag string) (string, error) {
	format := flag
	if format == "" && activeProfile != nil {
		format = activeProfile.DefaultFormat
	}
	switch format {
	case "":
		return "text", nil
	case "text", "markdown", "json":
		return format, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, markdown or json)", format)
}

func newReport() *report.Report {
	r := &report.Report{GeneratedAt: time.Now().UTC(), Server: cfg.ServerURL}
	if activeProfile != nil {
		r.Account = activeProfile.Email
	}
	return r
}

// writeOutput writes text for the text format and the rendered report
// otherwise.
func writeOutput(w io.Writer, format string, r *report.Report, text string) error {
	if format == "text" {
		_, err := io.WriteString(w, text)
		return err
	}
	renderer, err := report.RendererFor(format)
	if err != nil {
		return err
	}
	data, err := renderer.Render(r)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
