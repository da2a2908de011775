package report

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
)

const (
	versionSentinel = "<!-- ayurveda-report-version: 1 -->"
	dataPrefix      = "<!-- ayurveda-data: "
	dataSuffix      = " -->"
)

// timeLayout is used for every human-readable timestamp.
const timeLayout = "2006-01-02 15:04:05 MST"

// Renderer serializes a Report to bytes.
type Renderer interface {
	Render(r *Report) ([]byte, error)
}

// RendererFor returns the renderer for format: "json", "markdown" or "text".
func RendererFor(format string) (Renderer, error) {
	switch format {
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	case "text", "":
		return &TextRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want text, markdown or json)", format)
}

// JSONRenderer renders a Report as indented JSON.
type JSONRenderer struct{}

func (j *JSONRenderer) Render(r *Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// MarkdownRenderer renders a Report as human-readable Markdown with an
// embedded base64 JSON payload for lossless round-trip parsing.
type MarkdownRenderer struct{}

func (m *MarkdownRenderer) Render(r *Report) ([]byte, error) {
	jsonBytes, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBytes)

	var sb strings.Builder

	sb.WriteString(versionSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, encoded, dataSuffix)

	fmt.Fprintf(&sb, "# Ayurveda Now report, %s\n\n", r.GeneratedAt.Format(timeLayout))

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Server: %s\n", r.Server)
	if r.Account != "" {
		fmt.Fprintf(&sb, "- Account: %s\n", r.Account)
	}
	fmt.Fprintf(&sb, "- Records: %d\n\n", len(r.Records))

	if r.Analysis != nil {
		sb.WriteString("## Latest Analysis\n\n")
		in := r.Analysis.Input
		fmt.Fprintf(&sb, "- Input: hr %s, hrv %s, amplitude %s, morphology %s\n", in.HR, in.HRV, in.Amplitude, in.Morphology)
		fmt.Fprintf(&sb, "- Dominant dosha: **%s**\n\n", strings.ToUpper(r.Analysis.Result.DominantDosha))
		writeScoreTable(&sb, r.Analysis.Result.Scores)
		sb.WriteString("\n")
	}

	sb.WriteString("## History\n\n")
	if len(r.Records) == 0 {
		sb.WriteString("_No records._\n\n")
		return []byte(sb.String()), nil
	}
	sb.WriteString("| ID | Time | Dominant dosha |\n")
	sb.WriteString("|----|------|----------------|\n")
	for _, rec := range r.Records {
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", rec.ID, formatTime(rec.Timestamp), strings.ToUpper(rec.ResultDosha))
	}
	sb.WriteString("\n")

	sb.WriteString("## Details\n\n")
	for _, rec := range r.Records {
		fmt.Fprintf(&sb, "### Record %s\n\n", rec.ID)
		fmt.Fprintf(&sb, "- Time: %s\n", formatTime(rec.Timestamp))
		fmt.Fprintf(&sb, "- Dominant dosha: **%s**\n\n", strings.ToUpper(rec.ResultDosha))
		sb.WriteString("```json\n")
		sb.WriteString(PrettyJSON(rec.RawInput))
		sb.WriteString("\n```\n\n")
		writeScoreTable(&sb, rec.DoshaScores)
		sb.WriteString("\n")
	}

	return []byte(sb.String()), nil
}

func writeScoreTable(sb *strings.Builder, scores map[string]float64) {
	if len(scores) == 0 {
		sb.WriteString("_No scores._\n")
		return
	}
	sb.WriteString("| Dosha | Score |\n")
	sb.WriteString("|-------|-------|\n")
	for _, s := range api.SortedScores(scores) {
		fmt.Fprintf(sb, "| %s | %g |\n", s.Dosha, s.Value)
	}
}

// TextRenderer renders a Report for the terminal.
type TextRenderer struct{}

func (t *TextRenderer) Render(r *Report) ([]byte, error) {
	var sb strings.Builder
	if r.Analysis != nil {
		sb.WriteString(FormatAnalysis(&r.Analysis.Result))
		if len(r.Records) > 0 {
			sb.WriteString("\n")
		}
	}
	if r.Analysis == nil || len(r.Records) > 0 {
		sb.WriteString(FormatRecords(r.Records))
	}
	return []byte(sb.String()), nil
}

// FormatAnalysis renders one analysis result as plain text.
func FormatAnalysis(res *api.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dominant dosha: %s\n", strings.ToUpper(res.DominantDosha))
	for _, s := range api.SortedScores(res.Scores) {
		fmt.Fprintf(&sb, "  %-8s %g\n", s.Dosha, s.Value)
	}
	return sb.String()
}

// FormatRecords renders the history list as plain text.
func FormatRecords(recs []api.Record) string {
	if len(recs) == 0 {
		return "No records.\n"
	}
	var sb strings.Builder
	for _, rec := range recs {
		fmt.Fprintf(&sb, "%-6s %-24s %s\n", rec.ID, formatTime(rec.Timestamp), strings.ToUpper(rec.ResultDosha))
	}
	return sb.String()
}

// FormatRecord renders one record's details as plain text.
func FormatRecord(rec *api.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Record %s\n", rec.ID)
	fmt.Fprintf(&sb, "Time: %s\n", formatTime(rec.Timestamp))
	fmt.Fprintf(&sb, "Dominant dosha: %s\n", strings.ToUpper(rec.ResultDosha))
	sb.WriteString("Input:\n")
	sb.WriteString(PrettyJSON(rec.RawInput))
	sb.WriteString("\nScores:\n")
	for _, s := range api.SortedScores(rec.DoshaScores) {
		fmt.Fprintf(&sb, "  %-8s %g\n", s.Dosha, s.Value)
	}
	return sb.String()
}

// PrettyJSON indents raw JSON, falling back to the raw text.
func PrettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func formatTime(ts api.Timestamp) string {
	if ts.IsZero() {
		return "unknown time"
	}
	return ts.Local().Format(timeLayout)
}
