package report_test

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/report"
)

// generateTime produces a time truncated to second precision.
func generateTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(1_000_000_000, 1_700_000_000).Draw(t, label+"_unix_sec")
	return time.Unix(sec, 0).UTC()
}

func generateScores(t *rapid.T, label string) map[string]float64 {
	scores := map[string]float64{}
	for _, d := range []string{"vata", "pitta", "kapha"} {
		if rapid.Bool().Draw(t, label+"_has_"+d) {
			scores[d] = float64(rapid.IntRange(0, 20).Draw(t, label+"_"+d))
		}
	}
	return scores
}

// generateReport produces a report with at least one record.
func generateReport(t *rapid.T) *report.Report {
	n := rapid.IntRange(1, 5).Draw(t, "num_records")
	recs := make([]api.Record, n)
	for i := range recs {
		hr := rapid.IntRange(40, 120).Draw(t, "rec_hr")
		raw, _ := json.Marshal(map[string]string{"hr": strconv.Itoa(hr), "morphology": "smooth"})
		recs[i] = api.Record{
			ID:          api.RecordID(rapid.StringMatching(`[1-9][0-9]{0,4}|r-[a-z]{3}`).Draw(t, "rec_id")),
			Timestamp:   api.Timestamp{Time: generateTime(t, "rec_ts")},
			ResultDosha: rapid.SampledFrom([]string{"vata", "pitta", "kapha"}).Draw(t, "rec_dosha"),
			RawInput:    raw,
			DoshaScores: generateScores(t, "rec_scores"),
		}
	}

	r := &report.Report{
		GeneratedAt: generateTime(t, "generated"),
		Server:      rapid.StringMatching(`http://[a-z]{1,10}:[0-9]{2,4}`).Draw(t, "server"),
		Account:     rapid.StringMatching(`[a-z]{1,8}@[a-z]{1,8}\.com`).Draw(t, "account"),
		Records:     recs,
	}
	if rapid.Bool().Draw(t, "has_analysis") {
		r.Analysis = &report.Analysis{
			Input: api.Measurement{HR: "72", HRV: "55", Amplitude: "medium", Morphology: "sharp"},
			Result: api.AnalysisResult{
				DominantDosha: "vata",
				Scores:        generateScores(t, "analysis_scores"),
			},
		}
	}
	return r
}

func compact(t *rapid.T, raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		t.Fatalf("compact %q: %v", raw, err)
	}
	return buf.String()
}

func assertSameReport(t *rapid.T, want, got *report.Report) {
	if !got.GeneratedAt.Equal(want.GeneratedAt) || got.Server != want.Server || got.Account != want.Account {
		t.Fatalf("header mismatch: want %+v, got %+v", want, got)
	}
	if len(got.Records) != len(want.Records) {
		t.Fatalf("records: want %d, got %d", len(want.Records), len(got.Records))
	}
	for i := range want.Records {
		w, g := want.Records[i], got.Records[i]
		if g.ID != w.ID || !g.Timestamp.Equal(w.Timestamp.Time) || g.ResultDosha != w.ResultDosha {
			t.Fatalf("record %d: want %+v, got %+v", i, w, g)
		}
		if compact(t, g.RawInput) != compact(t, w.RawInput) {
			t.Fatalf("record %d raw_input: want %s, got %s", i, w.RawInput, g.RawInput)
		}
		if len(g.DoshaScores) != len(w.DoshaScores) {
			t.Fatalf("record %d scores: want %v, got %v", i, w.DoshaScores, g.DoshaScores)
		}
		for k, v := range w.DoshaScores {
			if g.DoshaScores[k] != v {
				t.Fatalf("record %d score %s: want %v, got %v", i, k, v, g.DoshaScores[k])
			}
		}
	}
	if (want.Analysis == nil) != (got.Analysis == nil) {
		t.Fatalf("analysis presence: want %v, got %v", want.Analysis != nil, got.Analysis != nil)
	}
	if want.Analysis != nil && got.Analysis.Result.DominantDosha != want.Analysis.Result.DominantDosha {
		t.Fatalf("analysis: want %+v, got %+v", want.Analysis, got.Analysis)
	}
}

// Feature: ayurveda-now, Property 11: JSON report round trip
func TestJSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := generateReport(t)
		data, err := (&report.JSONRenderer{}).Render(r)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		got, err := report.Parse(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		assertSameReport(t, r, got)
	})
}

// Feature: ayurveda-now, Property 12: Markdown report round trip through the
// embedded payload, with every record visible in the readable part
func TestMarkdownRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := generateReport(t)
		data, err := (&report.MarkdownRenderer{}).Render(r)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		got, err := report.Parse(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		assertSameReport(t, r, got)

		md := string(data)
		for _, rec := range r.Records {
			if !strings.Contains(md, "### Record "+string(rec.ID)) {
				t.Fatalf("record %s missing from markdown", rec.ID)
			}
		}
	})
}

func TestMarkdownSections(t *testing.T) {
	r := &report.Report{
		GeneratedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Server:      "http://localhost:5000",
		Analysis: &report.Analysis{
			Input:  api.Measurement{HR: "72", HRV: "55", Amplitude: "medium", Morphology: "sharp"},
			Result: api.AnalysisResult{DominantDosha: "vata", Scores: map[string]float64{"vata": 5, "pitta": 2, "kapha": 1}},
		},
	}
	data, err := (&report.MarkdownRenderer{}).Render(r)
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)
	for _, want := range []string{
		"## Summary",
		"- Records: 0",
		"## Latest Analysis",
		"- Dominant dosha: **VATA**",
		"| kapha | 1 |",
		"_No records._",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "- Account:") {
		t.Error("empty account should be omitted")
	}
	// Scores are listed by dosha name.
	if strings.Index(md, "| kapha |") > strings.Index(md, "| pitta |") || strings.Index(md, "| pitta |") > strings.Index(md, "| vata |") {
		t.Errorf("scores not sorted:\n%s", md)
	}
}

func TestTextRenderer(t *testing.T) {
	r := &report.Report{Records: []api.Record{
		{ID: "1", ResultDosha: "pitta", Timestamp: api.Timestamp{Time: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}},
		{ID: "2", ResultDosha: "kapha"},
	}}
	data, err := (&report.TextRenderer{}).Render(r)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "PITTA") || !strings.Contains(out, "KAPHA") {
		t.Errorf("text output missing doshas: %q", out)
	}
	if !strings.Contains(out, "unknown time") {
		t.Errorf("zero timestamp should render as unknown time: %q", out)
	}

	empty, _ := (&report.TextRenderer{}).Render(&report.Report{})
	if string(empty) != "No records.\n" {
		t.Errorf("empty: got %q", empty)
	}
}

func TestRendererFor(t *testing.T) {
	for _, f := range []string{"json", "markdown", "md", "text", ""} {
		if _, err := report.RendererFor(f); err != nil {
			t.Errorf("RendererFor(%q): %v", f, err)
		}
	}
	if _, err := report.RendererFor("yaml"); err == nil {
		t.Error("RendererFor(yaml): expected error")
	}
}

func TestFormatRecordShowsIndentedInput(t *testing.T) {
	rec := &api.Record{ID: "7", ResultDosha: "vata", RawInput: json.RawMessage(`{"hr":"72"}`), DoshaScores: map[string]float64{"vata": 3}}
	out := report.FormatRecord(rec)
	if !strings.Contains(out, "{\n  \"hr\": \"72\"\n}") {
		t.Errorf("input not indented: %q", out)
	}
	if !strings.Contains(out, "vata") {
		t.Errorf("scores missing: %q", out)
	}
}
