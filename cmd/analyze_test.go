package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAnalyzeRequiresLogin(t *testing.T) {
	withBackend(t)
	_, err := run(t, "", "analyze", "--simulate")
	if err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Errorf("expected sign-in error, got %v", err)
	}
}

func TestAnalyzeReportsEveryInvalidField(t *testing.T) {
	withBackend(t)
	login(t)

	_, err := run(t, "", "analyze", "--hr", "abc", "--hrv", "50", "--amplitude", "high", "--morphology", "round")
	if err == nil {
		t.Fatal("expected a validation error")
	}
	for _, want := range []string{"hr: enter a number", "morphology: select a morphology"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
	if strings.Contains(err.Error(), "hrv") {
		t.Errorf("valid field reported: %q", err)
	}
}

func TestAnalyzeSavesAndHistoryShowsIt(t *testing.T) {
	tmp := withBackend(t)
	login(t)

	out := mustRun(t, "analyze", "--hr", "60", "--hrv", "30", "--amplitude", "low", "--morphology", "irregular")
	if !strings.Contains(out, "Dominant dosha:") || !strings.Contains(out, "Saved as record 1.") {
		t.Errorf("unexpected analyze output:\n%s", out)
	}

	out = mustRun(t, "analyze", "--simulate", "--format", "json")
	if !strings.Contains(out, `"dominant_dosha"`) {
		t.Errorf("expected a JSON report, got:\n%s", out)
	}

	out = mustRun(t, "history")
	if lines := strings.Count(strings.TrimSpace(strings.Split(out, "\n\n")[0]), "\n") + 1; lines != 2 {
		t.Errorf("expected 2 records, got %d:\n%s", lines, out)
	}

	out = mustRun(t, "history", "--select", "1")
	if !strings.Contains(out, "Record 1") || !strings.Contains(out, `"morphology": "irregular"`) {
		t.Errorf("unexpected record detail:\n%s", out)
	}

	if _, err := run(t, "", "history", "--select", "99"); err == nil || !strings.Contains(err.Error(), "no record with id 99") {
		t.Errorf("expected missing record error, got %v", err)
	}

	for _, name := range []string{"history.md", "history.json"} {
		out = mustRun(t, "history", "--export", name)
		if !strings.Contains(out, "Exported 2 record(s)") {
			t.Errorf("unexpected export output:\n%s", out)
		}
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("export not written: %v", err)
		}
		out = mustRun(t, "view", "--plain", path)
		if n := strings.Count(strings.TrimSpace(out), "\n") + 1; n != 2 {
			t.Errorf("%s: expected 2 records in view output, got %d:\n%s", name, n, out)
		}
	}
}

func TestHistoryWithoutLoginNeedsAuthorization(t *testing.T) {
	withBackend(t)
	_, err := run(t, "", "history")
	if err == nil || err.Error() != "authorization required" {
		t.Errorf("expected authorization error, got %v", err)
	}
}

func TestViewMissingFile(t *testing.T) {
	withBackend(t)
	_, err := run(t, "", "view", "--plain", "nope.md")
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Errorf("expected file not found, got %v", err)
	}
}
