package route

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
)

func TestResolveTable(t *testing.T) {
	tests := []struct {
		name     string
		state    session.State
		path     string
		want     string
		redirect bool
	}{
		{"anonymous analyze", session.Anonymous, "/analyze", Login, true},
		{"anonymous history", session.Anonymous, "/history", Login, true},
		{"anonymous login", session.Anonymous, "/login", Login, false},
		{"authenticated login", session.Authenticated, "/login", Analyze, true},
		{"authenticated analyze", session.Authenticated, "/analyze", Analyze, false},
		{"authenticated history", session.Authenticated, "/history", History, false},
		{"anonymous unknown", session.Anonymous, "/nope", Login, true},
		{"authenticated unknown", session.Authenticated, "/nope", Analyze, true},
		{"authenticated root", session.Authenticated, "/", Analyze, true},
		{"anonymous empty", session.Anonymous, "", Login, true},
		{"trailing slash", session.Authenticated, "/history/", History, true},
		{"query string", session.Anonymous, "/login?next=/history", Login, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.state, tt.path)
			if got.Path != tt.want {
				t.Errorf("Path: got %q, want %q", got.Path, tt.want)
			}
			if got.Redirected != tt.redirect {
				t.Errorf("Redirected: got %v, want %v", got.Redirected, tt.redirect)
			}
		})
	}
}

// Feature: ayurveda-now, Property 4: the guard never shows a protected view anonymously
func TestResolveNeverLeaksProtectedViews(t *testing.T) {
	paths := rapid.OneOf(
		rapid.SampledFrom([]string{Login, Analyze, History, "/", ""}),
		rapid.StringMatching(`/[a-z/]{0,12}`),
	)
	rapid.Check(t, func(t *rapid.T) {
		state := rapid.SampledFrom([]session.State{session.Anonymous, session.Authenticated}).Draw(t, "state")
		path := paths.Draw(t, "path")

		d := Resolve(state, path)
		switch state {
		case session.Anonymous:
			if Protected(d.Path) {
				t.Fatalf("anonymous session landed on protected view %q (requested %q)", d.Path, path)
			}
			if d.Path != Login {
				t.Fatalf("anonymous session landed on %q, want %q", d.Path, Login)
			}
		case session.Authenticated:
			if d.Path == Login {
				t.Fatalf("authenticated session landed on the login view (requested %q)", path)
			}
		}
		if d.Redirected != (d.Path != path) {
			t.Fatalf("Redirected=%v for %q -> %q", d.Redirected, path, d.Path)
		}

		// Resolving the outcome again is stable.
		if again := Resolve(state, d.Path); again.Redirected {
			t.Fatalf("resolved view %q redirected again to %q", d.Path, again.Path)
		}
	})
}
