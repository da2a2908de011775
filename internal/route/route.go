// Package route decides which view a navigation attempt lands on.
package route

import (
	"strings"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
)

// View paths.
const (
	Login   = "/login"
	Analyze = "/analyze"
	History = "/history"

	// Default is the view an authenticated session lands on.
	Default = Analyze
)

// protected lists the paths that require an authenticated session.
var protected = map[string]bool{
	Analyze: true,
	History: true,
}

// Decision is the outcome of a navigation attempt.
type Decision struct {
	Path       string // the view to show
	Redirected bool   // true when Path differs from the requested path
}

// Resolve maps a requested path to the view that may be shown for state.
// It holds no state and must be called again on every navigation and every
// session transition.
func Resolve(state session.State, requested string) Decision {
	path := normalize(requested)
	authed := state == session.Authenticated

	var target string
	switch {
	case path == Login:
		target = Login
		if authed {
			target = Default
		}
	case protected[path]:
		target = path
		if !authed {
			target = Login
		}
	default:
		target = Login
		if authed {
			target = Default
		}
	}
	return Decision{Path: target, Redirected: target != requested}
}

// Protected reports whether path requires an authenticated session.
func Protected(path string) bool {
	return protected[normalize(path)]
}

// normalize strips a query string and trailing slashes.
func normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
