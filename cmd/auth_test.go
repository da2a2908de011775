package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoginStatusLogout(t *testing.T) {
	tmp := withBackend(t)

	out := mustRun(t, "login", "--email", "a@b.c", "--password", "pw")
	if !strings.Contains(out, "Signed in as a@b.c") {
		t.Errorf("unexpected login output:\n%s", out)
	}
	tokenPath := filepath.Join(tmp, "data", "ayurveda-now", "token.json")
	if _, err := os.Stat(tokenPath); err != nil {
		t.Fatalf("token file not written: %v", err)
	}

	out = mustRun(t, "status")
	for _, want := range []string{"Backend: ok", "Session: authenticated", "Account: a@b.c"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "logout")
	if !strings.Contains(out, "Signed out.") {
		t.Errorf("unexpected logout output:\n%s", out)
	}
	if _, err := os.Stat(tokenPath); !os.IsNotExist(err) {
		t.Errorf("token file still present after logout: %v", err)
	}

	out = mustRun(t, "status")
	if !strings.Contains(out, "Session: anonymous") {
		t.Errorf("expected anonymous session, got:\n%s", out)
	}
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	withBackend(t)
	_, err := run(t, "", "login", "--email", "a@b.c", "--password", "nope")
	if err == nil || err.Error() != "Invalid credentials" {
		t.Errorf("expected server message, got %v", err)
	}
}

func TestRegisterReadsPasswordFromStdin(t *testing.T) {
	withBackend(t)

	out, err := run(t, "new@b.c\nsecret\n", "register")
	if err != nil {
		t.Fatalf("register: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Account new@b.c created") {
		t.Errorf("unexpected register output:\n%s", out)
	}

	if _, err := run(t, "", "login", "--email", "new@b.c", "--password", "secret"); err != nil {
		t.Errorf("login with new account: %v", err)
	}

	_, err = run(t, "", "register", "--email", "new@b.c", "--password", "again")
	if err == nil || err.Error() != "Email already registered" {
		t.Errorf("expected duplicate registration error, got %v", err)
	}
}
