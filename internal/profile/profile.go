// Package profile manages the user's persistent client profile.
// The profile is stored at ~/.config/ayurveda-now/profile.json and is created
// once via the interactive setup flow, then used to prefill commands.
package profile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoProfile is returned by Load when setup has not been run.
var ErrNoProfile = errors.New("profile not found, run 'ayurveda setup' to configure")

// Profile holds user-level preferences set during first-run setup.
type Profile struct {
	Email         string `json:"email"`          // prefilled on the login form
	ServerURL     string `json:"server_url"`     // overrides config when set
	DefaultFormat string `json:"default_format"` // "text" | "markdown" | "json"
	ExportDir     string `json:"export_dir"`     // default report directory
}

func profilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

// ConfigDir returns the client config directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ayurveda-now"), nil
}

// Exists reports whether a profile file is present on disk.
func Exists() bool {
	p, err := profilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads the profile from disk.
func Load() (*Profile, error) {
	p, err := profilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoProfile
		}
		return nil, err
	}
	var prof Profile
	if err := json.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("malformed profile at %s: %w", p, err)
	}
	return &prof, nil
}

// Save writes the profile to disk, creating the config directory if needed.
func Save(prof *Profile) error {
	p, err := profilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// RunSetup runs the interactive setup wizard over in/out and returns the
// resulting profile. If existing is non-nil, it is used as the default for
// each prompt (edit mode).
func RunSetup(in io.Reader, out io.Writer, existing *Profile) (*Profile, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	prof := &Profile{DefaultFormat: "text", ExportDir: "."}
	if existing != nil {
		*prof = *existing
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │  ayurveda now, first-time setup │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error

	prof.Email, err = ask("  Email used to sign in", prof.Email)
	if err != nil {
		return nil, err
	}

	prof.ServerURL, err = ask("  Server URL (blank keeps config value)", prof.ServerURL)
	if err != nil {
		return nil, err
	}

	format, err := ask("  Default output format (text/markdown/json)", prof.DefaultFormat)
	if err != nil {
		return nil, err
	}
	switch format {
	case "json", "markdown":
		prof.DefaultFormat = format
	default:
		prof.DefaultFormat = "text"
	}

	prof.ExportDir, err = ask("  Default export directory", prof.ExportDir)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(out)
	return prof, nil
}
