package cmd

import (
	"strings"
	"testing"
)

func TestCacheInstallAndStatus(t *testing.T) {
	withBackend(t)

	out := mustRun(t, "cache", "status")
	if !strings.Contains(out, "not installed") {
		t.Errorf("expected empty cache, got:\n%s", out)
	}

	out = mustRun(t, "cache", "install")
	if !strings.Contains(out, "Installed ayurveda-now-cache-v1 with 3 resource(s).") {
		t.Errorf("unexpected install output:\n%s", out)
	}

	out = mustRun(t, "cache", "status")
	if !strings.Contains(out, "active, 3 resource(s)") || !strings.Contains(out, "/manifest.json") {
		t.Errorf("unexpected cache status:\n%s", out)
	}

	out = mustRun(t, "status")
	if !strings.Contains(out, "Offline cache: ayurveda-now-cache-v1 (active)") {
		t.Errorf("status does not report the cache:\n%s", out)
	}
}

func TestCacheNameFromEnvironmentIsANewGeneration(t *testing.T) {
	withBackend(t)
	mustRun(t, "cache", "install")

	t.Setenv("AYURVEDA_CACHE_NAME", "ayurveda-now-cache-v2")
	out := mustRun(t, "cache", "status")
	if !strings.Contains(out, "ayurveda-now-cache-v2: not installed") {
		t.Errorf("expected the new generation to start uninstalled, got:\n%s", out)
	}
}
