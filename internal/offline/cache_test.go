package offline_test

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/offline"
)

type shellServer struct {
	*httptest.Server
	hits atomic.Int32
	fail atomic.Bool
}

func newShellServer(t *testing.T) *shellServer {
	s := &shellServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.fail.Load() && r.URL.Path == "/manifest.json" {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		switch r.URL.Path {
		case "/", "/index.html", "/manifest.json", "/records":
			w.Header().Set("Content-Type", "text/plain")
			io.WriteString(w, "body of "+r.URL.Path)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func get(t *testing.T, rt http.RoundTripper, url string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestInstalledShellServedWithoutNetwork(t *testing.T) {
	srv := newShellServer(t)
	c, err := offline.New(offline.DefaultName, srv.URL, offline.DefaultShell, offline.NewMemoryStorage())
	require.NoError(t, err)
	assert.False(t, c.Active())

	require.NoError(t, c.Install(context.Background()))
	assert.True(t, c.Active())
	srv.Close()

	for _, p := range offline.DefaultShell {
		resp, body := get(t, c, srv.URL+p)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "body of "+p, body)
		assert.Equal(t, "hit", resp.Header.Get(offline.HitHeader))
	}

	// Fragments do not affect matching.
	_, body := get(t, c, srv.URL+"/index.html#top")
	assert.Equal(t, "body of /index.html", body)
}

func TestUnlistedRequestsGoToNetwork(t *testing.T) {
	srv := newShellServer(t)
	c, err := offline.New(offline.DefaultName, srv.URL, offline.DefaultShell, offline.NewMemoryStorage())
	require.NoError(t, err)
	require.NoError(t, c.Install(context.Background()))

	before := srv.hits.Load()
	resp, body := get(t, c, srv.URL+"/records")
	assert.Equal(t, "body of /records", body)
	assert.Empty(t, resp.Header.Get(offline.HitHeader))
	assert.Equal(t, before+1, srv.hits.Load())

	// Non-GET requests for a cached URL still reach the network.
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/", nil)
	require.NoError(t, err)
	resp, err = c.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, before+2, srv.hits.Load())
}

func TestFailedInstallStoresNothing(t *testing.T) {
	srv := newShellServer(t)
	srv.fail.Store(true)

	storage := offline.NewMemoryStorage()
	c, err := offline.New(offline.DefaultName, srv.URL, offline.DefaultShell, storage)
	require.NoError(t, err)

	require.Error(t, c.Install(context.Background()))
	assert.False(t, c.Active())

	keys, err := c.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	before := srv.hits.Load()
	get(t, c, srv.URL+"/")
	assert.Equal(t, before+1, srv.hits.Load())
}

func TestNewGenerationSupersedesOld(t *testing.T) {
	srv := newShellServer(t)
	storage := offline.NewMemoryStorage()

	v1, err := offline.New("ayurveda-now-cache-v1", srv.URL, offline.DefaultShell, storage)
	require.NoError(t, err)
	require.NoError(t, v1.Install(context.Background()))

	v2, err := offline.New("ayurveda-now-cache-v2", srv.URL, []string{"/"}, storage)
	require.NoError(t, err)
	require.NoError(t, v2.Install(context.Background()))

	oldKeys, err := v1.Keys()
	require.NoError(t, err)
	assert.Empty(t, oldKeys)

	newKeys, err := v2.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/"}, newKeys)

	name, ok, err := storage.Active()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ayurveda-now-cache-v2", name)
}

func TestFailedUpgradeKeepsPreviousGeneration(t *testing.T) {
	srv := newShellServer(t)
	storage := offline.NewMemoryStorage()

	v1, err := offline.New("ayurveda-now-cache-v1", srv.URL, offline.DefaultShell, storage)
	require.NoError(t, err)
	require.NoError(t, v1.Install(context.Background()))

	srv.fail.Store(true)
	v2, err := offline.New("ayurveda-now-cache-v2", srv.URL, offline.DefaultShell, storage)
	require.NoError(t, err)
	require.Error(t, v2.Install(context.Background()))

	name, _, err := storage.Active()
	require.NoError(t, err)
	assert.Equal(t, "ayurveda-now-cache-v1", name)

	keys, err := v1.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	// v1 keeps answering through the not yet installed v2.
	assert.False(t, v2.Active())
	before := srv.hits.Load()
	resp, body := get(t, v2, srv.URL+"/")
	assert.Equal(t, "body of /", body)
	assert.Equal(t, "hit", resp.Header.Get(offline.HitHeader))
	assert.Equal(t, before, srv.hits.Load())
}

func TestPrefixedBaseURLIsCachedAsRequested(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/app/", "/app/index.html", "/app/manifest.json":
			io.WriteString(w, "body of "+r.URL.Path)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	base := srv.URL + "/app/"
	c, err := offline.New(offline.DefaultName, base, offline.DefaultShell, offline.NewMemoryStorage())
	require.NoError(t, err)
	require.NoError(t, c.Install(context.Background()))

	keys, err := c.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/app/", srv.URL + "/app/index.html", srv.URL + "/app/manifest.json"}, keys)

	client := api.New(base, api.WithTransport(c))
	before := hits.Load()
	body, err := client.Shell(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "body of /app/", string(body))
	assert.Equal(t, before, hits.Load())
}

func TestSQLiteStoragePersistsAcrossOpens(t *testing.T) {
	srv := newShellServer(t)
	path := filepath.Join(t.TempDir(), "cache.db")

	storage, err := offline.OpenSQLite(path)
	require.NoError(t, err)
	c, err := offline.New(offline.DefaultName, srv.URL, offline.DefaultShell, storage)
	require.NoError(t, err)
	require.NoError(t, c.Install(context.Background()))
	require.NoError(t, storage.Close())
	srv.Close()

	reopened, err := offline.OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	again, err := offline.New(offline.DefaultName, srv.URL, offline.DefaultShell, reopened)
	require.NoError(t, err)
	assert.True(t, again.Active())

	resp, body := get(t, again, srv.URL+"/manifest.json")
	assert.Equal(t, "body of /manifest.json", body)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
}

func TestSQLiteSchemaAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	for range 2 {
		storage, err := offline.OpenSQLite(path)
		require.NoError(t, err)
		require.NoError(t, storage.Close())
	}

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)

	rows, err := db.Query(`SELECT name FROM pragma_table_info('cache_entries') ORDER BY cid`)
	require.NoError(t, err)
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		cols = append(cols, c)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"generation", "url", "status", "headers", "body", "stored_at"}, cols)
}

// Feature: ayurveda-now, Property 7: only the newest activated generation survives
func TestActivateKeepsOnlyOneGeneration(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		storage := offline.NewMemoryStorage()
		names := rapid.SliceOfN(rapid.StringMatching(`gen-[a-z0-9]{1,6}`), 1, 8).Draw(t, "names")

		for _, n := range names {
			if err := storage.Put(n, map[string]offline.Entry{"u-" + n: {Status: 200}}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if err := storage.Activate(n); err != nil {
				t.Fatalf("activate: %v", err)
			}
		}

		last := names[len(names)-1]
		active, ok, _ := storage.Active()
		if !ok || active != last {
			t.Fatalf("active = %q, want %q", active, last)
		}
		for _, n := range names {
			keys, _ := storage.Keys(n)
			if n == last && len(keys) != 1 {
				t.Fatalf("active generation %q lost its entry", n)
			}
			if n != last && len(keys) != 0 {
				t.Fatalf("generation %q survived activation of %q", n, last)
			}
		}
	})
}
