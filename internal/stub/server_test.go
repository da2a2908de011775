package stub_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/stub"
)

func newStub(t *testing.T, cfg *stub.Config) (*api.Client, *httptest.Server) {
	t.Helper()
	if cfg == nil {
		cfg = stub.DefaultConfig()
	}
	cfg.BcryptCost = bcrypt.MinCost
	s, err := stub.New(cfg, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return api.New(srv.URL), srv
}

func TestRegisterLoginAndHistory(t *testing.T) {
	client, _ := newStub(t, nil)
	ctx := context.Background()
	creds := api.Credentials{Email: "a@b.c", Password: "pw"}

	require.NoError(t, client.Register(ctx, creds))

	err := client.Register(ctx, creds)
	assert.Equal(t, "Email already registered", api.Message(err, "x"))

	_, err = client.Login(ctx, api.Credentials{Email: "a@b.c", Password: "wrong"})
	assert.Equal(t, "Invalid credentials", api.Message(err, "x"))

	token, err := client.Login(ctx, creds)
	require.NoError(t, err)
	store := session.NewMemoryTokenStore()
	require.NoError(t, store.Set(token))
	src := session.TokenSource(store)

	me, err := client.Me(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", me.Email)
	assert.Equal(t, api.RecordID("1"), me.ID)

	recs, err := client.Records(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, recs)

	m := api.Measurement{HR: "95", HRV: "70", Amplitude: "high", Morphology: "irregular"}
	res, err := client.Analyze(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, "vata", res.DominantDosha)
	assert.Equal(t, 8.0, res.Scores["vata"])

	first, err := client.SaveRecord(ctx, src, m, res)
	require.NoError(t, err)
	second, err := client.SaveRecord(ctx, src, api.Measurement{HR: "60", HRV: "30", Amplitude: "low", Morphology: "smooth"},
		&api.AnalysisResult{DominantDosha: "kapha", Scores: map[string]float64{"kapha": 8}})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	recs, err = client.Records(ctx, src)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Newest first.
	assert.Equal(t, second, recs[0].ID)
	assert.Equal(t, "kapha", recs[0].ResultDosha)
	assert.False(t, recs[0].Timestamp.IsZero())
	assert.JSONEq(t, `{"hr":"95","hrv":"70","amplitude":"high","morphology":"irregular"}`, string(recs[1].RawInput))
}

func TestRecordsRequireToken(t *testing.T) {
	client, _ := newStub(t, nil)
	ctx := context.Background()

	store := session.NewMemoryTokenStore()
	require.NoError(t, store.Set("not-issued"))
	_, err := client.Records(ctx, session.TokenSource(store))

	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	// The JWT-style body has no "error" key, so callers fall back.
	assert.Equal(t, "fallback", api.Message(err, "fallback"))
}

func TestAnalyzeDoesNotRecord(t *testing.T) {
	client, srv := newStub(t, nil)
	ctx := context.Background()
	creds := api.Credentials{Email: "a@b.c", Password: "pw"}
	require.NoError(t, client.Register(ctx, creds))
	token, err := client.Login(ctx, creds)
	require.NoError(t, err)

	body := strings.NewReader(`{"hr":"95","hrv":"70","amplitude":"high","morphology":"irregular"}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/analyze", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	store := session.NewMemoryTokenStore()
	require.NoError(t, store.Set(token))
	recs, err := client.Records(ctx, session.TokenSource(store))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestAnalyzeValidation(t *testing.T) {
	client, _ := newStub(t, nil)
	ctx := context.Background()

	_, err := client.Analyze(ctx, api.Measurement{HR: "fast", HRV: "50", Amplitude: "low", Morphology: "smooth"})
	assert.Equal(t, "Parameters must be numeric", api.Message(err, "x"))
}

func TestCannedResultAndBanner(t *testing.T) {
	cfg := stub.DefaultConfig()
	cfg.Result = &api.AnalysisResult{DominantDosha: "vata", Scores: map[string]float64{"vata": 5, "pitta": 2, "kapha": 1}}
	cfg.Users = []stub.User{{Email: "seed@b.c", Password: "pw"}}
	client, _ := newStub(t, cfg)
	ctx := context.Background()

	res, err := client.Analyze(ctx, api.Measurement{HR: "72", HRV: "55", Amplitude: "medium", Morphology: "sharp"})
	require.NoError(t, err)
	assert.Equal(t, cfg.Result.Scores, res.Scores)

	_, err = client.Login(ctx, api.Credentials{Email: "seed@b.c", Password: "pw"})
	require.NoError(t, err)

	body, err := client.Shell(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, stub.DefaultBanner, string(body))

	for _, p := range []string{"/index.html", "/manifest.json"} {
		_, err := client.Shell(ctx, p)
		assert.NoError(t, err, p)
	}
	assert.NoError(t, client.Health(ctx))
}

func TestRequestsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := stub.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	s, err := stub.New(cfg, zap.New(core))
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	_, err = api.New(srv.URL).Login(context.Background(), api.Credentials{Email: "x@y.z", Password: "pw"})
	require.Error(t, err)

	entries := logs.FilterMessage("client error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusUnauthorized), entries[0].ContextMap()["status"])
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
}

func TestServeStopsOnCancel(t *testing.T) {
	s, err := stub.New(nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
banner: hello
bcrypt_cost: 4
result:
  dominant_dosha: pitta
  scores:
    vata: 1
    pitta: 6
    kapha: 2
users:
  - email: a@b.c
    password: pw
`), 0o644))

	cfg, err := stub.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", cfg.Banner)
	assert.Equal(t, "pitta", cfg.Result.DominantDosha)
	assert.Equal(t, 6.0, cfg.Result.Scores["pitta"])
	require.Len(t, cfg.Users, 1)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("result:\n  dominant_dosha: fire\n"), 0o644))
	_, err = stub.LoadConfig(bad)
	assert.ErrorContains(t, err, "unknown dosha")

	_, err = stub.LoadConfig(filepath.Join(dir, "stub.toml"))
	assert.Error(t, err)
}
