// Package stub is an in-memory development backend that answers the same
// endpoints as the real assessment server, so the client can be exercised
// end to end without it.
package stub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
)

// naiveLayout matches the timestamps of the reference backend: no offset,
// microseconds, always UTC.
const naiveLayout = "2006-01-02T15:04:05.000000"

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Ayurveda Now</title><link rel="manifest" href="/manifest.json"></head>
<body><div id="root"></div></body>
</html>
`

const manifestJSON = `{
  "short_name": "Ayurveda Now",
  "name": "Ayurveda Now pulse assessment",
  "start_url": "/",
  "display": "standalone"
}
`

type account struct {
	id      int
	email   string
	hash    []byte
	records []record
}

type record struct {
	id        int
	timestamp time.Time
	rawInput  json.RawMessage
	scores    map[string]float64
	dosha     string
}

// Server is the stub backend.
type Server struct {
	config *Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	accounts map[string]*account // by email
	tokens   map[string]string   // token -> email
	nextUser int
	nextRec  int
}

// New returns a stub with config's users registered. A nil config means
// DefaultConfig.
func New(config *Config, logger *zap.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Banner == "" {
		config.Banner = DefaultBanner
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}

	s := &Server{
		config:   config,
		logger:   logger,
		now:      time.Now,
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
	}
	for _, u := range config.Users {
		if _, err := s.register(u.Email, u.Password); err != nil {
			return nil, fmt.Errorf("register %s: %w", u.Email, err)
		}
	}
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.HandleFunc("/", s.handleBanner).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleStatic("text/html; charset=utf-8", indexHTML)).Methods(http.MethodGet)
	r.HandleFunc("/manifest.json", s.handleStatic("application/json", manifestJSON)).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/me", s.authenticated(s.handleMe)).Methods(http.MethodGet)
	r.HandleFunc("/records", s.authenticated(s.handleRecords)).Methods(http.MethodGet)
	r.HandleFunc("/records", s.authenticated(s.handleAddRecord)).Methods(http.MethodPost)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("stub backend listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
		}
		switch {
		case rec.status >= 500:
			s.logger.Error("server error", fields...)
		case rec.status >= 400:
			s.logger.Warn("client error", fields...)
		default:
			s.logger.Debug("request processed", fields...)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.config.Banner)
}

func (s *Server) handleStatic(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		fmt.Fprint(w, body)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "OK")
}

func decodeCredentials(r *http.Request) (api.Credentials, bool) {
	var c api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, false
	}
	return c, c.Email != "" && c.Password != ""
}

var errDuplicate = errors.New("email already registered")

func (s *Server) register(email, password string) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[email]; ok {
		return nil, errDuplicate
	}
	s.nextUser++
	a := &account{id: s.nextUser, email: email, hash: hash}
	s.accounts[email] = a
	return a, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}
	if _, err := s.register(creds.Email, creds.Password); err != nil {
		if errors.Is(err, errDuplicate) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"msg": "User registered"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	s.mu.Lock()
	a := s.accounts[creds.Email]
	s.mu.Unlock()
	if a == nil || bcrypt.CompareHashAndPassword(a.hash, []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = a.email
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

// bearer returns the account of the request's token, if any.
func (s *Server) bearer(r *http.Request) (*account, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	a, ok := s.accounts[email]
	return a, ok
}

// authenticated rejects requests without a valid token. The body uses the
// "msg" key, not "error", as the reference backend's JWT layer does.
func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, *account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Missing Authorization Header"})
			return
		}
		a, ok := s.bearer(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Invalid token"})
			return
		}
		next(w, r, a)
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, a *account) {
	writeJSON(w, http.StatusOK, map[string]any{"id": a.id, "email": a.email})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request, a *account) {
	s.mu.Lock()
	out := make([]map[string]any, 0, len(a.records))
	for i := len(a.records) - 1; i >= 0; i-- {
		rec := a.records[i]
		out = append(out, map[string]any{
			"id":           rec.id,
			"timestamp":    rec.timestamp.UTC().Format(naiveLayout),
			"raw_input":    rec.rawInput,
			"dosha_scores": rec.scores,
			"result_dosha": rec.dosha,
		})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
		writeError(w, http.StatusBadRequest, "No JSON payload provided")
		return
	}

	var missing []string
	for _, k := range []string{"hr", "hrv", "amplitude", "morphology"} {
		if _, ok := data[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "Missing parameters: "+strings.Join(missing, ", "))
		return
	}

	hr, okHR := number(data["hr"])
	hrv, okHRV := number(data["hrv"])
	if !okHR || !okHRV {
		writeError(w, http.StatusBadRequest, "Parameters must be numeric")
		return
	}

	res := s.config.Result
	if res == nil {
		res = score(hr, hrv, fmt.Sprint(data["amplitude"]), fmt.Sprint(data["morphology"]))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request, a *account) {
	var body struct {
		RawInput    json.RawMessage    `json:"raw_input"`
		DoshaScores map[string]float64 `json:"dosha_scores"`
		ResultDosha string             `json:"result_dosha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Missing fields")
		return
	}
	raw := strings.TrimSpace(string(body.RawInput))
	if raw == "" || raw == "null" || raw == "{}" || len(body.DoshaScores) == 0 || body.ResultDosha == "" {
		writeError(w, http.StatusBadRequest, "Missing fields")
		return
	}

	s.mu.Lock()
	s.nextRec++
	id := s.nextRec
	a.records = append(a.records, record{
		id:        id,
		timestamp: s.now(),
		rawInput:  body.RawInput,
		scores:    body.DoshaScores,
		dosha:     body.ResultDosha,
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"msg": "Record added", "record_id": id})
}

// number accepts a JSON number or a numeric string.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
