// Package api is the JSON-over-HTTP client for the assessment backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrMalformedResponse is returned when a 2xx response body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// APIError is a non-2xx response. Message is the server's {error} field and
// may be empty.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
}

// Message returns the text to show for err: the server-provided message if
// there is one, fallback for a non-2xx or undecodable response without
// one, and the transport error text otherwise.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	if errors.Is(err, ErrMalformedResponse) {
		return fallback
	}
	return err.Error()
}

// Client talks to the backend rooted at a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTransport sets the RoundTripper, typically the offline cache.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/login", creds, &out, nil); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w: no access_token in login response", ErrMalformedResponse)
	}
	return out.AccessToken, nil
}

// Register creates an account. The success body is not inspected.
func (c *Client) Register(ctx context.Context, creds Credentials) error {
	return c.doJSON(ctx, http.MethodPost, "/register", creds, nil, nil)
}

// Analyze submits a measurement for classification.
func (c *Client) Analyze(ctx context.Context, m Measurement) (*AnalysisResult, error) {
	var out AnalysisResult
	if err := c.doJSON(ctx, http.MethodPost, "/analyze", m, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Records lists past submissions of the bearer of src's token, in server order.
func (c *Client) Records(ctx context.Context, src oauth2.TokenSource) ([]Record, error) {
	var out []Record
	if err := c.doJSON(ctx, http.MethodGet, "/records", nil, &out, src); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

// SaveRecord stores an analysis in the bearer's history and returns the new
// record's id.
func (c *Client) SaveRecord(ctx context.Context, src oauth2.TokenSource, m Measurement, res *AnalysisResult) (RecordID, error) {
	in := struct {
		RawInput    Measurement        `json:"raw_input"`
		DoshaScores map[string]float64 `json:"dosha_scores"`
		ResultDosha string             `json:"result_dosha"`
	}{m, res.Scores, res.DominantDosha}

	var out struct {
		RecordID RecordID `json:"record_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/records", in, &out, src); err != nil {
		return "", err
	}
	return out.RecordID, nil
}

// Me returns the account of the bearer of src's token.
func (c *Client) Me(ctx context.Context, src oauth2.TokenSource) (*Account, error) {
	var out Account
	if err := c.doJSON(ctx, http.MethodGet, "/me", nil, &out, src); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	return err
}

// Shell fetches an application-shell resource as raw bytes.
func (c *Client) Shell(ctx context.Context, path string) ([]byte, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

// doJSON sends in as a JSON body (when non-nil) and decodes a 2xx body into out
// (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, src oauth2.TokenSource) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
	}
	data, err := c.do(ctx, method, path, body, src)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// do performs one request. When src is non-nil the request is sent through
// an oauth2.Transport that adds the Bearer header from src.
func (c *Client) do(ctx context.Context, method, path string, body []byte, src oauth2.TokenSource) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := c.http
	if src != nil {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc = &http.Client{
			Timeout:   c.http.Timeout,
			Transport: &oauth2.Transport{Source: src, Base: base},
		}
	}

	log := c.logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		log.Warn("reading response body failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	fields := []zap.Field{
		zap.Int("status", resp.StatusCode),
		zap.Int("response_size", len(data)),
		zap.Duration("duration", time.Since(start)),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("request completed with error status", fields...)
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return nil, &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	log.Debug("request completed", fields...)
	return data, nil
}
