// Package history loads the signed-in user's past analyses and tracks which
// one is selected for detail display.
package history

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
)

const (
	// Fallback is shown when a failed fetch carries no server message.
	Fallback = "failed to load records"
	// MsgAuthRequired is shown when no token is held.
	MsgAuthRequired = "authorization required"
)

// Status is the display state of the list.
type Status int

const (
	Loading Status = iota
	Failed
	Loaded
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Failed:
		return "failed"
	case Loaded:
		return "loaded"
	}
	return "unknown"
}

// RecordsClient fetches the bearer's records.
type RecordsClient interface {
	Records(ctx context.Context, src oauth2.TokenSource) ([]api.Record, error)
}

// Fetcher owns one history view's list and selection.
type Fetcher struct {
	client RecordsClient
	tokens session.TokenStore
	logger *zap.Logger

	once sync.Once

	mu       sync.Mutex
	status   Status
	records  []api.Record
	message  string
	selected *api.RecordID
}

// Snapshot is a copy of the fetcher state for rendering.
type Snapshot struct {
	Status   Status
	Records  []api.Record
	Message  string
	Selected *api.Record
}

// NewFetcher returns a fetcher in the Loading state.
func NewFetcher(client RecordsClient, tokens session.TokenStore, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, tokens: tokens, logger: logger}
}

// Mount performs the initial fetch. Only the first call on a Fetcher does
// anything.
func (f *Fetcher) Mount(ctx context.Context) error {
	var err error
	f.once.Do(func() { err = f.fetch(ctx) })
	return err
}

// Reload fetches the list again and clears the selection.
func (f *Fetcher) Reload(ctx context.Context) error {
	f.once.Do(func() {})
	f.mu.Lock()
	f.selected = nil
	f.mu.Unlock()
	return f.fetch(ctx)
}

func (f *Fetcher) fetch(ctx context.Context) error {
	f.mu.Lock()
	f.status = Loading
	f.message = ""
	f.mu.Unlock()

	recs, err := f.load(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.status = Failed
		f.records = nil
		f.message = message(err)
		f.logger.Info("loading records failed", zap.Error(err))
		return err
	}
	f.status = Loaded
	f.records = recs
	f.logger.Debug("records loaded", zap.Int("count", len(recs)))
	return nil
}

// load checks for a token before the request so that its absence is
// reported without a round trip.
func (f *Fetcher) load(ctx context.Context) ([]api.Record, error) {
	if _, err := f.tokens.Get(); err != nil {
		return nil, err
	}
	return f.client.Records(ctx, session.TokenSource(f.tokens))
}

func message(err error) string {
	if errors.Is(err, session.ErrNoToken) {
		return MsgAuthRequired
	}
	return api.Message(err, Fallback)
}

// Select makes the record with id the selection, replacing any previous
// one. It reports false if no loaded record has that id.
func (f *Fetcher) Select(id api.RecordID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			sel := id
			f.selected = &sel
			return true
		}
	}
	return false
}

// Clear drops the selection.
func (f *Fetcher) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = nil
}

// Snapshot returns the current state. Records keep server order.
func (f *Fetcher) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Snapshot{Status: f.status, Message: f.message}
	s.Records = make([]api.Record, len(f.records))
	copy(s.Records, f.records)
	if f.selected != nil {
		for i := range s.Records {
			if s.Records[i].ID == *f.selected {
				s.Selected = &s.Records[i]
				break
			}
		}
	}
	return s
}
