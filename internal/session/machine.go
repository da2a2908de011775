// Package session owns the client's belief about whether a credential is
// held: the single-slot TokenStore and the Machine that derives the
// Anonymous/Authenticated state from it.
package session

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrEmptyToken is returned by Login when the server issued no token.
var ErrEmptyToken = errors.New("empty credential token")

// State is the session state.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type subscriber struct {
	id int
	fn func(State)
}

// Machine is the session state machine. The TokenStore is written only
// through a Machine; the store is always updated before the new state is
// observable, so no reader sees Authenticated without a token.
type Machine struct {
	// transition serializes Login/Logout/Sync including observer delivery,
	// so observers see transitions in the order they happened.
	transition sync.Mutex

	mu     sync.RWMutex
	store  TokenStore
	state  State
	subs   []subscriber
	nextID int

	logger *zap.Logger
}

// NewMachine derives the initial state from the store. A store that cannot
// be read is treated as holding no token.
func NewMachine(store TokenStore, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Machine{store: store, logger: logger}
	if _, err := store.Get(); err == nil {
		m.state = Authenticated
	} else if !errors.Is(err, ErrNoToken) {
		logger.Warn("token store unreadable, starting anonymous", zap.Error(err))
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Authenticated reports whether the state is Authenticated.
func (m *Machine) Authenticated() bool {
	return m.State() == Authenticated
}

// Login persists token and then moves to Authenticated. On a store error
// the state is left unchanged.
func (m *Machine) Login(token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	m.transition.Lock()
	defer m.transition.Unlock()

	if err := m.store.Set(token); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	m.logger.Info("session login")
	m.apply(Authenticated)
	return nil
}

// Logout clears the token and then moves to Anonymous. Calling Logout while
// Anonymous still clears the store and is not an error.
func (m *Machine) Logout() error {
	m.transition.Lock()
	defer m.transition.Unlock()

	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	m.logger.Info("session logout")
	m.apply(Anonymous)
	return nil
}

// Sync re-derives the state from the store after the store was changed by
// another process. A token that appeared is delivered as a login, a token
// that vanished as a logout. The store is not written.
func (m *Machine) Sync() (State, error) {
	m.transition.Lock()
	defer m.transition.Unlock()

	next := Anonymous
	if _, err := m.store.Get(); err == nil {
		next = Authenticated
	} else if !errors.Is(err, ErrNoToken) {
		return m.State(), fmt.Errorf("sync: %w", err)
	}
	if next != m.State() {
		m.logger.Info("session changed externally", zap.Stringer("state", next))
	}
	m.apply(next)
	return next, nil
}

// Subscribe registers fn to be called after every state change. fn runs on
// the goroutine that performed the transition and must not call Login,
// Logout or Sync. The returned func removes the subscription.
func (m *Machine) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// apply flips the state and notifies observers when it changed. Callers
// hold m.transition.
func (m *Machine) apply(next State) {
	m.mu.Lock()
	changed := m.state != next
	m.state = next
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, s := range subs {
		s.fn(next)
	}
}
