package form

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
)

// AuthFallback is shown when an auth failure carries no server message.
const AuthFallback = "authentication failed"

// Field names of the auth form.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
)

// Mode selects the endpoint the auth form submits to.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

func (m Mode) String() string {
	if m == ModeRegister {
		return "register"
	}
	return "login"
}

// AuthClient issues the credential requests.
type AuthClient interface {
	Login(ctx context.Context, creds api.Credentials) (string, error)
	Register(ctx context.Context, creds api.Credentials) error
}

// Authenticator receives the token of a successful login.
type Authenticator interface {
	Login(token string) error
}

// AuthForm is the login/register form controller.
type AuthForm struct {
	client  AuthClient
	session Authenticator
	logger  *zap.Logger

	mu       sync.Mutex
	mode     Mode
	email    string
	password string
	outcome  Outcome[Mode]
}

// AuthSnapshot is a copy of the form state for rendering.
type AuthSnapshot struct {
	Mode     Mode
	Email    string
	Password string
	// Outcome carries the mode whose request succeeded.
	Outcome Outcome[Mode]
}

// NewAuthForm returns a form in login mode with empty fields.
func NewAuthForm(client AuthClient, session Authenticator, logger *zap.Logger) *AuthForm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthForm{client: client, session: session, logger: logger}
}

// SetMode switches between login and register.
func (f *AuthForm) SetMode(m Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = m
}

// ToggleMode flips between login and register and returns the new mode.
func (f *AuthForm) ToggleMode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == ModeLogin {
		f.mode = ModeRegister
	} else {
		f.mode = ModeLogin
	}
	return f.mode
}

// SetField sets the email or password.
func (f *AuthForm) SetField(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case FieldEmail:
		f.email = value
	case FieldPassword:
		f.password = value
	default:
		return ErrUnknownField
	}
	return nil
}

// Submit sends the credentials to the current mode's endpoint. A login
// success hands the token to the session; a register success returns the
// form to login mode with empty fields. Failures are recorded in the
// outcome and returned.
func (f *AuthForm) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.outcome.Submitting() {
		f.mu.Unlock()
		return ErrInFlight
	}
	f.outcome = pending[Mode]()
	mode := f.mode
	creds := api.Credentials{Email: f.email, Password: f.password}
	f.mu.Unlock()

	log := f.logger.With(zap.Stringer("mode", mode))
	err := settle(f.set, AuthFallback, func() (Mode, error) {
		if mode == ModeLogin {
			token, err := f.client.Login(ctx, creds)
			if err != nil {
				return mode, err
			}
			return mode, f.session.Login(token)
		}

		if err := f.client.Register(ctx, creds); err != nil {
			return mode, err
		}
		f.mu.Lock()
		f.mode = ModeLogin
		f.email = ""
		f.password = ""
		f.mu.Unlock()
		return mode, nil
	})
	if err != nil {
		log.Info("auth submit failed", zap.Error(err))
		return err
	}
	log.Info("auth submit succeeded")
	return nil
}

func (f *AuthForm) set(o Outcome[Mode]) {
	f.mu.Lock()
	f.outcome = o
	f.mu.Unlock()
}

// Snapshot returns the current state.
func (f *AuthForm) Snapshot() AuthSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return AuthSnapshot{
		Mode:     f.mode,
		Email:    f.email,
		Password: f.password,
		Outcome:  f.outcome,
	}
}
