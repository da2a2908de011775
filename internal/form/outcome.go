// Package form holds the controllers behind the login/register form and the
// measurement form. Each controller owns its field values and the lifecycle
// of at most one outstanding request.
package form

import (
	"errors"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
)

var (
	// ErrInFlight is returned when an action is attempted while the
	// controller's request is still outstanding.
	ErrInFlight = errors.New("request already in flight")

	// ErrInvalid is returned by Submit when local validation failed and no
	// request was sent.
	ErrInvalid = errors.New("invalid input")

	// ErrUnknownField is returned by SetField for a name the form does not have.
	ErrUnknownField = errors.New("unknown field")
)

// Phase is the position of a request in its lifecycle.
type Phase int

const (
	Idle Phase = iota
	Pending
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the state of a form's last request. A result is only present
// in Succeeded and a message only in Failed.
type Outcome[R any] struct {
	phase   Phase
	result  R
	message string
}

func pending[R any]() Outcome[R] { return Outcome[R]{phase: Pending} }

func succeeded[R any](r R) Outcome[R] { return Outcome[R]{phase: Succeeded, result: r} }

func failed[R any](msg string) Outcome[R] { return Outcome[R]{phase: Failed, message: msg} }

// Phase returns the lifecycle phase.
func (o Outcome[R]) Phase() Phase { return o.phase }

// Submitting reports whether a request is outstanding.
func (o Outcome[R]) Submitting() bool { return o.phase == Pending }

// Result returns the successful result.
func (o Outcome[R]) Result() (R, bool) {
	return o.result, o.phase == Succeeded
}

// Message returns the failure message.
func (o Outcome[R]) Message() (string, bool) {
	return o.message, o.phase == Failed
}

// settle runs call and hands the outcome to set. set is called exactly once
// with a non-pending outcome on every exit path, a panic in call included.
func settle[R any](set func(Outcome[R]), fallback string, call func() (R, error)) error {
	o := failed[R](fallback)
	defer func() { set(o) }()

	r, err := call()
	if err != nil {
		o = failed[R](api.Message(err, fallback))
		return err
	}
	o = succeeded(r)
	return nil
}
