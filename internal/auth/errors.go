package auth

import (
	"errors"

	"github.com/satecha/satecha/internal/identity"
	"github.com/satecha/satecha/internal/twofactor"
	"github.com/satecha/satecha/pkg/logger"
)

type Kind int

const (
	// KindValidation is a form problem caught before or instead of a
	// provider round trip.
	KindValidation Kind = iota + 1
	// KindProvider carries the provider's own message.
	KindProvider
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindProvider:
		return "provider"
	default:
		return "unexpected"
	}
}

const UnexpectedMessage = "An unexpected error occurred. Please try again."

var (
	ErrSubmitInFlight = errors.New("a submission is already in progress")
	// ErrSecondFactorRequired is returned by sign-in when the account has
	// two-factor enabled and Options.RequireSecondFactor is set. The flow
	// then waits for CompleteSecondFactor.
	ErrSecondFactorRequired = errors.New("enter the code from your authenticator app")
	// ErrEnrollmentSkipped is set on SignUpResult when the session changed
	// before two-factor setup could run.
	ErrEnrollmentSkipped = errors.New("your session changed before two-factor setup, enable two-factor again")
)

// Error is what every Flow operation returns on failure. Message is safe
// to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Message returns the display string for any error a Flow returned.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	if errors.Is(err, ErrSecondFactorRequired) || errors.Is(err, ErrSubmitInFlight) {
		return err.Error()
	}
	return UnexpectedMessage
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var authErr *Error
	if errors.As(err, &authErr) || errors.Is(err, ErrSecondFactorRequired) {
		return err
	}

	var providerErr *identity.Error
	if errors.As(err, &providerErr) {
		return &Error{Kind: KindProvider, Message: providerErr.Message, Err: err}
	}

	switch {
	case errors.Is(err, twofactor.ErrInvalidCode),
		errors.Is(err, twofactor.ErrNotEnrolled),
		errors.Is(err, twofactor.ErrNoIdentity):
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}

	logger.Error("auth_unexpected_error", err, map[string]interface{}{"op": op})
	return &Error{Kind: KindUnexpected, Message: UnexpectedMessage, Err: err}
}
