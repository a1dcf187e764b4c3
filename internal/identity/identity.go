// Package identity defines what the client core needs from an identity
// provider: the user record, the session it issues and the operations and
// change notifications the rest of the core depends on.
package identity

import (
	"context"
	"fmt"
	"time"
)

type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeSignin Purpose = "signin"
)

func (p Purpose) Valid() bool {
	return p == PurposeSignup || p == PurposeSignin
}

// Identity is the provider's user record. Only Metadata is writable by the
// client, through Provider.UpdateMetadata.
type Identity struct {
	ID       string
	Email    string
	Metadata Metadata
}

// Clone returns a deep copy so snapshots never share mutable state.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	out.Metadata = i.Metadata.Clone()
	return &out
}

type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     *Identity
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Identity = s.Identity.Clone()
	return &out
}

// Expired reports whether the access token is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt)
}

type EventKind int

const (
	EventSignedIn EventKind = iota + 1
	EventSignedOut
	EventTokenRefreshed
	EventUserUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventTokenRefreshed:
		return "token_refreshed"
	case EventUserUpdated:
		return "user_updated"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a session change the provider reports on its own, outside of
// any call made by the client. Session is nil for EventSignedOut.
type Event struct {
	Kind    EventKind
	Session *Session
}

type Provider interface {
	SignUp(ctx context.Context, email, password string, data Metadata) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SendOTP(ctx context.Context, email string, purpose Purpose, data *Metadata) error
	VerifyOTP(ctx context.Context, email, code string, purpose Purpose) (*Session, error)
	// CurrentSession returns nil without an error when nobody is signed in.
	CurrentSession(ctx context.Context) (*Session, error)
	UpdateMetadata(ctx context.Context, patch MetadataPatch) (*Identity, error)
	SignOut(ctx context.Context) error
	// Subscribe registers fn for provider events and returns a function
	// that removes it.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Error is a rejection reported by the provider. Message is meant for
// display as is.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
