package session

import (
	"fmt"

	"github.com/satecha/satecha/internal/identity"
)

type Status int

const (
	StatusSignedOut Status = iota
	StatusAuthenticating
	StatusSignedIn
	StatusSigningOut
)

func (s Status) String() string {
	switch s {
	case StatusSignedOut:
		return "signed_out"
	case StatusAuthenticating:
		return "authenticating"
	case StatusSignedIn:
		return "signed_in"
	case StatusSigningOut:
		return "signing_out"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is an immutable snapshot. Identity is never shared with the store.
type State struct {
	Status           Status
	Identity         *identity.Identity
	Loading          bool
	TwoFactorEnabled bool
	Version          uint64
}

func (s State) SignedIn() bool {
	return s.Status == StatusSignedIn && s.Identity != nil
}

type actionKind int

const (
	actLoadStarted actionKind = iota
	actLoaded
	actBegin
	actComplete
	actFail
	actNotify
	actSignOutStarted
	actSignedOut
	actUpdateIdentity
	actSetTwoFactor
)

type action struct {
	kind     actionKind
	identity *identity.Identity
	event    identity.EventKind
	status   Status
	enabled  bool
}

// reduce is the only place that decides state transitions. It never
// touches the version; the store bumps it when the result differs.
func reduce(s State, a action) State {
	switch a.kind {
	case actLoadStarted:
		s.Loading = true

	case actLoaded:
		s.Loading = false
		s = signedInAs(s, a.identity)

	case actBegin:
		if s.Status == StatusSignedOut || s.Status == StatusSignedIn {
			s.Status = StatusAuthenticating
		}

	case actComplete:
		s.Loading = false
		s = signedInAs(s, a.identity)

	case actFail:
		if s.Status == StatusAuthenticating {
			s.Status = a.status
		}

	case actNotify:
		s.Loading = false
		switch a.event {
		case identity.EventSignedIn:
			s = signedInAs(s, a.identity)
		case identity.EventSignedOut:
			s = signedOut(s)
		case identity.EventTokenRefreshed, identity.EventUserUpdated:
			if s.Status == StatusSignedIn && a.identity != nil {
				s = signedInAs(s, a.identity)
			}
		}

	case actSignOutStarted:
		if s.Status != StatusSignedOut {
			s.Status = StatusSigningOut
		}

	case actSignedOut:
		s = signedOut(s)

	case actUpdateIdentity:
		if s.Status == StatusSignedIn && a.identity != nil && s.Identity != nil && a.identity.ID == s.Identity.ID {
			s = signedInAs(s, a.identity)
		}

	case actSetTwoFactor:
		if s.Status == StatusSignedIn {
			s.TwoFactorEnabled = a.enabled
		}
	}
	return s
}

func signedInAs(s State, id *identity.Identity) State {
	if id == nil {
		return signedOut(s)
	}
	s.Status = StatusSignedIn
	s.Identity = id.Clone()
	s.TwoFactorEnabled = id.Metadata.TwoFactorEnabled
	return s
}

func signedOut(s State) State {
	s.Status = StatusSignedOut
	s.Identity = nil
	s.TwoFactorEnabled = false
	return s
}

// changed reports whether an action moved the observable state.
func changed(before, after State) bool {
	if before.Status != after.Status || before.Loading != after.Loading || before.TwoFactorEnabled != after.TwoFactorEnabled {
		return true
	}
	if (before.Identity == nil) != (after.Identity == nil) {
		return true
	}
	return before.Identity != after.Identity
}
