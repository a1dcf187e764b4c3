// Package twofactor enrolls the signed-in user in TOTP based two-factor
// authentication. The secret is kept in the user's provider metadata.
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/satecha/satecha/internal/identity"
	"github.com/satecha/satecha/internal/session"
	"github.com/satecha/satecha/pkg/logger"
)

var (
	ErrNoIdentity  = errors.New("no signed-in user")
	ErrInvalidCode = errors.New("code must be 6 digits")
	ErrNotEnrolled = errors.New("two-factor authentication is not set up")
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

type Options struct {
	// Issuer labels the account in authenticator apps.
	Issuer string
	// Strict checks verification codes against the stored secret. Without
	// it any six digit code is accepted.
	Strict bool
}

type Enrollment struct {
	Secret    string
	URI       string
	Confirmed bool
}

type Enroller struct {
	provider identity.Provider
	store    *session.Store
	opts     Options
	now      func() time.Time
}

func NewEnroller(provider identity.Provider, store *session.Store, opts Options) *Enroller {
	if opts.Issuer == "" {
		opts.Issuer = "Satecha"
	}
	return &Enroller{provider: provider, store: store, opts: opts, now: time.Now}
}

// Enable generates a fresh secret and stores it unconfirmed. Any earlier
// secret is replaced and two-factor stays off until Verify succeeds.
func (e *Enroller) Enable(ctx context.Context) (*Enrollment, error) {
	current := e.store.Identity()
	if current == nil {
		return nil, ErrNoIdentity
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.opts.Issuer,
		AccountName: current.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	secret := key.Secret()
	disabled := false
	updated, err := e.provider.UpdateMetadata(ctx, identity.MetadataPatch{
		TwoFactorSecret:  &secret,
		TwoFactorEnabled: &disabled,
	})
	if err != nil {
		return nil, err
	}
	e.store.UpdateIdentity(updated)

	logger.InfoWithUser(current.ID, "twofactor_enrollment_started", nil)

	return &Enrollment{Secret: secret, URI: key.URL()}, nil
}

// Verify confirms the enrollment and turns two-factor on.
func (e *Enroller) Verify(ctx context.Context, code string) error {
	current := e.store.Identity()
	if current == nil {
		return ErrNoIdentity
	}
	if !codePattern.MatchString(code) {
		return ErrInvalidCode
	}

	if e.opts.Strict {
		if current.Metadata.TwoFactorSecret == nil {
			return ErrNotEnrolled
		}
		if !e.Check(*current.Metadata.TwoFactorSecret, code) {
			return ErrInvalidCode
		}
	} else {
		// Only the shape of the code is checked here.
		logger.WarnWithUser(current.ID, "twofactor_lenient_verify", nil)
	}

	enabled := true
	updated, err := e.provider.UpdateMetadata(ctx, identity.MetadataPatch{TwoFactorEnabled: &enabled})
	if err != nil {
		return err
	}
	e.store.UpdateIdentity(updated)
	e.store.SetTwoFactorEnabled(true)

	logger.InfoWithUser(current.ID, "twofactor_enabled", map[string]interface{}{
		"strict": e.opts.Strict,
	})
	return nil
}

// Disable removes the secret and turns two-factor off.
func (e *Enroller) Disable(ctx context.Context) error {
	current := e.store.Identity()
	if current == nil {
		return ErrNoIdentity
	}

	disabled := false
	updated, err := e.provider.UpdateMetadata(ctx, identity.MetadataPatch{
		ClearTwoFactorSecret: true,
		TwoFactorEnabled:     &disabled,
	})
	if err != nil {
		return err
	}
	e.store.UpdateIdentity(updated)
	e.store.SetTwoFactorEnabled(false)

	logger.InfoWithUser(current.ID, "twofactor_disabled", nil)
	return nil
}

// Check reports whether code is the current TOTP code for secret, allowing
// one step of clock skew.
func (e *Enroller) Check(secret, code string) bool {
	if !codePattern.MatchString(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, e.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
