// Package auth runs the credential flows: password and one-time code
// sign-up and sign-in, sign-out and two-factor management. Every flow
// publishes its result through the session store and reports failures as
// *Error.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/satecha/satecha/internal/emailutil"
	"github.com/satecha/satecha/internal/identity"
	"github.com/satecha/satecha/internal/session"
	"github.com/satecha/satecha/internal/twofactor"
	"github.com/satecha/satecha/pkg/logger"
)

type Options struct {
	// RequireSecondFactor holds back the identity of a two-factor account
	// after a successful first factor until CompleteSecondFactor gets a
	// valid TOTP code. When false, two-factor is enrolled but never asked
	// for at sign-in.
	RequireSecondFactor bool
}

// UserData is what a sign-up form collects besides the credentials.
type UserData struct {
	Username        string
	FullName        string
	Language        string
	EnableTwoFactor bool
}

func (d UserData) metadata() identity.Metadata {
	return identity.Metadata{
		Username:        strings.TrimSpace(d.Username),
		FullName:        strings.TrimSpace(d.FullName),
		Language:        d.Language,
		EnableTwoFactor: d.EnableTwoFactor,
	}
}

type SignUpResult struct {
	Identity *identity.Identity
	// Enrollment is set when UserData.EnableTwoFactor was requested and
	// enrollment worked. EnrollmentErr is set when it failed; the account
	// exists either way.
	Enrollment    *twofactor.Enrollment
	EnrollmentErr error
}

// PendingOTP is the code request a shell is waiting on.
type PendingOTP struct {
	Email    string
	Purpose  identity.Purpose
	UserData *UserData
}

type Flow struct {
	provider identity.Provider
	store    *session.Store
	enroller *twofactor.Enroller
	opts     Options

	mu         sync.Mutex
	pendingOTP *PendingOTP
	// secondFactor is the identity waiting for its TOTP code.
	secondFactor *identity.Identity
}

// NewFlow wires a flow. A nil enroller gets a lenient default one.
func NewFlow(provider identity.Provider, store *session.Store, enroller *twofactor.Enroller, opts Options) *Flow {
	if enroller == nil {
		enroller = twofactor.NewEnroller(provider, store, twofactor.Options{})
	}
	return &Flow{provider: provider, store: store, enroller: enroller, opts: opts}
}

func (f *Flow) SignUp(ctx context.Context, email, password string, data UserData) (*SignUpResult, error) {
	ticket := f.store.Begin()
	sess, err := f.provider.SignUp(ctx, email, password, data.metadata())
	if err == nil && (sess == nil || sess.Identity == nil) {
		err = errors.New("provider returned no session")
	}
	if err != nil {
		f.store.Fail(ticket)
		logger.Warn("auth_signup_failed", map[string]interface{}{
			"email": emailutil.Normalize(email),
			"error": err.Error(),
		})
		return nil, classify("signup", err)
	}

	result := &SignUpResult{Identity: sess.Identity.Clone()}
	if !f.store.Complete(ticket, sess.Identity) {
		if data.EnableTwoFactor {
			result.EnrollmentErr = &Error{Kind: KindValidation, Message: ErrEnrollmentSkipped.Error(), Err: ErrEnrollmentSkipped}
		}
		return result, nil
	}
	logger.InfoWithUser(sess.Identity.ID, "auth_signup", map[string]interface{}{
		"two_factor_requested": data.EnableTwoFactor,
	})

	if data.EnableTwoFactor {
		enrollment, err := f.enroller.Enable(ctx)
		if err != nil {
			result.EnrollmentErr = classify("signup_enroll", err)
		} else {
			result.Enrollment = enrollment
			result.Identity = f.store.Identity()
		}
	}
	return result, nil
}

func (f *Flow) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	ticket := f.store.Begin()
	sess, err := f.provider.SignIn(ctx, email, password)
	return f.finishSignIn("signin", email, ticket, sess, err)
}

// SendOTP asks the provider to mail a one-time code. The store is not
// touched.
func (f *Flow) SendOTP(ctx context.Context, email string, purpose identity.Purpose, data *UserData) error {
	if err := validatePurpose(purpose); err != nil {
		return err
	}

	var meta *identity.Metadata
	if data != nil {
		m := data.metadata()
		meta = &m
	}
	if err := f.provider.SendOTP(ctx, email, purpose, meta); err != nil {
		logger.Warn("auth_otp_send_failed", map[string]interface{}{
			"email":   emailutil.Normalize(email),
			"purpose": string(purpose),
			"error":   err.Error(),
		})
		return classify("send_otp", err)
	}

	f.mu.Lock()
	f.pendingOTP = &PendingOTP{Email: emailutil.Normalize(email), Purpose: purpose, UserData: data}
	f.mu.Unlock()
	return nil
}

// PendingOTP returns the last code request sent from this flow.
func (f *Flow) PendingOTP() (PendingOTP, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingOTP == nil {
		return PendingOTP{}, false
	}
	return *f.pendingOTP, true
}

// VerifyOTP exchanges a code for a session. A code that is not six
// characters long never reaches the provider.
func (f *Flow) VerifyOTP(ctx context.Context, email, code string, purpose identity.Purpose) (*identity.Identity, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	if err := validatePurpose(purpose); err != nil {
		return nil, err
	}

	ticket := f.store.Begin()
	sess, err := f.provider.VerifyOTP(ctx, email, code, purpose)
	id, err := f.finishSignIn("verify_otp", email, ticket, sess, err)
	if err == nil || errors.Is(err, ErrSecondFactorRequired) {
		f.mu.Lock()
		f.pendingOTP = nil
		f.mu.Unlock()
	}
	return id, err
}

// CompleteSecondFactor publishes the identity held back by sign-in once
// code matches its TOTP secret.
func (f *Flow) CompleteSecondFactor(ctx context.Context, code string) (*identity.Identity, error) {
	f.mu.Lock()
	pending := f.secondFactor
	f.mu.Unlock()
	if pending == nil {
		return nil, validationError("No sign-in is waiting for a code")
	}
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	secret := pending.Metadata.TwoFactorSecret
	if secret == nil {
		return nil, classify("second_factor", twofactor.ErrNotEnrolled)
	}
	if !f.enroller.Check(*secret, code) {
		logger.WarnWithUser(pending.ID, "auth_second_factor_rejected", nil)
		return nil, validationError("Invalid authentication code")
	}

	f.mu.Lock()
	f.secondFactor = nil
	f.mu.Unlock()

	ticket := f.store.Begin()
	if !f.store.Complete(ticket, pending) {
		return f.store.Identity(), nil
	}
	logger.InfoWithUser(pending.ID, "auth_second_factor_verified", nil)
	return pending.Clone(), nil
}

// AwaitingSecondFactor reports whether a sign-in is held back.
func (f *Flow) AwaitingSecondFactor() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.secondFactor != nil
}

// CancelSecondFactor drops a held back sign-in and ends the provider
// session it opened.
func (f *Flow) CancelSecondFactor(ctx context.Context) error {
	f.mu.Lock()
	pending := f.secondFactor
	f.secondFactor = nil
	f.mu.Unlock()
	if pending == nil {
		return nil
	}
	return classify("cancel_second_factor", f.provider.SignOut(ctx))
}

// SignOut always leaves the store signed out. A provider failure is still
// reported.
func (f *Flow) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.secondFactor = nil
	f.pendingOTP = nil
	f.mu.Unlock()

	if err := f.store.SignOut(ctx); err != nil {
		return classify("signout", err)
	}
	return nil
}

func (f *Flow) EnableTwoFactor(ctx context.Context) (*twofactor.Enrollment, error) {
	if f.AwaitingSecondFactor() {
		return nil, ErrSecondFactorRequired
	}
	enrollment, err := f.enroller.Enable(ctx)
	if err != nil {
		return nil, classify("enable_2fa", err)
	}
	return enrollment, nil
}

func (f *Flow) VerifyTwoFactor(ctx context.Context, code string) error {
	if f.AwaitingSecondFactor() {
		return ErrSecondFactorRequired
	}
	return classify("verify_2fa", f.enroller.Verify(ctx, code))
}

func (f *Flow) DisableTwoFactor(ctx context.Context) error {
	if f.AwaitingSecondFactor() {
		return ErrSecondFactorRequired
	}
	return classify("disable_2fa", f.enroller.Disable(ctx))
}

func (f *Flow) finishSignIn(op, email string, ticket session.Ticket, sess *identity.Session, err error) (*identity.Identity, error) {
	if err == nil && (sess == nil || sess.Identity == nil) {
		err = errors.New("provider returned no session")
	}
	if err != nil {
		f.store.Fail(ticket)
		logger.Warn("auth_"+op+"_failed", map[string]interface{}{
			"email": emailutil.Normalize(email),
			"error": err.Error(),
		})
		return nil, classify(op, err)
	}

	if f.opts.RequireSecondFactor && sess.Identity.Metadata.TwoFactorEnabled {
		f.store.Withhold()
		f.mu.Lock()
		f.secondFactor = sess.Identity.Clone()
		f.mu.Unlock()
		logger.InfoWithUser(sess.Identity.ID, "auth_second_factor_required", map[string]interface{}{"op": op})
		return nil, ErrSecondFactorRequired
	}

	if !f.store.Complete(ticket, sess.Identity) {
		return f.store.Identity(), nil
	}
	logger.InfoWithUser(sess.Identity.ID, "auth_"+op, nil)
	return sess.Identity.Clone(), nil
}
