package identitytest

import (
	"context"
	"errors"
	"testing"

	"github.com/satecha/satecha/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderOnlyNewestCodeVerifies(t *testing.T) {
	p := New()
	ctx := context.Background()

	p.NextCode = "111111"
	require.NoError(t, p.SendOTP(ctx, "a@x.com", identity.PurposeSignup, nil))
	p.NextCode = "222222"
	require.NoError(t, p.SendOTP(ctx, "a@x.com", identity.PurposeSignup, nil))

	_, err := p.VerifyOTP(ctx, "a@x.com", "111111", identity.PurposeSignup)
	var provErr *identity.Error
	require.True(t, errors.As(err, &provErr))

	sess, err := p.VerifyOTP(ctx, "a@x.com", "222222", identity.PurposeSignup)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", sess.Identity.Email)

	_, err = p.VerifyOTP(ctx, "a@x.com", "222222", identity.PurposeSignup)
	require.Error(t, err, "codes are single use")
}

func TestProviderSigninOTPRequiresAccount(t *testing.T) {
	p := New()
	err := p.SendOTP(context.Background(), "ghost@x.com", identity.PurposeSignin, nil)
	var provErr *identity.Error
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "signups not allowed for otp", provErr.Message)
}

func TestProviderFailNext(t *testing.T) {
	p := New()
	boom := errors.New("boom")
	p.FailNext("SignIn", boom)

	_, err := p.SignIn(context.Background(), "a@x.com", "secret1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.Calls("SignIn"))

	_, err = p.SignIn(context.Background(), "a@x.com", "secret1")
	var provErr *identity.Error
	assert.True(t, errors.As(err, &provErr))
}

func TestProviderEmitAndSubscribe(t *testing.T) {
	p := New()
	var got []identity.EventKind
	unsubscribe := p.Subscribe(func(e identity.Event) { got = append(got, e.Kind) })

	p.Emit(identity.Event{Kind: identity.EventSignedOut})
	unsubscribe()
	p.Emit(identity.Event{Kind: identity.EventSignedOut})

	assert.Equal(t, []identity.EventKind{identity.EventSignedOut}, got)
	assert.Equal(t, 0, p.Subscribers())
}
