package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/satecha/satecha/internal/identity"
	"github.com/satecha/satecha/internal/profile"
	"github.com/satecha/satecha/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAnonKey = "anon-key"

type fakeServer struct {
	t *testing.T

	mu             sync.Mutex
	accessToken    string
	refreshToken   string
	expiresAt      time.Time
	metadata       map[string]interface{}
	rejectRefresh  bool
	failSignOut    bool
	lastUserUpdate map[string]interface{}
	refreshCalls   int
	signOutCalls   int
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	f := &fakeServer{
		t:            t,
		accessToken:  "access-1",
		refreshToken: "refresh-1",
		expiresAt:    time.Now().Add(time.Hour),
		metadata:     map[string]interface{}{"username": "alice"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/signin", f.signIn)
	mux.HandleFunc("POST /api/auth/refresh", f.refresh)
	mux.HandleFunc("GET /api/auth/user", f.requireToken(f.getUser))
	mux.HandleFunc("PUT /api/auth/user", f.requireToken(f.updateUser))
	mux.HandleFunc("POST /api/auth/signout", f.requireToken(f.signOut))
	mux.HandleFunc("POST /api/auth/otp", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": map[string]string{"message": "code sent"}})
	})
	mux.HandleFunc("GET /api/profiles/{id}", f.requireToken(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "u1" {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "profile not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": map[string]string{
			"userID": "u1", "username": "al", "role": "admin", "language": "my",
		}})
	}))
	mux.HandleFunc("GET /api/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeServer) sessionBody() map[string]interface{} {
	return map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"accessToken":  f.accessToken,
			"refreshToken": f.refreshToken,
			"tokenType":    "bearer",
			"expiresAt":    f.expiresAt,
			"user":         f.userBody(),
		},
	}
}

func (f *fakeServer) userBody() map[string]interface{} {
	return map[string]interface{}{"id": "u1", "email": "a@x.com", "metadata": f.metadata}
}

func (f *fakeServer) signIn(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != testAnonKey {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "invalid api key"})
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Email != "a@x.com" || req.Password != "secret1" {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "invalid login credentials"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.sessionBody())
}

func (f *fakeServer) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.rejectRefresh || req.RefreshToken != f.refreshToken {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "invalid refresh token"})
		return
	}
	f.accessToken = "access-2"
	f.refreshToken = "refresh-2"
	f.expiresAt = time.Now().Add(time.Hour)
	writeJSON(w, http.StatusOK, f.sessionBody())
}

func (f *fakeServer) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		want := "Bearer " + f.accessToken
		f.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "invalid or expired token"})
			return
		}
		next(w, r)
	}
}

func (f *fakeServer) getUser(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": f.userBody()})
}

func (f *fakeServer) updateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data map[string]interface{} `json:"data"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUserUpdate = req.Data
	for k, v := range req.Data {
		if v == nil {
			delete(f.metadata, k)
			continue
		}
		f.metadata[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": f.userBody()})
}

func (f *fakeServer) signOut(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	if f.failSignOut {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "failed to sign out"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": map[string]string{"message": "signed out"}})
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, Options{AnonKey: testAnonKey})
}

func TestSignIn(t *testing.T) {
	_, srv := newFakeServer(t)
	c := newTestClient(srv)

	sess, err := c.SignIn(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", sess.AccessToken)
	assert.Equal(t, "a@x.com", sess.Identity.Email)
	assert.Equal(t, "alice", sess.Identity.Metadata.Username)
	assert.Equal(t, "access-1", c.Session().AccessToken)
}

func TestProviderErrorsKeepServerMessage(t *testing.T) {
	_, srv := newFakeServer(t)
	c := newTestClient(srv)

	_, err := c.SignIn(context.Background(), "a@x.com", "wrong")
	var providerErr *identity.Error
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusUnauthorized, providerErr.Status)
	assert.Equal(t, "invalid login credentials", providerErr.Message)
	assert.Nil(t, c.Session())

	noKey := NewClient(srv.URL, Options{})
	_, err = noKey.SignIn(context.Background(), "a@x.com", "secret1")
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "invalid api key", providerErr.Message)

	err = c.do(context.Background(), http.MethodGet, "/broken", "", nil, nil)
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusBadGateway, providerErr.Status)
	assert.Equal(t, "upstream unavailable", providerErr.Message)
}

func TestTransportErrorsAreWrapped(t *testing.T) {
	_, srv := newFakeServer(t)
	c := newTestClient(srv)
	srv.Close()

	_, err := c.SignIn(context.Background(), "a@x.com", "secret1")
	require.Error(t, err)
	var providerErr *identity.Error
	assert.False(t, errors.As(err, &providerErr))
}

func TestSendOTP(t *testing.T) {
	_, srv := newFakeServer(t)
	c := newTestClient(srv)

	data := identity.Metadata{Username: "bob"}
	assert.NoError(t, c.SendOTP(context.Background(), "b@x.com", identity.PurposeSignup, &data))
}

func TestCurrentSession(t *testing.T) {
	f, srv := newFakeServer(t)
	c := newTestClient(srv)

	sess, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)

	_, err = c.SignIn(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	f.mu.Lock()
	f.metadata["username"] = "alice2"
	f.mu.Unlock()

	sess, err = c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice2", sess.Identity.Metadata.Username)
	assert.Zero(t, f.refreshCalls)
}

func TestCurrentSessionRefreshesExpiredToken(t *testing.T) {
	f, srv := newFakeServer(t)
	c := newTestClient(srv)
	c.Restore(&identity.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
		Identity:     &identity.Identity{ID: "u1", Email: "a@x.com"},
	})

	sess, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "access-2", sess.AccessToken)
	assert.Equal(t, "refresh-2", c.Session().RefreshToken)
	assert.Equal(t, 1, f.refreshCalls)
}

func TestCurrentSessionDropsRejectedSession(t *testing.T) {
	_, srv := newFakeServer(t)
	c := newTestClient(srv)
	c.Restore(&identity.Session{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
		Identity:     &identity.Identity{ID: "u1", Email: "a@x.com"},
	})

	sess, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Nil(t, c.Session())
}

func TestUpdateMetadataSendsClearedKeysAsNull(t *testing.T) {
	f, srv := newFakeServer(t)
	c := newTestClient(srv)

	_, err := c.UpdateMetadata(context.Background(), identity.MetadataPatch{})
	var providerErr *identity.Error
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusUnauthorized, providerErr.Status)

	_, err = c.SignIn(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	secret := "JBSWY3DPEHPK3PXP"
	id, err := c.UpdateMetadata(context.Background(), identity.MetadataPatch{TwoFactorSecret: &secret})
	require.NoError(t, err)
	require.NotNil(t, id.Metadata.TwoFactorSecret)
	assert.Equal(t, secret, *c.Session().Identity.Metadata.TwoFactorSecret)

	enabled := false
	id, err = c.UpdateMetadata(context.Background(), identity.MetadataPatch{ClearTwoFactorSecret: true, TwoFactorEnabled: &enabled})
	require.NoError(t, err)
	assert.Nil(t, id.Metadata.TwoFactorSecret)

	value, present := f.lastUserUpdate[identity.KeyTwoFactorSecret]
	assert.True(t, present)
	assert.Nil(t, value)
	assert.Equal(t, "alice", id.Metadata.Username)
}

func TestSignOutDropsSessionEvenOnServerError(t *testing.T) {
	f, srv := newFakeServer(t)
	c := newTestClient(srv)
	_, err := c.SignIn(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	f.mu.Lock()
	f.failSignOut = true
	f.mu.Unlock()

	err = c.SignOut(context.Background())
	assert.Error(t, err)
	assert.Nil(t, c.Session())
	assert.NoError(t, c.SignOut(context.Background()), "signing out twice is a no-op")
	assert.Equal(t, 1, f.signOutCalls)
}

func TestRefreshSessionEmitsEvents(t *testing.T) {
	f, srv := newFakeServer(t)
	c := newTestClient(srv)
	_, err := c.SignIn(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	var events []identity.Event
	unsubscribe := c.Subscribe(func(e identity.Event) { events = append(events, e) })
	defer unsubscribe()

	require.NoError(t, c.RefreshSession(context.Background()))
	require.Len(t, events, 1)
	assert.Equal(t, identity.EventTokenRefreshed, events[0].Kind)
	assert.Equal(t, "access-2", events[0].Session.AccessToken)

	f.mu.Lock()
	f.rejectRefresh = true
	f.mu.Unlock()

	require.NoError(t, c.RefreshSession(context.Background()))
	require.Len(t, events, 2)
	assert.Equal(t, identity.EventSignedOut, events[1].Kind)
	assert.Nil(t, c.Session())
}

func TestRefresherSignsOutStoreWhenRefreshIsRejected(t *testing.T) {
	f, srv := newFakeServer(t)
	c := NewClient(srv.URL, Options{
		AnonKey:         testAnonKey,
		RefreshMargin:   2 * time.Hour,
		RefreshInterval: 10 * time.Millisecond,
	})
	_, err := c.SignIn(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	store := session.NewStore(c)
	defer store.Close()
	store.Initialize(context.Background())
	require.True(t, store.State().SignedIn())

	f.mu.Lock()
	f.rejectRefresh = true
	f.mu.Unlock()

	stop := c.StartRefresher(context.Background())
	defer stop()

	assert.Eventually(t, func() bool {
		return store.State().Status == session.StatusSignedOut
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFetchProfile(t *testing.T) {
	_, srv := newFakeServer(t)
	c := newTestClient(srv)
	_, err := c.SignIn(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	rec, err := c.FetchProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "al", rec.Username)
	assert.Equal(t, "admin", rec.Role)

	_, err = c.FetchProfile(context.Background(), "u2")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}
