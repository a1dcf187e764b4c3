// Package remote implements identity.Provider and profile.Source against
// the provider server's HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/satecha/satecha/internal/identity"
	"github.com/satecha/satecha/internal/profile"
)

// Response is the server's { success, data, error } envelope.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

type userPayload struct {
	ID       string                 `json:"id"`
	Email    string                 `json:"email"`
	Metadata map[string]interface{} `json:"metadata"`
}

type sessionPayload struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	TokenType    string      `json:"tokenType"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	User         userPayload `json:"user"`
}

type profilePayload struct {
	UserID   string `json:"userID"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Language string `json:"language"`
}

type Options struct {
	// AnonKey is sent as the apikey header on every request.
	AnonKey    string
	HTTPClient *http.Client
	// RefreshMargin is how long before expiry the refresher renews the
	// access token.
	RefreshMargin time.Duration
	// RefreshInterval is how often the refresher checks the session.
	RefreshInterval time.Duration
	Now             func() time.Time
}

type Client struct {
	BaseURL string

	anonKey    string
	httpClient *http.Client
	margin     time.Duration
	interval   time.Duration
	now        func() time.Time

	mu        sync.Mutex
	session   *identity.Session
	listeners map[int]func(identity.Event)
	nextID    int
}

var (
	_ identity.Provider = (*Client)(nil)
	_ profile.Source    = (*Client)(nil)
)

// NewClient creates a Client for a server base URL such as
// http://localhost:8080.
func NewClient(baseURL string, opts Options) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/") + "/api",
		anonKey:    opts.AnonKey,
		httpClient: opts.HTTPClient,
		margin:     opts.RefreshMargin,
		interval:   opts.RefreshInterval,
		now:        opts.Now,
		listeners:  map[int]func(identity.Event){},
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.margin <= 0 {
		c.margin = time.Minute
	}
	if c.interval <= 0 {
		c.interval = 30 * time.Second
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Restore installs a session saved by an earlier process. No event is
// emitted.
func (c *Client) Restore(sess *identity.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess.Clone()
}

// Session returns a copy of the held session for persisting, or nil.
func (c *Client) Session() *identity.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

func (c *Client) SignUp(ctx context.Context, email, password string, data identity.Metadata) (*identity.Session, error) {
	body := map[string]interface{}{"email": email, "password": password, "data": data.Map()}
	return c.sessionCall(ctx, "/auth/signup", body)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	body := map[string]interface{}{"email": email, "password": password}
	return c.sessionCall(ctx, "/auth/signin", body)
}

func (c *Client) SendOTP(ctx context.Context, email string, purpose identity.Purpose, data *identity.Metadata) error {
	body := map[string]interface{}{"email": email, "purpose": string(purpose)}
	if data != nil {
		body["data"] = data.Map()
	}
	var resp Response[json.RawMessage]
	return c.do(ctx, http.MethodPost, "/auth/otp", "", body, &resp)
}

func (c *Client) VerifyOTP(ctx context.Context, email, code string, purpose identity.Purpose) (*identity.Session, error) {
	body := map[string]interface{}{"email": email, "code": code, "purpose": string(purpose)}
	return c.sessionCall(ctx, "/auth/verify", body)
}

// CurrentSession renews an expired access token and reloads the user. A
// session the server no longer accepts is dropped and reported as absent.
func (c *Client) CurrentSession(ctx context.Context) (*identity.Session, error) {
	sess := c.Session()
	if sess == nil {
		return nil, nil
	}

	if sess.Expired(c.now()) {
		renewed, err := c.refresh(ctx, sess.RefreshToken)
		if isUnauthorized(err) {
			c.clear()
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		sess = renewed
	}

	id, err := c.fetchUser(ctx, sess.AccessToken)
	if isUnauthorized(err) {
		c.clear()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.Identity = id
	c.setSession(sess)
	return sess.Clone(), nil
}

func (c *Client) UpdateMetadata(ctx context.Context, patch identity.MetadataPatch) (*identity.Identity, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}

	var resp Response[userPayload]
	if err := c.do(ctx, http.MethodPut, "/auth/user", token, map[string]interface{}{"data": patch.Map()}, &resp); err != nil {
		return nil, err
	}
	id, err := resp.Data.identity()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.Identity = id.Clone()
	}
	c.mu.Unlock()
	return id, nil
}

// SignOut revokes the server side refresh tokens. The local session is
// dropped even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	sess := c.Session()
	if sess == nil {
		return nil
	}
	c.clear()

	var resp Response[json.RawMessage]
	err := c.do(ctx, http.MethodPost, "/auth/signout", sess.AccessToken, nil, &resp)
	if isUnauthorized(err) {
		return nil
	}
	return err
}

func (c *Client) Subscribe(fn func(identity.Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.listeners, id)
		})
	}
}

func (c *Client) FetchProfile(ctx context.Context, userID string) (*profile.Record, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}
	var resp Response[profilePayload]
	err = c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(userID), token, nil, &resp)
	var providerErr *identity.Error
	if errors.As(err, &providerErr) && providerErr.Status == http.StatusNotFound {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return resp.Data.record(), nil
}

func (c *Client) UpdateProfile(ctx context.Context, patch profile.RecordPatch) (*profile.Record, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{}
	if patch.Username != nil {
		body["username"] = *patch.Username
	}
	if patch.Language != nil {
		body["language"] = *patch.Language
	}
	var resp Response[profilePayload]
	if err := c.do(ctx, http.MethodPut, "/profiles/me", token, body, &resp); err != nil {
		return nil, err
	}
	return resp.Data.record(), nil
}

func (c *Client) sessionCall(ctx context.Context, path string, body interface{}) (*identity.Session, error) {
	var resp Response[sessionPayload]
	if err := c.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return nil, err
	}
	sess, err := resp.Data.session()
	if err != nil {
		return nil, err
	}
	c.setSession(sess)
	return sess.Clone(), nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*identity.Session, error) {
	var resp Response[sessionPayload]
	body := map[string]interface{}{"refreshToken": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", body, &resp); err != nil {
		return nil, err
	}
	sess, err := resp.Data.session()
	if err != nil {
		return nil, err
	}
	c.setSession(sess)
	return sess, nil
}

func (c *Client) fetchUser(ctx context.Context, token string) (*identity.Identity, error) {
	var resp Response[userPayload]
	if err := c.do(ctx, http.MethodGet, "/auth/user", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.identity()
}

func (c *Client) accessToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return "", &identity.Error{Status: http.StatusUnauthorized, Message: "not signed in"}
	}
	return c.session.AccessToken, nil
}

func (c *Client) setSession(sess *identity.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess.Clone()
}

func (c *Client) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
}

func (c *Client) emit(event identity.Event) {
	c.mu.Lock()
	listeners := make([]func(identity.Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return &identity.Error{Status: resp.StatusCode, Message: errResp.Error}
		}
		return &identity.Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func isUnauthorized(err error) bool {
	var providerErr *identity.Error
	return errors.As(err, &providerErr) && providerErr.Status == http.StatusUnauthorized
}

func (p userPayload) identity() (*identity.Identity, error) {
	if p.ID == "" {
		return nil, errors.New("decoding user: missing id")
	}
	meta, err := identity.ParseMetadata(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	return &identity.Identity{ID: p.ID, Email: p.Email, Metadata: meta}, nil
}

func (p sessionPayload) session() (*identity.Session, error) {
	if p.AccessToken == "" {
		return nil, errors.New("decoding session: missing access token")
	}
	id, err := p.User.identity()
	if err != nil {
		return nil, err
	}
	return &identity.Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    p.ExpiresAt,
		Identity:     id,
	}, nil
}

func (p profilePayload) record() *profile.Record {
	return &profile.Record{UserID: p.UserID, Username: p.Username, Role: p.Role, Language: p.Language}
}
