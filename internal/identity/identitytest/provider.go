// Package identitytest provides an in-memory identity.Provider with the
// same acceptance rules as the provider server.
package identitytest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/satecha/satecha/internal/identity"
)

type account struct {
	id       string
	email    string
	password string
	metadata identity.Metadata
}

type pendingCode struct {
	code string
	data *identity.Metadata
}

// Provider is safe for concurrent use. Hooks run before the matching
// operation touches any state and may block to hold a call in flight.
type Provider struct {
	// NextCode, when set, is issued by the next SendOTP instead of a random
	// code.
	NextCode string

	BeforeSignIn func(ctx context.Context)
	BeforeSignUp func(ctx context.Context)
	BeforeVerify func(ctx context.Context)

	mu        sync.Mutex
	accounts  map[string]*account
	codes     map[string]pendingCode
	session   *identity.Session
	failNext  map[string]error
	calls     map[string]int
	listeners map[int]func(identity.Event)
	nextID    int
}

var _ identity.Provider = (*Provider)(nil)

func New() *Provider {
	return &Provider{
		accounts:  map[string]*account{},
		codes:     map[string]pendingCode{},
		failNext:  map[string]error{},
		calls:     map[string]int{},
		listeners: map[int]func(identity.Event){},
	}
}

// AddUser registers an account directly and returns its identity.
func (p *Provider) AddUser(email, password string, metadata identity.Metadata) *identity.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct := &account{id: uuid.NewString(), email: normalize(email), password: password, metadata: metadata.Clone()}
	p.accounts[acct.email] = acct
	return p.identityOf(acct)
}

// FailNext makes the next call of the named operation return err.
// Operation names match the Provider method names.
func (p *Provider) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext[op] = err
}

func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// LastCode returns the newest outstanding code for the email and purpose.
func (p *Provider) LastCode(email string, purpose identity.Purpose) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pc, ok := p.codes[codeKey(normalize(email), purpose)]
	return pc.code, ok
}

// Account returns the stored identity for email, if any.
func (p *Provider) Account(email string) (*identity.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[normalize(email)]
	if !ok {
		return nil, false
	}
	return p.identityOf(acct), true
}

// Emit delivers an event to subscribers as if the provider had reported a
// change on its own. The provider's session follows the event.
func (p *Provider) Emit(event identity.Event) {
	p.mu.Lock()
	switch event.Kind {
	case identity.EventSignedOut:
		p.session = nil
	default:
		p.session = event.Session.Clone()
	}
	listeners := make([]func(identity.Event), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func (p *Provider) SignUp(ctx context.Context, email, password string, data identity.Metadata) (*identity.Session, error) {
	if p.BeforeSignUp != nil {
		p.BeforeSignUp(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SignUp"); err != nil {
		return nil, err
	}

	email = normalize(email)
	if utf8.RuneCountInString(password) < 6 {
		return nil, &identity.Error{Status: http.StatusBadRequest, Message: "password must be at least 6 characters"}
	}
	if _, exists := p.accounts[email]; exists {
		return nil, &identity.Error{Status: http.StatusConflict, Message: "user already registered"}
	}
	acct := &account{id: uuid.NewString(), email: email, password: password, metadata: data.Clone()}
	p.accounts[email] = acct
	return p.startSession(acct), nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	if p.BeforeSignIn != nil {
		p.BeforeSignIn(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SignIn"); err != nil {
		return nil, err
	}

	acct, ok := p.accounts[normalize(email)]
	if !ok || acct.password == "" || acct.password != password {
		return nil, &identity.Error{Status: http.StatusUnauthorized, Message: "invalid login credentials"}
	}
	return p.startSession(acct), nil
}

func (p *Provider) SendOTP(_ context.Context, email string, purpose identity.Purpose, data *identity.Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SendOTP"); err != nil {
		return err
	}

	email = normalize(email)
	if !purpose.Valid() {
		return &identity.Error{Status: http.StatusBadRequest, Message: "purpose must be signup or signin"}
	}
	if _, exists := p.accounts[email]; !exists && purpose == identity.PurposeSignin {
		return &identity.Error{Status: http.StatusBadRequest, Message: "signups not allowed for otp"}
	}

	code := p.NextCode
	p.NextCode = ""
	if code == "" {
		code = randomCode()
	}
	pc := pendingCode{code: code}
	if data != nil {
		clone := data.Clone()
		pc.data = &clone
	}
	p.codes[codeKey(email, purpose)] = pc
	return nil
}

func (p *Provider) VerifyOTP(ctx context.Context, email, code string, purpose identity.Purpose) (*identity.Session, error) {
	if p.BeforeVerify != nil {
		p.BeforeVerify(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("VerifyOTP"); err != nil {
		return nil, err
	}

	email = normalize(email)
	key := codeKey(email, purpose)
	pc, ok := p.codes[key]
	if !ok || pc.code != code {
		return nil, &identity.Error{Status: http.StatusUnauthorized, Message: "token has expired or is invalid"}
	}
	delete(p.codes, key)

	acct, exists := p.accounts[email]
	if !exists {
		acct = &account{id: uuid.NewString(), email: email}
		if pc.data != nil {
			acct.metadata = pc.data.Clone()
		}
		p.accounts[email] = acct
	}
	return p.startSession(acct), nil
}

func (p *Provider) CurrentSession(_ context.Context) (*identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CurrentSession"); err != nil {
		return nil, err
	}
	if p.session == nil {
		return nil, nil
	}
	if acct, ok := p.accounts[p.session.Identity.Email]; ok {
		p.session.Identity = p.identityOf(acct)
	}
	return p.session.Clone(), nil
}

func (p *Provider) UpdateMetadata(_ context.Context, patch identity.MetadataPatch) (*identity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("UpdateMetadata"); err != nil {
		return nil, err
	}
	if p.session == nil {
		return nil, &identity.Error{Status: http.StatusUnauthorized, Message: "missing authorization header"}
	}
	acct, ok := p.accounts[p.session.Identity.Email]
	if !ok {
		return nil, &identity.Error{Status: http.StatusUnauthorized, Message: "user not found"}
	}
	acct.metadata = patch.Apply(acct.metadata)
	id := p.identityOf(acct)
	p.session.Identity = id.Clone()
	return id, nil
}

func (p *Provider) SignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
	return p.enter("SignOut")
}

func (p *Provider) Subscribe(fn func(identity.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *Provider) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *Provider) enter(op string) error {
	p.calls[op]++
	if err, ok := p.failNext[op]; ok {
		delete(p.failNext, op)
		return err
	}
	return nil
}

func (p *Provider) startSession(acct *account) *identity.Session {
	p.session = &identity.Session{
		AccessToken:  "access-" + uuid.NewString(),
		RefreshToken: "refresh-" + uuid.NewString(),
		ExpiresAt:    time.Now().Add(time.Hour),
		Identity:     p.identityOf(acct),
	}
	return p.session.Clone()
}

func (p *Provider) identityOf(acct *account) *identity.Identity {
	return &identity.Identity{ID: acct.id, Email: acct.email, Metadata: acct.metadata.Clone()}
}

func codeKey(email string, purpose identity.Purpose) string {
	return email + "|" + string(purpose)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(fmt.Sprintf("identitytest: random code: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}
