// Package session holds who is signed in. A Store is created once by the
// shell and passed to everything that needs the current identity.
package session

import (
	"context"
	"sync"

	"github.com/satecha/satecha/internal/identity"
	"github.com/satecha/satecha/pkg/logger"
)

// Ticket marks the start of a local sign-in attempt. Its result is only
// applied when no provider notification arrived in the meantime.
type Ticket struct {
	seq  uint64
	prev Status
}

type listener struct {
	mu        sync.Mutex
	fn        func(State)
	cancelled bool
}

type Store struct {
	provider    identity.Provider
	unsubscribe func()

	mu         sync.Mutex
	state      State
	notifySeq  uint64
	listeners  map[int]*listener
	nextID     int
	pending    []State
	delivering bool
	closed     bool
}

// NewStore subscribes to the provider right away so notifications that
// arrive during Initialize are not lost.
func NewStore(provider identity.Provider) *Store {
	s := &Store{
		provider:  provider,
		listeners: map[int]*listener{},
	}
	s.unsubscribe = provider.Subscribe(s.handleEvent)
	return s
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Identity = s.state.Identity.Clone()
	return out
}

// Identity returns a copy of the signed-in identity or nil.
func (s *Store) Identity() *identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Identity.Clone()
}

// Initialize asks the provider for an existing session. A failed lookup
// leaves the store signed out; it is logged, never returned.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	seq := s.notifySeq
	s.dispatchLocked(action{kind: actLoadStarted})
	s.mu.Unlock()
	s.flush()

	sess, err := s.provider.CurrentSession(ctx)
	if err != nil {
		logger.Warn("session_lookup_failed", map[string]interface{}{"error": err.Error()})
		sess = nil
	}

	s.mu.Lock()
	if s.notifySeq != seq {
		s.dispatchLocked(action{kind: actLoaded, identity: s.state.Identity})
	} else {
		var id *identity.Identity
		if sess != nil {
			id = sess.Identity
		}
		s.dispatchLocked(action{kind: actLoaded, identity: id})
	}
	s.mu.Unlock()
	s.flush()
}

// Begin moves the store to Authenticating for a local attempt.
func (s *Store) Begin() Ticket {
	s.mu.Lock()
	t := Ticket{seq: s.notifySeq, prev: s.state.Status}
	s.dispatchLocked(action{kind: actBegin})
	s.mu.Unlock()
	s.flush()
	return t
}

// Complete publishes the identity a local attempt produced. It reports
// false and leaves the store alone when a provider notification arrived
// after the ticket was issued.
func (s *Store) Complete(t Ticket, id *identity.Identity) bool {
	s.mu.Lock()
	if s.notifySeq != t.seq {
		s.mu.Unlock()
		logger.Info("session_local_result_superseded", nil)
		return false
	}
	s.dispatchLocked(action{kind: actComplete, identity: id})
	s.mu.Unlock()
	s.flush()
	return true
}

// Fail returns the store to the status it held before the attempt.
func (s *Store) Fail(t Ticket) {
	s.mu.Lock()
	if s.notifySeq == t.seq {
		s.dispatchLocked(action{kind: actFail, status: t.prev})
	}
	s.mu.Unlock()
	s.flush()
}

// Withhold ends a local attempt whose provider session is not published.
// The provider no longer holds the previous session, so the store ends
// signed out.
func (s *Store) Withhold() {
	s.mu.Lock()
	s.dispatchLocked(action{kind: actSignedOut})
	s.mu.Unlock()
	s.flush()
}

// SignOut always ends signed out, even when the provider call fails. The
// provider error is still returned.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.dispatchLocked(action{kind: actSignOutStarted})
	s.mu.Unlock()
	s.flush()

	err := s.provider.SignOut(ctx)
	if err != nil {
		logger.Warn("session_signout_provider_failed", map[string]interface{}{"error": err.Error()})
	}

	s.mu.Lock()
	s.dispatchLocked(action{kind: actSignedOut})
	s.mu.Unlock()
	s.flush()
	return err
}

// UpdateIdentity replaces the signed-in identity after a metadata write.
// It is ignored when id belongs to someone else.
func (s *Store) UpdateIdentity(id *identity.Identity) {
	s.mu.Lock()
	s.dispatchLocked(action{kind: actUpdateIdentity, identity: id})
	s.mu.Unlock()
	s.flush()
}

func (s *Store) SetTwoFactorEnabled(enabled bool) {
	s.mu.Lock()
	s.dispatchLocked(action{kind: actSetTwoFactor, enabled: enabled})
	s.mu.Unlock()
	s.flush()
}

// Watch calls fn with every new state in version order. After the
// returned cancel func returns, fn is not called again. Calling cancel from
// inside fn deadlocks.
func (s *Store) Watch(fn func(State)) (cancel func()) {
	l := &listener{fn: fn}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if !s.closed {
		s.listeners[id] = l
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()

			l.mu.Lock()
			l.cancelled = true
			l.mu.Unlock()
		})
	}
}

// Close stops listening to the provider and drops all watchers.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	listeners := s.listeners
	s.listeners = map[int]*listener{}
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	for _, l := range listeners {
		l.mu.Lock()
		l.cancelled = true
		l.mu.Unlock()
	}
}

func (s *Store) handleEvent(e identity.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var id *identity.Identity
	if e.Session != nil {
		id = e.Session.Identity
	}
	switch e.Kind {
	case identity.EventSignedIn, identity.EventSignedOut:
		s.notifySeq++
	case identity.EventTokenRefreshed, identity.EventUserUpdated:
		if s.state.Status == StatusSignedIn {
			s.notifySeq++
		}
	}
	s.dispatchLocked(action{kind: actNotify, event: e.Kind, identity: id})
	s.mu.Unlock()
	s.flush()

	logger.Info("session_provider_event", map[string]interface{}{"event": e.Kind.String()})
}

func (s *Store) dispatchLocked(a action) {
	next := reduce(s.state, a)
	if !changed(s.state, next) {
		return
	}
	next.Version = s.state.Version + 1
	s.state = next
	snapshot := next
	snapshot.Identity = next.Identity.Clone()
	s.pending = append(s.pending, snapshot)
}

// flush delivers queued snapshots. Only one goroutine delivers at a time;
// others, including listeners that change the store from inside a callback,
// leave their snapshots to it.
func (s *Store) flush() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		listeners := make([]*listener, 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
		s.mu.Unlock()

		for _, state := range batch {
			for _, l := range listeners {
				l.deliver(state)
			}
		}

		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}

func (l *listener) deliver(state State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancelled {
		return
	}
	out := state
	out.Identity = state.Identity.Clone()
	l.fn(out)
}
