package auth

import "sync"

type AttemptState int

const (
	AttemptIdle AttemptState = iota
	AttemptSubmitting
	AttemptSucceeded
	AttemptFailed
)

func (s AttemptState) String() string {
	switch s {
	case AttemptIdle:
		return "idle"
	case AttemptSubmitting:
		return "submitting"
	case AttemptSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// Attempt tracks one form's submission. A shell keeps one per form and
// disables its submit control while State is AttemptSubmitting.
type Attempt struct {
	mu    sync.Mutex
	state AttemptState
	err   error
}

func (a *Attempt) State() AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err is the error of the last failed submission.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Submit runs fn unless another submission is still running.
func (a *Attempt) Submit(fn func() error) error {
	a.mu.Lock()
	if a.state == AttemptSubmitting {
		a.mu.Unlock()
		return ErrSubmitInFlight
	}
	a.state = AttemptSubmitting
	a.err = nil
	a.mu.Unlock()

	err := fn()

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.state = AttemptFailed
		a.err = err
		return err
	}
	a.state = AttemptSucceeded
	return nil
}

// Reset returns a finished attempt to idle.
func (a *Attempt) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != AttemptSubmitting {
		a.state = AttemptIdle
		a.err = nil
	}
}
