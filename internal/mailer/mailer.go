// Package mailer delivers one-time passcodes. Real email delivery is out of
// scope; the console mailer writes the message where an operator can read it.
package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type CodeMessage struct {
	To      string
	Code    string
	Purpose string
	TTL     time.Duration
}

type Mailer interface {
	SendCode(ctx context.Context, msg CodeMessage) error
}

type ConsoleMailer struct {
	mu  sync.Mutex
	out io.Writer
}

var _ Mailer = (*ConsoleMailer)(nil)

func NewConsoleMailer(out io.Writer) *ConsoleMailer {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleMailer{out: out}
}

func (m *ConsoleMailer) SendCode(_ context.Context, msg CodeMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := fmt.Fprintf(m.out,
		"To: %s\nSubject: Your Satecha %s code\n\nYour code is %s. It expires in %d minutes.\n\n",
		msg.To, msg.Purpose, msg.Code, int(msg.TTL.Minutes()),
	)
	return err
}

// Recorder keeps sent messages in memory. Tests read codes back from it.
type Recorder struct {
	mu   sync.Mutex
	sent []CodeMessage
}

var _ Mailer = (*Recorder)(nil)

func (r *Recorder) SendCode(_ context.Context, msg CodeMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

// Last returns the most recent message sent to the address.
func (r *Recorder) Last(to string) (CodeMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].To == to {
			return r.sent[i], true
		}
	}
	return CodeMessage{}, false
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
