package notification

import (
	"context"
	"sync"
)

// Sent is one message captured by Recorder.
type Sent struct {
	To      []string
	Subject string
	Body    string
}

// Recorder is an in-memory Provider used by tests across packages.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (r *Recorder) Send(_ context.Context, to []string, subject string, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Sent{To: append([]string(nil), to...), Subject: subject, Body: body})
	return nil
}

func (r *Recorder) Messages() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}
