package delivery

import (
	"context"
	"sync"
)

// Recorder is a Sender fake for tests: it records every delivery and returns
// a scripted outcome.
type Recorder struct {
	mu    sync.Mutex
	calls []RecordedDelivery

	// NextOutcome is returned from Deliver when NextErr is nil.
	NextOutcome Outcome
	// NextErr, when set, is returned from Deliver.
	NextErr error
}

// RecordedDelivery captures one Deliver invocation.
type RecordedDelivery struct {
	Title      string
	Body       string
	Recipients []string
}

// NewRecorder returns a Recorder that reports full success by default.
func NewRecorder() *Recorder {
	return &Recorder{NextOutcome: Outcome{Requested: 1, Delivered: 1}}
}

func (r *Recorder) Deliver(_ context.Context, title, body string, recipients []string) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RecordedDelivery{Title: title, Body: body, Recipients: append([]string(nil), recipients...)})
	if r.NextErr != nil {
		return Outcome{}, r.NextErr
	}
	return r.NextOutcome, nil
}

// Calls returns a copy of the recorded deliveries.
func (r *Recorder) Calls() []RecordedDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedDelivery(nil), r.calls...)
}

// CallCount returns how many deliveries were attempted.
func (r *Recorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
