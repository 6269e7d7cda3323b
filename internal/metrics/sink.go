// Package metrics records operational counters for the scheduler and the
// process supervisor. Implementations are fire-and-forget: they never block
// and never propagate errors into the paths they observe.
package metrics

import "time"

// Sink receives scheduler and supervisor events.
type Sink interface {
	// TickCompleted records one scheduler evaluation pass.
	TickCompleted(duration time.Duration, due int, err error)
	// DispatchOutcome records the final outcome of one dispatch attempt.
	DispatchOutcome(kind, outcome string)
	// SupervisorState records a supervisor state transition.
	SupervisorState(state string)
}

// Outcome labels for DispatchOutcome.
const (
	OutcomeSent      = "sent"
	OutcomeRearmed   = "rearmed"
	OutcomeRetried   = "retried"
	OutcomeAbandoned = "abandoned"
	OutcomeSkipped   = "skipped"
)

// Noop discards all events.
type Noop struct{}

func (Noop) TickCompleted(time.Duration, int, error) {}
func (Noop) DispatchOutcome(string, string)          {}
func (Noop) SupervisorState(string)                  {}
