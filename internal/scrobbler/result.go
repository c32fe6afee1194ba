package scrobbler

import (
	"fmt"
)

// State is a step of a submission.
type State int

const (
	StateIdle State = iota
	StateExpanding
	StateSubmitting
	StateCompleted
	StateCancelled
	StateFailed
)

// String returns a human-readable representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExpanding:
		return "expanding"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a whole submission.
type Result struct {
	SubmissionID string // history ID, empty when history is disabled
	Total        int    // events in the submission
	Processed    int    // events in batches that were sent
	Accepted     int    // recorded by Last.fm
	Failed       int    // ignored by Last.fm or lost to an error
	Batches      int    // batches sent
	State        State  // final state
}

// Cancelled reports whether the submission stopped before every batch was
// sent.
func (r Result) Cancelled() bool {
	return r.State == StateCancelled
}

// Progress is reported after every batch.
type Progress struct {
	Processed int
	Total     int
	Accepted  int
	Failed    int
	Batch     int
	Batches   int
	Message   string
}

// ProgressFunc receives progress notifications. It is called on the
// submitting goroutine and should return quickly.
type ProgressFunc func(Progress)

// Outcome classifies what happened to a single event.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeFailed   Outcome = "failed"
)

// EventOutcome pairs an outcome with the reason Last.fm or the transport
// gave for it.
type EventOutcome struct {
	Outcome Outcome
	Reason  string
}

// tally is the running bookkeeping for one submission. It is owned by the
// submitting goroutine.
type tally struct {
	total    int
	batches  int
	batch    int
	done     int
	accepted int
	failed   int
}

func newTally(total, batches int) *tally {
	return &tally{total: total, batches: batches}
}

// record adds the outcome of one batch of size n.
func (t *tally) record(n, accepted, failed int) {
	t.batch++
	t.done += n
	t.accepted += accepted
	t.failed += failed
}

func (t *tally) progress() Progress {
	return Progress{
		Processed: t.done,
		Total:     t.total,
		Accepted:  t.accepted,
		Failed:    t.failed,
		Batch:     t.batch,
		Batches:   t.batches,
		Message: fmt.Sprintf("Batch %d/%d | Accepted: %d | Failed: %d | Total: %d/%d",
			t.batch, t.batches, t.accepted, t.failed, t.done, t.total),
	}
}

func (t *tally) result(state State) Result {
	return Result{
		Total:     t.total,
		Processed: t.done,
		Accepted:  t.accepted,
		Failed:    t.failed,
		Batches:   t.batch,
		State:     state,
	}
}
