package scrobbler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jfmyers9/backscrobble/pkg/lastfm"
)

const (
	// DefaultBatchDelay is the minimum spacing between the starts of two
	// consecutive batches.
	DefaultBatchDelay = 200 * time.Millisecond

	// DefaultFailureBackoff is the extra pause after a batch fails.
	DefaultFailureBackoff = time.Second
)

// Recorder persists the outcome of submissions. Recording is best effort:
// errors are logged and never stop a submission. Begin is called once the
// first batch has been answered, so a submission cancelled before it
// starts or stopped by a configuration error is not recorded.
type Recorder interface {
	Begin(ctx context.Context, events []Event) (string, error)
	RecordBatch(ctx context.Context, id string, offset int, outcomes []EventOutcome) error
	Finish(ctx context.Context, id string, result Result) error
}

// SubmitOptions tunes a Submitter. Zero values select the defaults and
// negative durations disable the corresponding pause.
type SubmitOptions struct {
	BatchSize      int           // events per batch, capped at lastfm.MaxBatchSize
	Step           time.Duration // gap between fabricated timestamps
	Delay          time.Duration // minimum spacing between batch starts
	FailureBackoff time.Duration // extra pause after a failed batch
}

func (o SubmitOptions) withDefaults() SubmitOptions {
	if o.BatchSize <= 0 || o.BatchSize > lastfm.MaxBatchSize {
		o.BatchSize = lastfm.MaxBatchSize
	}
	if o.Step == 0 {
		o.Step = DefaultStep
	}
	if o.Delay == 0 {
		o.Delay = DefaultBatchDelay
	}
	if o.FailureBackoff == 0 {
		o.FailureBackoff = DefaultFailureBackoff
	}
	return o
}

// Submitter expands requests into events and sends them in batches.
//
// A Submitter may be reused, but a single submission runs on one
// goroutine: batches are sent strictly in order, one at a time.
type Submitter struct {
	api      BatchAPI
	opts     SubmitOptions
	logger   zerolog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewSubmitter creates a Submitter sending batches through api.
func NewSubmitter(api BatchAPI, opts SubmitOptions, logger zerolog.Logger) *Submitter {
	return &Submitter{
		api:    api,
		opts:   opts.withDefaults(),
		logger: logger.With().Str("component", "submitter").Logger(),
		now:    time.Now,
	}
}

// SetRecorder attaches a history recorder. A nil recorder disables history.
func (s *Submitter) SetRecorder(r Recorder) {
	s.recorder = r
}

// Submit expands reqs relative to base and submits the resulting events.
// A zero base means now.
func (s *Submitter) Submit(ctx context.Context, reqs []Request, base time.Time, progress ProgressFunc) (Result, error) {
	if base.IsZero() {
		base = s.now()
	}
	s.logger.Debug().Str("state", StateExpanding.String()).Int("requests", len(reqs)).Msg("Expanding requests")
	return s.SubmitEvents(ctx, Expand(reqs, base, s.opts.Step), progress)
}

// SubmitEvents sends already expanded events in batches.
//
// Cancellation is only observed between batches: a batch that has been
// handed to the API always runs to completion, and its outcome is counted.
// A cancelled submission returns the partial Result with a nil error.
//
// A failed batch counts every event in it as failed and the submission
// moves on to the next batch. Only configuration errors, such as a missing
// session key, abort the submission; they are returned alongside the
// partial Result.
func (s *Submitter) SubmitEvents(ctx context.Context, events []Event, progress ProgressFunc) (Result, error) {
	chunks := Chunk(events, s.opts.BatchSize)
	t := newTally(len(events), len(chunks))
	if len(chunks) == 0 {
		return t.result(StateCompleted), nil
	}

	limit := rate.Inf
	if s.opts.Delay > 0 {
		limit = rate.Every(s.opts.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	s.logger.Info().
		Str("state", StateSubmitting.String()).
		Int("events", len(events)).
		Int("batches", len(chunks)).
		Msg("Starting submission")

	state := StateCompleted
	var fatal error
	var id string
	begun := false
	offset := 0

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			state = StateCancelled
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			state = StateCancelled
			break
		}

		// The in-flight call must not be abandoned half way.
		res, err := s.api.SubmitBatch(context.WithoutCancel(ctx), chunk)
		if err != nil && lastfm.IsConfigError(err) {
			fatal = err
			state = StateFailed
			break
		}

		// Nothing is recorded until a batch has been sent.
		if !begun {
			id = s.begin(ctx, events)
			begun = true
		}

		outcomes, accepted, failed := classifyBatch(chunk, res, err)
		t.record(len(chunk), accepted, failed)
		s.recordBatch(ctx, id, offset, outcomes)
		offset += len(chunk)

		level := zerolog.DebugLevel
		if err != nil {
			level = zerolog.WarnLevel
		} else if failed > 0 {
			level = zerolog.InfoLevel
		}
		s.logger.WithLevel(level).
			Err(err).
			Int("batch", i+1).
			Int("batches", len(chunks)).
			Int("accepted", accepted).
			Int("failed", failed).
			Msg("Batch submitted")

		s.report(progress, t.progress())

		if err != nil && i < len(chunks)-1 && s.opts.FailureBackoff > 0 {
			if !sleep(ctx, s.opts.FailureBackoff) {
				state = StateCancelled
				break
			}
		}
	}

	result := t.result(state)
	result.SubmissionID = id
	s.finish(ctx, id, result)

	s.logger.Info().
		Str("state", state.String()).
		Int("accepted", result.Accepted).
		Int("failed", result.Failed).
		Int("processed", result.Processed).
		Int("total", result.Total).
		Msg("Submission finished")

	if fatal != nil {
		return result, fmt.Errorf("submission aborted: %w", fatal)
	}
	return result, nil
}

// classifyBatch turns a batch response into per-event outcomes. The
// accepted and failed counts always add up to len(events).
//
// The aggregate accepted count is authoritative. Per-item results give
// each event its own outcome and reason only when they agree with it;
// otherwise outcomes are attributed in order.
func classifyBatch(events []Event, res BatchResult, err error) ([]EventOutcome, int, int) {
	n := len(events)
	outcomes := make([]EventOutcome, n)

	if err != nil {
		for i := range outcomes {
			outcomes[i] = EventOutcome{Outcome: OutcomeFailed, Reason: err.Error()}
		}
		return outcomes, 0, n
	}

	accepted := res.Accepted
	if accepted < 0 {
		accepted = 0
	}
	if accepted > n {
		accepted = n
	}

	if len(res.Items) == n && countAccepted(res.Items) == accepted {
		for i, item := range res.Items {
			if item.Accepted() {
				outcomes[i] = EventOutcome{Outcome: OutcomeAccepted}
				continue
			}
			reason := item.IgnoredMessage.Text
			if reason == "" {
				reason = fmt.Sprintf("ignored (code %d)", item.IgnoredMessage.Code)
			}
			outcomes[i] = EventOutcome{Outcome: OutcomeIgnored, Reason: reason}
		}
		return outcomes, accepted, n - accepted
	}

	for i := range outcomes {
		if i < accepted {
			outcomes[i] = EventOutcome{Outcome: OutcomeAccepted}
		} else {
			outcomes[i] = EventOutcome{Outcome: OutcomeIgnored, Reason: "ignored by Last.fm"}
		}
	}
	return outcomes, accepted, n - accepted
}

func countAccepted(items []lastfm.ScrobbleResult) int {
	n := 0
	for _, item := range items {
		if item.Accepted() {
			n++
		}
	}
	return n
}

// report delivers progress to the caller. A panicking callback is logged
// and otherwise ignored.
func (s *Submitter) report(progress ProgressFunc, p Progress) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Progress callback panicked")
		}
	}()
	progress(p)
}

func (s *Submitter) begin(ctx context.Context, events []Event) string {
	if s.recorder == nil {
		return ""
	}
	id, err := s.recorder.Begin(context.WithoutCancel(ctx), events)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record submission, continuing without history")
		return ""
	}
	return id
}

func (s *Submitter) recordBatch(ctx context.Context, id string, offset int, outcomes []EventOutcome) {
	if s.recorder == nil || id == "" {
		return
	}
	if err := s.recorder.RecordBatch(context.WithoutCancel(ctx), id, offset, outcomes); err != nil {
		s.logger.Warn().Err(err).Str("submission", id).Msg("Failed to record batch outcome")
	}
}

func (s *Submitter) finish(ctx context.Context, id string, result Result) {
	if s.recorder == nil || id == "" {
		return
	}
	if err := s.recorder.Finish(context.WithoutCancel(ctx), id, result); err != nil {
		s.logger.Warn().Err(err).Str("submission", id).Msg("Failed to record submission result")
	}
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// IsFatal reports whether err aborted a submission rather than failing a
// single batch.
func IsFatal(err error) bool {
	return err != nil && lastfm.IsConfigError(err)
}
