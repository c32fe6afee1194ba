package scrobbler

import (
	"context"
	"time"
)

// progressBuffer is how many progress updates a Job holds for a slow
// reader before dropping new ones.
const progressBuffer = 64

// Job is a submission running in the background.
type Job struct {
	progress chan Progress
	done     chan struct{}
	cancel   context.CancelFunc

	result Result
	err    error
}

// Start runs Submit on a new goroutine.
func (s *Submitter) Start(ctx context.Context, reqs []Request, base time.Time) *Job {
	return s.start(ctx, func(ctx context.Context, progress ProgressFunc) (Result, error) {
		return s.Submit(ctx, reqs, base, progress)
	})
}

// StartEvents runs SubmitEvents on a new goroutine.
func (s *Submitter) StartEvents(ctx context.Context, events []Event) *Job {
	return s.start(ctx, func(ctx context.Context, progress ProgressFunc) (Result, error) {
		return s.SubmitEvents(ctx, events, progress)
	})
}

func (s *Submitter) start(ctx context.Context, run func(context.Context, ProgressFunc) (Result, error)) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		progress: make(chan Progress, progressBuffer),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	go func() {
		defer close(j.done)
		defer close(j.progress)
		defer cancel()
		j.result, j.err = run(ctx, j.send)
	}()

	return j
}

// send never blocks the submitting goroutine.
func (j *Job) send(p Progress) {
	select {
	case j.progress <- p:
	default:
	}
}

// Progress returns the channel of progress updates. It is closed when the
// job ends.
func (j *Job) Progress() <-chan Progress {
	return j.progress
}

// Done is closed when the job ends.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel asks the job to stop at the next batch boundary.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the job ends and returns its outcome.
func (j *Job) Wait() (Result, error) {
	<-j.done
	return j.result, j.err
}
