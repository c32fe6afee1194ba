package scrobbler

import (
	"context"
	"testing"
	"time"
)

func TestJob_RunsToCompletion(t *testing.T) {
	api := &fakeAPI{}
	s := newTestSubmitter(api, fastOptions)

	job := s.Start(context.Background(), []Request{{Artist: "A", Track: "T", Count: 120}}, time.Unix(1700000000, 0))

	var updates []Progress
	for p := range job.Progress() {
		updates = append(updates, p)
	}

	result, err := job.Wait()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Accepted != 120 || result.State != StateCompleted {
		t.Errorf("unexpected result %+v", result)
	}
	if len(updates) != 3 {
		t.Fatalf("expected 3 progress updates, got %d", len(updates))
	}
	last := updates[len(updates)-1]
	if last.Processed != 120 || last.Total != 120 {
		t.Errorf("unexpected final progress %+v", last)
	}

	select {
	case <-job.Done():
	default:
		t.Error("expected Done to be closed after Wait")
	}
}

func TestJob_Cancel(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	api := &fakeAPI{
		respond: func(call int, events []Event) (BatchResult, error) {
			if call == 0 {
				started <- struct{}{}
				<-release
			}
			return BatchResult{Accepted: len(events)}, nil
		},
	}
	s := newTestSubmitter(api, fastOptions)

	job := s.StartEvents(context.Background(), makeEvents(200))

	<-started
	job.Cancel()
	close(release)

	result, err := job.Wait()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Cancelled() {
		t.Errorf("expected cancelled result, got %s", result.State)
	}
	if result.Processed != 50 || result.Accepted != 50 {
		t.Errorf("expected only the in-flight batch to count, got %+v", result)
	}
	if api.callCount() != 1 {
		t.Errorf("expected 1 call, got %d", api.callCount())
	}
}

func TestJob_ParentContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestSubmitter(&fakeAPI{}, fastOptions)
	job := s.StartEvents(ctx, makeEvents(10))

	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}

	result, _ := job.Wait()
	if !result.Cancelled() {
		t.Errorf("expected cancelled result, got %s", result.State)
	}
}
