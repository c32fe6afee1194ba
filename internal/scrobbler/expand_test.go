package scrobbler

import (
	"reflect"
	"testing"
	"time"
)

func TestExpand(t *testing.T) {
	base := time.Unix(1700000000, 0)
	step := 60 * time.Second

	reqs := []Request{
		{Artist: "Artist A", Track: "Track 1", Album: "Album X", Count: 3},
		{Artist: "Artist B", Track: "Track 2", Count: 1},
	}

	events := Expand(reqs, base, step)

	want := []Event{
		{Artist: "Artist A", Track: "Track 1", Album: "Album X", Timestamp: base},
		{Artist: "Artist A", Track: "Track 1", Album: "Album X", Timestamp: base.Add(-step)},
		{Artist: "Artist A", Track: "Track 1", Album: "Album X", Timestamp: base.Add(-2 * step)},
		{Artist: "Artist B", Track: "Track 2", Timestamp: base.Add(-3 * step)},
	}

	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events:\n got: %+v\nwant: %+v", events, want)
	}
}

func TestExpand_Properties(t *testing.T) {
	base := time.Unix(1700000000, 0)

	tests := []struct {
		name      string
		reqs      []Request
		step      time.Duration
		wantCount int
		wantStep  time.Duration
	}{
		{
			name:      "zero and negative counts are skipped",
			reqs:      []Request{{Artist: "A", Track: "T", Count: 0}, {Artist: "B", Track: "U", Count: -2}, {Artist: "C", Track: "V", Count: 2}},
			step:      time.Minute,
			wantCount: 2,
			wantStep:  time.Minute,
		},
		{
			name:      "no requests",
			reqs:      nil,
			step:      time.Minute,
			wantCount: 0,
			wantStep:  time.Minute,
		},
		{
			name:      "sub-second step falls back to default",
			reqs:      []Request{{Artist: "A", Track: "T", Count: 3}},
			step:      500 * time.Millisecond,
			wantCount: 3,
			wantStep:  DefaultStep,
		},
		{
			name:      "custom step",
			reqs:      []Request{{Artist: "A", Track: "T", Count: 120}},
			step:      3 * time.Minute,
			wantCount: 120,
			wantStep:  3 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := Expand(tt.reqs, base, tt.step)

			if len(events) != tt.wantCount {
				t.Fatalf("expected %d events, got %d", tt.wantCount, len(events))
			}
			if TotalCount(tt.reqs) != tt.wantCount {
				t.Errorf("TotalCount = %d, expected %d", TotalCount(tt.reqs), tt.wantCount)
			}
			if len(events) > 0 && !events[0].Timestamp.Equal(base) {
				t.Errorf("first event at %v, expected %v", events[0].Timestamp, base)
			}
			for i := 1; i < len(events); i++ {
				gap := events[i-1].Timestamp.Sub(events[i].Timestamp)
				if gap != tt.wantStep {
					t.Fatalf("gap between events %d and %d is %v, expected %v", i-1, i, gap, tt.wantStep)
				}
			}
		})
	}
}

func TestExpand_Deterministic(t *testing.T) {
	base := time.Unix(1700000000, 0)
	reqs := []Request{
		{Artist: "A", Track: "T1", Count: 7},
		{Artist: "B", Track: "T2", Album: "X", Count: 5},
	}

	first := Expand(reqs, base, DefaultStep)
	second := Expand(reqs, base, DefaultStep)

	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical output for identical input")
	}
}

func TestExpand_SecondPrecision(t *testing.T) {
	base := time.Unix(1700000000, 999_000_000)
	events := Expand([]Request{{Artist: "A", Track: "T", Count: 2}}, base, DefaultStep)

	for i, e := range events {
		if e.Timestamp.Nanosecond() != 0 {
			t.Errorf("event %d has sub-second timestamp %v", i, e.Timestamp)
		}
	}
	if events[0].Timestamp.Unix() != 1700000000 {
		t.Errorf("expected first timestamp 1700000000, got %d", events[0].Timestamp.Unix())
	}
}

func TestChunk(t *testing.T) {
	makeEvents := func(n int) []Event {
		events := make([]Event, n)
		for i := range events {
			events[i] = Event{Artist: "A", Track: "T", Timestamp: time.Unix(int64(n-i), 0)}
		}
		return events
	}

	tests := []struct {
		name      string
		count     int
		size      int
		wantSizes []int
	}{
		{name: "empty", count: 0, size: 50, wantSizes: nil},
		{name: "exactly one batch", count: 50, size: 50, wantSizes: []int{50}},
		{name: "one over", count: 51, size: 50, wantSizes: []int{50, 1}},
		{name: "several batches", count: 120, size: 50, wantSizes: []int{50, 50, 20}},
		{name: "small batch size", count: 5, size: 2, wantSizes: []int{2, 2, 1}},
		{name: "invalid size", count: 2, size: 0, wantSizes: []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := makeEvents(tt.count)
			chunks := Chunk(events, tt.size)

			if len(chunks) != len(tt.wantSizes) {
				t.Fatalf("expected %d chunks, got %d", len(tt.wantSizes), len(chunks))
			}

			var flat []Event
			for i, c := range chunks {
				if len(c) != tt.wantSizes[i] {
					t.Errorf("chunk %d: expected %d events, got %d", i, tt.wantSizes[i], len(c))
				}
				flat = append(flat, c...)
			}
			if len(flat) != len(events) {
				t.Fatalf("concatenated chunks have %d events, expected %d", len(flat), len(events))
			}
			for i := range flat {
				if flat[i] != events[i] {
					t.Fatalf("event %d out of order", i)
				}
			}
		})
	}
}
