package scrobbler

import (
	"time"
)

// Request asks for one track to be scrobbled Count times.
type Request struct {
	Artist string `yaml:"artist"`
	Track  string `yaml:"track"`
	Album  string `yaml:"album,omitempty"`
	Count  int    `yaml:"count"`
}

// Event is a single play to submit. Events are generated by Expand and
// never modified afterwards.
type Event struct {
	Artist    string
	Track     string
	Album     string
	Timestamp time.Time
}

// DefaultStep is the gap between consecutive fabricated plays.
const DefaultStep = 60 * time.Second

// Expand turns requests into a flat list of events, most recent first.
//
// Requests are processed in order and each one contributes Count
// consecutive events. The very first event is stamped base, and every
// following event is step earlier than the one before it, so timestamps
// are strictly decreasing across the whole list. Requests with a Count of
// zero or less are skipped.
//
// Timestamps have second precision. A step shorter than one second is
// replaced with DefaultStep. Expand reads no clock: equal inputs always
// produce equal output.
func Expand(reqs []Request, base time.Time, step time.Duration) []Event {
	step = step.Truncate(time.Second)
	if step < time.Second {
		step = DefaultStep
	}

	events := make([]Event, 0, TotalCount(reqs))
	ts := time.Unix(base.Unix(), 0)
	for _, r := range reqs {
		for i := 0; i < r.Count; i++ {
			events = append(events, Event{
				Artist:    r.Artist,
				Track:     r.Track,
				Album:     r.Album,
				Timestamp: ts,
			})
			ts = ts.Add(-step)
		}
	}
	return events
}

// TotalCount returns the number of events Expand would produce.
func TotalCount(reqs []Request) int {
	total := 0
	for _, r := range reqs {
		if r.Count > 0 {
			total += r.Count
		}
	}
	return total
}

// Chunk slices events into consecutive batches of at most size events,
// preserving order. The batches share the backing array of events.
func Chunk(events []Event, size int) [][]Event {
	if size <= 0 {
		size = 1
	}
	if len(events) == 0 {
		return nil
	}

	chunks := make([][]Event, 0, (len(events)+size-1)/size)
	for start := 0; start < len(events); start += size {
		end := start + size
		if end > len(events) {
			end = len(events)
		}
		chunks = append(chunks, events[start:end:end])
	}
	return chunks
}
