package scrobbler

import (
	"fmt"
	"strings"
	"time"
)

// Last.fm submission limits
const (
	// MaxScrobbleAge is how far back Last.fm accepts a scrobble timestamp.
	// Older plays are ignored by the service.
	MaxScrobbleAge = 14 * 24 * time.Hour

	// DailyScrobbleLimit is roughly how many scrobbles Last.fm records per
	// user per day before it starts ignoring them.
	DailyScrobbleLimit = 2800

	// MaxRequestCount caps the repeat count of a single request.
	MaxRequestCount = 3000
)

// ValidateRequests checks that every request names an artist and a track
// and has a sane repeat count.
func ValidateRequests(reqs []Request) error {
	for i, r := range reqs {
		if strings.TrimSpace(r.Artist) == "" {
			return fmt.Errorf("request %d: artist is required", i+1)
		}
		if strings.TrimSpace(r.Track) == "" {
			return fmt.Errorf("request %d (%s): track is required", i+1, r.Artist)
		}
		if r.Count < 0 {
			return fmt.Errorf("request %d (%s - %s): count must not be negative, got %d", i+1, r.Artist, r.Track, r.Count)
		}
		if r.Count > MaxRequestCount {
			return fmt.Errorf("request %d (%s - %s): count %d exceeds maximum of %d", i+1, r.Artist, r.Track, r.Count, MaxRequestCount)
		}
	}
	return nil
}

// OldestTimestamp returns the timestamp of the oldest event, or the zero
// time for an empty list.
func OldestTimestamp(events []Event) time.Time {
	var oldest time.Time
	for _, e := range events {
		if oldest.IsZero() || e.Timestamp.Before(oldest) {
			oldest = e.Timestamp
		}
	}
	return oldest
}

// CountTooOld returns how many events are older than MaxScrobbleAge
// relative to now.
func CountTooOld(events []Event, now time.Time) int {
	cutoff := now.Add(-MaxScrobbleAge)
	n := 0
	for _, e := range events {
		if e.Timestamp.Before(cutoff) {
			n++
		}
	}
	return n
}
