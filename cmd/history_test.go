package cmd

import (
	"testing"

	"github.com/jfmyers9/backscrobble/internal/history"
	"github.com/jfmyers9/backscrobble/internal/scrobbler"
)

func TestParseOutcome(t *testing.T) {
	valid := []scrobbler.Outcome{
		scrobbler.OutcomeAccepted,
		scrobbler.OutcomeIgnored,
		scrobbler.OutcomeFailed,
		history.OutcomePending,
	}
	for _, want := range valid {
		got, err := parseOutcome(string(want))
		if err != nil {
			t.Errorf("parseOutcome(%q) returned error: %v", want, err)
		}
		if got != want {
			t.Errorf("parseOutcome(%q) = %q", want, got)
		}
	}

	if _, err := parseOutcome("lost"); err == nil {
		t.Error("expected error for unknown outcome")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("8f14e45f-ceea-467f-a0e6-1b1f3cbd9e2a"); got != "8f14e45f" {
		t.Errorf("expected 8f14e45f, got %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}
