package lastfm

import (
	"errors"
	"testing"
)

func TestCalculateSignature(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		secret string
		want   string
	}{
		{
			name: "known vector",
			params: map[string]string{
				"api_key": "xxx",
				"method":  "auth.getSession",
				"token":   "yyy",
			},
			secret: "secret",
			want:   "16f6531c029f18b4bef6b36971bbdf4c",
		},
		{
			name: "format is not signed",
			params: map[string]string{
				"api_key": "xxx",
				"method":  "auth.getSession",
				"token":   "yyy",
				"format":  "json",
			},
			secret: "secret",
			want:   "16f6531c029f18b4bef6b36971bbdf4c",
		},
		{
			name: "callback and existing api_sig are not signed",
			params: map[string]string{
				"api_key":  "xxx",
				"method":   "auth.getSession",
				"token":    "yyy",
				"callback": "cb",
				"api_sig":  "stale",
			},
			secret: "secret",
			want:   "16f6531c029f18b4bef6b36971bbdf4c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateSignature(tt.params, tt.secret)
			if got != tt.want {
				t.Errorf("expected signature %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCalculateSignature_OrderIndependent(t *testing.T) {
	// Build the same parameter set many times; map iteration order varies.
	var first string
	for i := 0; i < 50; i++ {
		params := map[string]string{
			"artist[0]":    "A",
			"track[0]":     "T",
			"timestamp[0]": "100",
			"artist[1]":    "B",
			"track[1]":     "U",
			"timestamp[1]": "40",
			"method":       "track.scrobble",
			"api_key":      "key",
			"sk":           "session",
		}
		sig := calculateSignature(params, "secret")
		if i == 0 {
			first = sig
			continue
		}
		if sig != first {
			t.Fatalf("signature changed between runs: %s != %s", first, sig)
		}
	}
}

func TestCalculateSignature_LowercaseHex(t *testing.T) {
	sig := calculateSignature(map[string]string{"a": "b"}, "c")
	if len(sig) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(sig))
	}
	for _, r := range sig {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("signature %q is not lowercase hex", sig)
		}
	}
}

func TestSign_MissingSecret(t *testing.T) {
	client, err := NewClient(Config{APIKey: "key"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	params := map[string]string{"method": "track.scrobble"}
	err = client.sign(params)
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if _, ok := params["api_sig"]; ok {
		t.Error("api_sig must not be set when signing fails")
	}
}
