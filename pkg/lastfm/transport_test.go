package lastfm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient creates a client pointed at the given test server.
func newTestClient(t *testing.T, serverURL string, mutate func(*Config)) *Client {
	t.Helper()

	cfg := Config{
		APIKey:       "test-api-key",
		APISecret:    "test-secret",
		SessionKey:   "test-session-key",
		BaseURL:      serverURL,
		RetryBackoff: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func writeBody(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatalf("failed to write response body: %v", err)
	}
}

func TestCall_SignedPostParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST request, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("expected form content type, got %s", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}

		if got := r.PostForm.Get("format"); got != "json" {
			t.Errorf("expected format json, got %q", got)
		}
		if got := r.PostForm.Get("sk"); got != "test-session-key" {
			t.Errorf("expected sk test-session-key, got %q", got)
		}

		// Recompute the signature over everything except api_sig and format.
		signed := map[string]string{}
		for k := range r.PostForm {
			if k == "api_sig" || k == "format" {
				continue
			}
			signed[k] = r.PostForm.Get(k)
		}
		want := calculateSignature(signed, "test-secret")
		if got := r.PostForm.Get("api_sig"); got != want {
			t.Errorf("expected api_sig %s, got %s", want, got)
		}

		writeBody(t, w, http.StatusOK, `{"ok":1}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	if _, err := client.post(context.Background(), "test.write", map[string]string{"foo": "bar"}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCall_ConfigurationErrorsBeforeNetwork(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeBody(t, w, http.StatusOK, `{}`)
	}))
	defer server.Close()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.APISecret = "" },
			wantErr: ErrMissingSecret,
		},
		{
			name:    "missing session key",
			mutate:  func(c *Config) { c.SessionKey = "" },
			wantErr: ErrNoSessionKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, server.URL, tt.mutate)
			_, err := client.post(context.Background(), "test.write", nil, true)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !IsConfigError(err) {
				t.Errorf("expected IsConfigError to be true for %v", err)
			}
		})
	}

	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestCall_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "api error with 200",
			status: http.StatusOK,
			body:   `{"error":9,"message":"Invalid session key - Please re-authenticate"}`,
			check: func(t *testing.T, err error) {
				var lastfmErr *Error
				if !errors.As(err, &lastfmErr) {
					t.Fatalf("expected *Error, got %T: %v", err, err)
				}
				if lastfmErr.Code != ErrCodeInvalidSessionKey {
					t.Errorf("expected code 9, got %d", lastfmErr.Code)
				}
			},
		},
		{
			name:   "api error with 4xx wins over status",
			status: http.StatusBadRequest,
			body:   `{"error":6,"message":"Track not found"}`,
			check: func(t *testing.T, err error) {
				if !IsNotFound(err) {
					t.Fatalf("expected not found error, got %v", err)
				}
			},
		},
		{
			name:   "non-success status without api body",
			status: http.StatusForbidden,
			body:   `<html>nope</html>`,
			check: func(t *testing.T, err error) {
				var protoErr *ProtocolError
				if !errors.As(err, &protoErr) {
					t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
				}
				if protoErr.StatusCode != http.StatusForbidden {
					t.Errorf("expected status 403, got %d", protoErr.StatusCode)
				}
			},
		},
		{
			name:   "empty body",
			status: http.StatusOK,
			body:   ``,
			check: func(t *testing.T, err error) {
				var decErr *DecodeError
				if !errors.As(err, &decErr) {
					t.Fatalf("expected *DecodeError, got %T: %v", err, err)
				}
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{"scrobbles":`,
			check: func(t *testing.T, err error) {
				var decErr *DecodeError
				if !errors.As(err, &decErr) {
					t.Fatalf("expected *DecodeError, got %T: %v", err, err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeBody(t, w, tt.status, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, nil)
			_, err := client.post(context.Background(), "test.write", nil, true)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			tt.check(t, err)
		})
	}
}

func TestCall_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url, nil)
	_, err := client.post(context.Background(), "test.write", nil, true)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
}

func TestCall_WritesAreNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeBody(t, w, http.StatusServiceUnavailable, ``)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	if _, err := client.post(context.Background(), "test.write", nil, true); err == nil {
		t.Fatal("expected error, got nil")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected exactly 1 request, got %d", n)
	}
}

func TestCall_ReadsAreRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			writeBody(t, w, http.StatusOK, `{"error":16,"message":"Temporarily unavailable"}`)
			return
		}
		writeBody(t, w, http.StatusOK, `{"ok":1}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	if _, err := client.get(context.Background(), "test.read", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("expected 3 requests, got %d", n)
	}
}

func TestCall_ReadsAreCached(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET request, got %s", r.Method)
		}
		if r.URL.Query().Get("api_sig") != "" {
			t.Error("reads must not be signed")
		}
		atomic.AddInt32(&hits, 1)
		writeBody(t, w, http.StatusOK, `{"ok":1}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.get(ctx, "test.read", map[string]string{"q": "a"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := client.get(ctx, "test.read", map[string]string{"q": "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("expected 2 requests (one per distinct parameter set), got %d", n)
	}
	if client.cache.Len() != 2 {
		t.Errorf("expected 2 cached entries, got %d", client.cache.Len())
	}
}

func TestCall_CacheDisabled(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeBody(t, w, http.StatusOK, `{"ok":1}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(c *Config) { c.CacheTTL = -1 })
	for i := 0; i < 2; i++ {
		if _, err := client.get(context.Background(), "test.read", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("expected 2 requests with cache disabled, got %d", n)
	}
}

func TestCall_WritesBypassCache(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeBody(t, w, http.StatusOK, `{"ok":1}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	for i := 0; i < 2; i++ {
		if _, err := client.post(context.Background(), "test.write", map[string]string{"q": "a"}, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		current time.Duration
		want    time.Duration
	}{
		{time.Second, 2 * time.Second},
		{8 * time.Second, 16 * time.Second},
		{20 * time.Second, 30 * time.Second},
		{30 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := nextBackoff(tt.current); got != tt.want {
			t.Errorf("nextBackoff(%v) = %v, want %v", tt.current, got, tt.want)
		}
	}
}
