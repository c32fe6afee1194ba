package lastfm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// request describes one API call before signing.
type request struct {
	method     string            // Last.fm method, e.g. "track.scrobble"
	httpMethod string            // http.MethodGet for reads, http.MethodPost for writes
	params     map[string]string // method specific parameters
	signed     bool              // add api_sig
	session    bool              // add sk (implies signed)
}

// apiErrorBody is the error object Last.fm embeds in a JSON response.
type apiErrorBody struct {
	Error   *int   `json:"error"`
	Message string `json:"message"`
}

const userAgent = "backscrobble/1.0"

// get performs an unsigned read call. Reads are cached and retried.
func (c *Client) get(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	return c.call(ctx, request{method: method, httpMethod: http.MethodGet, params: params})
}

// post performs a signed write call. Writes bypass the cache and are
// attempted exactly once.
func (c *Client) post(ctx context.Context, method string, params map[string]string, session bool) ([]byte, error) {
	return c.call(ctx, request{method: method, httpMethod: http.MethodPost, params: params, signed: true, session: session})
}

// call makes an HTTP request to the Last.fm API.
//
// It handles:
// - Request construction with proper headers
// - Signature calculation for authenticated requests
// - The read cache (GET only)
// - Error classification (network, protocol, API, decode)
// - Retry with exponential backoff (GET only)
// - Context cancellation
func (c *Client) call(ctx context.Context, req request) ([]byte, error) {
	reqParams := make(map[string]string, len(req.params)+5)
	for k, v := range req.params {
		reqParams[k] = v
	}
	reqParams["method"] = req.method
	reqParams["api_key"] = c.apiKey

	if req.session {
		if c.sessionKey == "" {
			return nil, ErrNoSessionKey
		}
		reqParams["sk"] = c.sessionKey
	}

	if req.signed || req.session {
		if err := c.sign(reqParams); err != nil {
			return nil, err
		}
	}

	// format is added after signing and never signed
	reqParams["format"] = "json"

	values := url.Values{}
	for k, v := range reqParams {
		values.Set(k, v)
	}

	isRead := req.httpMethod == http.MethodGet
	key := cacheKey(values)
	if isRead {
		if body, ok := c.cache.get(key); ok {
			c.logDebugf("lastfm: %s served from cache", req.method)
			return body, nil
		}
	}

	attempts := 1
	if isRead {
		attempts = c.maxRetries
	}

	var lastErr error
	backoff := c.backoff

	for i := 0; i < attempts; i++ {
		c.logDebugf("lastfm: calling %s (attempt %d/%d)", req.method, i+1, attempts)

		body, err := c.do(ctx, req, values)
		if err == nil {
			c.logDebugf("lastfm: %s succeeded", req.method)
			if isRead {
				c.cache.add(key, body)
			}
			return body, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		if !isRetryableError(err) || i == attempts-1 {
			break
		}

		c.logDebugf("lastfm: %s failed, retrying in %v: %v", req.method, backoff, err)
		if !sleep(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff)
	}

	return nil, lastErr
}

// do executes a single HTTP round trip and classifies the outcome.
func (c *Client) do(ctx context.Context, req request, values url.Values) ([]byte, error) {
	var (
		httpReq *http.Request
		err     error
	)
	encoded := values.Encode()
	if req.httpMethod == http.MethodPost {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(encoded))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+encoded, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("lastfm: failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Method: req.method, Err: err}
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, &NetworkError{Method: req.method, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return classifyResponse(req.method, resp, body)
}

// classifyResponse turns a raw HTTP response into either the body or a
// typed error. Last.fm reports its own errors with both 200 and 4xx
// statuses, so the embedded error object is checked before the status.
func classifyResponse(method string, resp *http.Response, body []byte) ([]byte, error) {
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	protoErr := &ProtocolError{Method: method, StatusCode: resp.StatusCode, Status: resp.Status}

	if len(bytes.TrimSpace(body)) == 0 {
		if !ok {
			return nil, protoErr
		}
		return nil, &DecodeError{Method: method}
	}

	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err != nil {
		if !ok {
			return nil, protoErr
		}
		return nil, &DecodeError{Method: method, Body: body, Err: err}
	}

	if apiErr.Error != nil && *apiErr.Error != 0 {
		return nil, &Error{Code: *apiErr.Error, Message: apiErr.Message}
	}

	if !ok {
		return nil, protoErr
	}

	return body, nil
}

// decode unmarshals a successful body into v, reporting failures as a
// DecodeError.
func decode(method string, body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &DecodeError{Method: method, Body: body, Err: err}
	}
	return nil
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextBackoff calculates the next backoff duration with exponential increase.
// Maximum backoff is capped at 30 seconds.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
