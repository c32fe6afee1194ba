package lastfm

import (
	"fmt"
	"net/http"
	"time"
)

// Config holds client configuration.
type Config struct {
	APIKey     string        // Required: Last.fm API key
	APISecret  string        // Optional: API secret, required for signed methods
	SessionKey string        // Optional: Session key for authenticated requests
	HTTPClient *http.Client  // Optional: HTTP client (defaults to a client with a 30s timeout)
	BaseURL    string        // Optional: Base URL for API (defaults to Last.fm API, used for testing)
	Logger     Logger        // Optional: Logger interface for debug logging
	CacheTTL   time.Duration // Optional: Read cache TTL (0 = DefaultCacheTTL, negative disables)
	CacheSize  int           // Optional: Read cache capacity (0 = DefaultCacheSize)
	MaxRetries int           // Optional: Attempts for read calls (0 = DefaultMaxRetries)

	// Optional: First delay between read retries (0 = 1s), doubled per attempt
	RetryBackoff time.Duration
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for Last.fm API operations.
type Client struct {
	apiKey     string
	apiSecret  string
	sessionKey string
	httpClient *http.Client
	baseURL    string
	logger     Logger
	cache      *responseCache
	maxRetries int
	backoff    time.Duration

	auth     *AuthService
	scrobble *ScrobbleService
	track    *TrackService
	album    *AlbumService
}

const (
	// DefaultBaseURL is the default Last.fm API endpoint.
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	// DefaultMaxRetries is the number of attempts made for read calls.
	DefaultMaxRetries = 3
)

// NewClient creates a new Last.fm API client.
//
// Returns an error if the APIKey is missing. The APISecret is only checked
// when a signed method is called, so read-only clients may omit it.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: APIKey is required", ErrInvalidConfig)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		sessionKey: cfg.SessionKey,
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     cfg.Logger,
		cache:      newResponseCache(cfg.CacheSize, cfg.CacheTTL),
		maxRetries: maxRetries,
		backoff:    backoff,
	}

	c.auth = &AuthService{client: c}
	c.scrobble = &ScrobbleService{client: c}
	c.track = &TrackService{client: c}
	c.album = &AlbumService{client: c}

	return c, nil
}

// Auth returns the authentication service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// Scrobble returns the scrobbling service.
func (c *Client) Scrobble() *ScrobbleService {
	return c.scrobble
}

// Track returns the track lookup service.
func (c *Client) Track() *TrackService {
	return c.track
}

// Album returns the album lookup service.
func (c *Client) Album() *AlbumService {
	return c.album
}

// SetSessionKey sets the session key for authenticated requests.
func (c *Client) SetSessionKey(key string) {
	c.sessionKey = key
}

// GetSessionKey returns the current session key.
func (c *Client) GetSessionKey() string {
	return c.sessionKey
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
