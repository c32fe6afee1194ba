package scrobbler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/backscrobble/pkg/lastfm"
)

// BatchAPI submits one chunk of events. The chunk never exceeds
// lastfm.MaxBatchSize events.
type BatchAPI interface {
	SubmitBatch(ctx context.Context, events []Event) (BatchResult, error)
}

// BatchResult is Last.fm's verdict on one chunk.
type BatchResult struct {
	Accepted int
	Ignored  int

	// Items holds per-event results in submission order when Last.fm
	// returned one for every event, nil otherwise.
	Items []lastfm.ScrobbleResult
}

// Client wraps the Last.fm API client
type Client struct {
	client *lastfm.Client
}

// Options configures a Client.
type Options struct {
	APIKey     string
	APISecret  string
	SessionKey string
	BaseURL    string
	CacheTTL   time.Duration
	CacheSize  int
	Logger     zerolog.Logger
}

// New creates a new Last.fm client
func New(opts Options) (*Client, error) {
	client, err := lastfm.NewClient(lastfm.Config{
		APIKey:     opts.APIKey,
		APISecret:  opts.APISecret,
		SessionKey: opts.SessionKey,
		BaseURL:    opts.BaseURL,
		CacheTTL:   opts.CacheTTL,
		CacheSize:  opts.CacheSize,
		Logger:     NewLogger(opts.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lastfm client: %w", err)
	}
	return &Client{client: client}, nil
}

// AuthenticateWithToken initiates the web authentication flow.
// Returns the auth URL that the user should visit
func (c *Client) AuthenticateWithToken(ctx context.Context) (token string, authURL string, err error) {
	tokenResp, err := c.client.Auth().GetToken(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to get auth token: %w", err)
	}

	authURL = c.client.Auth().GetAuthURL(tokenResp.Token)
	return tokenResp.Token, authURL, nil
}

// GetSession completes the web authentication flow after user authorization.
// Returns the session key that should be stored for future use
func (c *Client) GetSession(ctx context.Context, token string) (*lastfm.Session, error) {
	session, err := c.client.Auth().GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to login with token: %w", err)
	}
	return c.adopt(session)
}

// LoginMobile exchanges a username and password for a session key.
func (c *Client) LoginMobile(ctx context.Context, username, password string) (*lastfm.Session, error) {
	session, err := c.client.Auth().GetMobileSession(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("failed to login with password: %w", err)
	}
	return c.adopt(session)
}

func (c *Client) adopt(session *lastfm.Session) (*lastfm.Session, error) {
	if session.Key == "" {
		return nil, fmt.Errorf("received empty session key")
	}
	c.client.SetSessionKey(session.Key)
	return session, nil
}

// UpdateNowPlaying sets the user's now playing track.
func (c *Client) UpdateNowPlaying(ctx context.Context, artist, track, album string) error {
	_, err := c.client.Scrobble().UpdateNowPlaying(ctx, lastfm.Track{
		Artist: artist,
		Track:  track,
		Album:  album,
	})
	if err != nil {
		return fmt.Errorf("failed to update now playing: %w", err)
	}
	return nil
}

// SubmitBatch scrobbles one chunk of events.
func (c *Client) SubmitBatch(ctx context.Context, events []Event) (BatchResult, error) {
	if len(events) == 0 {
		return BatchResult{}, nil
	}

	scrobbles := make([]lastfm.Scrobble, len(events))
	for i, e := range events {
		scrobbles[i] = lastfm.Scrobble{
			Track: lastfm.Track{
				Artist: e.Artist,
				Track:  e.Track,
				Album:  e.Album,
			},
			Timestamp: e.Timestamp,
		}
	}

	resp, err := c.client.Scrobble().ScrobbleBatch(ctx, scrobbles)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to scrobble batch: %w", err)
	}

	result := BatchResult{Accepted: resp.Accepted, Ignored: resp.Ignored}
	if len(resp.Scrobbles) == len(events) {
		result.Items = resp.Scrobbles
	}
	return result, nil
}

// Search looks up tracks matching artist and track.
func (c *Client) Search(ctx context.Context, artist, track string, limit int) ([]lastfm.SearchResult, error) {
	results, err := c.client.Track().Search(ctx, artist, track, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	return results, nil
}

// AlbumTracks resolves an album's track list. A nil album means Last.fm
// does not know it.
func (c *Client) AlbumTracks(ctx context.Context, artist, album string) (*lastfm.AlbumInfo, error) {
	info, err := c.client.Album().GetInfo(ctx, artist, album)
	if err != nil {
		return nil, fmt.Errorf("failed to get album info: %w", err)
	}
	return info, nil
}

// IsAuthenticated checks if the client has a valid session
func (c *Client) IsAuthenticated() bool {
	return c.client.GetSessionKey() != ""
}

// GetSessionKey returns the current session key
func (c *Client) GetSessionKey() string {
	return c.client.GetSessionKey()
}

// zerologAdapter routes SDK debug output through zerolog.
type zerologAdapter struct {
	logger zerolog.Logger
}

// NewLogger adapts a zerolog logger to the lastfm.Logger interface.
func NewLogger(logger zerolog.Logger) lastfm.Logger {
	return zerologAdapter{logger: logger.With().Str("component", "lastfm").Logger()}
}

func (a zerologAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug().Msgf(format, args...)
}
