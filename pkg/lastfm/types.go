package lastfm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Track represents a music track for scrobbling or now playing updates.
type Track struct {
	Artist      string // Required: Artist name
	Track       string // Required: Track name
	Album       string // Optional: Album name
	AlbumArtist string // Optional: Album artist (if different from track artist)
	Duration    int    // Optional: Track duration in seconds
	TrackNumber int    // Optional: Track number on album
	MBTrackID   string // Optional: MusicBrainz track ID
}

// Scrobble represents a single scrobble with timestamp.
type Scrobble struct {
	Track     Track     // The track being scrobbled
	Timestamp time.Time // When the track was played
}

// Token represents an authentication token from auth.getToken.
type Token struct {
	Token string // The authentication token
}

// Session represents an authenticated session from auth.getSession.
type Session struct {
	Key        string // Session key for authenticated requests
	Username   string // Last.fm username
	Subscriber bool   // Whether user is a subscriber
}

// IgnoredMessage explains why Last.fm declined to record a scrobble.
// Code 0 means the scrobble was accepted.
type IgnoredMessage struct {
	Code int
	Text string
}

// NowPlayingResponse represents the response from track.updateNowPlaying.
type NowPlayingResponse struct {
	Artist         string
	Track          string
	Album          string
	AlbumArtist    string
	IgnoredMessage IgnoredMessage
}

// ScrobbleResult is the per-item outcome inside a track.scrobble response.
type ScrobbleResult struct {
	Artist         string
	Track          string
	Album          string
	Timestamp      int64
	IgnoredMessage IgnoredMessage
}

// Accepted reports whether Last.fm recorded this scrobble.
func (r ScrobbleResult) Accepted() bool {
	return r.IgnoredMessage.Code == 0
}

// ScrobbleResponse represents the response from track.scrobble.
type ScrobbleResponse struct {
	Accepted  int // Number of scrobbles accepted
	Ignored   int // Number of scrobbles ignored
	Scrobbles []ScrobbleResult
}

// SearchResult is one match from track.search.
type SearchResult struct {
	Name      string
	Artist    string
	URL       string
	Listeners int
	MBID      string
}

// AlbumInfo is the subset of album.getInfo used for album scrobbling.
type AlbumInfo struct {
	Name   string
	Artist string
	URL    string
	Tracks []AlbumTrack
}

// AlbumTrack is one entry of an album's track list.
type AlbumTrack struct {
	Name     string
	Duration int // seconds, 0 when unknown
	Rank     int
}

// flexInt decodes a JSON number that Last.fm sometimes sends as a string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", s, err)
		}
		*f = flexInt(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// textNode decodes Last.fm's {"#text": "..."} wrapper, and also accepts a
// bare string.
type textNode struct {
	Text      string
	Corrected bool
}

func (t *textNode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Text)
	}
	var raw struct {
		Text      string  `json:"#text"`
		Corrected flexInt `json:"corrected"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Text = raw.Text
	t.Corrected = raw.Corrected != 0
	return nil
}

// oneOrMany normalises a field that Last.fm encodes as a bare object when
// there is exactly one item and as an array otherwise. After decoding,
// Items always holds zero or more elements.
type oneOrMany[T any] struct {
	Items []T
}

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		o.Items = nil
		return nil
	case data[0] == '[':
		return json.Unmarshal(data, &o.Items)
	case data[0] == '{':
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		o.Items = []T{item}
		return nil
	case data[0] == '"':
		// an empty result is sometimes sent as a whitespace string
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) != "" {
			return fmt.Errorf("unexpected string %q where object or array expected", s)
		}
		o.Items = nil
		return nil
	default:
		return fmt.Errorf("unexpected JSON value %q where object or array expected", data)
	}
}
