package lastfm

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// ScrobbleService provides scrobbling operations for the Last.fm API.
type ScrobbleService struct {
	client *Client
}

const (
	// MaxBatchSize is the maximum number of scrobbles allowed in a single batch.
	MaxBatchSize = 50
)

// UpdateNowPlaying updates the "now playing" status on Last.fm.
//
// This should be called when a track starts playing. It does not count
// as a scrobble and does not affect play counts.
//
// Requires authentication (session key must be set via SetSessionKey).
//
// Example:
//
//	track := lastfm.Track{
//	    Artist: "The Beatles",
//	    Track:  "Yesterday",
//	    Album:  "Help!",
//	}
//	_, err := client.Scrobble().UpdateNowPlaying(ctx, track)
//	if err != nil {
//	    log.Printf("Failed to update now playing: %v", err)
//	}
func (s *ScrobbleService) UpdateNowPlaying(ctx context.Context, track Track) (*NowPlayingResponse, error) {
	params := map[string]string{
		"artist": track.Artist,
		"track":  track.Track,
	}
	addTrackParams(params, "", track)

	body, err := s.client.post(ctx, "track.updateNowPlaying", params, true)
	if err != nil {
		return nil, err
	}

	var resp nowPlayingResponse
	if err := decode("track.updateNowPlaying", body, &resp); err != nil {
		return nil, err
	}

	np := resp.NowPlaying
	return &NowPlayingResponse{
		Artist:      np.Artist.Text,
		Track:       np.Track.Text,
		Album:       np.Album.Text,
		AlbumArtist: np.AlbumArtist.Text,
		IgnoredMessage: IgnoredMessage{
			Code: int(np.IgnoredMessage.Code),
			Text: np.IgnoredMessage.Text,
		},
	}, nil
}

// Scrobble submits a single scrobble to Last.fm.
//
// Requires authentication (session key must be set via SetSessionKey).
//
// Example:
//
//	track := lastfm.Track{
//	    Artist:   "The Beatles",
//	    Track:    "Yesterday",
//	    Album:    "Help!",
//	}
//	timestamp := time.Now().Add(-2 * time.Minute)
//	resp, err := client.Scrobble().Scrobble(ctx, track, timestamp)
func (s *ScrobbleService) Scrobble(ctx context.Context, track Track, timestamp time.Time) (*ScrobbleResponse, error) {
	return s.ScrobbleBatch(ctx, []Scrobble{{Track: track, Timestamp: timestamp}})
}

// ScrobbleBatch submits multiple scrobbles to Last.fm in a single request.
//
// Up to MaxBatchSize scrobbles can be submitted at once; a larger batch is
// rejected with ErrInvalidConfig before anything is sent. Splitting a long
// list into batches is the caller's job.
//
// The response is normalised: a reply describing a single scrobble and a
// reply describing many both yield Accepted/Ignored counts and a
// Scrobbles slice.
//
// Requires authentication (session key must be set via SetSessionKey).
func (s *ScrobbleService) ScrobbleBatch(ctx context.Context, scrobbles []Scrobble) (*ScrobbleResponse, error) {
	if s.client.sessionKey == "" {
		return nil, ErrNoSessionKey
	}
	if len(scrobbles) == 0 {
		return &ScrobbleResponse{}, nil
	}
	if len(scrobbles) > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds maximum of %d", ErrInvalidConfig, len(scrobbles), MaxBatchSize)
	}

	params := BatchParams(scrobbles)

	body, err := s.client.post(ctx, "track.scrobble", params, true)
	if err != nil {
		return nil, err
	}

	return unmarshalScrobbles(body)
}

// BatchParams builds the indexed parameters (artist[i], track[i],
// timestamp[i], optional album[i] and friends) for a track.scrobble call.
func BatchParams(scrobbles []Scrobble) map[string]string {
	params := make(map[string]string, len(scrobbles)*4)
	for i, scrobble := range scrobbles {
		idx := "[" + strconv.Itoa(i) + "]"
		params["artist"+idx] = scrobble.Track.Artist
		params["track"+idx] = scrobble.Track.Track
		params["timestamp"+idx] = strconv.FormatInt(scrobble.Timestamp.Unix(), 10)
		addTrackParams(params, idx, scrobble.Track)
	}
	return params
}

// addTrackParams adds the optional track fields under the given suffix.
func addTrackParams(params map[string]string, suffix string, track Track) {
	if track.Album != "" {
		params["album"+suffix] = track.Album
	}
	if track.AlbumArtist != "" {
		params["albumArtist"+suffix] = track.AlbumArtist
	}
	if track.Duration > 0 {
		params["duration"+suffix] = strconv.Itoa(track.Duration)
	}
	if track.TrackNumber > 0 {
		params["trackNumber"+suffix] = strconv.Itoa(track.TrackNumber)
	}
	if track.MBTrackID != "" {
		params["mbid"+suffix] = track.MBTrackID
	}
}

type ignoredMessageJSON struct {
	Code flexInt `json:"code"`
	Text string  `json:"#text"`
}

// nowPlayingResponse represents the JSON response from track.updateNowPlaying.
type nowPlayingResponse struct {
	NowPlaying struct {
		Artist         textNode           `json:"artist"`
		Track          textNode           `json:"track"`
		Album          textNode           `json:"album"`
		AlbumArtist    textNode           `json:"albumArtist"`
		IgnoredMessage ignoredMessageJSON `json:"ignoredMessage"`
	} `json:"nowplaying"`
}

type scrobbleItemJSON struct {
	Artist         textNode           `json:"artist"`
	Track          textNode           `json:"track"`
	Album          textNode           `json:"album"`
	Timestamp      flexInt            `json:"timestamp"`
	IgnoredMessage ignoredMessageJSON `json:"ignoredMessage"`
}

// scrobbleResponse represents the JSON response from track.scrobble.
type scrobbleResponse struct {
	Scrobbles *struct {
		Scrobble oneOrMany[scrobbleItemJSON] `json:"scrobble"`
		Attr     *struct {
			Accepted flexInt `json:"accepted"`
			Ignored  flexInt `json:"ignored"`
		} `json:"@attr"`
	} `json:"scrobbles"`
}

// unmarshalScrobbles parses the JSON response from track.scrobble.
//
// The aggregate @attr block is authoritative when present. Without it the
// counts are derived from the per-item ignoredMessage codes, which is the
// only information a single-item reply is guaranteed to carry.
func unmarshalScrobbles(data []byte) (*ScrobbleResponse, error) {
	var resp scrobbleResponse
	if err := decode("track.scrobble", data, &resp); err != nil {
		return nil, err
	}
	if resp.Scrobbles == nil {
		return nil, &DecodeError{Method: "track.scrobble", Body: data, Err: fmt.Errorf("missing scrobbles object")}
	}

	items := resp.Scrobbles.Scrobble.Items
	result := &ScrobbleResponse{
		Scrobbles: make([]ScrobbleResult, len(items)),
	}

	for i, item := range items {
		result.Scrobbles[i] = ScrobbleResult{
			Artist:    item.Artist.Text,
			Track:     item.Track.Text,
			Album:     item.Album.Text,
			Timestamp: int64(item.Timestamp),
			IgnoredMessage: IgnoredMessage{
				Code: int(item.IgnoredMessage.Code),
				Text: item.IgnoredMessage.Text,
			},
		}
	}

	if attr := resp.Scrobbles.Attr; attr != nil {
		result.Accepted = int(attr.Accepted)
		result.Ignored = int(attr.Ignored)
		return result, nil
	}

	for _, s := range result.Scrobbles {
		if s.Accepted() {
			result.Accepted++
		} else {
			result.Ignored++
		}
	}

	return result, nil
}
