package lastfm

import (
	"context"
	"errors"
	"strconv"
)

// TrackService provides track lookups.
type TrackService struct {
	client *Client
}

// AlbumService provides album lookups.
type AlbumService struct {
	client *Client
}

// DefaultSearchLimit is the number of matches requested by Search.
const DefaultSearchLimit = 10

type searchTrackJSON struct {
	Name      string  `json:"name"`
	Artist    string  `json:"artist"`
	URL       string  `json:"url"`
	Listeners flexInt `json:"listeners"`
	MBID      string  `json:"mbid"`
}

type searchResponse struct {
	Results struct {
		TrackMatches struct {
			Track oneOrMany[searchTrackJSON] `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

type albumTrackJSON struct {
	Name     string  `json:"name"`
	Duration flexInt `json:"duration"`
	Attr     struct {
		Rank flexInt `json:"rank"`
	} `json:"@attr"`
}

type albumInfoResponse struct {
	Album *struct {
		Name   string `json:"name"`
		Artist string `json:"artist"`
		URL    string `json:"url"`
		Tracks struct {
			Track oneOrMany[albumTrackJSON] `json:"track"`
		} `json:"tracks"`
	} `json:"album"`
}

// Search looks up tracks matching artist and track name.
//
// Last.fm API errors, including "not found", yield an empty result rather
// than an error so callers can show "no matches". Network, protocol and
// decode failures are still returned.
func (t *TrackService) Search(ctx context.Context, artist, track string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	params := map[string]string{
		"track": track,
		"limit": strconv.Itoa(limit),
	}
	if artist != "" {
		params["artist"] = artist
	}

	body, err := t.client.get(ctx, "track.search", params)
	if err != nil {
		if softReadError(t.client, "track.search", err) {
			return []SearchResult{}, nil
		}
		return nil, err
	}

	var resp searchResponse
	if err := decode("track.search", body, &resp); err != nil {
		return nil, err
	}

	items := resp.Results.TrackMatches.Track.Items
	results := make([]SearchResult, 0, len(items))
	for _, item := range items {
		results = append(results, SearchResult{
			Name:      item.Name,
			Artist:    item.Artist,
			URL:       item.URL,
			Listeners: int(item.Listeners),
			MBID:      item.MBID,
		})
	}
	return results, nil
}

// GetInfo fetches an album and its track list.
//
// Returns (nil, nil) when Last.fm reports an API error such as
// "album not found". An album with no listed tracks is returned with an
// empty Tracks slice.
func (a *AlbumService) GetInfo(ctx context.Context, artist, album string) (*AlbumInfo, error) {
	params := map[string]string{
		"artist":      artist,
		"album":       album,
		"autocorrect": "1",
	}

	body, err := a.client.get(ctx, "album.getInfo", params)
	if err != nil {
		if softReadError(a.client, "album.getInfo", err) {
			return nil, nil
		}
		return nil, err
	}

	var resp albumInfoResponse
	if err := decode("album.getInfo", body, &resp); err != nil {
		return nil, err
	}
	if resp.Album == nil {
		return nil, nil
	}

	info := &AlbumInfo{
		Name:   resp.Album.Name,
		Artist: resp.Album.Artist,
		URL:    resp.Album.URL,
		Tracks: make([]AlbumTrack, 0, len(resp.Album.Tracks.Track.Items)),
	}
	for _, tr := range resp.Album.Tracks.Track.Items {
		if tr.Name == "" {
			continue
		}
		info.Tracks = append(info.Tracks, AlbumTrack{
			Name:     tr.Name,
			Duration: int(tr.Duration),
			Rank:     int(tr.Attr.Rank),
		})
	}
	return info, nil
}

// softReadError reports whether a read error should be presented as an
// empty result.
func softReadError(c *Client, method string, err error) bool {
	var lastfmErr *Error
	if !errors.As(err, &lastfmErr) {
		return false
	}
	if lastfmErr.IsNotFound() {
		c.logDebugf("lastfm: %s: not found: %s", method, lastfmErr.Message)
	} else {
		c.logDebugf("lastfm: %s: treating API error as empty result: %v", method, lastfmErr)
	}
	return true
}
