// Package lastfm provides a client library for the Last.fm API 2.0.
//
// # Overview
//
// This package implements the parts of the Last.fm API a bulk scrobbling
// tool needs: authentication, scrobbling, track search and album lookup.
// All calls use the JSON format and accept a context.Context.
//
// # Quick Start
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey:     "your-api-key",
//	    APISecret:  "your-api-secret",
//	    SessionKey: "saved-session-key",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Authentication
//
// Last.fm supports a browser based token flow and, for API accounts with
// mobile authentication enabled, a username/password flow:
//
//	token, err := client.Auth().GetToken(ctx)
//	fmt.Println("Please visit:", client.Auth().GetAuthURL(token.Token))
//	// ... user authorizes ...
//	session, err := client.Auth().GetSession(ctx, token.Token)
//
//	// or
//	session, err := client.Auth().GetMobileSession(ctx, "user", "pass")
//
//	client.SetSessionKey(session.Key)
//
// # Signing
//
// Signed calls carry api_sig, the lowercase hex MD5 of the sorted
// key+value pairs followed by the API secret. The format parameter is
// added after signing and is never part of the signed string. Session
// calls add sk before signing.
//
// # Scrobbling
//
//	resp, err := client.Scrobble().ScrobbleBatch(ctx, []lastfm.Scrobble{
//	    {Track: track1, Timestamp: time1},
//	    {Track: track2, Timestamp: time2},
//	})
//	fmt.Printf("Accepted: %d, Ignored: %d\n", resp.Accepted, resp.Ignored)
//
// A batch holds at most MaxBatchSize scrobbles.
//
// # Error Handling
//
// Failures are classified:
//
//   - *NetworkError: connection, timeout or body read failure
//   - *ProtocolError: non-success HTTP status without a Last.fm error body
//   - *Error: the error object Last.fm embeds in the body, with its code
//   - *DecodeError: empty or malformed JSON
//   - ErrNoSessionKey, ErrMissingSecret, ErrInvalidConfig: configuration
//     problems reported before any request is made
//
// Example:
//
//	var lastfmErr *lastfm.Error
//	if errors.As(err, &lastfmErr) && lastfmErr.Temporary() {
//	    // try again later
//	}
//
// # Caching and Retries
//
// Read calls (track.search, album.getInfo) are served from a short lived
// in-memory cache keyed by the full parameter set and are retried with
// exponential backoff. Write calls always go to the network and are
// attempted once.
//
// # Last.fm API Documentation
//
// https://www.last.fm/api
package lastfm
