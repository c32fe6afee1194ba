package lastfm

import (
	"context"
	"fmt"
	"net/url"
)

// AuthService provides authentication operations for the Last.fm API.
type AuthService struct {
	client *Client
}

// AuthURL is where users authorize a token obtained with GetToken.
const AuthURL = "https://www.last.fm/api/auth/"

type tokenResponse struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	Session struct {
		Name       string  `json:"name"`
		Key        string  `json:"key"`
		Subscriber flexInt `json:"subscriber"`
	} `json:"session"`
}

// GetToken requests an authentication token from Last.fm.
//
// This is the first step in the web authentication flow. After obtaining a
// token, the user must authorize it by visiting the URL returned by
// GetAuthURL.
//
// Example:
//
//	token, err := client.Auth().GetToken(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Visit:", client.Auth().GetAuthURL(token.Token))
func (a *AuthService) GetToken(ctx context.Context) (*Token, error) {
	body, err := a.client.post(ctx, "auth.getToken", nil, false)
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := decode("auth.getToken", body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &DecodeError{Method: "auth.getToken", Body: body, Err: fmt.Errorf("missing token")}
	}

	return &Token{Token: resp.Token}, nil
}

// GetAuthURL returns the URL where users authorize the token.
//
// After calling GetToken, direct the user to this URL to authorize
// the application. Once authorized, call GetSession to exchange the
// token for a session key.
func (a *AuthService) GetAuthURL(token string) string {
	q := url.Values{}
	q.Set("api_key", a.client.apiKey)
	q.Set("token", token)
	return AuthURL + "?" + q.Encode()
}

// GetSession exchanges an authorized token for a session key.
//
// After the user has authorized the token at the URL from GetAuthURL,
// call this method to exchange the token for a permanent session key.
// The session key should be stored and used for all future authenticated
// requests.
//
// Example:
//
//	session, err := client.Auth().GetSession(ctx, token.Token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.SetSessionKey(session.Key)
func (a *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	return a.session(ctx, "auth.getSession", map[string]string{"token": token})
}

// GetMobileSession authenticates with a username and password and returns
// a session key, skipping the browser step. Last.fm only allows this for
// API accounts that have mobile authentication enabled.
func (a *AuthService) GetMobileSession(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidConfig)
	}
	return a.session(ctx, "auth.getMobileSession", map[string]string{
		"username": username,
		"password": password,
	})
}

func (a *AuthService) session(ctx context.Context, method string, params map[string]string) (*Session, error) {
	body, err := a.client.post(ctx, method, params, false)
	if err != nil {
		return nil, err
	}

	var resp sessionResponse
	if err := decode(method, body, &resp); err != nil {
		return nil, err
	}
	if resp.Session.Key == "" {
		return nil, &DecodeError{Method: method, Body: body, Err: fmt.Errorf("missing session key")}
	}

	return &Session{
		Key:        resp.Session.Key,
		Username:   resp.Session.Name,
		Subscriber: resp.Session.Subscriber != 0,
	}, nil
}
