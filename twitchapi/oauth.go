// Package twitchapi wraps the Twitch identity endpoints the bot needs: token
// validation to learn who the bot is, and the OAuth code and refresh grants.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"
)

// ChatScopes are the user scopes the bot's token needs for IRC.
var ChatScopes = []string{"chat:read", "chat:edit"}

// ErrInvalidToken is returned by Validate when Twitch rejects the token.
var ErrInvalidToken = errors.New("twitch: invalid access token")

const defaultValidateURL = "https://id.twitch.tv/oauth2/validate"

// Client talks to id.twitch.tv. The zero value is not usable; use NewClient.
type Client struct {
	ClientID     string
	ClientSecret string
	// RedirectURL is only needed for the authorization code flow.
	RedirectURL string
	Endpoint    oauth2.Endpoint
	ValidateURL string
	HTTP        *http.Client
}

// NewClient returns a client for the public Twitch endpoints.
func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     twitch.Endpoint,
		ValidateURL:  defaultValidateURL,
		HTTP:         &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     c.Endpoint,
		RedirectURL:  c.RedirectURL,
		Scopes:       ChatScopes,
	}
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	if c.HTTP == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTP)
}

// Validation is the /oauth2/validate response.
type Validation struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}

// HasScopes reports whether every scope in want was granted.
func (v *Validation) HasScopes(want ...string) bool {
	for _, w := range want {
		found := false
		for _, s := range v.Scopes {
			if s == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Validate checks accessToken and returns the identity it belongs to.
func (c *Client) Validate(ctx context.Context, accessToken string) (*Validation, error) {
	accessToken = strings.TrimPrefix(accessToken, "oauth:")
	if accessToken == "" {
		return nil, ErrInvalidToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ValidateURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)

	httpc := c.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitch validate: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("twitch validate failed: %s: %s", resp.Status, string(b))
	}
	var v Validation
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode validate response: %w", err)
	}
	return &v, nil
}

// Grant is the outcome of a code exchange or refresh.
type Grant struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
}

func grantFrom(tok *oauth2.Token) *Grant {
	g := &Grant{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}
	if g.Expiry.IsZero() {
		g.Expiry = ComputeExpiry(0)
	}
	// Twitch returns scope as a JSON array.
	switch s := tok.Extra("scope").(type) {
	case string:
		g.Scope = s
	case []any:
		parts := make([]string, 0, len(s))
		for _, p := range s {
			if str, ok := p.(string); ok {
				parts = append(parts, str)
			}
		}
		g.Scope = strings.Join(parts, " ")
	}
	return g
}

// AuthorizeURL returns the URL a broadcaster opens to grant the bot chat access.
func (c *Client) AuthorizeURL(state string) (string, error) {
	if c.ClientID == "" || c.RedirectURL == "" {
		return "", errors.New("missing clientID or redirectURI")
	}
	return c.config().AuthCodeURL(state), nil
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code string) (*Grant, error) {
	if c.ClientID == "" || c.ClientSecret == "" || code == "" || c.RedirectURL == "" {
		return nil, errors.New("missing required parameter for auth code exchange")
	}
	tok, err := c.config().Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("twitch auth code exchange failed: %w", err)
	}
	return grantFrom(tok), nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Grant, error) {
	if c.ClientID == "" || c.ClientSecret == "" || refreshToken == "" {
		return nil, errors.New("missing clientID/clientSecret/refreshToken")
	}
	src := c.config().TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("twitch refresh failed: %w", err)
	}
	return grantFrom(tok), nil
}

// ComputeExpiry returns absolute expiry time from seconds, defaulting to +60m when unknown.
func ComputeExpiry(seconds int) time.Time {
	if seconds <= 0 {
		return time.Now().Add(60 * time.Minute)
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}
