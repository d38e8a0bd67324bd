// Package spotify talks to the Spotify accounts service on behalf of the relay.
//
// Only the token endpoint is called server to server. Responses are passed
// through untouched as raw JSON; the relay never interprets token fields.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quipper/poc/spotify-auth/be/pkg/common/metrics"
	"golang.org/x/oauth2"
)

// maxBodySize bounds how much of a token endpoint response is read.
const maxBodySize = 1 << 20 // 1MB

// TokenExchanger performs the two token endpoint grants used by the relay.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (json.RawMessage, error)
	RefreshToken(ctx context.Context, refreshToken, redirectURI string) (json.RawMessage, error)
}

// UpstreamError is returned when the token endpoint answers with a non-2xx status.
type UpstreamError struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ErrInvalidResponse is returned when a 2xx response body is not JSON.
var ErrInvalidResponse = errors.New("spotify: token endpoint returned a non-JSON body")

type Client struct {
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	http         *http.Client
}

// NewClient builds a token client. A nil httpClient gets one with the given timeout.
func NewClient(clientID, clientSecret string, endpoint oauth2.Endpoint, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     endpoint,
		http:         httpClient,
	}
}

// Ensure interface compliance
var _ TokenExchanger = (*Client)(nil)

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (json.RawMessage, error) {
	return c.post(ctx, url.Values{
		"code":         {code},
		"redirect_uri": {redirectURI},
		"grant_type":   {"authorization_code"},
	})
}

// RefreshToken trades a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken, redirectURI string) (json.RawMessage, error) {
	return c.post(ctx, url.Values{
		"refresh_token": {refreshToken},
		"redirect_uri":  {redirectURI},
		"grant_type":    {"refresh_token"},
	})
}

func (c *Client) post(ctx context.Context, form url.Values) (json.RawMessage, error) {
	ctx = metrics.WithGrantType(ctx, form.Get("grant_type"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("spotify: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("spotify: read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{
			StatusCode:  resp.StatusCode,
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
		}
	}
	if !json.Valid(body) {
		return nil, ErrInvalidResponse
	}
	return json.RawMessage(body), nil
}
