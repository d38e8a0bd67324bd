package spotify

import (
	"net/url"

	"golang.org/x/oauth2"
	oauth2spotify "golang.org/x/oauth2/spotify"
)

// DefaultScope is requested when the caller does not ask for specific scopes.
// See https://developer.spotify.com/documentation/general/guides/scopes/
var DefaultScope = []string{
	"playlist-read-collaborative",
	"playlist-read-private",
	"user-library-read",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"user-read-email",
	"user-read-playback-state",
	"user-read-private",
}

// Endpoint returns the accounts service endpoint, falling back to the
// production URLs for empty values.
func Endpoint(authURL, tokenURL string) oauth2.Endpoint {
	ep := oauth2spotify.Endpoint
	if authURL != "" {
		ep.AuthURL = authURL
	}
	if tokenURL != "" {
		ep.TokenURL = tokenURL
	}
	ep.AuthStyle = oauth2.AuthStyleInHeader
	return ep
}

// AuthCodeURL builds the consent page URL for the authorization code grant.
// The returned query holds response_type, client_id, redirect_uri, the
// space-joined scope and state.
func AuthCodeURL(ep oauth2.Endpoint, clientID, redirectURI string, scope []string, state string) string {
	conf := &oauth2.Config{
		ClientID:    clientID,
		Endpoint:    ep,
		RedirectURL: redirectURI,
		Scopes:      scope,
	}
	return conf.AuthCodeURL(state)
}

// AuthQuery returns the query parameters of an AuthCodeURL result.
func AuthQuery(authURL string) url.Values {
	u, err := url.Parse(authURL)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}
