package auth

import (
	"net/http"
	"time"

	"github.com/quipper/poc/spotify-auth/be/pkg/common/logger"
	"github.com/quipper/poc/spotify-auth/be/pkg/spotify"
)

// login starts the authorization code flow: it remembers state and return URL
// in cookies and sends the browser to the Spotify consent page.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	state := h.newState()
	redirectURI := h.redirectURI(r)
	params := h.requestParams(r)

	if !h.validReturnURL(params.ReturnURL, r) {
		logger.FromRequest(r).WithField("returnUrl", params.ReturnURL).Warn("login: rejected return URL")
		h.metrics.FlowResult("login", "invalid_return_url")
		http.Error(w, "Invalid return URI", http.StatusForbidden)
		return
	}

	if h.states != nil {
		exp := time.Now().Add(h.cfg.StateTTL)
		if err := h.states.CreateState(r.Context(), state, params.ReturnURL, exp); err != nil {
			logger.FromRequest(r).Errorf("login: record state: %v", err)
			h.metrics.FlowResult("login", "server_error")
			http.Error(w, "failed to start authorization", http.StatusInternalServerError)
			return
		}
	}

	if err := h.setFlowCookie(w, r, stateCookie, state); err != nil {
		h.loginFailed(w, r, err)
		return
	}
	if err := h.setFlowCookie(w, r, returnURLCookie, params.ReturnURL); err != nil {
		h.loginFailed(w, r, err)
		return
	}

	authURL := spotify.AuthCodeURL(h.endpoint, h.cfg.ClientID, redirectURI, params.Scope, state)
	logger.FromRequest(r).Debugf("login: redirecting to provider scope=%q returnUrl=%s", params.Scope, params.ReturnURL)
	h.metrics.FlowResult("login", "redirected")
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromRequest(r).Errorf("login: set cookie: %v", err)
	h.metrics.FlowResult("login", "server_error")
	// Drop any cookie already queued on this response.
	w.Header().Del("Set-Cookie")
	http.Error(w, "failed to start authorization", http.StatusInternalServerError)
}

type debugInfo struct {
	Port        *string           `json:"PORT"`
	RedirectURI string            `json:"redirect_uri"`
	ReturnURL   string            `json:"returnUrl"`
	Scope       []string          `json:"scope"`
	AuthQuery   map[string]string `json:"authQuery"`
	AuthURL     string            `json:"authUrl"`
}

// debug shows what /login would do for the same query, without cookies or validation.
func (h *Handler) debug(w http.ResponseWriter, r *http.Request) {
	redirectURI := h.redirectURI(r)
	params := h.requestParams(r)
	authURL := spotify.AuthCodeURL(h.endpoint, h.cfg.ClientID, redirectURI, params.Scope, h.newState())

	authQuery := map[string]string{}
	for k, v := range spotify.AuthQuery(authURL) {
		authQuery[k] = v[0]
	}
	info := debugInfo{
		RedirectURI: redirectURI,
		ReturnURL:   params.ReturnURL,
		Scope:       params.Scope,
		AuthQuery:   authQuery,
		AuthURL:     authURL,
	}
	if h.cfg.Port != "" {
		port := h.cfg.Port
		info.Port = &port
	}
	writeJSON(w, http.StatusOK, info)
}
