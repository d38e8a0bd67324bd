package auth

import (
	"errors"
	"net/http"

	"github.com/quipper/poc/spotify-auth/be/pkg/common/logger"
	"github.com/quipper/poc/spotify-auth/be/pkg/spotify"
)

// refresh trades a refresh token for a new access token and returns the
// provider response as is. Any caller holding a refresh token may use it.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.URL.Query().Get("refresh_token")
	if refreshToken == "" {
		h.metrics.FlowResult("refresh", "invalid_request")
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "missing refresh_token")
		return
	}

	raw, err := h.tokens.RefreshToken(r.Context(), refreshToken, h.redirectURI(r))
	if err != nil {
		logger.FromRequest(r).Warnf("refresh: %v", err)
		h.metrics.FlowResult("refresh", "failed")

		var upstream *spotify.UpstreamError
		if !errors.As(err, &upstream) {
			writeOAuthError(w, http.StatusBadGateway, "upstream_unavailable", "token endpoint unreachable")
			return
		}
		if len(upstream.Body) == 0 {
			writeOAuthError(w, upstream.StatusCode, "upstream_error", upstream.Error())
			return
		}
		contentType := upstream.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(upstream.StatusCode)
		_, _ = w.Write(upstream.Body)
		return
	}

	h.metrics.FlowResult("refresh", "ok")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// writeOAuthError writes an RFC 6749 style error response
func writeOAuthError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, map[string]any{
		"error":             code,
		"error_description": desc,
	})
}
