package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/quipper/poc/spotify-auth/be/pkg/common/logger"
)

const (
	stateCookie     = "spotify-auth-state"
	returnURLCookie = "spotify-auth-return-uri"
)

// setFlowCookie stores a signed value for the duration of one authorization attempt.
func (h *Handler) setFlowCookie(w http.ResponseWriter, r *http.Request, name, value string) error {
	signed, err := h.signer.Sign(name, value, h.cfg.StateTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(h.cfg.StateTTL.Seconds()),
		Secure:   h.secureCookies(r),
		HttpOnly: true,
		// Lax so the cookie rides along on the top-level redirect back from the provider.
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// readFlowCookie returns the verified cookie value, or "" if absent or not ours.
func (h *Handler) readFlowCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return ""
	}
	v, err := h.signer.Verify(name, c.Value)
	if err != nil {
		logger.FromRequest(r).WithField("cookie", name).Debugf("ignoring cookie: %v", err)
		return ""
	}
	return v
}

func (h *Handler) clearFlowCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   h.secureCookies(r),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) secureCookies(r *http.Request) bool {
	return strings.HasPrefix(h.redirectURI(r), "https://")
}
