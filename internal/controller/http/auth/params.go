package auth

import (
	"net"
	"net/http"
	"strings"

	"github.com/quipper/poc/spotify-auth/be/pkg/spotify"
)

const (
	callbackPath      = "/callback"
	defaultReturnPath = "/result"
)

// requestParams is what a /login or /debug request asks for.
type requestParams struct {
	Scope     []string
	ReturnURL string
}

// appURL returns the absolute URL of path on this service as the browser sees it.
func (h *Handler) appURL(r *http.Request, path string) string {
	if h.cfg.PublicURL != "" {
		return strings.TrimRight(h.cfg.PublicURL, "/") + path
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if h.cfg.TrustProxy {
		if p := firstForwarded(r.Header.Get("X-Forwarded-Proto")); p != "" {
			scheme = p
		}
		if fh := firstForwarded(r.Header.Get("X-Forwarded-Host")); fh != "" {
			host = fh
		}
	}

	host = hostname(host)
	if h.cfg.Port != "" {
		host = net.JoinHostPort(host, h.cfg.Port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host + path
}

func (h *Handler) redirectURI(r *http.Request) string {
	return h.appURL(r, callbackPath)
}

func (h *Handler) defaultReturnURL(r *http.Request) string {
	return h.appURL(r, defaultReturnPath)
}

// requestParams resolves scope and return URL from the query, applying defaults.
func (h *Handler) requestParams(r *http.Request) requestParams {
	q := r.URL.Query()
	return requestParams{
		Scope:     parseScope(q.Get("scope")),
		ReturnURL: firstNonEmpty(q.Get("returnUrl"), h.defaultReturnURL(r)),
	}
}

// validReturnURL allows our own result page and the configured allow-list, nothing else.
func (h *Handler) validReturnURL(returnURL string, r *http.Request) bool {
	if returnURL == h.defaultReturnURL(r) {
		return true
	}
	return h.cfg.IsAllowedReturnURL(returnURL)
}

func parseScope(raw string) []string {
	var scope []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scope = append(scope, s)
		}
	}
	if len(scope) == 0 {
		return append([]string(nil), spotify.DefaultScope...)
	}
	return scope
}

// hostname strips the port, and IPv6 brackets, from a host[:port] value.
func hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

// firstForwarded returns the first entry of a comma separated forwarding header.
func firstForwarded(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
