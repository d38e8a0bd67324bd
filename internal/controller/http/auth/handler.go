package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quipper/poc/spotify-auth/be/pkg/common/config"
	"github.com/quipper/poc/spotify-auth/be/pkg/common/keys"
	"github.com/quipper/poc/spotify-auth/be/pkg/common/metrics"
	staterepo "github.com/quipper/poc/spotify-auth/be/pkg/repositories/state"
	"github.com/quipper/poc/spotify-auth/be/pkg/spotify"
	"github.com/segmentio/ksuid"
	"golang.org/x/oauth2"
)

type Handler struct {
	cfg      config.Config
	endpoint oauth2.Endpoint
	tokens   spotify.TokenExchanger
	signer   *keys.Signer
	states   staterepo.Repository
	metrics  *metrics.Metrics
	newState func() string
}

// NewHandler wires the relay handlers. states may be nil, in which case the
// signed state cookie is the only anti-CSRF check. m may be nil.
func NewHandler(cfg config.Config, tokens spotify.TokenExchanger, signer *keys.Signer, states staterepo.Repository, m *metrics.Metrics) *Handler {
	return &Handler{
		cfg:      cfg,
		endpoint: spotify.Endpoint(cfg.AuthURL, cfg.TokenURL),
		tokens:   tokens,
		signer:   signer,
		states:   states,
		metrics:  m,
		newState: func() string { return ksuid.New().String() },
	}
}

// Router returns a chi-based router for the relay endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.health)

	r.Get("/debug", h.debug)
	r.Get("/login", h.login)
	r.Get(callbackPath, h.callback)
	r.Get("/refresh", h.refresh)
	r.Get(defaultReturnPath, h.result)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.states != nil {
		if err := h.states.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
