package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	staterepo "github.com/quipper/poc/spotify-auth/be/pkg/repositories/state"
)

// Repo keeps issued states in process memory. States do not survive a
// restart and are not shared between instances.
type Repo struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewRepo creates an in-memory ledger; expired entries are swept every cleanupInterval.
func NewRepo(cleanupInterval time.Duration) *Repo {
	return &Repo{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Ensure interface compliance
var _ staterepo.Repository = (*Repo)(nil)

func (r *Repo) CreateState(_ context.Context, state string, returnURL string, exp time.Time) error {
	if state == "" {
		return errors.New("empty state")
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return errors.New("state already expired")
	}
	return r.cache.Add(state, returnURL, ttl)
}

func (r *Repo) ConsumeState(_ context.Context, state string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, found := r.cache.Get(state)
	if !found {
		return "", false, nil
	}
	r.cache.Delete(state)
	returnURL, _ := v.(string)
	return returnURL, true, nil
}

func (r *Repo) Health(context.Context) error { return nil }

func (r *Repo) Disconnect() { r.cache.Flush() }
