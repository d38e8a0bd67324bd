package state

import (
	"context"
	"time"
)

// Repository is an optional server-side ledger of issued authorization states.
// It makes each state single-use independently of the browser's cookie jar.
type Repository interface {
	// CreateState records a freshly issued state with the return URL it was issued for.
	CreateState(ctx context.Context, state string, returnURL string, exp time.Time) error
	// ConsumeState atomically loads and invalidates a state, returning its return URL.
	// ok=false if not found or already used/expired.
	ConsumeState(ctx context.Context, state string) (returnURL string, ok bool, err error)
	// Health reports whether the backing store is reachable.
	Health(ctx context.Context) error
	Disconnect()
}
