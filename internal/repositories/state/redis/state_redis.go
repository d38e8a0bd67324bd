package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	staterepo "github.com/quipper/poc/spotify-auth/be/pkg/repositories/state"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "spotify-auth:state:"

// Repo keeps issued states in Redis so several relay instances can share them.
type Repo struct {
	client *goredis.Client
}

// NewRepo connects to the Redis server described by a redis:// URL and pings it.
func NewRepo(ctx context.Context, redisURL string) (*Repo, error) {
	options, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := goredis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Repo{client: client}, nil
}

// Ensure interface compliance
var _ staterepo.Repository = (*Repo)(nil)

func (r *Repo) CreateState(ctx context.Context, state string, returnURL string, exp time.Time) error {
	if state == "" {
		return errors.New("empty state")
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return errors.New("state already expired")
	}
	ok, err := r.client.SetNX(ctx, keyPrefix+state, returnURL, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("state %q already issued", state)
	}
	return nil
}

func (r *Repo) ConsumeState(ctx context.Context, state string) (string, bool, error) {
	returnURL, err := r.client.GetDel(ctx, keyPrefix+state).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return returnURL, true, nil
}

func (r *Repo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Repo) Disconnect() { _ = r.client.Close() }
