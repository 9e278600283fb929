// Package cache holds the dashboard read-through cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ledger-service/internal/domain"
)

// DashboardCache stores the last computed dashboard aggregate. Every
// Invalidate bumps a generation counter; Get reports the generation it saw
// and Set only stores a value computed under the current generation, so an
// aggregate computed before a write can never land after that write's
// invalidation. Get reports a miss with ok=false and a nil error.
type DashboardCache interface {
	Get(ctx context.Context) (d domain.Dashboard, generation int64, ok bool, err error)
	Set(ctx context.Context, d domain.Dashboard, generation int64) error
	Invalidate(ctx context.Context) error
}

// Noop never stores anything. It is used when Redis is not configured.
type Noop struct{}

func (Noop) Get(context.Context) (domain.Dashboard, int64, bool, error) {
	return domain.Dashboard{}, 0, false, nil
}
func (Noop) Set(context.Context, domain.Dashboard, int64) error { return nil }
func (Noop) Invalidate(context.Context) error                  { return nil }

type RedisDashboardCache struct {
	client        redis.UniversalClient
	key           string
	generationKey string
	ttl           time.Duration
}

func NewRedisDashboardCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisDashboardCache {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "ledger"
	}
	return &RedisDashboardCache{
		client:        client,
		key:           trimmed + ":dashboard",
		generationKey: trimmed + ":dashboard:generation",
		ttl:           ttl,
	}
}

// Connect parses redisURL and verifies the server answers a ping.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisDashboardCache) Key() string {
	return c.key
}

func (c *RedisDashboardCache) GenerationKey() string {
	return c.generationKey
}

func (c *RedisDashboardCache) Get(ctx context.Context) (domain.Dashboard, int64, bool, error) {
	values, err := c.client.MGet(ctx, c.generationKey, c.key).Result()
	if err != nil {
		return domain.Dashboard{}, 0, false, err
	}

	generation, err := parseGeneration(values[0])
	if err != nil {
		return domain.Dashboard{}, 0, false, err
	}

	raw, ok := values[1].(string)
	if !ok {
		return domain.Dashboard{}, generation, false, nil
	}

	var d domain.Dashboard
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return domain.Dashboard{}, generation, false, fmt.Errorf("failed to decode cached dashboard: %w", err)
	}
	return d, generation, true, nil
}

// Set writes d under WATCH on the generation key. The write is skipped when
// an Invalidate has happened since generation was read.
func (c *RedisDashboardCache) Set(ctx context.Context, d domain.Dashboard, generation int64) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, c.generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, raw, c.ttl)
			return nil
		})
		return err
	}, c.generationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *RedisDashboardCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	return err
}

func parseGeneration(v interface{}) (int64, error) {
	raw, ok := v.(string)
	if !ok {
		return 0, nil
	}
	generation, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to decode dashboard generation: %w", err)
	}
	return generation, nil
}
