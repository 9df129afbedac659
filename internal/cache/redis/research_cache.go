package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edgescout/edgescout/internal/domain"
)

// ResearchCache implements domain.ResearchCache using plain Redis strings.
// Keys are fingerprints computed by the governor; values are JSON-serialized
// stage results. The cache is the only state carried across runs.
//
// Key schema:
//
//	research:{fingerprint} - serialized stage result, expiring at the TTL
type ResearchCache struct {
	rdb *redis.Client
}

// NewResearchCache creates a ResearchCache backed by the given Client.
func NewResearchCache(c *Client) *ResearchCache {
	return &ResearchCache{rdb: c.Underlying()}
}

func researchKey(fingerprint string) string { return "research:" + fingerprint }

// Get retrieves a cached stage result by fingerprint.
// It returns domain.ErrNotFound when the key does not exist or has expired.
func (rc *ResearchCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := rc.rdb.Get(ctx, researchKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get research %s: %w", key, err)
	}
	return data, nil
}

// Set stores a stage result under the given fingerprint with the given TTL.
func (rc *ResearchCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := rc.rdb.Set(ctx, researchKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set research %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResearchCache = (*ResearchCache)(nil)
