package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fathima-sithara/inbox-service/internal/models"
)

// notFoundSentinel is stored for missing users so repeated references
// to a dangling id do not hammer the backing directory.
const notFoundSentinel = "__not_found__"

// Cache is a read-through Redis layer in front of another Directory.
// Hits and not-found results are cached with a TTL; transient lookup
// errors are never cached. Redis being down degrades to pass-through.
type Cache struct {
	next   Directory
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewCache(next Directory, client *redis.Client, prefix string, ttl time.Duration, log *zap.SugaredLogger) *Cache {
	return &Cache{next: next, client: client, prefix: prefix, ttl: ttl, log: log}
}

func (c *Cache) key(id string) string {
	return fmt.Sprintf("%s:user:%s", c.prefix, id)
}

func (c *Cache) Lookup(ctx context.Context, id string) (*models.PartnerMetadata, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Result()
	switch {
	case err == nil:
		if raw == notFoundSentinel {
			return nil, ErrNotFound
		}
		var meta models.PartnerMetadata
		if jsonErr := json.Unmarshal([]byte(raw), &meta); jsonErr == nil {
			return &meta, nil
		}
		// corrupt entry: fall through and repopulate
	case errors.Is(err, redis.Nil):
		// miss
	default:
		c.log.Warnw("directory cache read failed", "user_id", id, "err", err)
	}

	meta, err := c.next.Lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		if setErr := c.client.Set(ctx, c.key(id), notFoundSentinel, c.ttl).Err(); setErr != nil {
			c.log.Warnw("directory cache write failed", "user_id", id, "err", setErr)
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if b, jsonErr := json.Marshal(meta); jsonErr == nil {
		if setErr := c.client.Set(ctx, c.key(id), b, c.ttl).Err(); setErr != nil {
			c.log.Warnw("directory cache write failed", "user_id", id, "err", setErr)
		}
	}
	return meta, nil
}
