// Package tiered layers an in-process cache over a shared one so published
// markers are cheap to check locally and still visible across replicas.
package tiered

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/answerdesk/internal/port/cache"
)

// Cache reads level by level and writes through every level. Level 0 is the
// local cache; a failure of any later level on read counts as a miss.
type Cache struct {
	levels      []cache.Cache
	backfillTTL time.Duration
}

// New stacks l1 over l2. A nil l2 gives a single-level cache. Entries copied
// up into l1 after an l2 hit live for backfillTTL.
func New(l1, l2 cache.Cache, backfillTTL time.Duration) *Cache {
	c := &Cache{levels: []cache.Cache{l1}, backfillTTL: backfillTTL}
	if l2 != nil {
		c.levels = append(c.levels, l2)
	}
	return c
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	for i, lvl := range c.levels {
		val, ok, err := lvl.Get(ctx, key)
		switch {
		case err != nil && i == 0:
			return nil, false, err
		case err != nil:
			slog.Warn("shared cache unavailable, reading as miss", "key", key, "level", i+1, "error", err)
			return nil, false, nil
		case ok:
			for _, upper := range c.levels[:i] {
				_ = upper.Set(ctx, key, val, c.backfillTTL)
			}
			return val, true, nil
		}
	}
	return nil, false, nil
}

// Set writes every level in order and stops at the first failure; levels
// already written keep the value.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	for i, lvl := range c.levels {
		if err := lvl.Set(ctx, key, value, ttl); err != nil {
			return fmt.Errorf("cache level %d set %s: %w", i+1, key, err)
		}
	}
	return nil
}

// Delete removes key from every level, even when one of them fails.
func (c *Cache) Delete(ctx context.Context, key string) error {
	var errs []error
	for i, lvl := range c.levels {
		if err := lvl.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("cache level %d delete %s: %w", i+1, key, err))
		}
	}
	return errors.Join(errs...)
}
