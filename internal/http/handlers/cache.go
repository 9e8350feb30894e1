package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/hongminglow/budget-api/internal/cache"
)

// Cache failures never fail a request: a broken cache reads as a miss and
// writes are best-effort. Only real backend errors are logged; ErrMiss is
// the expected path.

func cacheGet(ctx context.Context, c cache.Store, key string) (string, bool) {
	value, err := c.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("cache get %s: %v", key, err)
		}
		return "", false
	}
	return value, true
}

func cachePut(ctx context.Context, c cache.Store, key string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("cache marshal %s: %v", key, err)
		return
	}
	if err := c.Set(ctx, key, string(body)); err != nil {
		log.Printf("cache set %s: %v", key, err)
	}
}

func cacheDrop(ctx context.Context, c cache.Store, key string) {
	if err := c.Delete(ctx, key); err != nil {
		log.Printf("cache delete %s: %v", key, err)
	}
}
