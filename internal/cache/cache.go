// Package cache provides the derived-lookup caches used by the catalog.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-harvest-must-flow/internal/service"
)

// GetOrCompute returns the JSON value stored under key, or calls compute and
// stores its result. Cache failures degrade to calling compute.
func GetOrCompute[T any](ctx context.Context, c service.Cache, key string, compute func(context.Context) (T, error)) (T, error) {
	if raw, ok, err := c.Get(ctx, key); err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		slog.Debug("Discarding undecodable cache entry", "key", key)
	}

	v, err := compute(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return v, fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := c.Set(ctx, key, raw); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
	return v, nil
}
