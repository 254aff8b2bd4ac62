package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Event is a catalog change that invalidates cached lookups.
type Event interface {
	patterns() []string
}

// ProductChanged is emitted after a product is created, updated or moved.
type ProductChanged struct {
	ID int64
}

func (e ProductChanged) patterns() []string {
	// A move changes ancestors' trees too.
	return []string{
		"product:" + strconv.FormatInt(e.ID, 10) + ":*",
		"product:*:children",
		"product:*:descendants",
	}
}

// SourceChanged is emitted after a source or a product/source link changes.
type SourceChanged struct {
	ID int64
}

func (e SourceChanged) patterns() []string {
	return []string{"source:*", "product:*:sources"}
}

// Handle invalidates the cache entries affected by event.
func (s *Service) Handle(ctx context.Context, event Event) error {
	total := 0
	for _, p := range event.patterns() {
		n, err := s.cache.DeletePattern(ctx, p)
		if err != nil {
			return fmt.Errorf("invalidate %s: %w", p, err)
		}
		total += n
	}
	slog.Debug("Catalog cache invalidated", "event", fmt.Sprintf("%T", event), "keys", total)
	return nil
}
