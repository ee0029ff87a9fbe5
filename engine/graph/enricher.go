package graph

import (
	"context"
	"log/slog"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// Enricher turns graph lookups into prompt lines for the synthesizer.
type Enricher struct {
	store *GraphStore
	limit int
	log   *slog.Logger
}

// NewEnricher wraps a GraphStore. limit caps the number of lines returned.
func NewEnricher(store *GraphStore, limit int, log *slog.Logger) *Enricher {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = 5
	}
	return &Enricher{store: store, limit: limit, log: log}
}

// GraphContext lists components related to the evidence components.
func (e *Enricher) GraphContext(ctx context.Context, v domain.Vehicle, components []string) ([]string, error) {
	related, err := e.store.RelatedComponents(ctx, v.Make, components, e.limit)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(related))
	for _, c := range related {
		lines = append(lines, c.Label())
	}
	e.log.Debug("graph context", "components", len(components), "related", len(lines))
	return lines, nil
}
