// Package repo defines a generic repository contract and its Neo4j
// implementation used for the component knowledge graph.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entity has the id.
var ErrNotFound = errors.New("repo: not found")

// Repository is a generic keyed store.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Upsert(ctx context.Context, entity T) error
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination and property filtering for List.
type ListOpts struct {
	Offset int
	Limit  int
	// Filter matches node properties by equality.
	Filter map[string]any
}
