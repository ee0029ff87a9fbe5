package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Record is one result row keyed by column name.
type Record map[string]any

// Runner executes a Cypher statement and returns all rows.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error)
}

// DriverRunner runs queries through neo4j.ExecuteQuery.
type DriverRunner struct {
	Driver   neo4j.DriverWithContext
	Database string
}

func (d DriverRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	var opts []neo4j.ExecuteQueryConfigurationOption
	if d.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(d.Database))
	}
	res, err := neo4j.ExecuteQuery(ctx, d.Driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(res.Records))
	for _, r := range res.Records {
		out = append(out, Record(r.AsMap()))
	}
	return out, nil
}

// NodeProps returns the properties of a node value, accepting either a
// driver node or a plain property map.
func NodeProps(v any) (map[string]any, bool) {
	switch n := v.(type) {
	case dbtype.Node:
		return n.Props, true
	case *dbtype.Node:
		if n == nil {
			return nil, false
		}
		return n.Props, true
	case map[string]any:
		return n, true
	}
	return nil, false
}

// Str reads a string property, returning "" when absent or mistyped.
func Str(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

// Neo4jRepo stores T as nodes with a single label, keyed by idKey.
type Neo4jRepo[T any, ID comparable] struct {
	run      Runner
	label    string
	idKey    string
	toProps  func(T) map[string]any
	fromNode func(map[string]any) (T, error)
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the id property name (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// NewNeo4jRepo creates a repository for nodes labelled label.
func NewNeo4jRepo[T any, ID comparable](
	run Runner,
	label string,
	toProps func(T) map[string]any,
	fromNode func(map[string]any) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		run:      run,
		label:    label,
		idKey:    "id",
		toProps:  toProps,
		fromNode: fromNode,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n", r.label, r.idKey)
	rows, err := r.run.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, fmt.Errorf("repo: get %s: %w", r.label, err)
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return r.decode(rows[0])
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	params := map[string]any{"offset": opts.Offset, "limit": limit}

	keys := make([]string, 0, len(opts.Filter))
	for k := range opts.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conds := make([]string, 0, len(keys))
	for i, k := range keys {
		p := fmt.Sprintf("f%d", i)
		conds = append(conds, fmt.Sprintf("n.%s = $%s", sanitizeKey(k), p))
		params[p] = opts.Filter[k]
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	cypher := fmt.Sprintf("MATCH (n:%s)%s RETURN n ORDER BY n.%s SKIP $offset LIMIT $limit", r.label, where, r.idKey)
	rows, err := r.run.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("repo: list %s: %w", r.label, err)
	}
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		item, err := r.decode(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Upsert merges the entity on its id and overwrites the given properties.
func (r *Neo4jRepo[T, ID]) Upsert(ctx context.Context, entity T) error {
	props := r.toProps(entity)
	cypher := fmt.Sprintf("MERGE (n:%s {%s: $id}) SET n += $props", r.label, r.idKey)
	if _, err := r.run.Run(ctx, cypher, map[string]any{"id": props[r.idKey], "props": props}); err != nil {
		return fmt.Errorf("repo: upsert %s: %w", r.label, err)
	}
	return nil
}

func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", r.label, r.idKey)
	if _, err := r.run.Run(ctx, cypher, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("repo: delete %s: %w", r.label, err)
	}
	return nil
}

func (r *Neo4jRepo[T, ID]) decode(row Record) (T, error) {
	var zero T
	props, ok := NodeProps(row["n"])
	if !ok {
		return zero, fmt.Errorf("repo: %s: column n is %T, not a node", r.label, row["n"])
	}
	return r.fromNode(props)
}

// sanitizeKey keeps property names to [A-Za-z0-9_].
func sanitizeKey(k string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, k)
}
