package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/pkg/repo"
)

// GraphStore provides graph operations on top of the generic Neo4j repository.
type GraphStore struct {
	run        repo.Runner
	components *repo.Neo4jRepo[Component, string]
}

// New creates a GraphStore that executes Cypher through run.
func New(run repo.Runner) *GraphStore {
	return &GraphStore{
		run:        run,
		components: repo.NewNeo4jRepo[Component, string](run, "Component", componentToMap, componentFromProps),
	}
}

// GetComponent returns a component by ID.
func (g *GraphStore) GetComponent(ctx context.Context, id string) (Component, error) {
	return g.components.Get(ctx, id)
}

// SaveComponent creates or updates a component node.
func (g *GraphStore) SaveComponent(ctx context.Context, c Component) error {
	return g.components.Upsert(ctx, c)
}

// ComponentsInSystem lists the components filed under a system.
func (g *GraphStore) ComponentsInSystem(ctx context.Context, system string, limit int) ([]Component, error) {
	return g.components.List(ctx, repo.ListOpts{Limit: limit, Filter: map[string]any{"system": system}})
}

const indexDocumentCypher = `
MERGE (s:System {id: $system_id}) SET s.name = $system
MERGE (c:Component {id: $component_id})
  SET c.name = $component, c.system = $system, c.subsystem = $subsystem
MERGE (s)-[:HAS_COMPONENT]->(c)
MERGE (b:Bulletin {id: $doc_id})
  SET b.severity = $severity, b.year_min = $year_min, b.year_max = $year_max, b.model = $model
MERGE (c)-[:DOCUMENTED_IN]->(b)
FOREACH (_ IN CASE WHEN $make_id = '' THEN [] ELSE [1] END |
  MERGE (m:Make {id: $make_id}) SET m.name = $make
  MERGE (b)-[:APPLIES_TO]->(m))`

// IndexDocument links a bulletin to its component, the component's system
// and the make the bulletin applies to. Re-indexing is idempotent.
func (g *GraphStore) IndexDocument(ctx context.Context, doc domain.EvidenceDocument) error {
	if strings.TrimSpace(doc.Component) == "" {
		return nil
	}
	c := NewComponent(doc.Component)
	make_ := domain.CanonicalMake(doc.VehicleScope.Make)
	params := map[string]any{
		"system_id":    sanitizeID(c.System),
		"system":       c.System,
		"component_id": c.ID,
		"component":    c.Name,
		"subsystem":    c.Subsystem,
		"doc_id":       doc.ID,
		"severity":     string(doc.Severity),
		"year_min":     doc.VehicleScope.YearMin,
		"year_max":     doc.VehicleScope.YearMax,
		"model":        doc.VehicleScope.Model,
		"make_id":      sanitizeID(make_),
		"make":         make_,
	}
	if _, err := g.run.Run(ctx, indexDocumentCypher, params); err != nil {
		return fmt.Errorf("graph: index %s: %w", doc.ID, err)
	}
	return nil
}

const relatedCypher = `
MATCH (s:System)-[:HAS_COMPONENT]->(n:Component)
WHERE s.id IN $systems AND NOT n.id IN $exclude
OPTIONAL MATCH (n)-[:DOCUMENTED_IN]->(b:Bulletin)-[:APPLIES_TO]->(:Make {id: $make_id})
WITH n, count(b) AS hits
RETURN n, hits
ORDER BY hits DESC, n.name
LIMIT $limit`

// RelatedComponents returns components sharing a system with any of the
// given components, excluding the components themselves. Components with
// more bulletins for make rank first.
func (g *GraphStore) RelatedComponents(ctx context.Context, make_ string, components []string, limit int) ([]Component, error) {
	if limit <= 0 {
		limit = 5
	}
	systems := make([]string, 0, len(components))
	exclude := make([]string, 0, len(components))
	seen := map[string]bool{}
	for _, name := range components {
		c := NewComponent(name)
		if c.ID == "" {
			continue
		}
		exclude = append(exclude, c.ID)
		id := sanitizeID(c.System)
		if c.System != OtherSystem && !seen[id] {
			seen[id] = true
			systems = append(systems, id)
		}
	}
	if len(systems) == 0 {
		return nil, nil
	}

	rows, err := g.run.Run(ctx, relatedCypher, map[string]any{
		"systems": systems,
		"exclude": exclude,
		"make_id": sanitizeID(domain.CanonicalMake(make_)),
		"limit":   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("graph: related components: %w", err)
	}
	out := make([]Component, 0, len(rows))
	for _, row := range rows {
		props, ok := repo.NodeProps(row["n"])
		if !ok {
			continue
		}
		c, err := componentFromProps(props)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
