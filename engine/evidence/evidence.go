// Package evidence defines the Evidence Store contract and an in-memory
// implementation used in tests and for small local corpora.
package evidence

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// Store persists pre-embedded bulletins and answers similarity queries.
type Store interface {
	Upsert(ctx context.Context, doc domain.EvidenceDocument) error
	// Query returns up to k matches ordered by descending score. A nil
	// filter matches every document.
	Query(ctx context.Context, vec []float32, k int, f *Filter) ([]domain.EvidenceMatch, error)
}

// Lookup is implemented by stores that can tell whether a document id is
// already stored without fetching it.
type Lookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// ErrNoEmbedding is returned by Upsert for documents without a vector.
var ErrNoEmbedding = errors.New("evidence: document has no embedding")

// Filter restricts a query to bulletins whose scope covers a vehicle.
type Filter struct {
	Make string
	Year int
}

// Empty reports whether the filter restricts nothing.
func (f *Filter) Empty() bool {
	return f == nil || (strings.TrimSpace(f.Make) == "" && f.Year == 0)
}

// Matches reports whether doc passes the filter.
func (f *Filter) Matches(doc domain.EvidenceDocument) bool {
	if f.Empty() {
		return true
	}
	if strings.TrimSpace(f.Make) != "" && strings.TrimSpace(doc.VehicleScope.Make) == "" {
		return false
	}
	return doc.VehicleScope.Contains(domain.Vehicle{Make: f.Make, Year: f.Year})
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
