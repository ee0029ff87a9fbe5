package evidence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// Memory is a brute-force cosine store guarded by a RWMutex.
type Memory struct {
	mu    sync.RWMutex
	docs  map[string]domain.EvidenceDocument
	order []string
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]domain.EvidenceDocument)}
}

var (
	_ Store  = (*Memory)(nil)
	_ Lookup = (*Memory)(nil)
)

// Upsert replaces any document with the same id.
func (m *Memory) Upsert(_ context.Context, doc domain.EvidenceDocument) error {
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("%w: %s", ErrNoEmbedding, doc.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		m.order = append(m.order, doc.ID)
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *Memory) Query(ctx context.Context, vec []float32, k int, f *Filter) ([]domain.EvidenceMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]domain.EvidenceMatch, 0, len(m.order))
	for _, id := range m.order {
		doc := m.docs[id]
		if !f.Matches(doc) {
			continue
		}
		matches = append(matches, domain.EvidenceMatch{Document: doc, Score: Cosine(vec, doc.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *Memory) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[id]
	return ok, nil
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
