package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/evidence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "evidence.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	docs := []domain.EvidenceDocument{
		{ID: "civic-pads", VehicleScope: domain.VehicleScope{Make: "Honda", Model: "Civic", YearMin: 2014, YearMax: 2016},
			Component: "Brake pads", DiagnosisText: "worn pads", RemedyText: "replace pads", Severity: domain.SeverityHigh,
			Embedding: []float32{1, 0, 0}},
		{ID: "camry-pads", VehicleScope: domain.VehicleScope{Make: "Toyota", YearMin: 2014, YearMax: 2016},
			DiagnosisText: "worn pads", Severity: domain.SeverityHigh, Embedding: []float32{0.9, 0.1, 0}},
		{ID: "honda-open", VehicleScope: domain.VehicleScope{Make: "honda"},
			DiagnosisText: "heat shield rattle", Severity: domain.SeverityLow, Embedding: []float32{0, 1, 0}},
	}
	for _, d := range docs {
		require.NoError(t, s.Upsert(ctx, d))
	}
}

func TestOpen_MissingPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestQuery_RanksAndDecodes(t *testing.T) {
	s := openTemp(t)
	seed(t, s)

	got, err := s.Query(context.Background(), []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "civic-pads", got[0].Document.ID)
	assert.Equal(t, "camry-pads", got[1].Document.ID)

	d := got[0].Document
	assert.Equal(t, "Honda", d.VehicleScope.Make)
	assert.Equal(t, 2016, d.VehicleScope.YearMax)
	assert.Equal(t, domain.SeverityHigh, d.Severity)
	assert.Equal(t, []float32{1, 0, 0}, d.Embedding)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
}

func TestQuery_Filter(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	ctx := context.Background()

	got, err := s.Query(ctx, []float32{1, 0, 0}, 5, &evidence.Filter{Make: "HONDA", Year: 2015})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.Query(ctx, []float32{1, 0, 0}, 5, &evidence.Filter{Make: "Honda", Year: 2020})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "honda-open", got[0].Document.ID)

	got, err = s.Query(ctx, []float32{1, 0, 0}, 5, &evidence.Filter{Make: "Ford"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsert_Replaces(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, domain.EvidenceDocument{ID: "civic-pads", DiagnosisText: "updated",
		Severity: domain.SeverityMedium, Embedding: []float32{0, 0, 1}}))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.Query(ctx, []float32{0, 0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "updated", got[0].Document.DiagnosisText)
}

func TestExists(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "camry-pads")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "never-ingested")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsert_NoEmbedding(t *testing.T) {
	s := openTemp(t)
	err := s.Upsert(context.Background(), domain.EvidenceDocument{ID: "x"})
	assert.ErrorIs(t, err, evidence.ErrNoEmbedding)
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.db")
	s, err := Open(path)
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	b, err := encodeVector(in)
	require.NoError(t, err)
	out, err := decodeVector(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
