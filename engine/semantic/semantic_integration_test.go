//go:build integration

package semantic

import (
	"context"
	"os"
	"testing"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/evidence"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		return v
	}
	return "localhost:6334"
}

func testStore(t *testing.T, collection string) *VectorStore {
	t.Helper()
	vs, err := New(qdrantAddr(), collection)
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	t.Cleanup(func() {
		vs.DeleteCollection(context.Background())
		vs.Close()
	})
	if err := vs.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	return vs
}

func TestQdrant_EnsureCollectionIdempotent(t *testing.T) {
	vs := testStore(t, "test_ensure")
	if err := vs.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatalf("EnsureCollection (idempotent): %v", err)
	}
}

func TestQdrant_UpsertAndQuery(t *testing.T) {
	vs := testStore(t, "test_upsert_query")
	ctx := context.Background()

	docs := []domain.EvidenceDocument{
		{ID: "civic-pads", VehicleScope: domain.VehicleScope{Make: "Honda", YearMin: 2014, YearMax: 2016}, DiagnosisText: "worn pads", Severity: domain.SeverityHigh, Embedding: []float32{1, 0, 0, 0}},
		{ID: "camry-pads", VehicleScope: domain.VehicleScope{Make: "Toyota", YearMin: 2014, YearMax: 2016}, DiagnosisText: "worn pads", Severity: domain.SeverityHigh, Embedding: []float32{0.9, 0.1, 0, 0}},
		{ID: "civic-open", VehicleScope: domain.VehicleScope{Make: "Honda"}, DiagnosisText: "loose heat shield", Severity: domain.SeverityLow, Embedding: []float32{0.8, 0.2, 0, 0}},
	}
	for _, d := range docs {
		if err := vs.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	all, err := vs.Query(ctx, []float32{1, 0, 0, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(all) != 3 || all[0].Document.ID != "civic-pads" {
		t.Fatalf("unexpected unfiltered results: %+v", all)
	}

	honda, err := vs.Query(ctx, []float32{1, 0, 0, 0}, 10, &evidence.Filter{Make: "honda", Year: 2015})
	if err != nil {
		t.Fatalf("Query filtered: %v", err)
	}
	if len(honda) != 2 {
		t.Fatalf("expected 2 honda results, got %d", len(honda))
	}

	late, err := vs.Query(ctx, []float32{1, 0, 0, 0}, 10, &evidence.Filter{Make: "Honda", Year: 2020})
	if err != nil {
		t.Fatalf("Query filtered: %v", err)
	}
	if len(late) != 1 || late[0].Document.ID != "civic-open" {
		t.Fatalf("expected only the open-ended bulletin, got %+v", late)
	}
}

func TestQdrant_Exists(t *testing.T) {
	vs := testStore(t, "test_exists")
	ctx := context.Background()

	d := domain.EvidenceDocument{ID: "have-1", DiagnosisText: "x", Severity: domain.SeverityLow, Embedding: []float32{1, 0, 0, 0}}
	if err := vs.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ok, err := vs.Exists(ctx, "have-1"); err != nil || !ok {
		t.Fatalf("Exists(have-1) = %v, %v", ok, err)
	}
	if ok, err := vs.Exists(ctx, "missing-1"); err != nil || ok {
		t.Fatalf("Exists(missing-1) = %v, %v", ok, err)
	}
}
