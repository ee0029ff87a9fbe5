package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/embed"
	"github.com/WessleyAI/wessley-diagnose/engine/evidence"
	"github.com/WessleyAI/wessley-diagnose/pkg/fn"
	"github.com/WessleyAI/wessley-diagnose/pkg/metrics"
	"github.com/WessleyAI/wessley-diagnose/pkg/resilience"
)

func validDoc() domain.EvidenceDocument {
	return domain.EvidenceDocument{
		ID:            "tsb-19-042",
		VehicleScope:  domain.VehicleScope{Make: "chevy", Model: " Malibu ", YearMin: 2016, YearMax: 2018},
		Component:     "  Brake   pads ",
		SymptomText:   "grinding noise\nwhen braking",
		DiagnosisText: "Front pads worn to wear indicator",
		RemedyText:    "Replace front pads. Inspect rotors.",
		Severity:      "HIGH",
	}
}

type countingEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

type recordingIndexer struct {
	mu   sync.Mutex
	docs []string
	err  error
}

func (g *recordingIndexer) IndexDocument(_ context.Context, doc domain.EvidenceDocument) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.docs = append(g.docs, doc.ID)
	return g.err
}

type failingStore struct{ err error }

func (s failingStore) Upsert(context.Context, domain.EvidenceDocument) error { return s.err }

func (s failingStore) Query(context.Context, []float32, int, *evidence.Filter) ([]domain.EvidenceMatch, error) {
	return nil, s.err
}

func TestNormalizeStage(t *testing.T) {
	doc, err := Normalize(context.Background(), validDoc()).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if doc.VehicleScope.Make != "Chevrolet" || doc.VehicleScope.Model != "Malibu" {
		t.Errorf("scope = %+v", doc.VehicleScope)
	}
	if doc.Component != "Brake pads" || doc.SymptomText != "grinding noise when braking" {
		t.Errorf("text not collapsed: %q %q", doc.Component, doc.SymptomText)
	}
	if doc.Severity != domain.SeverityHigh {
		t.Errorf("severity = %q", doc.Severity)
	}
}

func TestNormalize_SingleYear(t *testing.T) {
	d := validDoc()
	d.VehicleScope.YearMax = 0
	if got := normalize(d).VehicleScope.YearMax; got != 2016 {
		t.Fatalf("YearMax = %d, want 2016", got)
	}
}

func TestValidateStage(t *testing.T) {
	ctx := context.Background()
	if r := Validate(ctx, normalize(validDoc())); r.IsErr() {
		t.Fatalf("expected ok, got %v", r.Error())
	}

	noDiag := validDoc()
	noDiag.DiagnosisText = " "
	if r := Validate(ctx, normalize(noDiag)); !errors.Is(r.Error(), domain.ErrInvalidDoc) {
		t.Fatalf("expected ErrInvalidDoc, got %v", r.Error())
	}

	badScope := validDoc()
	badScope.VehicleScope.YearMin = 2020
	if r := Validate(ctx, normalize(badScope)); !errors.Is(r.Error(), domain.ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope, got %v", r.Error())
	}
}

func TestEmbedStage_KeepsExistingVector(t *testing.T) {
	emb := &countingEmbedder{}
	d := validDoc()
	d.Embedding = []float32{0, 1}
	out, err := NewEmbed(emb)(context.Background(), d).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if len(emb.texts) != 0 || len(out.Embedding) != 2 {
		t.Fatalf("expected passthrough, embedder called %d times", len(emb.texts))
	}
}

func TestEmbedStage_ClipsLongText(t *testing.T) {
	emb := &countingEmbedder{}
	d := validDoc()
	d.RemedyText = strings.Repeat("word ", MaxEmbedWords*2)
	if r := NewEmbed(emb)(context.Background(), d); r.IsErr() {
		t.Fatal(r.Error())
	}
	if got := wordCount(emb.texts[0]); got != MaxEmbedWords {
		t.Fatalf("embedded %d words, want %d", got, MaxEmbedWords)
	}
}

func TestPipeline(t *testing.T) {
	store := evidence.NewMemory()
	graph := &recordingIndexer{}
	emb := &countingEmbedder{}
	p := NewPipeline(Deps{Embedder: emb, Store: store, Graph: graph})

	id, err := p(context.Background(), validDoc()).Unwrap()
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if id != "tsb-19-042" || store.Len() != 1 || len(graph.docs) != 1 {
		t.Fatalf("id=%s stored=%d indexed=%d", id, store.Len(), len(graph.docs))
	}
	if !strings.HasPrefix(emb.texts[0], "Brake pads\n") {
		t.Fatalf("embedding text = %q", emb.texts[0])
	}

	matches, err := store.Query(context.Background(), []float32{1, 0, 0}, 1, &evidence.Filter{Make: "Chevrolet", Year: 2017})
	if err != nil || len(matches) != 1 {
		t.Fatalf("stored doc not retrievable: %v %v", matches, err)
	}
}

func TestPipeline_GraphFailureIgnored(t *testing.T) {
	store := evidence.NewMemory()
	p := NewPipeline(Deps{Embedder: &countingEmbedder{}, Store: store, Graph: &recordingIndexer{err: errors.New("neo4j down")}})
	if r := p(context.Background(), validDoc()); r.IsErr() {
		t.Fatalf("graph failure should not fail the pipeline: %v", r.Error())
	}
	if store.Len() != 1 {
		t.Fatal("document not stored")
	}
}

func TestPipeline_EmbedFailure(t *testing.T) {
	store := evidence.NewMemory()
	guard := embed.NewGuard(&countingEmbedder{err: errors.New("ollama down")}, embed.GuardOpts{})
	p := NewPipeline(Deps{Embedder: guard, Store: store})
	r := p(context.Background(), validDoc())
	if !errors.Is(r.Error(), domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", r.Error())
	}
	if store.Len() != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestIngestAll(t *testing.T) {
	store := evidence.NewMemory()
	reg := metrics.New()
	in := New(Deps{
		Embedder: &countingEmbedder{},
		Store:    store,
		Exists: func(_ context.Context, id string) (bool, error) {
			return id == "already-there", nil
		},
		Metrics: reg,
	})

	bad := validDoc()
	bad.ID = "broken"
	bad.Severity = "urgent"
	dup := validDoc()
	dup.ID = "already-there"
	second := validDoc()
	second.ID = "tsb-2"

	sum := in.IngestAll(context.Background(), []domain.EvidenceDocument{validDoc(), bad, dup, second}, 2)
	if sum.Ingested != 2 || sum.Skipped != 1 || len(sum.Failed) != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Failed[0].ID != "broken" {
		t.Fatalf("failed = %+v", sum.Failed)
	}
	if store.Len() != 2 {
		t.Fatalf("stored %d", store.Len())
	}
	if v := reg.Counter(`wessley_ingest_documents_total{outcome="ok"}`, "").Value(); v != 2 {
		t.Fatalf("ok counter = %d", v)
	}
}

func TestIngest_StoreError(t *testing.T) {
	in := New(Deps{Embedder: &countingEmbedder{}, Store: failingStore{err: errors.New("qdrant unreachable")}})
	_, _, err := in.Ingest(context.Background(), validDoc())
	if err == nil || !strings.Contains(err.Error(), "qdrant unreachable") {
		t.Fatalf("err = %v", err)
	}
	if Permanent(err) {
		t.Fatal("store errors are retryable")
	}
}

func TestIngest_DedupErrorFallsThrough(t *testing.T) {
	store := evidence.NewMemory()
	in := New(Deps{
		Embedder: &countingEmbedder{},
		Store:    store,
		Exists:   func(context.Context, string) (bool, error) { return false, errors.New("lookup failed") },
	})
	if _, skipped, err := in.Ingest(context.Background(), validDoc()); err != nil || skipped {
		t.Fatalf("skipped=%v err=%v", skipped, err)
	}
	if store.Len() != 1 {
		t.Fatal("document not stored")
	}
}

type flakyStore struct {
	*evidence.Memory
	fails int
	calls int
}

func (s *flakyStore) Upsert(ctx context.Context, doc domain.EvidenceDocument) error {
	s.calls++
	if s.calls <= s.fails {
		return errors.New("connection reset")
	}
	return s.Memory.Upsert(ctx, doc)
}

func TestIngest_StoreRetry(t *testing.T) {
	store := &flakyStore{Memory: evidence.NewMemory(), fails: 1}
	in := New(Deps{
		Embedder:   &countingEmbedder{},
		Store:      store,
		StoreRetry: fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond},
	})
	if _, _, err := in.Ingest(context.Background(), validDoc()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("calls = %d, want 2", store.calls)
	}
}

func TestIngest_EmbedLimiter(t *testing.T) {
	emb := &countingEmbedder{}
	in := New(Deps{
		Embedder:     emb,
		Store:        evidence.NewMemory(),
		EmbedLimiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: 0.001, Burst: 1}),
	})
	if _, _, err := in.Ingest(context.Background(), validDoc()); err != nil {
		t.Fatalf("first document should use the initial token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second := validDoc()
	second.ID = "tsb-19-043"
	if _, _, err := in.Ingest(ctx, second); err == nil {
		t.Fatal("second document should wait past the deadline")
	}
}
