package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/ingest"
	"github.com/WessleyAI/wessley-diagnose/pkg/metrics"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newWatcher(dir string, fail map[string]bool, seen *[]string) *watcher {
	return &watcher{
		dir:       dir,
		stateFile: filepath.Join(dir, ".ingest-state.json"),
		workers:   1,
		metrics:   metrics.New(),
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		processed: map[string]bool{},
		ingest: func(_ context.Context, docs []domain.EvidenceDocument, _ int) ingest.Summary {
			var sum ingest.Summary
			for _, d := range docs {
				*seen = append(*seen, d.ID)
				if fail[d.ID] {
					sum.Failed = append(sum.Failed, ingest.Failure{ID: d.ID, Error: "boom"})
				} else {
					sum.Ingested++
				}
			}
			return sum
		},
	}
}

func TestWatcher_ScanOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", `{"id":"a1"}`+"\n"+`{"id":"a2"}`+"\n")
	writeFile(t, dir, "b.json", `[{"id":"b1"}]`)
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, ".hidden.json", `[{"id":"h"}]`)

	var seen []string
	w := newWatcher(dir, nil, &seen)
	w.scan(context.Background())
	if len(seen) != 3 || seen[0] != "a1" || seen[2] != "b1" {
		t.Fatalf("seen = %v", seen)
	}

	// Second scan finds nothing new.
	w.scan(context.Background())
	if len(seen) != 3 {
		t.Fatalf("files re-ingested: %v", seen)
	}

	// State survives a restart.
	if st := loadState(w.stateFile); len(st) != 2 {
		t.Fatalf("state = %v", st)
	}
}

func TestWatcher_FailedFileRetried(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", `{"id":"bad"}`)

	var seen []string
	w := newWatcher(dir, map[string]bool{"bad": true}, &seen)
	w.scan(context.Background())
	w.scan(context.Background())
	if len(seen) != 2 {
		t.Fatalf("expected retry on next scan, seen = %v", seen)
	}
}

func TestWatcher_ChangedFileReingested(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", `{"id":"a1"}`)

	var seen []string
	w := newWatcher(dir, nil, &seen)
	w.scan(context.Background())
	writeFile(t, dir, "a.jsonl", `{"id":"a1"}`+"\n"+`{"id":"a2"}`)
	w.scan(context.Background())
	if len(seen) != 3 {
		t.Fatalf("seen = %v", seen)
	}
}

func TestWatcher_MalformedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", "{broken")

	var seen []string
	w := newWatcher(dir, nil, &seen)
	w.scan(context.Background())
	if len(seen) != 0 || len(w.processed) != 0 {
		t.Fatalf("seen=%v processed=%v", seen, w.processed)
	}
}
