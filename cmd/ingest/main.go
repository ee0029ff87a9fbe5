// Command ingest watches a directory for bulletin files (JSON array or JSON
// lines) and loads them into the evidence store. With -consume it also
// serves the evidence.ingest NATS subject.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/ingest"
	"github.com/WessleyAI/wessley-diagnose/engine/stack"
	"github.com/WessleyAI/wessley-diagnose/pkg/config"
	"github.com/WessleyAI/wessley-diagnose/pkg/metrics"
)

func main() {
	var (
		configPath = flag.String("config", "wessley.yaml", "path to YAML config")
		dataDir    = flag.String("dir", "data/bulletins", "directory to watch for bulletin files")
		interval   = flag.Duration("interval", 30*time.Second, "scan interval")
		stateFile  = flag.String("state", "", "processed files state (default <dir>/.ingest-state.json)")
		workers    = flag.Int("workers", 4, "documents embedded in parallel")
		once       = flag.Bool("once", false, "scan once and exit")
		consume    = flag.Bool("consume", false, "also consume bulletins from NATS")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	if *stateFile == "" {
		*stateFile = filepath.Join(*dataDir, ".ingest-state.json")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := stack.Build(ctx, cfg, log)
	if err != nil {
		log.Error("build stack", "err", err)
		os.Exit(1)
	}
	defer s.Close()

	if cfg.Server.MetricsAddr != "" {
		s.Metrics.CollectRuntime()
		go func() {
			if err := s.Metrics.Serve(ctx, cfg.Server.MetricsAddr, log); err != nil {
				log.Error("metrics server", "err", err)
			}
		}()
	}

	if *consume {
		if s.NATS == nil {
			log.Error("-consume needs nats.url")
			os.Exit(1)
		}
		sub, err := s.Ingester.StartConsumer(s.NATS, cfg.NATS.Queue+"-ingest")
		if err != nil {
			log.Error("start consumer", "err", err)
			os.Exit(1)
		}
		defer sub.Unsubscribe()
		log.Info("consuming bulletins", "subject", ingest.IngestSubject)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Error("create data dir", "err", err)
		os.Exit(1)
	}

	w := &watcher{
		dir:       *dataDir,
		stateFile: *stateFile,
		workers:   *workers,
		ingest:    s.Ingester.IngestAll,
		metrics:   s.Metrics,
		log:       log,
		processed: loadState(*stateFile),
	}

	log.Info("watching for bulletins", "dir", *dataDir, "interval", *interval)
	w.scan(ctx)
	if *once {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

type ingestFunc func(ctx context.Context, docs []domain.EvidenceDocument, workers int) ingest.Summary

// watcher ingests new or changed files in dir once each.
type watcher struct {
	dir       string
	stateFile string
	workers   int
	ingest    ingestFunc
	metrics   *metrics.Registry
	log       *slog.Logger
	processed map[string]bool
}

// pending lists unprocessed bulletin files in name order.
func (w *watcher) pending() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if w.processed[stateKey(name, info.Size())] {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (w *watcher) scan(ctx context.Context) {
	w.metrics.Gauge("wessley_ingest_last_scan_timestamp", "Epoch of last directory scan").Set(float64(time.Now().Unix()))
	names, err := w.pending()
	if err != nil {
		w.log.Error("readdir failed", "err", err)
		return
	}
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		path := filepath.Join(w.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		docs, err := ingest.LoadFile(path)
		if err != nil {
			w.log.Error("load file", "file", name, "err", err)
			continue
		}
		sum := w.ingest(ctx, docs, w.workers)
		w.metrics.Counter("wessley_ingest_files_processed_total", "Files processed").Inc()
		w.log.Info("file done", "file", name, "ingested", sum.Ingested, "skipped", sum.Skipped, "failed", len(sum.Failed))

		// Files with failures are retried on the next scan.
		if len(sum.Failed) == 0 {
			w.processed[stateKey(name, info.Size())] = true
			if err := saveState(w.stateFile, w.processed); err != nil {
				w.log.Warn("save state", "err", err)
			}
		} else {
			for _, f := range sum.Failed {
				w.log.Warn("document failed", "file", name, "doc_id", f.ID, "err", f.Error)
			}
		}
	}
}

func stateKey(name string, size int64) string {
	return fmt.Sprintf("%s:%d", name, size)
}

func loadState(path string) map[string]bool {
	m := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	_ = json.Unmarshal(data, &m)
	return m
}

func saveState(path string, m map[string]bool) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
