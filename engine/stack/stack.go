// Package stack assembles the engine and its backends from configuration.
// Servers and the CLI share it so they wire the same components.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/wessley-diagnose/engine/diagnose"
	"github.com/WessleyAI/wessley-diagnose/engine/evidence"
	"github.com/WessleyAI/wessley-diagnose/engine/graph"
	"github.com/WessleyAI/wessley-diagnose/engine/ingest"
	"github.com/WessleyAI/wessley-diagnose/engine/llm"
	"github.com/WessleyAI/wessley-diagnose/engine/localstore"
	"github.com/WessleyAI/wessley-diagnose/engine/retrieval"
	"github.com/WessleyAI/wessley-diagnose/engine/semantic"
	"github.com/WessleyAI/wessley-diagnose/engine/synth"
	"github.com/WessleyAI/wessley-diagnose/pkg/config"
	"github.com/WessleyAI/wessley-diagnose/pkg/fn"
	"github.com/WessleyAI/wessley-diagnose/pkg/metrics"
	"github.com/WessleyAI/wessley-diagnose/pkg/repo"
	"github.com/WessleyAI/wessley-diagnose/pkg/resilience"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Stack is a fully wired engine.
type Stack struct {
	Engine   *diagnose.Engine
	Ingester *ingest.Ingester
	Store    evidence.Store
	Graph    *graph.GraphStore // nil without Neo4j
	NATS     *nats.Conn        // nil without NATS
	Breaker  *resilience.Breaker
	Metrics  *metrics.Registry

	closers []func() error
}

// Build connects every configured backend. On error, anything already
// opened is closed.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *Stack, err error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Stack{Metrics: metrics.New()}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	embedder, err := llm.NewEmbedder(cfg.Embed)
	if err != nil {
		return nil, err
	}
	gen, err := llm.NewGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}

	if s.Store, err = s.openStore(ctx, cfg); err != nil {
		return nil, err
	}

	var enricher synth.GraphEnricher
	if cfg.Neo4j.URL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Password, ""))
		if err != nil {
			return nil, fmt.Errorf("stack: neo4j driver: %w", err)
		}
		s.closers = append(s.closers, func() error { return driver.Close(context.Background()) })
		s.Graph = graph.New(repo.DriverRunner{Driver: driver, Database: cfg.Neo4j.Database})
		enricher = graph.NewEnricher(s.Graph, synth.DefaultGraphLimit, log)
	}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("wessley-diagnose"))
		if err != nil {
			return nil, fmt.Errorf("stack: nats connect: %w", err)
		}
		s.closers = append(s.closers, func() error { return nc.Drain() })
		s.NATS = nc
	}

	breakerState := s.Metrics.Gauge("wessley_generator_breaker_state", "Generator circuit breaker state (0 closed, 1 open, 2 half-open).")
	s.Breaker = resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: cfg.Synth.BreakerFails,
		Timeout:       cfg.Synth.BreakerTimeout,
		IsFailure:     resilience.IgnoreContextErrors,
		OnStateChange: func(from, to resilience.State) {
			breakerState.Set(float64(to))
			log.Warn("generator breaker state change", "from", from.String(), "to", to.String())
		},
	})

	r := retrieval.New(embedder, s.Store, retrieval.Options{
		K:            cfg.Retrieval.K,
		MinScore:     cfg.Retrieval.MinScore,
		StoreTimeout: cfg.Retrieval.StoreTimeout,
		EmbedRetry: fn.RetryOpts{
			MaxAttempts: cfg.Engine.EmbedRetry,
			InitialWait: 100 * time.Millisecond,
			MaxWait:     time.Second,
			Jitter:      true,
		},
	}, log)
	sy := synth.New(gen, synth.Options{
		Timeout:     cfg.Synth.Timeout,
		MaxTokens:   cfg.Synth.MaxTokens,
		Temperature: cfg.Synth.Temperature,
		Breaker:     s.Breaker,
		Graph:       enricher,
	}, log)
	s.Engine = diagnose.New(r, sy, diagnose.Options{InferVehicle: cfg.Engine.InferVehicle, Metrics: s.Metrics}, log)

	storeRetry := fn.DefaultRetry
	storeRetry.Retryable = func(err error) bool {
		return resilience.IgnoreContextErrors(err) && !errors.Is(err, evidence.ErrNoEmbedding)
	}
	deps := ingest.Deps{Embedder: embedder, Store: s.Store, StoreRetry: storeRetry, Metrics: s.Metrics, Logger: log}
	if cfg.Embed.RateLimit > 0 {
		deps.EmbedLimiter = resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.Embed.RateLimit, Burst: 1})
	}
	if s.Graph != nil {
		deps.Graph = s.Graph
	}
	if l, ok := s.Store.(evidence.Lookup); ok && cfg.Store.SkipExisting {
		deps.Exists = l.Exists
	}
	s.Ingester = ingest.New(deps)

	log.Info("engine ready",
		"store", cfg.Store.Kind,
		"embed", cfg.Embed.Provider,
		"generator", cfg.Generator.Provider,
		"graph", s.Graph != nil,
		"nats", s.NATS != nil,
	)
	return s, nil
}

func (s *Stack) openStore(ctx context.Context, cfg *config.Config) (evidence.Store, error) {
	switch cfg.Store.Kind {
	case "qdrant":
		vs, err := semantic.New(cfg.Store.QdrantAddr, cfg.Store.Collection)
		if err != nil {
			return nil, fmt.Errorf("stack: qdrant connect: %w", err)
		}
		s.closers = append(s.closers, vs.Close)
		if err := vs.EnsureCollection(ctx, cfg.Embed.Dimensions); err != nil {
			return nil, fmt.Errorf("stack: qdrant collection: %w", err)
		}
		return vs, nil
	case "sqlite":
		ls, err := localstore.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("stack: sqlite: %w", err)
		}
		s.closers = append(s.closers, ls.Close)
		return ls, nil
	case "memory":
		return evidence.NewMemory(), nil
	default:
		return nil, fmt.Errorf("stack: unknown store kind %q", cfg.Store.Kind)
	}
}

// Close releases backends in reverse order of opening.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
