// Package ingest loads service bulletins into the evidence store: it
// normalizes and validates each document, embeds it, stores the vector and
// indexes the component graph. Documents arrive from files or over NATS.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/embed"
	"github.com/WessleyAI/wessley-diagnose/engine/evidence"
	"github.com/WessleyAI/wessley-diagnose/pkg/fn"
	"github.com/WessleyAI/wessley-diagnose/pkg/metrics"
	"github.com/WessleyAI/wessley-diagnose/pkg/natsutil"
	"github.com/WessleyAI/wessley-diagnose/pkg/resilience"
	"github.com/nats-io/nats.go"
)

const (
	// IngestSubject is the NATS subject for incoming bulletins.
	IngestSubject = "evidence.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "evidence.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
	// RetryHeader carries the attempt count on re-published messages.
	RetryHeader = "X-Retry-Count"
	// MessageTimeout bounds one consumed message.
	MessageTimeout = 30 * time.Second
)

// Indexer records a document in the component graph.
type Indexer interface {
	IndexDocument(ctx context.Context, doc domain.EvidenceDocument) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder embed.Embedder
	Store    evidence.Store
	Graph    Indexer // optional
	// Exists reports whether a document id is already stored. Optional.
	Exists  func(ctx context.Context, id string) (bool, error)
	Metrics *metrics.Registry
	Logger  *slog.Logger
	// StoreRetry retries evidence upserts. The zero value tries once.
	StoreRetry fn.RetryOpts
	// EmbedLimiter paces embedding calls. Optional.
	EmbedLimiter *resilience.Limiter
}

// --- Pipeline Stages ---

// Normalize cleans a document before validation.
var Normalize fn.Stage[domain.EvidenceDocument, domain.EvidenceDocument] = fn.MapStage(normalize)

// Validate checks a document via domain validation.
var Validate fn.Stage[domain.EvidenceDocument, domain.EvidenceDocument] = func(_ context.Context, doc domain.EvidenceDocument) fn.Result[domain.EvidenceDocument] {
	if err := domain.ValidateDocument(doc); err != nil {
		return fn.Err[domain.EvidenceDocument](err)
	}
	return fn.Ok(doc)
}

// NewEmbed creates a stage that fills the document embedding. Documents
// that already carry one are passed through.
func NewEmbed(e embed.Embedder) fn.Stage[domain.EvidenceDocument, domain.EvidenceDocument] {
	return func(ctx context.Context, doc domain.EvidenceDocument) fn.Result[domain.EvidenceDocument] {
		if len(doc.Embedding) > 0 {
			return fn.Ok(doc)
		}
		vec, err := e.Embed(ctx, clipWords(doc.EmbeddingText(), MaxEmbedWords))
		if err != nil {
			return fn.Err[domain.EvidenceDocument](fmt.Errorf("embed %s: %w", doc.ID, err))
		}
		doc.Embedding = vec
		return fn.Ok(doc)
	}
}

// NewStore creates a stage that upserts into the evidence store, retrying
// per opts, and then indexes the graph. Graph failures are logged, not
// returned.
func NewStore(s evidence.Store, g Indexer, opts fn.RetryOpts, log *slog.Logger) fn.Stage[domain.EvidenceDocument, string] {
	upsert := fn.RetryStage(opts, fn.TryStage(func(ctx context.Context, doc domain.EvidenceDocument) (domain.EvidenceDocument, error) {
		return doc, s.Upsert(ctx, doc)
	}))
	return func(ctx context.Context, doc domain.EvidenceDocument) fn.Result[string] {
		if _, err := upsert(ctx, doc).Unwrap(); err != nil {
			return fn.Err[string](fmt.Errorf("evidence upsert %s: %w", doc.ID, err))
		}
		if g != nil {
			if err := g.IndexDocument(ctx, doc); err != nil {
				log.Warn("ingest: graph index", "err", err, "doc_id", doc.ID)
			}
		}
		return fn.Ok(doc.ID)
	}
}

// LoggedTap returns a stage that logs entry with the document id.
func LoggedTap(name string, log *slog.Logger) fn.Stage[domain.EvidenceDocument, domain.EvidenceDocument] {
	return fn.TapStage(func(_ context.Context, doc domain.EvidenceDocument) {
		log.Debug("stage.enter", "stage", name, "doc_id", doc.ID)
	})
}

// NewPipeline constructs Normalize → Validate → Embed → Store.
func NewPipeline(deps Deps) fn.Stage[domain.EvidenceDocument, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	validated := fn.Then(Normalize, fn.Then(LoggedTap("validate", log), Validate))
	embedded := fn.Then(validated, fn.Then(LoggedTap("embed", log), resilience.LimiterStageWait(deps.EmbedLimiter, NewEmbed(deps.Embedder))))
	stored := fn.Then(embedded, fn.Then(LoggedTap("store", log), NewStore(deps.Store, deps.Graph, deps.StoreRetry, log)))
	return fn.TracedStage("ingest.document", stored)
}

// Ingester runs documents through the pipeline.
type Ingester struct {
	pipeline fn.Stage[domain.EvidenceDocument, string]
	deps     Deps
	log      *slog.Logger
}

// New creates an Ingester.
func New(deps Deps) *Ingester {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Ingester{pipeline: NewPipeline(deps), deps: deps, log: deps.Logger}
}

// Ingest stores one document. skipped is true when Exists reported it.
func (in *Ingester) Ingest(ctx context.Context, doc domain.EvidenceDocument) (id string, skipped bool, err error) {
	if in.deps.Exists != nil && doc.ID != "" {
		exists, err := in.deps.Exists(ctx, doc.ID)
		if err != nil {
			in.log.Warn("ingest: dedup check failed", "err", err, "doc_id", doc.ID)
		} else if exists {
			in.count("skipped")
			return doc.ID, true, nil
		}
	}
	id, err = in.pipeline(ctx, doc).Unwrap()
	if err != nil {
		in.count("failed")
		return "", false, err
	}
	in.count("ok")
	return id, false, nil
}

type outcome struct {
	id      string
	skipped bool
	err     error
}

// IngestAll ingests docs with up to workers in flight. Failures do not stop
// the batch.
func (in *Ingester) IngestAll(ctx context.Context, docs []domain.EvidenceDocument, workers int) Summary {
	results := fn.ParMap(docs, workers, func(d domain.EvidenceDocument) outcome {
		id, skipped, err := in.Ingest(ctx, d)
		return outcome{id: id, skipped: skipped, err: err}
	})
	var sum Summary
	for i, r := range results {
		switch {
		case r.err != nil:
			sum.Failed = append(sum.Failed, Failure{ID: docs[i].ID, Error: r.err.Error()})
		case r.skipped:
			sum.Skipped++
		default:
			sum.Ingested++
		}
	}
	in.log.Info("ingest: batch done", "ingested", sum.Ingested, "skipped", sum.Skipped, "failed", len(sum.Failed))
	return sum
}

// Permanent reports whether err will fail again on retry.
func Permanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidDoc) || errors.Is(err, domain.ErrInvalidScope)
}

// StartConsumer consumes bulletins from IngestSubject in queue group queue,
// re-publishing failures with an incremented RetryHeader and sending them
// to DLQSubject after MaxRetries or on a permanent error.
func (in *Ingester) StartConsumer(nc *nats.Conn, queue string) (*nats.Subscription, error) {
	log := in.log
	return nc.QueueSubscribe(IngestSubject, queue, func(msg *nats.Msg) {
		var doc domain.EvidenceDocument
		if err := json.Unmarshal(msg.Data, &doc); err != nil {
			log.Error("ingest: unmarshal failed", "err", err)
			in.deadLetter(nc, domain.EvidenceDocument{}, err, 0)
			return
		}

		ctx, cancel := context.WithTimeout(natsutil.Extract(msg), MessageTimeout)
		defer cancel()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(RetryHeader); v != "" {
				retries, _ = strconv.Atoi(v)
			}
		}

		id, skipped, err := in.Ingest(ctx, doc)
		switch {
		case err == nil && skipped:
			log.Info("ingest: skipping duplicate", "doc_id", id)
		case err == nil:
			log.Info("ingest: success", "doc_id", id)
		default:
			retries++
			log.Error("ingest: pipeline failed", "err", err, "doc_id", doc.ID, "retry", retries)
			if retries >= MaxRetries || Permanent(err) {
				in.deadLetter(nc, doc, err, retries)
				return
			}
			retry := nats.NewMsg(IngestSubject)
			retry.Data = msg.Data
			retry.Header = nats.Header{}
			retry.Header.Set(RetryHeader, strconv.Itoa(retries))
			if err := nc.PublishMsg(retry); err != nil {
				log.Error("ingest: retry publish failed", "err", err)
			}
		}
	})
}

func (in *Ingester) deadLetter(nc *nats.Conn, doc domain.EvidenceDocument, cause error, retries int) {
	data, _ := json.Marshal(dlqMessage{Document: doc, Error: cause.Error(), Retries: retries})
	if err := nc.Publish(DLQSubject, data); err != nil {
		in.log.Error("ingest: DLQ publish failed", "err", err)
	}
	in.count("dead_letter")
}

func (in *Ingester) count(outcome string) {
	if in.deps.Metrics == nil {
		return
	}
	in.deps.Metrics.Counter(metrics.WithLabels("wessley_ingest_documents_total", "outcome", outcome), "Ingested evidence documents by outcome.").Inc()
}
