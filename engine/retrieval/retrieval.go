// Package retrieval turns a diagnostic query into a ranked, deduplicated
// set of evidence bulletins.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/embed"
	"github.com/WessleyAI/wessley-diagnose/engine/evidence"
	"github.com/WessleyAI/wessley-diagnose/pkg/fn"
)

// Defaults.
const (
	DefaultK            = 5
	DefaultMinScore     = 0.15
	DefaultStoreTimeout = 3 * time.Second
)

// Options configures a Retriever.
type Options struct {
	K            int
	MinScore     float32
	StoreTimeout time.Duration
	// EmbedRetry governs retries of the embedding call. The zero value
	// makes a single attempt.
	EmbedRetry fn.RetryOpts
}

func (o *Options) applyDefaults() {
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinScore
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.EmbedRetry.Retryable == nil {
		o.EmbedRetry.Retryable = notCancelled
	}
}

// Error is a degradation: retrieval produced no evidence because a
// dependency failed. Kind is domain.ErrEmbedding or domain.ErrRetrieval.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("retrieval: %s: %v", e.Kind, e.Err) }

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// Retriever composes, embeds and searches.
type Retriever struct {
	embedder embed.Embedder
	store    evidence.Store
	opts     Options
	log      *slog.Logger
}

// New creates a Retriever.
func New(embedder embed.Embedder, store evidence.Store, opts Options, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	opts.applyDefaults()
	return &Retriever{embedder: embedder, store: store, opts: opts, log: log}
}

// K returns the configured result cap.
func (r *Retriever) K() int { return r.opts.K }

// Retrieve returns at most K matches. On a dependency failure it returns
// no evidence and an *Error; on caller cancellation it returns an error
// matching domain.ErrCancelled.
func (r *Retriever) Retrieve(ctx context.Context, q domain.DiagnosticQuery) ([]domain.EvidenceMatch, error) {
	text := ComposeQuery(q)

	vec, err := fn.Retry(ctx, r.opts.EmbedRetry, func(ctx context.Context) fn.Result[[]float32] {
		return fn.FromPair(r.embedder.Embed(ctx, text))
	}).Unwrap()
	if err != nil {
		if cerr := cancelled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, &Error{Kind: domain.ErrEmbedding, Err: err}
	}

	var filter *evidence.Filter
	if strings.TrimSpace(q.Vehicle.Make) != "" {
		filter = &evidence.Filter{Make: q.Vehicle.Make, Year: q.Vehicle.Year}
	}
	matches, err := r.query(ctx, vec, filter)
	if err == nil && len(matches) == 0 && filter != nil {
		r.log.Debug("filtered retrieval empty, retrying unfiltered", "make", filter.Make, "year", filter.Year)
		matches, err = r.query(ctx, vec, nil)
	}
	if err != nil {
		if cerr := cancelled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, &Error{Kind: domain.ErrRetrieval, Err: err}
	}
	return Rank(matches, r.opts.K, r.opts.MinScore), nil
}

// query over-fetches so deduplication can still fill K.
func (r *Retriever) query(ctx context.Context, vec []float32, f *evidence.Filter) ([]domain.EvidenceMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.StoreTimeout)
	defer cancel()
	return r.store.Query(ctx, vec, r.opts.K*2, f)
}

// Rank applies the relevance cutoff, deduplicates by document id keeping
// the best score, sorts by descending score and truncates to k. If the
// cutoff would drop everything, the single best match is kept.
func Rank(matches []domain.EvidenceMatch, k int, minScore float32) []domain.EvidenceMatch {
	if len(matches) == 0 {
		return nil
	}
	best := make(map[string]int, len(matches))
	deduped := make([]domain.EvidenceMatch, 0, len(matches))
	for _, m := range matches {
		if i, ok := best[m.Document.ID]; ok {
			if m.Score > deduped[i].Score {
				deduped[i] = m
			}
			continue
		}
		best[m.Document.ID] = len(deduped)
		deduped = append(deduped, m)
	}
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].Score > deduped[j].Score })

	kept := fn.Filter(deduped, func(m domain.EvidenceMatch) bool { return m.Score >= minScore })
	if len(kept) == 0 {
		kept = deduped[:1]
	}
	if k > 0 && len(kept) > k {
		kept = kept[:k]
	}
	return kept
}

// audioRepeatStep is the confidence increment above audioThreshold that
// earns the audio label one extra repetition.
const (
	audioThreshold  = 0.5
	audioRepeatStep = 0.2
)

// AudioRepeats returns how many times the audio label appears in the
// composed query: once, plus one per full 0.2 of confidence above 0.5.
func AudioRepeats(confidence float64) int {
	if confidence <= audioThreshold {
		return 1
	}
	return 1 + int(math.Floor((confidence-audioThreshold)/audioRepeatStep+1e-9))
}

// ComposeQuery builds the retrieval string: vehicle, symptom text, then
// the audio label weighted by confidence.
func ComposeQuery(q domain.DiagnosticQuery) string {
	parts := make([]string, 0, 4)
	if v := q.Vehicle.String(); v != "" {
		parts = append(parts, v)
	}
	if s := strings.TrimSpace(q.SymptomText); s != "" {
		parts = append(parts, s)
	}
	if a := q.AudioSignal; a != nil {
		if label := strings.TrimSpace(a.Label); label != "" {
			for range AudioRepeats(a.Confidence) {
				parts = append(parts, label)
			}
		}
	}
	return strings.Join(parts, " ")
}

func notCancelled(err error) bool {
	return !errors.Is(err, context.Canceled)
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}
	return nil
}
