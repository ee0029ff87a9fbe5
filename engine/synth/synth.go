// Package synth turns a query and its evidence into a validated
// diagnostic report, falling back to a deterministic report whenever the
// generative model cannot be trusted.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/pkg/fn"
	"github.com/WessleyAI/wessley-diagnose/pkg/resilience"
)

// Fallback reasons reported in Result.Reason.
const (
	ReasonNone          = ""
	ReasonNoEvidence    = "no_evidence"
	ReasonTimeout       = "timeout"
	ReasonGeneration    = "generation_error"
	ReasonCircuitOpen   = "circuit_open"
	ReasonInvalidOutput = "invalid_output"
)

// Defaults.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxTokens  = 1500
	DefaultGraphLimit = 5
)

// Options configures a Synthesizer.
type Options struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	// Breaker guards the generator. nil disables it.
	Breaker *resilience.Breaker
	// Graph adds related components to the prompt. nil disables it.
	Graph GraphEnricher
}

// Result is a report plus why the fallback was used, if it was.
type Result struct {
	Report domain.DiagnosticReport
	// Reason is empty when the generated report was accepted.
	Reason string
	// Cause is the absorbed error behind a fallback.
	Cause error
	// StrippedCitations are ids the model cited that were not in evidence.
	StrippedCitations []string
}

// Synthesizer calls the generator and validates its answer.
type Synthesizer struct {
	gen  Generator
	opts Options
	log  *slog.Logger
}

// New creates a Synthesizer.
func New(gen Generator, opts Options, log *slog.Logger) *Synthesizer {
	if log == nil {
		log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Synthesizer{gen: gen, opts: opts, log: log}
}

// Synthesize never fails except on caller cancellation, which returns an
// error matching domain.ErrCancelled.
func (s *Synthesizer) Synthesize(ctx context.Context, q domain.DiagnosticQuery, evidence []domain.EvidenceMatch) (Result, error) {
	if len(evidence) == 0 {
		return s.fallback(q, evidence, ReasonNoEvidence, nil), nil
	}

	req := GenerationRequest{
		System:      SystemPrompt,
		Prompt:      BuildPrompt(q, evidence, s.related(ctx, q.Vehicle, evidence)),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	}

	out, err := s.generate(ctx, req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return Result{}, fmt.Errorf("%w: %w", domain.ErrCancelled, cerr)
		}
		return s.fallback(q, evidence, classify(err), &domain.StageError{Stage: "generating", Kind: domain.ErrGeneration, Err: err}), nil
	}

	raw, err := parseReport(out)
	if err != nil {
		return s.fallback(q, evidence, ReasonInvalidOutput, &ValidationError{Problems: []string{err.Error()}}), nil
	}
	known := make(map[string]bool, len(evidence))
	for _, m := range evidence {
		known[m.Document.ID] = true
	}
	report, stripped, err := Validate(raw, known)
	if err != nil {
		return s.fallback(q, evidence, ReasonInvalidOutput, err), nil
	}
	if len(stripped) > 0 {
		s.log.Warn("stripped unknown citations", "ids", stripped, "query", q.Summary())
	}
	return Result{Report: *report, StrippedCitations: stripped}, nil
}

func (s *Synthesizer) generate(ctx context.Context, req GenerationRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	call := func(ctx context.Context) fn.Result[string] {
		return fn.FromPair(s.gen.Generate(ctx, req))
	}
	if s.opts.Breaker == nil {
		return call(ctx).Unwrap()
	}
	return resilience.CallResult(s.opts.Breaker, ctx, call).Unwrap()
}

// related asks the graph for components near the evidence. Failures are
// logged and skipped.
func (s *Synthesizer) related(ctx context.Context, v domain.Vehicle, evidence []domain.EvidenceMatch) []string {
	if s.opts.Graph == nil {
		return nil
	}
	components := fn.Unique(fn.Filter(
		fn.Map(evidence, func(m domain.EvidenceMatch) string { return m.Document.Component }),
		func(c string) bool { return c != "" },
	))
	if len(components) == 0 {
		return nil
	}
	lines, err := s.opts.Graph.GraphContext(ctx, v, components)
	if err != nil {
		s.log.Warn("graph enrichment failed", "err", err)
		return nil
	}
	if len(lines) > DefaultGraphLimit {
		lines = lines[:DefaultGraphLimit]
	}
	return lines
}

func (s *Synthesizer) fallback(q domain.DiagnosticQuery, evidence []domain.EvidenceMatch, reason string, cause error) Result {
	if cause != nil {
		s.log.Warn("using fallback report", "reason", reason, "err", cause, "query", q.Summary())
	}
	return Result{Report: Fallback(q, evidence), Reason: reason, Cause: cause}
}

func classify(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return ReasonCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonGeneration
	}
}
