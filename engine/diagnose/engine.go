// Package diagnose is the public entry point of the diagnosis engine. It
// validates a query, retrieves evidence, synthesizes a report and records
// how each stage went.
package diagnose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/synth"
	"github.com/WessleyAI/wessley-diagnose/pkg/fn"
	"github.com/WessleyAI/wessley-diagnose/pkg/metrics"
	"github.com/WessleyAI/wessley-diagnose/pkg/vehiclenlp"
	"go.opentelemetry.io/otel/attribute"
)

// Stage names a step of the per-request state machine.
type Stage string

const (
	StageValidating   Stage = "validating"
	StageRetrieving   Stage = "retrieving"
	StageSynthesizing Stage = "synthesizing"
	StageDone         Stage = "done"
)

// StageOutcome records one stage. Degraded stages fed the next stage a
// fallback input instead of aborting.
type StageOutcome struct {
	Stage    Stage         `json:"stage"`
	Degraded bool          `json:"degraded"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Provenance explains how a report was produced.
type Provenance struct {
	RetrievedIDs    []string       `json:"retrieved_ids"`
	Scores          []float32      `json:"scores"`
	Stages          []StageOutcome `json:"stages"`
	Degraded        bool           `json:"degraded"`
	FallbackReason  string         `json:"fallback_reason,omitempty"`
	InferredVehicle bool           `json:"inferred_vehicle,omitempty"`
}

// Result is the report plus its provenance.
type Result struct {
	Report     domain.DiagnosticReport `json:"report"`
	Provenance Provenance              `json:"provenance"`
}

// Retriever finds evidence for a query.
type Retriever interface {
	Retrieve(ctx context.Context, q domain.DiagnosticQuery) ([]domain.EvidenceMatch, error)
}

// Synthesizer turns evidence into a report.
type Synthesizer interface {
	Synthesize(ctx context.Context, q domain.DiagnosticQuery, evidence []domain.EvidenceMatch) (synth.Result, error)
}

// Options configures an Engine.
type Options struct {
	// InferVehicle fills a missing make/model/year from the symptom text.
	InferVehicle bool
	// Metrics receives engine counters. nil disables them.
	Metrics *metrics.Registry
}

// Engine sequences retrieval and synthesis. It holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	retriever Retriever
	synth     Synthesizer
	opts      Options
	metrics   *engineMetrics
	log       *slog.Logger
	pipeline  fn.Stage[*run, *run]
}

// New creates an Engine.
func New(r Retriever, s Synthesizer, opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		retriever: r,
		synth:     s,
		opts:      opts,
		metrics:   newEngineMetrics(opts.Metrics),
		log:       log,
	}
	e.pipeline = fn.Then(fn.Then(
		fn.TracedStage("diagnose.validate", fn.Stage[*run, *run](e.validate)),
		fn.TracedStage("diagnose.retrieve", fn.Stage[*run, *run](e.retrieve))),
		fn.TracedStage("diagnose.synthesize", fn.Stage[*run, *run](e.synthesize), attribute.String("component", "synth")),
	)
	return e
}

// run is the state threaded through the pipeline for one request.
type run struct {
	query    domain.DiagnosticQuery
	evidence []domain.EvidenceMatch
	report   domain.DiagnosticReport
	prov     Provenance
}

// Diagnose returns a report, or an error matching domain.ErrInvalidQuery
// or domain.ErrCancelled. No other error escapes.
func (e *Engine) Diagnose(ctx context.Context, q domain.DiagnosticQuery) (*domain.DiagnosticReport, error) {
	res, err := e.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	return &res.Report, nil
}

// Run is Diagnose with provenance.
func (e *Engine) Run(ctx context.Context, q domain.DiagnosticQuery) (*Result, error) {
	start := time.Now()
	defer e.metrics.track()()
	st, err := e.pipeline(ctx, &run{query: q}).Unwrap()
	if err != nil {
		e.metrics.outcome(outcomeOf(err))
		return nil, err
	}
	st.prov.Stages = append(st.prov.Stages, StageOutcome{Stage: StageDone})
	if st.report.UsedFallback {
		e.metrics.outcome("fallback")
	} else {
		e.metrics.outcome("ok")
	}
	e.log.Info("diagnosis complete",
		"query", st.query.Summary(),
		"evidence", len(st.evidence),
		"fallback", st.report.UsedFallback,
		"degraded", st.prov.Degraded,
		"duration", time.Since(start),
	)
	return &Result{Report: st.report, Provenance: st.prov}, nil
}

func (e *Engine) validate(_ context.Context, st *run) fn.Result[*run] {
	start := time.Now()
	if err := domain.ValidateQuery(st.query); err != nil {
		return fn.Err[*run](err)
	}
	q := domain.NormalizeQuery(st.query)

	if err := domain.ValidateVehicle(q.Vehicle); err != nil {
		if errors.Is(err, domain.ErrYearOutOfRange) {
			q.Vehicle.Year = 0
		}
		if errors.Is(err, domain.ErrInvalidVIN) {
			q.Vehicle.VIN = ""
		}
		e.log.Warn("ignoring invalid vehicle field", "err", err, "query", q.Summary())
	}

	if e.opts.InferVehicle && strings.TrimSpace(q.Vehicle.Make) == "" {
		if m := vehiclenlp.ExtractBest(q.SymptomText); m != nil {
			q.Vehicle.Make = m.Make
			if q.Vehicle.Model == "" {
				q.Vehicle.Model = m.Model
			}
			if q.Vehicle.Year == 0 && m.Year >= domain.MinModelYear && m.Year <= domain.MaxModelYear {
				q.Vehicle.Year = m.Year
			}
			st.prov.InferredVehicle = true
			e.log.Debug("inferred vehicle from symptom", "vehicle", q.Vehicle.String(), "confidence", m.Confidence)
		}
	}

	st.query = q
	e.record(st, StageOutcome{Stage: StageValidating, Duration: time.Since(start)})
	return fn.Ok(st)
}

func (e *Engine) retrieve(ctx context.Context, st *run) fn.Result[*run] {
	start := time.Now()
	out := StageOutcome{Stage: StageRetrieving}

	ev, err := e.retriever.Retrieve(ctx, st.query)
	if err != nil {
		if errors.Is(err, domain.ErrCancelled) || ctx.Err() != nil {
			return fn.Err[*run](cancelErr(ctx, err))
		}
		out.Degraded, out.Error = true, err.Error()
		out.Reason = "retrieval_error"
		if errors.Is(err, domain.ErrEmbedding) {
			out.Reason = "embedding_error"
		}
		e.log.Warn("retrieval degraded", "stage", StageRetrieving, "query", st.query.Summary(), "err", err)
		ev = nil
	}

	st.evidence = ev
	st.prov.RetrievedIDs = fn.Map(ev, func(m domain.EvidenceMatch) string { return m.Document.ID })
	st.prov.Scores = fn.Map(ev, func(m domain.EvidenceMatch) float32 { return m.Score })
	e.metrics.evidence(len(ev))
	out.Duration = time.Since(start)
	e.record(st, out)
	return fn.Ok(st)
}

func (e *Engine) synthesize(ctx context.Context, st *run) fn.Result[*run] {
	start := time.Now()
	res, err := e.synth.Synthesize(ctx, st.query, st.evidence)
	if err != nil {
		if errors.Is(err, domain.ErrCancelled) || ctx.Err() != nil {
			return fn.Err[*run](cancelErr(ctx, err))
		}
		// Synthesizers only fail on cancellation; anything else still gets a report.
		e.log.Error("synthesizer failed", "stage", StageSynthesizing, "query", st.query.Summary(), "err", err)
		res = synth.Result{Report: synth.Fallback(st.query, st.evidence), Reason: "synth_error", Cause: err}
	}

	out := StageOutcome{Stage: StageSynthesizing, Duration: time.Since(start)}
	if res.Report.UsedFallback {
		out.Degraded, out.Reason = true, res.Reason
		if res.Cause != nil {
			out.Error = res.Cause.Error()
		}
		st.prov.FallbackReason = res.Reason
		e.metrics.fallback(res.Reason)
	}
	st.report = res.Report
	e.record(st, out)
	return fn.Ok(st)
}

func (e *Engine) record(st *run, out StageOutcome) {
	st.prov.Stages = append(st.prov.Stages, out)
	st.prov.Degraded = st.prov.Degraded || out.Degraded
	e.metrics.stage(out.Stage, out.Duration)
}

func cancelErr(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrCancelled, context.Cause(ctx))
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return "invalid"
	case errors.Is(err, domain.ErrCancelled):
		return "cancelled"
	default:
		return "error"
	}
}
