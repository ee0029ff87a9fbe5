package synth

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// ValidationError lists every hard rule a generated report broke.
// It matches domain.ErrValidation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("synth: %s: %s", domain.ErrValidation, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

// Validate converts a provisional report into a DiagnosticReport.
// Citations not in known are stripped and returned separately; every
// other rule violation rejects the report.
func Validate(r *rawReport, known map[string]bool) (*domain.DiagnosticReport, []string, error) {
	var problems []string
	bad := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	primary := strings.TrimSpace(r.PrimaryDiagnosis)
	if primary == "" {
		bad("primary_diagnosis is empty")
	}

	sev := domain.ParseSeverity(r.Severity)
	if !sev.Valid() {
		bad("severity %q is not one of low, medium, high, critical", r.Severity)
	}

	var confidence float64
	switch {
	case r.Confidence == nil:
		bad("confidence is missing")
	case math.IsNaN(float64(*r.Confidence)) || *r.Confidence < 0 || *r.Confidence > 1:
		bad("confidence %v is outside [0,1]", float64(*r.Confidence))
	default:
		confidence = float64(*r.Confidence)
	}

	steps, msg := validateSteps(r.RepairSteps)
	if msg != "" {
		bad("%s", msg)
	}

	checkRange := func(name string, rr rawRange) domain.PriceRange {
		p := domain.PriceRange{Min: float64(rr.Min), Max: float64(rr.Max)}
		if !p.Valid() {
			bad("%s range [%v, %v] must satisfy 0 <= min <= max", name, p.Min, p.Max)
		}
		return p
	}
	cost := domain.CostEstimate{
		PartsRange:  checkRange("parts", r.EstimatedCost.PartsRange),
		LaborRange:  checkRange("labor", r.EstimatedCost.LaborRange),
		TotalRange:  checkRange("total", r.EstimatedCost.TotalRange),
		DIYPossible: bool(r.EstimatedCost.DIYPossible),
	}
	parts := make([]domain.Part, 0, len(r.PartsNeeded))
	for _, p := range r.PartsNeeded {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		parts = append(parts, domain.Part{Name: name, EstimatedPriceRange: checkRange("part "+name, p.EstimatedPriceRange)})
	}

	if len(problems) > 0 {
		return nil, nil, &ValidationError{Problems: problems}
	}

	cited, stripped := filterCitations(r.CitedEvidenceIDs, known)
	safe := !sev.Unsafe()
	if r.SafeToDrive != nil {
		safe = bool(*r.SafeToDrive)
	}

	return &domain.DiagnosticReport{
		PrimaryDiagnosis: primary,
		Differential:     nonEmpty(r.Differential),
		Confidence:       confidence,
		Severity:         sev,
		SafeToDrive:      safe,
		RepairSteps:      steps,
		PartsNeeded:      parts,
		EstimatedCost:    cost,
		SafetyWarnings:   nonEmpty(r.SafetyWarnings),
		CitedEvidenceIDs: cited,
	}, stripped, nil
}

// validateSteps orders steps by number and requires 1..n. Steps that
// carry no numbers at all are numbered by position.
func validateSteps(raw []rawStep) ([]domain.RepairStep, string) {
	steps := make([]domain.RepairStep, len(raw))
	allZero := true
	for i, s := range raw {
		n := float64(s.StepNumber)
		if n != math.Trunc(n) {
			return nil, fmt.Sprintf("step number %v is not an integer", n)
		}
		if n != 0 {
			allZero = false
		}
		steps[i] = domain.RepairStep{
			StepNumber:        int(n),
			Title:             strings.TrimSpace(s.Title),
			Description:       strings.TrimSpace(s.Description),
			EstimatedDuration: strings.TrimSpace(s.EstimatedDuration),
		}
	}
	if allZero {
		for i := range steps {
			steps[i].StepNumber = i + 1
		}
		return steps, ""
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
	for i, s := range steps {
		if s.StepNumber != i+1 {
			return nil, fmt.Sprintf("repair steps are not contiguous from 1 (position %d has %d)", i+1, s.StepNumber)
		}
	}
	return steps, ""
}

func filterCitations(ids []string, known map[string]bool) (kept, stripped []string) {
	kept = []string{}
	seen := map[string]bool{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if known[id] {
			kept = append(kept, id)
		} else {
			stripped = append(stripped, id)
		}
	}
	return kept, stripped
}

func nonEmpty(in []string) []string {
	out := []string{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
