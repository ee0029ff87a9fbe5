package synth

import (
	"strings"
	"unicode"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// InsufficientInformation is the fallback primary diagnosis without evidence.
const InsufficientInformation = "Insufficient information to determine the cause. Have the vehicle inspected by a qualified technician."

// Fallback confidences.
const (
	FallbackConfidenceWithEvidence = 0.3
	FallbackConfidenceNoEvidence   = 0.1
)

const maxFallbackSteps = 3

// Fallback builds a report deterministically from the top evidence match.
// evidence must already be ranked.
func Fallback(q domain.DiagnosticQuery, evidence []domain.EvidenceMatch) domain.DiagnosticReport {
	r := domain.DiagnosticReport{
		PrimaryDiagnosis: InsufficientInformation,
		Differential:     []string{},
		Confidence:       FallbackConfidenceNoEvidence,
		Severity:         domain.SeverityMedium,
		PartsNeeded:      []domain.Part{},
		SafetyWarnings:   []string{},
		CitedEvidenceIDs: []string{},
		UsedFallback:     true,
	}

	remedy := ""
	if len(evidence) > 0 {
		top := evidence[0].Document
		if d := strings.TrimSpace(top.DiagnosisText); d != "" {
			r.PrimaryDiagnosis = d
		}
		if top.Severity.Valid() {
			r.Severity = top.Severity
		}
		r.Confidence = FallbackConfidenceWithEvidence
		r.CitedEvidenceIDs = []string{top.ID}
		remedy = top.RemedyText
	}

	r.SafeToDrive = !r.Severity.Unsafe()
	if !r.SafeToDrive {
		r.SafetyWarnings = append(r.SafetyWarnings,
			"This issue may affect vehicle safety. Avoid driving until it has been inspected.")
	}
	r.RepairSteps = RemedySteps(remedy)
	return r
}

// RemedySteps splits remedy text into at most three numbered steps.
// Sentences beyond the third are merged into the last step. Empty text
// yields a single inspection step.
func RemedySteps(remedy string) []domain.RepairStep {
	sentences := splitSentences(remedy)
	if len(sentences) == 0 {
		return []domain.RepairStep{{
			StepNumber:  1,
			Title:       "Professional inspection",
			Description: "Have a qualified technician inspect the vehicle to confirm the cause before repairing.",
		}}
	}
	if len(sentences) > maxFallbackSteps {
		tail := strings.Join(sentences[maxFallbackSteps-1:], " ")
		sentences = append(sentences[:maxFallbackSteps-1], tail)
	}
	steps := make([]domain.RepairStep, len(sentences))
	for i, s := range sentences {
		steps[i] = domain.RepairStep{StepNumber: i + 1, Title: stepTitle(s), Description: s}
	}
	return steps
}

// splitSentences splits on '.', '!', '?' and newlines followed by space or
// end of text, keeping the terminator.
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}
	flush()
	return out
}

// stepTitle is the sentence without its terminator, cut to a few words.
func stepTitle(s string) string {
	s = strings.TrimRight(s, ".!? ")
	words := strings.Fields(s)
	if len(words) > 6 {
		return strings.Join(words[:6], " ") + "…"
	}
	return strings.Join(words, " ")
}
