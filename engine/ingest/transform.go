package ingest

import (
	"strings"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// MaxEmbedWords caps the text sent to the embedding service. Bulletins are
// embedded whole, so very long remedies are clipped.
const MaxEmbedWords = 512

// normalize trims text fields, collapses whitespace, canonicalises the make
// and lower-cases the severity.
func normalize(doc domain.EvidenceDocument) domain.EvidenceDocument {
	out := doc
	out.ID = strings.TrimSpace(doc.ID)
	out.Component = collapse(doc.Component)
	out.SymptomText = collapse(doc.SymptomText)
	out.DiagnosisText = collapse(doc.DiagnosisText)
	out.RemedyText = strings.TrimSpace(doc.RemedyText)
	out.Severity = domain.ParseSeverity(string(doc.Severity))
	out.VehicleScope.Make = domain.CanonicalMake(doc.VehicleScope.Make)
	out.VehicleScope.Model = strings.TrimSpace(doc.VehicleScope.Model)
	// A single bound means a single model year.
	if out.VehicleScope.YearMin > 0 && out.VehicleScope.YearMax == 0 {
		out.VehicleScope.YearMax = out.VehicleScope.YearMin
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clipWords keeps at most n whitespace-separated words of s.
func clipWords(s string, n int) string {
	if n <= 0 || wordCount(s) <= n {
		return s
	}
	return strings.Join(strings.Fields(s)[:n], " ")
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
