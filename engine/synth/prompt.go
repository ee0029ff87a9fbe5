package synth

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// SystemPrompt instructs the model to answer with a single JSON object.
const SystemPrompt = `You are an automotive diagnostic assistant. Using the vehicle, the owner's symptom description and the service bulletins provided, produce a diagnosis.
Respond with exactly one JSON object matching the schema below and nothing else.
Only cite bulletin ids that appear in the evidence list. If the evidence does not support a diagnosis, say so and lower your confidence.`

// reportSchema documents the expected JSON shape for the model.
const reportSchema = `{
  "primary_diagnosis": string,
  "differential": [string],
  "confidence": number between 0 and 1,
  "severity": "low" | "medium" | "high" | "critical",
  "safe_to_drive": boolean,
  "repair_steps": [{"step_number": 1, "title": string, "description": string, "estimated_duration": string}],
  "parts_needed": [{"name": string, "estimated_price_range": {"min": number, "max": number}}],
  "estimated_cost": {
    "parts_range": {"min": number, "max": number},
    "labor_range": {"min": number, "max": number},
    "total_range": {"min": number, "max": number},
    "diy_possible": boolean
  },
  "safety_warnings": [string],
  "cited_evidence_ids": [string]
}`

// BuildPrompt renders the user prompt for a query and its evidence.
// related lists components from the knowledge graph and may be empty.
func BuildPrompt(q domain.DiagnosticQuery, evidence []domain.EvidenceMatch, related []string) string {
	var b strings.Builder

	b.WriteString("## Vehicle\n")
	if v := q.Vehicle.String(); v != "" {
		b.WriteString(v)
	} else {
		b.WriteString("Unknown vehicle")
	}
	if q.Vehicle.Mileage != nil {
		fmt.Fprintf(&b, ", %d miles", *q.Vehicle.Mileage)
	}
	b.WriteString("\n\n## Symptom\n")
	b.WriteString(q.SymptomText)
	b.WriteString("\n")

	if a := q.AudioSignal; a != nil {
		fmt.Fprintf(&b, "\n## Audio classification\n%s (confidence %.2f)\n", a.Label, a.Confidence)
	}
	if q.PhotoCount != nil && *q.PhotoCount > 0 {
		fmt.Fprintf(&b, "\nThe owner attached %d photo(s).\n", *q.PhotoCount)
	}

	b.WriteString("\n## Evidence\n")
	if len(evidence) == 0 {
		b.WriteString("No matching service bulletins were found.\n")
	}
	for i, m := range evidence {
		d := m.Document
		fmt.Fprintf(&b, "[%d] id=%s similarity=%.2f severity=%s\n", i+1, d.ID, m.Score, d.Severity)
		if d.Component != "" {
			fmt.Fprintf(&b, "Component: %s\n", d.Component)
		}
		fmt.Fprintf(&b, "Diagnosis: %s\n", d.DiagnosisText)
		if d.RemedyText != "" {
			fmt.Fprintf(&b, "Remedy: %s\n", d.RemedyText)
		}
		b.WriteString("\n")
	}

	if len(related) > 0 {
		b.WriteString("## Related components\n")
		for _, r := range related {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Response schema\n")
	b.WriteString(reportSchema)
	b.WriteString("\n")
	return b.String()
}
