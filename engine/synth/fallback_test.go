package synth

import (
	"testing"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_WithEvidence(t *testing.T) {
	ev := []domain.EvidenceMatch{
		{Document: domain.EvidenceDocument{ID: "tsb-1", DiagnosisText: "worn brake pads", Severity: domain.SeverityHigh,
			RemedyText: "Replace the front pads. Inspect rotors."}, Score: 0.8},
		{Document: domain.EvidenceDocument{ID: "tsb-2", DiagnosisText: "sticking caliper", Severity: domain.SeverityMedium}, Score: 0.4},
	}
	r := Fallback(domain.DiagnosticQuery{SymptomText: "grinding"}, ev)
	assert.Equal(t, "worn brake pads", r.PrimaryDiagnosis)
	assert.Equal(t, domain.SeverityHigh, r.Severity)
	assert.False(t, r.SafeToDrive)
	assert.True(t, r.UsedFallback)
	assert.Equal(t, FallbackConfidenceWithEvidence, r.Confidence)
	assert.Equal(t, []string{"tsb-1"}, r.CitedEvidenceIDs)
	assert.NotEmpty(t, r.SafetyWarnings)
	require.Len(t, r.RepairSteps, 2)
	assert.Equal(t, "Replace the front pads.", r.RepairSteps[0].Description)
	assert.Equal(t, "Replace the front pads", r.RepairSteps[0].Title)
	assert.False(t, r.EstimatedCost.DIYPossible)
}

func TestFallback_NoEvidence(t *testing.T) {
	r := Fallback(domain.DiagnosticQuery{SymptomText: "strange smell"}, nil)
	assert.Equal(t, InsufficientInformation, r.PrimaryDiagnosis)
	assert.Equal(t, domain.SeverityMedium, r.Severity)
	assert.True(t, r.SafeToDrive)
	assert.LessOrEqual(t, r.Confidence, 0.1)
	assert.Empty(t, r.CitedEvidenceIDs)
	assert.Empty(t, r.SafetyWarnings)
	require.Len(t, r.RepairSteps, 1)
	assert.Equal(t, 1, r.RepairSteps[0].StepNumber)
}

func TestFallback_InvalidEvidenceSeverity(t *testing.T) {
	ev := []domain.EvidenceMatch{{Document: domain.EvidenceDocument{ID: "x", DiagnosisText: "d", Severity: "??"}}}
	r := Fallback(domain.DiagnosticQuery{}, ev)
	assert.Equal(t, domain.SeverityMedium, r.Severity)
	assert.True(t, r.SafeToDrive)
}

func TestRemedySteps(t *testing.T) {
	steps := RemedySteps("Lift the car. Remove the wheel. Replace pads. Torque lug nuts to spec. Test drive!")
	require.Len(t, steps, 3)
	for i, s := range steps {
		assert.Equal(t, i+1, s.StepNumber)
	}
	assert.Equal(t, "Replace pads. Torque lug nuts to spec. Test drive!", steps[2].Description)

	steps = RemedySteps("Update the PCM software to version 1.2.3\nThen clear codes")
	require.Len(t, steps, 2)
	assert.Equal(t, "Update the PCM software to version 1.2.3", steps[0].Description)

	long := RemedySteps("Remove and replace the complete front lower control arm assembly on both sides")
	assert.Equal(t, "Remove and replace the complete front…", long[0].Title)
}
