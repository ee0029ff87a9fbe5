package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/WessleyAI/wessley-diagnose/pkg/vehiclenlp"
)

// VIN format: 17 alphanumeric characters, excluding I, O, Q.
var vinRegex = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// MinModelYear is the earliest year we accept.
const MinModelYear = 1980

// MaxModelYear is the latest year we accept (current + 1 for next-year models).
const MaxModelYear = 2028

// CanonicalMake maps aliases such as "chevy" or "vw" to the canonical make.
// Unknown makes are returned trimmed.
func CanonicalMake(name string) string {
	return vehiclenlp.CanonicalMake(name)
}

// ValidateQuery enforces the only hard invariant of a query: a non-empty
// symptom description.
func ValidateQuery(q DiagnosticQuery) error {
	if strings.TrimSpace(q.SymptomText) == "" {
		return &InvalidQueryError{Cause: NewValidationError("symptom_text", q.SymptomText, ErrEmptySymptom)}
	}
	return nil
}

// ValidateVehicle checks optional vehicle fields when they are present.
// Every invalid field is reported; the result is nil or a joined error of
// *ValidationError values.
func ValidateVehicle(v Vehicle) error {
	var errs []error
	if v.Year != 0 && (v.Year < MinModelYear || v.Year > MaxModelYear) {
		errs = append(errs, NewValidationError("year", fmt.Sprintf("%d", v.Year), ErrYearOutOfRange))
	}
	if v.VIN != "" && !vinRegex.MatchString(strings.ToUpper(v.VIN)) {
		errs = append(errs, NewValidationError("vin", v.VIN, ErrInvalidVIN))
	}
	return errors.Join(errs...)
}

// NormalizeQuery returns a copy with trimmed text, a canonical make and a
// clamped audio signal. An audio signal with an empty label is dropped.
func NormalizeQuery(q DiagnosticQuery) DiagnosticQuery {
	out := q
	out.SymptomText = strings.TrimSpace(q.SymptomText)
	out.Vehicle.Make = CanonicalMake(q.Vehicle.Make)
	out.Vehicle.Model = strings.TrimSpace(q.Vehicle.Model)
	out.Vehicle.VIN = strings.ToUpper(strings.TrimSpace(q.Vehicle.VIN))
	if q.AudioSignal != nil {
		label := strings.TrimSpace(q.AudioSignal.Label)
		if label == "" {
			out.AudioSignal = nil
		} else {
			out.AudioSignal = &AudioSignal{Label: label, Confidence: clamp01(q.AudioSignal.Confidence)}
		}
	}
	return out
}

// ValidateDocument checks an evidence document before ingestion.
func ValidateDocument(d EvidenceDocument) error {
	if strings.TrimSpace(d.ID) == "" {
		return NewValidationError("id", d.ID, ErrInvalidDoc)
	}
	if strings.TrimSpace(d.DiagnosisText) == "" {
		return NewValidationError("diagnosis_text", d.ID, ErrInvalidDoc)
	}
	if !d.Severity.Valid() {
		return NewValidationError("severity", string(d.Severity), ErrInvalidDoc)
	}
	s := d.VehicleScope
	if s.YearMin < 0 || s.YearMax < 0 || (s.YearMin > 0 && s.YearMax > 0 && s.YearMin > s.YearMax) {
		return NewValidationError("vehicle_scope", fmt.Sprintf("%d-%d", s.YearMin, s.YearMax), ErrInvalidScope)
	}
	return nil
}

func clamp01(f float64) float64 {
	switch {
	case f != f: // NaN
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
