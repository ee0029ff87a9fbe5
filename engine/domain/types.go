// Package domain defines core domain types, constants, and validation for the
// Wessley diagnosis engine. It acts as the validation gate at engine entry points.
package domain

import (
	"fmt"
	"math"
	"strings"
)

// Vehicle identifies the vehicle a diagnostic query is about.
type Vehicle struct {
	Year    int    `json:"year"`
	Make    string `json:"make"`
	Model   string `json:"model"`
	VIN     string `json:"vin,omitempty"`
	Mileage *int   `json:"mileage,omitempty"`
}

// String renders the vehicle as "2015 Honda Civic", skipping empty parts.
func (v Vehicle) String() string {
	parts := make([]string, 0, 3)
	if v.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", v.Year))
	}
	if m := strings.TrimSpace(v.Make); m != "" {
		parts = append(parts, m)
	}
	if m := strings.TrimSpace(v.Model); m != "" {
		parts = append(parts, m)
	}
	return strings.Join(parts, " ")
}

// IsZero reports whether no identifying vehicle field is set.
func (v Vehicle) IsZero() bool {
	return v.Year == 0 && strings.TrimSpace(v.Make) == "" && strings.TrimSpace(v.Model) == ""
}

// AudioSignal is the structured summary produced by the audio extractor.
// The engine never sees raw audio.
type AudioSignal struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// DiagnosticQuery is constructed per request.
type DiagnosticQuery struct {
	Vehicle     Vehicle      `json:"vehicle"`
	SymptomText string       `json:"symptom_text"`
	AudioSignal *AudioSignal `json:"audio_signal,omitempty"`
	PhotoCount  *int         `json:"photo_count,omitempty"`
}

// Summary is a short, log-safe description of the query.
func (q DiagnosticQuery) Summary() string {
	s := strings.TrimSpace(q.SymptomText)
	if r := []rune(s); len(r) > 60 {
		s = string(r[:60]) + "…"
	}
	if v := q.Vehicle.String(); v != "" {
		return v + ": " + s
	}
	return s
}

// Severity grades how urgent a diagnosis is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ValidSeverities is the set of recognised severities.
var ValidSeverities = map[Severity]bool{
	SeverityLow: true, SeverityMedium: true, SeverityHigh: true, SeverityCritical: true,
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool { return ValidSeverities[s] }

// Unsafe reports whether a vehicle with this severity should not be driven.
func (s Severity) Unsafe() bool { return s == SeverityHigh || s == SeverityCritical }

// ParseSeverity normalises case and whitespace. Unknown values are returned
// as-is so callers can reject them.
func ParseSeverity(s string) Severity {
	return Severity(strings.ToLower(strings.TrimSpace(s)))
}

// VehicleScope is the inclusive vehicle range a bulletin applies to.
// A zero year bound is open-ended.
type VehicleScope struct {
	Make    string `json:"make"`
	Model   string `json:"model"`
	YearMin int    `json:"year_min"`
	YearMax int    `json:"year_max"`
}

// Contains reports whether the scope covers the vehicle's make and year.
// Makes are compared after alias canonicalisation; model is informational.
// An unknown vehicle make or year is not held against the scope.
func (s VehicleScope) Contains(v Vehicle) bool {
	if s.Make != "" && strings.TrimSpace(v.Make) != "" && !strings.EqualFold(CanonicalMake(s.Make), CanonicalMake(v.Make)) {
		return false
	}
	if v.Year == 0 {
		return true
	}
	if s.YearMin > 0 && v.Year < s.YearMin {
		return false
	}
	if s.YearMax > 0 && v.Year > s.YearMax {
		return false
	}
	return true
}

// EvidenceDocument is an immutable, pre-embedded service bulletin.
type EvidenceDocument struct {
	ID            string       `json:"id"`
	VehicleScope  VehicleScope `json:"vehicle_scope"`
	Component     string       `json:"component"`
	SymptomText   string       `json:"symptom_text"`
	DiagnosisText string       `json:"diagnosis_text"`
	RemedyText    string       `json:"remedy_text"`
	Severity      Severity     `json:"severity"`
	Embedding     []float32    `json:"embedding,omitempty"`
}

// EmbeddingText is the text embedded at ingestion time.
func (d EvidenceDocument) EmbeddingText() string {
	parts := []string{d.Component, d.SymptomText, d.DiagnosisText, d.RemedyText}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

// EvidenceMatch is one retrieval hit.
type EvidenceMatch struct {
	Document EvidenceDocument `json:"document"`
	Score    float32          `json:"score"`
}

// PriceRange is a min/max estimate in the caller's currency.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Valid reports whether both bounds are finite and 0 <= Min <= Max.
func (p PriceRange) Valid() bool {
	if math.IsInf(p.Max, 0) || math.IsNaN(p.Min) || math.IsNaN(p.Max) {
		return false
	}
	return p.Min >= 0 && p.Min <= p.Max
}

// RepairStep is one ordered repair instruction. StepNumber is 1-based.
type RepairStep struct {
	StepNumber        int    `json:"step_number"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	EstimatedDuration string `json:"estimated_duration,omitempty"`
}

// Part is a part likely needed for the repair.
type Part struct {
	Name                string     `json:"name"`
	EstimatedPriceRange PriceRange `json:"estimated_price_range"`
}

// CostEstimate breaks the repair cost down.
type CostEstimate struct {
	PartsRange  PriceRange `json:"parts_range"`
	LaborRange  PriceRange `json:"labor_range"`
	TotalRange  PriceRange `json:"total_range"`
	DIYPossible bool       `json:"diy_possible"`
}

// DiagnosticReport is the engine's output. It is never persisted by the engine.
type DiagnosticReport struct {
	PrimaryDiagnosis string       `json:"primary_diagnosis"`
	Differential     []string     `json:"differential"`
	Confidence       float64      `json:"confidence"`
	Severity         Severity     `json:"severity"`
	SafeToDrive      bool         `json:"safe_to_drive"`
	RepairSteps      []RepairStep `json:"repair_steps"`
	PartsNeeded      []Part       `json:"parts_needed"`
	EstimatedCost    CostEstimate `json:"estimated_cost"`
	SafetyWarnings   []string     `json:"safety_warnings"`
	CitedEvidenceIDs []string     `json:"cited_evidence_ids"`
	UsedFallback     bool         `json:"used_fallback"`
}
