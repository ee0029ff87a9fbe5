package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateVehicle_Valid(t *testing.T) {
	cases := []Vehicle{
		{Make: "Toyota", Model: "Camry", Year: 2020},
		{Make: "Tesla", Model: "Model 3", Year: 2024, VIN: "5YJ3E1EA1NF123456"},
		{Make: "Ford", Model: "F-150", Year: MinModelYear},
		{Make: "Lada", Model: "Niva"}, // unknown makes are fine, year optional
		{},
	}
	for _, v := range cases {
		if err := ValidateVehicle(v); err != nil {
			t.Errorf("expected valid for %+v, got %v", v, err)
		}
	}
}

func TestValidateVehicle_YearOutOfRange(t *testing.T) {
	for _, y := range []int{MinModelYear - 1, MaxModelYear + 1} {
		err := ValidateVehicle(Vehicle{Make: "Toyota", Model: "Camry", Year: y})
		if !errors.Is(err, ErrYearOutOfRange) {
			t.Errorf("year %d: expected ErrYearOutOfRange, got %v", y, err)
		}
	}
}

func TestValidateVehicle_InvalidVIN(t *testing.T) {
	cases := []string{
		"INVALID",
		"5YJ3E1EA1IF123456", // I
		"5YJ3E1EA1OF123456", // O
		"5YJ3E1EA1QF123456", // Q
	}
	for _, vin := range cases {
		err := ValidateVehicle(Vehicle{Make: "Toyota", Model: "Camry", Year: 2020, VIN: vin})
		if !errors.Is(err, ErrInvalidVIN) {
			t.Errorf("VIN %q should be invalid, got %v", vin, err)
		}
	}
}

func TestValidateVehicle_ReportsEveryField(t *testing.T) {
	err := ValidateVehicle(Vehicle{Make: "Honda", Year: 1899, VIN: "BAD"})
	if !errors.Is(err, ErrYearOutOfRange) || !errors.Is(err, ErrInvalidVIN) {
		t.Fatalf("expected both year and VIN errors, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "year" {
		t.Fatalf("expected first ValidationError on year, got %v", err)
	}
}

func TestValidateVehicle_LowercaseVIN(t *testing.T) {
	err := ValidateVehicle(Vehicle{Make: "Tesla", Model: "Model 3", Year: 2024, VIN: "5yj3e1ea1nf123456"})
	if err != nil {
		t.Errorf("lowercase VIN should be valid after uppercasing: %v", err)
	}
}

func TestValidateQuery_Valid(t *testing.T) {
	q := DiagnosticQuery{
		Vehicle:     Vehicle{Make: "Honda", Model: "Civic", Year: 2015},
		SymptomText: "grinding noise when braking",
	}
	if err := ValidateQuery(q); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateQuery_EmptySymptom(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		err := ValidateQuery(DiagnosticQuery{SymptomText: text})
		if !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("%q: expected ErrInvalidQuery, got %v", text, err)
		}
		if !errors.Is(err, ErrEmptySymptom) {
			t.Errorf("%q: expected ErrEmptySymptom, got %v", text, err)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "symptom_text" {
			t.Errorf("%q: expected ValidationError on symptom_text, got %v", text, err)
		}
	}
}

func TestNormalizeQuery(t *testing.T) {
	mileage := 120000
	q := NormalizeQuery(DiagnosticQuery{
		Vehicle:     Vehicle{Make: " chevy ", Model: " Malibu ", Year: 2012, VIN: " 1g1zc5e19cf123456", Mileage: &mileage},
		SymptomText: "  rough idle  ",
		AudioSignal: &AudioSignal{Label: " knock ", Confidence: 1.7},
	})
	if q.Vehicle.Make != "Chevrolet" {
		t.Errorf("make = %q, want Chevrolet", q.Vehicle.Make)
	}
	if q.Vehicle.Model != "Malibu" || q.Vehicle.VIN != "1G1ZC5E19CF123456" {
		t.Errorf("unexpected vehicle: %+v", q.Vehicle)
	}
	if q.SymptomText != "rough idle" {
		t.Errorf("symptom = %q", q.SymptomText)
	}
	if q.AudioSignal == nil || q.AudioSignal.Label != "knock" || q.AudioSignal.Confidence != 1 {
		t.Errorf("audio not clamped: %+v", q.AudioSignal)
	}
}

func TestNormalizeQuery_DropsEmptyAudioLabel(t *testing.T) {
	q := NormalizeQuery(DiagnosticQuery{SymptomText: "noise", AudioSignal: &AudioSignal{Label: "  ", Confidence: 0.9}})
	if q.AudioSignal != nil {
		t.Fatalf("expected audio signal dropped, got %+v", q.AudioSignal)
	}
}

func TestNormalizeQuery_NegativeConfidence(t *testing.T) {
	q := NormalizeQuery(DiagnosticQuery{SymptomText: "noise", AudioSignal: &AudioSignal{Label: "hiss", Confidence: -3}})
	if q.AudioSignal.Confidence != 0 {
		t.Fatalf("expected 0, got %v", q.AudioSignal.Confidence)
	}
}

func TestValidateDocument(t *testing.T) {
	good := EvidenceDocument{
		ID:            "tsb-1",
		VehicleScope:  VehicleScope{Make: "Honda", Model: "Civic", YearMin: 2014, YearMax: 2016},
		Component:     "Brakes",
		DiagnosisText: "worn brake pads",
		Severity:      SeverityHigh,
	}
	if err := ValidateDocument(good); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	noID := good
	noID.ID = " "
	if err := ValidateDocument(noID); !errors.Is(err, ErrInvalidDoc) {
		t.Errorf("expected ErrInvalidDoc for empty id, got %v", err)
	}

	badSev := good
	badSev.Severity = "urgent"
	if err := ValidateDocument(badSev); !errors.Is(err, ErrInvalidDoc) {
		t.Errorf("expected ErrInvalidDoc for severity, got %v", err)
	}

	badScope := good
	badScope.VehicleScope.YearMin = 2020
	if err := ValidateDocument(badScope); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope, got %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	ve := NewValidationError("vin", "BAD", ErrInvalidVIN)
	s := ve.Error()
	if !strings.Contains(s, "vin") || !strings.Contains(s, "BAD") || !strings.Contains(s, "invalid VIN") {
		t.Fatalf("unexpected error string: %s", s)
	}
}

func TestStageError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &StageError{Stage: "retrieving", Kind: ErrRetrieval, Err: cause}
	if !errors.Is(err, ErrRetrieval) || !errors.Is(err, cause) {
		t.Fatalf("StageError should match kind and cause: %v", err)
	}
	if !strings.Contains(err.Error(), "retrieving") {
		t.Fatalf("stage missing from message: %s", err)
	}
}
