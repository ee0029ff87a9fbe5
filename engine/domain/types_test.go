package domain

import (
	"math"
	"testing"
)

func TestVehicleScope_Contains(t *testing.T) {
	scope := VehicleScope{Make: "Honda", Model: "Civic", YearMin: 2014, YearMax: 2016}

	cases := []struct {
		name string
		v    Vehicle
		want bool
	}{
		{"inside", Vehicle{Make: "Honda", Year: 2015}, true},
		{"lower bound", Vehicle{Make: "Honda", Year: 2014}, true},
		{"upper bound", Vehicle{Make: "Honda", Year: 2016}, true},
		{"case insensitive", Vehicle{Make: "honda", Year: 2015}, true},
		{"too old", Vehicle{Make: "Honda", Year: 2013}, false},
		{"too new", Vehicle{Make: "Honda", Year: 2017}, false},
		{"other make", Vehicle{Make: "Toyota", Year: 2015}, false},
		{"unknown year", Vehicle{Make: "Honda"}, true},
		{"unknown make", Vehicle{Year: 2015}, true},
		{"blank make", Vehicle{Make: "  ", Year: 2015}, true},
		{"unknown make out of range", Vehicle{Year: 2020}, false},
	}
	for _, tc := range cases {
		if got := scope.Contains(tc.v); got != tc.want {
			t.Errorf("%s: Contains(%+v) = %v, want %v", tc.name, tc.v, got, tc.want)
		}
	}
}

func TestVehicleScope_SingleYear(t *testing.T) {
	scope := VehicleScope{Make: "Ford", YearMin: 2019, YearMax: 2019}
	if !scope.Contains(Vehicle{Make: "Ford", Year: 2019}) {
		t.Error("single-year scope should contain its year")
	}
	if scope.Contains(Vehicle{Make: "Ford", Year: 2020}) {
		t.Error("single-year scope should not contain next year")
	}
}

func TestVehicleScope_AliasMake(t *testing.T) {
	scope := VehicleScope{Make: "Chevrolet", YearMin: 2010, YearMax: 2015}
	if !scope.Contains(Vehicle{Make: "chevy", Year: 2012}) {
		t.Error("alias make should match canonical scope")
	}
}

func TestVehicle_String(t *testing.T) {
	v := Vehicle{Year: 2015, Make: "Honda", Model: "Civic"}
	if got := v.String(); got != "2015 Honda Civic" {
		t.Fatalf("got %q", got)
	}
	if got := (Vehicle{Make: "Honda"}).String(); got != "Honda" {
		t.Fatalf("got %q", got)
	}
	if !(Vehicle{}).IsZero() {
		t.Fatal("empty vehicle should be zero")
	}
}

func TestSeverity(t *testing.T) {
	if ParseSeverity(" HIGH ") != SeverityHigh {
		t.Fatal("ParseSeverity should normalise")
	}
	if Severity("urgent").Valid() {
		t.Fatal("unknown severity should be invalid")
	}
	if !SeverityCritical.Unsafe() || !SeverityHigh.Unsafe() || SeverityMedium.Unsafe() || SeverityLow.Unsafe() {
		t.Fatal("Unsafe mismatch")
	}
}

func TestEvidenceDocument_EmbeddingText(t *testing.T) {
	d := EvidenceDocument{Component: "Brakes", SymptomText: "grinding", DiagnosisText: "worn pads", RemedyText: " "}
	if got := d.EmbeddingText(); got != "Brakes\ngrinding\nworn pads" {
		t.Fatalf("got %q", got)
	}
}

func TestPriceRange_Valid(t *testing.T) {
	if !(PriceRange{Min: 0, Max: 0}).Valid() || !(PriceRange{Min: 10, Max: 20}).Valid() {
		t.Fatal("expected valid")
	}
	if (PriceRange{Min: 30, Max: 20}).Valid() || (PriceRange{Min: -1, Max: 20}).Valid() {
		t.Fatal("expected invalid")
	}
	for _, p := range []PriceRange{
		{Min: 0, Max: math.Inf(1)},
		{Min: math.Inf(1), Max: math.Inf(1)},
		{Min: math.NaN(), Max: 10},
		{Min: 0, Max: math.NaN()},
	} {
		if p.Valid() {
			t.Errorf("%+v: non-finite bounds should be invalid", p)
		}
	}
}

func TestDiagnosticQuery_Summary(t *testing.T) {
	q := DiagnosticQuery{Vehicle: Vehicle{Year: 2015, Make: "Honda", Model: "Civic"}, SymptomText: "grinding noise"}
	if got := q.Summary(); got != "2015 Honda Civic: grinding noise" {
		t.Fatalf("got %q", got)
	}
}
