package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

type call struct {
	cypher string
	params map[string]any
}

type fakeRunner struct {
	calls []call
	rows  []repo.Record
	err   error
}

func (f *fakeRunner) Run(_ context.Context, cypher string, params map[string]any) ([]repo.Record, error) {
	f.calls = append(f.calls, call{cypher, params})
	return f.rows, f.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		input, system, subsystem string
	}{
		{"Front brake pads", "Brakes", "Brake Pads"},
		{"Brake rotor", "Brakes", "Disc Brakes"},
		{"ABS module", "Brakes", "ABS"},
		{"Shock absorber", "Suspension", "Shocks/Struts"},
		{"Upstream oxygen sensor", "Exhaust", "O2 Sensors"},
		{"Timing chain tensioner", "Engine", "Timing"},
		{"Water pump", "Cooling", "Water Pump"},
		{"Cupholder", "", ""},
	}
	for _, tt := range tests {
		sys, sub := Classify(tt.input)
		if sys != tt.system || sub != tt.subsystem {
			t.Errorf("Classify(%q) = (%q, %q), want (%q, %q)", tt.input, sys, sub, tt.system, tt.subsystem)
		}
	}
}

func TestSanitizeID(t *testing.T) {
	tests := []struct{ input, want string }{
		{"Fuel System", "fuel-system"},
		{"Turbo/Supercharger", "turbo-supercharger"},
		{"  A/C  Compressor ", "a-c-compressor"},
		{"Mercedes-Benz", "mercedes-benz"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeID(tt.input); got != tt.want {
			t.Errorf("sanitizeID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTaxonomyCoversKeywords(t *testing.T) {
	for _, kw := range keywords {
		subs, ok := SystemTaxonomy[kw.system]
		if !ok {
			t.Fatalf("keyword %q maps to unknown system %q", kw.word, kw.system)
		}
		if kw.subsystem == "" {
			continue
		}
		found := false
		for _, s := range subs {
			found = found || s == kw.subsystem
		}
		if !found {
			t.Errorf("keyword %q maps to unknown subsystem %q/%q", kw.word, kw.system, kw.subsystem)
		}
	}
}

func TestComponentRoundTrip(t *testing.T) {
	c := Component{ID: "brake-pads", Name: "Brake pads", System: "Brakes", Subsystem: "Brake Pads",
		Properties: map[string]string{"position": "front"}}
	m := componentToMap(c)
	if m["prop_position"] != "front" {
		t.Fatalf("missing prop_position: %v", m)
	}
	got, err := componentFromProps(m)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != c.Name || got.Subsystem != c.Subsystem || got.Properties["position"] != "front" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestComponentLabel(t *testing.T) {
	if got := NewComponent("Brake rotor").Label(); got != "Brake rotor (Brakes / Disc Brakes)" {
		t.Fatalf("got %q", got)
	}
	if got := NewComponent("Engine").Label(); got != "Engine (Engine)" {
		t.Fatalf("got %q", got)
	}
	if got := NewComponent("Cupholder"); got.System != OtherSystem {
		t.Fatalf("unclassified component should be in %q, got %q", OtherSystem, got.System)
	}
}

func TestIndexDocument(t *testing.T) {
	r := &fakeRunner{}
	g := New(r)
	doc := domain.EvidenceDocument{
		ID:           "tsb-19-021",
		VehicleScope: domain.VehicleScope{Make: "chevy", Model: "Malibu", YearMin: 2016, YearMax: 2018},
		Component:    "Brake pads",
		Severity:     domain.SeverityHigh,
	}
	if err := g.IndexDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(r.calls))
	}
	p := r.calls[0].params
	if p["component_id"] != "brake-pads" || p["system_id"] != "brakes" || p["make_id"] != "chevrolet" {
		t.Fatalf("unexpected params: %v", p)
	}
	if p["severity"] != "high" || p["year_min"] != 2016 {
		t.Fatalf("unexpected bulletin params: %v", p)
	}
}

func TestIndexDocument_NoComponent(t *testing.T) {
	r := &fakeRunner{}
	if err := New(r).IndexDocument(context.Background(), domain.EvidenceDocument{ID: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 0 {
		t.Fatal("documents without a component should not touch the graph")
	}
}

func TestIndexDocument_Error(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeRunner{err: boom}
	err := New(r).IndexDocument(context.Background(), domain.EvidenceDocument{ID: "x", Component: "Battery"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestRelatedComponents(t *testing.T) {
	r := &fakeRunner{rows: []repo.Record{
		{"n": dbtype.Node{Props: map[string]any{"id": "brake-rotor", "name": "Brake rotor", "system": "Brakes", "subsystem": "Disc Brakes"}}, "hits": int64(2)},
		{"n": map[string]any{"id": "caliper", "name": "Caliper", "system": "Brakes"}, "hits": int64(0)},
		{"n": "garbage"},
	}}
	g := New(r)
	got, err := g.RelatedComponents(context.Background(), "Honda", []string{"Brake pads", "Brake pads", "Cupholder"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "Brake rotor" || got[1].ID != "caliper" {
		t.Fatalf("unexpected components: %+v", got)
	}
	p := r.calls[0].params
	systems := p["systems"].([]string)
	if len(systems) != 1 || systems[0] != "brakes" {
		t.Fatalf("systems = %v", systems)
	}
	if p["make_id"] != "honda" || p["limit"] != 3 {
		t.Fatalf("unexpected params: %v", p)
	}
}

func TestRelatedComponents_NoSystems(t *testing.T) {
	r := &fakeRunner{}
	got, err := New(r).RelatedComponents(context.Background(), "", []string{"Cupholder", " "}, 0)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
	if len(r.calls) != 0 {
		t.Fatal("no query expected when nothing classifies")
	}
}

func TestComponentsInSystem(t *testing.T) {
	r := &fakeRunner{rows: []repo.Record{
		{"n": map[string]any{"id": "battery", "name": "Battery", "system": "Electrical"}},
	}}
	got, err := New(r).ComponentsInSystem(context.Background(), "Electrical", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "battery" {
		t.Fatalf("unexpected: %+v", got)
	}
	if !strings.Contains(r.calls[0].cypher, "n.system = $f0") {
		t.Fatalf("filter missing from cypher: %s", r.calls[0].cypher)
	}
}

func TestEnricher(t *testing.T) {
	r := &fakeRunner{rows: []repo.Record{
		{"n": map[string]any{"id": "brake-rotor", "name": "Brake rotor", "system": "Brakes", "subsystem": "Disc Brakes"}},
	}}
	e := NewEnricher(New(r), 0, nil)
	lines, err := e.GraphContext(context.Background(), domain.Vehicle{Make: "Honda"}, []string{"Brake pads"})
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "Brake rotor (Brakes / Disc Brakes)" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if r.calls[0].params["limit"] != 5 {
		t.Fatalf("default limit not applied: %v", r.calls[0].params["limit"])
	}
}

func TestEnricher_Error(t *testing.T) {
	r := &fakeRunner{err: errors.New("neo4j down")}
	_, err := NewEnricher(New(r), 2, nil).GraphContext(context.Background(), domain.Vehicle{}, []string{"Battery"})
	if err == nil {
		t.Fatal("expected error")
	}
}
