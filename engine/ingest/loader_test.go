package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecode_JSONLines(t *testing.T) {
	in := `{"id":"a","diagnosis_text":"x","severity":"low"}

{"id":"b","diagnosis_text":"y","severity":"high","vehicle_scope":{"make":"Honda","year_min":2014,"year_max":2016}}
`
	docs, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[1].VehicleScope.Make != "Honda" || docs[1].VehicleScope.YearMax != 2016 {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestDecode_Array(t *testing.T) {
	docs, err := Decode(strings.NewReader(`  [{"id":"a"},{"id":"b"},{"id":"c"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 || docs[2].ID != "c" {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestDecode_Empty(t *testing.T) {
	docs, err := Decode(strings.NewReader(" \n "))
	if err != nil || docs != nil {
		t.Fatalf("docs=%v err=%v", docs, err)
	}
}

func TestDecode_BadLine(t *testing.T) {
	_, err := Decode(strings.NewReader("{\"id\":\"a\"}\n{oops\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bulletins.jsonl")
	if err := os.WriteFile(path, []byte(`{"id":"a"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	docs, err := LoadFile(path)
	if err != nil || len(docs) != 1 {
		t.Fatalf("docs=%v err=%v", docs, err)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
