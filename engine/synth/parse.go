package synth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNoJSON is returned when the model output contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSON returns the first balanced {...} block in s. Braces inside
// string literals are ignored, so prose and code fences around the object
// are tolerated.
func ExtractJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end := matchBrace(s, start); end > 0 {
			return s[start : end+1], nil
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSON
}

// matchBrace returns the index of the brace closing s[open], or -1.
func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// rawReport is the provisional, loosely typed decode of model output.
// Pointer fields distinguish "absent" from zero.
type rawReport struct {
	PrimaryDiagnosis string     `json:"primary_diagnosis"`
	Differential     []string   `json:"differential"`
	Confidence       *flexFloat `json:"confidence"`
	Severity         string     `json:"severity"`
	SafeToDrive      *flexBool  `json:"safe_to_drive"`
	RepairSteps      []rawStep  `json:"repair_steps"`
	PartsNeeded      []rawPart  `json:"parts_needed"`
	EstimatedCost    rawCost    `json:"estimated_cost"`
	SafetyWarnings   []string   `json:"safety_warnings"`
	CitedEvidenceIDs []string   `json:"cited_evidence_ids"`
}

type rawStep struct {
	StepNumber        flexFloat `json:"step_number"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	EstimatedDuration string    `json:"estimated_duration"`
}

type rawPart struct {
	Name                string   `json:"name"`
	EstimatedPriceRange rawRange `json:"estimated_price_range"`
}

type rawRange struct {
	Min flexFloat `json:"min"`
	Max flexFloat `json:"max"`
}

type rawCost struct {
	PartsRange  rawRange `json:"parts_range"`
	LaborRange  rawRange `json:"labor_range"`
	TotalRange  rawRange `json:"total_range"`
	DIYPossible flexBool `json:"diy_possible"`
}

// parseReport extracts and decodes the JSON object in model output.
func parseReport(output string) (*rawReport, error) {
	js, err := ExtractJSON(output)
	if err != nil {
		return nil, err
	}
	var r rawReport
	if err := json.Unmarshal([]byte(js), &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// flexFloat accepts numbers and numeric strings such as "$1,200" or "0.8".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Errorf("not a finite number: %q", s)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexBool accepts booleans and "true"/"false"/"yes"/"no" strings.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = flexBool(t)
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y":
			*f = true
		case "false", "no", "n", "":
			*f = false
		default:
			return fmt.Errorf("not a boolean: %q", t)
		}
	default:
		return fmt.Errorf("not a boolean: %v", t)
	}
	return nil
}
