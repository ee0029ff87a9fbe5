package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/WessleyAI/wessley-diagnose/engine/diagnose"
	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// render writes res in the requested format.
func render(w io.Writer, q domain.DiagnosticQuery, res *diagnose.Result, format string, showProv bool) error {
	switch format {
	case "json":
		return renderJSON(w, res)
	case "yaml":
		return renderYAML(w, res)
	case "human", "":
		renderHuman(w, q, res, showProv)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderJSON(w io.Writer, res *diagnose.Result) error {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// renderYAML goes through JSON so the keys match the API's snake_case names.
func renderYAML(w io.Writer, res *diagnose.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func renderHuman(w io.Writer, q domain.DiagnosticQuery, res *diagnose.Result, showProv bool) {
	r := res.Report
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	fmt.Fprintln(w)
	cyan.Fprintf(w, "%s\n", q.Summary())
	fmt.Fprintln(w)

	bold.Fprintln(w, "DIAGNOSIS:")
	fmt.Fprintf(w, "   %s\n", r.PrimaryDiagnosis)
	fmt.Fprintf(w, "   Confidence: %.0f%%\n\n", r.Confidence*100)

	severityColor(r.Severity).Fprintf(w, "SEVERITY: %s\n", strings.ToUpper(string(r.Severity)))
	if r.SafeToDrive {
		color.New(color.FgGreen).Fprintln(w, "Safe to drive")
	} else {
		color.New(color.FgRed, color.Bold).Fprintln(w, "NOT safe to drive")
	}
	fmt.Fprintln(w)

	if len(r.SafetyWarnings) > 0 {
		yellow.Fprintln(w, "WARNINGS:")
		for _, s := range r.SafetyWarnings {
			fmt.Fprintf(w, "   ! %s\n", s)
		}
		fmt.Fprintln(w)
	}

	if len(r.Differential) > 0 {
		bold.Fprintln(w, "ALSO CONSIDER:")
		for i, d := range r.Differential {
			fmt.Fprintf(w, "   %d. %s\n", i+1, d)
		}
		fmt.Fprintln(w)
	}

	if len(r.RepairSteps) > 0 {
		green.Fprintln(w, "REPAIR STEPS:")
		for _, s := range r.RepairSteps {
			fmt.Fprintf(w, "   %d. %s", s.StepNumber, s.Title)
			if s.EstimatedDuration != "" {
				fmt.Fprintf(w, " (%s)", s.EstimatedDuration)
			}
			fmt.Fprintln(w)
			if s.Description != "" {
				fmt.Fprintf(w, "      %s\n", s.Description)
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.PartsNeeded) > 0 {
		bold.Fprintln(w, "PARTS:")
		for _, p := range r.PartsNeeded {
			fmt.Fprintf(w, "   - %s %s\n", p.Name, priceRange(p.EstimatedPriceRange))
		}
		fmt.Fprintln(w)
	}

	c := r.EstimatedCost
	if c.TotalRange.Max > 0 {
		bold.Fprintln(w, "ESTIMATED COST:")
		fmt.Fprintf(w, "   parts %s, labor %s, total %s\n", priceRange(c.PartsRange), priceRange(c.LaborRange), priceRange(c.TotalRange))
		if c.DIYPossible {
			fmt.Fprintln(w, "   DIY possible")
		}
		fmt.Fprintln(w)
	}

	if len(r.CitedEvidenceIDs) > 0 {
		fmt.Fprintf(w, "Sources: %s\n", color.CyanString(strings.Join(r.CitedEvidenceIDs, ", ")))
	}
	if r.UsedFallback {
		fmt.Fprintln(w, color.HiBlackString("Generated from evidence without the language model (%s)", fallbackReason(res.Provenance)))
	}

	if showProv {
		fmt.Fprintln(w)
		bold.Fprintln(w, "PROVENANCE:")
		for i, id := range res.Provenance.RetrievedIDs {
			score := float32(0)
			if i < len(res.Provenance.Scores) {
				score = res.Provenance.Scores[i]
			}
			fmt.Fprintf(w, "   %-24s %.3f\n", id, score)
		}
		for _, st := range res.Provenance.Stages {
			line := fmt.Sprintf("   %-13s %s", st.Stage, st.Duration.Round(time.Microsecond))
			if st.Degraded {
				line += color.YellowString(" degraded: %s", st.Reason)
			}
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "%s\n", color.HiBlackString("Run with -o json or -o yaml for machine-readable output"))
}

func fallbackReason(p diagnose.Provenance) string {
	if p.FallbackReason == "" {
		return "unknown"
	}
	return p.FallbackReason
}

func priceRange(p domain.PriceRange) string {
	if p.Max == 0 {
		return "-"
	}
	return fmt.Sprintf("$%.0f-$%.0f", p.Min, p.Max)
}

func severityColor(s domain.Severity) *color.Color {
	switch s {
	case domain.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case domain.SeverityHigh:
		return color.New(color.FgRed)
	case domain.SeverityMedium:
		return color.New(color.FgYellow)
	case domain.SeverityLow:
		return color.New(color.FgGreen)
	}
	return color.New(color.FgWhite)
}

func printWarn(w io.Writer, msg string) {
	color.New(color.FgYellow).Fprintf(w, "! %s\n", msg)
}

func printSuccess(w io.Writer, msg string) {
	color.New(color.FgGreen).Fprintf(w, "✓ %s\n", msg)
}
