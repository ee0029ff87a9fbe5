package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/briandowns/spinner"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-diagnose/engine/diagnose"
	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/stack"
	"github.com/WessleyAI/wessley-diagnose/pkg/config"
	"github.com/WessleyAI/wessley-diagnose/pkg/vehiclenlp"
)

// runner is satisfied by both *diagnose.Engine and *diagnose.Client.
type runner interface {
	Run(ctx context.Context, q domain.DiagnosticQuery) (*diagnose.Result, error)
}

type diagnoseFlags struct {
	year       int
	make_      string
	model      string
	vin        string
	mileage    int
	audioLabel string
	audioConf  float64
	photos     int
	output     string
	timeout    time.Duration
	provenance bool
}

func newDiagnoseCmd(rf *rootFlags) *cobra.Command {
	var f diagnoseFlags
	cmd := &cobra.Command{
		Use:   "diagnose SYMPTOM",
		Short: "Diagnose a described symptom",
		Long: `Diagnose a vehicle symptom using retrieved service bulletins.

Examples:
  # Describe the vehicle explicitly
  wessleyctl diagnose "grinding noise when braking" --year 2015 --make Honda --model Civic

  # Add an audio classifier result
  wessleyctl diagnose "knocking at idle" --make Ford --audio-label engine_knock --audio-confidence 0.9

  # Machine-readable output
  wessleyctl diagnose "rough idle" -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := f.query(args[0])
			if q.Vehicle.Make != "" && !vehiclenlp.KnownMake(q.Vehicle.Make) {
				printWarn(cmd.ErrOrStderr(), fmt.Sprintf("unknown make %q, results will not be filtered by make", q.Vehicle.Make))
			}

			r, closeFn, err := openRunner(cmd.Context(), rf)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()

			var sp *spinner.Spinner
			if f.output == "human" {
				sp = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				sp.Suffix = " Diagnosing..."
				sp.Start()
			}
			res, err := r.Run(ctx, q)
			if sp != nil {
				sp.Stop()
			}
			if err != nil {
				return fmt.Errorf("diagnose: %w", err)
			}
			return render(cmd.OutOrStdout(), q, res, f.output, f.provenance)
		},
	}

	cmd.Flags().IntVar(&f.year, "year", 0, "Model year")
	cmd.Flags().StringVar(&f.make_, "make", "", "Vehicle make")
	cmd.Flags().StringVar(&f.model, "model", "", "Vehicle model")
	cmd.Flags().StringVar(&f.vin, "vin", "", "Vehicle identification number")
	cmd.Flags().IntVar(&f.mileage, "mileage", 0, "Odometer reading")
	cmd.Flags().StringVar(&f.audioLabel, "audio-label", "", "Audio classifier label")
	cmd.Flags().Float64Var(&f.audioConf, "audio-confidence", 0, "Audio classifier confidence (0-1)")
	cmd.Flags().IntVar(&f.photos, "photos", 0, "Number of attached photos")
	cmd.Flags().StringVarP(&f.output, "output", "o", "human", "Output format (human, json, yaml)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 2*time.Minute, "Overall deadline")
	cmd.Flags().BoolVar(&f.provenance, "provenance", false, "Show retrieval and stage details")
	return cmd
}

func (f diagnoseFlags) query(symptom string) domain.DiagnosticQuery {
	q := domain.DiagnosticQuery{
		Vehicle:     domain.Vehicle{Year: f.year, Make: f.make_, Model: f.model, VIN: f.vin},
		SymptomText: symptom,
	}
	if f.photos > 0 {
		n := f.photos
		q.PhotoCount = &n
	}
	if f.mileage > 0 {
		m := f.mileage
		q.Vehicle.Mileage = &m
	}
	if f.audioLabel != "" {
		q.AudioSignal = &domain.AudioSignal{Label: f.audioLabel, Confidence: f.audioConf}
	}
	return q
}

// openRunner connects to a remote service when --nats is set and builds an
// in-process engine otherwise.
func openRunner(ctx context.Context, rf *rootFlags) (runner, func(), error) {
	if rf.natsURL != "" {
		nc, err := nats.Connect(rf.natsURL, nats.Name("wessleyctl"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		return diagnose.NewClient(nc, diagnose.Subject), nc.Close, nil
	}

	s, err := buildStack(ctx, rf)
	if err != nil {
		return nil, nil, err
	}
	return s.Engine, func() { _ = s.Close() }, nil
}

func buildStack(ctx context.Context, rf *rootFlags) (*stack.Stack, error) {
	cfg, err := config.Load(rf.config)
	if err != nil {
		return nil, err
	}
	// Engine logs would interleave with the rendered report.
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.NATS.URL = ""
	return stack.Build(ctx, cfg, log)
}
