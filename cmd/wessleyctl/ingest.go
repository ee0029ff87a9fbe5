package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/ingest"
)

func newIngestCmd(rf *rootFlags) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Load bulletin files into the evidence store",
		Long: `Load bulletins from JSON array or JSON lines files.

With --nats the documents are published to the ingest subject and a running
ingest consumer stores them. Otherwise they are embedded and stored here.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var docs []domain.EvidenceDocument
			for _, path := range args {
				d, err := ingest.LoadFile(path)
				if err != nil {
					return err
				}
				docs = append(docs, d...)
			}
			if rf.natsURL != "" {
				nc, err := nats.Connect(rf.natsURL, nats.Name("wessleyctl"))
				if err != nil {
					return fmt.Errorf("connect nats: %w", err)
				}
				defer nc.Close()
				if err := publishDocs(nc, docs); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Published %d documents to %s", len(docs), ingest.IngestSubject))
				return nil
			}

			s, err := buildStack(cmd.Context(), rf)
			if err != nil {
				return err
			}
			defer s.Close()

			sp := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
			sp.Suffix = fmt.Sprintf(" Ingesting %d documents...", len(docs))
			sp.Start()
			sum := s.Ingester.IngestAll(cmd.Context(), docs, workers)
			sp.Stop()

			out := cmd.OutOrStdout()
			printSuccess(out, fmt.Sprintf("Ingested %d, skipped %d", sum.Ingested, sum.Skipped))
			for _, f := range sum.Failed {
				printWarn(out, fmt.Sprintf("%s: %s", f.ID, f.Error))
			}
			if len(sum.Failed) > 0 {
				return fmt.Errorf("%d documents failed", len(sum.Failed))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "Documents embedded in parallel")
	return cmd
}

func publishDocs(nc *nats.Conn, docs []domain.EvidenceDocument) error {
	for _, d := range docs {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode %s: %w", d.ID, err)
		}
		if err := nc.Publish(ingest.IngestSubject, data); err != nil {
			return fmt.Errorf("publish %s: %w", d.ID, err)
		}
	}
	return nc.Flush()
}
