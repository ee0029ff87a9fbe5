package ingest

import "github.com/WessleyAI/wessley-diagnose/engine/domain"

// Failure records one document that could not be ingested.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Summary is the outcome of a batch ingestion.
type Summary struct {
	Ingested int       `json:"ingested"`
	Skipped  int       `json:"skipped"`
	Failed   []Failure `json:"failed,omitempty"`
}

// dlqMessage is published to the DLQ on permanent or repeated failure.
type dlqMessage struct {
	Document domain.EvidenceDocument `json:"document"`
	Error    string                  `json:"error"`
	Retries  int                     `json:"retries"`
}
