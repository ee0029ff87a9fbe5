// Package localstore is a SQLite-backed evidence store for single-node
// deployments and offline snapshots of the bulletin corpus.
package localstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/evidence"

	_ "modernc.org/sqlite"
)

// Store keeps bulletins and their embeddings in one table and scores
// candidates in process.
type Store struct {
	db *sql.DB
}

var (
	_ evidence.Store  = (*Store)(nil)
	_ evidence.Lookup = (*Store)(nil)
)

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" || p == "." {
		return nil, errors.New("localstore: missing db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, fmt.Errorf("localstore: %w", err)
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", p, err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localstore: init schema: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS evidence (
			id TEXT PRIMARY KEY,
			make TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			year_min INTEGER NOT NULL DEFAULT 0,
			year_max INTEGER NOT NULL DEFAULT 0,
			component TEXT NOT NULL DEFAULT '',
			symptom TEXT NOT NULL DEFAULT '',
			diagnosis TEXT NOT NULL DEFAULT '',
			remedy TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT '',
			embedding BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_make ON evidence(make);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Upsert inserts or replaces a bulletin.
func (s *Store) Upsert(ctx context.Context, doc domain.EvidenceDocument) error {
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("localstore: %w: %s", evidence.ErrNoEmbedding, doc.ID)
	}
	blob, err := encodeVector(doc.Embedding)
	if err != nil {
		return fmt.Errorf("localstore: encode %s: %w", doc.ID, err)
	}
	sc := doc.VehicleScope
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evidence (id, make, model, year_min, year_max, component, symptom, diagnosis, remedy, severity, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			make=excluded.make,
			model=excluded.model,
			year_min=excluded.year_min,
			year_max=excluded.year_max,
			component=excluded.component,
			symptom=excluded.symptom,
			diagnosis=excluded.diagnosis,
			remedy=excluded.remedy,
			severity=excluded.severity,
			embedding=excluded.embedding
	`, doc.ID, makeKey(sc.Make), sc.Model, sc.YearMin, sc.YearMax, doc.Component,
		doc.SymptomText, doc.DiagnosisText, doc.RemedyText, string(doc.Severity), blob)
	if err != nil {
		return fmt.Errorf("localstore: upsert %s: %w", doc.ID, err)
	}
	return nil
}

// Query prefilters in SQL and ranks by cosine similarity.
func (s *Store) Query(ctx context.Context, vec []float32, k int, f *evidence.Filter) ([]domain.EvidenceMatch, error) {
	if k <= 0 {
		k = 5
	}
	q := `SELECT id, make, model, year_min, year_max, component, symptom, diagnosis, remedy, severity, embedding FROM evidence`
	var (
		where []string
		args  []any
	)
	if !f.Empty() {
		if m := strings.TrimSpace(f.Make); m != "" {
			where = append(where, "make = ?")
			args = append(args, makeKey(m))
		}
		if f.Year > 0 {
			where = append(where, "(year_min = 0 OR year_min <= ?)", "(year_max = 0 OR year_max >= ?)")
			args = append(args, f.Year, f.Year)
		}
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("localstore: query: %w", err)
	}
	defer rows.Close()

	var matches []domain.EvidenceMatch
	for rows.Next() {
		var (
			d        domain.EvidenceDocument
			make_    string
			severity string
			blob     []byte
		)
		if err := rows.Scan(&d.ID, &make_, &d.VehicleScope.Model, &d.VehicleScope.YearMin, &d.VehicleScope.YearMax,
			&d.Component, &d.SymptomText, &d.DiagnosisText, &d.RemedyText, &severity, &blob); err != nil {
			return nil, fmt.Errorf("localstore: scan: %w", err)
		}
		d.VehicleScope.Make = domain.CanonicalMake(make_)
		d.Severity = domain.ParseSeverity(severity)
		d.Embedding, err = decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("localstore: decode %s: %w", d.ID, err)
		}
		matches = append(matches, domain.EvidenceMatch{Document: d, Score: evidence.Cosine(vec, d.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("localstore: rows: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Exists reports whether a bulletin with id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM evidence WHERE id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("localstore: exists %s: %w", id, err)
	}
	return true, nil
}

// Count returns the number of stored bulletins.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evidence`).Scan(&n); err != nil {
		return 0, fmt.Errorf("localstore: count: %w", err)
	}
	return n, nil
}

func makeKey(m string) string {
	return strings.ToLower(domain.CanonicalMake(m))
}

func encodeVector(v []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &v); err != nil {
		return nil, err
	}
	return v, nil
}
