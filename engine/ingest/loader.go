package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// Decode reads documents as a JSON array or as JSON lines. Blank lines are
// ignored; a malformed line fails the whole read with its line number.
func Decode(r io.Reader) ([]domain.EvidenceDocument, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: read: %w", err)
	}

	if first == '[' {
		var docs []domain.EvidenceDocument
		if err := json.NewDecoder(br).Decode(&docs); err != nil {
			return nil, fmt.Errorf("ingest: decode array: %w", err)
		}
		return docs, nil
	}

	var docs []domain.EvidenceDocument
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var d domain.EvidenceDocument
		if err := json.Unmarshal(b, &d); err != nil {
			return nil, fmt.Errorf("ingest: line %d: %w", line, err)
		}
		docs = append(docs, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: scan: %w", err)
	}
	return docs, nil
}

// LoadFile decodes the documents in path.
func LoadFile(path string) ([]domain.EvidenceDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
