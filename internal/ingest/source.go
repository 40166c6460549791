package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/renderinc/report-search/internal/report"
)

// ReadSource decodes a bulk source: a single JSON array of records.
// The whole array is decoded before anything is written, so a bad source
// never leaves a partial import behind.
func ReadSource(r io.Reader) ([]report.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrImportSource, err)
	}

	var records []report.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrImportSource, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: expected a JSON array of records", ErrImportSource)
	}

	return records, nil
}

// ReadSourceFile opens path and decodes it with ReadSource
func ReadSourceFile(path string) ([]report.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportSource, err)
	}
	defer f.Close()

	return ReadSource(f)
}
