package search

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit is the maximum number of hits a search returns
const DefaultLimit = 10

// Index wraps a Bleve search index
type Index struct {
	index bleve.Index
}

// Hit is one ranked match: the index-internal document id, its relevance
// score, and the stored fields loaded with it. Hits are never persisted.
type Hit struct {
	DocID  string
	Score  float64
	Fields map[string]interface{}
}

// CreateIndex creates a new index at path with the report schema
func CreateIndex(path string) (*Index, error) {
	idx, err := bleve.New(path, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("%w: create index: %v", ErrIndexIO, err)
	}

	if err := idx.SetInternal(schemaKey, []byte(SchemaVersion)); err != nil {
		idx.Close()
		return nil, fmt.Errorf("%w: write schema marker: %v", ErrIndexIO, err)
	}

	return &Index{index: idx}, nil
}

// OpenIndex opens an existing index and verifies its schema.
// Serving processes pass readOnly so the handle can never mutate the index.
func OpenIndex(path string, readOnly bool) (*Index, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, path)
	}

	var idx bleve.Index
	var err error
	if readOnly {
		idx, err = bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	} else {
		idx, err = bleve.Open(path)
	}

	switch {
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist), errors.Is(err, bleve.ErrorIndexMetaMissing):
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, path)
	case errors.Is(err, bleve.ErrorIndexMetaCorrupt), errors.Is(err, bleve.ErrorUnknownIndexType):
		return nil, fmt.Errorf("%w: %s: %v", ErrIncompatibleIndex, path, err)
	case err != nil:
		return nil, fmt.Errorf("%w: open index: %v", ErrIndexIO, err)
	}

	version, err := idx.GetInternal(schemaKey)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("%w: read schema marker: %v", ErrIndexIO, err)
	}
	if string(version) != SchemaVersion {
		idx.Close()
		return nil, fmt.Errorf("%w: found %q, want %q", ErrIncompatibleIndex, version, SchemaVersion)
	}

	return &Index{index: idx}, nil
}

// OpenOrCreateIndex opens the index at path, creating it if it does not exist
func OpenOrCreateIndex(path string) (*Index, error) {
	idx, err := OpenIndex(path, false)
	if errors.Is(err, ErrIndexMissing) {
		return CreateIndex(path)
	}
	return idx, err
}

// Close closes the index. Bleve waits for in-flight merges and
// persistence to finish before returning.
func (i *Index) Close() error {
	return i.index.Close()
}

// Query parses text against the default fields and returns up to limit
// hits in descending score order. No match is an empty slice, not an error.
func (i *Index) Query(ctx context.Context, text string, limit int) ([]Hit, error) {
	q, err := ParseQuery(text)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{FieldID}

	results, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrIndexIO, err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, match := range results.Hits {
		hits = append(hits, Hit{
			DocID:  match.ID,
			Score:  match.Score,
			Fields: match.Fields,
		})
	}

	return hits, nil
}

// ParseQuery parses query-string syntax up front so that syntax errors are
// reported as a *QueryError instead of surfacing from the search itself.
func ParseQuery(text string) (query.Query, error) {
	q, err := bleve.NewQueryStringQuery(text).Parse()
	if err != nil {
		return nil, &QueryError{Query: text, Err: err}
	}
	return q, nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	count, err := i.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrIndexIO, err)
	}
	return count, nil
}

// Writer buffers documents and applies them to the index on Commit.
// Buffered documents are invisible to searches until then.
type Writer struct {
	index bleve.Index
	batch *bleve.Batch
}

// NewWriter starts an empty batch against the index
func (i *Index) NewWriter() *Writer {
	return &Writer{index: i.index, batch: i.index.NewBatch()}
}

// Add queues a document. The document id is the join key, so adding the
// same id twice leaves a single entry.
func (w *Writer) Add(doc IndexedDocument) error {
	if err := w.batch.Index(doc.ID, doc); err != nil {
		return fmt.Errorf("%w: batch index %s: %v", ErrIndexIO, doc.ID, err)
	}
	return nil
}

// Pending returns the number of buffered operations
func (w *Writer) Pending() int {
	return w.batch.Size()
}

// Commit applies the buffered documents and resets the batch
func (w *Writer) Commit() error {
	if w.batch.Size() == 0 {
		return nil
	}
	if err := w.index.Batch(w.batch); err != nil {
		return fmt.Errorf("%w: commit batch: %v", ErrIndexIO, err)
	}
	w.batch.Reset()
	return nil
}
