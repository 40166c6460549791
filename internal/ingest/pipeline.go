package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/renderinc/report-search/internal/metrics"
	"github.com/renderinc/report-search/internal/report"
	"github.com/renderinc/report-search/internal/search"
	"github.com/renderinc/report-search/internal/storage"
)

const (
	defaultBatchSize     = 1000
	defaultProgressEvery = 100
)

// ProgressFunc is called with the number of records processed so far
type ProgressFunc func(current, total int)

// Pipeline writes records into the document store and the index.
// It assumes exclusive ownership of both for the duration of a run.
type Pipeline struct {
	store         storage.Store
	index         *search.Index
	batchSize     int
	progressEvery int
	logger        *zap.Logger
	metrics       *metrics.Metrics

	// one writer at a time
	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets how many index documents are buffered between commits
func WithBatchSize(size int) Option {
	return func(p *Pipeline) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

// WithProgressEvery sets how often the progress callback fires
func WithProgressEvery(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.progressEvery = n
		}
	}
}

// WithLogger sets the pipeline logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics counts imported and skipped records on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// NewPipeline creates an import pipeline over an open store and index.
// The caller keeps ownership of both and closes them after the run.
func NewPipeline(store storage.Store, index *search.Index, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	p := &Pipeline{
		store:         store,
		index:         index,
		batchSize:     defaultBatchSize,
		progressEvery: defaultProgressEvery,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Stats holds import statistics
type Stats struct {
	Total    int
	Imported int
	Skipped  int
	Commits  int
	Duration time.Duration
}

// Run imports records in order. Each eligible record is written to the
// store before its index entry is queued, so an interrupted run can leave
// stored records that are not yet searchable but never the reverse.
// Any store or index failure aborts the run.
func (p *Pipeline) Run(ctx context.Context, records []report.Record, progress ProgressFunc) (*Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	startTime := time.Now()
	stats := &Stats{Total: len(records)}
	writer := p.index.NewWriter()

	for i := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record := &records[i]
		if !record.Eligible() {
			stats.Skipped++
			p.metrics.RecordSkipped()
			p.logger.Debug("skipping record without foreign id", zap.Int("position", i), zap.String("title", record.Title))
		} else {
			if err := p.importRecord(ctx, writer, record); err != nil {
				return stats, fmt.Errorf("import record %d: %w", i, err)
			}
			stats.Imported++
			p.metrics.RecordImported()

			if writer.Pending() >= p.batchSize {
				if err := writer.Commit(); err != nil {
					return stats, err
				}
				stats.Commits++
			}
		}

		if progress != nil && (i+1)%p.progressEvery == 0 {
			progress(i+1, len(records))
		}
	}

	if err := writer.Commit(); err != nil {
		return stats, err
	}
	stats.Commits++

	if progress != nil {
		progress(len(records), len(records))
	}

	stats.Duration = time.Since(startTime)
	p.logger.Info("import complete",
		zap.Int("total", stats.Total),
		zap.Int("imported", stats.Imported),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("duration", stats.Duration),
	)

	return stats, nil
}

func (p *Pipeline) importRecord(ctx context.Context, writer *search.Writer, record *report.Record) error {
	key := record.Key()

	data, err := report.Encode(record)
	if err != nil {
		return err
	}

	if err := p.store.Put(ctx, key, data); err != nil {
		return err
	}

	return writer.Add(search.IndexedDocument{
		ID:    key,
		Title: record.Title,
		Body:  record.Body,
	})
}

// Reindex rebuilds index entries from everything in the store. Entries that
// no longer decode are logged and skipped.
func (p *Pipeline) Reindex(ctx context.Context, progress ProgressFunc) (*Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	startTime := time.Now()

	total, err := p.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: total}
	writer := p.index.NewWriter()
	current := 0

	err = p.store.Each(ctx, func(key string, value []byte) error {
		current++

		record, err := report.Decode(value)
		if err != nil || record.Key() != key {
			stats.Skipped++
			p.logger.Warn("skipping undecodable store entry", zap.String("key", key), zap.Error(err))
		} else {
			if err := writer.Add(search.IndexedDocument{ID: key, Title: record.Title, Body: record.Body}); err != nil {
				return err
			}
			stats.Imported++

			if writer.Pending() >= p.batchSize {
				if err := writer.Commit(); err != nil {
					return err
				}
				stats.Commits++
			}
		}

		if progress != nil && current%p.progressEvery == 0 {
			progress(current, total)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	if err := writer.Commit(); err != nil {
		return stats, err
	}
	stats.Commits++

	if progress != nil {
		progress(current, total)
	}

	stats.Duration = time.Since(startTime)
	p.logger.Info("reindex complete",
		zap.Int("indexed", stats.Imported),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("duration", stats.Duration),
	)

	return stats, nil
}
