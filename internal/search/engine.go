package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/renderinc/report-search/internal/metrics"
	"github.com/renderinc/report-search/internal/report"
	"github.com/renderinc/report-search/internal/storage"
)

const defaultResolveWorkers = 4

// Engine owns the index and store handles and answers searches.
// Both handles are safe for concurrent readers, so Search takes no lock.
type Engine struct {
	index    *Index
	store    storage.Store
	resolver *Resolver
	group    singleflight.Group
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

type engineConfig struct {
	logger         *zap.Logger
	metrics        *metrics.Metrics
	resolveWorkers int
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the engine logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records search metrics on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *engineConfig) {
		c.metrics = m
	}
}

// WithResolveWorkers sets how many store lookups run concurrently
func WithResolveWorkers(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.resolveWorkers = n
		}
	}
}

// NewEngine builds an engine over already opened handles. The engine takes
// ownership of both and closes them in Close.
func NewEngine(index *Index, store storage.Store, opts ...Option) (*Engine, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	cfg := engineConfig{
		logger:         zap.NewNop(),
		resolveWorkers: defaultResolveWorkers,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	resolver, err := NewResolver(store, cfg.resolveWorkers, cfg.logger, cfg.metrics)
	if err != nil {
		return nil, err
	}

	return &Engine{
		index:    index,
		store:    store,
		resolver: resolver,
		logger:   cfg.logger,
		metrics:  cfg.metrics,
	}, nil
}

// Open opens the persisted index at indexPath read-only and builds an engine
// over it and store. A missing or incompatible index is a startup error.
func Open(indexPath string, store storage.Store, opts ...Option) (*Engine, error) {
	idx, err := OpenIndex(indexPath, true)
	if err != nil {
		return nil, err
	}

	engine, err := NewEngine(idx, store, opts...)
	if err != nil {
		idx.Close()
		return nil, err
	}
	return engine, nil
}

// Search returns up to DefaultLimit records matching text, best first.
// Identical concurrent searches share one execution; each caller receives
// its own copies of the records.
func (e *Engine) Search(ctx context.Context, text string) ([]*report.Record, error) {
	v, err, _ := e.group.Do(text, func() (interface{}, error) {
		return e.search(context.WithoutCancel(ctx), text)
	})
	if err != nil {
		return nil, err
	}

	return cloneRecords(v.([]*report.Record)), nil
}

func cloneRecords(shared []*report.Record) []*report.Record {
	records := make([]*report.Record, len(shared))
	for i, r := range shared {
		records[i] = r.Clone()
	}
	return records
}

func (e *Engine) search(ctx context.Context, text string) ([]*report.Record, error) {
	start := time.Now()

	hits, err := e.index.Query(ctx, text, DefaultLimit)
	if err != nil {
		e.metrics.SearchFailed(errorKind(err))
		return nil, err
	}

	records, err := e.resolver.Resolve(ctx, hits)
	if err != nil {
		e.metrics.SearchFailed(errorKind(err))
		return nil, err
	}

	e.metrics.ObserveSearch(time.Since(start), len(records))
	e.logger.Debug("search complete",
		zap.String("query", text),
		zap.Int("hits", len(hits)),
		zap.Int("results", len(records)),
		zap.Duration("took", time.Since(start)),
	)

	return records, nil
}

// Stats holds document counts for both stores
type Stats struct {
	StoreDocuments int
	IndexDocuments uint64
}

// Stats counts documents in the store and the index. The two differ when an
// import was interrupted before its commit.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	storeCount, err := e.store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	indexCount, err := e.index.Count()
	if err != nil {
		return Stats{}, err
	}
	return Stats{StoreDocuments: storeCount, IndexDocuments: indexCount}, nil
}

// Close releases the resolver pool and closes the index and the store
func (e *Engine) Close() error {
	e.resolver.Release()
	return errors.Join(e.index.Close(), e.store.Close())
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrQueryParse):
		return "parse"
	case errors.Is(err, storage.ErrStoreIO):
		return "store"
	default:
		return "index"
	}
}
