package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/renderinc/report-search/internal/metrics"
	"github.com/renderinc/report-search/internal/report"
	"github.com/renderinc/report-search/internal/storage"
)

// Reasons a hit is dropped, used as metric labels
const (
	dropMissingID = "missing_id"
	dropNotFound  = "not_found"
	dropDecode    = "decode"
)

// Resolution is the outcome of joining one hit to its stored record.
// Exactly one of Record and Err is set.
type Resolution struct {
	Hit    Hit
	Key    string
	Record *report.Record
	Err    error
}

// Resolved reports whether the hit produced a record
func (r Resolution) Resolved() bool {
	return r.Err == nil
}

// Dropped reports whether the hit should be silently omitted.
// Any other failure is a store error that fails the whole request.
func (r Resolution) Dropped() bool {
	return errors.Is(r.Err, ErrRecordResolution)
}

// Resolver joins index hits back to full records in the document store.
// Lookups for one search run concurrently on a shared worker pool.
type Resolver struct {
	store   storage.Store
	pool    *ants.Pool
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a resolver with a pool of workers goroutines
func NewResolver(store storage.Store, workers int, logger *zap.Logger, m *metrics.Metrics) (*Resolver, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create resolver pool: %w", err)
	}

	return &Resolver{
		store:   store,
		pool:    pool,
		logger:  logger,
		metrics: m,
	}, nil
}

// Release stops the worker pool
func (r *Resolver) Release() {
	r.pool.Release()
}

// Resolve returns the records for hits in hit order, omitting hits that
// could not be resolved. A store I/O failure fails the whole call.
func (r *Resolver) Resolve(ctx context.Context, hits []Hit) ([]*report.Record, error) {
	resolutions := r.ResolveAll(ctx, hits)

	records := make([]*report.Record, 0, len(resolutions))
	for _, res := range resolutions {
		switch {
		case res.Resolved():
			records = append(records, res.Record)
		case res.Dropped():
			r.logger.Warn("dropping unresolvable hit",
				zap.String("doc_id", res.Hit.DocID),
				zap.String("key", res.Key),
				zap.Error(res.Err),
			)
		default:
			return nil, res.Err
		}
	}

	return records, nil
}

// ResolveAll resolves every hit and reports each outcome, in hit order
func (r *Resolver) ResolveAll(ctx context.Context, hits []Hit) []Resolution {
	resolutions := make([]Resolution, len(hits))

	var wg sync.WaitGroup
	for i := range hits {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			resolutions[i] = r.resolveOne(ctx, hits[i])
		}
		if err := r.pool.Submit(task); err != nil {
			// Pool released or overloaded; resolve inline
			task()
		}
	}
	wg.Wait()

	return resolutions
}

func (r *Resolver) resolveOne(ctx context.Context, hit Hit) Resolution {
	res := Resolution{Hit: hit}

	key, ok := hit.Fields[FieldID].(string)
	if !ok || key == "" {
		res.Err = r.drop(dropMissingID, fmt.Errorf("hit %s has no stored %s field", hit.DocID, FieldID))
		return res
	}
	res.Key = key

	data, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		res.Err = r.drop(dropNotFound, fmt.Errorf("no stored record for key %s", key))
		return res
	}
	if err != nil {
		res.Err = err
		return res
	}

	record, err := report.Decode(data)
	if err != nil {
		res.Err = r.drop(dropDecode, fmt.Errorf("decode record %s: %w", key, err))
		return res
	}

	res.Record = record
	return res
}

func (r *Resolver) drop(reason string, err error) error {
	r.metrics.HitDropped(reason)
	return fmt.Errorf("%w: %w", ErrRecordResolution, err)
}
