package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/renderinc/report-search/internal/report"
	"github.com/renderinc/report-search/internal/storage"
)

func u32(v uint32) *uint32 { return &v }

func newRecord(id uint32, title, body string) report.Record {
	return report.Record{
		Title: title,
		Body:  body,
		Meta:  report.Meta{ForeignID: u32(id)},
	}
}

// scenarioA is the canonical fixture: two searchable records and one
// excluded for lacking a foreign id
func scenarioA() []report.Record {
	return []report.Record{
		newRecord(101, "Ketamine Journey", "ketamine ketamine ketamine"),
		newRecord(102, "A Night Out", "ketamine once"),
		newRecord(0, "Excluded", "ketamine"),
	}
}

func newMemoryStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.Open(storage.Config{Driver: storage.DriverBadger, InMemory: true}, storage.ModeCreate, zap.NewNop())
	require.NoError(t, err)
	return s
}

// seedIndex writes records the same way an import does and returns the
// closed index path
func seedIndex(t *testing.T, store storage.Store, records []report.Record) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index")

	idx, err := CreateIndex(path)
	require.NoError(t, err)

	w := idx.NewWriter()
	for i := range records {
		r := &records[i]
		if !r.Eligible() {
			continue
		}
		data, err := report.Encode(r)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, r.Key(), data))
		require.NoError(t, w.Add(IndexedDocument{ID: r.Key(), Title: r.Title, Body: r.Body}))
	}
	require.NoError(t, w.Commit())
	require.NoError(t, idx.Close())

	return path
}

// newTestEngine seeds an index and an in-memory store and opens an engine
// over them. The returned store is owned by the engine.
func newTestEngine(t *testing.T, records []report.Record, opts ...Option) (*Engine, storage.Store) {
	t.Helper()
	store := newMemoryStore(t)
	path := seedIndex(t, store, records)

	engine, err := Open(path, store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	return engine, store
}

func foreignIDs(records []*report.Record) []uint32 {
	ids := make([]uint32, 0, len(records))
	for _, r := range records {
		ids = append(ids, *r.Meta.ForeignID)
	}
	return ids
}
