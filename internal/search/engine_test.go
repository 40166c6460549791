package search

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/report-search/internal/metrics"
	"github.com/renderinc/report-search/internal/report"
	"github.com/renderinc/report-search/internal/storage"
)

func TestNewEngine_RequiresHandles(t *testing.T) {
	_, err := NewEngine(nil, newMemoryStore(t))
	assert.ErrorIs(t, err, ErrIndexRequired)

	idx, err := CreateIndex(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	defer idx.Close()

	_, err = NewEngine(idx, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestOpen_MissingIndexIsStartupError(t *testing.T) {
	store := newMemoryStore(t)
	defer store.Close()

	_, err := Open(filepath.Join(t.TempDir(), "missing"), store)
	require.Error(t, err)
	assert.True(t, IsStartup(err))
}

func TestSearch_ScenarioA_RanksByTermFrequency(t *testing.T) {
	engine, _ := newTestEngine(t, scenarioA())

	records, err := engine.Search(context.Background(), "ketamine")
	require.NoError(t, err)
	assert.Equal(t, []uint32{101, 102}, foreignIDs(records))
	assert.Equal(t, "Ketamine Journey", records[0].Title)
}

func TestSearch_ScenarioA_ExcludedRecordAbsent(t *testing.T) {
	engine, store := newTestEngine(t, scenarioA())
	ctx := context.Background()

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.StoreDocuments)
	assert.Equal(t, uint64(2), stats.IndexDocuments)

	_, err = store.Get(ctx, "0")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	records, err := engine.Search(ctx, "excluded")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearch_ScenarioB_NoMatchesIsEmpty(t *testing.T) {
	engine, _ := newTestEngine(t, scenarioA())

	records, err := engine.Search(context.Background(), "mescaline")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSearch_ScenarioC_DeletedStoreEntryIsOmitted(t *testing.T) {
	engine, store := newTestEngine(t, scenarioA())
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "101"))

	records, err := engine.Search(ctx, "ketamine")
	require.NoError(t, err)
	assert.Equal(t, []uint32{102}, foreignIDs(records))
}

func TestSearch_CorruptStoreEntryIsOmitted(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	engine, store := newTestEngine(t, scenarioA(), WithMetrics(m))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "102", []byte(`{"title": 42`)))

	records, err := engine.Search(ctx, "ketamine")
	require.NoError(t, err)
	assert.Equal(t, []uint32{101}, foreignIDs(records))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedHitsTotal.WithLabelValues(dropDecode)))
}

func TestSearch_ReturnsFullRecord(t *testing.T) {
	gender := "Female"
	original := newRecord(300, "Full Record", "peyote ceremony")
	original.Substance = "Peyote"
	original.Author = "someone"
	original.SubstanceInfo = []report.SubstanceInfo{{Amount: "3 buttons", Method: "oral", Substance: "Peyote", Form: "dried"}}
	original.Meta.Gender = &gender
	original.Meta.Year = u32(1999)
	original.ErowidNotes = report.ErowidNotes{Caution: []string{}, Note: []string{}, Warning: []string{"nausea"}}
	original.PullQuotes = []string{"the desert spoke"}

	engine, _ := newTestEngine(t, []report.Record{original})

	records, err := engine.Search(context.Background(), "peyote")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, &original, records[0])
}

func TestSearch_AtMostDefaultLimit(t *testing.T) {
	var records []report.Record
	for i := uint32(1); i <= 30; i++ {
		records = append(records, newRecord(i, fmt.Sprintf("trip %d", i), "mushrooms"))
	}
	engine, _ := newTestEngine(t, records)

	got, err := engine.Search(context.Background(), "mushrooms")
	require.NoError(t, err)
	assert.Len(t, got, DefaultLimit)
}

func TestSearch_InvalidSyntax(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	engine, _ := newTestEngine(t, scenarioA(), WithMetrics(m))

	records, err := engine.Search(context.Background(), "title:")
	assert.Nil(t, records)
	require.ErrorIs(t, err, ErrQueryParse)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchErrorsTotal.WithLabelValues("parse")))
}

func TestSearch_StoreFailureFailsRequest(t *testing.T) {
	store := newMemoryStore(t)
	path := seedIndex(t, store, scenarioA())

	engine, err := Open(path, &failingStore{Store: store})
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.Search(context.Background(), "ketamine")
	require.ErrorIs(t, err, storage.ErrStoreIO)
}

func TestSearch_ConcurrentCallers(t *testing.T) {
	engine, _ := newTestEngine(t, scenarioA(), WithResolveWorkers(2))

	var wg sync.WaitGroup
	results := make([][]uint32, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			query := "ketamine"
			if i%2 == 1 {
				query = "night"
			}
			records, err := engine.Search(context.Background(), query)
			errs[i] = err
			results[i] = foreignIDs(records)
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		if i%2 == 1 {
			assert.Equal(t, []uint32{102}, results[i])
		} else {
			assert.Equal(t, []uint32{101, 102}, results[i])
		}
	}
}

func TestSearch_CallersGetIndependentSlices(t *testing.T) {
	engine, _ := newTestEngine(t, scenarioA())
	ctx := context.Background()

	first, err := engine.Search(ctx, "ketamine")
	require.NoError(t, err)
	first[0] = nil

	second, err := engine.Search(ctx, "ketamine")
	require.NoError(t, err)
	assert.NotNil(t, second[0])
}

func TestCloneRecords_CallersDoNotShareRecords(t *testing.T) {
	r := newRecord(101, "Ketamine Journey", "ketamine")
	r.PullQuotes = []string{"quote"}
	shared := []*report.Record{&r}

	first := cloneRecords(shared)
	second := cloneRecords(shared)
	require.Len(t, first, 1)

	first[0].Title = "changed"
	first[0].PullQuotes[0] = "changed"
	*first[0].Meta.ForeignID = 5

	assert.Equal(t, "Ketamine Journey", second[0].Title)
	assert.Equal(t, []string{"quote"}, second[0].PullQuotes)
	assert.Equal(t, uint32(101), *second[0].Meta.ForeignID)
	assert.Equal(t, "Ketamine Journey", shared[0].Title)
}
