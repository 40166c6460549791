package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSource(t *testing.T) {
	src := `[
		{"title": "Ketamine Journey", "body": "k", "meta": {"erowidId": 101, "year": 2004}},
		{"title": "No Id", "body": "x", "meta": {}}
	]`

	records, err := ReadSource(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "101", records[0].Key())
	assert.Equal(t, uint32(2004), *records[0].Meta.Year)
	assert.False(t, records[1].Eligible())
}

func TestReadSource_EmptyArray(t *testing.T) {
	records, err := ReadSource(strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadSource_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ``},
		{"truncated", `[{"title": "a"`},
		{"object", `{"title": "a"}`},
		{"null", `null`},
		{"wrong type", `[{"meta": {"erowidId": "abc"}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSource(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, ErrImportSource)
		})
	}
}

func TestReadSourceFile_Missing(t *testing.T) {
	_, err := ReadSourceFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrImportSource)
}

func TestReadSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title": "t", "meta": {"erowidId": 7}}]`), 0o644))

	records, err := ReadSourceFile(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].Key())
}
