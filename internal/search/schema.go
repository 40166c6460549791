package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Index field names. The writer and every reader use this schema.
const (
	FieldID    = "id"
	FieldTitle = "title"
	FieldBody  = "body"
)

// SchemaVersion is written into every index this package creates.
// Changing the mapping requires bumping it and a full reindex.
const SchemaVersion = "report-schema/v1"

var schemaKey = []byte("_report_schema")

// IndexedDocument is the projection of a record held in the index:
// only the searchable and display fields.
type IndexedDocument struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// buildIndexMapping declares id and title as indexed+stored, body as
// indexed only. All three feed the _all field, which is the default
// field for query-string searches.
func buildIndexMapping() mapping.IndexMapping {
	idFieldMapping := bleve.NewTextFieldMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()

	bodyFieldMapping := bleve.NewTextFieldMapping()
	bodyFieldMapping.Store = false

	docMapping := bleve.NewDocumentStaticMapping()
	docMapping.AddFieldMappingsAt(FieldID, idFieldMapping)
	docMapping.AddFieldMappingsAt(FieldTitle, titleFieldMapping)
	docMapping.AddFieldMappingsAt(FieldBody, bodyFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	indexMapping.IndexDynamic = false
	indexMapping.StoreDynamic = false
	indexMapping.DocValuesDynamic = false

	return indexMapping
}
