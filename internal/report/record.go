package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// ErrInvalidEncoding is returned when stored bytes are not valid UTF-8 text.
var ErrInvalidEncoding = errors.New("record is not valid utf-8")

// Record is a single experience report, the unit of storage and of search results
type Record struct {
	Title         string          `json:"title"`
	Substance     string          `json:"substance"`
	Author        string          `json:"author"`
	Body          string          `json:"body"`
	SubstanceInfo []SubstanceInfo `json:"substanceInfo"`
	Meta          Meta            `json:"meta"`
	ErowidNotes   ErowidNotes     `json:"erowidNotes"`
	PullQuotes    []string        `json:"pullQuotes"`
}

// SubstanceInfo describes one substance taken in a report
type SubstanceInfo struct {
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Substance string `json:"substance"`
	Form      string `json:"form"`
}

// Meta holds the optional report metadata. ForeignID is the stable external id.
type Meta struct {
	Year      *uint32 `json:"year"`
	ForeignID *uint32 `json:"erowidId"`
	Gender    *string `json:"gender"`
	Age       *uint32 `json:"age"`
	Published *string `json:"published"`
	Views     *uint32 `json:"views"`
}

// ErowidNotes holds editorial notes attached to a report
type ErowidNotes struct {
	Caution []string `json:"caution"`
	Note    []string `json:"note"`
	Warning []string `json:"warning"`
}

// Eligible reports whether the record carries a non-zero foreign id.
// Records without one are never stored or indexed.
func (r *Record) Eligible() bool {
	return r.Meta.ForeignID != nil && *r.Meta.ForeignID != 0
}

// Key returns the join key shared by the index and the store: the decimal
// form of the foreign id. It is empty for ineligible records.
func (r *Record) Key() string {
	if !r.Eligible() {
		return ""
	}
	return KeyFor(*r.Meta.ForeignID)
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	c := *r
	c.SubstanceInfo = cloneSlice(r.SubstanceInfo)
	c.PullQuotes = cloneSlice(r.PullQuotes)
	c.ErowidNotes = ErowidNotes{
		Caution: cloneSlice(r.ErowidNotes.Caution),
		Note:    cloneSlice(r.ErowidNotes.Note),
		Warning: cloneSlice(r.ErowidNotes.Warning),
	}
	c.Meta = Meta{
		Year:      clonePtr(r.Meta.Year),
		ForeignID: clonePtr(r.Meta.ForeignID),
		Gender:    clonePtr(r.Meta.Gender),
		Age:       clonePtr(r.Meta.Age),
		Published: clonePtr(r.Meta.Published),
		Views:     clonePtr(r.Meta.Views),
	}
	return &c
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// KeyFor formats a foreign id as a store key
func KeyFor(foreignID uint32) string {
	return strconv.FormatUint(uint64(foreignID), 10)
}

// withEmptySequences returns a copy whose absent lists are empty, so
// every list field serializes as [] rather than null
func (r Record) withEmptySequences() Record {
	if r.SubstanceInfo == nil {
		r.SubstanceInfo = []SubstanceInfo{}
	}
	if r.PullQuotes == nil {
		r.PullQuotes = []string{}
	}
	if r.ErowidNotes.Caution == nil {
		r.ErowidNotes.Caution = []string{}
	}
	if r.ErowidNotes.Note == nil {
		r.ErowidNotes.Note = []string{}
	}
	if r.ErowidNotes.Warning == nil {
		r.ErowidNotes.Warning = []string{}
	}
	return r
}

// Encode serializes a record for the document store. Absent lists are
// written as empty arrays.
func Encode(r *Record) ([]byte, error) {
	data, err := json.Marshal(r.withEmptySequences())
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// Decode parses stored bytes back into a record. Lists that are absent or
// null in the stored bytes decode as empty.
func Decode(data []byte) (*Record, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	r = r.withEmptySequences()
	return &r, nil
}
