package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32(v uint32) *uint32 { return &v }
func str(v string) *string { return &v }

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		id   *uint32
		want bool
	}{
		{"absent", nil, false},
		{"zero", u32(0), false},
		{"present", u32(101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Record{Meta: Meta{ForeignID: tt.id}}
			assert.Equal(t, tt.want, r.Eligible())
		})
	}
}

func TestKey(t *testing.T) {
	r := &Record{Meta: Meta{ForeignID: u32(4021)}}
	assert.Equal(t, "4021", r.Key())

	assert.Empty(t, (&Record{}).Key())
	assert.Equal(t, "4294967295", KeyFor(^uint32(0)))
}

func TestEncodeDecode_PreservesAllFields(t *testing.T) {
	original := &Record{
		Title:     "Ketamine Journey",
		Substance: "Ketamine",
		Author:    "anon",
		Body:      "ketamine ketamine ketamine",
		SubstanceInfo: []SubstanceInfo{
			{Amount: "50 mg", Method: "insufflated", Substance: "Ketamine", Form: "powder"},
		},
		Meta: Meta{
			Year:      u32(2004),
			ForeignID: u32(101),
			Gender:    str("Male"),
			Age:       u32(23),
			Published: str("Jun 1, 2005"),
			Views:     u32(12345),
		},
		ErowidNotes: ErowidNotes{
			Caution: []string{"mind the dose"},
			Note:    []string{},
			Warning: []string{},
		},
		PullQuotes: []string{"it was a journey"},
	}

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestEncode_UsesExternalFieldNames(t *testing.T) {
	data, err := Encode(&Record{Meta: Meta{ForeignID: u32(7)}})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, name := range []string{"substanceInfo", "erowidNotes", "pullQuotes", "meta"} {
		assert.Contains(t, raw, name)
	}

	var meta map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["meta"], &meta))
	assert.JSONEq(t, "7", string(meta["erowidId"]))
	assert.JSONEq(t, "null", string(meta["year"]))
}

func TestEncodeDecode_AbsentListsAreEmpty(t *testing.T) {
	data, err := Encode(&Record{Title: "sparse", Meta: Meta{ForeignID: u32(9)}})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, "[]", string(raw["substanceInfo"]))
	assert.JSONEq(t, "[]", string(raw["pullQuotes"]))
	assert.JSONEq(t, `{"caution": [], "note": [], "warning": []}`, string(raw["erowidNotes"]))

	decoded, err := Decode([]byte(`{"title": "old", "pullQuotes": null, "erowidNotes": {"note": ["x"]}}`))
	require.NoError(t, err)
	assert.NotNil(t, decoded.SubstanceInfo)
	assert.Empty(t, decoded.SubstanceInfo)
	assert.NotNil(t, decoded.PullQuotes)
	assert.Equal(t, []string{"x"}, decoded.ErowidNotes.Note)
	assert.NotNil(t, decoded.ErowidNotes.Caution)
	assert.NotNil(t, decoded.ErowidNotes.Warning)
}

func TestEncode_DoesNotModifyInput(t *testing.T) {
	r := &Record{Title: "input"}
	_, err := Encode(r)
	require.NoError(t, err)
	assert.Nil(t, r.PullQuotes)
}

func TestClone(t *testing.T) {
	original := &Record{
		Title:         "Ketamine Journey",
		SubstanceInfo: []SubstanceInfo{{Substance: "Ketamine"}},
		Meta:          Meta{ForeignID: u32(101), Gender: str("Male")},
		ErowidNotes:   ErowidNotes{Caution: []string{"mind the dose"}},
		PullQuotes:    []string{"quote"},
	}

	c := original.Clone()
	require.Equal(t, original, c)

	c.Title = "changed"
	c.SubstanceInfo[0].Substance = "changed"
	*c.Meta.ForeignID = 5
	*c.Meta.Gender = "changed"
	c.ErowidNotes.Caution[0] = "changed"
	c.PullQuotes[0] = "changed"

	assert.Equal(t, "Ketamine Journey", original.Title)
	assert.Equal(t, "Ketamine", original.SubstanceInfo[0].Substance)
	assert.Equal(t, uint32(101), *original.Meta.ForeignID)
	assert.Equal(t, "Male", *original.Meta.Gender)
	assert.Equal(t, "mind the dose", original.ErowidNotes.Caution[0])
	assert.Equal(t, "quote", original.PullQuotes[0])
	assert.Nil(t, c.ErowidNotes.Note)
}

func TestDecode_RejectsInvalidUTF8(t *testing.T) {
	_, err := Decode([]byte{'{', 0xff, 0xfe, '}'})
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"title": `))
	assert.Error(t, err)
}
