package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleDoc struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Participants []string `json:"participants"`
	Archived     bool     `json:"archived"`
	Count        int      `json:"count"`
}

func TestMatch(t *testing.T) {
	doc, err := Encode(sampleDoc{ID: "t1", Kind: "direct", Participants: []string{"a", "b"}, Count: 3})
	require.NoError(t, err)

	assert.True(t, Match(doc, nil))
	assert.True(t, Match(doc, []Filter{Eq("kind", "direct")}))
	assert.True(t, Match(doc, []Filter{Eq("count", 3)}))
	assert.True(t, Match(doc, []Filter{Eq("archived", false)}))
	assert.True(t, Match(doc, []Filter{ArrayContains("participants", "b")}))
	assert.True(t, Match(doc, []Filter{In("kind", "report", "direct")}))

	assert.False(t, Match(doc, []Filter{Eq("kind", "report")}))
	assert.False(t, Match(doc, []Filter{ArrayContains("participants", "c")}))
	assert.False(t, Match(doc, []Filter{ArrayContains("kind", "direct")}))
	assert.False(t, Match(doc, []Filter{In("kind", "report")}))
	assert.False(t, Match(doc, []Filter{Eq("kind", "direct"), Eq("archived", true)}))
}

func TestApplyArrayOps(t *testing.T) {
	doc := Document{"readBy": []any{"a", "b"}}

	Apply(doc, []Update{ArrayUnion("readBy", "b", "c", "c")})
	assert.Equal(t, []any{"a", "b", "c"}, doc["readBy"])

	Apply(doc, []Update{ArrayRemove("readBy", "a", "z")})
	assert.Equal(t, []any{"b", "c"}, doc["readBy"])

	Apply(doc, []Update{ArrayUnion("deletedBy", "x")})
	assert.Equal(t, []any{"x"}, doc["deletedBy"])

	Apply(doc, []Update{ArrayRemove("missing", "x")})
	assert.Equal(t, []any{}, doc["missing"])
}

func TestApplySetUnset(t *testing.T) {
	doc := Document{"a": "1"}
	Apply(doc, []Update{Set("readBy", []string{"s"}), Set("n", 2), Unset("a"), Set("text", nil)})
	assert.Equal(t, []any{"s"}, doc["readBy"])
	assert.Equal(t, float64(2), doc["n"])
	assert.NotContains(t, doc, "a")
	v, ok := doc["text"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestDecodeRoundTrip(t *testing.T) {
	in := sampleDoc{ID: "x", Kind: "report", Participants: []string{"p", "q"}, Archived: true, Count: 7}
	doc, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, "x", doc.ID())

	var out sampleDoc
	require.NoError(t, doc.Decode(&out))
	assert.Equal(t, in, out)
}

func TestEncodeRejectsNonObject(t *testing.T) {
	_, err := Encode([]string{"a"})
	assert.Error(t, err)
}

func TestTracker(t *testing.T) {
	tr := NewTracker([]Filter{ArrayContains("participants", "a")})

	_, ok := tr.Observe("1", Document{"participants": []any{"b"}})
	assert.False(t, ok)

	ch, ok := tr.Observe("1", Document{"participants": []any{"a", "b"}})
	require.True(t, ok)
	assert.Equal(t, ChangeAdded, ch.Type)

	ch, ok = tr.Observe("1", Document{"participants": []any{"a", "b"}, "x": "y"})
	require.True(t, ok)
	assert.Equal(t, ChangeModified, ch.Type)

	ch, ok = tr.Observe("1", Document{"participants": []any{"b"}})
	require.True(t, ok)
	assert.Equal(t, ChangeRemoved, ch.Type)
	assert.Equal(t, "y", ch.Doc["x"])

	_, ok = tr.Observe("1", nil)
	assert.False(t, ok)
}
