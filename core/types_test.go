package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParentOf(t *testing.T) {
	assert.Equal(t, "doc:media", ParentOf("doc:media#0-10"))
	assert.Equal(t, "doc:media", ParentOf("doc:media"))
	assert.Equal(t, "a", ParentOf("a#1#2"))
}

func TestCitation_Valid(t *testing.T) {
	text := "• decoding stalls (doc:media#0)"
	c := Citation{ID: "doc:media#0", Offset: [2]int{21, 32}}
	assert.True(t, c.Valid(text))

	c.Offset = [2]int{20, 32}
	assert.False(t, c.Valid(text))

	c.Offset = [2]int{21, 99}
	assert.False(t, c.Valid(text))
}

func TestCloneMeta(t *testing.T) {
	src := map[string]any{"title": "Media"}
	out := CloneMeta(src)
	out["title"] = "changed"

	assert.Equal(t, "Media", src["title"])
	assert.NotNil(t, CloneMeta(nil))
}
