package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/ragmesh/core"
)

func TestNeedsCitations(t *testing.T) {
	assert.True(t, NeedsCitations("Why does playback stall? Include sources."))
	assert.True(t, NeedsCitations("CITE please"))
	assert.False(t, NeedsCitations("what is the resource usage"))
	assert.False(t, NeedsCitations(""))
}

func TestValidate(t *testing.T) {
	seen := map[string]bool{"doc:media#0": true, "doc:media": true}

	tests := []struct {
		name     string
		user     string
		answer   string
		explicit []string
		code     string
	}{
		{"no sources requested", "why stall?", "buffers underrun", nil, ""},
		{"sources requested and missing", "why stall? sources please", "buffers underrun", nil, core.CodeGuardCitationRequired},
		{"inline citation", "sources?", "buffers underrun (doc:media#0)", nil, ""},
		{"explicit citation", "sources?", "buffers underrun", []string{"doc:media"}, ""},
		{"explicit wins over inline", "sources?", "see (made-up)", []string{"doc:media"}, ""},
		{"unknown explicit", "why?", "x", []string{"doc:other"}, core.CodeGuardCitationUnknownID},
		{"unknown inline", "why?", "see (doc:other#1)", nil, core.CodeGuardCitationUnknownID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.user, tt.answer, tt.explicit, seen)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.code, core.CodeOf(err))
		})
	}
}
