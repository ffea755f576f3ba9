package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/ragmesh/model"
)

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages([]model.Message{
		{Role: model.RoleSystem, Content: "be terse"},
		{Role: model.RoleUser, Content: "q"},
		{Role: model.RoleAssistant, Content: "a"},
		{Role: "tool", Content: "obs"},
		{Role: model.RoleUser, Content: ""},
	})
	assert.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
}

func TestSystemBlocks(t *testing.T) {
	blocks := systemBlocks(model.Request{
		Instructions: "root",
		Messages:     []model.Message{{Role: model.RoleSystem, Content: "extra"}, {Role: model.RoleUser, Content: "q"}},
	})
	assert.Len(t, blocks, 2)
	assert.Equal(t, "root", blocks[0].Text)
	assert.Equal(t, "extra", blocks[1].Text)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test"; o.Model = "claude-test" })
	assert.Equal(t, model.Info{Name: "claude-test", Provider: "anthropic"}, m.Info())
}
