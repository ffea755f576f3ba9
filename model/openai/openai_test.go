package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/ragmesh/model"
)

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages(model.Request{
		Instructions: "sys",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "q"},
			{Role: model.RoleAssistant, Content: "a"},
			{Role: model.RoleUser, Content: ""},
		},
	})
	assert.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test"; o.Model = "gpt-test" })
	assert.Equal(t, model.Info{Name: "gpt-test", Provider: "openai"}, m.Info())
}
