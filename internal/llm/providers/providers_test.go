package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-engine/internal/common"
)

func TestBuildRegistry(t *testing.T) {
	cfg := common.LLMConfig{Oracles: []common.OracleConfig{
		{Name: "gpt", Provider: "openai", APIKey: "k", RatePerMinute: 60},
		{Name: "claude", Provider: "anthropic", APIKey: "k"},
		{Name: "local", Provider: "ollama", BaseURL: "http://localhost:11434"},
	}}
	reg, err := BuildRegistry(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt", "claude", "local"}, reg.Names())
	o, ok := reg.Get("claude")
	require.True(t, ok)
	assert.Equal(t, "claude", o.Name())
}

func TestBuildRegistryErrors(t *testing.T) {
	_, err := BuildRegistry(common.LLMConfig{Oracles: []common.OracleConfig{{Name: "x", Provider: "cohere"}}}, nil, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = BuildRegistry(common.LLMConfig{Oracles: []common.OracleConfig{
		{Name: "dup", Provider: "ollama"},
		{Name: "dup", Provider: "ollama"},
	}}, nil, nil)
	assert.Error(t, err)
}
