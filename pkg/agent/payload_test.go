package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniagent/uniagent/pkg/config"
	"github.com/uniagent/uniagent/pkg/history"
)

func TestBuildPayloadStandardFormat(t *testing.T) {
	cfg := config.DefaultAgentConfig("gpt-4.1")
	cfg.SystemPrompt = "be brief"
	msgs := []history.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}

	payload := buildPayload(cfg, msgs, true)

	assert.Equal(t, "gpt-4.1", payload["model"])
	assert.Equal(t, true, payload["stream"])
	assert.Contains(t, payload, "max_tokens")
	assert.NotContains(t, payload, "max_completion_tokens")
	assert.NotContains(t, payload, "response_format")

	wire := payload["messages"].([]map[string]interface{})
	require.Len(t, wire, 3)
	assert.Equal(t, "system", wire[0]["role"])
	assert.Equal(t, "be brief", wire[0]["content"])
	assert.Equal(t, "hello", wire[1]["content"])
}

func TestBuildPayloadStructuredFormat(t *testing.T) {
	cfg := config.DefaultAgentConfig("gpt-4.1-mini")
	msgs := []history.Message{{Role: "user", Content: "hello"}}

	payload := buildPayload(cfg, msgs, false)

	assert.NotContains(t, payload, "max_tokens")
	assert.Contains(t, payload, "max_completion_tokens")
	assert.Equal(t, map[string]interface{}{"type": "text"}, payload["response_format"])
	assert.NotContains(t, payload, "stream")

	wire := payload["messages"].([]map[string]interface{})
	require.Len(t, wire, 1)
	parts := wire[0]["content"].([]map[string]interface{})
	require.Len(t, parts, 1)
	assert.Equal(t, "text", parts[0]["type"])
	assert.Equal(t, "hello", parts[0]["text"])
}

func TestBuildPayloadNoSystemPrompt(t *testing.T) {
	cfg := config.DefaultAgentConfig("gpt-4.1")
	payload := buildPayload(cfg, []history.Message{{Role: "user", Content: "x"}}, true)
	wire := payload["messages"].([]map[string]interface{})
	require.Len(t, wire, 1)
	assert.Equal(t, "user", wire[0]["role"])
}
