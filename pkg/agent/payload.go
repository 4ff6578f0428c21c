package agent

import (
	"github.com/uniagent/uniagent/pkg/config"
	"github.com/uniagent/uniagent/pkg/history"
)

// buildPayload assembles the chat-completions request body. The message list
// is the system prompt (when configured) followed by the retained history;
// the pending user message is already appended to msgs by the caller.
//
// Models registered with the structured API format take max_completion_tokens
// plus an explicit response_format and wrap message content in typed parts;
// everything else uses the plain max_tokens shape.
func buildPayload(cfg config.AgentConfig, msgs []history.Message, stream bool) map[string]interface{} {
	format := config.ModelAPIFormat(cfg.Model)

	wire := make([]map[string]interface{}, 0, len(msgs)+1)
	if cfg.SystemPrompt != "" {
		wire = append(wire, wireMessage("system", cfg.SystemPrompt, format))
	}
	for _, m := range msgs {
		wire = append(wire, wireMessage(m.Role, m.Content, format))
	}

	payload := map[string]interface{}{
		"model":             cfg.Model,
		"messages":          wire,
		"temperature":       cfg.Temperature,
		"top_p":             cfg.TopP,
		"frequency_penalty": cfg.FrequencyPenalty,
		"presence_penalty":  cfg.PresencePenalty,
	}
	if stream {
		payload["stream"] = true
	}

	switch format {
	case config.FormatStructured:
		payload["max_completion_tokens"] = cfg.MaxTokens
		responseType := cfg.ResponseFormat
		if responseType == "" {
			responseType = "text"
		}
		payload["response_format"] = map[string]interface{}{"type": responseType}
	default:
		payload["max_tokens"] = cfg.MaxTokens
	}
	return payload
}

func wireMessage(role, content string, format config.APIFormat) map[string]interface{} {
	if format == config.FormatStructured {
		return map[string]interface{}{
			"role": role,
			"content": []map[string]interface{}{
				{"type": "text", "text": content},
			},
		}
	}
	return map[string]interface{}{
		"role":    role,
		"content": content,
	}
}
