// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

// Package export renders conversation history to shareable files.
package export

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uniagent/uniagent/pkg/history"
	"github.com/uniagent/uniagent/pkg/logger"
)

// Format is a supported export encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// Formats lists the supported encodings.
func Formats() []Format {
	return []Format{FormatJSON, FormatText, FormatMarkdown, FormatHTML}
}

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (json, txt, md, html)", s)
	}
}

// Write renders msgs into dir and returns the created file path. File names
// carry the agent id and a timestamp so exports never clobber each other.
func Write(dir, agentID string, msgs []history.Message, format Format) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.%s", agentID, time.Now().Format("20060102-150405"), format)
	path := filepath.Join(dir, name)

	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = renderJSON(agentID, msgs)
	case FormatText:
		data = renderText(agentID, msgs)
	case FormatMarkdown:
		data = renderMarkdown(agentID, msgs)
	case FormatHTML:
		data, err = renderHTML(agentID, msgs)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	logger.InfoCF("export", "Conversation exported", map[string]interface{}{
		"agent":    agentID,
		"format":   string(format),
		"messages": len(msgs),
		"path":     path,
	})
	return path, nil
}

type jsonExport struct {
	Agent      string        `json:"agent"`
	ExportedAt string        `json:"exported_at"`
	Messages   []jsonMessage `json:"messages"`
}

type jsonMessage struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

func renderJSON(agentID string, msgs []history.Message) ([]byte, error) {
	out := jsonExport{
		Agent:      agentID,
		ExportedAt: time.Now().Format(time.RFC3339),
		Messages:   make([]jsonMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, jsonMessage{
			Role:      m.Role,
			Content:   m.Content,
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return data, nil
}

func renderText(agentID string, msgs []history.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation with %s\nExported %s\n\n", agentID, time.Now().Format("2006-01-02 15:04:05"))
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s:\n%s\n\n", m.CreatedAt.Format("2006-01-02 15:04"), strings.ToUpper(m.Role), m.Content)
	}
	return []byte(b.String())
}

func renderMarkdown(agentID string, msgs []history.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation with %s\n\n_Exported %s_\n\n", agentID, time.Now().Format("2006-01-02 15:04:05"))
	for _, m := range msgs {
		fmt.Fprintf(&b, "## %s (%s)\n\n%s\n\n", capitalize(m.Role), m.CreatedAt.Format("2006-01-02 15:04"), m.Content)
	}
	return []byte(b.String())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var htmlTemplate = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Conversation with {{.Agent}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
.msg { margin: 1rem 0; padding: 0.75rem 1rem; border-radius: 8px; white-space: pre-wrap; }
.user { background: #e8f0fe; }
.assistant { background: #f1f3f4; }
.system { background: #fef7e0; }
.role { font-weight: bold; font-size: 0.85rem; color: #555; margin-bottom: 0.25rem; }
</style>
</head>
<body>
<h1>Conversation with {{.Agent}}</h1>
<p><em>Exported {{.ExportedAt}}</em></p>
{{range .Messages}}<div class="msg {{.Role}}">
<div class="role">{{.Role}} &middot; {{.CreatedAt}}</div>{{.Content}}</div>
{{end}}</body>
</html>
`))

func renderHTML(agentID string, msgs []history.Message) ([]byte, error) {
	data := jsonExport{
		Agent:      agentID,
		ExportedAt: time.Now().Format("2006-01-02 15:04:05"),
		Messages:   make([]jsonMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		data.Messages = append(data.Messages, jsonMessage{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	var b strings.Builder
	if err := htmlTemplate.Execute(&b, data); err != nil {
		return nil, fmt.Errorf("render html export: %w", err)
	}
	return []byte(b.String()), nil
}
