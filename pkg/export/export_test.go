package export

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/uniagent/uniagent/pkg/history"
)

func sampleMessages() []history.Message {
	at := time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)
	return []history.Message{
		{Role: "user", Content: "what is Go?", CreatedAt: at},
		{Role: "assistant", Content: "A programming language.", Metadata: map[string]string{"model": "gpt-4.1"}, CreatedAt: at.Add(time.Second)},
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"json", "TXT", " md ", "html"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q): %v", s, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, "demo", sampleMessages(), FormatJSON)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	var out struct {
		Agent    string `json:"agent"`
		Messages []struct {
			Role     string            `json:"role"`
			Content  string            `json:"content"`
			Metadata map[string]string `json:"metadata"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if out.Agent != "demo" || len(out.Messages) != 2 {
		t.Errorf("unexpected export: %+v", out)
	}
	if out.Messages[1].Metadata["model"] != "gpt-4.1" {
		t.Errorf("metadata lost in export: %+v", out.Messages[1])
	}
}

func TestWriteTextAndMarkdown(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, "demo", sampleMessages(), FormatText)
	if err != nil {
		t.Fatalf("Write txt: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "USER:") || !strings.Contains(string(data), "what is Go?") {
		t.Errorf("unexpected txt export:\n%s", data)
	}

	path, err = Write(dir, "demo", sampleMessages(), FormatMarkdown)
	if err != nil {
		t.Fatalf("Write md: %v", err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "## Assistant") {
		t.Errorf("unexpected md export:\n%s", data)
	}
}

func TestWriteHTMLEscapes(t *testing.T) {
	dir := t.TempDir()
	msgs := []history.Message{
		{Role: "user", Content: "<script>alert(1)</script>", CreatedAt: time.Now()},
	}
	path, err := Write(dir, "demo", msgs, FormatHTML)
	if err != nil {
		t.Fatalf("Write html: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "<script>alert") {
		t.Error("HTML export must escape message content")
	}
	if !strings.Contains(string(data), "&lt;script&gt;") {
		t.Errorf("expected escaped content, got:\n%s", data)
	}
}
