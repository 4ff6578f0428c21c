package providers

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/uniagent/uniagent/pkg/logger"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// streamChunk is one decoded server-sent event from the completions stream.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamDecoder turns the raw line stream of an open response body into a
// sequence of text fragments, one non-empty delta at a time:
//
//	dec := NewStreamDecoder(resp.Body)
//	defer dec.Close()
//	for dec.Next() {
//	    render(dec.Fragment())
//	}
//
// A stream is consumed exactly once. Decoding ends cleanly on the [DONE]
// sentinel, on finish_reason "stop", or when the source runs out of lines —
// servers are known to close the connection without either signal, and that
// is not an error. Undecodable lines are logged and skipped.
type StreamDecoder struct {
	scanner  *bufio.Scanner
	body     io.Closer
	fragment string
	acc      strings.Builder
	finished bool
	err      error
	skipped  int
}

func NewStreamDecoder(body io.ReadCloser) *StreamDecoder {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &StreamDecoder{
		scanner: scanner,
		body:    body,
	}
}

// Next advances to the next fragment. It returns false when the stream has
// terminated; the accumulated message remains available via Message.
func (d *StreamDecoder) Next() bool {
	if d.finished {
		return false
	}

	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" || !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if data == doneSentinel {
			d.finished = true
			return false
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			d.skipped++
			chunkErr := &MalformedChunkError{Line: data, Err: err}
			logger.WarnCF("stream", "Skipping malformed chunk", map[string]interface{}{
				"error": chunkErr.Error(),
			})
			continue
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			d.fragment = choice.Delta.Content
			d.acc.WriteString(choice.Delta.Content)
			if choice.FinishReason == "stop" {
				d.finished = true
			}
			return true
		}
		if choice.FinishReason == "stop" {
			d.finished = true
			return false
		}
	}

	if err := d.scanner.Err(); err != nil {
		// Mirror "connection simply closed": keep whatever was accumulated
		// and end the sequence instead of poisoning the partial message.
		d.err = err
		logger.ErrorCF("stream", "Stream read error", map[string]interface{}{
			"error": err.Error(),
		})
	}
	d.finished = true
	return false
}

// Fragment returns the fragment produced by the last successful Next call.
func (d *StreamDecoder) Fragment() string {
	return d.fragment
}

// Message returns the concatenation of all fragments emitted so far.
func (d *StreamDecoder) Message() string {
	return d.acc.String()
}

// Err reports a read error that ended the stream early, if any. Termination
// via sentinel, finish reason, or plain EOF leaves it nil.
func (d *StreamDecoder) Err() error {
	return d.err
}

// Skipped reports how many malformed chunks were absorbed.
func (d *StreamDecoder) Skipped() int {
	return d.skipped
}

func (d *StreamDecoder) Close() error {
	d.finished = true
	return d.body.Close()
}
