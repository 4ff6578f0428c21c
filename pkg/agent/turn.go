// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/uniagent/uniagent/pkg/config"
	"github.com/uniagent/uniagent/pkg/history"
	"github.com/uniagent/uniagent/pkg/logger"
	"github.com/uniagent/uniagent/pkg/providers"
)

// Call sends one user message and returns the assistant's turn as a fragment
// sequence. The user message is committed to history before the request goes
// out; the assistant message is committed by Turn.Close, and only when the
// accumulated reply has non-whitespace content. A canceled stream still
// commits whatever arrived, so an interrupted answer is not lost.
//
// Only one call may be in flight per agent.
func (a *Agent) Call(ctx context.Context, apiBase, text string) (*Turn, error) {
	a.mu.Lock()
	if a.state != StateIdle {
		state := a.state
		a.mu.Unlock()
		return nil, fmt.Errorf("agent is busy (%s): one request at a time", state)
	}
	a.state = StateAwaitingResponse
	cfg := a.cfg
	a.mu.Unlock()

	turn, err := a.call(ctx, apiBase, cfg, text)
	if err != nil {
		a.setState(StateIdle)
		return nil, err
	}
	return turn, nil
}

func (a *Agent) call(ctx context.Context, apiBase string, cfg config.AgentConfig, text string) (*Turn, error) {
	expanded, err := ExpandIncludes(text, []string{filepath.Join(a.Dir, "uploads"), "."})
	if err != nil {
		return nil, err
	}

	if err := a.store.Append(ctx, history.Message{Role: "user", Content: expanded}, cfg.MaxHistorySize); err != nil {
		return nil, err
	}
	msgs, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}

	client, err := a.transport(apiBase)
	if err != nil {
		return nil, err
	}

	payload := buildPayload(cfg, msgs, cfg.Stream)
	timeout := config.ModelTimeout(cfg.Model)
	logger.DebugCF("agent", "Sending request", map[string]interface{}{
		"agent":    a.ID,
		"model":    cfg.Model,
		"stream":   cfg.Stream,
		"messages": len(msgs),
	})

	resp, err := client.Send(ctx, payload, timeout)
	if err != nil {
		return nil, err
	}

	if cfg.Stream {
		return &Turn{
			agent: a,
			model: cfg.Model,
			dec:   providers.NewStreamDecoder(resp.Body),
		}, nil
	}

	text, err = providers.ParseCompletion(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		// An empty reply is a recognized state, not a failure: the turn
		// yields no fragments and Close commits nothing.
		if errors.Is(err, providers.ErrEmptyResponse) {
			logger.WarnC("agent", "Response carried no content, nothing committed")
			return &Turn{agent: a, model: cfg.Model, textDone: true}, nil
		}
		return nil, err
	}
	return &Turn{
		agent: a,
		model: cfg.Model,
		text:  text,
	}, nil
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Turn is one assistant reply being consumed. For streaming calls each Next
// yields one fragment as it arrives; for non-streaming calls the whole reply
// is a single fragment. Close is mandatory and performs the commit.
type Turn struct {
	agent *Agent
	model string

	dec      *providers.StreamDecoder
	text     string
	textDone bool

	closed bool
}

func (t *Turn) Next() bool {
	if t.dec != nil {
		return t.dec.Next()
	}
	if t.textDone {
		return false
	}
	t.textDone = true
	return true
}

func (t *Turn) Fragment() string {
	if t.dec != nil {
		return t.dec.Fragment()
	}
	return t.text
}

// Message returns everything received so far.
func (t *Turn) Message() string {
	if t.dec != nil {
		return t.dec.Message()
	}
	return t.text
}

// Err reports a stream read fault that ended the turn early.
func (t *Turn) Err() error {
	if t.dec != nil {
		return t.dec.Err()
	}
	return nil
}

// Close commits the accumulated assistant message when it has content and
// returns the agent to idle. Safe to call once whether the turn was fully
// consumed, aborted, or failed mid-stream.
func (t *Turn) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	if t.dec != nil {
		_ = t.dec.Close()
	}

	msg := t.Message()
	if strings.TrimSpace(msg) == "" {
		t.agent.setState(StateIdle)
		logger.DebugC("agent", "Empty reply, nothing committed")
		return nil
	}

	t.agent.setState(StateCommitting)
	// Commit under a fresh context: an aborted turn still persists its
	// partial reply.
	err := t.agent.store.Append(context.Background(), history.Message{
		Role:     "assistant",
		Content:  msg,
		Metadata: map[string]string{"model": t.model},
	}, t.agent.Config().MaxHistorySize)
	t.agent.setState(StateIdle)
	if err != nil {
		return fmt.Errorf("commit assistant message: %w", err)
	}
	return nil
}
