// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/uniagent/uniagent/pkg/config"
	"github.com/uniagent/uniagent/pkg/credentials"
	"github.com/uniagent/uniagent/pkg/history"
	"github.com/uniagent/uniagent/pkg/logger"
	"github.com/uniagent/uniagent/pkg/providers"
)

// State is the conversation lifecycle of an agent. Exactly one request may be
// in flight at a time.
type State int

const (
	// StateIdle means no request is in flight; new turns may start.
	StateIdle State = iota
	// StateAwaitingResponse means a request was sent and fragments are being
	// consumed.
	StateAwaitingResponse
	// StateCommitting means the assistant turn is being persisted.
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateCommitting:
		return "committing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var subdirs = []string{"backups", "logs", "exports", "uploads", "state"}

// Agent owns one conversation: its directory tree, configuration, persistent
// history, and the transport used to talk to the API.
type Agent struct {
	ID  string
	Dir string

	cfg    config.AgentConfig
	store  *history.Store
	client *providers.Client

	mu    sync.Mutex
	state State
}

// Create sets up a new agent directory with default configuration. It fails
// if the agent already exists.
func Create(agentsRoot, id, model string) (*Agent, error) {
	if !config.ValidAgentID(id) {
		return nil, fmt.Errorf("invalid agent id %q: use letters, digits, '-' and '_'", id)
	}
	dir := filepath.Join(agentsRoot, id)
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err == nil {
		return nil, fmt.Errorf("agent %q already exists", id)
	}
	if err := ensureDirs(dir); err != nil {
		return nil, err
	}
	if err := config.SaveAgentConfig(dir, config.DefaultAgentConfig(model)); err != nil {
		return nil, fmt.Errorf("write agent config: %w", err)
	}
	logger.InfoCF("agent", "Agent created", map[string]interface{}{
		"agent": id,
		"model": model,
	})
	return Open(agentsRoot, id)
}

// Open loads an existing agent. The transport is built lazily on the first
// call so read-only commands work without an API key.
func Open(agentsRoot, id string) (*Agent, error) {
	if !config.ValidAgentID(id) {
		return nil, fmt.Errorf("invalid agent id %q", id)
	}
	dir := filepath.Join(agentsRoot, id)
	cfg, err := config.LoadAgentConfig(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("agent %q not found: run onboard first", id)
		}
		return nil, err
	}
	if err := ensureDirs(dir); err != nil {
		return nil, err
	}

	store, err := history.Open(dir)
	if err != nil {
		return nil, err
	}

	return &Agent{
		ID:    id,
		Dir:   dir,
		cfg:   cfg,
		store: store,
	}, nil
}

func ensureDirs(dir string) error {
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("create agent dir %s: %w", sub, err)
		}
	}
	return nil
}

// List returns the agent ids found under agentsRoot.
func List(agentsRoot string) ([]string, error) {
	entries, err := os.ReadDir(agentsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agents dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || !config.ValidAgentID(e.Name()) {
			continue
		}
		if _, err := os.Stat(filepath.Join(agentsRoot, e.Name(), "config.yaml")); err == nil {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func (a *Agent) Close() error {
	return a.store.Close()
}

func (a *Agent) Config() config.AgentConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// State reports the current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// UpdateConfig validates and persists a new configuration.
func (a *Agent) UpdateConfig(cfg config.AgentConfig) error {
	if issues := cfg.Validate(); len(issues) > 0 {
		return fmt.Errorf("invalid config: %v", issues)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateIdle {
		return fmt.Errorf("cannot change config while %s", a.state)
	}
	if err := config.SaveAgentConfig(a.Dir, cfg); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// SwitchModel changes the model, refreshing the token limit from the
// registry, and drops the cached transport so the next call rebuilds it.
func (a *Agent) SwitchModel(model string) error {
	if !config.IsValidModel(model) {
		return fmt.Errorf("unknown model %q, available: %v", model, config.ListModels())
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateIdle {
		return fmt.Errorf("cannot switch model while %s", a.state)
	}
	info, _ := config.GetModelInfo(model)
	a.cfg.Model = model
	a.cfg.MaxTokens = info.MaxTokens
	a.client = nil
	if err := config.SaveAgentConfig(a.Dir, a.cfg); err != nil {
		return err
	}
	logger.InfoCF("agent", "Model switched", map[string]interface{}{
		"agent": a.ID,
		"model": model,
	})
	return nil
}

// AddMessage appends one turn to the history, trimming to the retention
// window in the same transaction.
func (a *Agent) AddMessage(ctx context.Context, role, content string, meta map[string]string) error {
	a.mu.Lock()
	maxSize := a.cfg.MaxHistorySize
	a.mu.Unlock()
	return a.store.Append(ctx, history.Message{
		Role:     role,
		Content:  content,
		Metadata: meta,
	}, maxSize)
}

func (a *Agent) History(ctx context.Context) ([]history.Message, error) {
	return a.store.List(ctx)
}

func (a *Agent) Search(ctx context.Context, query string, limit int) ([]history.Message, error) {
	return a.store.Search(ctx, query, limit)
}

func (a *Agent) Stats(ctx context.Context) (history.Stats, error) {
	return a.store.Stats(ctx)
}

// ClearHistory wipes the conversation after taking a safety backup.
func (a *Agent) ClearHistory(ctx context.Context, maxBackups int) (int, error) {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return 0, fmt.Errorf("cannot clear history while %s", a.state)
	}
	a.mu.Unlock()

	if _, err := a.Backup(ctx, maxBackups); err != nil {
		return 0, fmt.Errorf("pre-clear backup: %w", err)
	}
	return a.store.Clear(ctx)
}

// Backup snapshots the history database into the agent's backups directory.
func (a *Agent) Backup(ctx context.Context, keep int) (string, error) {
	return a.store.Backup(ctx, filepath.Join(a.Dir, "backups"), keep)
}

// transport returns the cached client, building it from resolved credentials
// on first use.
func (a *Agent) transport(apiBase string) (*providers.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	key, err := credentials.Resolve(a.Dir, a.cfg.Model)
	if err != nil {
		return nil, err
	}
	client, err := providers.NewClient(key, apiBase, os.Getenv("HTTPS_PROXY"))
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}
