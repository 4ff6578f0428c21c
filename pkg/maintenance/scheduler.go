// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

// Package maintenance runs periodic housekeeping while the gateway is up,
// currently a cron-scheduled rolling backup of every agent's history.
package maintenance

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"github.com/uniagent/uniagent/pkg/agent"
	"github.com/uniagent/uniagent/pkg/config"
	"github.com/uniagent/uniagent/pkg/history"
	"github.com/uniagent/uniagent/pkg/logger"
)

// Scheduler fires a backup sweep whenever the configured cron expression is
// due, checking once a minute.
type Scheduler struct {
	agentsDir string
	cronExpr  string
	keep      int
	gron      *gronx.Gronx
}

func NewScheduler(cfg *config.Config) (*Scheduler, error) {
	expr := cfg.Maintenance.BackupCron
	g := gronx.New()
	if expr != "" && !g.IsValid(expr) {
		return nil, fmt.Errorf("invalid backup_cron expression %q", expr)
	}
	return &Scheduler{
		agentsDir: cfg.AgentsPath(),
		cronExpr:  expr,
		keep:      cfg.Maintenance.MaxBackups,
		gron:      g,
	}, nil
}

// Run blocks until ctx ends. A disabled schedule (empty expression) returns
// immediately.
func (s *Scheduler) Run(ctx context.Context) {
	if s.cronExpr == "" {
		logger.InfoC("maintenance", "Backup schedule disabled")
		return
	}
	logger.InfoCF("maintenance", "Backup scheduler started", map[string]interface{}{
		"cron": s.cronExpr,
		"keep": s.keep,
	})

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoC("maintenance", "Backup scheduler stopped")
			return
		case tick := <-ticker.C:
			due, err := s.gron.IsDue(s.cronExpr, tick)
			if err != nil {
				logger.ErrorCF("maintenance", "Cron evaluation failed", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			if due {
				s.Sweep(ctx)
			}
		}
	}
}

// Sweep backs up every agent's history once. Failures are logged per agent so
// one broken database does not starve the rest.
func (s *Scheduler) Sweep(ctx context.Context) {
	ids, err := agent.List(s.agentsDir)
	if err != nil {
		logger.ErrorCF("maintenance", "Backup sweep failed to list agents", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for _, id := range ids {
		agentDir := filepath.Join(s.agentsDir, id)
		store, err := history.Open(agentDir)
		if err != nil {
			logger.ErrorCF("maintenance", "Backup sweep skipping agent", map[string]interface{}{
				"agent": id,
				"error": err.Error(),
			})
			continue
		}
		path, err := store.Backup(ctx, filepath.Join(agentDir, "backups"), s.keep)
		_ = store.Close()
		if err != nil {
			logger.ErrorCF("maintenance", "Backup failed", map[string]interface{}{
				"agent": id,
				"error": err.Error(),
			})
			continue
		}
		logger.InfoCF("maintenance", "Backup written", map[string]interface{}{
			"agent": id,
			"path":  path,
		})
	}
}
