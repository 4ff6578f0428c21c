package maintenance

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/uniagent/uniagent/pkg/agent"
	"github.com/uniagent/uniagent/pkg/config"
	"github.com/uniagent/uniagent/pkg/history"
)

func TestNewSchedulerValidatesCron(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Maintenance.BackupCron = "not a cron"
	if _, err := NewScheduler(cfg); err == nil {
		t.Error("expected error for invalid cron expression")
	}

	cfg.Maintenance.BackupCron = "0 * * * *"
	if _, err := NewScheduler(cfg); err != nil {
		t.Errorf("hourly expression should be valid: %v", err)
	}

	cfg.Maintenance.BackupCron = ""
	if _, err := NewScheduler(cfg); err != nil {
		t.Errorf("empty expression disables the sweep, not an error: %v", err)
	}
}

func TestSweepBacksUpAllAgents(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Agents.Dir = root
	cfg.Maintenance.MaxBackups = 3

	ctx := context.Background()
	for _, id := range []string{"one", "two"} {
		a, err := agent.Create(root, id, "gpt-4.1")
		if err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
		if err := a.AddMessage(ctx, "user", "hello from "+id, nil); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
		a.Close()
	}

	s, err := NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Sweep(ctx)

	for _, id := range []string{"one", "two"} {
		backups, err := history.ListBackups(filepath.Join(root, id, "backups"))
		if err != nil {
			t.Fatalf("ListBackups %s: %v", id, err)
		}
		if len(backups) != 1 {
			t.Errorf("agent %s: expected 1 backup, got %d", id, len(backups))
		}
	}
}
