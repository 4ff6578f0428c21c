package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const backupTimeLayout = "20060102-150405"

// Backup writes a consistent snapshot of the history database into backupDir
// and prunes old snapshots down to keep. VACUUM INTO captures committed WAL
// content, which a plain file copy would miss. Returns the snapshot path.
func (s *Store) Backup(ctx context.Context, backupDir string, keep int) (string, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("history-%s.db", time.Now().Format(backupTimeLayout))
	target := filepath.Join(backupDir, name)
	if _, err := os.Stat(target); err == nil {
		// Same-second rerun. VACUUM INTO refuses to overwrite.
		_ = os.Remove(target)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, target); err != nil {
		return "", fmt.Errorf("snapshot history db: %w", err)
	}

	if err := pruneBackups(backupDir, keep); err != nil {
		return "", err
	}
	return target, nil
}

// ListBackups returns existing snapshot paths, newest first.
func ListBackups(backupDir string) ([]string, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "history-") && strings.HasSuffix(name, ".db") {
			out = append(out, filepath.Join(backupDir, name))
		}
	}
	// Timestamped names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func pruneBackups(backupDir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	backups, err := ListBackups(backupDir)
	if err != nil {
		return err
	}
	for _, path := range backups[min(keep, len(backups)):] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("prune backup %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
