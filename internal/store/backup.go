package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrBackupExists is returned when the backup file for the current minute
// already exists.
var ErrBackupExists = errors.New("backup already exists")

// BackupName returns the backup file name for the database at dbPath:
// <name>-backup-V<scheme>-<yyyymmdd-hhmm>.db
func BackupName(dbPath, scheme string, at time.Time) string {
	base := strings.TrimSuffix(dbPath, filepath.Ext(dbPath))
	return fmt.Sprintf("%s-backup-V%s-%s.db", base, scheme, at.Format("20060102-1504"))
}

// Backup copies the database file next to itself and returns the backup
// path. The database is checkpointed first so the copy is complete.
func (s *Store) Backup(ctx context.Context) (string, error) {
	scheme, err := s.MetaValue(ctx, KeyDatabaseSchemeVersion)
	if err != nil {
		return "", err
	}
	if scheme == "" {
		scheme = fmt.Sprint(SchemeVersion)
	}
	target := BackupName(s.path, scheme, time.Now())

	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("backup %s: %w", target, ErrBackupExists)
	}

	// No-op outside WAL mode.
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(FULL)`); err != nil {
		s.logger.Debug().Err(err).Msg("wal checkpoint before backup")
	}

	if err := copyFile(s.path, target); err != nil {
		return "", fmt.Errorf("backup database: %w", err)
	}

	s.logger.Info().Str("backup", target).Msg("database backup written")
	return target, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
