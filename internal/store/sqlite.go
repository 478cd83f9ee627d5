package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/valentindosimont/spoolmanager/internal/spool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemeVersion is the database scheme version written by this build.
const SchemeVersion = 7

// Metadata keys.
const (
	KeyPluginVersion         = "pluginVersion"
	KeyDatabaseSchemeVersion = "databaseSchemeVersion"
)

// Store handles SQLite persistence of spools and tool assignments.
type Store struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

var _ spool.Repository = (*Store)(nil)

// New opens (creating if needed) the database at the given path and applies
// migrations.
func New(dbPath string, logger zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps version checks and transactions simple.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:     db,
		path:   dbPath,
		logger: logger.With().Str("component", "store").Logger(),
	}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store.logger.Info().Str("path", dbPath).Msg("database ready")
	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) migrate() error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		schema, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(schema)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM spo_pluginmetadatamodel WHERE "key" = ?`,
		KeyDatabaseSchemeVersion).Scan(&n); err != nil {
		return fmt.Errorf("check scheme version: %w", err)
	}
	if n == 0 {
		if _, err := s.db.Exec(`INSERT INTO spo_pluginmetadatamodel ("key", "value") VALUES (?, ?)`,
			KeyDatabaseSchemeVersion, strconv.Itoa(SchemeVersion)); err != nil {
			return fmt.Errorf("write scheme version: %w", err)
		}
	}

	return nil
}

// MetaValue returns a metadata value, or "" when the key is unset.
func (s *Store) MetaValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT "value" FROM spo_pluginmetadatamodel WHERE "key" = ?
		ORDER BY databaseId DESC LIMIT 1
	`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, nil
}

// SetMetaValue writes a metadata value.
func (s *Store) SetMetaValue(ctx context.Context, key, value string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE spo_pluginmetadatamodel SET "value" = ?, updated = CURRENT_TIMESTAMP WHERE "key" = ?
	`, value, key)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO spo_pluginmetadatamodel ("key", "value") VALUES (?, ?)
	`, key, value); err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// Meta describes the database.
type Meta struct {
	Path          string
	SchemeVersion string
	SpoolCount    int
}

// Meta returns the database location, scheme version and spool count.
func (s *Store) Meta(ctx context.Context) (*Meta, error) {
	version, err := s.MetaValue(ctx, KeyDatabaseSchemeVersion)
	if err != nil {
		return nil, err
	}
	count, err := s.CountSpools(ctx, spool.Query{})
	if err != nil {
		return nil, err
	}
	return &Meta{Path: s.path, SchemeVersion: version, SpoolCount: count}, nil
}

// LoadSpool retrieves a spool by ID
func (s *Store) LoadSpool(ctx context.Context, id int64) (*spool.Spool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+spoolColumns+` FROM spo_spoolmodel WHERE databaseId = ?`, id)
	sp, err := scanSpool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, spool.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load spool %d: %w", id, err)
	}
	return sp, nil
}

// SaveSpool inserts a new spool or updates an existing one after checking
// that nobody else modified it since it was loaded.
func (s *Store) SaveSpool(ctx context.Context, sp *spool.Spool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save spool: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	if sp.ID == 0 {
		if err := insertSpool(ctx, tx, sp, now); err != nil {
			return err
		}
	} else {
		var stored sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT version FROM spo_spoolmodel WHERE databaseId = ?`, sp.ID).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return spool.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read spool version: %w", err)
		}
		storedVersion := 1
		if stored.Valid {
			storedVersion = int(stored.Int64)
		}
		if storedVersion != sp.CurrentVersion() {
			return fmt.Errorf("save spool %d (have v%d, stored v%d): %w",
				sp.ID, sp.CurrentVersion(), storedVersion, spool.ErrVersionConflict)
		}
		if err := updateSpool(ctx, tx, sp, sp.CurrentVersion()+1, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save spool: %w", err)
	}
	return nil
}

// DeleteSpool deletes a spool and releases any tool it was assigned to.
func (s *Store) DeleteSpool(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete spool: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM spo_spoolmodel WHERE databaseId = ?`, id)
	if err != nil {
		return fmt.Errorf("delete spool %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return spool.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM spo_toolassignment WHERE spoolId = ?`, id); err != nil {
		return fmt.Errorf("release tools of spool %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete spool: %w", err)
	}
	return nil
}

// ListSpools returns the page of spools selected by q.
func (s *Store) ListSpools(ctx context.Context, q spool.Query) ([]*spool.Spool, error) {
	where, args := buildWhere(q)
	query := `SELECT ` + spoolColumns + ` FROM spo_spoolmodel` + where + buildOrder(q)
	query, args = appendPaging(query, args, q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list spools: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var spools []*spool.Spool
	for rows.Next() {
		sp, err := scanSpool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spool: %w", err)
		}
		spools = append(spools, sp)
	}

	return spools, rows.Err()
}

// CountSpools counts the spools matching q's filters, ignoring paging.
func (s *Store) CountSpools(ctx context.Context, q spool.Query) (int, error) {
	where, args := buildWhere(q)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spo_spoolmodel`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count spools: %w", err)
	}
	return n, nil
}

// LoadTemplates returns every spool flagged as a template.
func (s *Store) LoadTemplates(ctx context.Context) ([]*spool.Spool, error) {
	return s.ListSpools(ctx, spool.Query{OnlyTemplates: true, Sort: spool.SortDisplayName})
}

// LoadFirstSpool returns any one spool, or ErrNotFound for an empty
// inventory.
func (s *Store) LoadFirstSpool(ctx context.Context) (*spool.Spool, error) {
	spools, err := s.ListSpools(ctx, spool.Query{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(spools) == 0 {
		return nil, spool.ErrNotFound
	}
	return spools[0], nil
}
