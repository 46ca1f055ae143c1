package db

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

// DefaultFileName matches the file name the first bot deployments used
const DefaultFileName = "telegram_bot.db"

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// ResolvePath returns configured, or DefaultPath when it is empty
func ResolvePath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return DefaultPath()
}

// Open opens (creating if needed) the database file at path and migrates the schema.
// Use ":memory:" only for throwaway stores; each connection would get its own database.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create data dir %s", dir)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// One connection: SQLite allows a single writer and the bot loop and the
	// scheduler share this handle.
	conn.SetMaxOpenConns(1)

	db := &DB{conn}
	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// DefaultPath returns the path to the database file
func DefaultPath() (string, error) {
	// Use XDG data directory or fallback to home directory
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataDir, "reportbot", DefaultFileName), nil
}

// GetSetting retrieves a setting value by key
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, errors.Wrapf(err, "get setting %s", key)
}

// SetSetting sets a setting value
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return errors.Wrapf(err, "set setting %s", key)
}

// ClaimSetting sets key to value unless it already holds value. It reports
// whether this call changed the row, so concurrent processes claiming the
// same value see exactly one winner.
func (db *DB) ClaimSetting(ctx context.Context, key, value string) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
		WHERE settings.value IS NOT excluded.value
	`, key, value)
	if err != nil {
		return false, errors.Wrapf(err, "claim setting %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "claim setting %s", key)
	}
	return n > 0, nil
}

// withTx runs fn inside a transaction. Any error returned by fn, or a panic,
// rolls back every statement fn issued.
func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "commit transaction")
}
