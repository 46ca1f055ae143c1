package db

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// column is a column that older databases may be missing
type column struct {
	table string
	name  string
	ddl   string
}

// Columns added after the first deployments. ALTER TABLE ... ADD COLUMN keeps
// existing rows and fills them with the default.
var addedColumns = []column{
	{"reports", "edited_by", "INTEGER DEFAULT NULL"},
	{"reports", "edited_at", "TIMESTAMP DEFAULT NULL"},
	{"tasks", "is_completed", "BOOLEAN DEFAULT 0"},
	{"report_history", "archived_at", "TIMESTAMP DEFAULT NULL"},
}

// Migrate brings the schema up to date. It only creates what is missing, so it
// can run on every start.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "apply schema")
	}

	for _, c := range addedColumns {
		exists, err := db.columnExists(ctx, c.table, c.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, c.ddl)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "add column %s.%s", c.table, c.name)
		}
	}

	return nil
}

func (db *DB) columnExists(ctx context.Context, table, name string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info(?)
		WHERE name = ?
	`, table, name).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "check column %s.%s", table, name)
	}
	return exists, nil
}
