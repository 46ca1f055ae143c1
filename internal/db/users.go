package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/tgienger/reportbot/internal/models"
)

// EnsureUser creates the user if it does not exist yet. Existing rows are left
// untouched. An empty username is stored as NULL.
func (db *DB) EnsureUser(ctx context.Context, userID int64, firstName, username string) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (user_id, first_name, username) VALUES (?, ?, ?)
	`, userID, firstName, sql.NullString{String: username, Valid: username != ""})
	return errors.Wrapf(err, "ensure user %d", userID)
}

// GetUser retrieves a user by ID. Returns nil if the user is unknown.
func (db *DB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	u := &models.User{}
	err := db.QueryRowContext(ctx, `
		SELECT user_id, COALESCE(first_name, ''), COALESCE(username, ''), created_at
		FROM users WHERE user_id = ?
	`, userID).Scan(&u.ID, &u.FirstName, &u.Username, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get user %d", userID)
	}
	return u, nil
}

// ListAllUsers returns every known user
func (db *DB) ListAllUsers(ctx context.Context) ([]models.UserRef, error) {
	return db.listUserRefs(ctx, "list users", `
		SELECT user_id, COALESCE(first_name, '') FROM users ORDER BY user_id
	`)
}

// ListUsersWithReports returns the users that have at least one report, ordered by first name
func (db *DB) ListUsersWithReports(ctx context.Context) ([]models.UserRef, error) {
	return db.listUserRefs(ctx, "list users with reports", `
		SELECT DISTINCT u.user_id, COALESCE(u.first_name, '')
		FROM users u
		JOIN reports r ON u.user_id = r.user_id
		ORDER BY u.first_name, u.user_id
	`)
}

func (db *DB) listUserRefs(ctx context.Context, op, query string) ([]models.UserRef, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	defer rows.Close()

	var users []models.UserRef
	for rows.Next() {
		var u models.UserRef
		if err := rows.Scan(&u.ID, &u.FirstName); err != nil {
			return nil, errors.Wrap(err, op)
		}
		users = append(users, u)
	}
	return users, errors.Wrap(rows.Err(), op)
}
