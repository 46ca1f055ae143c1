package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.EnsureUser(ctx, 1, "Alice", "alice"))
	_, err := db.AddReport(ctx, 1, "did things")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))

	reports, err := db.ListReports(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestMigrateAddsMissingColumns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)

	legacy, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`
		CREATE TABLE users (user_id INTEGER PRIMARY KEY, first_name TEXT, username TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP);
		CREATE TABLE reports (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER,
			report_text TEXT, report_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP);
		CREATE TABLE tasks (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER,
			task_text TEXT, task_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP);
		INSERT INTO users (user_id, first_name) VALUES (7, 'Old');
		INSERT INTO reports (user_id, report_text) VALUES (7, 'legacy report');
		INSERT INTO tasks (user_id, task_text) VALUES (7, 'legacy task');
	`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	for _, c := range addedColumns {
		exists, err := db.columnExists(ctx, c.table, c.name)
		require.NoError(t, err)
		assert.True(t, exists, "%s.%s", c.table, c.name)
	}

	reports, err := db.ListReports(ctx, 7)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "legacy report", reports[0].Text)
	assert.False(t, reports[0].Edited())

	tasks, err := db.ListTasks(ctx, 7)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.False(t, tasks[0].Completed)

	ok, err := db.UpdateReport(ctx, reports[0].ID, "rewritten", 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.EnsureUser(ctx, 2, "Bob", "bob"))
	require.NoError(t, db.EnsureUser(ctx, 1, "Alice", ""))
	// Second contact does not rewrite the row
	require.NoError(t, db.EnsureUser(ctx, 2, "Robert", "robert"))

	u, err := db.GetUser(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Bob", u.FirstName)
	assert.Equal(t, "bob", u.Username)
	assert.False(t, u.CreatedAt.IsZero())

	var username sql.NullString
	require.NoError(t, db.QueryRowContext(ctx, "SELECT username FROM users WHERE user_id = 1").Scan(&username))
	assert.False(t, username.Valid, "a missing username is stored as NULL")

	alice, err := db.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, alice.Username)

	missing, err := db.GetUser(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := db.ListAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)

	none, err := db.ListUsersWithReports(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = db.AddReport(ctx, 2, "a")
	require.NoError(t, err)
	_, err = db.AddReport(ctx, 2, "b")
	require.NoError(t, err)
	_, err = db.AddReport(ctx, 1, "c")
	require.NoError(t, err)

	withReports, err := db.ListUsersWithReports(ctx)
	require.NoError(t, err)
	require.Len(t, withReports, 2)
	assert.Equal(t, "Alice", withReports[0].FirstName)
	assert.Equal(t, "Bob", withReports[1].FirstName)
}

func TestReportsNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.EnsureUser(ctx, 1, "Alice", "alice"))

	first, err := db.AddReport(ctx, 1, "first")
	require.NoError(t, err)
	second, err := db.AddReport(ctx, 1, "second")
	require.NoError(t, err)

	reports, err := db.ListReports(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, second, reports[0].ID)
	assert.Equal(t, first, reports[1].ID)

	r, err := db.GetReport(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "first", r.Text)
	assert.Nil(t, r.EditedBy)
	assert.Nil(t, r.EditedAt)

	missing, err := db.GetReport(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateReportArchivesPreviousVersion(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.EnsureUser(ctx, 1, "Alice", "alice"))

	id, err := db.AddReport(ctx, 1, "v1")
	require.NoError(t, err)

	ok, err := db.UpdateReport(ctx, id, "v2", 999)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = db.UpdateReport(ctx, id, "v3", 1)
	require.NoError(t, err)
	require.True(t, ok)

	r, err := db.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "v3", r.Text)
	assert.Equal(t, int64(1), r.UserID, "editing never changes the owner")
	require.NotNil(t, r.EditedBy)
	require.NotNil(t, r.EditedAt)
	assert.Equal(t, int64(1), *r.EditedBy)

	history, err := db.ListReportHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "v1", history[0].Text)
	assert.Nil(t, history[0].EditedBy)
	assert.Equal(t, "v2", history[1].Text)
	require.NotNil(t, history[1].EditedBy)
	assert.Equal(t, int64(999), *history[1].EditedBy)
	assert.Equal(t, int64(1), history[1].UserID)
	assert.False(t, history[1].ArchivedAt.IsZero())
}

func TestUpdateReportMissing(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	ok, err := db.UpdateReport(ctx, 42, "text", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	history, err := db.ListReportHistory(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUpdateReportRollsBackArchiveOnFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.EnsureUser(ctx, 1, "Alice", "alice"))

	id, err := db.AddReport(ctx, 1, "original")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		CREATE TRIGGER reject_report_update BEFORE UPDATE ON reports
		BEGIN SELECT RAISE(ABORT, 'rejected'); END
	`)
	require.NoError(t, err)

	ok, err := db.UpdateReport(ctx, id, "changed", 1)
	require.Error(t, err)
	assert.False(t, ok)

	r, err := db.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", r.Text)
	assert.False(t, r.Edited())

	history, err := db.ListReportHistory(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history, "the snapshot must not outlive a failed edit")
}

func TestDeleteReportKeepsHistory(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.EnsureUser(ctx, 1, "Alice", "alice"))

	id, err := db.AddReport(ctx, 1, "v1")
	require.NoError(t, err)
	_, err = db.UpdateReport(ctx, id, "v2", 1)
	require.NoError(t, err)

	ok, err := db.DeleteReport(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	r, err := db.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, r)

	ok, err = db.DeleteReport(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.UpdateReport(ctx, id, "v3", 1)
	require.NoError(t, err)
	assert.False(t, ok, "a deleted report cannot be edited")

	history, err := db.ListReportHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "v1", history[0].Text)
}

func TestTasks(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.EnsureUser(ctx, 1, "Alice", "alice"))

	older, err := db.AddTask(ctx, 1, "write tests")
	require.NoError(t, err)
	newer, err := db.AddTask(ctx, 1, "ship it")
	require.NoError(t, err)

	tasks, err := db.ListTasks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, newer, tasks[0].ID)
	assert.Equal(t, older, tasks[1].ID)

	done, found, err := db.ToggleTaskCompleted(ctx, older)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, done)

	done, found, err = db.ToggleTaskCompleted(ctx, older)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, done)

	_, found, err = db.ToggleTaskCompleted(ctx, 777)
	require.NoError(t, err)
	assert.False(t, found)

	ok, err := db.UpdateTaskText(ctx, newer, "ship it today")
	require.NoError(t, err)
	assert.True(t, ok)

	task, err := db.GetTask(ctx, newer)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "ship it today", task.Text)

	ok, err = db.DeleteTask(ctx, newer)
	require.NoError(t, err)
	assert.True(t, ok)

	task, err = db.GetTask(ctx, newer)
	require.NoError(t, err)
	assert.Nil(t, task)

	ok, err = db.UpdateTaskText(ctx, newer, "gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	v, err := db.GetSetting(ctx, "reminder.last_fired")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetSetting(ctx, "reminder.last_fired", "2024-03-04"))
	require.NoError(t, db.SetSetting(ctx, "reminder.last_fired", "2024-03-05"))

	v, err = db.GetSetting(ctx, "reminder.last_fired")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", v)
}

func TestResolvePath(t *testing.T) {
	p, err := ResolvePath("/srv/bot.db")
	require.NoError(t, err)
	assert.Equal(t, "/srv/bot.db", p)

	t.Setenv("XDG_DATA_HOME", "/data")
	p, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "reportbot", DefaultFileName), p)
}

func TestClaimSetting(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	ok, err := db.ClaimSetting(ctx, "reminder.last_fired", "2024-03-04")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.ClaimSetting(ctx, "reminder.last_fired", "2024-03-04")
	require.NoError(t, err)
	assert.False(t, ok, "second claim of the same day must lose")

	ok, err = db.ClaimSetting(ctx, "reminder.last_fired", "2024-03-05")
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := db.GetSetting(ctx, "reminder.last_fired")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", v)
}
