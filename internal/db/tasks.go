package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/tgienger/reportbot/internal/models"
)

// AddTask creates a new plan item and returns its ID
func (db *DB) AddTask(ctx context.Context, userID int64, text string) (int64, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO tasks (user_id, task_text) VALUES (?, ?)
	`, userID, text)
	if err != nil {
		return 0, errors.Wrapf(err, "add task for user %d", userID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "add task")
	}
	return id, nil
}

// GetTask retrieves a task by ID. Returns nil if there is no such task.
func (db *DB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	t := &models.Task{}
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, COALESCE(task_text, ''), task_date, COALESCE(is_completed, 0)
		FROM tasks WHERE id = ?
	`, id).Scan(&t.ID, &t.UserID, &t.Text, &t.TaskDate, &t.Completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get task %d", id)
	}
	return t, nil
}

// ListTasks returns all tasks of a user, most recent first
func (db *DB) ListTasks(ctx context.Context, userID int64) ([]models.Task, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(task_text, ''), task_date, COALESCE(is_completed, 0)
		FROM tasks
		WHERE user_id = ?
		ORDER BY task_date DESC, id DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list tasks of user %d", userID)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Text, &t.TaskDate, &t.Completed); err != nil {
			return nil, errors.Wrapf(err, "list tasks of user %d", userID)
		}
		tasks = append(tasks, t)
	}
	return tasks, errors.Wrapf(rows.Err(), "list tasks of user %d", userID)
}

// UpdateTaskText overwrites the text of a task. No history is kept for tasks.
// Returns false if the task does not exist.
func (db *DB) UpdateTaskText(ctx context.Context, id int64, text string) (bool, error) {
	result, err := db.ExecContext(ctx, "UPDATE tasks SET task_text = ? WHERE id = ?", text, id)
	if err != nil {
		return false, errors.Wrapf(err, "update task %d", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "update task %d", id)
	}
	return n > 0, nil
}

// ToggleTaskCompleted flips the completion flag and returns the new value.
// found is false if the task does not exist.
func (db *DB) ToggleTaskCompleted(ctx context.Context, id int64) (completed, found bool, err error) {
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE tasks SET is_completed = NOT COALESCE(is_completed, 0) WHERE id = ?
		`, id)
		if err != nil {
			return errors.Wrapf(err, "toggle task %d", id)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return errors.Wrapf(err, "toggle task %d", id)
		}
		if n == 0 {
			return nil
		}
		found = true
		err = tx.QueryRowContext(ctx, "SELECT is_completed FROM tasks WHERE id = ?", id).Scan(&completed)
		return errors.Wrapf(err, "toggle task %d", id)
	})
	if err != nil {
		return false, false, err
	}
	return completed, found, nil
}

// DeleteTask deletes a task. Returns false if nothing was deleted.
func (db *DB) DeleteTask(ctx context.Context, id int64) (bool, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return false, errors.Wrapf(err, "delete task %d", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "delete task %d", id)
	}
	return n > 0, nil
}
