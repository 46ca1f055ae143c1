package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/tgienger/reportbot/internal/models"
)

const reportColumns = `id, user_id, COALESCE(report_text, ''), report_date, edited_by, edited_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(s rowScanner, r *models.Report) error {
	return s.Scan(&r.ID, &r.UserID, &r.Text, &r.ReportDate, &r.EditedBy, &r.EditedAt)
}

// AddReport stores a new report dated now and returns its ID
func (db *DB) AddReport(ctx context.Context, userID int64, text string) (int64, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO reports (user_id, report_text) VALUES (?, ?)
	`, userID, text)
	if err != nil {
		return 0, errors.Wrapf(err, "add report for user %d", userID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "add report")
	}
	return id, nil
}

// GetReport retrieves a report by ID. Returns nil if there is no such report.
func (db *DB) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	r := &models.Report{}
	err := scanReport(db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id), r)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get report %d", id)
	}
	return r, nil
}

// ListReports returns all reports of a user, most recent first
func (db *DB) ListReports(ctx context.Context, userID int64) ([]models.Report, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE user_id = ?
		ORDER BY report_date DESC, id DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list reports of user %d", userID)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		if err := scanReport(rows, &r); err != nil {
			return nil, errors.Wrapf(err, "list reports of user %d", userID)
		}
		reports = append(reports, r)
	}
	return reports, errors.Wrapf(rows.Err(), "list reports of user %d", userID)
}

// UpdateReport replaces the text of a report and records who changed it. The
// report as it was before the edit is archived in report_history first; both
// writes commit together or not at all. Returns false if the report does not exist.
func (db *DB) UpdateReport(ctx context.Context, id int64, text string, editorID int64) (bool, error) {
	var updated bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		archived, err := archiveReport(ctx, tx, id)
		if err != nil || !archived {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE reports
			SET report_text = ?, edited_by = ?, edited_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, text, editorID, id)
		if err != nil {
			return errors.Wrapf(err, "update report %d", id)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return errors.Wrapf(err, "update report %d", id)
		}
		if n != 1 {
			return errors.Errorf("update report %d: %d rows changed", id, n)
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// archiveReport copies the current state of a report into report_history.
// Returns false if the report does not exist.
func archiveReport(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO report_history (original_id, user_id, report_text, report_date, edited_by, edited_at, archived_at)
		SELECT id, user_id, report_text, report_date, edited_by, edited_at, CURRENT_TIMESTAMP
		FROM reports WHERE id = ?
	`, id)
	if err != nil {
		return false, errors.Wrapf(err, "archive report %d", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "archive report %d", id)
	}
	return n > 0, nil
}

// ListReportHistory returns the archived versions of a report, oldest first.
// Works for deleted reports too.
func (db *DB) ListReportHistory(ctx context.Context, reportID int64) ([]models.ReportHistory, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, original_id, COALESCE(user_id, 0), COALESCE(report_text, ''), report_date,
			edited_by, edited_at, archived_at
		FROM report_history
		WHERE original_id = ?
		ORDER BY id ASC
	`, reportID)
	if err != nil {
		return nil, errors.Wrapf(err, "list history of report %d", reportID)
	}
	defer rows.Close()

	var history []models.ReportHistory
	for rows.Next() {
		var h models.ReportHistory
		var archivedAt sql.NullTime
		if err := rows.Scan(&h.ID, &h.OriginalID, &h.UserID, &h.Text, &h.ReportDate,
			&h.EditedBy, &h.EditedAt, &archivedAt); err != nil {
			return nil, errors.Wrapf(err, "list history of report %d", reportID)
		}
		h.ArchivedAt = archivedAt.Time
		history = append(history, h)
	}
	return history, errors.Wrapf(rows.Err(), "list history of report %d", reportID)
}

// DeleteReport deletes a report. Its history is kept. Returns false if nothing was deleted.
func (db *DB) DeleteReport(ctx context.Context, id int64) (bool, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id)
	if err != nil {
		return false, errors.Wrapf(err, "delete report %d", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "delete report %d", id)
	}
	return n > 0, nil
}
