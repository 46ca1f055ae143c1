package service

import (
	"context"

	"github.com/tgienger/reportbot/internal/models"
)

// SubmitReport stores a report owned by userID and returns it
func (s *Service) SubmitReport(ctx context.Context, userID int64, text string) (*models.Report, error) {
	text, err := cleanText(text)
	if err != nil {
		return nil, err
	}
	id, err := s.db.AddReport(ctx, userID, text)
	if err != nil {
		return nil, err
	}
	s.countReport(ctx, "submit")
	s.log.Info("report submitted", "report_id", id, "user_id", userID)

	r, err := s.db.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// Report returns a report the actor may see: their own, or any for an administrator
func (s *Service) Report(ctx context.Context, actor, id int64) (*models.Report, error) {
	r, err := s.db.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	if !s.policy.CanReadReport(actor, r.UserID) {
		return nil, ErrPermissionDenied
	}
	return r, nil
}

// EditReport replaces the report text. The previous version is archived.
func (s *Service) EditReport(ctx context.Context, editor, id int64, text string) (*models.Report, error) {
	text, err := cleanText(text)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReport(ctx, editor, id); err != nil {
		return nil, err
	}

	ok, err := s.db.UpdateReport(ctx, id, text, editor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.countReport(ctx, "edit")
	s.log.Info("report edited", "report_id", id, "editor_id", editor)

	r, err := s.db.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// DeleteReport removes a report. Its edit history is kept.
func (s *Service) DeleteReport(ctx context.Context, actor, id int64) error {
	if err := s.authorizeReport(ctx, actor, id); err != nil {
		return err
	}
	ok, err := s.db.DeleteReport(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.countReport(ctx, "delete")
	s.log.Info("report deleted", "report_id", id, "actor_id", actor)
	return nil
}

func (s *Service) authorizeReport(ctx context.Context, actor, id int64) error {
	r, err := s.db.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if r == nil {
		return ErrNotFound
	}
	if !s.policy.CanEdit(actor, r) {
		s.log.Warn("report change denied", "report_id", id, "actor_id", actor, "owner_id", r.UserID)
		return ErrPermissionDenied
	}
	return nil
}

// MyReports lists the reports of userID, newest first
func (s *Service) MyReports(ctx context.Context, userID int64) ([]models.Report, error) {
	return s.db.ListReports(ctx, userID)
}

// UsersWithReports lists every user who submitted a report. Administrators only.
func (s *Service) UsersWithReports(ctx context.Context, actor int64) ([]models.UserRef, error) {
	if !s.policy.CanBrowseReports(actor) {
		return nil, ErrPermissionDenied
	}
	return s.db.ListUsersWithReports(ctx)
}

// ReportsForUser lists another user's reports, newest first. Administrators only.
func (s *Service) ReportsForUser(ctx context.Context, actor, userID int64) ([]models.Report, error) {
	if !s.policy.CanBrowseReports(actor) {
		return nil, ErrPermissionDenied
	}
	return s.db.ListReports(ctx, userID)
}

// ReportHistory returns the archived versions of a report, oldest first. The
// owner and administrators may read it, also after the report was deleted.
func (s *Service) ReportHistory(ctx context.Context, actor, id int64) ([]models.ReportHistory, error) {
	history, err := s.db.ListReportHistory(ctx, id)
	if err != nil {
		return nil, err
	}

	owner := int64(0)
	r, err := s.db.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case r != nil:
		owner = r.UserID
	case len(history) > 0:
		owner = history[0].UserID
	default:
		return nil, ErrNotFound
	}

	if !s.policy.CanReadReport(actor, owner) {
		return nil, ErrPermissionDenied
	}
	return history, nil
}
