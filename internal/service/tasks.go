package service

import (
	"context"

	"github.com/tgienger/reportbot/internal/models"
)

// SubmitTask adds a plan item owned by userID
func (s *Service) SubmitTask(ctx context.Context, userID int64, text string) (*models.Task, error) {
	text, err := cleanText(text)
	if err != nil {
		return nil, err
	}
	id, err := s.db.AddTask(ctx, userID, text)
	if err != nil {
		return nil, err
	}
	s.countTask(ctx, "submit")

	t, err := s.db.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// Task returns a plan item owned by actor
func (s *Service) Task(ctx context.Context, actor, id int64) (*models.Task, error) {
	t, err := s.db.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if !s.policy.CanChangeTask(actor, t) {
		return nil, ErrPermissionDenied
	}
	return t, nil
}

// EditTask overwrites the text of a plan item. Tasks keep no history.
func (s *Service) EditTask(ctx context.Context, actor, id int64, text string) (*models.Task, error) {
	text, err := cleanText(text)
	if err != nil {
		return nil, err
	}
	if _, err := s.Task(ctx, actor, id); err != nil {
		return nil, err
	}
	ok, err := s.db.UpdateTaskText(ctx, id, text)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.countTask(ctx, "edit")
	return s.Task(ctx, actor, id)
}

// ToggleTask flips the completion flag and returns the new value
func (s *Service) ToggleTask(ctx context.Context, actor, id int64) (bool, error) {
	if _, err := s.Task(ctx, actor, id); err != nil {
		return false, err
	}
	completed, found, err := s.db.ToggleTaskCompleted(ctx, id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, ErrNotFound
	}
	s.countTask(ctx, "toggle")
	return completed, nil
}

// DeleteTask removes a plan item
func (s *Service) DeleteTask(ctx context.Context, actor, id int64) error {
	if _, err := s.Task(ctx, actor, id); err != nil {
		return err
	}
	ok, err := s.db.DeleteTask(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.countTask(ctx, "delete")
	return nil
}

// MyTasks lists the plan items of userID, newest first
func (s *Service) MyTasks(ctx context.Context, userID int64) ([]models.Task, error) {
	return s.db.ListTasks(ctx, userID)
}
