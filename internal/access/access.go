// Package access decides who may read and change reports and tasks.
package access

import (
	"context"
	"slices"

	"github.com/tgienger/reportbot/internal/models"
)

// ReportGetter looks up a report; nil means it does not exist
type ReportGetter interface {
	GetReport(ctx context.Context, id int64) (*models.Report, error)
}

// TaskGetter looks up a task; nil means it does not exist
type TaskGetter interface {
	GetTask(ctx context.Context, id int64) (*models.Task, error)
}

// Policy holds the administrator set and the lifecycle rules built on it
type Policy struct {
	admins           map[int64]struct{}
	reports          ReportGetter
	tasks            TaskGetter
	adminsEditReport bool
}

// Option configures a Policy
type Option func(*Policy)

// OwnerOnlyReports removes the administrator override on report edits and deletes
func OwnerOnlyReports() Option {
	return func(p *Policy) { p.adminsEditReport = false }
}

// NewPolicy builds a policy for the given administrators
func NewPolicy(admins []int64, reports ReportGetter, tasks TaskGetter, opts ...Option) *Policy {
	p := &Policy{
		admins:           make(map[int64]struct{}, len(admins)),
		reports:          reports,
		tasks:            tasks,
		adminsEditReport: true,
	}
	for _, id := range admins {
		p.admins[id] = struct{}{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsAdmin reports whether userID is an administrator
func (p *Policy) IsAdmin(userID int64) bool {
	_, ok := p.admins[userID]
	return ok
}

// Admins returns the administrator ids in ascending order
func (p *Policy) Admins() []int64 {
	ids := make([]int64, 0, len(p.admins))
	for id := range p.admins {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CanEditReport reports whether actor may edit or delete the report. It is
// false for reports that do not exist.
func (p *Policy) CanEditReport(ctx context.Context, actor, reportID int64) (bool, error) {
	r, err := p.reports.GetReport(ctx, reportID)
	if err != nil || r == nil {
		return false, err
	}
	return p.CanEdit(actor, r), nil
}

// CanEdit applies the edit rule to a report that was already loaded
func (p *Policy) CanEdit(actor int64, r *models.Report) bool {
	if r.UserID == actor {
		return true
	}
	return p.adminsEditReport && p.IsAdmin(actor)
}

// CanReadReport reports whether actor may read a report, or its history,
// owned by ownerID: the owner and administrators can.
func (p *Policy) CanReadReport(actor, ownerID int64) bool {
	return actor == ownerID || p.IsAdmin(actor)
}

// CanEditTask reports whether actor may change the task. It is false for
// tasks that do not exist.
func (p *Policy) CanEditTask(ctx context.Context, actor, taskID int64) (bool, error) {
	t, err := p.tasks.GetTask(ctx, taskID)
	if err != nil || t == nil {
		return false, err
	}
	return p.CanChangeTask(actor, t), nil
}

// CanChangeTask applies the task rule to a task that was already loaded.
// Only the owner can read or change a plan item; administrators have no override.
func (p *Policy) CanChangeTask(actor int64, t *models.Task) bool {
	return t.UserID == actor
}

// CanBrowseReports reports whether actor may list other users' reports
func (p *Policy) CanBrowseReports(actor int64) bool {
	return p.IsAdmin(actor)
}
