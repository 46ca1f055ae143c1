package models

import (
	"strconv"
	"time"
)

// User is a chat participant known to the bot. Created on first contact and never
// rewritten afterwards.
type User struct {
	ID        int64 // chat-assigned, stable
	FirstName string
	Username  string // empty when the account has none
	CreatedAt time.Time
}

// UserRef is the short form of a user used for listings and broadcasts
type UserRef struct {
	ID        int64
	FirstName string
}

// DisplayName returns the first name, or a placeholder built from the id
func (u UserRef) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return "User " + strconv.FormatInt(u.ID, 10)
}

// Report is a day's work submission
type Report struct {
	ID         int64
	UserID     int64 // owner
	Text       string
	ReportDate time.Time
	EditedBy   *int64     // nil until the first edit
	EditedAt   *time.Time // set together with EditedBy
}

// Edited reports whether the report was changed after submission
func (r Report) Edited() bool {
	return r.EditedAt != nil
}

// ReportHistory is a snapshot of a report taken right before it was edited
type ReportHistory struct {
	ID         int64
	OriginalID int64 // the report may no longer exist
	UserID     int64
	Text       string
	ReportDate time.Time
	EditedBy   *int64
	EditedAt   *time.Time
	ArchivedAt time.Time
}

// Task is a plan item for an upcoming work day
type Task struct {
	ID        int64
	UserID    int64
	Text      string
	TaskDate  time.Time
	Completed bool
}
