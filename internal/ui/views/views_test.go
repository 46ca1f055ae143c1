package views

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/reportbot/internal/access"
	"github.com/tgienger/reportbot/internal/db"
	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/service"
)

const (
	alice = int64(1)
	bob   = int64(2)
	admin = int64(999)
)

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), db.DefaultFileName))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	require.NoError(t, database.EnsureUser(ctx, alice, "Alice", "alice"))
	require.NoError(t, database.EnsureUser(ctx, bob, "Bob", "bob"))
	require.NoError(t, database.EnsureUser(ctx, admin, "Boss", "boss"))

	return service.New(database, access.NewPolicy([]int64{admin}, database, database), nil)
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// settle runs cmd and feeds the data messages it produces back into m.
// Timer driven messages such as cursor blinks are dropped.
func settle(t *testing.T, m tea.Model, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	var out []tea.Msg
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			out = append(out, settle(t, m, c)...)
		}
	case usersLoadedMsg, reportsLoadedMsg, historyLoadedMsg, reportSavedMsg, reportDeletedMsg, errMsg:
		out = append(out, msg)
		_, next := m.Update(msg)
		out = append(out, settle(t, m, next)...)
	default:
		out = append(out, msg)
	}
	return out
}

func press(t *testing.T, m tea.Model, keys ...string) []tea.Msg {
	t.Helper()
	var out []tea.Msg
	for _, k := range keys {
		_, cmd := m.Update(keyPress(k))
		out = append(out, settle(t, m, cmd)...)
	}
	return out
}

func TestUserListSelectsUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.SubmitReport(ctx, bob, "bob's day")
	require.NoError(t, err)
	_, err = svc.SubmitReport(ctx, alice, "alice's day")
	require.NoError(t, err)

	v := NewUserListView(svc, admin)
	v.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	settle(t, v, v.Init())

	require.Len(t, v.list.Items(), 2)
	assert.Contains(t, v.View(), "Alice")

	msgs := press(t, v, "enter")
	require.NotEmpty(t, msgs)
	sel, ok := msgs[len(msgs)-1].(SelectedUser)
	require.True(t, ok)
	assert.Equal(t, alice, sel.User.ID)
}

func TestUserListDeniedForNonAdmin(t *testing.T) {
	v := NewUserListView(newTestService(t), alice)
	settle(t, v, v.Init())

	require.Error(t, v.err)
	assert.Contains(t, v.View(), "permission denied")
}

func TestReportListEditAndHistory(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	r, err := svc.SubmitReport(ctx, alice, "first draft")
	require.NoError(t, err)

	v := NewReportListView(svc, admin, models.UserRef{ID: alice, FirstName: "Alice"}, time.UTC)
	v.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	settle(t, v, v.Init())
	require.Len(t, v.reports, 1)

	press(t, v, "e")
	require.True(t, v.editing)
	assert.Equal(t, "first draft", v.editText.Value())

	v.editText.SetValue("final version")
	press(t, v, "ctrl+s")
	assert.False(t, v.editing)
	assert.Equal(t, "final version", v.reports[0].Text)
	assert.True(t, v.reports[0].Edited())
	assert.Contains(t, v.status, "saved")

	press(t, v, "enter")
	require.True(t, v.viewing)
	assert.Empty(t, v.history)
	assert.Contains(t, v.View(), "Press h to show earlier versions")

	press(t, v, "h")
	require.True(t, v.showHistory)
	require.Len(t, v.history, 1)
	assert.Equal(t, "first draft", v.history[0].Text)
	assert.Contains(t, v.View(), "final version")

	press(t, v, "h")
	assert.False(t, v.showHistory)
	assert.NotContains(t, v.View(), "archived")

	stored, err := svc.Report(ctx, alice, r.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EditedBy)
	assert.Equal(t, admin, *stored.EditedBy)
}

func TestReportListRejectsEmptyEdit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.SubmitReport(ctx, alice, "keep me")
	require.NoError(t, err)

	v := NewReportListView(svc, admin, models.UserRef{ID: alice}, time.UTC)
	settle(t, v, v.Init())

	press(t, v, "e")
	v.editText.SetValue("   ")
	press(t, v, "ctrl+s")

	assert.True(t, v.editing)
	assert.True(t, v.statusErr)
	assert.Equal(t, "keep me", v.reports[0].Text)
}

func TestReportListDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.SubmitReport(ctx, alice, "one")
	require.NoError(t, err)
	_, err = svc.SubmitReport(ctx, alice, "two")
	require.NoError(t, err)

	v := NewReportListView(svc, admin, models.UserRef{ID: alice}, time.UTC)
	settle(t, v, v.Init())
	require.Len(t, v.reports, 2)

	press(t, v, "d")
	require.True(t, v.confirmingDelete)
	press(t, v, "n")
	assert.False(t, v.confirmingDelete)
	assert.Len(t, v.reports, 2)

	press(t, v, "d", "y")
	assert.Len(t, v.reports, 1)

	left, err := svc.MyReports(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestReportListBack(t *testing.T) {
	svc := newTestService(t)
	v := NewReportListView(svc, admin, models.UserRef{ID: alice}, time.UTC)
	settle(t, v, v.Init())
	assert.Contains(t, v.View(), "No reports.")

	msgs := press(t, v, "esc")
	require.Len(t, msgs, 1)
	assert.IsType(t, BackToUsers{}, msgs[0])
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "short", firstLine("short", 20))
	assert.Equal(t, "head …", firstLine("head\ntail", 20))
	assert.Equal(t, "abcd…", firstLine("abcdefgh", 5))
}
