package ui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/reportbot/internal/access"
	"github.com/tgienger/reportbot/internal/db"
	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/service"
	"github.com/tgienger/reportbot/internal/ui/views"
)

const (
	alice = int64(1)
	admin = int64(999)
)

func newTestApp(t *testing.T) (*App, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), db.DefaultFileName))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	require.NoError(t, database.EnsureUser(ctx, alice, "Alice", ""))
	require.NoError(t, database.EnsureUser(ctx, admin, "Boss", ""))

	svc := service.New(database, access.NewPolicy([]int64{admin}, database, database), nil)
	return NewApp(svc, database, admin, time.UTC), database
}

func TestAppRemembersOpenedUser(t *testing.T) {
	ctx := context.Background()
	app, database := newTestApp(t)
	assert.Equal(t, ViewUsers, app.CurrentView())

	app.Update(views.SelectedUser{User: models.UserRef{ID: alice, FirstName: "Alice"}})
	assert.Equal(t, ViewReports, app.CurrentView())

	saved, err := database.GetSetting(ctx, LastUserKey)
	require.NoError(t, err)
	assert.Equal(t, "1", saved)

	// A new console session reopens the same user
	reopened := NewApp(app.svc, database, admin, time.UTC)
	require.NotNil(t, reopened.Init())
	assert.Equal(t, ViewReports, reopened.CurrentView())

	reopened.Update(views.BackToUsers{})
	assert.Equal(t, ViewUsers, reopened.CurrentView())

	saved, err = database.GetSetting(ctx, LastUserKey)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestAppIgnoresUnknownLastUser(t *testing.T) {
	ctx := context.Background()
	app, database := newTestApp(t)
	require.NoError(t, database.SetSetting(ctx, LastUserKey, "4242"))

	require.NotNil(t, app.Init())
	assert.Equal(t, ViewUsers, app.CurrentView())
}
