package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/reportbot/internal/config"
	"github.com/tgienger/reportbot/internal/models"
)

func TestNewPolicyHonoursAdminEditSetting(t *testing.T) {
	cfg := &config.Config{Admins: []int64{999}}
	cfg.Database.Path = filepath.Join(t.TempDir(), "bot.db")

	database, path, err := openDatabase(cfg)
	require.NoError(t, err)
	defer database.Close()
	assert.Equal(t, cfg.Database.Path, path)

	foreign := &models.Report{ID: 1, UserID: 1}

	cfg.Access.AdminsEditReports = true
	assert.True(t, newPolicy(cfg, database).CanEdit(999, foreign))

	cfg.Access.AdminsEditReports = false
	assert.False(t, newPolicy(cfg, database).CanEdit(999, foreign))
	assert.True(t, newPolicy(cfg, database).CanEdit(1, foreign))
}
