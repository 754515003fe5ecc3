package database_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpage/internal/config"
	"linkpage/internal/database"
	"linkpage/internal/testsupport"
)

func TestMigrateDatabase(t *testing.T) {
	t.Setenv("LINKPAGE_ENV", "test")
	config.Reset()
	t.Cleanup(config.Reset)

	cfg := config.GetConfig()
	cfg.DatabaseName = filepath.Join(t.TempDir(), "linkpage-test.db")

	dbManager := database.NewDBManager(cfg, testsupport.GetLogger())
	require.NoError(t, dbManager.Init())
	t.Cleanup(func() {
		if sqlDB, err := dbManager.GetConnection().DB(); err == nil {
			sqlDB.Close()
		}
	})

	require.NoError(t, dbManager.MigrateDatabase())
	// running twice is a no-op
	require.NoError(t, dbManager.MigrateDatabase())

	db := dbManager.GetConnection()
	for _, table := range []string{"users", "themes", "links", "profile_views", "link_clicks"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.True(t, db.Migrator().HasIndex("profile_views", "idx_profile_views_viewed_at"))
	assert.True(t, db.Migrator().HasIndex("link_clicks", "idx_link_clicks_link_id"))
}
