package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlogandesigns/site-visitor-dash/internal/auth"
	"github.com/tlogandesigns/site-visitor-dash/internal/database"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/internal/testutil"
	"github.com/tlogandesigns/site-visitor-dash/pkg/config"
	"github.com/tlogandesigns/site-visitor-dash/pkg/util"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "leads.db?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", database.SQLiteDSN("leads.db"))
	assert.Equal(t, "file:leads.db?cache=shared&_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		database.SQLiteDSN("file:leads.db?cache=shared"))
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := database.Connect(&config.DatabaseConfig{Driver: "mysql"}, util.NopLogger())
	assert.Error(t, err)
}

func TestEnsureSuperAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	log := util.NopLogger()

	t.Run("skipped without password", func(t *testing.T) {
		require.NoError(t, database.EnsureSuperAdmin(ctx, db, &config.SuperAdminConfig{Username: "root"}, log))
		var n int64
		db.Model(&models.User{}).Count(&n)
		assert.Zero(t, n)
	})

	cfg := &config.SuperAdminConfig{Username: "root", Password: "first-password", Email: "root@example.com"}

	t.Run("creates account", func(t *testing.T) {
		require.NoError(t, database.EnsureSuperAdmin(ctx, db, cfg, log))

		var u models.User
		require.NoError(t, db.Where("username = ?", "root").First(&u).Error)
		assert.Equal(t, models.RoleSuperAdmin, u.Role)
		assert.True(t, u.IsActive)
		assert.True(t, auth.CheckPassword("first-password", u.PasswordHash))
	})

	t.Run("resets existing account", func(t *testing.T) {
		require.NoError(t, db.Model(&models.User{}).Where("username = ?", "root").
			Updates(map[string]interface{}{"is_active": false, "role": models.RoleUser}).Error)

		cfg.Password = "second-password"
		require.NoError(t, database.EnsureSuperAdmin(ctx, db, cfg, log))

		var users []models.User
		require.NoError(t, db.Where("username = ?", "root").Find(&users).Error)
		require.Len(t, users, 1)
		assert.Equal(t, models.RoleSuperAdmin, users[0].Role)
		assert.True(t, users[0].IsActive)
		assert.True(t, auth.CheckPassword("second-password", users[0].PasswordHash))
	})
}

func TestCascadeDeleteRemovesNotes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	agent := testutil.CreateTestAgent(t, db, "Dana Agent", "Cedar Creek")
	lead := testutil.CreateTestLead(t, db, agent, "Cedar Creek", "Jane Smith")
	require.NoError(t, db.Create(&models.LeadNote{LeadID: lead.ID, AgentID: agent.ID, Body: "hi"}).Error)

	require.NoError(t, db.Delete(&models.Lead{}, "id = ?", lead.ID).Error)

	var n int64
	db.Model(&models.LeadNote{}).Where("lead_id = ?", lead.ID).Count(&n)
	assert.Zero(t, n)
}
