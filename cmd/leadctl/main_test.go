package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlogandesigns/site-visitor-dash/internal/accounts"
	"github.com/tlogandesigns/site-visitor-dash/internal/auth"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/internal/testutil"
	"github.com/tlogandesigns/site-visitor-dash/pkg/util"
)

func newTestCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	out := &bytes.Buffer{}
	return &cli{
		db:       db,
		accounts: accounts.NewService(db, util.NopLogger()),
		out:      out,
		readPassword: func() (string, error) {
			return "prompted-password", nil
		},
	}, out
}

func TestCreateAdmin(t *testing.T) {
	c, out := newTestCLI(t)
	ctx := context.Background()

	err := c.dispatch(ctx, []string{"create-admin", "--username", "ops", "--email", "ops@example.com"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `created admin "ops"`)

	var user models.User
	require.NoError(t, c.db.First(&user, "username = ?", "ops").Error)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.True(t, auth.CheckPassword("prompted-password", user.PasswordHash))

	out.Reset()
	err = c.dispatch(ctx, []string{"create-admin", "--username", "ops", "--role", "super_admin", "--password", "another-password"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `updated super_admin "ops"`)

	require.NoError(t, c.db.First(&user, "username = ?", "ops").Error)
	assert.Equal(t, models.RoleSuperAdmin, user.Role)
	assert.True(t, auth.CheckPassword("another-password", user.PasswordHash))
}

func TestCreateAdmin_Invalid(t *testing.T) {
	c, _ := newTestCLI(t)
	ctx := context.Background()

	err := c.dispatch(ctx, []string{"create-admin"})
	assert.ErrorIs(t, err, errUsage)

	err = c.dispatch(ctx, []string{"create-admin", "--username", "ops", "--role", "user"})
	assert.ErrorIs(t, err, errUsage)

	c.readPassword = func() (string, error) { return "", errors.New("no tty") }
	err = c.dispatch(ctx, []string{"create-admin", "--username", "ops"})
	assert.EqualError(t, err, "no tty")

	err = c.dispatch(ctx, []string{"create-admin", "--username", "ops", "--password", "short"})
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)
}

func TestAssignAndUnassignSite(t *testing.T) {
	c, out := newTestCLI(t)
	ctx := context.Background()
	agent := testutil.CreateTestAgent(t, c.db, "Riley Agent", "Cedar Creek")

	require.NoError(t, c.dispatch(ctx, []string{"assign-site", "--agent", "Riley Agent", "--site", "Oak Hollow"}))
	assert.Contains(t, out.String(), `assigned "Oak Hollow" to Riley Agent`)

	// Idempotent
	require.NoError(t, c.dispatch(ctx, []string{"assign-site", "--agent", "Riley Agent", "--site", "Oak Hollow"}))

	var count int64
	require.NoError(t, c.db.Model(&models.AgentSite{}).Where("agent_id = ?", agent.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	out.Reset()
	require.NoError(t, c.dispatch(ctx, []string{"unassign-site", "--agent", "Riley Agent", "--site", "Cedar Creek"}))
	assert.Contains(t, out.String(), `removed "Cedar Creek" from Riley Agent`)

	out.Reset()
	require.NoError(t, c.dispatch(ctx, []string{"unassign-site", "--agent", "Riley Agent", "--site", "Cedar Creek"}))
	assert.Contains(t, out.String(), "was not assigned")

	err := c.dispatch(ctx, []string{"assign-site", "--agent", "Nobody", "--site", "Oak Hollow"})
	assert.EqualError(t, err, `no agent named "Nobody"`)

	err = c.dispatch(ctx, []string{"assign-site", "--agent", "Riley Agent"})
	assert.ErrorIs(t, err, errUsage)
}

func TestListUnsynced(t *testing.T) {
	c, out := newTestCLI(t)
	ctx := context.Background()

	require.NoError(t, c.dispatch(ctx, []string{"list-unsynced"}))
	assert.Contains(t, out.String(), "all leads are synced")

	agent := testutil.CreateTestAgent(t, c.db, "Riley Agent", "Cedar Creek")
	pending := testutil.CreateTestLead(t, c.db, agent, "Cedar Creek", "Pending Buyer")
	require.NoError(t, c.db.Model(pending).Update("crm_sync_error", "crm responded with status 502").Error)
	synced := testutil.CreateTestLead(t, c.db, agent, "Cedar Creek", "Synced Buyer")
	require.NoError(t, c.db.Model(synced).Update("crm_synced", true).Error)

	out.Reset()
	require.NoError(t, c.dispatch(ctx, []string{"list-unsynced", "--limit", "10"}))
	assert.Contains(t, out.String(), "Pending Buyer")
	assert.Contains(t, out.String(), "status 502")
	assert.Contains(t, out.String(), "Riley Agent")
	assert.NotContains(t, out.String(), "Synced Buyer")

	err := c.dispatch(ctx, []string{"list-unsynced", "--limit", "0"})
	assert.ErrorIs(t, err, errUsage)
}

func TestDispatch(t *testing.T) {
	c, out := newTestCLI(t)

	err := c.dispatch(context.Background(), []string{"frobnicate"})
	assert.EqualError(t, err, `unknown command "frobnicate"`)
	assert.Contains(t, out.String(), "Usage: leadctl")

	out.Reset()
	require.NoError(t, c.dispatch(context.Background(), []string{"list-unsynced", "--help"}))
	assert.Contains(t, out.String(), "--limit")
}
