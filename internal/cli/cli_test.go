package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plandeck/plandeck/internal/db"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return &App{Database: database, UoW: db.NewSQLiteUnitOfWork(database)}
}

func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(app)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMigrateCmd(t *testing.T) {
	app := newTestApp(t)

	out, err := execute(t, app, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")
}

func TestPermissionsCmd_ListsBothScopes(t *testing.T) {
	app := newTestApp(t)

	out, err := execute(t, app, "permissions")
	require.NoError(t, err)
	assert.Contains(t, out, "Company scope:")
	assert.Contains(t, out, "can_create_project")
	assert.Contains(t, out, "Project scope:")
	assert.Contains(t, out, "can_edit_planning_items")
}

func TestSeedCmd_BootstrapsTenant(t *testing.T) {
	app := newTestApp(t)

	out, err := execute(t, app, "seed", "--company", "Acme QA", "--email", "admin@acme.test")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme QA")
	assert.Contains(t, out, "admin@acme.test")

	var count int
	err = app.Database.QueryRow(`SELECT COUNT(*) FROM project_users`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSeedCmd_RequiresCompanyFlag(t *testing.T) {
	app := newTestApp(t)

	_, err := execute(t, app, "seed", "--email", "admin@acme.test")
	assert.Error(t, err)
}
