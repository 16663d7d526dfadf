package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMigrate_ExistingDatabaseKeepsData runs the full migration set over a
// database that already holds data from an earlier run and verifies the
// rows survive untouched. Every statement uses IF NOT EXISTS, so this is
// the upgrade path a long-lived installation takes on every start.
func TestMigrate_ExistingDatabaseKeepsData(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`PRAGMA foreign_keys = ON`)
	require.NoError(t, err)

	require.NoError(t, Migrate(db))

	seed := []string{
		`INSERT INTO companies (id, name, created_at) VALUES ('c1', 'Acme', '2025-01-01T00:00:00Z')`,
		`INSERT INTO roles (id, company_id, name, permissions_json, created_at)
			VALUES ('r1', 'c1', 'Admin', '{"can_create_project":true}', '2025-01-01T00:00:00Z')`,
		`INSERT INTO company_users (id, company_id, email, role_id, created_at)
			VALUES ('u1', 'c1', 'admin@acme.test', 'r1', '2025-01-01T00:00:00Z')`,
		`INSERT INTO projects (id, company_id, name, test_planning_enabled, created_at, updated_at)
			VALUES ('p1', 'c1', 'Checkout', 1, '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`,
		`INSERT INTO process_templates (id, company_id, name, status, is_locked, created_at, updated_at)
			VALUES ('t1', 'c1', 'Standard', 'CREATED', 1, '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`,
		`INSERT INTO entity_types (id, template_id, internal_key, display_name, level_order, created_at)
			VALUES ('e1', 't1', 'task', 'Task', 4, '2025-01-01T00:00:00Z')`,
		`INSERT INTO planning_items (id, project_id, entity_type_id, title, created_at, updated_at)
			VALUES ('i1', 'p1', 'e1', 'Fix login', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`,
	}
	for i, stmt := range seed {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "seed statement %d failed", i)
	}

	// Re-run the full migration set, twice.
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var companyName string
	err = db.QueryRow(`SELECT name FROM companies WHERE id = 'c1'`).Scan(&companyName)
	require.NoError(t, err)
	assert.Equal(t, "Acme", companyName)

	var permissions string
	err = db.QueryRow(`SELECT permissions_json FROM roles WHERE id = 'r1'`).Scan(&permissions)
	require.NoError(t, err)
	assert.Contains(t, permissions, "can_create_project")

	var templateStatus string
	var locked int
	err = db.QueryRow(`SELECT status, is_locked FROM process_templates WHERE id = 't1'`).Scan(&templateStatus, &locked)
	require.NoError(t, err)
	assert.Equal(t, "CREATED", templateStatus)
	assert.Equal(t, 1, locked)

	var itemTitle string
	err = db.QueryRow(`SELECT title FROM planning_items WHERE id = 'i1'`).Scan(&itemTitle)
	require.NoError(t, err)
	assert.Equal(t, "Fix login", itemTitle)
}
