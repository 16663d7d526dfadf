package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	// Run migrations a second time — should succeed without error.
	err := Migrate(db)
	require.NoError(t, err)

	// Third time for good measure.
	err = Migrate(db)
	require.NoError(t, err)
}

func TestMigrate_CreatesAllTables(t *testing.T) {
	db := openTestDB(t)

	expected := []string{
		"companies", "roles", "company_users",
		"projects", "project_roles", "project_users", "planning_configs",
		"process_templates", "entity_types", "field_definitions",
		"workflow_definitions", "workflow_states", "workflow_transitions",
		"time_tracking_rules", "template_bindings",
		"flow_folders", "test_case_folders", "variable_folders", "element_folders",
		"flows", "flow_versions", "test_cases", "test_case_versions",
		"variables", "elements", "element_locators",
		"planning_items", "planning_item_assignees", "item_field_values",
		"planning_dependencies", "execution_bindings", "time_sessions",
	}
	for _, table := range expected {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_CreatesIndexes(t *testing.T) {
	db := openTestDB(t)

	expected := []string{
		"idx_projects_company",
		"idx_templates_company",
		"idx_items_project",
		"idx_items_parent",
		"idx_deps_target",
		"idx_deps_source",
		"idx_sessions_item",
	}
	for _, idx := range expected {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name=?`, idx).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
	}
}

func TestMigrate_ForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t)

	var fk int
	err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk)
	require.NoError(t, err)
	assert.Equal(t, 1, fk, "foreign keys should be enabled")
}

func TestMigrate_WALModeRequested(t *testing.T) {
	// In-memory SQLite uses "memory" journal mode; WAL only applies to file DBs.
	// This test verifies OpenDB issues the PRAGMA (a no-op for :memory:).
	db := openTestDB(t)

	var mode string
	err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode)
	require.NoError(t, err)
	// In-memory DB reports "memory" — that's expected.
	assert.Equal(t, "memory", mode)
}

func TestMigrate_TemplateStatusCheckConstraint(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`INSERT INTO companies (id, name, created_at) VALUES ('c1', 'Acme', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO process_templates (id, company_id, name, status, created_at, updated_at)
		VALUES ('t1', 'c1', 'Bad', 'INVALID', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	assert.Error(t, err, "invalid template status should be rejected by CHECK constraint")

	_, err = db.Exec(`INSERT INTO process_templates (id, company_id, name, status, created_at, updated_at)
		VALUES ('t1', 'c1', 'Good', 'DRAFT', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	assert.NoError(t, err)
}

func TestMigrate_CompanyEmailUniquePerCompany(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`INSERT INTO companies (id, name, created_at) VALUES ('c1', 'Acme', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO companies (id, name, created_at) VALUES ('c2', 'Globex', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO company_users (id, company_id, email, created_at)
		VALUES ('u1', 'c1', 'a@acme.test', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO company_users (id, company_id, email, created_at)
		VALUES ('u2', 'c1', 'a@acme.test', '2025-01-01T00:00:00Z')`)
	assert.Error(t, err, "duplicate email within a company should be rejected")

	// Same email under another company is fine.
	_, err = db.Exec(`INSERT INTO company_users (id, company_id, email, created_at)
		VALUES ('u3', 'c2', 'a@acme.test', '2025-01-01T00:00:00Z')`)
	assert.NoError(t, err)
}

func TestMigrate_EntityTypeUniqueLevelAndKey(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`INSERT INTO companies (id, name, created_at) VALUES ('c1', 'Acme', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO process_templates (id, company_id, name, status, created_at, updated_at)
		VALUES ('t1', 'c1', 'Standard', 'DRAFT', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO entity_types (id, template_id, internal_key, display_name, level_order, created_at)
		VALUES ('e1', 't1', 'task', 'Task', 4, '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO entity_types (id, template_id, internal_key, display_name, level_order, created_at)
		VALUES ('e2', 't1', 'bug', 'Bug', 4, '2025-01-01T00:00:00Z')`)
	assert.Error(t, err, "duplicate level_order within a template should be rejected")

	_, err = db.Exec(`INSERT INTO entity_types (id, template_id, internal_key, display_name, level_order, created_at)
		VALUES ('e3', 't1', 'task', 'Task again', 3, '2025-01-01T00:00:00Z')`)
	assert.Error(t, err, "duplicate internal_key within a template should be rejected")
}

func TestMigrate_DependencyPairUnique(t *testing.T) {
	db := openTestDB(t)

	seed := []string{
		`INSERT INTO companies (id, name, created_at) VALUES ('c1', 'Acme', '2025-01-01T00:00:00Z')`,
		`INSERT INTO projects (id, company_id, name, created_at, updated_at)
			VALUES ('p1', 'c1', 'Checkout', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`,
		`INSERT INTO process_templates (id, company_id, name, status, created_at, updated_at)
			VALUES ('t1', 'c1', 'Standard', 'CREATED', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`,
		`INSERT INTO entity_types (id, template_id, internal_key, display_name, level_order, created_at)
			VALUES ('e1', 't1', 'task', 'Task', 4, '2025-01-01T00:00:00Z')`,
		`INSERT INTO planning_items (id, project_id, entity_type_id, title, created_at, updated_at)
			VALUES ('i1', 'p1', 'e1', 'First', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`,
		`INSERT INTO planning_items (id, project_id, entity_type_id, title, created_at, updated_at)
			VALUES ('i2', 'p1', 'e1', 'Second', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`,
	}
	for i, stmt := range seed {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "seed statement %d failed", i)
	}

	_, err := db.Exec(`INSERT INTO planning_dependencies (id, source_item_id, target_item_id, dependency_type, created_at)
		VALUES ('d1', 'i1', 'i2', 'BLOCKS', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO planning_dependencies (id, source_item_id, target_item_id, dependency_type, created_at)
		VALUES ('d2', 'i1', 'i2', 'RELATES', '2025-01-01T00:00:00Z')`)
	assert.Error(t, err, "duplicate dependency pair should be rejected")
}

func TestMigrate_DeleteCompanyCascades(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`INSERT INTO companies (id, name, created_at) VALUES ('c1', 'Acme', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO projects (id, company_id, name, created_at, updated_at)
		VALUES ('p1', 'c1', 'Checkout', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM companies WHERE id = 'c1'`)
	require.NoError(t, err)

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM projects WHERE company_id = 'c1'`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count, "projects should cascade with their company")
}
