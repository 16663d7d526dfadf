package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	// Tenancy: companies, company roles, company users.
	`CREATE TABLE IF NOT EXISTS companies (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS roles (
		id               TEXT PRIMARY KEY,
		company_id       TEXT REFERENCES companies(id) ON DELETE CASCADE,
		name             TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		is_system_role   INTEGER NOT NULL DEFAULT 0,
		permissions_json TEXT NOT NULL DEFAULT '{}',
		created_at       TEXT NOT NULL,
		UNIQUE(company_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS company_users (
		id           TEXT PRIMARY KEY,
		company_id   TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		email        TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		role_id      TEXT REFERENCES roles(id),
		is_active    INTEGER NOT NULL DEFAULT 1,
		created_at   TEXT NOT NULL,
		UNIQUE(company_id, email)
	)`,

	// Projects, project-scoped roles and membership.
	`CREATE TABLE IF NOT EXISTS projects (
		id                      TEXT PRIMARY KEY,
		company_id              TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		name                    TEXT NOT NULL,
		description             TEXT NOT NULL DEFAULT '',
		status                  TEXT NOT NULL DEFAULT 'ACTIVE'
		                        CHECK(status IN ('ACTIVE','ARCHIVED')),
		flows_enabled           INTEGER NOT NULL DEFAULT 0,
		test_cases_enabled      INTEGER NOT NULL DEFAULT 0,
		test_planning_enabled   INTEGER NOT NULL DEFAULT 0,
		template_needs_approval INTEGER NOT NULL DEFAULT 0,
		element_capture_enabled INTEGER NOT NULL DEFAULT 1,
		created_at              TEXT NOT NULL,
		updated_at              TEXT NOT NULL,
		UNIQUE(company_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_company ON projects(company_id, status)`,

	`CREATE TABLE IF NOT EXISTS project_roles (
		id               TEXT PRIMARY KEY,
		project_id       TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name             TEXT NOT NULL,
		permissions_json TEXT NOT NULL DEFAULT '{}',
		created_at       TEXT NOT NULL,
		UNIQUE(project_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS project_users (
		id              TEXT PRIMARY KEY,
		project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		company_user_id TEXT NOT NULL REFERENCES company_users(id) ON DELETE CASCADE,
		role_id         TEXT NOT NULL REFERENCES project_roles(id),
		is_active       INTEGER NOT NULL DEFAULT 1,
		UNIQUE(project_id, company_user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS planning_configs (
		id                  TEXT PRIMARY KEY,
		project_id          TEXT NOT NULL UNIQUE REFERENCES projects(id) ON DELETE CASCADE,
		entity_level_1_name TEXT NOT NULL DEFAULT '',
		entity_level_2_name TEXT NOT NULL DEFAULT '',
		entity_level_3_name TEXT NOT NULL DEFAULT '',
		entity_level_4_name TEXT NOT NULL DEFAULT '',
		entity_level_5_name TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,

	// Process templates and their structural graph.
	`CREATE TABLE IF NOT EXISTS process_templates (
		id             TEXT PRIMARY KEY,
		company_id     TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		version_number INTEGER NOT NULL DEFAULT 1,
		status         TEXT NOT NULL DEFAULT 'DRAFT'
		               CHECK(status IN ('DRAFT','SUBMITTED','APPROVAL_PENDING','APPROVED','REJECTED','CREATED','ACTIVATED')),
		is_locked      INTEGER NOT NULL DEFAULT 0,
		created_by     TEXT REFERENCES company_users(id),
		reviewer_id    TEXT REFERENCES company_users(id),
		rejection_note TEXT,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_templates_company ON process_templates(company_id, status)`,

	`CREATE TABLE IF NOT EXISTS entity_types (
		id                      TEXT PRIMARY KEY,
		template_id             TEXT NOT NULL REFERENCES process_templates(id) ON DELETE CASCADE,
		internal_key            TEXT NOT NULL,
		display_name            TEXT NOT NULL,
		level_order             INTEGER NOT NULL,
		allow_children          INTEGER NOT NULL DEFAULT 1,
		allow_execution_binding INTEGER NOT NULL DEFAULT 0,
		allow_dependencies      INTEGER NOT NULL DEFAULT 0,
		allow_time_tracking     INTEGER NOT NULL DEFAULT 0,
		workflow_id             TEXT,
		created_at              TEXT NOT NULL,
		UNIQUE(template_id, level_order),
		UNIQUE(template_id, internal_key)
	)`,

	`CREATE TABLE IF NOT EXISTS field_definitions (
		id                 TEXT PRIMARY KEY,
		entity_type_id     TEXT NOT NULL REFERENCES entity_types(id) ON DELETE CASCADE,
		field_key          TEXT NOT NULL,
		display_name       TEXT NOT NULL,
		field_type         TEXT NOT NULL
		                   CHECK(field_type IN ('text','long_text','number','date','datetime','select','multi_select','user','multi_user','boolean','json')),
		is_required        INTEGER NOT NULL DEFAULT 0,
		is_execution_field INTEGER NOT NULL DEFAULT 0,
		is_editable        INTEGER NOT NULL DEFAULT 1,
		field_order        INTEGER NOT NULL DEFAULT 0,
		options_json       TEXT,
		default_value_json TEXT,
		created_at         TEXT NOT NULL,
		UNIQUE(entity_type_id, field_key),
		UNIQUE(entity_type_id, field_order)
	)`,

	`CREATE TABLE IF NOT EXISTS workflow_definitions (
		id               TEXT PRIMARY KEY,
		entity_type_id   TEXT NOT NULL UNIQUE REFERENCES entity_types(id) ON DELETE CASCADE,
		initial_state_id TEXT,
		created_at       TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS workflow_states (
		id          TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL REFERENCES workflow_definitions(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		is_final    INTEGER NOT NULL DEFAULT 0,
		state_order INTEGER NOT NULL DEFAULT 0,
		UNIQUE(workflow_id, name),
		UNIQUE(workflow_id, state_order)
	)`,

	`CREATE TABLE IF NOT EXISTS workflow_transitions (
		id                 TEXT PRIMARY KEY,
		workflow_id        TEXT NOT NULL REFERENCES workflow_definitions(id) ON DELETE CASCADE,
		from_state_id      TEXT NOT NULL REFERENCES workflow_states(id) ON DELETE CASCADE,
		to_state_id        TEXT NOT NULL REFERENCES workflow_states(id) ON DELETE CASCADE,
		allowed_roles_json TEXT NOT NULL DEFAULT '[]',
		created_at         TEXT NOT NULL,
		UNIQUE(workflow_id, from_state_id, to_state_id)
	)`,

	`CREATE TABLE IF NOT EXISTS time_tracking_rules (
		id                      TEXT PRIMARY KEY,
		entity_type_id          TEXT NOT NULL UNIQUE REFERENCES entity_types(id) ON DELETE CASCADE,
		start_mode              TEXT NOT NULL
		                        CHECK(start_mode IN ('MANUAL','STATUS_CHANGE','EXECUTION_START')),
		stop_mode               TEXT NOT NULL
		                        CHECK(stop_mode IN ('MANUAL','STATUS_CHANGE','EXECUTION_END')),
		allow_multiple_sessions INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS template_bindings (
		id           TEXT PRIMARY KEY,
		project_id   TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		template_id  TEXT NOT NULL REFERENCES process_templates(id),
		is_active    INTEGER NOT NULL DEFAULT 1,
		activated_by TEXT REFERENCES company_users(id),
		activated_at TEXT NOT NULL,
		UNIQUE(project_id, template_id)
	)`,

	// Folder trees: one table per family, same shape.
	`CREATE TABLE IF NOT EXISTS flow_folders (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		parent_id  TEXT REFERENCES flow_folders(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		path       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(project_id, path)
	)`,

	`CREATE TABLE IF NOT EXISTS test_case_folders (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		parent_id  TEXT REFERENCES test_case_folders(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		path       TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'ACTIVE' CHECK(status IN ('ACTIVE','ARCHIVED')),
		created_at TEXT NOT NULL,
		UNIQUE(project_id, path)
	)`,

	`CREATE TABLE IF NOT EXISTS variable_folders (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		parent_id  TEXT REFERENCES variable_folders(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		path       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(project_id, path)
	)`,

	`CREATE TABLE IF NOT EXISTS element_folders (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		parent_id  TEXT REFERENCES element_folders(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		path       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(project_id, path)
	)`,

	// Flows, test cases and their immutable version chains.
	`CREATE TABLE IF NOT EXISTS flows (
		id              TEXT PRIMARY KEY,
		project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		folder_id       TEXT REFERENCES flow_folders(id) ON DELETE SET NULL,
		name            TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		current_version INTEGER NOT NULL DEFAULT 1,
		status          TEXT NOT NULL DEFAULT 'DRAFT'
		                CHECK(status IN ('DRAFT','SAVED','ARCHIVED')),
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		UNIQUE(project_id, folder_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS flow_versions (
		id                   TEXT PRIMARY KEY,
		flow_id              TEXT NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
		version_number       INTEGER NOT NULL,
		steps_json           TEXT NOT NULL,
		created_from_version INTEGER,
		created_at           TEXT NOT NULL,
		UNIQUE(flow_id, version_number)
	)`,

	`CREATE TABLE IF NOT EXISTS test_cases (
		id              TEXT PRIMARY KEY,
		project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		folder_id       TEXT NOT NULL REFERENCES test_case_folders(id),
		name            TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'DRAFT'
		                CHECK(status IN ('DRAFT','SAVED','ARCHIVED')),
		current_version INTEGER,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		UNIQUE(project_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS test_case_versions (
		id                     TEXT PRIMARY KEY,
		test_case_id           TEXT NOT NULL REFERENCES test_cases(id) ON DELETE CASCADE,
		version_number         INTEGER NOT NULL,
		pre_conditions_json    TEXT NOT NULL DEFAULT '[]',
		steps_json             TEXT NOT NULL DEFAULT '[]',
		expected_outcomes_json TEXT NOT NULL DEFAULT '[]',
		created_from_version   INTEGER,
		created_at             TEXT NOT NULL,
		UNIQUE(test_case_id, version_number)
	)`,

	// Variables and elements: leaf entities of the remaining folder trees.
	`CREATE TABLE IF NOT EXISTS variables (
		id          TEXT PRIMARY KEY,
		project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		folder_id   TEXT NOT NULL REFERENCES variable_folders(id),
		key         TEXT NOT NULL,
		value       TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		UNIQUE(project_id, key)
	)`,

	`CREATE TABLE IF NOT EXISTS elements (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		folder_id  TEXT NOT NULL REFERENCES element_folders(id),
		name       TEXT NOT NULL,
		page_url   TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS element_locators (
		id             TEXT PRIMARY KEY,
		element_id     TEXT NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
		selector_type  TEXT NOT NULL,
		selector_value TEXT NOT NULL,
		priority       INTEGER NOT NULL DEFAULT 0,
		is_active      INTEGER NOT NULL DEFAULT 1,
		created_at     TEXT NOT NULL
	)`,

	// Planning items, field values, dependencies, bindings, sessions.
	`CREATE TABLE IF NOT EXISTS planning_items (
		id              TEXT PRIMARY KEY,
		project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		entity_type_id  TEXT NOT NULL REFERENCES entity_types(id) ON DELETE CASCADE,
		parent_id       TEXT REFERENCES planning_items(id) ON DELETE CASCADE,
		title           TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		path            TEXT NOT NULL DEFAULT '',
		status_state_id TEXT REFERENCES workflow_states(id),
		owner_id        TEXT REFERENCES project_users(id),
		created_by      TEXT REFERENCES project_users(id),
		start_date      TEXT,
		end_date        TEXT,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_project ON planning_items(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_items_parent ON planning_items(parent_id)`,

	`CREATE TABLE IF NOT EXISTS planning_item_assignees (
		item_id         TEXT NOT NULL REFERENCES planning_items(id) ON DELETE CASCADE,
		project_user_id TEXT NOT NULL REFERENCES project_users(id) ON DELETE CASCADE,
		PRIMARY KEY(item_id, project_user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS item_field_values (
		id                  TEXT PRIMARY KEY,
		item_id             TEXT NOT NULL REFERENCES planning_items(id) ON DELETE CASCADE,
		field_definition_id TEXT NOT NULL REFERENCES field_definitions(id) ON DELETE CASCADE,
		value_json          TEXT NOT NULL,
		UNIQUE(item_id, field_definition_id)
	)`,

	`CREATE TABLE IF NOT EXISTS planning_dependencies (
		id              TEXT PRIMARY KEY,
		source_item_id  TEXT NOT NULL REFERENCES planning_items(id) ON DELETE CASCADE,
		target_item_id  TEXT NOT NULL REFERENCES planning_items(id) ON DELETE CASCADE,
		dependency_type TEXT NOT NULL CHECK(dependency_type IN ('BLOCKS','RELATES')),
		created_at      TEXT NOT NULL,
		UNIQUE(source_item_id, target_item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deps_target ON planning_dependencies(target_item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_deps_source ON planning_dependencies(source_item_id)`,

	`CREATE TABLE IF NOT EXISTS execution_bindings (
		id             TEXT PRIMARY KEY,
		item_id        TEXT NOT NULL UNIQUE REFERENCES planning_items(id) ON DELETE CASCADE,
		flow_id        TEXT REFERENCES flows(id) ON DELETE SET NULL,
		test_case_id   TEXT REFERENCES test_cases(id) ON DELETE SET NULL,
		execution_mode TEXT NOT NULL DEFAULT '',
		auto_trigger   INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS time_sessions (
		id               TEXT PRIMARY KEY,
		item_id          TEXT NOT NULL REFERENCES planning_items(id) ON DELETE CASCADE,
		project_user_id  TEXT NOT NULL REFERENCES project_users(id) ON DELETE CASCADE,
		started_at       TEXT NOT NULL,
		ended_at         TEXT,
		duration_seconds INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_item ON time_sessions(item_id, ended_at)`,
}
