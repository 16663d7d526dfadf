package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
)

// SQLiteSchemaRepo implements SchemaRepo over a DBTX.
type SQLiteSchemaRepo struct {
	db db.DBTX
}

func NewSQLiteSchemaRepo(dbtx db.DBTX) *SQLiteSchemaRepo {
	return &SQLiteSchemaRepo{db: dbtx}
}

const entityTypeColumns = `id, template_id, internal_key, display_name, level_order,
		allow_children, allow_execution_binding, allow_dependencies, allow_time_tracking,
		workflow_id, created_at`

func (r *SQLiteSchemaRepo) CreateEntityType(ctx context.Context, et *domain.EntityType) error {
	query := `INSERT INTO entity_types (` + entityTypeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		et.ID,
		et.TemplateID,
		et.InternalKey,
		et.DisplayName,
		et.LevelOrder,
		boolToInt(et.AllowChildren),
		boolToInt(et.AllowExecutionBinding),
		boolToInt(et.AllowDependencies),
		boolToInt(et.AllowTimeTracking),
		nullableStr(et.WorkflowID),
		et.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("entity type key %q or level %d already used in template", et.InternalKey, et.LevelOrder)
		}
		return fmt.Errorf("inserting entity type: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) GetEntityType(ctx context.Context, id string) (*domain.EntityType, error) {
	query := `SELECT ` + entityTypeColumns + ` FROM entity_types WHERE id = ?`
	et, err := scanEntityType(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("entity type %s", id)
	}
	return et, err
}

func (r *SQLiteSchemaRepo) ListEntityTypes(ctx context.Context, templateID string) ([]*domain.EntityType, error) {
	query := `SELECT ` + entityTypeColumns + ` FROM entity_types
		WHERE template_id = ? ORDER BY level_order`
	rows, err := r.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("listing entity types: %w", err)
	}
	defer rows.Close()

	var types []*domain.EntityType
	for rows.Next() {
		et, err := scanEntityType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, et)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity types: %w", err)
	}
	return types, nil
}

func (r *SQLiteSchemaRepo) UpdateEntityType(ctx context.Context, et *domain.EntityType) error {
	query := `UPDATE entity_types SET internal_key = ?, display_name = ?, level_order = ?,
		allow_children = ?, allow_execution_binding = ?, allow_dependencies = ?,
		allow_time_tracking = ?, workflow_id = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		et.InternalKey,
		et.DisplayName,
		et.LevelOrder,
		boolToInt(et.AllowChildren),
		boolToInt(et.AllowExecutionBinding),
		boolToInt(et.AllowDependencies),
		boolToInt(et.AllowTimeTracking),
		nullableStr(et.WorkflowID),
		et.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("entity type key %q or level %d already used in template", et.InternalKey, et.LevelOrder)
		}
		return fmt.Errorf("updating entity type: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) DeleteEntityType(ctx context.Context, id string) error {
	query := `DELETE FROM entity_types WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting entity type: %w", err)
	}
	return nil
}

func scanEntityType(row scanner) (*domain.EntityType, error) {
	var et domain.EntityType
	var children, binding, deps, tracking int
	var workflowID sql.NullString
	var createdAtStr string
	err := row.Scan(
		&et.ID, &et.TemplateID, &et.InternalKey, &et.DisplayName, &et.LevelOrder,
		&children, &binding, &deps, &tracking, &workflowID, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entity type: %w", err)
	}
	et.AllowChildren = intToBool(children)
	et.AllowExecutionBinding = intToBool(binding)
	et.AllowDependencies = intToBool(deps)
	et.AllowTimeTracking = intToBool(tracking)
	et.WorkflowID = strPtr(workflowID)
	et.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &et, nil
}

const fieldColumns = `id, entity_type_id, field_key, display_name, field_type,
		is_required, is_execution_field, is_editable, field_order, options_json,
		default_value_json, created_at`

func (r *SQLiteSchemaRepo) CreateField(ctx context.Context, f *domain.FieldDefinition) error {
	optionsJSON, err := encodeOptions(f.Options)
	if err != nil {
		return err
	}
	query := `INSERT INTO field_definitions (` + fieldColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		f.ID,
		f.EntityTypeID,
		f.FieldKey,
		f.DisplayName,
		string(f.FieldType),
		boolToInt(f.IsRequired),
		boolToInt(f.IsExecutionField),
		boolToInt(f.IsEditable),
		f.FieldOrder,
		optionsJSON,
		nullableStr(f.DefaultValueJSON),
		f.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("field key %q or order %d already used", f.FieldKey, f.FieldOrder)
		}
		return fmt.Errorf("inserting field definition: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) GetField(ctx context.Context, id string) (*domain.FieldDefinition, error) {
	query := `SELECT ` + fieldColumns + ` FROM field_definitions WHERE id = ?`
	f, err := scanField(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("field definition %s", id)
	}
	return f, err
}

func (r *SQLiteSchemaRepo) ListFields(ctx context.Context, entityTypeID string) ([]*domain.FieldDefinition, error) {
	query := `SELECT ` + fieldColumns + ` FROM field_definitions
		WHERE entity_type_id = ? ORDER BY field_order`
	rows, err := r.db.QueryContext(ctx, query, entityTypeID)
	if err != nil {
		return nil, fmt.Errorf("listing field definitions: %w", err)
	}
	defer rows.Close()

	var fields []*domain.FieldDefinition
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating field definitions: %w", err)
	}
	return fields, nil
}

func (r *SQLiteSchemaRepo) UpdateField(ctx context.Context, f *domain.FieldDefinition) error {
	// field_key and field_type are immutable; the service enforces it,
	// the statement simply omits them.
	optionsJSON, err := encodeOptions(f.Options)
	if err != nil {
		return err
	}
	query := `UPDATE field_definitions SET display_name = ?, is_required = ?,
		is_execution_field = ?, is_editable = ?, field_order = ?, options_json = ?,
		default_value_json = ?
		WHERE id = ?`
	_, err = r.db.ExecContext(ctx, query,
		f.DisplayName,
		boolToInt(f.IsRequired),
		boolToInt(f.IsExecutionField),
		boolToInt(f.IsEditable),
		f.FieldOrder,
		optionsJSON,
		nullableStr(f.DefaultValueJSON),
		f.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("field order %d already used", f.FieldOrder)
		}
		return fmt.Errorf("updating field definition: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) DeleteField(ctx context.Context, id string) error {
	query := `DELETE FROM field_definitions WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting field definition: %w", err)
	}
	return nil
}

func encodeOptions(options []string) (interface{}, error) {
	if options == nil {
		return nil, nil
	}
	return encodeJSONList(options)
}

func scanField(row scanner) (*domain.FieldDefinition, error) {
	var f domain.FieldDefinition
	var typeStr, createdAtStr string
	var required, execField, editable int
	var optionsJSON, defaultJSON sql.NullString
	err := row.Scan(
		&f.ID, &f.EntityTypeID, &f.FieldKey, &f.DisplayName, &typeStr,
		&required, &execField, &editable, &f.FieldOrder, &optionsJSON,
		&defaultJSON, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning field definition: %w", err)
	}
	f.FieldType = domain.FieldType(typeStr)
	f.IsRequired = intToBool(required)
	f.IsExecutionField = intToBool(execField)
	f.IsEditable = intToBool(editable)
	if optionsJSON.Valid {
		f.Options, err = decodeJSONList(optionsJSON.String)
		if err != nil {
			return nil, err
		}
	}
	f.DefaultValueJSON = strPtr(defaultJSON)
	f.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &f, nil
}

func (r *SQLiteSchemaRepo) CreateWorkflow(ctx context.Context, w *domain.WorkflowDefinition) error {
	query := `INSERT INTO workflow_definitions (id, entity_type_id, initial_state_id, created_at)
		VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		w.ID, w.EntityTypeID, nullableStr(w.InitialStateID), w.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("entity type already has a workflow")
		}
		return fmt.Errorf("inserting workflow: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	query := `SELECT id, entity_type_id, initial_state_id, created_at
		FROM workflow_definitions WHERE id = ?`
	w, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("workflow %s", id)
	}
	return w, err
}

func (r *SQLiteSchemaRepo) GetWorkflowByEntityType(ctx context.Context, entityTypeID string) (*domain.WorkflowDefinition, error) {
	query := `SELECT id, entity_type_id, initial_state_id, created_at
		FROM workflow_definitions WHERE entity_type_id = ?`
	w, err := scanWorkflow(r.db.QueryRowContext(ctx, query, entityTypeID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("workflow for entity type %s", entityTypeID)
	}
	return w, err
}

func (r *SQLiteSchemaRepo) UpdateWorkflow(ctx context.Context, w *domain.WorkflowDefinition) error {
	query := `UPDATE workflow_definitions SET initial_state_id = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, nullableStr(w.InitialStateID), w.ID)
	if err != nil {
		return fmt.Errorf("updating workflow: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) DeleteWorkflow(ctx context.Context, id string) error {
	query := `DELETE FROM workflow_definitions WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting workflow: %w", err)
	}
	return nil
}

func scanWorkflow(row scanner) (*domain.WorkflowDefinition, error) {
	var w domain.WorkflowDefinition
	var initialStateID sql.NullString
	var createdAtStr string
	err := row.Scan(&w.ID, &w.EntityTypeID, &initialStateID, &createdAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning workflow: %w", err)
	}
	w.InitialStateID = strPtr(initialStateID)
	w.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &w, nil
}

func (r *SQLiteSchemaRepo) CreateState(ctx context.Context, s *domain.WorkflowState) error {
	query := `INSERT INTO workflow_states (id, workflow_id, name, is_final, state_order)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.WorkflowID, s.Name, boolToInt(s.IsFinal), s.StateOrder,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("state name %q or order %d already used in workflow", s.Name, s.StateOrder)
		}
		return fmt.Errorf("inserting workflow state: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) GetState(ctx context.Context, id string) (*domain.WorkflowState, error) {
	query := `SELECT id, workflow_id, name, is_final, state_order FROM workflow_states WHERE id = ?`
	s, err := scanState(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("workflow state %s", id)
	}
	return s, err
}

func (r *SQLiteSchemaRepo) ListStates(ctx context.Context, workflowID string) ([]*domain.WorkflowState, error) {
	query := `SELECT id, workflow_id, name, is_final, state_order FROM workflow_states
		WHERE workflow_id = ? ORDER BY state_order`
	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("listing workflow states: %w", err)
	}
	defer rows.Close()

	var states []*domain.WorkflowState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflow states: %w", err)
	}
	return states, nil
}

func (r *SQLiteSchemaRepo) UpdateState(ctx context.Context, s *domain.WorkflowState) error {
	query := `UPDATE workflow_states SET name = ?, is_final = ?, state_order = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, s.Name, boolToInt(s.IsFinal), s.StateOrder, s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("state name %q or order %d already used in workflow", s.Name, s.StateOrder)
		}
		return fmt.Errorf("updating workflow state: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) DeleteState(ctx context.Context, id string) error {
	query := `DELETE FROM workflow_states WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting workflow state: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) StateReferenced(ctx context.Context, stateID string) (bool, error) {
	query := `SELECT EXISTS(
			SELECT 1 FROM workflow_transitions WHERE from_state_id = ? OR to_state_id = ?
		) OR EXISTS(
			SELECT 1 FROM planning_items WHERE status_state_id = ?
		)`
	var referenced int
	err := r.db.QueryRowContext(ctx, query, stateID, stateID, stateID).Scan(&referenced)
	if err != nil {
		return false, fmt.Errorf("checking state references: %w", err)
	}
	return intToBool(referenced), nil
}

func scanState(row scanner) (*domain.WorkflowState, error) {
	var s domain.WorkflowState
	var finalInt int
	err := row.Scan(&s.ID, &s.WorkflowID, &s.Name, &finalInt, &s.StateOrder)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning workflow state: %w", err)
	}
	s.IsFinal = intToBool(finalInt)
	return &s, nil
}

const transitionColumns = `id, workflow_id, from_state_id, to_state_id, allowed_roles_json, created_at`

func (r *SQLiteSchemaRepo) CreateTransition(ctx context.Context, t *domain.WorkflowTransition) error {
	rolesJSON, err := encodeJSONList(t.AllowedRoles)
	if err != nil {
		return err
	}
	query := `INSERT INTO workflow_transitions (` + transitionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		t.ID, t.WorkflowID, t.FromStateID, t.ToStateID, rolesJSON,
		t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("transition between these states already exists")
		}
		return fmt.Errorf("inserting workflow transition: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) GetTransition(ctx context.Context, workflowID, fromStateID, toStateID string) (*domain.WorkflowTransition, error) {
	query := `SELECT ` + transitionColumns + ` FROM workflow_transitions
		WHERE workflow_id = ? AND from_state_id = ? AND to_state_id = ?`
	t, err := scanTransition(r.db.QueryRowContext(ctx, query, workflowID, fromStateID, toStateID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("transition %s -> %s", fromStateID, toStateID)
	}
	return t, err
}

func (r *SQLiteSchemaRepo) GetTransitionByID(ctx context.Context, id string) (*domain.WorkflowTransition, error) {
	query := `SELECT ` + transitionColumns + ` FROM workflow_transitions WHERE id = ?`
	t, err := scanTransition(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("transition %s", id)
	}
	return t, err
}

func (r *SQLiteSchemaRepo) ListTransitions(ctx context.Context, workflowID string) ([]*domain.WorkflowTransition, error) {
	query := `SELECT ` + transitionColumns + ` FROM workflow_transitions WHERE workflow_id = ?`
	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("listing workflow transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*domain.WorkflowTransition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflow transitions: %w", err)
	}
	return transitions, nil
}

func (r *SQLiteSchemaRepo) DeleteTransition(ctx context.Context, id string) error {
	query := `DELETE FROM workflow_transitions WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting workflow transition: %w", err)
	}
	return nil
}

func scanTransition(row scanner) (*domain.WorkflowTransition, error) {
	var t domain.WorkflowTransition
	var rolesJSON, createdAtStr string
	err := row.Scan(&t.ID, &t.WorkflowID, &t.FromStateID, &t.ToStateID, &rolesJSON, &createdAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning workflow transition: %w", err)
	}
	t.AllowedRoles, err = decodeJSONList(rolesJSON)
	if err != nil {
		return nil, err
	}
	t.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &t, nil
}

func (r *SQLiteSchemaRepo) CreateTimeRule(ctx context.Context, rule *domain.TimeTrackingRule) error {
	query := `INSERT INTO time_tracking_rules (id, entity_type_id, start_mode, stop_mode, allow_multiple_sessions)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.EntityTypeID, string(rule.StartMode), string(rule.StopMode),
		boolToInt(rule.AllowMultipleSessions),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("entity type already has a time tracking rule")
		}
		return fmt.Errorf("inserting time tracking rule: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) GetTimeRuleByEntityType(ctx context.Context, entityTypeID string) (*domain.TimeTrackingRule, error) {
	query := `SELECT id, entity_type_id, start_mode, stop_mode, allow_multiple_sessions
		FROM time_tracking_rules WHERE entity_type_id = ?`
	var rule domain.TimeTrackingRule
	var startStr, stopStr string
	var multipleInt int
	err := r.db.QueryRowContext(ctx, query, entityTypeID).Scan(
		&rule.ID, &rule.EntityTypeID, &startStr, &stopStr, &multipleInt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("time tracking rule for entity type %s", entityTypeID)
		}
		return nil, fmt.Errorf("scanning time tracking rule: %w", err)
	}
	rule.StartMode = domain.TrackingMode(startStr)
	rule.StopMode = domain.TrackingMode(stopStr)
	rule.AllowMultipleSessions = intToBool(multipleInt)
	return &rule, nil
}

func (r *SQLiteSchemaRepo) GetTimeRule(ctx context.Context, id string) (*domain.TimeTrackingRule, error) {
	query := `SELECT id, entity_type_id, start_mode, stop_mode, allow_multiple_sessions
		FROM time_tracking_rules WHERE id = ?`
	var rule domain.TimeTrackingRule
	var startStr, stopStr string
	var multipleInt int
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rule.ID, &rule.EntityTypeID, &startStr, &stopStr, &multipleInt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("time tracking rule %s", id)
		}
		return nil, fmt.Errorf("scanning time tracking rule: %w", err)
	}
	rule.StartMode = domain.TrackingMode(startStr)
	rule.StopMode = domain.TrackingMode(stopStr)
	rule.AllowMultipleSessions = intToBool(multipleInt)
	return &rule, nil
}

func (r *SQLiteSchemaRepo) UpdateTimeRule(ctx context.Context, rule *domain.TimeTrackingRule) error {
	query := `UPDATE time_tracking_rules SET start_mode = ?, stop_mode = ?, allow_multiple_sessions = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		string(rule.StartMode), string(rule.StopMode), boolToInt(rule.AllowMultipleSessions), rule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating time tracking rule: %w", err)
	}
	return nil
}

func (r *SQLiteSchemaRepo) DeleteTimeRule(ctx context.Context, id string) error {
	query := `DELETE FROM time_tracking_rules WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting time tracking rule: %w", err)
	}
	return nil
}
