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

// itemColumns is the canonical SELECT column list for planning_items.
const itemColumns = `id, project_id, entity_type_id, parent_id, title, description,
		path, status_state_id, owner_id, created_by, start_date, end_date,
		created_at, updated_at`

// SQLiteItemRepo implements ItemRepo over a DBTX. Assignees are loaded
// separately; Get and List leave AssigneeIDs empty.
type SQLiteItemRepo struct {
	db db.DBTX
}

func NewSQLiteItemRepo(dbtx db.DBTX) *SQLiteItemRepo {
	return &SQLiteItemRepo{db: dbtx}
}

func (r *SQLiteItemRepo) Create(ctx context.Context, it *domain.PlanningItem) error {
	query := `INSERT INTO planning_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		it.ID,
		it.ProjectID,
		it.EntityTypeID,
		nullableStr(it.ParentID),
		it.Title,
		it.Description,
		it.Path,
		nullableStr(it.StatusStateID),
		nullableStr(it.OwnerID),
		nullableStr(it.CreatedBy),
		nullableTimeToString(it.StartDate, dateLayout),
		nullableTimeToString(it.EndDate, dateLayout),
		it.CreatedAt.Format(time.RFC3339),
		it.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting planning item: %w", err)
	}
	return nil
}

func (r *SQLiteItemRepo) GetByID(ctx context.Context, id string) (*domain.PlanningItem, error) {
	query := `SELECT ` + itemColumns + ` FROM planning_items WHERE id = ?`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("planning item %s", id)
	}
	return it, err
}

func (r *SQLiteItemRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.PlanningItem, error) {
	query := `SELECT ` + itemColumns + ` FROM planning_items WHERE project_id = ? ORDER BY created_at`
	return r.list(ctx, query, projectID)
}

func (r *SQLiteItemRepo) ListChildren(ctx context.Context, parentID string) ([]*domain.PlanningItem, error) {
	query := `SELECT ` + itemColumns + ` FROM planning_items WHERE parent_id = ? ORDER BY created_at`
	return r.list(ctx, query, parentID)
}

func (r *SQLiteItemRepo) list(ctx context.Context, query string, args ...any) ([]*domain.PlanningItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing planning items: %w", err)
	}
	defer rows.Close()

	var items []*domain.PlanningItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating planning items: %w", err)
	}
	return items, nil
}

func (r *SQLiteItemRepo) Update(ctx context.Context, it *domain.PlanningItem) error {
	query := `UPDATE planning_items SET parent_id = ?, title = ?, description = ?, path = ?,
		status_state_id = ?, owner_id = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		nullableStr(it.ParentID),
		it.Title,
		it.Description,
		it.Path,
		nullableStr(it.StatusStateID),
		nullableStr(it.OwnerID),
		nullableTimeToString(it.StartDate, dateLayout),
		nullableTimeToString(it.EndDate, dateLayout),
		it.UpdatedAt.Format(time.RFC3339),
		it.ID,
	)
	if err != nil {
		return fmt.Errorf("updating planning item: %w", err)
	}
	return nil
}

func (r *SQLiteItemRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM planning_items WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting planning item: %w", err)
	}
	return nil
}

func (r *SQLiteItemRepo) SetStatus(ctx context.Context, itemID, stateID string) error {
	query := `UPDATE planning_items SET status_state_id = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, stateID, nowUTC(), itemID); err != nil {
		return fmt.Errorf("updating planning item status: %w", err)
	}
	return nil
}

func (r *SQLiteItemRepo) ReplaceAssignees(ctx context.Context, itemID string, projectUserIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM planning_item_assignees WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("clearing assignees: %w", err)
	}
	for _, userID := range projectUserIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO planning_item_assignees (item_id, project_user_id) VALUES (?, ?)`,
			itemID, userID,
		)
		if err != nil {
			return fmt.Errorf("inserting assignee: %w", err)
		}
	}
	return nil
}

func (r *SQLiteItemRepo) ListAssignees(ctx context.Context, itemID string) ([]string, error) {
	query := `SELECT project_user_id FROM planning_item_assignees WHERE item_id = ?`
	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing assignees: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning assignee: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignees: %w", err)
	}
	return ids, nil
}

func (r *SQLiteItemRepo) UpsertFieldValue(ctx context.Context, v *domain.ItemFieldValue) error {
	query := `INSERT INTO item_field_values (id, item_id, field_definition_id, value_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(item_id, field_definition_id) DO UPDATE SET value_json = excluded.value_json`
	_, err := r.db.ExecContext(ctx, query, v.ID, v.ItemID, v.FieldDefinitionID, v.ValueJSON)
	if err != nil {
		return fmt.Errorf("upserting field value: %w", err)
	}
	return nil
}

func (r *SQLiteItemRepo) ListFieldValues(ctx context.Context, itemID string) ([]*domain.ItemFieldValue, error) {
	query := `SELECT id, item_id, field_definition_id, value_json FROM item_field_values WHERE item_id = ?`
	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing field values: %w", err)
	}
	defer rows.Close()

	var values []*domain.ItemFieldValue
	for rows.Next() {
		var v domain.ItemFieldValue
		if err := rows.Scan(&v.ID, &v.ItemID, &v.FieldDefinitionID, &v.ValueJSON); err != nil {
			return nil, fmt.Errorf("scanning field value: %w", err)
		}
		values = append(values, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating field values: %w", err)
	}
	return values, nil
}

func (r *SQLiteItemRepo) DeleteFieldValue(ctx context.Context, itemID, fieldDefinitionID string) error {
	query := `DELETE FROM item_field_values WHERE item_id = ? AND field_definition_id = ?`
	if _, err := r.db.ExecContext(ctx, query, itemID, fieldDefinitionID); err != nil {
		return fmt.Errorf("deleting field value: %w", err)
	}
	return nil
}

func scanItem(row scanner) (*domain.PlanningItem, error) {
	var it domain.PlanningItem
	var parentID, statusStateID, ownerID, createdBy sql.NullString
	var startDate, endDate sql.NullString
	var createdAtStr, updatedAtStr string
	err := row.Scan(
		&it.ID, &it.ProjectID, &it.EntityTypeID, &parentID, &it.Title, &it.Description,
		&it.Path, &statusStateID, &ownerID, &createdBy, &startDate, &endDate,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning planning item: %w", err)
	}
	it.ParentID = strPtr(parentID)
	it.StatusStateID = strPtr(statusStateID)
	it.OwnerID = strPtr(ownerID)
	it.CreatedBy = strPtr(createdBy)
	it.StartDate = parseNullableTime(startDate, dateLayout)
	it.EndDate = parseNullableTime(endDate, dateLayout)
	it.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	it.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &it, nil
}
