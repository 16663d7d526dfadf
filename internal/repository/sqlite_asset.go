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

const variableColumns = `id, project_id, folder_id, key, value, description, created_at, updated_at`

// SQLiteVariableRepo implements VariableRepo over a DBTX.
type SQLiteVariableRepo struct {
	db db.DBTX
}

func NewSQLiteVariableRepo(dbtx db.DBTX) *SQLiteVariableRepo {
	return &SQLiteVariableRepo{db: dbtx}
}

func (r *SQLiteVariableRepo) Create(ctx context.Context, v *domain.Variable) error {
	query := `INSERT INTO variables (` + variableColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		v.ID,
		v.ProjectID,
		v.FolderID,
		v.Key,
		v.Value,
		v.Description,
		v.CreatedAt.Format(time.RFC3339),
		v.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("variable key %q already used in project", v.Key)
		}
		return fmt.Errorf("inserting variable: %w", err)
	}
	return nil
}

func (r *SQLiteVariableRepo) GetByID(ctx context.Context, id string) (*domain.Variable, error) {
	query := `SELECT ` + variableColumns + ` FROM variables WHERE id = ?`
	v, err := scanVariable(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("variable %s", id)
	}
	return v, err
}

func (r *SQLiteVariableRepo) GetByKey(ctx context.Context, projectID, key string) (*domain.Variable, error) {
	query := `SELECT ` + variableColumns + ` FROM variables WHERE project_id = ? AND key = ?`
	v, err := scanVariable(r.db.QueryRowContext(ctx, query, projectID, key))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("variable %s", key)
	}
	return v, err
}

func (r *SQLiteVariableRepo) ListByFolder(ctx context.Context, folderID string) ([]*domain.Variable, error) {
	query := `SELECT ` + variableColumns + ` FROM variables WHERE folder_id = ? ORDER BY key`
	rows, err := r.db.QueryContext(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("listing variables: %w", err)
	}
	defer rows.Close()

	var vars []*domain.Variable
	for rows.Next() {
		v, err := scanVariable(rows)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating variables: %w", err)
	}
	return vars, nil
}

func (r *SQLiteVariableRepo) Update(ctx context.Context, v *domain.Variable) error {
	query := `UPDATE variables SET folder_id = ?, key = ?, value = ?, description = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		v.FolderID, v.Key, v.Value, v.Description, v.UpdatedAt.Format(time.RFC3339), v.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("variable key %q already used in project", v.Key)
		}
		return fmt.Errorf("updating variable: %w", err)
	}
	return nil
}

func (r *SQLiteVariableRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM variables WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting variable: %w", err)
	}
	return nil
}

func (r *SQLiteVariableRepo) CountByFolder(ctx context.Context, folderID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM variables WHERE folder_id = ?`, folderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting variables in folder: %w", err)
	}
	return n, nil
}

func scanVariable(row scanner) (*domain.Variable, error) {
	var v domain.Variable
	var createdAtStr, updatedAtStr string
	err := row.Scan(
		&v.ID, &v.ProjectID, &v.FolderID, &v.Key, &v.Value, &v.Description,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning variable: %w", err)
	}
	v.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	v.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &v, nil
}

// SQLiteElementRepo implements ElementRepo over a DBTX.
type SQLiteElementRepo struct {
	db db.DBTX
}

func NewSQLiteElementRepo(dbtx db.DBTX) *SQLiteElementRepo {
	return &SQLiteElementRepo{db: dbtx}
}

func (r *SQLiteElementRepo) Create(ctx context.Context, e *domain.Element) error {
	query := `INSERT INTO elements (id, project_id, folder_id, name, page_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.ProjectID, e.FolderID, e.Name, e.PageURL, e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting element: %w", err)
	}
	return nil
}

func (r *SQLiteElementRepo) GetByID(ctx context.Context, id string) (*domain.Element, error) {
	query := `SELECT id, project_id, folder_id, name, page_url, created_at FROM elements WHERE id = ?`
	var e domain.Element
	var createdAtStr string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.ProjectID, &e.FolderID, &e.Name, &e.PageURL, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("element %s", id)
		}
		return nil, fmt.Errorf("scanning element: %w", err)
	}
	e.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &e, nil
}

func (r *SQLiteElementRepo) ListByFolder(ctx context.Context, folderID string) ([]*domain.Element, error) {
	query := `SELECT id, project_id, folder_id, name, page_url, created_at
		FROM elements WHERE folder_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("listing elements: %w", err)
	}
	defer rows.Close()

	var elements []*domain.Element
	for rows.Next() {
		var e domain.Element
		var createdAtStr string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.FolderID, &e.Name, &e.PageURL, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning element: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		elements = append(elements, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating elements: %w", err)
	}
	return elements, nil
}

func (r *SQLiteElementRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM elements WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting element: %w", err)
	}
	return nil
}

func (r *SQLiteElementRepo) CountByFolder(ctx context.Context, folderID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM elements WHERE folder_id = ?`, folderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting elements in folder: %w", err)
	}
	return n, nil
}

const locatorColumns = `id, element_id, selector_type, selector_value, priority, is_active, created_at`

func (r *SQLiteElementRepo) CreateLocator(ctx context.Context, l *domain.ElementLocator) error {
	query := `INSERT INTO element_locators (` + locatorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.ElementID, l.SelectorType, l.SelectorValue, l.Priority,
		boolToInt(l.IsActive), l.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting element locator: %w", err)
	}
	return nil
}

func (r *SQLiteElementRepo) ListLocators(ctx context.Context, elementID string) ([]*domain.ElementLocator, error) {
	query := `SELECT ` + locatorColumns + ` FROM element_locators
		WHERE element_id = ? ORDER BY priority`
	rows, err := r.db.QueryContext(ctx, query, elementID)
	if err != nil {
		return nil, fmt.Errorf("listing element locators: %w", err)
	}
	defer rows.Close()

	var locators []*domain.ElementLocator
	for rows.Next() {
		var l domain.ElementLocator
		var activeInt int
		var createdAtStr string
		err := rows.Scan(&l.ID, &l.ElementID, &l.SelectorType, &l.SelectorValue,
			&l.Priority, &activeInt, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("scanning element locator: %w", err)
		}
		l.IsActive = intToBool(activeInt)
		l.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		locators = append(locators, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating element locators: %w", err)
	}
	return locators, nil
}

func (r *SQLiteElementRepo) UpdateLocator(ctx context.Context, l *domain.ElementLocator) error {
	query := `UPDATE element_locators SET selector_type = ?, selector_value = ?, priority = ?, is_active = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		l.SelectorType, l.SelectorValue, l.Priority, boolToInt(l.IsActive), l.ID,
	)
	if err != nil {
		return fmt.Errorf("updating element locator: %w", err)
	}
	return nil
}

func (r *SQLiteElementRepo) DeleteLocator(ctx context.Context, id string) error {
	query := `DELETE FROM element_locators WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting element locator: %w", err)
	}
	return nil
}
