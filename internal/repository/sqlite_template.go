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

// templateColumns is the canonical SELECT column list for process_templates.
const templateColumns = `id, company_id, name, description, version_number,
		status, is_locked, created_by, reviewer_id, rejection_note, created_at, updated_at`

// SQLiteTemplateRepo implements TemplateRepo over a DBTX.
type SQLiteTemplateRepo struct {
	db db.DBTX
}

func NewSQLiteTemplateRepo(dbtx db.DBTX) *SQLiteTemplateRepo {
	return &SQLiteTemplateRepo{db: dbtx}
}

func (r *SQLiteTemplateRepo) Create(ctx context.Context, t *domain.ProcessTemplate) error {
	query := `INSERT INTO process_templates (` + templateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.CompanyID,
		t.Name,
		t.Description,
		t.VersionNumber,
		string(t.Status),
		boolToInt(t.IsLocked),
		nullableStr(t.CreatedBy),
		nullableStr(t.ReviewerID),
		nullableStr(t.RejectionNote),
		t.CreatedAt.Format(time.RFC3339),
		t.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting template: %w", err)
	}
	return nil
}

func (r *SQLiteTemplateRepo) GetByID(ctx context.Context, id string) (*domain.ProcessTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM process_templates WHERE id = ?`
	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("template %s", id)
	}
	return t, err
}

func (r *SQLiteTemplateRepo) ListByCompany(ctx context.Context, companyID string) ([]*domain.ProcessTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM process_templates
		WHERE company_id = ? ORDER BY name, version_number`
	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.ProcessTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating templates: %w", err)
	}
	return templates, nil
}

func (r *SQLiteTemplateRepo) Update(ctx context.Context, t *domain.ProcessTemplate) error {
	query := `UPDATE process_templates SET name = ?, description = ?, version_number = ?,
		status = ?, is_locked = ?, reviewer_id = ?, rejection_note = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		t.Name,
		t.Description,
		t.VersionNumber,
		string(t.Status),
		boolToInt(t.IsLocked),
		nullableStr(t.ReviewerID),
		nullableStr(t.RejectionNote),
		t.UpdatedAt.Format(time.RFC3339),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating template: %w", err)
	}
	return nil
}

func (r *SQLiteTemplateRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM process_templates WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	return nil
}

func scanTemplate(row scanner) (*domain.ProcessTemplate, error) {
	var t domain.ProcessTemplate
	var statusStr, createdAtStr, updatedAtStr string
	var lockedInt int
	var createdBy, reviewerID, rejectionNote sql.NullString
	err := row.Scan(
		&t.ID, &t.CompanyID, &t.Name, &t.Description, &t.VersionNumber,
		&statusStr, &lockedInt, &createdBy, &reviewerID, &rejectionNote,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning template: %w", err)
	}
	t.Status = domain.TemplateStatus(statusStr)
	t.IsLocked = intToBool(lockedInt)
	t.CreatedBy = strPtr(createdBy)
	t.ReviewerID = strPtr(reviewerID)
	t.RejectionNote = strPtr(rejectionNote)
	t.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	t.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}

const bindingColumns = `id, project_id, template_id, is_active, activated_by, activated_at`

func (r *SQLiteTemplateRepo) GetBinding(ctx context.Context, projectID, templateID string) (*domain.TemplateBinding, error) {
	query := `SELECT ` + bindingColumns + ` FROM template_bindings
		WHERE project_id = ? AND template_id = ?`
	b, err := scanBinding(r.db.QueryRowContext(ctx, query, projectID, templateID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("binding of template %s in project %s", templateID, projectID)
	}
	return b, err
}

func (r *SQLiteTemplateRepo) GetActiveBinding(ctx context.Context, projectID string) (*domain.TemplateBinding, error) {
	query := `SELECT ` + bindingColumns + ` FROM template_bindings
		WHERE project_id = ? AND is_active = 1`
	b, err := scanBinding(r.db.QueryRowContext(ctx, query, projectID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("no active template binding for project %s", projectID)
	}
	return b, err
}

func (r *SQLiteTemplateRepo) ListActiveBindingsByTemplate(ctx context.Context, templateID string) ([]*domain.TemplateBinding, error) {
	query := `SELECT ` + bindingColumns + ` FROM template_bindings
		WHERE template_id = ? AND is_active = 1`
	rows, err := r.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("listing template bindings: %w", err)
	}
	defer rows.Close()

	var bindings []*domain.TemplateBinding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating template bindings: %w", err)
	}
	return bindings, nil
}

func (r *SQLiteTemplateRepo) UpsertBinding(ctx context.Context, b *domain.TemplateBinding) error {
	query := `INSERT INTO template_bindings (` + bindingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, template_id) DO UPDATE SET
			is_active = excluded.is_active,
			activated_by = excluded.activated_by,
			activated_at = excluded.activated_at`
	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.ProjectID,
		b.TemplateID,
		boolToInt(b.IsActive),
		nullableStr(b.ActivatedBy),
		b.ActivatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting template binding: %w", err)
	}
	return nil
}

func (r *SQLiteTemplateRepo) DeactivateBinding(ctx context.Context, id string) error {
	query := `UPDATE template_bindings SET is_active = 0 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deactivating template binding: %w", err)
	}
	return nil
}

func scanBinding(row scanner) (*domain.TemplateBinding, error) {
	var b domain.TemplateBinding
	var activeInt int
	var activatedBy sql.NullString
	var activatedAtStr string
	err := row.Scan(&b.ID, &b.ProjectID, &b.TemplateID, &activeInt, &activatedBy, &activatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning template binding: %w", err)
	}
	b.IsActive = intToBool(activeInt)
	b.ActivatedBy = strPtr(activatedBy)
	b.ActivatedAt, err = time.Parse(time.RFC3339, activatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing activated_at: %w", err)
	}
	return &b, nil
}
