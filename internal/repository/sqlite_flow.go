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

const flowColumns = `id, project_id, folder_id, name, description, current_version,
		status, created_at, updated_at`

// SQLiteFlowRepo implements FlowRepo over a DBTX.
type SQLiteFlowRepo struct {
	db db.DBTX
}

func NewSQLiteFlowRepo(dbtx db.DBTX) *SQLiteFlowRepo {
	return &SQLiteFlowRepo{db: dbtx}
}

func (r *SQLiteFlowRepo) Create(ctx context.Context, f *domain.Flow) error {
	query := `INSERT INTO flows (` + flowColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		f.ID,
		f.ProjectID,
		nullableStr(f.FolderID),
		f.Name,
		f.Description,
		f.CurrentVersion,
		string(f.Status),
		f.CreatedAt.Format(time.RFC3339),
		f.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("flow name %q already used in folder", f.Name)
		}
		return fmt.Errorf("inserting flow: %w", err)
	}
	return nil
}

func (r *SQLiteFlowRepo) GetByID(ctx context.Context, id string) (*domain.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE id = ?`
	f, err := scanFlow(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("flow %s", id)
	}
	return f, err
}

func (r *SQLiteFlowRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE project_id = ? ORDER BY name`
	return r.list(ctx, query, projectID)
}

func (r *SQLiteFlowRepo) ListByFolder(ctx context.Context, folderID string) ([]*domain.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE folder_id = ? ORDER BY name`
	return r.list(ctx, query, folderID)
}

func (r *SQLiteFlowRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Flow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing flows: %w", err)
	}
	defer rows.Close()

	var flows []*domain.Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating flows: %w", err)
	}
	return flows, nil
}

func (r *SQLiteFlowRepo) Update(ctx context.Context, f *domain.Flow) error {
	query := `UPDATE flows SET folder_id = ?, name = ?, description = ?, current_version = ?,
		status = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		nullableStr(f.FolderID),
		f.Name,
		f.Description,
		f.CurrentVersion,
		string(f.Status),
		f.UpdatedAt.Format(time.RFC3339),
		f.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("flow name %q already used in folder", f.Name)
		}
		return fmt.Errorf("updating flow: %w", err)
	}
	return nil
}

func (r *SQLiteFlowRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM flows WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting flow: %w", err)
	}
	return nil
}

func (r *SQLiteFlowRepo) CountByFolder(ctx context.Context, folderID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flows WHERE folder_id = ?`, folderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting flows in folder: %w", err)
	}
	return n, nil
}

func scanFlow(row scanner) (*domain.Flow, error) {
	var f domain.Flow
	var folderID sql.NullString
	var statusStr, createdAtStr, updatedAtStr string
	err := row.Scan(
		&f.ID, &f.ProjectID, &folderID, &f.Name, &f.Description, &f.CurrentVersion,
		&statusStr, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning flow: %w", err)
	}
	f.FolderID = strPtr(folderID)
	f.Status = domain.VersionedStatus(statusStr)
	f.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	f.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &f, nil
}

const flowVersionColumns = `id, flow_id, version_number, steps_json, created_from_version, created_at`

func (r *SQLiteFlowRepo) CreateVersion(ctx context.Context, v *domain.FlowVersion) error {
	query := `INSERT INTO flow_versions (` + flowVersionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		v.ID,
		v.FlowID,
		v.VersionNumber,
		v.StepsJSON,
		nullableInt(v.CreatedFromVersion),
		v.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("flow version %d already exists", v.VersionNumber)
		}
		return fmt.Errorf("inserting flow version: %w", err)
	}
	return nil
}

func (r *SQLiteFlowRepo) GetVersion(ctx context.Context, flowID string, number int) (*domain.FlowVersion, error) {
	query := `SELECT ` + flowVersionColumns + ` FROM flow_versions
		WHERE flow_id = ? AND version_number = ?`
	v, err := scanFlowVersion(r.db.QueryRowContext(ctx, query, flowID, number))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("flow version %d", number)
	}
	return v, err
}

func (r *SQLiteFlowRepo) ListVersions(ctx context.Context, flowID string) ([]*domain.FlowVersion, error) {
	query := `SELECT ` + flowVersionColumns + ` FROM flow_versions
		WHERE flow_id = ? ORDER BY version_number`
	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("listing flow versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.FlowVersion
	for rows.Next() {
		v, err := scanFlowVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating flow versions: %w", err)
	}
	return versions, nil
}

func (r *SQLiteFlowRepo) CountVersions(ctx context.Context, flowID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flow_versions WHERE flow_id = ?`, flowID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting flow versions: %w", err)
	}
	return n, nil
}

func scanFlowVersion(row scanner) (*domain.FlowVersion, error) {
	var v domain.FlowVersion
	var createdFrom sql.NullInt64
	var createdAtStr string
	err := row.Scan(&v.ID, &v.FlowID, &v.VersionNumber, &v.StepsJSON, &createdFrom, &createdAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning flow version: %w", err)
	}
	v.CreatedFromVersion = intPtr(createdFrom)
	v.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &v, nil
}
