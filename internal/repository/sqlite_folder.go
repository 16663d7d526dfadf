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

// folderTables maps each folder family to its backing table. Only the
// test-case table carries a status column.
var folderTables = map[domain.FolderFamily]string{
	domain.FolderFlows:     "flow_folders",
	domain.FolderTestCases: "test_case_folders",
	domain.FolderVariables: "variable_folders",
	domain.FolderElements:  "element_folders",
}

// SQLiteFolderRepo implements FolderRepo for one folder family; the
// family picks the table, everything else is identical across the four
// trees.
type SQLiteFolderRepo struct {
	db        db.DBTX
	table     string
	hasStatus bool
}

func NewSQLiteFolderRepo(dbtx db.DBTX, family domain.FolderFamily) *SQLiteFolderRepo {
	table, ok := folderTables[family]
	if !ok {
		panic(fmt.Sprintf("unknown folder family %q", family))
	}
	return &SQLiteFolderRepo{
		db:        dbtx,
		table:     table,
		hasStatus: family == domain.FolderTestCases,
	}
}

func (r *SQLiteFolderRepo) columns() string {
	if r.hasStatus {
		return "id, project_id, parent_id, name, path, status, created_at"
	}
	return "id, project_id, parent_id, name, path, created_at"
}

func (r *SQLiteFolderRepo) Create(ctx context.Context, f *domain.Folder) error {
	var query string
	var args []any
	if r.hasStatus {
		query = `INSERT INTO ` + r.table + ` (id, project_id, parent_id, name, path, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		args = []any{f.ID, f.ProjectID, nullableStr(f.ParentID), f.Name, f.Path,
			string(f.Status), f.CreatedAt.Format(time.RFC3339)}
	} else {
		query = `INSERT INTO ` + r.table + ` (id, project_id, parent_id, name, path, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`
		args = []any{f.ID, f.ProjectID, nullableStr(f.ParentID), f.Name, f.Path,
			f.CreatedAt.Format(time.RFC3339)}
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("folder path %q already exists in project", f.Path)
		}
		return fmt.Errorf("inserting folder: %w", err)
	}
	return nil
}

func (r *SQLiteFolderRepo) GetByID(ctx context.Context, id string) (*domain.Folder, error) {
	query := `SELECT ` + r.columns() + ` FROM ` + r.table + ` WHERE id = ?`
	f, err := r.scanFolder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("folder %s", id)
	}
	return f, err
}

func (r *SQLiteFolderRepo) GetByPath(ctx context.Context, projectID, path string) (*domain.Folder, error) {
	query := `SELECT ` + r.columns() + ` FROM ` + r.table + ` WHERE project_id = ? AND path = ?`
	f, err := r.scanFolder(r.db.QueryRowContext(ctx, query, projectID, path))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("folder %s", path)
	}
	return f, err
}

// ListByPrefix returns every folder whose path starts with prefix,
// shallowest first so prefix rewrites can proceed top-down.
func (r *SQLiteFolderRepo) ListByPrefix(ctx context.Context, projectID, prefix string) ([]*domain.Folder, error) {
	query := `SELECT ` + r.columns() + ` FROM ` + r.table + `
		WHERE project_id = ? AND path LIKE ? ESCAPE '\' ORDER BY LENGTH(path)`
	return r.list(ctx, query, projectID, escapeLike(prefix)+"%")
}

func (r *SQLiteFolderRepo) ListRoots(ctx context.Context, projectID string) ([]*domain.Folder, error) {
	query := `SELECT ` + r.columns() + ` FROM ` + r.table + `
		WHERE project_id = ? AND parent_id IS NULL ORDER BY name`
	return r.list(ctx, query, projectID)
}

func (r *SQLiteFolderRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Folder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	defer rows.Close()

	var folders []*domain.Folder
	for rows.Next() {
		f, err := r.scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating folders: %w", err)
	}
	return folders, nil
}

func (r *SQLiteFolderRepo) Update(ctx context.Context, f *domain.Folder) error {
	var query string
	var args []any
	if r.hasStatus {
		query = `UPDATE ` + r.table + ` SET parent_id = ?, name = ?, path = ?, status = ? WHERE id = ?`
		args = []any{nullableStr(f.ParentID), f.Name, f.Path, string(f.Status), f.ID}
	} else {
		query = `UPDATE ` + r.table + ` SET parent_id = ?, name = ?, path = ? WHERE id = ?`
		args = []any{nullableStr(f.ParentID), f.Name, f.Path, f.ID}
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("folder path %q already exists in project", f.Path)
		}
		return fmt.Errorf("updating folder: %w", err)
	}
	return nil
}

func (r *SQLiteFolderRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM ` + r.table + ` WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}
	return nil
}

func (r *SQLiteFolderRepo) HasChildren(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM ` + r.table + ` WHERE parent_id = ?)`
	var exists int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking folder children: %w", err)
	}
	return intToBool(exists), nil
}

func (r *SQLiteFolderRepo) scanFolder(row scanner) (*domain.Folder, error) {
	var f domain.Folder
	var parentID sql.NullString
	var createdAtStr string
	var err error
	if r.hasStatus {
		var statusStr string
		err = row.Scan(&f.ID, &f.ProjectID, &parentID, &f.Name, &f.Path, &statusStr, &createdAtStr)
		f.Status = domain.FolderStatus(statusStr)
	} else {
		err = row.Scan(&f.ID, &f.ProjectID, &parentID, &f.Name, &f.Path, &createdAtStr)
		f.Status = domain.FolderActive
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning folder: %w", err)
	}
	f.ParentID = strPtr(parentID)
	f.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &f, nil
}

// escapeLike escapes LIKE metacharacters so a path prefix matches literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
