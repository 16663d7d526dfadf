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

const testCaseColumns = `id, project_id, folder_id, name, description, status,
		current_version, created_at, updated_at`

// SQLiteTestCaseRepo implements TestCaseRepo over a DBTX.
type SQLiteTestCaseRepo struct {
	db db.DBTX
}

func NewSQLiteTestCaseRepo(dbtx db.DBTX) *SQLiteTestCaseRepo {
	return &SQLiteTestCaseRepo{db: dbtx}
}

func (r *SQLiteTestCaseRepo) Create(ctx context.Context, tc *domain.TestCase) error {
	query := `INSERT INTO test_cases (` + testCaseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		tc.ID,
		tc.ProjectID,
		tc.FolderID,
		tc.Name,
		tc.Description,
		string(tc.Status),
		nullableInt(tc.CurrentVersion),
		tc.CreatedAt.Format(time.RFC3339),
		tc.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("test case name %q already used in project", tc.Name)
		}
		return fmt.Errorf("inserting test case: %w", err)
	}
	return nil
}

func (r *SQLiteTestCaseRepo) GetByID(ctx context.Context, id string) (*domain.TestCase, error) {
	query := `SELECT ` + testCaseColumns + ` FROM test_cases WHERE id = ?`
	tc, err := scanTestCase(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("test case %s", id)
	}
	return tc, err
}

func (r *SQLiteTestCaseRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.TestCase, error) {
	query := `SELECT ` + testCaseColumns + ` FROM test_cases WHERE project_id = ? ORDER BY name`
	return r.list(ctx, query, projectID)
}

func (r *SQLiteTestCaseRepo) ListByFolder(ctx context.Context, folderID string) ([]*domain.TestCase, error) {
	query := `SELECT ` + testCaseColumns + ` FROM test_cases WHERE folder_id = ? ORDER BY name`
	return r.list(ctx, query, folderID)
}

func (r *SQLiteTestCaseRepo) list(ctx context.Context, query string, args ...any) ([]*domain.TestCase, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing test cases: %w", err)
	}
	defer rows.Close()

	var cases []*domain.TestCase
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating test cases: %w", err)
	}
	return cases, nil
}

func (r *SQLiteTestCaseRepo) Update(ctx context.Context, tc *domain.TestCase) error {
	query := `UPDATE test_cases SET folder_id = ?, name = ?, description = ?, status = ?,
		current_version = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		tc.FolderID,
		tc.Name,
		tc.Description,
		string(tc.Status),
		nullableInt(tc.CurrentVersion),
		tc.UpdatedAt.Format(time.RFC3339),
		tc.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("test case name %q already used in project", tc.Name)
		}
		return fmt.Errorf("updating test case: %w", err)
	}
	return nil
}

func (r *SQLiteTestCaseRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM test_cases WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting test case: %w", err)
	}
	return nil
}

func (r *SQLiteTestCaseRepo) CountByFolder(ctx context.Context, folderID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_cases WHERE folder_id = ?`, folderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting test cases in folder: %w", err)
	}
	return n, nil
}

func scanTestCase(row scanner) (*domain.TestCase, error) {
	var tc domain.TestCase
	var statusStr, createdAtStr, updatedAtStr string
	var currentVersion sql.NullInt64
	err := row.Scan(
		&tc.ID, &tc.ProjectID, &tc.FolderID, &tc.Name, &tc.Description, &statusStr,
		&currentVersion, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning test case: %w", err)
	}
	tc.Status = domain.VersionedStatus(statusStr)
	tc.CurrentVersion = intPtr(currentVersion)
	tc.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	tc.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &tc, nil
}

const testCaseVersionColumns = `id, test_case_id, version_number, pre_conditions_json,
		steps_json, expected_outcomes_json, created_from_version, created_at`

func (r *SQLiteTestCaseRepo) CreateVersion(ctx context.Context, v *domain.TestCaseVersion) error {
	query := `INSERT INTO test_case_versions (` + testCaseVersionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		v.ID,
		v.TestCaseID,
		v.VersionNumber,
		v.PreConditionsJSON,
		v.StepsJSON,
		v.ExpectedOutcomesJSON,
		nullableInt(v.CreatedFromVersion),
		v.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("test case version %d already exists", v.VersionNumber)
		}
		return fmt.Errorf("inserting test case version: %w", err)
	}
	return nil
}

func (r *SQLiteTestCaseRepo) GetVersion(ctx context.Context, testCaseID string, number int) (*domain.TestCaseVersion, error) {
	query := `SELECT ` + testCaseVersionColumns + ` FROM test_case_versions
		WHERE test_case_id = ? AND version_number = ?`
	v, err := scanTestCaseVersion(r.db.QueryRowContext(ctx, query, testCaseID, number))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("test case version %d", number)
	}
	return v, err
}

func (r *SQLiteTestCaseRepo) ListVersions(ctx context.Context, testCaseID string) ([]*domain.TestCaseVersion, error) {
	query := `SELECT ` + testCaseVersionColumns + ` FROM test_case_versions
		WHERE test_case_id = ? ORDER BY version_number`
	rows, err := r.db.QueryContext(ctx, query, testCaseID)
	if err != nil {
		return nil, fmt.Errorf("listing test case versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.TestCaseVersion
	for rows.Next() {
		v, err := scanTestCaseVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating test case versions: %w", err)
	}
	return versions, nil
}

func scanTestCaseVersion(row scanner) (*domain.TestCaseVersion, error) {
	var v domain.TestCaseVersion
	var createdFrom sql.NullInt64
	var createdAtStr string
	err := row.Scan(
		&v.ID, &v.TestCaseID, &v.VersionNumber, &v.PreConditionsJSON,
		&v.StepsJSON, &v.ExpectedOutcomesJSON, &createdFrom, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning test case version: %w", err)
	}
	v.CreatedFromVersion = intPtr(createdFrom)
	v.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &v, nil
}
