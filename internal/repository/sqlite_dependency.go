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

const dependencyColumns = `id, source_item_id, target_item_id, dependency_type, created_at`

// SQLiteDependencyRepo implements DependencyRepo over a DBTX.
type SQLiteDependencyRepo struct {
	db db.DBTX
}

func NewSQLiteDependencyRepo(dbtx db.DBTX) *SQLiteDependencyRepo {
	return &SQLiteDependencyRepo{db: dbtx}
}

func (r *SQLiteDependencyRepo) Create(ctx context.Context, d *domain.PlanningDependency) error {
	query := `INSERT INTO planning_dependencies (` + dependencyColumns + `)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.SourceItemID, d.TargetItemID, string(d.Type), d.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("dependency already exists")
		}
		return fmt.Errorf("inserting dependency: %w", err)
	}
	return nil
}

func (r *SQLiteDependencyRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM planning_dependencies WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting dependency: %w", err)
	}
	return nil
}

func (r *SQLiteDependencyRepo) GetByID(ctx context.Context, id string) (*domain.PlanningDependency, error) {
	query := `SELECT ` + dependencyColumns + ` FROM planning_dependencies WHERE id = ?`
	d, err := scanDependency(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("dependency %s", id)
	}
	return d, err
}

func (r *SQLiteDependencyRepo) GetByPair(ctx context.Context, sourceItemID, targetItemID string) (*domain.PlanningDependency, error) {
	query := `SELECT ` + dependencyColumns + ` FROM planning_dependencies
		WHERE source_item_id = ? AND target_item_id = ?`
	d, err := scanDependency(r.db.QueryRowContext(ctx, query, sourceItemID, targetItemID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("dependency %s -> %s", sourceItemID, targetItemID)
	}
	return d, err
}

func (r *SQLiteDependencyRepo) ListBySource(ctx context.Context, sourceItemID string) ([]*domain.PlanningDependency, error) {
	query := `SELECT ` + dependencyColumns + ` FROM planning_dependencies WHERE source_item_id = ?`
	return r.list(ctx, query, sourceItemID)
}

func (r *SQLiteDependencyRepo) ListByTarget(ctx context.Context, targetItemID string) ([]*domain.PlanningDependency, error) {
	query := `SELECT ` + dependencyColumns + ` FROM planning_dependencies WHERE target_item_id = ?`
	return r.list(ctx, query, targetItemID)
}

func (r *SQLiteDependencyRepo) list(ctx context.Context, query string, args ...any) ([]*domain.PlanningDependency, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing dependencies: %w", err)
	}
	defer rows.Close()

	var deps []*domain.PlanningDependency
	for rows.Next() {
		d, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dependencies: %w", err)
	}
	return deps, nil
}

func scanDependency(row scanner) (*domain.PlanningDependency, error) {
	var d domain.PlanningDependency
	var typeStr, createdAtStr string
	err := row.Scan(&d.ID, &d.SourceItemID, &d.TargetItemID, &typeStr, &createdAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning dependency: %w", err)
	}
	d.Type = domain.DependencyType(typeStr)
	d.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &d, nil
}
