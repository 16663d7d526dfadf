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

// projectColumns is the canonical SELECT column list for projects.
const projectColumns = `id, company_id, name, description, status,
		flows_enabled, test_cases_enabled, test_planning_enabled,
		template_needs_approval, element_capture_enabled, created_at, updated_at`

// SQLiteProjectRepo implements ProjectRepo over a DBTX.
type SQLiteProjectRepo struct {
	db db.DBTX
}

func NewSQLiteProjectRepo(dbtx db.DBTX) *SQLiteProjectRepo {
	return &SQLiteProjectRepo{db: dbtx}
}

func (r *SQLiteProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	query := `INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.CompanyID,
		p.Name,
		p.Description,
		string(p.Status),
		boolToInt(p.FlowsEnabled),
		boolToInt(p.TestCasesEnabled),
		boolToInt(p.TestPlanningEnabled),
		boolToInt(p.TemplateNeedsApproval),
		boolToInt(p.ElementCaptureEnabled),
		p.CreatedAt.Format(time.RFC3339),
		p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("project name %q already taken", p.Name)
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

func (r *SQLiteProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("project %s", id)
	}
	return p, err
}

func (r *SQLiteProjectRepo) ListByCompany(ctx context.Context, companyID string) ([]*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE company_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

func (r *SQLiteProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	query := `UPDATE projects SET name = ?, description = ?, status = ?,
		flows_enabled = ?, test_cases_enabled = ?, test_planning_enabled = ?,
		template_needs_approval = ?, element_capture_enabled = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		p.Name,
		p.Description,
		string(p.Status),
		boolToInt(p.FlowsEnabled),
		boolToInt(p.TestCasesEnabled),
		boolToInt(p.TestPlanningEnabled),
		boolToInt(p.TemplateNeedsApproval),
		boolToInt(p.ElementCaptureEnabled),
		p.UpdatedAt.Format(time.RFC3339),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return nil
}

// scanner is the shared scan surface of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*domain.Project, error) {
	var p domain.Project
	var statusStr, createdAtStr, updatedAtStr string
	var flows, cases, planning, approval, capture int
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.Name, &p.Description, &statusStr,
		&flows, &cases, &planning, &approval, &capture,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	p.Status = domain.ProjectStatus(statusStr)
	p.FlowsEnabled = intToBool(flows)
	p.TestCasesEnabled = intToBool(cases)
	p.TestPlanningEnabled = intToBool(planning)
	p.TemplateNeedsApproval = intToBool(approval)
	p.ElementCaptureEnabled = intToBool(capture)
	p.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &p, nil
}

func (r *SQLiteProjectRepo) CreateRole(ctx context.Context, role *domain.ProjectRole) error {
	permsJSON, err := encodeJSONMap(role.Permissions)
	if err != nil {
		return err
	}
	query := `INSERT INTO project_roles (id, project_id, name, permissions_json, created_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		role.ID, role.ProjectID, role.Name, permsJSON, role.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("project role %q already exists", role.Name)
		}
		return fmt.Errorf("inserting project role: %w", err)
	}
	return nil
}

func (r *SQLiteProjectRepo) GetRole(ctx context.Context, id string) (*domain.ProjectRole, error) {
	query := `SELECT id, project_id, name, permissions_json, created_at FROM project_roles WHERE id = ?`
	var role domain.ProjectRole
	var permsJSON, createdAtStr string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&role.ID, &role.ProjectID, &role.Name, &permsJSON, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("project role %s", id)
		}
		return nil, fmt.Errorf("scanning project role: %w", err)
	}
	role.Permissions, err = decodeJSONMap(permsJSON)
	if err != nil {
		return nil, err
	}
	role.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &role, nil
}

func (r *SQLiteProjectRepo) UpdateRole(ctx context.Context, role *domain.ProjectRole) error {
	permsJSON, err := encodeJSONMap(role.Permissions)
	if err != nil {
		return err
	}
	query := `UPDATE project_roles SET name = ?, permissions_json = ? WHERE id = ?`
	_, err = r.db.ExecContext(ctx, query, role.Name, permsJSON, role.ID)
	if err != nil {
		return fmt.Errorf("updating project role: %w", err)
	}
	return nil
}

func (r *SQLiteProjectRepo) CreateMember(ctx context.Context, m *domain.ProjectUser) error {
	query := `INSERT INTO project_users (id, project_id, company_user_id, role_id, is_active)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.ProjectID, m.CompanyUserID, m.RoleID, boolToInt(m.IsActive),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("user already a member of the project")
		}
		return fmt.Errorf("inserting project member: %w", err)
	}
	return nil
}

const memberColumns = `id, project_id, company_user_id, role_id, is_active`

func (r *SQLiteProjectRepo) GetMemberByID(ctx context.Context, id string) (*domain.ProjectUser, error) {
	query := `SELECT ` + memberColumns + ` FROM project_users WHERE id = ?`
	return r.scanMember(r.db.QueryRowContext(ctx, query, id), id)
}

func (r *SQLiteProjectRepo) GetMembership(ctx context.Context, projectID, companyUserID string) (*domain.ProjectUser, error) {
	query := `SELECT ` + memberColumns + ` FROM project_users
		WHERE project_id = ? AND company_user_id = ?`
	return r.scanMember(r.db.QueryRowContext(ctx, query, projectID, companyUserID), companyUserID)
}

func (r *SQLiteProjectRepo) scanMember(row *sql.Row, ref string) (*domain.ProjectUser, error) {
	var m domain.ProjectUser
	var isActiveInt int
	err := row.Scan(&m.ID, &m.ProjectID, &m.CompanyUserID, &m.RoleID, &isActiveInt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("project membership %s", ref)
		}
		return nil, fmt.Errorf("scanning project member: %w", err)
	}
	m.IsActive = intToBool(isActiveInt)
	return &m, nil
}

func (r *SQLiteProjectRepo) SetMemberActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE project_users SET is_active = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("updating project member: %w", err)
	}
	return nil
}

func (r *SQLiteProjectRepo) GetPlanningConfig(ctx context.Context, projectID string) (*domain.PlanningConfig, error) {
	query := `SELECT id, project_id, entity_level_1_name, entity_level_2_name,
		entity_level_3_name, entity_level_4_name, entity_level_5_name, created_at, updated_at
		FROM planning_configs WHERE project_id = ?`
	var c domain.PlanningConfig
	var createdAtStr, updatedAtStr string
	err := r.db.QueryRowContext(ctx, query, projectID).Scan(
		&c.ID, &c.ProjectID,
		&c.LevelNames[0], &c.LevelNames[1], &c.LevelNames[2], &c.LevelNames[3], &c.LevelNames[4],
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("planning config for project %s", projectID)
		}
		return nil, fmt.Errorf("scanning planning config: %w", err)
	}
	c.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &c, nil
}

func (r *SQLiteProjectRepo) UpsertPlanningConfig(ctx context.Context, c *domain.PlanningConfig) error {
	query := `INSERT INTO planning_configs (id, project_id, entity_level_1_name, entity_level_2_name,
		entity_level_3_name, entity_level_4_name, entity_level_5_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			entity_level_1_name = excluded.entity_level_1_name,
			entity_level_2_name = excluded.entity_level_2_name,
			entity_level_3_name = excluded.entity_level_3_name,
			entity_level_4_name = excluded.entity_level_4_name,
			entity_level_5_name = excluded.entity_level_5_name,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.ProjectID,
		c.LevelNames[0], c.LevelNames[1], c.LevelNames[2], c.LevelNames[3], c.LevelNames[4],
		c.CreatedAt.Format(time.RFC3339),
		c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting planning config: %w", err)
	}
	return nil
}
