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

// SQLiteCompanyRepo implements CompanyRepo over a DBTX.
type SQLiteCompanyRepo struct {
	db db.DBTX
}

func NewSQLiteCompanyRepo(dbtx db.DBTX) *SQLiteCompanyRepo {
	return &SQLiteCompanyRepo{db: dbtx}
}

func (r *SQLiteCompanyRepo) Create(ctx context.Context, c *domain.Company) error {
	query := `INSERT INTO companies (id, name, created_at) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("company name %q already taken", c.Name)
		}
		return fmt.Errorf("inserting company: %w", err)
	}
	return nil
}

func (r *SQLiteCompanyRepo) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	query := `SELECT id, name, created_at FROM companies WHERE id = ?`
	var c domain.Company
	var createdAtStr string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &createdAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("company %s", id)
		}
		return nil, fmt.Errorf("scanning company: %w", err)
	}
	c.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &c, nil
}

func (r *SQLiteCompanyRepo) CreateRole(ctx context.Context, role *domain.Role) error {
	permsJSON, err := encodeJSONMap(role.Permissions)
	if err != nil {
		return err
	}
	query := `INSERT INTO roles (id, company_id, name, description, is_system_role, permissions_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		role.ID,
		role.CompanyID,
		role.Name,
		role.Description,
		boolToInt(role.IsSystemRole),
		permsJSON,
		role.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("role %q already exists", role.Name)
		}
		return fmt.Errorf("inserting role: %w", err)
	}
	return nil
}

func (r *SQLiteCompanyRepo) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	query := `SELECT id, company_id, name, description, is_system_role, permissions_json, created_at
		FROM roles WHERE id = ?`
	var role domain.Role
	var companyID sql.NullString
	var isSystemInt int
	var permsJSON, createdAtStr string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&role.ID, &companyID, &role.Name, &role.Description, &isSystemInt, &permsJSON, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("role %s", id)
		}
		return nil, fmt.Errorf("scanning role: %w", err)
	}
	if companyID.Valid {
		role.CompanyID = companyID.String
	}
	role.IsSystemRole = intToBool(isSystemInt)
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

func (r *SQLiteCompanyRepo) CreateUser(ctx context.Context, u *domain.CompanyUser) error {
	query := `INSERT INTO company_users (id, company_id, email, display_name, role_id, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		u.ID,
		u.CompanyID,
		u.Email,
		u.DisplayName,
		nullableStr(u.RoleID),
		boolToInt(u.IsActive),
		u.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("email %q already registered", u.Email)
		}
		return fmt.Errorf("inserting company user: %w", err)
	}
	return nil
}

func (r *SQLiteCompanyRepo) GetUser(ctx context.Context, id string) (*domain.CompanyUser, error) {
	query := `SELECT id, company_id, email, display_name, role_id, is_active, created_at
		FROM company_users WHERE id = ?`
	var u domain.CompanyUser
	var roleID sql.NullString
	var isActiveInt int
	var createdAtStr string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.CompanyID, &u.Email, &u.DisplayName, &roleID, &isActiveInt, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("user %s", id)
		}
		return nil, fmt.Errorf("scanning company user: %w", err)
	}
	u.RoleID = strPtr(roleID)
	u.IsActive = intToBool(isActiveInt)
	u.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &u, nil
}
