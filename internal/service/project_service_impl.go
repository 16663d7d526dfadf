package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/perm"
	"github.com/plandeck/plandeck/internal/repository"
)

type projectService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewProjectService(uow db.UnitOfWork, observers ...UseCaseObserver) ProjectService {
	return &projectService{uow: uow, observer: useCaseObserverOrNoop(observers)}
}

// resolveCompanyGrant builds the actor's company-scope grant from their
// company user row and bound role. Users without a role hold nothing.
func resolveCompanyGrant(ctx context.Context, companies repository.CompanyRepo, actorID string) (string, perm.Grant, error) {
	user, err := companies.GetUser(ctx, actorID)
	if err != nil {
		return "", perm.Grant{}, err
	}
	grant := perm.Grant{Active: user.IsActive}
	if user.RoleID != nil {
		role, err := companies.GetRole(ctx, *user.RoleID)
		if err != nil {
			return "", perm.Grant{}, err
		}
		grant.Permissions = role.Permissions
	}
	return user.CompanyID, grant, nil
}

func (s *projectService) Create(ctx context.Context, actorID string, p *domain.Project) error {
	if p.Name == "" {
		return apperr.Validation("project name is required")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		companyID, grant, err := resolveCompanyGrant(ctx, repository.NewSQLiteCompanyRepo(tx), actorID)
		if err != nil {
			return err
		}
		if err := perm.RequireCompanyPermission(grant, perm.CanCreateProject); err != nil {
			return err
		}
		if p.CompanyID == "" {
			p.CompanyID = companyID
		}
		if p.CompanyID != companyID {
			return apperr.PermissionDenied("company mismatch")
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.Status == "" {
			p.Status = domain.ProjectActive
		}
		now := time.Now().UTC()
		p.CreatedAt = now
		p.UpdatedAt = now
		return repository.NewSQLiteProjectRepo(tx).Create(ctx, p)
	})
}

func (s *projectService) Get(ctx context.Context, actorID, projectID string) (*domain.Project, error) {
	var result *domain.Project
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result = access.Project
		return nil
	})
	return result, err
}

func (s *projectService) Update(ctx context.Context, actorID string, p *domain.Project) error {
	if p.Name == "" {
		return apperr.Validation("project name is required")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		projects := repository.NewSQLiteProjectRepo(tx)
		access, err := resolveProjectAccess(ctx, projects, p.ID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanEditProject); err != nil {
			return err
		}
		p.CompanyID = access.Project.CompanyID
		p.CreatedAt = access.Project.CreatedAt
		p.UpdatedAt = time.Now().UTC()
		return projects.Update(ctx, p)
	})
}

func (s *projectService) GetPlanningConfig(ctx context.Context, actorID, projectID string) (*domain.PlanningConfig, error) {
	var result *domain.PlanningConfig
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		projects := repository.NewSQLiteProjectRepo(tx)
		access, err := resolveProjectAccess(ctx, projects, projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result, err = projects.GetPlanningConfig(ctx, projectID)
		return err
	})
	return result, err
}

func (s *projectService) UpdatePlanningConfig(ctx context.Context, actorID, projectID string, levelNames [5]string) (*domain.PlanningConfig, error) {
	for i, name := range levelNames {
		if name == "" {
			return nil, apperr.Validation("level %d name is required", i+1)
		}
	}
	var result *domain.PlanningConfig
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		projects := repository.NewSQLiteProjectRepo(tx)
		access, err := resolveProjectAccess(ctx, projects, projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequirePlanningEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanEditProject); err != nil {
			return err
		}
		now := time.Now().UTC()
		cfg, err := projects.GetPlanningConfig(ctx, projectID)
		if err != nil {
			if !isNotFound(err) {
				return err
			}
			cfg = &domain.PlanningConfig{
				ID:        uuid.New().String(),
				ProjectID: projectID,
				CreatedAt: now,
			}
		}
		cfg.LevelNames = levelNames
		cfg.UpdatedAt = now
		if err := projects.UpsertPlanningConfig(ctx, cfg); err != nil {
			return err
		}
		result = cfg
		return nil
	})
	return result, err
}

func (s *projectService) CreateRole(ctx context.Context, actorID string, r *domain.ProjectRole) error {
	if r.Name == "" {
		return apperr.Validation("role name is required")
	}
	if err := perm.ValidateProjectPermissionMap(r.Permissions); err != nil {
		return err
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		projects := repository.NewSQLiteProjectRepo(tx)
		access, err := resolveProjectAccess(ctx, projects, r.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanManageProjectUsers); err != nil {
			return err
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.CreatedAt = time.Now().UTC()
		return projects.CreateRole(ctx, r)
	})
}

func (s *projectService) UpdateRole(ctx context.Context, actorID string, r *domain.ProjectRole) error {
	if err := perm.ValidateProjectPermissionMap(r.Permissions); err != nil {
		return err
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		projects := repository.NewSQLiteProjectRepo(tx)
		existing, err := projects.GetRole(ctx, r.ID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, projects, existing.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanManageProjectUsers); err != nil {
			return err
		}
		r.ProjectID = existing.ProjectID
		return projects.UpdateRole(ctx, r)
	})
}

func (s *projectService) AddMember(ctx context.Context, actorID string, m *domain.ProjectUser) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		projects := repository.NewSQLiteProjectRepo(tx)
		access, err := resolveProjectAccess(ctx, projects, m.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanManageProjectUsers); err != nil {
			return err
		}
		user, err := repository.NewSQLiteCompanyRepo(tx).GetUser(ctx, m.CompanyUserID)
		if err != nil {
			return err
		}
		if err := access.RequireSameCompany(user.CompanyID); err != nil {
			return err
		}
		role, err := projects.GetRole(ctx, m.RoleID)
		if err != nil {
			return err
		}
		if role.ProjectID != m.ProjectID {
			return apperr.Validation("role belongs to another project")
		}
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		m.IsActive = true
		return projects.CreateMember(ctx, m)
	})
}

func (s *projectService) DeactivateMember(ctx context.Context, actorID, memberID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		projects := repository.NewSQLiteProjectRepo(tx)
		member, err := projects.GetMemberByID(ctx, memberID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, projects, member.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanManageProjectUsers); err != nil {
			return err
		}
		return projects.SetMemberActive(ctx, memberID, false)
	})
}
