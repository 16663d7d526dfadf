package service

import (
	"context"
	"errors"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/perm"
	"github.com/plandeck/plandeck/internal/repository"
)

// projectAccess bundles everything a permission-gated operation needs
// about the actor's standing in a project.
type projectAccess struct {
	Project *domain.Project
	Member  *domain.ProjectUser
	Grant   perm.Grant
}

// resolveProjectAccess loads the project and the actor's membership and
// role. An actor with no membership row gets a permission denial, not a
// not-found, so membership existence does not leak.
func resolveProjectAccess(ctx context.Context, projects repository.ProjectRepo, projectID, actorID string) (*projectAccess, error) {
	project, err := projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	member, err := projects.GetMembership(ctx, projectID, actorID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.PermissionDenied("not a member of the project")
		}
		return nil, err
	}
	role, err := projects.GetRole(ctx, member.RoleID)
	if err != nil {
		return nil, err
	}
	return &projectAccess{
		Project: project,
		Member:  member,
		Grant:   perm.Grant{Active: member.IsActive, Permissions: role.Permissions},
	}, nil
}

func (a *projectAccess) Require(key string) error {
	return perm.RequireProjectPermission(a.Grant, key)
}

// RequireSameCompany guards cross-tenant references.
func (a *projectAccess) RequireSameCompany(companyID string) error {
	if a.Project.CompanyID != companyID {
		return apperr.PermissionDenied("company mismatch")
	}
	return nil
}

func (a *projectAccess) RequirePlanningEnabled() error {
	if !a.Project.TestPlanningEnabled {
		return apperr.PermissionDenied("test planning is disabled for the project")
	}
	return nil
}

func (a *projectAccess) RequireFlowsEnabled() error {
	if !a.Project.FlowsEnabled {
		return apperr.PermissionDenied("flows are disabled for the project")
	}
	return nil
}

func (a *projectAccess) RequireTestCasesEnabled() error {
	if !a.Project.TestCasesEnabled {
		return apperr.PermissionDenied("test cases are disabled for the project")
	}
	return nil
}

func isNotFound(err error) bool { return errors.Is(err, apperr.ErrNotFound) }

func (a *projectAccess) RequireElementCaptureEnabled() error {
	if !a.Project.ElementCaptureEnabled {
		return apperr.PermissionDenied("element capture is disabled for the project")
	}
	return nil
}
