package perm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plandeck/plandeck/internal/apperr"
)

func TestProjectPermission_DenyByDefault(t *testing.T) {
	g := Grant{Active: true, Permissions: map[string]bool{}}

	ok, err := HasProjectPermission(g, CanEditTemplates)
	require.NoError(t, err)
	assert.False(t, ok)

	err = RequireProjectPermission(g, CanEditTemplates)
	assert.True(t, errors.Is(err, apperr.ErrPermissionDenied))
}

func TestProjectPermission_FalseValueIsDeny(t *testing.T) {
	g := Grant{Active: true, Permissions: map[string]bool{CanEditFlows: false}}
	ok, err := HasProjectPermission(g, CanEditFlows)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProjectPermission_InactiveMembershipDenied(t *testing.T) {
	g := Grant{Active: false, Permissions: map[string]bool{CanEditFlows: true}}
	err := RequireProjectPermission(g, CanEditFlows)
	assert.True(t, errors.Is(err, apperr.ErrPermissionDenied))
}

func TestProjectPermission_UnknownKeyIsConfigError(t *testing.T) {
	g := Grant{Active: true, Permissions: map[string]bool{"can_fly": true}}

	_, err := HasProjectPermission(g, "can_fly")
	assert.True(t, errors.Is(err, apperr.ErrConfig), "unknown key must not read as a denial")

	err = RequireProjectPermission(g, "can_fly")
	assert.True(t, errors.Is(err, apperr.ErrConfig))
	assert.False(t, errors.Is(err, apperr.ErrPermissionDenied))
}

func TestCompanyAndProjectScopesAreIsolated(t *testing.T) {
	// A company-only key must not be resolvable through the project scope.
	g := Grant{Active: true, Permissions: map[string]bool{CanManageCompany: true}}
	_, err := HasProjectPermission(g, CanManageCompany)
	assert.True(t, errors.Is(err, apperr.ErrConfig))

	// And a project-only key is unknown at company scope.
	_, err = HasCompanyPermission(g, CanEditTemplates)
	assert.True(t, errors.Is(err, apperr.ErrConfig))
}

func TestHasAnyProjectPermission_OrSemantics(t *testing.T) {
	g := Grant{Active: true, Permissions: map[string]bool{CanEditPlanningItems: true}}

	ok, err := HasAnyProjectPermission(g, []string{CanApproveTemplates, CanEditPlanningItems})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasAnyProjectPermission(g, []string{CanApproveTemplates, CanSubmitTemplates})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidatePermissionMaps(t *testing.T) {
	require.NoError(t, ValidateProjectPermissionMap(map[string]bool{CanViewProject: true}))
	err := ValidateProjectPermissionMap(map[string]bool{"bogus": true})
	assert.True(t, errors.Is(err, apperr.ErrConfig), "unknown key is a configuration error")

	require.NoError(t, ValidateCompanyPermissionMap(map[string]bool{CanManageRoles: false}))
	err = ValidateCompanyPermissionMap(map[string]bool{CanTrackTime: true})
	assert.True(t, errors.Is(err, apperr.ErrConfig), "project-only key rejected at company scope")
}

func TestValidateTransitionRoles(t *testing.T) {
	require.NoError(t, ValidateTransitionRoles([]string{CanEditPlanningItems, CanApproveTemplates}))
	err := ValidateTransitionRoles([]string{"not_a_key"})
	assert.True(t, errors.Is(err, apperr.ErrConfig))
}
