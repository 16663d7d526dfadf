package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/service"
	"github.com/plandeck/plandeck/internal/testutil"
)

func TestFolderCreate_BuildsMaterializedPath(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewFolderService(testutil.NewTestUoW(database), domain.FolderFlows)
	ctx := context.Background()

	root, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, nil, "Smoke")
	require.NoError(t, err)
	assert.Equal(t, "Smoke", root.Path)

	child, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, &root.ID, "Login")
	require.NoError(t, err)
	assert.Equal(t, "Smoke/Login", child.Path)

	// Same path in the same project collides.
	_, err = svc.Create(ctx, env.Admin.ID, env.Project.ID, &root.ID, "Login")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestFolderRename_RewritesDescendantPaths(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewFolderService(testutil.NewTestUoW(database), domain.FolderFlows)
	ctx := context.Background()

	root, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, nil, "Smoke")
	require.NoError(t, err)
	child, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, &root.ID, "Login")
	require.NoError(t, err)
	grandchild, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, &child.ID, "SSO")
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, env.Admin.ID, root.ID, "Sanity")
	require.NoError(t, err)
	assert.Equal(t, "Sanity", renamed.Path)

	childAfter, err := svc.Get(ctx, env.Admin.ID, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sanity/Login", childAfter.Path)

	grandchildAfter, err := svc.Get(ctx, env.Admin.ID, grandchild.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sanity/Login/SSO", grandchildAfter.Path)
}

func TestFolderRename_RejectsCollision(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewFolderService(testutil.NewTestUoW(database), domain.FolderFlows)
	ctx := context.Background()

	_, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, nil, "Smoke")
	require.NoError(t, err)
	other, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, nil, "Sanity")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, env.Admin.ID, other.ID, "Smoke")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestFolderMove_ReparentsSubtree(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewFolderService(testutil.NewTestUoW(database), domain.FolderFlows)
	ctx := context.Background()

	src, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, nil, "Smoke")
	require.NoError(t, err)
	child, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, &src.ID, "Login")
	require.NoError(t, err)
	dst, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, nil, "Archive")
	require.NoError(t, err)

	moved, err := svc.Move(ctx, env.Admin.ID, src.ID, &dst.ID)
	require.NoError(t, err)
	assert.Equal(t, "Archive/Smoke", moved.Path)

	childAfter, err := svc.Get(ctx, env.Admin.ID, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "Archive/Smoke/Login", childAfter.Path)

	// A folder cannot move under its own subtree.
	_, err = svc.Move(ctx, env.Admin.ID, dst.ID, &child.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestFolderDelete_GuardsChildrenAndLeaves(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	folderSvc := service.NewFolderService(testutil.NewTestUoW(database), domain.FolderFlows)
	flowSvc := service.NewFlowService(testutil.NewTestUoW(database))
	ctx := context.Background()

	parent, err := folderSvc.Create(ctx, env.Admin.ID, env.Project.ID, nil, "Smoke")
	require.NoError(t, err)
	child, err := folderSvc.Create(ctx, env.Admin.ID, env.Project.ID, &parent.ID, "Login")
	require.NoError(t, err)

	err = folderSvc.Delete(ctx, env.Admin.ID, parent.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	flow := &domain.Flow{ProjectID: env.Project.ID, FolderID: &child.ID, Name: "Login flow"}
	require.NoError(t, flowSvc.Create(ctx, env.Admin.ID, flow))

	err = folderSvc.Delete(ctx, env.Admin.ID, child.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, flowSvc.Delete(ctx, env.Admin.ID, flow.ID))
	require.NoError(t, folderSvc.Delete(ctx, env.Admin.ID, child.ID))
	require.NoError(t, folderSvc.Delete(ctx, env.Admin.ID, parent.ID))
}

func TestFolderNameValidation(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewFolderService(testutil.NewTestUoW(database), domain.FolderFlows)
	ctx := context.Background()

	_, err := svc.Create(ctx, env.Admin.ID, env.Project.ID, nil, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Create(ctx, env.Admin.ID, env.Project.ID, nil, "a/b")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
