package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/repository"
	"github.com/plandeck/plandeck/internal/service"
	"github.com/plandeck/plandeck/internal/testutil"
)

func TestTestCaseVersionChain(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	folder := testutil.SeedFolder(t, database, env, domain.FolderTestCases, "Regression")
	svc := service.NewTestCaseService(testutil.NewTestUoW(database))
	ctx := context.Background()

	tc := &domain.TestCase{ProjectID: env.Project.ID, FolderID: folder.ID, Name: "Checkout happy path"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, tc))
	assert.Nil(t, tc.CurrentVersion)

	v1, err := svc.SaveVersion(ctx, service.SaveTestCaseVersionInput{
		ActorID: env.Admin.ID, TestCaseID: tc.ID,
		PreConditionsJSON:    `["user logged in"]`,
		StepsJSON:            `["add item to cart","pay"]`,
		ExpectedOutcomesJSON: `["order confirmed"]`,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)

	v2, err := svc.SaveVersion(ctx, service.SaveTestCaseVersionInput{
		ActorID: env.Admin.ID, TestCaseID: tc.ID,
		PreConditionsJSON:    `[]`,
		StepsJSON:            `["pay"]`,
		ExpectedOutcomesJSON: `["order confirmed"]`,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)
	require.NotNil(t, v2.CreatedFromVersion)
	assert.Equal(t, 1, *v2.CreatedFromVersion)

	restored, err := svc.Rollback(ctx, env.Admin.ID, tc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.VersionNumber)
	assert.Equal(t, `["add item to cart","pay"]`, restored.StepsJSON)
}

func TestTestCaseCreate_RejectsArchivedFolder(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	folder := testutil.SeedFolder(t, database, env, domain.FolderTestCases, "Old")
	ctx := context.Background()

	folder.Status = domain.FolderArchived
	require.NoError(t, repository.NewSQLiteFolderRepo(database, domain.FolderTestCases).Update(ctx, folder))

	svc := service.NewTestCaseService(testutil.NewTestUoW(database))
	err := svc.Create(ctx, env.Admin.ID, &domain.TestCase{
		ProjectID: env.Project.ID, FolderID: folder.ID, Name: "Stale",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTestCaseArchive_BlocksNewVersions(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	folder := testutil.SeedFolder(t, database, env, domain.FolderTestCases, "Regression")
	svc := service.NewTestCaseService(testutil.NewTestUoW(database))
	ctx := context.Background()

	tc := &domain.TestCase{ProjectID: env.Project.ID, FolderID: folder.ID, Name: "Checkout"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, tc))
	require.NoError(t, svc.Archive(ctx, env.Admin.ID, tc.ID))

	_, err := svc.SaveVersion(ctx, service.SaveTestCaseVersionInput{
		ActorID: env.Admin.ID, TestCaseID: tc.ID,
		PreConditionsJSON: `[]`, StepsJSON: `[]`, ExpectedOutcomesJSON: `[]`,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Rollback(ctx, env.Admin.ID, tc.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTestCaseSaveVersion_RejectsNonArrayPayload(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	folder := testutil.SeedFolder(t, database, env, domain.FolderTestCases, "Regression")
	svc := service.NewTestCaseService(testutil.NewTestUoW(database))
	ctx := context.Background()

	tc := &domain.TestCase{ProjectID: env.Project.ID, FolderID: folder.ID, Name: "Checkout"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, tc))

	_, err := svc.SaveVersion(ctx, service.SaveTestCaseVersionInput{
		ActorID: env.Admin.ID, TestCaseID: tc.ID,
		PreConditionsJSON: `{}`, StepsJSON: `[]`, ExpectedOutcomesJSON: `[]`,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
