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

const loginSteps = `[{"action_key":"navigate","execution_notes":"open the page","parameters":{"url":"https://app.test/login"}},{"action_key":"click","execution_notes":"","parameters":{"selector":"#submit"}}]`

func TestFlowVersionChain(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewFlowService(testutil.NewTestUoW(database))
	ctx := context.Background()

	flow := &domain.Flow{ProjectID: env.Project.ID, Name: "Login"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, flow))
	assert.Equal(t, domain.VersionedDraft, flow.Status)
	assert.Equal(t, 0, flow.CurrentVersion)

	v1, err := svc.SaveVersion(ctx, service.SaveFlowVersionInput{
		ActorID: env.Admin.ID, FlowID: flow.ID, StepsJSON: loginSteps,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)
	assert.Nil(t, v1.CreatedFromVersion)

	v2, err := svc.SaveVersion(ctx, service.SaveFlowVersionInput{
		ActorID: env.Admin.ID, FlowID: flow.ID, StepsJSON: loginSteps,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)
	require.NotNil(t, v2.CreatedFromVersion)
	assert.Equal(t, 1, *v2.CreatedFromVersion)

	after, err := svc.Get(ctx, env.Admin.ID, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.CurrentVersion)
	assert.Equal(t, domain.VersionedSaved, after.Status)
}

func TestFlowSaveVersion_RejectsMalformedSteps(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewFlowService(testutil.NewTestUoW(database))
	ctx := context.Background()

	flow := &domain.Flow{ProjectID: env.Project.ID, Name: "Login"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, flow))

	for _, payload := range []string{
		`{"action_key":"navigate"}`,
		`[{"execution_notes":"missing action"}]`,
		`not json`,
	} {
		_, err := svc.SaveVersion(ctx, service.SaveFlowVersionInput{
			ActorID: env.Admin.ID, FlowID: flow.ID, StepsJSON: payload,
		})
		assert.ErrorIs(t, err, apperr.ErrValidation, "payload %q", payload)
	}
}

func TestFlowRollback_CopiesSourceSteps(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewFlowService(testutil.NewTestUoW(database))
	ctx := context.Background()

	flow := &domain.Flow{ProjectID: env.Project.ID, Name: "Login"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, flow))

	_, err := svc.SaveVersion(ctx, service.SaveFlowVersionInput{
		ActorID: env.Admin.ID, FlowID: flow.ID, StepsJSON: loginSteps,
	})
	require.NoError(t, err)
	_, err = svc.SaveVersion(ctx, service.SaveFlowVersionInput{
		ActorID: env.Admin.ID, FlowID: flow.ID, StepsJSON: `[{"action_key":"noop","execution_notes":"","parameters":{}}]`,
	})
	require.NoError(t, err)

	restored, err := svc.Rollback(ctx, env.Admin.ID, flow.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.VersionNumber)
	assert.Equal(t, loginSteps, restored.StepsJSON)
	require.NotNil(t, restored.CreatedFromVersion)
	assert.Equal(t, 1, *restored.CreatedFromVersion)
}

func TestFlowArchive_BlocksNewVersions(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewFlowService(testutil.NewTestUoW(database))
	ctx := context.Background()

	flow := &domain.Flow{ProjectID: env.Project.ID, Name: "Login"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, flow))
	require.NoError(t, svc.Archive(ctx, env.Admin.ID, flow.ID))

	_, err := svc.SaveVersion(ctx, service.SaveFlowVersionInput{
		ActorID: env.Admin.ID, FlowID: flow.ID, StepsJSON: loginSteps,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// Archiving twice is not a no-op.
	err = svc.Archive(ctx, env.Admin.ID, flow.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestFlowDelete_OnlyWithoutVersions(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewFlowService(testutil.NewTestUoW(database))
	ctx := context.Background()

	flow := &domain.Flow{ProjectID: env.Project.ID, Name: "Login"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, flow))
	_, err := svc.SaveVersion(ctx, service.SaveFlowVersionInput{
		ActorID: env.Admin.ID, FlowID: flow.ID, StepsJSON: loginSteps,
	})
	require.NoError(t, err)

	err = svc.Delete(ctx, env.Admin.ID, flow.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	fresh := &domain.Flow{ProjectID: env.Project.ID, Name: "Empty"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, fresh))
	assert.NoError(t, svc.Delete(ctx, env.Admin.ID, fresh.ID))
}

func TestFlowCreate_FeatureFlagGate(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database, testutil.WithProject(func(p *domain.Project) {
		p.FlowsEnabled = false
	}))
	svc := service.NewFlowService(testutil.NewTestUoW(database))

	err := svc.Create(context.Background(), env.Admin.ID, &domain.Flow{ProjectID: env.Project.ID, Name: "Login"})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}
