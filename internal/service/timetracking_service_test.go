package service_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/perm"
	"github.com/plandeck/plandeck/internal/repository"
	"github.com/plandeck/plandeck/internal/service"
	"github.com/plandeck/plandeck/internal/testutil"
)

func seedManualRule(t *testing.T, database *sql.DB, entityTypeID string, allowMultiple bool) {
	t.Helper()
	err := repository.NewSQLiteSchemaRepo(database).CreateTimeRule(context.Background(), &domain.TimeTrackingRule{
		ID: "rule-" + entityTypeID, EntityTypeID: entityTypeID,
		StartMode: domain.TrackManual, StopMode: domain.TrackManual,
		AllowMultipleSessions: allowMultiple,
	})
	require.NoError(t, err)
}

func TestTimeTracking_SecondStartRejectedWhenSingleSession(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	seedManualRule(t, database, g.EntityType.ID, false)
	item := testutil.SeedItem(t, database, env, g, "Tracked task")
	svc := service.NewTimeTrackingService(testutil.NewTestUoW(database))
	ctx := context.Background()

	first, err := svc.StartSession(ctx, env.Admin.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, first.Open())

	_, err = svc.StartSession(ctx, env.Admin.ID, item.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTimeTracking_MultipleSessionsWhenAllowed(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	seedManualRule(t, database, g.EntityType.ID, true)
	item := testutil.SeedItem(t, database, env, g, "Tracked task")
	svc := service.NewTimeTrackingService(testutil.NewTestUoW(database))
	ctx := context.Background()

	_, err := svc.StartSession(ctx, env.Admin.ID, item.ID)
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, env.Admin.ID, item.ID)
	require.NoError(t, err)

	sessions, err := svc.ListSessions(ctx, env.Admin.ID, item.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestTimeTracking_StopClosesSession(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	seedManualRule(t, database, g.EntityType.ID, false)
	item := testutil.SeedItem(t, database, env, g, "Tracked task")
	svc := service.NewTimeTrackingService(testutil.NewTestUoW(database))
	ctx := context.Background()

	_, err := svc.StartSession(ctx, env.Admin.ID, item.ID)
	require.NoError(t, err)

	stopped, err := svc.StopSession(ctx, env.Admin.ID, item.ID)
	require.NoError(t, err)
	require.NotNil(t, stopped.EndedAt)
	assert.False(t, stopped.EndedAt.Before(stopped.StartedAt))
	assert.GreaterOrEqual(t, stopped.DurationSeconds, 0)

	// Nothing left to stop.
	_, err = svc.StopSession(ctx, env.Admin.ID, item.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTimeTracking_OnlyAssignedUsersTrack(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	seedManualRule(t, database, g.EntityType.ID, false)
	item := testutil.SeedItem(t, database, env, g, "Tracked task")
	svc := service.NewTimeTrackingService(testutil.NewTestUoW(database))

	outsiderUser, _ := testutil.AddMember(t, database, env, map[string]bool{
		perm.CanViewProject: true,
		perm.CanTrackTime:   true,
	})
	_, err := svc.StartSession(context.Background(), outsiderUser.ID, item.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestTimeTracking_RequiresRuleAndCapability(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	item := testutil.SeedItem(t, database, env, g, "Tracked task")
	svc := service.NewTimeTrackingService(testutil.NewTestUoW(database))

	// AllowTimeTracking is on but no rule is configured.
	_, err := svc.StartSession(context.Background(), env.Admin.ID, item.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
