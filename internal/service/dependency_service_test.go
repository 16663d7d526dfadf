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

func TestDependencyCreate_RejectsSelfEdge(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	item := testutil.SeedItem(t, database, env, g, "A")
	svc := service.NewDependencyService(testutil.NewTestUoW(database))

	_, err := svc.Create(context.Background(), env.Admin.ID, item.ID, item.ID, domain.DependencyBlocks)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDependencyCreate_RejectsDuplicateEdge(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	a := testutil.SeedItem(t, database, env, g, "A")
	b := testutil.SeedItem(t, database, env, g, "B")
	svc := service.NewDependencyService(testutil.NewTestUoW(database))
	ctx := context.Background()

	_, err := svc.Create(ctx, env.Admin.ID, a.ID, b.ID, domain.DependencyBlocks)
	require.NoError(t, err)
	_, err = svc.Create(ctx, env.Admin.ID, a.ID, b.ID, domain.DependencyRelates)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDependencyCreate_RejectsDirectCycle(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	a := testutil.SeedItem(t, database, env, g, "A")
	b := testutil.SeedItem(t, database, env, g, "B")
	svc := service.NewDependencyService(testutil.NewTestUoW(database))
	ctx := context.Background()

	_, err := svc.Create(ctx, env.Admin.ID, a.ID, b.ID, domain.DependencyBlocks)
	require.NoError(t, err)
	_, err = svc.Create(ctx, env.Admin.ID, b.ID, a.ID, domain.DependencyBlocks)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDependencyCreate_RejectsTransitiveCycle(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	a := testutil.SeedItem(t, database, env, g, "A")
	b := testutil.SeedItem(t, database, env, g, "B")
	c := testutil.SeedItem(t, database, env, g, "C")
	svc := service.NewDependencyService(testutil.NewTestUoW(database))
	ctx := context.Background()

	_, err := svc.Create(ctx, env.Admin.ID, a.ID, b.ID, domain.DependencyBlocks)
	require.NoError(t, err)
	_, err = svc.Create(ctx, env.Admin.ID, b.ID, c.ID, domain.DependencyBlocks)
	require.NoError(t, err)

	// c -> a would close a -> b -> c -> a.
	_, err = svc.Create(ctx, env.Admin.ID, c.ID, a.ID, domain.DependencyBlocks)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// The unrelated direction is still fine.
	_, err = svc.Create(ctx, env.Admin.ID, a.ID, c.ID, domain.DependencyRelates)
	assert.NoError(t, err)
}

func TestDependencyCreate_RejectsCrossProject(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	a := testutil.SeedItem(t, database, env, g, "A")

	other := testutil.SeedEnv(t, database)
	og := testutil.SeedTemplateGraph(t, database, other, testutil.GraphActivated())
	b := testutil.SeedItem(t, database, other, og, "B")

	svc := service.NewDependencyService(testutil.NewTestUoW(database))
	_, err := svc.Create(context.Background(), env.Admin.ID, a.ID, b.ID, domain.DependencyBlocks)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDependencyCreate_EntityTypeMustAllowDependencies(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env,
		testutil.GraphActivated(),
		testutil.GraphEntityType(func(et *domain.EntityType) { et.AllowDependencies = false }),
	)
	a := testutil.SeedItem(t, database, env, g, "A")
	b := testutil.SeedItem(t, database, env, g, "B")
	svc := service.NewDependencyService(testutil.NewTestUoW(database))

	_, err := svc.Create(context.Background(), env.Admin.ID, a.ID, b.ID, domain.DependencyBlocks)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
