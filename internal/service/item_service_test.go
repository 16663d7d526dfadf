package service_test

import (
	"context"
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

func TestItemCreate_RequiresActiveBinding(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env) // not activated
	svc := service.NewItemService(testutil.NewTestUoW(database))

	_, err := svc.Create(context.Background(), service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: g.EntityType.ID, Title: "Implement login",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestItemCreate_StartsAtInitialState(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	svc := service.NewItemService(testutil.NewTestUoW(database))

	item, err := svc.Create(context.Background(), service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: g.EntityType.ID, Title: "Implement login",
		AssigneeIDs: []string{env.Member.ID},
	})
	require.NoError(t, err)
	require.NotNil(t, item.StatusStateID)
	assert.Equal(t, g.States["Open"].ID, *item.StatusStateID)
	assert.Empty(t, item.Path)

	// created_by references the actor's membership, not the company user.
	require.NotNil(t, item.CreatedBy)
	assert.Equal(t, env.Member.ID, *item.CreatedBy)
}

func TestItemCreate_ParentMustBeShallower(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	ctx := context.Background()

	// A deeper entity type cannot parent the shallower Task: the child's
	// level must be strictly below the parent's.
	schema := repository.NewSQLiteSchemaRepo(database)
	deeper := &domain.EntityType{
		ID: "et-deeper", TemplateID: g.Template.ID, InternalKey: "bug",
		DisplayName: "Bug", LevelOrder: 5, AllowChildren: true,
	}
	require.NoError(t, schema.CreateEntityType(ctx, deeper))

	svc := service.NewItemService(testutil.NewTestUoW(database))
	parent, err := svc.Create(ctx, service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: deeper.ID, Title: "Parent bug",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: g.EntityType.ID, ParentID: &parent.ID, Title: "Child task",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestItemCreate_ParentMustAllowChildren(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	ctx := context.Background()

	schema := repository.NewSQLiteSchemaRepo(database)
	leaf := &domain.EntityType{
		ID: "et-leaf", TemplateID: g.Template.ID, InternalKey: "subtask",
		DisplayName: "Subtask", LevelOrder: 5,
	}
	require.NoError(t, schema.CreateEntityType(ctx, leaf))

	svc := service.NewItemService(testutil.NewTestUoW(database))
	parent, err := svc.Create(ctx, service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: g.EntityType.ID, Title: "Task without children",
	})
	require.NoError(t, err)

	// Task has AllowChildren=false in the fixture.
	_, err = svc.Create(ctx, service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: leaf.ID, ParentID: &parent.ID, Title: "Nested",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestItemCreate_ValidatesFieldValues(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	ctx := context.Background()

	schema := repository.NewSQLiteSchemaRepo(database)
	require.NoError(t, schema.CreateField(ctx, &domain.FieldDefinition{
		ID: "fd-sev", EntityTypeID: g.EntityType.ID, FieldKey: "severity",
		DisplayName: "Severity", FieldType: domain.FieldSelect,
		Options: []string{"low", "high"}, FieldOrder: 1,
	}))

	svc := service.NewItemService(testutil.NewTestUoW(database))

	_, err := svc.Create(ctx, service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: g.EntityType.ID, Title: "Bad option",
		FieldValues: map[string]string{"severity": `"critical"`},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: g.EntityType.ID, Title: "Unknown key",
		FieldValues: map[string]string{"priority": `"p1"`},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	item, err := svc.Create(ctx, service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: g.EntityType.ID, Title: "Good option",
		FieldValues: map[string]string{"severity": `"high"`},
	})
	require.NoError(t, err)

	values, err := repository.NewSQLiteItemRepo(database).ListFieldValues(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, `"high"`, values[0].ValueJSON)
}

func TestItemTransition_HappyPath(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	item := testutil.SeedItem(t, database, env, g, "Login flow")
	svc := service.NewItemService(testutil.NewTestUoW(database))
	ctx := context.Background()

	require.NoError(t, svc.Transition(ctx, env.Admin.ID, item.ID, g.States["In Progress"].ID))

	after, err := repository.NewSQLiteItemRepo(database).GetByID(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, after.StatusStateID)
	assert.Equal(t, g.States["In Progress"].ID, *after.StatusStateID)
}

func TestItemTransition_InvalidEdgeRejected(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	item := testutil.SeedItem(t, database, env, g, "Login flow")
	svc := service.NewItemService(testutil.NewTestUoW(database))

	// Open -> Done is not a declared transition.
	err := svc.Transition(context.Background(), env.Admin.ID, item.ID, g.States["Done"].ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestItemTransition_NoExitFromFinalState(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	item := testutil.SeedItem(t, database, env, g, "Login flow")
	svc := service.NewItemService(testutil.NewTestUoW(database))
	ctx := context.Background()

	require.NoError(t, svc.Transition(ctx, env.Admin.ID, item.ID, g.States["In Progress"].ID))
	require.NoError(t, svc.Transition(ctx, env.Admin.ID, item.ID, g.States["Done"].ID))

	err := svc.Transition(ctx, env.Admin.ID, item.ID, g.States["Open"].ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestItemTransition_AnyAllowedRoleSuffices(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env,
		testutil.GraphActivated(),
		testutil.GraphTransitionRoles([]string{perm.CanEditPlanningItems, perm.CanEditProject}),
	)
	item := testutil.SeedItem(t, database, env, g, "Login flow")
	svc := service.NewItemService(testutil.NewTestUoW(database))
	ctx := context.Background()

	// Holds only the second listed key; OR semantics must let it through.
	editorUser, _ := testutil.AddMember(t, database, env, map[string]bool{
		perm.CanViewProject: true,
		perm.CanEditProject: true,
	})
	require.NoError(t, svc.Transition(ctx, editorUser.ID, item.ID, g.States["In Progress"].ID))

	// Holds neither key.
	viewerUser, _ := testutil.AddMember(t, database, env, map[string]bool{
		perm.CanViewProject: true,
	})
	err := svc.Transition(ctx, viewerUser.ID, item.ID, g.States["Done"].ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestItemTransition_BlockingDependencyGate(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	blocker := testutil.SeedItem(t, database, env, g, "Schema migration")
	blocked := testutil.SeedItem(t, database, env, g, "API endpoint")
	itemSvc := service.NewItemService(testutil.NewTestUoW(database))
	depSvc := service.NewDependencyService(testutil.NewTestUoW(database))
	ctx := context.Background()

	_, err := depSvc.Create(ctx, env.Admin.ID, blocker.ID, blocked.ID, domain.DependencyBlocks)
	require.NoError(t, err)

	// Blocker is still Open, so the blocked item cannot move.
	err = itemSvc.Transition(ctx, env.Admin.ID, blocked.ID, g.States["In Progress"].ID)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.ErrorContains(t, err, "Schema migration")

	// Drive the blocker to its final state; the blocked item is free.
	require.NoError(t, itemSvc.Transition(ctx, env.Admin.ID, blocker.ID, g.States["In Progress"].ID))
	require.NoError(t, itemSvc.Transition(ctx, env.Admin.ID, blocker.ID, g.States["Done"].ID))
	require.NoError(t, itemSvc.Transition(ctx, env.Admin.ID, blocked.ID, g.States["In Progress"].ID))
}

func TestItemTransition_RequiredFieldGate(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphActivated())
	ctx := context.Background()

	schema := repository.NewSQLiteSchemaRepo(database)
	require.NoError(t, schema.CreateField(ctx, &domain.FieldDefinition{
		ID: "fd-est", EntityTypeID: g.EntityType.ID, FieldKey: "estimate",
		DisplayName: "Estimate", FieldType: domain.FieldNumber,
		IsRequired: true, FieldOrder: 1,
	}))

	item := testutil.SeedItem(t, database, env, g, "Login flow")
	svc := service.NewItemService(testutil.NewTestUoW(database))

	err := svc.Transition(ctx, env.Admin.ID, item.ID, g.States["In Progress"].ID)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.ErrorContains(t, err, "estimate")

	_, err = svc.Update(ctx, service.UpdateItemInput{
		ActorID: env.Admin.ID, ItemID: item.ID,
		FieldValues: map[string]string{"estimate": "3"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Transition(ctx, env.Admin.ID, item.ID, g.States["In Progress"].ID))
}

func TestItemDelete_RejectsWhenChildrenExist(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env,
		testutil.GraphActivated(),
		testutil.GraphEntityType(func(et *domain.EntityType) { et.AllowChildren = true }),
	)
	ctx := context.Background()

	schema := repository.NewSQLiteSchemaRepo(database)
	child := &domain.EntityType{
		ID: "et-sub", TemplateID: g.Template.ID, InternalKey: "subtask",
		DisplayName: "Subtask", LevelOrder: 5,
	}
	require.NoError(t, schema.CreateEntityType(ctx, child))

	svc := service.NewItemService(testutil.NewTestUoW(database))
	parent, err := svc.Create(ctx, service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: g.EntityType.ID, Title: "Parent",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, service.CreateItemInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID,
		EntityTypeID: child.ID, ParentID: &parent.ID, Title: "Child",
	})
	require.NoError(t, err)

	err = svc.Delete(ctx, env.Admin.ID, parent.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
