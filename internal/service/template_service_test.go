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

func TestTemplateLifecycle_SaveWithoutApproval(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewTemplateService(testutil.NewTestUoW(database))
	ctx := context.Background()

	tmpl := &domain.ProcessTemplate{Name: "Release process"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, env.Project.ID, tmpl))
	assert.Equal(t, domain.TemplateDraft, tmpl.Status)
	assert.Equal(t, 1, tmpl.VersionNumber)

	saved, err := svc.Transition(ctx, service.TransitionTemplateInput{
		ActorID:    env.Admin.ID,
		ProjectID:  env.Project.ID,
		TemplateID: tmpl.ID,
		Action:     domain.ActionSave,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateCreated, saved.Status)
	assert.True(t, saved.IsLocked)
}

func TestTemplateLifecycle_SubmitRejectedWithoutApprovalFlag(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	svc := service.NewTemplateService(testutil.NewTestUoW(database))
	ctx := context.Background()

	tmpl := &domain.ProcessTemplate{Name: "Release process"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, env.Project.ID, tmpl))

	_, err := svc.Transition(ctx, service.TransitionTemplateInput{
		ActorID: env.Admin.ID, ProjectID: env.Project.ID, TemplateID: tmpl.ID,
		Action: domain.ActionSubmit,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTemplateLifecycle_ApprovalPath(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database, testutil.WithProject(func(p *domain.Project) {
		p.TemplateNeedsApproval = true
	}))
	reviewerUser, _ := testutil.AddMember(t, database, env, testutil.AllProjectPermissions())
	svc := service.NewTemplateService(testutil.NewTestUoW(database))
	ctx := context.Background()

	tmpl := &domain.ProcessTemplate{Name: "Release process"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, env.Project.ID, tmpl))

	step := func(actorID string, action domain.TemplateAction, reviewerID, note string) (*domain.ProcessTemplate, error) {
		return svc.Transition(ctx, service.TransitionTemplateInput{
			ActorID: actorID, ProjectID: env.Project.ID, TemplateID: tmpl.ID,
			Action: action, ReviewerID: reviewerID, Note: note,
		})
	}

	out, err := step(env.Admin.ID, domain.ActionSubmit, "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateSubmitted, out.Status)

	out, err = step(env.Admin.ID, domain.ActionAssignReviewer, reviewerUser.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateApprovalPending, out.Status)
	require.NotNil(t, out.ReviewerID)
	assert.Equal(t, reviewerUser.ID, *out.ReviewerID)

	// Only the assigned reviewer may approve.
	_, err = step(env.Admin.ID, domain.ActionApprove, "", "")
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	out, err = step(reviewerUser.ID, domain.ActionApprove, "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateApproved, out.Status)

	out, err = step(env.Admin.ID, domain.ActionCreate, "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateCreated, out.Status)
	assert.True(t, out.IsLocked)
}

func TestTemplateLifecycle_RejectLoopsBackToDraft(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database, testutil.WithProject(func(p *domain.Project) {
		p.TemplateNeedsApproval = true
	}))
	reviewerUser, _ := testutil.AddMember(t, database, env, testutil.AllProjectPermissions())
	svc := service.NewTemplateService(testutil.NewTestUoW(database))
	ctx := context.Background()

	tmpl := &domain.ProcessTemplate{Name: "Release process"}
	require.NoError(t, svc.Create(ctx, env.Admin.ID, env.Project.ID, tmpl))

	for _, in := range []service.TransitionTemplateInput{
		{ActorID: env.Admin.ID, Action: domain.ActionSubmit},
		{ActorID: env.Admin.ID, Action: domain.ActionAssignReviewer, ReviewerID: reviewerUser.ID},
	} {
		in.ProjectID = env.Project.ID
		in.TemplateID = tmpl.ID
		_, err := svc.Transition(ctx, in)
		require.NoError(t, err)
	}

	// A note is mandatory on rejection.
	_, err := svc.Transition(ctx, service.TransitionTemplateInput{
		ActorID: reviewerUser.ID, ProjectID: env.Project.ID, TemplateID: tmpl.ID,
		Action: domain.ActionReject,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	out, err := svc.Transition(ctx, service.TransitionTemplateInput{
		ActorID: reviewerUser.ID, ProjectID: env.Project.ID, TemplateID: tmpl.ID,
		Action: domain.ActionReject, Note: "workflow is incomplete",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateDraft, out.Status)
	assert.Nil(t, out.ReviewerID)
	require.NotNil(t, out.RejectionNote)
	assert.Equal(t, "workflow is incomplete", *out.RejectionNote)
}

func TestTemplateLifecycle_IllegalActionMatrix(t *testing.T) {
	legal := map[domain.TemplateStatus]map[domain.TemplateAction]bool{
		domain.TemplateDraft:           {domain.ActionSubmit: true},
		domain.TemplateSubmitted:       {domain.ActionAssignReviewer: true},
		domain.TemplateApprovalPending: {domain.ActionApprove: true, domain.ActionReject: true},
		domain.TemplateApproved:        {domain.ActionCreate: true},
		domain.TemplateCreated:         {},
		domain.TemplateActivated:       {},
	}
	actions := []domain.TemplateAction{
		domain.ActionSubmit, domain.ActionAssignReviewer, domain.ActionApprove,
		domain.ActionReject, domain.ActionCreate, domain.ActionSave,
	}

	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database, testutil.WithProject(func(p *domain.Project) {
		p.TemplateNeedsApproval = true
	}))
	svc := service.NewTemplateService(testutil.NewTestUoW(database))
	templates := repository.NewSQLiteTemplateRepo(database)
	ctx := context.Background()

	for status, allowed := range legal {
		for _, action := range actions {
			if allowed[action] {
				continue
			}
			tmpl := &domain.ProcessTemplate{Name: "Matrix"}
			require.NoError(t, svc.Create(ctx, env.Admin.ID, env.Project.ID, tmpl))
			tmpl.Status = status
			tmpl.IsLocked = status == domain.TemplateCreated || status == domain.TemplateActivated
			tmpl.ReviewerID = &env.Admin.ID
			require.NoError(t, templates.Update(ctx, tmpl))

			_, err := svc.Transition(ctx, service.TransitionTemplateInput{
				ActorID: env.Admin.ID, ProjectID: env.Project.ID, TemplateID: tmpl.ID,
				Action: action, ReviewerID: env.Admin.ID, Note: "n",
			})
			require.ErrorIs(t, err, apperr.ErrValidation, "status %s action %s", status, action)

			after, err := templates.GetByID(ctx, tmpl.ID)
			require.NoError(t, err)
			assert.Equal(t, status, after.Status, "status %s action %s must not change state", status, action)
		}
	}
}

func TestTemplateCreate_RequiresPermission(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	viewerUser, _ := testutil.AddMember(t, database, env, map[string]bool{perm.CanViewProject: true})
	svc := service.NewTemplateService(testutil.NewTestUoW(database))

	err := svc.Create(context.Background(), viewerUser.ID, env.Project.ID, &domain.ProcessTemplate{Name: "Nope"})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestTemplateCreate_PlanningDisabled(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database, testutil.WithProject(func(p *domain.Project) {
		p.TestPlanningEnabled = false
	}))
	svc := service.NewTemplateService(testutil.NewTestUoW(database))

	err := svc.Create(context.Background(), env.Admin.ID, env.Project.ID, &domain.ProcessTemplate{Name: "Nope"})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestTemplateDelete_OnlyDraft(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env)
	svc := service.NewTemplateService(testutil.NewTestUoW(database))

	err := svc.Delete(context.Background(), env.Admin.ID, env.Project.ID, g.Template.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTemplateActivate_ExclusiveBinding(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	first := testutil.SeedTemplateGraph(t, database, env)
	second := testutil.SeedTemplateGraph(t, database, env)
	svc := service.NewTemplateService(testutil.NewTestUoW(database))
	templates := repository.NewSQLiteTemplateRepo(database)
	ctx := context.Background()

	require.NoError(t, svc.Activate(ctx, env.Admin.ID, env.Project.ID, first.Template.ID))
	binding, err := templates.GetActiveBinding(ctx, env.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Template.ID, binding.TemplateID)

	// Activating another template replaces the binding and reverts the
	// first template to CREATED since nothing binds it anymore.
	require.NoError(t, svc.Activate(ctx, env.Admin.ID, env.Project.ID, second.Template.ID))
	binding, err = templates.GetActiveBinding(ctx, env.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Template.ID, binding.TemplateID)

	reverted, err := templates.GetByID(ctx, first.Template.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateCreated, reverted.Status)

	activated, err := templates.GetByID(ctx, second.Template.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateActivated, activated.Status)
}

func TestTemplateActivate_ReactivatingActiveTemplateIsRefresh(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env)
	svc := service.NewTemplateService(testutil.NewTestUoW(database))
	ctx := context.Background()

	require.NoError(t, svc.Activate(ctx, env.Admin.ID, env.Project.ID, g.Template.ID))
	require.NoError(t, svc.Activate(ctx, env.Admin.ID, env.Project.ID, g.Template.ID))

	binding, err := repository.NewSQLiteTemplateRepo(database).GetActiveBinding(ctx, env.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Template.ID, binding.TemplateID)
}

func TestTemplateActivate_RejectsDraft(t *testing.T) {
	database := testutil.NewTestDB(t)
	env := testutil.SeedEnv(t, database)
	g := testutil.SeedTemplateGraph(t, database, env, testutil.GraphStatus(domain.TemplateDraft, false))
	svc := service.NewTemplateService(testutil.NewTestUoW(database))

	err := svc.Activate(context.Background(), env.Admin.ID, env.Project.ID, g.Template.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
