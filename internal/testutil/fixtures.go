package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/perm"
	"github.com/plandeck/plandeck/internal/repository"
)

// Env is a fully wired tenant: a company with an admin user, a project
// with every feature flag on, and an all-permissions membership for the
// admin.
type Env struct {
	Company     *domain.Company
	CompanyRole *domain.Role
	Admin       *domain.CompanyUser
	Project     *domain.Project
	ProjectRole *domain.ProjectRole
	Member      *domain.ProjectUser
}

type EnvOption func(*Env)

func WithProject(mutate func(p *domain.Project)) EnvOption {
	return func(e *Env) { mutate(e.Project) }
}

func WithProjectPermissions(permissions map[string]bool) EnvOption {
	return func(e *Env) { e.ProjectRole.Permissions = permissions }
}

// AllProjectPermissions grants every key in the project vocabulary.
func AllProjectPermissions() map[string]bool {
	m := make(map[string]bool)
	for _, k := range perm.ProjectKeys() {
		m[k] = true
	}
	return m
}

// AllCompanyPermissions grants every key in the company vocabulary.
func AllCompanyPermissions() map[string]bool {
	m := make(map[string]bool)
	for _, k := range perm.CompanyKeys() {
		m[k] = true
	}
	return m
}

// SeedEnv inserts a ready-to-use tenant into the database.
func SeedEnv(t *testing.T, database *sql.DB, opts ...EnvOption) *Env {
	t.Helper()
	now := time.Now().UTC()

	companyID := uuid.New().String()
	env := &Env{
		Company: &domain.Company{
			ID:        companyID,
			Name:      "Acme QA " + companyID[:8],
			CreatedAt: now,
		},
	}
	env.CompanyRole = &domain.Role{
		ID:          uuid.New().String(),
		CompanyID:   env.Company.ID,
		Name:        "Admin",
		Permissions: AllCompanyPermissions(),
		CreatedAt:   now,
	}
	env.Admin = &domain.CompanyUser{
		ID:          uuid.New().String(),
		CompanyID:   env.Company.ID,
		Email:       "admin@acme.test",
		DisplayName: "Admin",
		RoleID:      &env.CompanyRole.ID,
		IsActive:    true,
		CreatedAt:   now,
	}
	env.Project = &domain.Project{
		ID:                    uuid.New().String(),
		CompanyID:             env.Company.ID,
		Name:                  "Checkout",
		Status:                domain.ProjectActive,
		FlowsEnabled:          true,
		TestCasesEnabled:      true,
		TestPlanningEnabled:   true,
		TemplateNeedsApproval: false,
		ElementCaptureEnabled: true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	env.ProjectRole = &domain.ProjectRole{
		ID:          uuid.New().String(),
		ProjectID:   env.Project.ID,
		Name:        "Maintainer",
		Permissions: AllProjectPermissions(),
		CreatedAt:   now,
	}
	env.Member = &domain.ProjectUser{
		ID:            uuid.New().String(),
		ProjectID:     env.Project.ID,
		CompanyUserID: env.Admin.ID,
		RoleID:        env.ProjectRole.ID,
		IsActive:      true,
	}
	for _, opt := range opts {
		opt(env)
	}

	ctx := context.Background()
	companies := repository.NewSQLiteCompanyRepo(database)
	projects := repository.NewSQLiteProjectRepo(database)
	must(t, companies.Create(ctx, env.Company))
	must(t, companies.CreateRole(ctx, env.CompanyRole))
	must(t, companies.CreateUser(ctx, env.Admin))
	must(t, projects.Create(ctx, env.Project))
	must(t, projects.CreateRole(ctx, env.ProjectRole))
	must(t, projects.CreateMember(ctx, env.Member))
	return env
}

// AddMember seeds another company user and an active membership with the
// given project permissions, returning the membership.
func AddMember(t *testing.T, database *sql.DB, env *Env, permissions map[string]bool) (*domain.CompanyUser, *domain.ProjectUser) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	user := &domain.CompanyUser{
		ID:          uuid.New().String(),
		CompanyID:   env.Company.ID,
		Email:       uuid.New().String() + "@acme.test",
		DisplayName: "Member",
		IsActive:    true,
		CreatedAt:   now,
	}
	role := &domain.ProjectRole{
		ID:          uuid.New().String(),
		ProjectID:   env.Project.ID,
		Name:        "Role " + user.ID[:8],
		Permissions: permissions,
		CreatedAt:   now,
	}
	member := &domain.ProjectUser{
		ID:            uuid.New().String(),
		ProjectID:     env.Project.ID,
		CompanyUserID: user.ID,
		RoleID:        role.ID,
		IsActive:      true,
	}
	must(t, repository.NewSQLiteCompanyRepo(database).CreateUser(ctx, user))
	projects := repository.NewSQLiteProjectRepo(database)
	must(t, projects.CreateRole(ctx, role))
	must(t, projects.CreateMember(ctx, member))
	return user, member
}

// TemplateGraph is a seeded template with one workflow-bearing entity
// type, ready for planning-item tests.
type TemplateGraph struct {
	Template   *domain.ProcessTemplate
	EntityType *domain.EntityType
	Workflow   *domain.WorkflowDefinition
	// States by name: "Open" (initial), "In Progress", "Done" (final).
	States      map[string]*domain.WorkflowState
	Transitions []*domain.WorkflowTransition
}

type GraphOption func(*graphConfig)

type graphConfig struct {
	status          domain.TemplateStatus
	locked          bool
	activate        bool
	entityType      func(*domain.EntityType)
	transitionRoles []string
}

func GraphStatus(status domain.TemplateStatus, locked bool) GraphOption {
	return func(c *graphConfig) { c.status = status; c.locked = locked }
}

// GraphActivated seeds the template as ACTIVATED with an active binding
// to the environment's project.
func GraphActivated() GraphOption {
	return func(c *graphConfig) {
		c.status = domain.TemplateActivated
		c.locked = true
		c.activate = true
	}
}

func GraphEntityType(mutate func(et *domain.EntityType)) GraphOption {
	return func(c *graphConfig) { c.entityType = mutate }
}

func GraphTransitionRoles(roles []string) GraphOption {
	return func(c *graphConfig) { c.transitionRoles = roles }
}

// SeedTemplateGraph inserts a template with a Task entity type carrying
// an Open -> In Progress -> Done workflow.
func SeedTemplateGraph(t *testing.T, database *sql.DB, env *Env, opts ...GraphOption) *TemplateGraph {
	t.Helper()
	cfg := &graphConfig{
		status:          domain.TemplateCreated,
		locked:          true,
		transitionRoles: []string{perm.CanEditPlanningItems},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	templates := repository.NewSQLiteTemplateRepo(database)
	schema := repository.NewSQLiteSchemaRepo(database)

	g := &TemplateGraph{States: make(map[string]*domain.WorkflowState)}
	g.Template = &domain.ProcessTemplate{
		ID:            uuid.New().String(),
		CompanyID:     env.Company.ID,
		Name:          "Standard Process",
		VersionNumber: 1,
		Status:        cfg.status,
		IsLocked:      cfg.locked,
		CreatedBy:     &env.Admin.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	must(t, templates.Create(ctx, g.Template))

	g.EntityType = &domain.EntityType{
		ID:                    uuid.New().String(),
		TemplateID:            g.Template.ID,
		InternalKey:           "task",
		DisplayName:           "Task",
		LevelOrder:            4,
		AllowChildren:         false,
		AllowExecutionBinding: true,
		AllowDependencies:     true,
		AllowTimeTracking:     true,
		CreatedAt:             now,
	}
	if cfg.entityType != nil {
		cfg.entityType(g.EntityType)
	}
	must(t, schema.CreateEntityType(ctx, g.EntityType))

	g.Workflow = &domain.WorkflowDefinition{
		ID:           uuid.New().String(),
		EntityTypeID: g.EntityType.ID,
		CreatedAt:    now,
	}
	must(t, schema.CreateWorkflow(ctx, g.Workflow))
	g.EntityType.WorkflowID = &g.Workflow.ID
	must(t, schema.UpdateEntityType(ctx, g.EntityType))

	for i, spec := range []struct {
		name  string
		final bool
	}{
		{"Open", false},
		{"In Progress", false},
		{"Done", true},
	} {
		state := &domain.WorkflowState{
			ID:         uuid.New().String(),
			WorkflowID: g.Workflow.ID,
			Name:       spec.name,
			IsFinal:    spec.final,
			StateOrder: i + 1,
		}
		must(t, schema.CreateState(ctx, state))
		g.States[spec.name] = state
	}
	g.Workflow.InitialStateID = &g.States["Open"].ID
	must(t, schema.UpdateWorkflow(ctx, g.Workflow))

	for _, pair := range [][2]string{
		{"Open", "In Progress"},
		{"In Progress", "Done"},
		{"In Progress", "Open"},
	} {
		tr := &domain.WorkflowTransition{
			ID:           uuid.New().String(),
			WorkflowID:   g.Workflow.ID,
			FromStateID:  g.States[pair[0]].ID,
			ToStateID:    g.States[pair[1]].ID,
			AllowedRoles: cfg.transitionRoles,
			CreatedAt:    now,
		}
		must(t, schema.CreateTransition(ctx, tr))
		g.Transitions = append(g.Transitions, tr)
	}

	if cfg.activate {
		must(t, templates.UpsertBinding(ctx, &domain.TemplateBinding{
			ID:          uuid.New().String(),
			ProjectID:   env.Project.ID,
			TemplateID:  g.Template.ID,
			IsActive:    true,
			ActivatedAt: now,
		}))
	}
	return g
}

// SeedItem inserts a planning item of the graph's entity type at the
// workflow's initial state, assigned to the environment's admin member.
func SeedItem(t *testing.T, database *sql.DB, env *Env, g *TemplateGraph, title string) *domain.PlanningItem {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	item := &domain.PlanningItem{
		ID:            uuid.New().String(),
		ProjectID:     env.Project.ID,
		EntityTypeID:  g.EntityType.ID,
		Title:         title,
		StatusStateID: g.Workflow.InitialStateID,
		CreatedBy:     &env.Member.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	items := repository.NewSQLiteItemRepo(database)
	must(t, items.Create(ctx, item))
	must(t, items.ReplaceAssignees(ctx, item.ID, []string{env.Member.ID}))
	item.AssigneeIDs = []string{env.Member.ID}
	return item
}

// SeedFolder inserts a root folder of the given family.
func SeedFolder(t *testing.T, database *sql.DB, env *Env, family domain.FolderFamily, name string) *domain.Folder {
	t.Helper()
	f := &domain.Folder{
		ID:        uuid.New().String(),
		ProjectID: env.Project.ID,
		Name:      name,
		Path:      name,
		Status:    domain.FolderActive,
		CreatedAt: time.Now().UTC(),
	}
	must(t, repository.NewSQLiteFolderRepo(database, family).Create(context.Background(), f))
	return f
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seeding fixture: %v", err)
	}
}
