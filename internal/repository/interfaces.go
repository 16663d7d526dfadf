package repository

import (
	"context"

	"github.com/plandeck/plandeck/internal/domain"
)

type CompanyRepo interface {
	Create(ctx context.Context, c *domain.Company) error
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	CreateRole(ctx context.Context, r *domain.Role) error
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	CreateUser(ctx context.Context, u *domain.CompanyUser) error
	GetUser(ctx context.Context, id string) (*domain.CompanyUser, error)
}

type ProjectRepo interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ListByCompany(ctx context.Context, companyID string) ([]*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error

	CreateRole(ctx context.Context, r *domain.ProjectRole) error
	GetRole(ctx context.Context, id string) (*domain.ProjectRole, error)
	UpdateRole(ctx context.Context, r *domain.ProjectRole) error

	CreateMember(ctx context.Context, m *domain.ProjectUser) error
	GetMemberByID(ctx context.Context, id string) (*domain.ProjectUser, error)
	// GetMembership resolves the membership of a company user in a project.
	GetMembership(ctx context.Context, projectID, companyUserID string) (*domain.ProjectUser, error)
	SetMemberActive(ctx context.Context, id string, active bool) error

	GetPlanningConfig(ctx context.Context, projectID string) (*domain.PlanningConfig, error)
	UpsertPlanningConfig(ctx context.Context, c *domain.PlanningConfig) error
}

type TemplateRepo interface {
	Create(ctx context.Context, t *domain.ProcessTemplate) error
	GetByID(ctx context.Context, id string) (*domain.ProcessTemplate, error)
	ListByCompany(ctx context.Context, companyID string) ([]*domain.ProcessTemplate, error)
	Update(ctx context.Context, t *domain.ProcessTemplate) error
	Delete(ctx context.Context, id string) error

	GetBinding(ctx context.Context, projectID, templateID string) (*domain.TemplateBinding, error)
	GetActiveBinding(ctx context.Context, projectID string) (*domain.TemplateBinding, error)
	ListActiveBindingsByTemplate(ctx context.Context, templateID string) ([]*domain.TemplateBinding, error)
	UpsertBinding(ctx context.Context, b *domain.TemplateBinding) error
	DeactivateBinding(ctx context.Context, id string) error
}

// SchemaRepo persists a template's structural graph: entity types, field
// definitions, workflows, states, transitions and time-tracking rules.
type SchemaRepo interface {
	CreateEntityType(ctx context.Context, et *domain.EntityType) error
	GetEntityType(ctx context.Context, id string) (*domain.EntityType, error)
	ListEntityTypes(ctx context.Context, templateID string) ([]*domain.EntityType, error)
	UpdateEntityType(ctx context.Context, et *domain.EntityType) error
	DeleteEntityType(ctx context.Context, id string) error

	CreateField(ctx context.Context, f *domain.FieldDefinition) error
	GetField(ctx context.Context, id string) (*domain.FieldDefinition, error)
	ListFields(ctx context.Context, entityTypeID string) ([]*domain.FieldDefinition, error)
	UpdateField(ctx context.Context, f *domain.FieldDefinition) error
	DeleteField(ctx context.Context, id string) error

	CreateWorkflow(ctx context.Context, w *domain.WorkflowDefinition) error
	GetWorkflow(ctx context.Context, id string) (*domain.WorkflowDefinition, error)
	GetWorkflowByEntityType(ctx context.Context, entityTypeID string) (*domain.WorkflowDefinition, error)
	UpdateWorkflow(ctx context.Context, w *domain.WorkflowDefinition) error
	DeleteWorkflow(ctx context.Context, id string) error

	CreateState(ctx context.Context, s *domain.WorkflowState) error
	GetState(ctx context.Context, id string) (*domain.WorkflowState, error)
	ListStates(ctx context.Context, workflowID string) ([]*domain.WorkflowState, error)
	UpdateState(ctx context.Context, s *domain.WorkflowState) error
	DeleteState(ctx context.Context, id string) error
	// StateReferenced reports whether any transition or planning item
	// still points at the state.
	StateReferenced(ctx context.Context, stateID string) (bool, error)

	CreateTransition(ctx context.Context, t *domain.WorkflowTransition) error
	GetTransition(ctx context.Context, workflowID, fromStateID, toStateID string) (*domain.WorkflowTransition, error)
	GetTransitionByID(ctx context.Context, id string) (*domain.WorkflowTransition, error)
	ListTransitions(ctx context.Context, workflowID string) ([]*domain.WorkflowTransition, error)
	DeleteTransition(ctx context.Context, id string) error

	CreateTimeRule(ctx context.Context, r *domain.TimeTrackingRule) error
	GetTimeRule(ctx context.Context, id string) (*domain.TimeTrackingRule, error)
	GetTimeRuleByEntityType(ctx context.Context, entityTypeID string) (*domain.TimeTrackingRule, error)
	UpdateTimeRule(ctx context.Context, r *domain.TimeTrackingRule) error
	DeleteTimeRule(ctx context.Context, id string) error
}

type ItemRepo interface {
	Create(ctx context.Context, it *domain.PlanningItem) error
	GetByID(ctx context.Context, id string) (*domain.PlanningItem, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.PlanningItem, error)
	ListChildren(ctx context.Context, parentID string) ([]*domain.PlanningItem, error)
	Update(ctx context.Context, it *domain.PlanningItem) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, itemID, stateID string) error

	ReplaceAssignees(ctx context.Context, itemID string, projectUserIDs []string) error
	ListAssignees(ctx context.Context, itemID string) ([]string, error)

	UpsertFieldValue(ctx context.Context, v *domain.ItemFieldValue) error
	ListFieldValues(ctx context.Context, itemID string) ([]*domain.ItemFieldValue, error)
	DeleteFieldValue(ctx context.Context, itemID, fieldDefinitionID string) error
}

type DependencyRepo interface {
	Create(ctx context.Context, d *domain.PlanningDependency) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.PlanningDependency, error)
	GetByPair(ctx context.Context, sourceItemID, targetItemID string) (*domain.PlanningDependency, error)
	ListBySource(ctx context.Context, sourceItemID string) ([]*domain.PlanningDependency, error)
	ListByTarget(ctx context.Context, targetItemID string) ([]*domain.PlanningDependency, error)
}

type ExecutionBindingRepo interface {
	GetByItem(ctx context.Context, itemID string) (*domain.ExecutionBinding, error)
	Upsert(ctx context.Context, b *domain.ExecutionBinding) error
	DeleteByItem(ctx context.Context, itemID string) error
}

type SessionRepo interface {
	Create(ctx context.Context, s *domain.TimeSession) error
	Update(ctx context.Context, s *domain.TimeSession) error
	ListByItem(ctx context.Context, itemID string) ([]*domain.TimeSession, error)
	ListOpenByItem(ctx context.Context, itemID string) ([]*domain.TimeSession, error)
	// LatestOpen returns the most recently started open session of the
	// user on the item.
	LatestOpen(ctx context.Context, itemID, projectUserID string) (*domain.TimeSession, error)
}

type FlowRepo interface {
	Create(ctx context.Context, f *domain.Flow) error
	GetByID(ctx context.Context, id string) (*domain.Flow, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Flow, error)
	ListByFolder(ctx context.Context, folderID string) ([]*domain.Flow, error)
	Update(ctx context.Context, f *domain.Flow) error
	Delete(ctx context.Context, id string) error
	CountByFolder(ctx context.Context, folderID string) (int, error)

	CreateVersion(ctx context.Context, v *domain.FlowVersion) error
	GetVersion(ctx context.Context, flowID string, number int) (*domain.FlowVersion, error)
	ListVersions(ctx context.Context, flowID string) ([]*domain.FlowVersion, error)
	CountVersions(ctx context.Context, flowID string) (int, error)
}

type TestCaseRepo interface {
	Create(ctx context.Context, tc *domain.TestCase) error
	GetByID(ctx context.Context, id string) (*domain.TestCase, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.TestCase, error)
	ListByFolder(ctx context.Context, folderID string) ([]*domain.TestCase, error)
	Update(ctx context.Context, tc *domain.TestCase) error
	Delete(ctx context.Context, id string) error
	CountByFolder(ctx context.Context, folderID string) (int, error)

	CreateVersion(ctx context.Context, v *domain.TestCaseVersion) error
	GetVersion(ctx context.Context, testCaseID string, number int) (*domain.TestCaseVersion, error)
	ListVersions(ctx context.Context, testCaseID string) ([]*domain.TestCaseVersion, error)
}

// FolderRepo is one materialized-path tree; the family is fixed at
// construction and selects the backing table.
type FolderRepo interface {
	Create(ctx context.Context, f *domain.Folder) error
	GetByID(ctx context.Context, id string) (*domain.Folder, error)
	GetByPath(ctx context.Context, projectID, path string) (*domain.Folder, error)
	ListByPrefix(ctx context.Context, projectID, prefix string) ([]*domain.Folder, error)
	ListRoots(ctx context.Context, projectID string) ([]*domain.Folder, error)
	Update(ctx context.Context, f *domain.Folder) error
	Delete(ctx context.Context, id string) error
	HasChildren(ctx context.Context, id string) (bool, error)
}

type VariableRepo interface {
	Create(ctx context.Context, v *domain.Variable) error
	GetByID(ctx context.Context, id string) (*domain.Variable, error)
	GetByKey(ctx context.Context, projectID, key string) (*domain.Variable, error)
	ListByFolder(ctx context.Context, folderID string) ([]*domain.Variable, error)
	Update(ctx context.Context, v *domain.Variable) error
	Delete(ctx context.Context, id string) error
	CountByFolder(ctx context.Context, folderID string) (int, error)
}

type ElementRepo interface {
	Create(ctx context.Context, e *domain.Element) error
	GetByID(ctx context.Context, id string) (*domain.Element, error)
	ListByFolder(ctx context.Context, folderID string) ([]*domain.Element, error)
	Delete(ctx context.Context, id string) error
	CountByFolder(ctx context.Context, folderID string) (int, error)

	CreateLocator(ctx context.Context, l *domain.ElementLocator) error
	ListLocators(ctx context.Context, elementID string) ([]*domain.ElementLocator, error)
	UpdateLocator(ctx context.Context, l *domain.ElementLocator) error
	DeleteLocator(ctx context.Context, id string) error
}
