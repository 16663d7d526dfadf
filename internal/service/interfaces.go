package service

import (
	"context"
	"time"

	"github.com/plandeck/plandeck/internal/domain"
)

// Every operation takes the acting company user's id as actorID; services
// resolve the actor's project membership, check the project's feature
// flags and the required permission, then run inside one transaction.

type TemplateService interface {
	Create(ctx context.Context, actorID, projectID string, t *domain.ProcessTemplate) error
	Get(ctx context.Context, actorID, projectID, templateID string) (*domain.ProcessTemplate, error)
	List(ctx context.Context, actorID, projectID string) ([]*domain.ProcessTemplate, error)
	// Update edits a DRAFT template in place; on a locked CREATED
	// template it clones first and applies the edit to the new draft.
	Update(ctx context.Context, actorID, projectID, templateID, name, description string) (*domain.ProcessTemplate, error)
	Delete(ctx context.Context, actorID, projectID, templateID string) error
	// Transition applies a lifecycle action. Reject requires a note;
	// assign_reviewer requires a reviewer id.
	Transition(ctx context.Context, in TransitionTemplateInput) (*domain.ProcessTemplate, error)
	// Clone copies a locked template's whole structural graph into a new
	// draft with version_number + 1.
	Clone(ctx context.Context, actorID, projectID, templateID string) (*domain.ProcessTemplate, error)
	// Activate binds the template to the project, deactivating any other
	// binding the project holds.
	Activate(ctx context.Context, actorID, projectID, templateID string) error
}

type TransitionTemplateInput struct {
	ActorID    string
	ProjectID  string
	TemplateID string
	Action     domain.TemplateAction
	ReviewerID string
	Note       string
}

// TemplateSchemaService edits a template's structural graph. All
// operations reject locked templates.
type TemplateSchemaService interface {
	CreateEntityType(ctx context.Context, actorID, projectID string, et *domain.EntityType) error
	UpdateEntityType(ctx context.Context, actorID, projectID string, et *domain.EntityType) error
	DeleteEntityType(ctx context.Context, actorID, projectID, entityTypeID string) error
	ListEntityTypes(ctx context.Context, actorID, projectID, templateID string) ([]*domain.EntityType, error)

	CreateField(ctx context.Context, actorID, projectID string, f *domain.FieldDefinition) error
	UpdateField(ctx context.Context, actorID, projectID string, f *domain.FieldDefinition) error
	DeleteField(ctx context.Context, actorID, projectID, fieldID string) error
	ListFields(ctx context.Context, actorID, projectID, entityTypeID string) ([]*domain.FieldDefinition, error)

	CreateWorkflow(ctx context.Context, actorID, projectID, entityTypeID string) (*domain.WorkflowDefinition, error)
	SetInitialState(ctx context.Context, actorID, projectID, workflowID, stateID string) error
	DeleteWorkflow(ctx context.Context, actorID, projectID, workflowID string) error

	CreateState(ctx context.Context, actorID, projectID string, s *domain.WorkflowState) error
	UpdateState(ctx context.Context, actorID, projectID string, s *domain.WorkflowState) error
	DeleteState(ctx context.Context, actorID, projectID, stateID string) error
	ListStates(ctx context.Context, actorID, projectID, workflowID string) ([]*domain.WorkflowState, error)

	CreateTransition(ctx context.Context, actorID, projectID string, t *domain.WorkflowTransition) error
	DeleteTransition(ctx context.Context, actorID, projectID, transitionID string) error
	ListTransitions(ctx context.Context, actorID, projectID, workflowID string) ([]*domain.WorkflowTransition, error)

	CreateTimeRule(ctx context.Context, actorID, projectID string, r *domain.TimeTrackingRule) error
	UpdateTimeRule(ctx context.Context, actorID, projectID string, r *domain.TimeTrackingRule) error
	DeleteTimeRule(ctx context.Context, actorID, projectID, ruleID string) error
}

type CreateItemInput struct {
	ActorID      string
	ProjectID    string
	EntityTypeID string
	ParentID     *string
	Title        string
	Description  string
	OwnerID      *string
	AssigneeIDs  []string
	StartDate    *time.Time
	EndDate      *time.Time
	// FieldValues maps field_key to a JSON-encoded value.
	FieldValues map[string]string
}

type UpdateItemInput struct {
	ActorID     string
	ItemID      string
	Title       *string
	Description *string
	OwnerID     *string
	AssigneeIDs []string
	StartDate   *time.Time
	EndDate     *time.Time
	FieldValues map[string]string
}

type ItemService interface {
	Create(ctx context.Context, in CreateItemInput) (*domain.PlanningItem, error)
	Get(ctx context.Context, actorID, itemID string) (*domain.PlanningItem, error)
	ListByProject(ctx context.Context, actorID, projectID string) ([]*domain.PlanningItem, error)
	Update(ctx context.Context, in UpdateItemInput) (*domain.PlanningItem, error)
	Delete(ctx context.Context, actorID, itemID string) error
	// Transition moves an item to the target workflow state, enforcing
	// transition existence, role authorization, blocking dependencies
	// and required fields, in that order.
	Transition(ctx context.Context, actorID, itemID, targetStateID string) error
}

type DependencyService interface {
	Create(ctx context.Context, actorID, sourceItemID, targetItemID string, depType domain.DependencyType) (*domain.PlanningDependency, error)
	Delete(ctx context.Context, actorID, dependencyID string) error
	ListBySource(ctx context.Context, actorID, itemID string) ([]*domain.PlanningDependency, error)
	ListByTarget(ctx context.Context, actorID, itemID string) ([]*domain.PlanningDependency, error)
}

type BindExecutionInput struct {
	ActorID       string
	ItemID        string
	FlowID        *string
	TestCaseID    *string
	ExecutionMode string
	AutoTrigger   bool
}

type BindingService interface {
	// Bind links an item to a flow and/or test case; re-binding replaces
	// the previous link.
	Bind(ctx context.Context, in BindExecutionInput) (*domain.ExecutionBinding, error)
	Unbind(ctx context.Context, actorID, itemID string) error
	Get(ctx context.Context, actorID, itemID string) (*domain.ExecutionBinding, error)
}

type TimeTrackingService interface {
	StartSession(ctx context.Context, actorID, itemID string) (*domain.TimeSession, error)
	StopSession(ctx context.Context, actorID, itemID string) (*domain.TimeSession, error)
	ListSessions(ctx context.Context, actorID, itemID string) ([]*domain.TimeSession, error)
}

type SaveFlowVersionInput struct {
	ActorID string
	FlowID  string
	// StepsJSON is a JSON array of step objects.
	StepsJSON          string
	CreatedFromVersion *int
}

type FlowService interface {
	Create(ctx context.Context, actorID string, f *domain.Flow) error
	Get(ctx context.Context, actorID, flowID string) (*domain.Flow, error)
	ListByProject(ctx context.Context, actorID, projectID string) ([]*domain.Flow, error)
	UpdateMetadata(ctx context.Context, actorID, flowID, name, description string) error
	Archive(ctx context.Context, actorID, flowID string) error
	// Delete removes a flow that has no versions yet.
	Delete(ctx context.Context, actorID, flowID string) error
	SaveVersion(ctx context.Context, in SaveFlowVersionInput) (*domain.FlowVersion, error)
	// Rollback copies the steps of an earlier version into a new one.
	Rollback(ctx context.Context, actorID, flowID string, toVersion int) (*domain.FlowVersion, error)
	ListVersions(ctx context.Context, actorID, flowID string) ([]*domain.FlowVersion, error)
}

type SaveTestCaseVersionInput struct {
	ActorID              string
	TestCaseID           string
	PreConditionsJSON    string
	StepsJSON            string
	ExpectedOutcomesJSON string
}

type TestCaseService interface {
	Create(ctx context.Context, actorID string, tc *domain.TestCase) error
	Get(ctx context.Context, actorID, testCaseID string) (*domain.TestCase, error)
	ListByProject(ctx context.Context, actorID, projectID string) ([]*domain.TestCase, error)
	Archive(ctx context.Context, actorID, testCaseID string) error
	SaveVersion(ctx context.Context, in SaveTestCaseVersionInput) (*domain.TestCaseVersion, error)
	Rollback(ctx context.Context, actorID, testCaseID string, toVersion int) (*domain.TestCaseVersion, error)
	ListVersions(ctx context.Context, actorID, testCaseID string) ([]*domain.TestCaseVersion, error)
}

// FolderService maintains one of the four materialized-path folder
// trees; the family is fixed at construction.
type FolderService interface {
	Create(ctx context.Context, actorID, projectID string, parentID *string, name string) (*domain.Folder, error)
	Rename(ctx context.Context, actorID, folderID, newName string) (*domain.Folder, error)
	Move(ctx context.Context, actorID, folderID string, newParentID *string) (*domain.Folder, error)
	Delete(ctx context.Context, actorID, folderID string) error
	Get(ctx context.Context, actorID, folderID string) (*domain.Folder, error)
}

type AssetService interface {
	CreateVariable(ctx context.Context, actorID string, v *domain.Variable) error
	UpdateVariable(ctx context.Context, actorID string, v *domain.Variable) error
	DeleteVariable(ctx context.Context, actorID, variableID string) error
	ListVariables(ctx context.Context, actorID, folderID string) ([]*domain.Variable, error)

	CreateElement(ctx context.Context, actorID string, e *domain.Element, locators []*domain.ElementLocator) error
	DeleteElement(ctx context.Context, actorID, elementID string) error
	ListElements(ctx context.Context, actorID, folderID string) ([]*domain.Element, error)
	AddLocator(ctx context.Context, actorID string, l *domain.ElementLocator) error
	ListLocators(ctx context.Context, actorID, elementID string) ([]*domain.ElementLocator, error)
}

type ProjectService interface {
	Create(ctx context.Context, actorID string, p *domain.Project) error
	Get(ctx context.Context, actorID, projectID string) (*domain.Project, error)
	Update(ctx context.Context, actorID string, p *domain.Project) error

	GetPlanningConfig(ctx context.Context, actorID, projectID string) (*domain.PlanningConfig, error)
	UpdatePlanningConfig(ctx context.Context, actorID, projectID string, levelNames [5]string) (*domain.PlanningConfig, error)

	CreateRole(ctx context.Context, actorID string, r *domain.ProjectRole) error
	UpdateRole(ctx context.Context, actorID string, r *domain.ProjectRole) error

	AddMember(ctx context.Context, actorID string, m *domain.ProjectUser) error
	DeactivateMember(ctx context.Context, actorID, memberID string) error
}
