package service

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/perm"
	"github.com/plandeck/plandeck/internal/repository"
)

type schemaService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewTemplateSchemaService(uow db.UnitOfWork, observers ...UseCaseObserver) TemplateSchemaService {
	return &schemaService{uow: uow, observer: useCaseObserverOrNoop(observers)}
}

var internalKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// requireEditable resolves access and loads the template owning the
// structure being edited, rejecting locked templates.
func requireEditable(ctx context.Context, tx db.DBTX, actorID, projectID, templateID string) (*projectAccess, error) {
	access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := access.RequirePlanningEnabled(); err != nil {
		return nil, err
	}
	if err := access.Require(perm.CanEditTemplates); err != nil {
		return nil, err
	}
	t, err := repository.NewSQLiteTemplateRepo(tx).GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireSameCompany(t.CompanyID); err != nil {
		return nil, err
	}
	if t.Locked() {
		return nil, apperr.Validation("template is locked; clone it to edit its structure")
	}
	return access, nil
}

func (s *schemaService) CreateEntityType(ctx context.Context, actorID, projectID string, et *domain.EntityType) error {
	if !internalKeyPattern.MatchString(et.InternalKey) {
		return apperr.Validation("internal key %q must be lowercase with underscores", et.InternalKey)
	}
	if et.DisplayName == "" {
		return apperr.Validation("display name is required")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		if et.ID == "" {
			et.ID = uuid.New().String()
		}
		et.CreatedAt = time.Now().UTC()
		return repository.NewSQLiteSchemaRepo(tx).CreateEntityType(ctx, et)
	})
}

func (s *schemaService) UpdateEntityType(ctx context.Context, actorID, projectID string, et *domain.EntityType) error {
	if !internalKeyPattern.MatchString(et.InternalKey) {
		return apperr.Validation("internal key %q must be lowercase with underscores", et.InternalKey)
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		existing, err := schema.GetEntityType(ctx, et.ID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, existing.TemplateID); err != nil {
			return err
		}
		et.TemplateID = existing.TemplateID
		return schema.UpdateEntityType(ctx, et)
	})
}

func (s *schemaService) DeleteEntityType(ctx context.Context, actorID, projectID, entityTypeID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		et, err := schema.GetEntityType(ctx, entityTypeID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		if _, err := schema.GetWorkflowByEntityType(ctx, entityTypeID); err == nil {
			return apperr.Validation("entity type still has a workflow")
		} else if !isNotFound(err) {
			return err
		}
		fields, err := schema.ListFields(ctx, entityTypeID)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			return apperr.Validation("entity type still has field definitions")
		}
		return schema.DeleteEntityType(ctx, entityTypeID)
	})
}

func (s *schemaService) ListEntityTypes(ctx context.Context, actorID, projectID, templateID string) ([]*domain.EntityType, error) {
	var result []*domain.EntityType
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		t, err := repository.NewSQLiteTemplateRepo(tx).GetByID(ctx, templateID)
		if err != nil {
			return err
		}
		if err := access.RequireSameCompany(t.CompanyID); err != nil {
			return err
		}
		result, err = repository.NewSQLiteSchemaRepo(tx).ListEntityTypes(ctx, templateID)
		return err
	})
	return result, err
}

func validateFieldDefinition(f *domain.FieldDefinition) error {
	if !internalKeyPattern.MatchString(f.FieldKey) {
		return apperr.Validation("field key %q must be lowercase with underscores", f.FieldKey)
	}
	if !domain.ValidFieldTypes[f.FieldType] {
		return apperr.Validation("unknown field type %q", f.FieldType)
	}
	if domain.SelectFieldTypes[f.FieldType] {
		if len(f.Options) == 0 {
			return apperr.Validation("select fields require a non-empty option list")
		}
		f.Options = dedupeOptions(f.Options)
	} else if len(f.Options) > 0 {
		return apperr.Validation("options are only valid for select fields")
	}
	return nil
}

func dedupeOptions(options []string) []string {
	seen := make(map[string]bool, len(options))
	out := make([]string, 0, len(options))
	for _, o := range options {
		if seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

func (s *schemaService) CreateField(ctx context.Context, actorID, projectID string, f *domain.FieldDefinition) error {
	if err := validateFieldDefinition(f); err != nil {
		return err
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		et, err := schema.GetEntityType(ctx, f.EntityTypeID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		f.CreatedAt = time.Now().UTC()
		return schema.CreateField(ctx, f)
	})
}

func (s *schemaService) UpdateField(ctx context.Context, actorID, projectID string, f *domain.FieldDefinition) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		existing, err := schema.GetField(ctx, f.ID)
		if err != nil {
			return err
		}
		et, err := schema.GetEntityType(ctx, existing.EntityTypeID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		if f.FieldKey != existing.FieldKey {
			return apperr.Validation("field key is immutable")
		}
		if f.FieldType != existing.FieldType {
			return apperr.Validation("field type is immutable")
		}
		if err := validateFieldDefinition(f); err != nil {
			return err
		}
		return schema.UpdateField(ctx, f)
	})
}

func (s *schemaService) DeleteField(ctx context.Context, actorID, projectID, fieldID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		f, err := schema.GetField(ctx, fieldID)
		if err != nil {
			return err
		}
		et, err := schema.GetEntityType(ctx, f.EntityTypeID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		return schema.DeleteField(ctx, fieldID)
	})
}

func (s *schemaService) ListFields(ctx context.Context, actorID, projectID, entityTypeID string) ([]*domain.FieldDefinition, error) {
	var result []*domain.FieldDefinition
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result, err = repository.NewSQLiteSchemaRepo(tx).ListFields(ctx, entityTypeID)
		return err
	})
	return result, err
}

func (s *schemaService) CreateWorkflow(ctx context.Context, actorID, projectID, entityTypeID string) (*domain.WorkflowDefinition, error) {
	var result *domain.WorkflowDefinition
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		et, err := schema.GetEntityType(ctx, entityTypeID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		w := &domain.WorkflowDefinition{
			ID:           uuid.New().String(),
			EntityTypeID: entityTypeID,
			CreatedAt:    time.Now().UTC(),
		}
		if err := schema.CreateWorkflow(ctx, w); err != nil {
			return err
		}
		et.WorkflowID = &w.ID
		if err := schema.UpdateEntityType(ctx, et); err != nil {
			return err
		}
		result = w
		return nil
	})
	return result, err
}

func (s *schemaService) SetInitialState(ctx context.Context, actorID, projectID, workflowID, stateID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		w, err := schema.GetWorkflow(ctx, workflowID)
		if err != nil {
			return err
		}
		et, err := schema.GetEntityType(ctx, w.EntityTypeID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		state, err := schema.GetState(ctx, stateID)
		if err != nil {
			return err
		}
		if state.WorkflowID != workflowID {
			return apperr.Validation("initial state must belong to the workflow")
		}
		w.InitialStateID = &stateID
		return schema.UpdateWorkflow(ctx, w)
	})
}

func (s *schemaService) DeleteWorkflow(ctx context.Context, actorID, projectID, workflowID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		w, err := schema.GetWorkflow(ctx, workflowID)
		if err != nil {
			return err
		}
		et, err := schema.GetEntityType(ctx, w.EntityTypeID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		et.WorkflowID = nil
		if err := schema.UpdateEntityType(ctx, et); err != nil {
			return err
		}
		return schema.DeleteWorkflow(ctx, workflowID)
	})
}

func (s *schemaService) requireWorkflowEditable(ctx context.Context, tx db.DBTX, actorID, projectID, workflowID string) (*domain.WorkflowDefinition, error) {
	schema := repository.NewSQLiteSchemaRepo(tx)
	w, err := schema.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	et, err := schema.GetEntityType(ctx, w.EntityTypeID)
	if err != nil {
		return nil, err
	}
	if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *schemaService) CreateState(ctx context.Context, actorID, projectID string, st *domain.WorkflowState) error {
	if st.Name == "" {
		return apperr.Validation("state name is required")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := s.requireWorkflowEditable(ctx, tx, actorID, projectID, st.WorkflowID); err != nil {
			return err
		}
		if st.ID == "" {
			st.ID = uuid.New().String()
		}
		return repository.NewSQLiteSchemaRepo(tx).CreateState(ctx, st)
	})
}

func (s *schemaService) UpdateState(ctx context.Context, actorID, projectID string, st *domain.WorkflowState) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		existing, err := schema.GetState(ctx, st.ID)
		if err != nil {
			return err
		}
		if _, err := s.requireWorkflowEditable(ctx, tx, actorID, projectID, existing.WorkflowID); err != nil {
			return err
		}
		st.WorkflowID = existing.WorkflowID
		return schema.UpdateState(ctx, st)
	})
}

func (s *schemaService) DeleteState(ctx context.Context, actorID, projectID, stateID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		st, err := schema.GetState(ctx, stateID)
		if err != nil {
			return err
		}
		w, err := s.requireWorkflowEditable(ctx, tx, actorID, projectID, st.WorkflowID)
		if err != nil {
			return err
		}
		if w.InitialStateID != nil && *w.InitialStateID == stateID {
			return apperr.Validation("cannot delete the initial state")
		}
		referenced, err := schema.StateReferenced(ctx, stateID)
		if err != nil {
			return err
		}
		if referenced {
			return apperr.Validation("state is referenced by transitions or items")
		}
		return schema.DeleteState(ctx, stateID)
	})
}

func (s *schemaService) ListStates(ctx context.Context, actorID, projectID, workflowID string) ([]*domain.WorkflowState, error) {
	var result []*domain.WorkflowState
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result, err = repository.NewSQLiteSchemaRepo(tx).ListStates(ctx, workflowID)
		return err
	})
	return result, err
}

func (s *schemaService) CreateTransition(ctx context.Context, actorID, projectID string, t *domain.WorkflowTransition) error {
	if t.FromStateID == t.ToStateID {
		return apperr.Validation("self transitions are not allowed")
	}
	if err := perm.ValidateTransitionRoles(t.AllowedRoles); err != nil {
		return err
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		if _, err := s.requireWorkflowEditable(ctx, tx, actorID, projectID, t.WorkflowID); err != nil {
			return err
		}
		from, err := schema.GetState(ctx, t.FromStateID)
		if err != nil {
			return err
		}
		to, err := schema.GetState(ctx, t.ToStateID)
		if err != nil {
			return err
		}
		if from.WorkflowID != t.WorkflowID || to.WorkflowID != t.WorkflowID {
			return apperr.Validation("transition states must belong to the workflow")
		}
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.CreatedAt = time.Now().UTC()
		return schema.CreateTransition(ctx, t)
	})
}

func (s *schemaService) DeleteTransition(ctx context.Context, actorID, projectID, transitionID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		t, err := schema.GetTransitionByID(ctx, transitionID)
		if err != nil {
			return err
		}
		if _, err := s.requireWorkflowEditable(ctx, tx, actorID, projectID, t.WorkflowID); err != nil {
			return err
		}
		return schema.DeleteTransition(ctx, transitionID)
	})
}

func (s *schemaService) ListTransitions(ctx context.Context, actorID, projectID, workflowID string) ([]*domain.WorkflowTransition, error) {
	var result []*domain.WorkflowTransition
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result, err = repository.NewSQLiteSchemaRepo(tx).ListTransitions(ctx, workflowID)
		return err
	})
	return result, err
}

func (s *schemaService) CreateTimeRule(ctx context.Context, actorID, projectID string, r *domain.TimeTrackingRule) error {
	if !domain.ValidStartModes[r.StartMode] {
		return apperr.Validation("invalid start mode %q", r.StartMode)
	}
	if !domain.ValidStopModes[r.StopMode] {
		return apperr.Validation("invalid stop mode %q", r.StopMode)
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		et, err := schema.GetEntityType(ctx, r.EntityTypeID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		if !et.AllowTimeTracking {
			return apperr.Validation("entity type %s does not allow time tracking", et.InternalKey)
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		return schema.CreateTimeRule(ctx, r)
	})
}

func (s *schemaService) UpdateTimeRule(ctx context.Context, actorID, projectID string, r *domain.TimeTrackingRule) error {
	if !domain.ValidStartModes[r.StartMode] {
		return apperr.Validation("invalid start mode %q", r.StartMode)
	}
	if !domain.ValidStopModes[r.StopMode] {
		return apperr.Validation("invalid stop mode %q", r.StopMode)
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		et, err := schema.GetEntityType(ctx, r.EntityTypeID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		return schema.UpdateTimeRule(ctx, r)
	})
}

func (s *schemaService) DeleteTimeRule(ctx context.Context, actorID, projectID, ruleID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		schema := repository.NewSQLiteSchemaRepo(tx)
		rule, err := schema.GetTimeRule(ctx, ruleID)
		if err != nil {
			return err
		}
		et, err := schema.GetEntityType(ctx, rule.EntityTypeID)
		if err != nil {
			return err
		}
		if _, err := requireEditable(ctx, tx, actorID, projectID, et.TemplateID); err != nil {
			return err
		}
		return schema.DeleteTimeRule(ctx, ruleID)
	})
}
