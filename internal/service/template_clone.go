package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/repository"
)

// cloneTemplateGraph forks a locked CREATED template into a new DRAFT
// with version_number + 1, copying the full structural graph: entity
// types, field definitions, workflows, states, transitions and time
// rules. Cross-references are resolved through old-id -> new-id maps so
// the clone is internally consistent and fully independent of the
// original, which stays untouched.
func cloneTemplateGraph(ctx context.Context, tx db.DBTX, src *domain.ProcessTemplate, actorID string) (*domain.ProcessTemplate, error) {
	if src.Status != domain.TemplateCreated || !src.IsLocked {
		return nil, apperr.Validation("only a locked created template can be cloned, not %s", src.Status)
	}

	templates := repository.NewSQLiteTemplateRepo(tx)
	schema := repository.NewSQLiteSchemaRepo(tx)
	now := time.Now().UTC()

	clone := &domain.ProcessTemplate{
		ID:            uuid.New().String(),
		CompanyID:     src.CompanyID,
		Name:          src.Name,
		Description:   src.Description,
		VersionNumber: src.VersionNumber + 1,
		Status:        domain.TemplateDraft,
		IsLocked:      false,
		CreatedBy:     &actorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := templates.Create(ctx, clone); err != nil {
		return nil, err
	}

	srcTypes, err := schema.ListEntityTypes(ctx, src.ID)
	if err != nil {
		return nil, err
	}

	// Pass 1: entity types, workflow pointer left nil until the cloned
	// workflows exist.
	typeIDs := make(map[string]string, len(srcTypes))
	newTypes := make(map[string]*domain.EntityType, len(srcTypes))
	for _, et := range srcTypes {
		newType := &domain.EntityType{
			ID:                    uuid.New().String(),
			TemplateID:            clone.ID,
			InternalKey:           et.InternalKey,
			DisplayName:           et.DisplayName,
			LevelOrder:            et.LevelOrder,
			AllowChildren:         et.AllowChildren,
			AllowExecutionBinding: et.AllowExecutionBinding,
			AllowDependencies:     et.AllowDependencies,
			AllowTimeTracking:     et.AllowTimeTracking,
			CreatedAt:             now,
		}
		if err := schema.CreateEntityType(ctx, newType); err != nil {
			return nil, err
		}
		typeIDs[et.ID] = newType.ID
		newTypes[et.ID] = newType
	}

	for _, et := range srcTypes {
		// Pass 2: field definitions, rekeyed to the cloned entity type.
		fields, err := schema.ListFields(ctx, et.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			newField := &domain.FieldDefinition{
				ID:               uuid.New().String(),
				EntityTypeID:     typeIDs[et.ID],
				FieldKey:         f.FieldKey,
				DisplayName:      f.DisplayName,
				FieldType:        f.FieldType,
				IsRequired:       f.IsRequired,
				IsExecutionField: f.IsExecutionField,
				IsEditable:       f.IsEditable,
				FieldOrder:       f.FieldOrder,
				Options:          append([]string(nil), f.Options...),
				DefaultValueJSON: f.DefaultValueJSON,
				CreatedAt:        now,
			}
			if err := schema.CreateField(ctx, newField); err != nil {
				return nil, err
			}
		}

		// Pass 3: the workflow graph, if the entity type has one.
		srcWorkflow, err := schema.GetWorkflowByEntityType(ctx, et.ID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if err := cloneWorkflow(ctx, schema, srcWorkflow, newTypes[et.ID], now); err != nil {
			return nil, err
		}

		// Pass 4: the time tracking rule, if configured.
		rule, err := schema.GetTimeRuleByEntityType(ctx, et.ID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		newRule := &domain.TimeTrackingRule{
			ID:                    uuid.New().String(),
			EntityTypeID:          typeIDs[et.ID],
			StartMode:             rule.StartMode,
			StopMode:              rule.StopMode,
			AllowMultipleSessions: rule.AllowMultipleSessions,
		}
		if err := schema.CreateTimeRule(ctx, newRule); err != nil {
			return nil, err
		}
	}

	return clone, nil
}

// cloneWorkflow copies a workflow's states and transitions onto the
// cloned entity type, remapping state references through an
// old-state-id -> new-state-id table before transitions are written.
func cloneWorkflow(ctx context.Context, schema repository.SchemaRepo, src *domain.WorkflowDefinition, owner *domain.EntityType, now time.Time) error {
	newWorkflow := &domain.WorkflowDefinition{
		ID:           uuid.New().String(),
		EntityTypeID: owner.ID,
		CreatedAt:    now,
	}
	if err := schema.CreateWorkflow(ctx, newWorkflow); err != nil {
		return err
	}

	states, err := schema.ListStates(ctx, src.ID)
	if err != nil {
		return err
	}
	stateIDs := make(map[string]string, len(states))
	for _, st := range states {
		newState := &domain.WorkflowState{
			ID:         uuid.New().String(),
			WorkflowID: newWorkflow.ID,
			Name:       st.Name,
			IsFinal:    st.IsFinal,
			StateOrder: st.StateOrder,
		}
		if err := schema.CreateState(ctx, newState); err != nil {
			return err
		}
		stateIDs[st.ID] = newState.ID
	}

	if src.InitialStateID != nil {
		mapped := stateIDs[*src.InitialStateID]
		newWorkflow.InitialStateID = &mapped
		if err := schema.UpdateWorkflow(ctx, newWorkflow); err != nil {
			return err
		}
	}

	transitions, err := schema.ListTransitions(ctx, src.ID)
	if err != nil {
		return err
	}
	for _, tr := range transitions {
		newTransition := &domain.WorkflowTransition{
			ID:           uuid.New().String(),
			WorkflowID:   newWorkflow.ID,
			FromStateID:  stateIDs[tr.FromStateID],
			ToStateID:    stateIDs[tr.ToStateID],
			AllowedRoles: append([]string(nil), tr.AllowedRoles...),
			CreatedAt:    now,
		}
		if err := schema.CreateTransition(ctx, newTransition); err != nil {
			return err
		}
	}

	owner.WorkflowID = &newWorkflow.ID
	return schema.UpdateEntityType(ctx, owner)
}
