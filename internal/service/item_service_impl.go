package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/perm"
	"github.com/plandeck/plandeck/internal/repository"
)

type itemService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewItemService(uow db.UnitOfWork, observers ...UseCaseObserver) ItemService {
	return &itemService{uow: uow, observer: useCaseObserverOrNoop(observers)}
}

func (s *itemService) Create(ctx context.Context, in CreateItemInput) (*domain.PlanningItem, error) {
	if in.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	var result *domain.PlanningItem
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		projects := repository.NewSQLiteProjectRepo(tx)
		access, err := resolveProjectAccess(ctx, projects, in.ProjectID, in.ActorID)
		if err != nil {
			return err
		}
		if err := access.RequirePlanningEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanCreatePlanningItems); err != nil {
			return err
		}

		binding, err := repository.NewSQLiteTemplateRepo(tx).GetActiveBinding(ctx, in.ProjectID)
		if err != nil {
			if isNotFound(err) {
				return apperr.Validation("project has no active process template")
			}
			return err
		}
		schema := repository.NewSQLiteSchemaRepo(tx)
		et, err := schema.GetEntityType(ctx, in.EntityTypeID)
		if err != nil {
			return err
		}
		if et.TemplateID != binding.TemplateID {
			return apperr.Validation("entity type %s does not belong to the project's active template", et.InternalKey)
		}

		items := repository.NewSQLiteItemRepo(tx)
		if in.ParentID != nil {
			parent, err := items.GetByID(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if parent.ProjectID != in.ProjectID {
				return apperr.Validation("parent item belongs to another project")
			}
			parentType, err := schema.GetEntityType(ctx, parent.EntityTypeID)
			if err != nil {
				return err
			}
			if !parentType.AllowChildren {
				return apperr.Validation("entity type %s does not allow children", parentType.InternalKey)
			}
			if et.LevelOrder <= parentType.LevelOrder {
				return apperr.Validation("child level must be deeper than parent level %d", parentType.LevelOrder)
			}
		}

		if in.OwnerID != nil {
			if err := requireProjectMember(ctx, projects, in.ProjectID, *in.OwnerID); err != nil {
				return err
			}
		}
		for _, id := range in.AssigneeIDs {
			if err := requireProjectMember(ctx, projects, in.ProjectID, id); err != nil {
				return err
			}
		}
		if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
			return apperr.Validation("end date precedes start date")
		}

		now := time.Now().UTC()
		item := &domain.PlanningItem{
			ID:           uuid.New().String(),
			ProjectID:    in.ProjectID,
			EntityTypeID: in.EntityTypeID,
			ParentID:     in.ParentID,
			Title:        in.Title,
			Description:  in.Description,
			OwnerID:      in.OwnerID,
			CreatedBy:    &access.Member.ID,
			AssigneeIDs:  in.AssigneeIDs,
			StartDate:    in.StartDate,
			EndDate:      in.EndDate,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		// Items of a workflow-bearing type start at the workflow's
		// initial state.
		workflow, err := schema.GetWorkflowByEntityType(ctx, et.ID)
		switch {
		case err == nil:
			if workflow.InitialStateID == nil {
				return apperr.Validation("workflow for %s has no initial state", et.InternalKey)
			}
			item.StatusStateID = workflow.InitialStateID
		case isNotFound(err):
			// Workflow-less types carry no status.
		default:
			return err
		}

		if err := items.Create(ctx, item); err != nil {
			return err
		}
		if len(in.AssigneeIDs) > 0 {
			if err := items.ReplaceAssignees(ctx, item.ID, in.AssigneeIDs); err != nil {
				return err
			}
		}
		if err := writeFieldValues(ctx, schema, items, item, in.FieldValues); err != nil {
			return err
		}
		result = item
		return nil
	})
	return result, err
}

// requireProjectMember verifies the referenced project-user id is an
// active membership of the given project.
func requireProjectMember(ctx context.Context, projects repository.ProjectRepo, projectID, projectUserID string) error {
	member, err := projects.GetMemberByID(ctx, projectUserID)
	if err != nil {
		if isNotFound(err) {
			return apperr.Validation("user %s is not a member of the project", projectUserID)
		}
		return err
	}
	if member.ProjectID != projectID {
		return apperr.Validation("user %s is not a member of the project", projectUserID)
	}
	return nil
}

// writeFieldValues validates values keyed by field_key against the
// entity type's field definitions and upserts them.
func writeFieldValues(ctx context.Context, schema repository.SchemaRepo, items repository.ItemRepo, item *domain.PlanningItem, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	fields, err := schema.ListFields(ctx, item.EntityTypeID)
	if err != nil {
		return err
	}
	byKey := make(map[string]*domain.FieldDefinition, len(fields))
	for _, f := range fields {
		byKey[f.FieldKey] = f
	}
	for key, raw := range values {
		f, ok := byKey[key]
		if !ok {
			return apperr.Validation("unknown field %q for this entity type", key)
		}
		if err := validateFieldValue(f, raw); err != nil {
			return err
		}
		v := &domain.ItemFieldValue{
			ID:                uuid.New().String(),
			ItemID:            item.ID,
			FieldDefinitionID: f.ID,
			ValueJSON:         raw,
		}
		if err := items.UpsertFieldValue(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

const fieldDateLayout = "2006-01-02"

// validateFieldValue checks a JSON-encoded value against the field's
// declared type, including option membership for select types.
func validateFieldValue(f *domain.FieldDefinition, raw string) error {
	switch f.FieldType {
	case domain.FieldText, domain.FieldLongText, domain.FieldUser:
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return apperr.Validation("field %q expects a string value", f.FieldKey)
		}
	case domain.FieldNumber:
		var n float64
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return apperr.Validation("field %q expects a numeric value", f.FieldKey)
		}
	case domain.FieldBoolean:
		var b bool
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return apperr.Validation("field %q expects a boolean value", f.FieldKey)
		}
	case domain.FieldDate:
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return apperr.Validation("field %q expects a date string", f.FieldKey)
		}
		if _, err := time.Parse(fieldDateLayout, s); err != nil {
			return apperr.Validation("field %q expects a YYYY-MM-DD date", f.FieldKey)
		}
	case domain.FieldDateTime:
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return apperr.Validation("field %q expects a datetime string", f.FieldKey)
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return apperr.Validation("field %q expects an RFC 3339 datetime", f.FieldKey)
		}
	case domain.FieldSelect:
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return apperr.Validation("field %q expects a string option", f.FieldKey)
		}
		if !containsOption(f.Options, s) {
			return apperr.Validation("field %q does not allow option %q", f.FieldKey, s)
		}
	case domain.FieldMultiSel:
		var ss []string
		if err := json.Unmarshal([]byte(raw), &ss); err != nil {
			return apperr.Validation("field %q expects a list of options", f.FieldKey)
		}
		for _, s := range ss {
			if !containsOption(f.Options, s) {
				return apperr.Validation("field %q does not allow option %q", f.FieldKey, s)
			}
		}
	case domain.FieldMultiUser:
		var ss []string
		if err := json.Unmarshal([]byte(raw), &ss); err != nil {
			return apperr.Validation("field %q expects a list of user ids", f.FieldKey)
		}
	case domain.FieldJSON:
		if !json.Valid([]byte(raw)) {
			return apperr.Validation("field %q expects valid JSON", f.FieldKey)
		}
	default:
		return apperr.Config("unhandled field type %q", f.FieldType)
	}
	return nil
}

func containsOption(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

func (s *itemService) Get(ctx context.Context, actorID, itemID string) (*domain.PlanningItem, error) {
	var result *domain.PlanningItem
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteItemRepo(tx)
		item, err := items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), item.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		item.AssigneeIDs, err = items.ListAssignees(ctx, itemID)
		if err != nil {
			return err
		}
		result = item
		return nil
	})
	return result, err
}

func (s *itemService) ListByProject(ctx context.Context, actorID, projectID string) ([]*domain.PlanningItem, error) {
	var result []*domain.PlanningItem
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result, err = repository.NewSQLiteItemRepo(tx).ListByProject(ctx, projectID)
		return err
	})
	return result, err
}

func (s *itemService) Update(ctx context.Context, in UpdateItemInput) (*domain.PlanningItem, error) {
	var result *domain.PlanningItem
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteItemRepo(tx)
		item, err := items.GetByID(ctx, in.ItemID)
		if err != nil {
			return err
		}
		projects := repository.NewSQLiteProjectRepo(tx)
		access, err := resolveProjectAccess(ctx, projects, item.ProjectID, in.ActorID)
		if err != nil {
			return err
		}
		if err := access.RequirePlanningEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanEditPlanningItems); err != nil {
			return err
		}

		if in.Title != nil {
			if *in.Title == "" {
				return apperr.Validation("title is required")
			}
			item.Title = *in.Title
		}
		if in.Description != nil {
			item.Description = *in.Description
		}
		if in.OwnerID != nil {
			if err := requireProjectMember(ctx, projects, item.ProjectID, *in.OwnerID); err != nil {
				return err
			}
			item.OwnerID = in.OwnerID
		}
		if in.StartDate != nil {
			item.StartDate = in.StartDate
		}
		if in.EndDate != nil {
			item.EndDate = in.EndDate
		}
		if item.StartDate != nil && item.EndDate != nil && item.EndDate.Before(*item.StartDate) {
			return apperr.Validation("end date precedes start date")
		}
		item.UpdatedAt = time.Now().UTC()
		if err := items.Update(ctx, item); err != nil {
			return err
		}

		if in.AssigneeIDs != nil {
			for _, id := range in.AssigneeIDs {
				if err := requireProjectMember(ctx, projects, item.ProjectID, id); err != nil {
					return err
				}
			}
			if err := items.ReplaceAssignees(ctx, item.ID, in.AssigneeIDs); err != nil {
				return err
			}
			item.AssigneeIDs = in.AssigneeIDs
		}
		schema := repository.NewSQLiteSchemaRepo(tx)
		if err := writeFieldValues(ctx, schema, items, item, in.FieldValues); err != nil {
			return err
		}
		result = item
		return nil
	})
	return result, err
}

func (s *itemService) Delete(ctx context.Context, actorID, itemID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteItemRepo(tx)
		item, err := items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), item.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanEditPlanningItems); err != nil {
			return err
		}
		children, err := items.ListChildren(ctx, itemID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return apperr.Validation("item still has %d child items", len(children))
		}
		return items.Delete(ctx, itemID)
	})
}

// Transition moves the item along its entity type's workflow. Gates run
// in a fixed order; the first failure aborts and rolls back.
func (s *itemService) Transition(ctx context.Context, actorID, itemID, targetStateID string) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observer.ObserveUseCase(ctx, UseCaseEvent{
			Name:      "item-transition",
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Success:   err == nil,
			Err:       err,
			Fields: map[string]any{
				"item_id":         itemID,
				"target_state_id": targetStateID,
			},
		})
	}()
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteItemRepo(tx)
		item, err := items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), item.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequirePlanningEnabled(); err != nil {
			return err
		}

		schema := repository.NewSQLiteSchemaRepo(tx)
		workflow, err := schema.GetWorkflowByEntityType(ctx, item.EntityTypeID)
		if err != nil {
			if isNotFound(err) {
				return apperr.Validation("entity type has no workflow")
			}
			return err
		}
		if item.StatusStateID == nil {
			return apperr.Validation("item has no current state")
		}
		current, err := schema.GetState(ctx, *item.StatusStateID)
		if err != nil {
			return err
		}
		if current.IsFinal {
			return apperr.Validation("no transitions out of final state %s", current.Name)
		}
		transition, err := schema.GetTransition(ctx, workflow.ID, current.ID, targetStateID)
		if err != nil {
			if isNotFound(err) {
				return apperr.Validation("invalid transition from state %s", current.Name)
			}
			return err
		}
		allowed, err := perm.HasAnyProjectPermission(access.Grant, transition.AllowedRoles)
		if err != nil {
			return err
		}
		if !allowed {
			return apperr.PermissionDenied("transition requires one of the allowed roles")
		}
		if err := requireBlockersResolved(ctx, tx, item.ID); err != nil {
			return err
		}
		if err := requireRequiredFields(ctx, schema, items, item); err != nil {
			return err
		}
		item.StatusStateID = &targetStateID
		return items.SetStatus(ctx, item.ID, targetStateID)
	})
}

// requireBlockersResolved fails while any BLOCKS dependency targeting the
// item has a source that is not yet in a final state.
func requireBlockersResolved(ctx context.Context, tx db.DBTX, itemID string) error {
	deps, err := repository.NewSQLiteDependencyRepo(tx).ListByTarget(ctx, itemID)
	if err != nil {
		return err
	}
	items := repository.NewSQLiteItemRepo(tx)
	schema := repository.NewSQLiteSchemaRepo(tx)
	for _, d := range deps {
		if d.Type != domain.DependencyBlocks {
			continue
		}
		source, err := items.GetByID(ctx, d.SourceItemID)
		if err != nil {
			return err
		}
		if source.StatusStateID == nil {
			return apperr.Validation("blocked by item %q", source.Title)
		}
		state, err := schema.GetState(ctx, *source.StatusStateID)
		if err != nil {
			return err
		}
		if !state.IsFinal {
			return apperr.Validation("blocked by item %q", source.Title)
		}
	}
	return nil
}

// requireRequiredFields fails naming the first required field with no
// stored value.
func requireRequiredFields(ctx context.Context, schema repository.SchemaRepo, items repository.ItemRepo, item *domain.PlanningItem) error {
	fields, err := schema.ListFields(ctx, item.EntityTypeID)
	if err != nil {
		return err
	}
	values, err := items.ListFieldValues(ctx, item.ID)
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v.FieldDefinitionID] = true
	}
	for _, f := range fields {
		if f.IsRequired && !set[f.ID] {
			return apperr.Validation("required field %q is not set", f.FieldKey)
		}
	}
	return nil
}
