package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/perm"
	"github.com/plandeck/plandeck/internal/repository"
)

type templateService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewTemplateService(uow db.UnitOfWork, observers ...UseCaseObserver) TemplateService {
	return &templateService{uow: uow, observer: useCaseObserverOrNoop(observers)}
}

func (s *templateService) Create(ctx context.Context, actorID, projectID string, t *domain.ProcessTemplate) error {
	if t.Name == "" {
		return apperr.Validation("template name is required")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequirePlanningEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanCreateTemplates); err != nil {
			return err
		}

		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.CompanyID = access.Project.CompanyID
		t.VersionNumber = 1
		t.Status = domain.TemplateDraft
		t.IsLocked = false
		t.CreatedBy = &actorID
		now := time.Now().UTC()
		t.CreatedAt = now
		t.UpdatedAt = now
		return repository.NewSQLiteTemplateRepo(tx).Create(ctx, t)
	})
}

func (s *templateService) Get(ctx context.Context, actorID, projectID, templateID string) (*domain.ProcessTemplate, error) {
	var result *domain.ProcessTemplate
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, t, err := s.loadTemplate(ctx, tx, actorID, projectID, templateID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result = t
		return nil
	})
	return result, err
}

func (s *templateService) List(ctx context.Context, actorID, projectID string) ([]*domain.ProcessTemplate, error) {
	var result []*domain.ProcessTemplate
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequirePlanningEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result, err = repository.NewSQLiteTemplateRepo(tx).ListByCompany(ctx, access.Project.CompanyID)
		return err
	})
	return result, err
}

func (s *templateService) Update(ctx context.Context, actorID, projectID, templateID, name, description string) (*domain.ProcessTemplate, error) {
	var result *domain.ProcessTemplate
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, t, err := s.loadTemplate(ctx, tx, actorID, projectID, templateID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanEditTemplates); err != nil {
			return err
		}

		switch {
		case t.Status == domain.TemplateDraft:
			t.Name = name
			t.Description = description
			t.UpdatedAt = time.Now().UTC()
			if err := repository.NewSQLiteTemplateRepo(tx).Update(ctx, t); err != nil {
				return err
			}
			result = t
			return nil

		case t.Status == domain.TemplateCreated && t.IsLocked:
			// Locked templates are never edited in place; editing forks
			// a new draft version carrying the whole structural graph.
			clone, err := cloneTemplateGraph(ctx, tx, t, actorID)
			if err != nil {
				return err
			}
			clone.Name = name
			clone.Description = description
			clone.UpdatedAt = time.Now().UTC()
			if err := repository.NewSQLiteTemplateRepo(tx).Update(ctx, clone); err != nil {
				return err
			}
			result = clone
			return nil

		default:
			return apperr.Validation("template in status %s cannot be edited", t.Status)
		}
	})
	return result, err
}

func (s *templateService) Delete(ctx context.Context, actorID, projectID, templateID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, t, err := s.loadTemplate(ctx, tx, actorID, projectID, templateID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanEditTemplates); err != nil {
			return err
		}
		if t.Status != domain.TemplateDraft {
			return apperr.Validation("only draft templates can be deleted")
		}
		return repository.NewSQLiteTemplateRepo(tx).Delete(ctx, t.ID)
	})
}

// transitionPermissions maps each lifecycle action to the permission
// that authorizes it.
var transitionPermissions = map[domain.TemplateAction]string{
	domain.ActionSubmit:         perm.CanSubmitTemplates,
	domain.ActionAssignReviewer: perm.CanEditTemplates,
	domain.ActionApprove:        perm.CanApproveTemplates,
	domain.ActionReject:         perm.CanApproveTemplates,
	domain.ActionCreate:         perm.CanCreateTemplates,
	domain.ActionSave:           perm.CanCreateTemplates,
}

func (s *templateService) Transition(ctx context.Context, in TransitionTemplateInput) (t *domain.ProcessTemplate, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observer.ObserveUseCase(ctx, UseCaseEvent{
			Name:      "template-transition",
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Success:   err == nil,
			Err:       err,
			Fields: map[string]any{
				"template": in.TemplateID,
				"action":   string(in.Action),
			},
		})
	}()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, tmpl, err := s.loadTemplate(ctx, tx, in.ActorID, in.ProjectID, in.TemplateID)
		if err != nil {
			return err
		}

		required, ok := transitionPermissions[in.Action]
		if !ok {
			return apperr.Validation("unknown template action %q", in.Action)
		}
		if err := access.Require(required); err != nil {
			return err
		}

		if err := applyTemplateAction(tmpl, in, access.Project.TemplateNeedsApproval); err != nil {
			return err
		}
		tmpl.UpdatedAt = time.Now().UTC()
		if err := repository.NewSQLiteTemplateRepo(tx).Update(ctx, tmpl); err != nil {
			return err
		}
		t = tmpl
		return nil
	})
	return t, err
}

// applyTemplateAction mutates the template per the lifecycle graph. The
// graph splits on the project's needs-approval flag: with approval the
// path is submit, assign_reviewer, approve, create (reject loops back to
// DRAFT); without approval a draft saves straight to CREATED.
func applyTemplateAction(t *domain.ProcessTemplate, in TransitionTemplateInput, needsApproval bool) error {
	switch in.Action {
	case domain.ActionSubmit:
		if !needsApproval {
			return apperr.Validation("project does not require template approval; use save")
		}
		if t.Status != domain.TemplateDraft {
			return apperr.Validation("cannot submit a template in status %s", t.Status)
		}
		t.Status = domain.TemplateSubmitted
		return nil

	case domain.ActionAssignReviewer:
		if !needsApproval {
			return apperr.Validation("project does not require template approval")
		}
		if t.Status != domain.TemplateSubmitted {
			return apperr.Validation("cannot assign a reviewer to a template in status %s", t.Status)
		}
		if in.ReviewerID == "" {
			return apperr.Validation("reviewer is required")
		}
		t.ReviewerID = &in.ReviewerID
		t.Status = domain.TemplateApprovalPending
		return nil

	case domain.ActionApprove:
		if t.Status != domain.TemplateApprovalPending {
			return apperr.Validation("cannot approve a template in status %s", t.Status)
		}
		if t.ReviewerID == nil || *t.ReviewerID != in.ActorID {
			return apperr.PermissionDenied("only the assigned reviewer can approve")
		}
		t.Status = domain.TemplateApproved
		return nil

	case domain.ActionReject:
		if t.Status != domain.TemplateApprovalPending {
			return apperr.Validation("cannot reject a template in status %s", t.Status)
		}
		if t.ReviewerID == nil || *t.ReviewerID != in.ActorID {
			return apperr.PermissionDenied("only the assigned reviewer can reject")
		}
		if in.Note == "" {
			return apperr.Validation("a rejection note is required")
		}
		// Rejection loops back to DRAFT so the author can rework it;
		// the note survives, the reviewer assignment does not.
		note := in.Note
		t.RejectionNote = &note
		t.ReviewerID = nil
		t.Status = domain.TemplateDraft
		return nil

	case domain.ActionCreate:
		if !needsApproval {
			return apperr.Validation("project does not require template approval; use save")
		}
		if t.Status != domain.TemplateApproved {
			return apperr.Validation("cannot create from a template in status %s", t.Status)
		}
		t.Status = domain.TemplateCreated
		t.IsLocked = true
		return nil

	case domain.ActionSave:
		if needsApproval {
			return apperr.Validation("project requires template approval; use submit")
		}
		if t.Status != domain.TemplateDraft {
			return apperr.Validation("cannot save a template in status %s", t.Status)
		}
		t.Status = domain.TemplateCreated
		t.IsLocked = true
		return nil

	default:
		return apperr.Validation("unknown template action %q", in.Action)
	}
}

func (s *templateService) Clone(ctx context.Context, actorID, projectID, templateID string) (*domain.ProcessTemplate, error) {
	var result *domain.ProcessTemplate
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, t, err := s.loadTemplate(ctx, tx, actorID, projectID, templateID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanEditTemplates); err != nil {
			return err
		}
		result, err = cloneTemplateGraph(ctx, tx, t, actorID)
		return err
	})
	return result, err
}

func (s *templateService) Activate(ctx context.Context, actorID, projectID, templateID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, t, err := s.loadTemplate(ctx, tx, actorID, projectID, templateID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanCreateTemplates); err != nil {
			return err
		}
		if t.Status != domain.TemplateCreated && t.Status != domain.TemplateActivated {
			return apperr.Validation("only a created template can be activated, not %s", t.Status)
		}

		templates := repository.NewSQLiteTemplateRepo(tx)
		now := time.Now().UTC()

		current, err := templates.GetActiveBinding(ctx, projectID)
		switch {
		case err == nil && current.TemplateID == templateID:
			// Re-activating the active template refreshes the binding.
			current.ActivatedBy = &actorID
			current.ActivatedAt = now
			return templates.UpsertBinding(ctx, current)
		case err == nil:
			if err := templates.DeactivateBinding(ctx, current.ID); err != nil {
				return err
			}
			if err := revertIfUnbound(ctx, templates, current.TemplateID, now); err != nil {
				return err
			}
		default:
			if !isNotFound(err) {
				return err
			}
		}

		binding := &domain.TemplateBinding{
			ID:          uuid.New().String(),
			ProjectID:   projectID,
			TemplateID:  templateID,
			IsActive:    true,
			ActivatedBy: &actorID,
			ActivatedAt: now,
		}
		if err := templates.UpsertBinding(ctx, binding); err != nil {
			return err
		}

		if t.Status != domain.TemplateActivated {
			t.Status = domain.TemplateActivated
			t.IsLocked = true
			t.UpdatedAt = now
			if err := templates.Update(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// revertIfUnbound drops a deactivated template back to CREATED when no
// project holds it active anymore.
func revertIfUnbound(ctx context.Context, templates repository.TemplateRepo, templateID string, now time.Time) error {
	remaining, err := templates.ListActiveBindingsByTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}
	t, err := templates.GetByID(ctx, templateID)
	if err != nil {
		return err
	}
	if t.Status != domain.TemplateActivated {
		return nil
	}
	t.Status = domain.TemplateCreated
	t.UpdatedAt = now
	return templates.Update(ctx, t)
}

// loadTemplate resolves access and fetches the template, rejecting
// cross-company references.
func (s *templateService) loadTemplate(ctx context.Context, tx db.DBTX, actorID, projectID, templateID string) (*projectAccess, *domain.ProcessTemplate, error) {
	access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if err := access.RequirePlanningEnabled(); err != nil {
		return nil, nil, err
	}
	t, err := repository.NewSQLiteTemplateRepo(tx).GetByID(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	if err := access.RequireSameCompany(t.CompanyID); err != nil {
		return nil, nil, err
	}
	return access, t, nil
}
