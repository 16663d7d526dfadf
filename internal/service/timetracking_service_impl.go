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

type timeTrackingService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewTimeTrackingService(uow db.UnitOfWork, observers ...UseCaseObserver) TimeTrackingService {
	return &timeTrackingService{uow: uow, observer: useCaseObserverOrNoop(observers)}
}

// trackingContext is the resolved state shared by start and stop.
type trackingContext struct {
	access *projectAccess
	item   *domain.PlanningItem
	rule   *domain.TimeTrackingRule
}

func (s *timeTrackingService) resolve(ctx context.Context, tx db.DBTX, actorID, itemID string) (*trackingContext, error) {
	items := repository.NewSQLiteItemRepo(tx)
	item, err := items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), item.ProjectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := access.RequirePlanningEnabled(); err != nil {
		return nil, err
	}
	if err := access.Require(perm.CanTrackTime); err != nil {
		return nil, err
	}

	schema := repository.NewSQLiteSchemaRepo(tx)
	et, err := schema.GetEntityType(ctx, item.EntityTypeID)
	if err != nil {
		return nil, err
	}
	if !et.AllowTimeTracking {
		return nil, apperr.Validation("entity type %s does not allow time tracking", et.InternalKey)
	}
	rule, err := schema.GetTimeRuleByEntityType(ctx, et.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Validation("entity type %s has no time tracking rule", et.InternalKey)
		}
		return nil, err
	}

	// Only users assigned to the item may track time on it.
	assignees, err := items.ListAssignees(ctx, itemID)
	if err != nil {
		return nil, err
	}
	assigned := false
	for _, id := range assignees {
		if id == access.Member.ID {
			assigned = true
			break
		}
	}
	if !assigned {
		return nil, apperr.PermissionDenied("only assigned users can track time on an item")
	}

	return &trackingContext{access: access, item: item, rule: rule}, nil
}

func (s *timeTrackingService) StartSession(ctx context.Context, actorID, itemID string) (*domain.TimeSession, error) {
	var result *domain.TimeSession
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tc, err := s.resolve(ctx, tx, actorID, itemID)
		if err != nil {
			return err
		}
		if tc.rule.StartMode != domain.TrackManual {
			return apperr.Validation("time tracking starts automatically for this entity type")
		}
		sessions := repository.NewSQLiteSessionRepo(tx)
		if !tc.rule.AllowMultipleSessions {
			if _, err := sessions.LatestOpen(ctx, itemID, tc.access.Member.ID); err == nil {
				return apperr.Validation("an open session already exists for this item")
			} else if !isNotFound(err) {
				return err
			}
		}
		session := &domain.TimeSession{
			ID:            uuid.New().String(),
			ItemID:        itemID,
			ProjectUserID: tc.access.Member.ID,
			StartedAt:     time.Now().UTC(),
		}
		if err := sessions.Create(ctx, session); err != nil {
			return err
		}
		result = session
		return nil
	})
	return result, err
}

func (s *timeTrackingService) StopSession(ctx context.Context, actorID, itemID string) (*domain.TimeSession, error) {
	var result *domain.TimeSession
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tc, err := s.resolve(ctx, tx, actorID, itemID)
		if err != nil {
			return err
		}
		if tc.rule.StopMode != domain.TrackManual {
			return apperr.Validation("time tracking stops automatically for this entity type")
		}
		sessions := repository.NewSQLiteSessionRepo(tx)
		session, err := sessions.LatestOpen(ctx, itemID, tc.access.Member.ID)
		if err != nil {
			if isNotFound(err) {
				return apperr.Validation("no open session to stop")
			}
			return err
		}
		now := time.Now().UTC()
		if now.Before(session.StartedAt) {
			return apperr.Validation("session would have negative duration")
		}
		session.EndedAt = &now
		session.DurationSeconds = int(now.Sub(session.StartedAt).Seconds())
		if err := sessions.Update(ctx, session); err != nil {
			return err
		}
		result = session
		return nil
	})
	return result, err
}

func (s *timeTrackingService) ListSessions(ctx context.Context, actorID, itemID string) ([]*domain.TimeSession, error) {
	var result []*domain.TimeSession
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		item, err := repository.NewSQLiteItemRepo(tx).GetByID(ctx, itemID)
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
		result, err = repository.NewSQLiteSessionRepo(tx).ListByItem(ctx, itemID)
		return err
	})
	return result, err
}
