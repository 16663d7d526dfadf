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

type dependencyService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewDependencyService(uow db.UnitOfWork, observers ...UseCaseObserver) DependencyService {
	return &dependencyService{uow: uow, observer: useCaseObserverOrNoop(observers)}
}

func (s *dependencyService) Create(ctx context.Context, actorID, sourceItemID, targetItemID string, depType domain.DependencyType) (*domain.PlanningDependency, error) {
	if depType != domain.DependencyBlocks && depType != domain.DependencyRelates {
		return nil, apperr.Validation("unknown dependency type %q", depType)
	}
	if sourceItemID == targetItemID {
		return nil, apperr.Validation("an item cannot depend on itself")
	}
	var result *domain.PlanningDependency
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteItemRepo(tx)
		source, err := items.GetByID(ctx, sourceItemID)
		if err != nil {
			return err
		}
		target, err := items.GetByID(ctx, targetItemID)
		if err != nil {
			return err
		}
		if source.ProjectID != target.ProjectID {
			return apperr.Validation("dependencies cannot cross projects")
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), source.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequirePlanningEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanEditPlanningItems); err != nil {
			return err
		}

		schema := repository.NewSQLiteSchemaRepo(tx)
		for _, it := range []*domain.PlanningItem{source, target} {
			et, err := schema.GetEntityType(ctx, it.EntityTypeID)
			if err != nil {
				return err
			}
			if !et.AllowDependencies {
				return apperr.Validation("entity type %s does not allow dependencies", et.InternalKey)
			}
		}

		deps := repository.NewSQLiteDependencyRepo(tx)
		if _, err := deps.GetByPair(ctx, sourceItemID, targetItemID); err == nil {
			return apperr.Validation("dependency already exists")
		} else if !isNotFound(err) {
			return err
		}
		if err := rejectCycle(ctx, deps, sourceItemID, targetItemID); err != nil {
			return err
		}

		d := &domain.PlanningDependency{
			ID:           uuid.New().String(),
			SourceItemID: sourceItemID,
			TargetItemID: targetItemID,
			Type:         depType,
			CreatedAt:    time.Now().UTC(),
		}
		if err := deps.Create(ctx, d); err != nil {
			return err
		}
		result = d
		return nil
	})
	return result, err
}

// rejectCycle walks outgoing edges from target looking for a path back
// to source; finding one means the new edge would close a cycle. The
// visited set guards against loops in pre-existing data.
func rejectCycle(ctx context.Context, deps repository.DependencyRepo, sourceItemID, targetItemID string) error {
	visited := map[string]bool{}
	stack := []string{targetItemID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == sourceItemID {
			return apperr.Validation("dependency would create a cycle")
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		outgoing, err := deps.ListBySource(ctx, current)
		if err != nil {
			return err
		}
		for _, d := range outgoing {
			stack = append(stack, d.TargetItemID)
		}
	}
	return nil
}

func (s *dependencyService) Delete(ctx context.Context, actorID, dependencyID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		deps := repository.NewSQLiteDependencyRepo(tx)
		d, err := deps.GetByID(ctx, dependencyID)
		if err != nil {
			return err
		}
		source, err := repository.NewSQLiteItemRepo(tx).GetByID(ctx, d.SourceItemID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), source.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanEditPlanningItems); err != nil {
			return err
		}
		return deps.Delete(ctx, dependencyID)
	})
}

func (s *dependencyService) ListBySource(ctx context.Context, actorID, itemID string) ([]*domain.PlanningDependency, error) {
	return s.list(ctx, actorID, itemID, repository.DependencyRepo.ListBySource)
}

func (s *dependencyService) ListByTarget(ctx context.Context, actorID, itemID string) ([]*domain.PlanningDependency, error) {
	return s.list(ctx, actorID, itemID, repository.DependencyRepo.ListByTarget)
}

func (s *dependencyService) list(ctx context.Context, actorID, itemID string, fetch func(repository.DependencyRepo, context.Context, string) ([]*domain.PlanningDependency, error)) ([]*domain.PlanningDependency, error) {
	var result []*domain.PlanningDependency
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
		result, err = fetch(repository.NewSQLiteDependencyRepo(tx), ctx, itemID)
		return err
	})
	return result, err
}
