package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/perm"
	"github.com/plandeck/plandeck/internal/repository"
)

type bindingService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewBindingService(uow db.UnitOfWork, observers ...UseCaseObserver) BindingService {
	return &bindingService{uow: uow, observer: useCaseObserverOrNoop(observers)}
}

func (s *bindingService) Bind(ctx context.Context, in BindExecutionInput) (*domain.ExecutionBinding, error) {
	if in.FlowID == nil && in.TestCaseID == nil {
		return nil, apperr.Validation("binding requires a flow or a test case")
	}
	var result *domain.ExecutionBinding
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteItemRepo(tx)
		item, err := items.GetByID(ctx, in.ItemID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), item.ProjectID, in.ActorID)
		if err != nil {
			return err
		}
		if err := access.RequirePlanningEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanBindExecution); err != nil {
			return err
		}
		et, err := repository.NewSQLiteSchemaRepo(tx).GetEntityType(ctx, item.EntityTypeID)
		if err != nil {
			return err
		}
		if !et.AllowExecutionBinding {
			return apperr.Validation("entity type %s does not allow execution binding", et.InternalKey)
		}

		if in.FlowID != nil {
			flow, err := repository.NewSQLiteFlowRepo(tx).GetByID(ctx, *in.FlowID)
			if err != nil {
				return err
			}
			if flow.ProjectID != item.ProjectID {
				return apperr.Validation("flow belongs to another project")
			}
		}
		if in.TestCaseID != nil {
			tc, err := repository.NewSQLiteTestCaseRepo(tx).GetByID(ctx, *in.TestCaseID)
			if err != nil {
				return err
			}
			if tc.ProjectID != item.ProjectID {
				return apperr.Validation("test case belongs to another project")
			}
		}

		b := &domain.ExecutionBinding{
			ID:            uuid.New().String(),
			ItemID:        in.ItemID,
			FlowID:        in.FlowID,
			TestCaseID:    in.TestCaseID,
			ExecutionMode: in.ExecutionMode,
			AutoTrigger:   in.AutoTrigger,
		}
		if err := repository.NewSQLiteExecutionBindingRepo(tx).Upsert(ctx, b); err != nil {
			return err
		}
		result = b
		return nil
	})
	return result, err
}

func (s *bindingService) Unbind(ctx context.Context, actorID, itemID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		item, err := repository.NewSQLiteItemRepo(tx).GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), item.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanBindExecution); err != nil {
			return err
		}
		return repository.NewSQLiteExecutionBindingRepo(tx).DeleteByItem(ctx, itemID)
	})
}

func (s *bindingService) Get(ctx context.Context, actorID, itemID string) (*domain.ExecutionBinding, error) {
	var result *domain.ExecutionBinding
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
		result, err = repository.NewSQLiteExecutionBindingRepo(tx).GetByItem(ctx, itemID)
		return err
	})
	return result, err
}
