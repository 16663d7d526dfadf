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

type assetService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewAssetService(uow db.UnitOfWork, observers ...UseCaseObserver) AssetService {
	return &assetService{uow: uow, observer: useCaseObserverOrNoop(observers)}
}

func (s *assetService) CreateVariable(ctx context.Context, actorID string, v *domain.Variable) error {
	if v.Key == "" {
		return apperr.Validation("variable key is required")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), v.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequireFlowsEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanEditFlows); err != nil {
			return err
		}
		folder, err := repository.NewSQLiteFolderRepo(tx, domain.FolderVariables).GetByID(ctx, v.FolderID)
		if err != nil {
			return err
		}
		if folder.ProjectID != v.ProjectID {
			return apperr.Validation("folder belongs to another project")
		}
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		now := time.Now().UTC()
		v.CreatedAt = now
		v.UpdatedAt = now
		return repository.NewSQLiteVariableRepo(tx).Create(ctx, v)
	})
}

func (s *assetService) UpdateVariable(ctx context.Context, actorID string, v *domain.Variable) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		vars := repository.NewSQLiteVariableRepo(tx)
		existing, err := vars.GetByID(ctx, v.ID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), existing.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequireFlowsEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanEditFlows); err != nil {
			return err
		}
		if v.Key != existing.Key {
			return apperr.Validation("variable key is immutable")
		}
		v.ProjectID = existing.ProjectID
		v.FolderID = existing.FolderID
		v.UpdatedAt = time.Now().UTC()
		return vars.Update(ctx, v)
	})
}

func (s *assetService) DeleteVariable(ctx context.Context, actorID, variableID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		vars := repository.NewSQLiteVariableRepo(tx)
		v, err := vars.GetByID(ctx, variableID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), v.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanEditFlows); err != nil {
			return err
		}
		return vars.Delete(ctx, variableID)
	})
}

func (s *assetService) ListVariables(ctx context.Context, actorID, folderID string) ([]*domain.Variable, error) {
	var result []*domain.Variable
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		folder, err := repository.NewSQLiteFolderRepo(tx, domain.FolderVariables).GetByID(ctx, folderID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), folder.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result, err = repository.NewSQLiteVariableRepo(tx).ListByFolder(ctx, folderID)
		return err
	})
	return result, err
}

func (s *assetService) CreateElement(ctx context.Context, actorID string, e *domain.Element, locators []*domain.ElementLocator) error {
	if e.Name == "" {
		return apperr.Validation("element name is required")
	}
	if len(locators) == 0 {
		return apperr.Validation("element requires at least one locator")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), e.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequireElementCaptureEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanCaptureElements); err != nil {
			return err
		}
		folder, err := repository.NewSQLiteFolderRepo(tx, domain.FolderElements).GetByID(ctx, e.FolderID)
		if err != nil {
			return err
		}
		if folder.ProjectID != e.ProjectID {
			return apperr.Validation("folder belongs to another project")
		}
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		now := time.Now().UTC()
		e.CreatedAt = now
		elements := repository.NewSQLiteElementRepo(tx)
		if err := elements.Create(ctx, e); err != nil {
			return err
		}
		for _, l := range locators {
			if l.SelectorType == "" || l.SelectorValue == "" {
				return apperr.Validation("locator requires a selector type and value")
			}
			l.ID = uuid.New().String()
			l.ElementID = e.ID
			l.CreatedAt = now
			if err := elements.CreateLocator(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *assetService) loadElement(ctx context.Context, tx db.DBTX, actorID, elementID, permKey string) (repository.ElementRepo, *domain.Element, error) {
	elements := repository.NewSQLiteElementRepo(tx)
	e, err := elements.GetByID(ctx, elementID)
	if err != nil {
		return nil, nil, err
	}
	access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), e.ProjectID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if err := access.Require(permKey); err != nil {
		return nil, nil, err
	}
	return elements, e, nil
}

func (s *assetService) DeleteElement(ctx context.Context, actorID, elementID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		elements, e, err := s.loadElement(ctx, tx, actorID, elementID, perm.CanCaptureElements)
		if err != nil {
			return err
		}
		return elements.Delete(ctx, e.ID)
	})
}

func (s *assetService) ListElements(ctx context.Context, actorID, folderID string) ([]*domain.Element, error) {
	var result []*domain.Element
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		folder, err := repository.NewSQLiteFolderRepo(tx, domain.FolderElements).GetByID(ctx, folderID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), folder.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result, err = repository.NewSQLiteElementRepo(tx).ListByFolder(ctx, folderID)
		return err
	})
	return result, err
}

func (s *assetService) AddLocator(ctx context.Context, actorID string, l *domain.ElementLocator) error {
	if l.SelectorType == "" || l.SelectorValue == "" {
		return apperr.Validation("locator requires a selector type and value")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		elements, e, err := s.loadElement(ctx, tx, actorID, l.ElementID, perm.CanCaptureElements)
		if err != nil {
			return err
		}
		l.ID = uuid.New().String()
		l.ElementID = e.ID
		l.CreatedAt = time.Now().UTC()
		return elements.CreateLocator(ctx, l)
	})
}

func (s *assetService) ListLocators(ctx context.Context, actorID, elementID string) ([]*domain.ElementLocator, error) {
	var result []*domain.ElementLocator
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		elements, e, err := s.loadElement(ctx, tx, actorID, elementID, perm.CanViewProject)
		if err != nil {
			return err
		}
		result, err = elements.ListLocators(ctx, e.ID)
		return err
	})
	return result, err
}
