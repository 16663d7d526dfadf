package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/perm"
	"github.com/plandeck/plandeck/internal/repository"
)

// folderService maintains one of the four materialized-path trees. The
// family fixes the backing table, the edit permission and the feature
// flag checked on every operation.
type folderService struct {
	uow      db.UnitOfWork
	family   domain.FolderFamily
	observer UseCaseObserver
}

func NewFolderService(uow db.UnitOfWork, family domain.FolderFamily, observers ...UseCaseObserver) FolderService {
	if _, ok := folderEditPermissions[family]; !ok {
		panic("unknown folder family: " + string(family))
	}
	return &folderService{uow: uow, family: family, observer: useCaseObserverOrNoop(observers)}
}

var folderEditPermissions = map[domain.FolderFamily]string{
	domain.FolderFlows:     perm.CanEditFlows,
	domain.FolderTestCases: perm.CanEditTestCases,
	domain.FolderVariables: perm.CanEditFlows,
	domain.FolderElements:  perm.CanCaptureElements,
}

func (s *folderService) requireFeature(access *projectAccess) error {
	switch s.family {
	case domain.FolderFlows, domain.FolderVariables:
		return access.RequireFlowsEnabled()
	case domain.FolderTestCases:
		return access.RequireTestCasesEnabled()
	case domain.FolderElements:
		return access.RequireElementCaptureEnabled()
	}
	return nil
}

func validFolderName(name string) error {
	if name == "" {
		return apperr.Validation("folder name is required")
	}
	if strings.Contains(name, "/") {
		return apperr.Validation("folder name cannot contain a slash")
	}
	return nil
}

func (s *folderService) Create(ctx context.Context, actorID, projectID string, parentID *string, name string) (*domain.Folder, error) {
	if err := validFolderName(name); err != nil {
		return nil, err
	}
	var result *domain.Folder
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := s.requireFeature(access); err != nil {
			return err
		}
		if err := access.Require(folderEditPermissions[s.family]); err != nil {
			return err
		}
		folders := repository.NewSQLiteFolderRepo(tx, s.family)

		path := name
		if parentID != nil {
			parent, err := folders.GetByID(ctx, *parentID)
			if err != nil {
				return err
			}
			if parent.ProjectID != projectID {
				return apperr.Validation("parent folder belongs to another project")
			}
			path = parent.ChildPath(name)
		}
		f := &domain.Folder{
			ID:        uuid.New().String(),
			ProjectID: projectID,
			ParentID:  parentID,
			Name:      name,
			Path:      path,
			Status:    domain.FolderActive,
			CreatedAt: time.Now().UTC(),
		}
		if err := folders.Create(ctx, f); err != nil {
			return err
		}
		result = f
		return nil
	})
	return result, err
}

func (s *folderService) load(ctx context.Context, tx db.DBTX, actorID, folderID string) (repository.FolderRepo, *domain.Folder, error) {
	folders := repository.NewSQLiteFolderRepo(tx, s.family)
	f, err := folders.GetByID(ctx, folderID)
	if err != nil {
		return nil, nil, err
	}
	access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), f.ProjectID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireFeature(access); err != nil {
		return nil, nil, err
	}
	if err := access.Require(folderEditPermissions[s.family]); err != nil {
		return nil, nil, err
	}
	return folders, f, nil
}

func (s *folderService) Rename(ctx context.Context, actorID, folderID, newName string) (*domain.Folder, error) {
	if err := validFolderName(newName); err != nil {
		return nil, err
	}
	var result *domain.Folder
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		folders, f, err := s.load(ctx, tx, actorID, folderID)
		if err != nil {
			return err
		}
		newPath := newName
		if f.ParentID != nil {
			parent, err := folders.GetByID(ctx, *f.ParentID)
			if err != nil {
				return err
			}
			newPath = parent.ChildPath(newName)
		}
		if err := s.repath(ctx, folders, f, newName, f.ParentID, newPath); err != nil {
			return err
		}
		result = f
		return nil
	})
	return result, err
}

func (s *folderService) Move(ctx context.Context, actorID, folderID string, newParentID *string) (*domain.Folder, error) {
	var result *domain.Folder
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		folders, f, err := s.load(ctx, tx, actorID, folderID)
		if err != nil {
			return err
		}
		newPath := f.Name
		if newParentID != nil {
			if *newParentID == f.ID {
				return apperr.Validation("folder cannot be its own parent")
			}
			parent, err := folders.GetByID(ctx, *newParentID)
			if err != nil {
				return err
			}
			if parent.ProjectID != f.ProjectID {
				return apperr.Validation("target folder belongs to another project")
			}
			if strings.HasPrefix(parent.Path+"/", f.Path+"/") {
				return apperr.Validation("folder cannot move under its own subtree")
			}
			newPath = parent.ChildPath(f.Name)
		}
		if err := s.repath(ctx, folders, f, f.Name, newParentID, newPath); err != nil {
			return err
		}
		result = f
		return nil
	})
	return result, err
}

// repath persists the folder's new name, parent and path, then rewrites
// the prefix of every descendant path, one row at a time, inside the
// surrounding transaction.
func (s *folderService) repath(ctx context.Context, folders repository.FolderRepo, f *domain.Folder, name string, parentID *string, newPath string) error {
	oldPath := f.Path
	if newPath == oldPath && name == f.Name {
		return nil
	}
	if existing, err := folders.GetByPath(ctx, f.ProjectID, newPath); err == nil && existing.ID != f.ID {
		return apperr.Validation("a folder already exists at %q", newPath)
	} else if err != nil && !isNotFound(err) {
		return err
	}

	f.Name = name
	f.ParentID = parentID
	f.Path = newPath
	if err := folders.Update(ctx, f); err != nil {
		return err
	}

	descendants, err := folders.ListByPrefix(ctx, f.ProjectID, oldPath+"/")
	if err != nil {
		return err
	}
	for _, d := range descendants {
		d.Path = newPath + strings.TrimPrefix(d.Path, oldPath)
		if err := folders.Update(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (s *folderService) Delete(ctx context.Context, actorID, folderID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		folders, f, err := s.load(ctx, tx, actorID, folderID)
		if err != nil {
			return err
		}
		hasChildren, err := folders.HasChildren(ctx, f.ID)
		if err != nil {
			return err
		}
		if hasChildren {
			return apperr.Validation("folder still has subfolders")
		}
		count, err := s.leafCount(ctx, tx, f.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperr.Validation("folder still contains %d entries", count)
		}
		return folders.Delete(ctx, f.ID)
	})
}

// leafCount counts the family's leaf entities still referencing the folder.
func (s *folderService) leafCount(ctx context.Context, tx db.DBTX, folderID string) (int, error) {
	switch s.family {
	case domain.FolderFlows:
		return repository.NewSQLiteFlowRepo(tx).CountByFolder(ctx, folderID)
	case domain.FolderTestCases:
		return repository.NewSQLiteTestCaseRepo(tx).CountByFolder(ctx, folderID)
	case domain.FolderVariables:
		return repository.NewSQLiteVariableRepo(tx).CountByFolder(ctx, folderID)
	case domain.FolderElements:
		return repository.NewSQLiteElementRepo(tx).CountByFolder(ctx, folderID)
	}
	return 0, apperr.Config("unknown folder family %q", s.family)
}

func (s *folderService) Get(ctx context.Context, actorID, folderID string) (*domain.Folder, error) {
	var result *domain.Folder
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		folders := repository.NewSQLiteFolderRepo(tx, s.family)
		f, err := folders.GetByID(ctx, folderID)
		if err != nil {
			return err
		}
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), f.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.Require(perm.CanViewProject); err != nil {
			return err
		}
		result = f
		return nil
	})
	return result, err
}
