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

type flowService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewFlowService(uow db.UnitOfWork, observers ...UseCaseObserver) FlowService {
	return &flowService{uow: uow, observer: useCaseObserverOrNoop(observers)}
}

func (s *flowService) Create(ctx context.Context, actorID string, f *domain.Flow) error {
	if f.Name == "" {
		return apperr.Validation("flow name is required")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), f.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequireFlowsEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanCreateFlows); err != nil {
			return err
		}
		if f.FolderID != nil {
			folder, err := repository.NewSQLiteFolderRepo(tx, domain.FolderFlows).GetByID(ctx, *f.FolderID)
			if err != nil {
				return err
			}
			if folder.ProjectID != f.ProjectID {
				return apperr.Validation("folder belongs to another project")
			}
		}
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		f.Status = domain.VersionedDraft
		f.CurrentVersion = 0
		now := time.Now().UTC()
		f.CreatedAt = now
		f.UpdatedAt = now
		return repository.NewSQLiteFlowRepo(tx).Create(ctx, f)
	})
}

// loadFlow resolves access through the flow's project and checks the
// given permission.
func loadFlow(ctx context.Context, tx db.DBTX, actorID, flowID, permKey string) (*projectAccess, *domain.Flow, error) {
	f, err := repository.NewSQLiteFlowRepo(tx).GetByID(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}
	access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), f.ProjectID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if err := access.RequireFlowsEnabled(); err != nil {
		return nil, nil, err
	}
	if err := access.Require(permKey); err != nil {
		return nil, nil, err
	}
	return access, f, nil
}

func (s *flowService) Get(ctx context.Context, actorID, flowID string) (*domain.Flow, error) {
	var result *domain.Flow
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		_, f, err := loadFlow(ctx, tx, actorID, flowID, perm.CanViewFlows)
		if err != nil {
			return err
		}
		result = f
		return nil
	})
	return result, err
}

func (s *flowService) ListByProject(ctx context.Context, actorID, projectID string) ([]*domain.Flow, error) {
	var result []*domain.Flow
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequireFlowsEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanViewFlows); err != nil {
			return err
		}
		result, err = repository.NewSQLiteFlowRepo(tx).ListByProject(ctx, projectID)
		return err
	})
	return result, err
}

func (s *flowService) UpdateMetadata(ctx context.Context, actorID, flowID, name, description string) error {
	if name == "" {
		return apperr.Validation("flow name is required")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		_, f, err := loadFlow(ctx, tx, actorID, flowID, perm.CanEditFlows)
		if err != nil {
			return err
		}
		if f.Status == domain.VersionedArchived {
			return apperr.Validation("flow is archived")
		}
		f.Name = name
		f.Description = description
		f.UpdatedAt = time.Now().UTC()
		return repository.NewSQLiteFlowRepo(tx).Update(ctx, f)
	})
}

func (s *flowService) Archive(ctx context.Context, actorID, flowID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		_, f, err := loadFlow(ctx, tx, actorID, flowID, perm.CanEditFlows)
		if err != nil {
			return err
		}
		if f.Status == domain.VersionedArchived {
			return apperr.Validation("flow is already archived")
		}
		f.Status = domain.VersionedArchived
		f.UpdatedAt = time.Now().UTC()
		return repository.NewSQLiteFlowRepo(tx).Update(ctx, f)
	})
}

func (s *flowService) Delete(ctx context.Context, actorID, flowID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		_, f, err := loadFlow(ctx, tx, actorID, flowID, perm.CanEditFlows)
		if err != nil {
			return err
		}
		flows := repository.NewSQLiteFlowRepo(tx)
		count, err := flows.CountVersions(ctx, f.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperr.Validation("flow has saved versions; archive it instead")
		}
		return flows.Delete(ctx, f.ID)
	})
}

func (s *flowService) SaveVersion(ctx context.Context, in SaveFlowVersionInput) (result *domain.FlowVersion, err error) {
	if err := validateFlowSteps(in.StepsJSON); err != nil {
		return nil, err
	}
	startedAt := time.Now().UTC()
	defer func() {
		s.observer.ObserveUseCase(ctx, UseCaseEvent{
			Name:      "flow-save-version",
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Success:   err == nil,
			Err:       err,
			Fields:    map[string]any{"flow": in.FlowID},
		})
	}()
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		_, f, err := loadFlow(ctx, tx, in.ActorID, in.FlowID, perm.CanEditFlows)
		if err != nil {
			return err
		}
		if f.Status == domain.VersionedArchived {
			return apperr.Validation("archived flows cannot receive new versions")
		}
		flows := repository.NewSQLiteFlowRepo(tx)

		createdFrom := in.CreatedFromVersion
		if createdFrom == nil && f.CurrentVersion > 0 {
			prev := f.CurrentVersion
			createdFrom = &prev
		}
		version := &domain.FlowVersion{
			ID:                 uuid.New().String(),
			FlowID:             f.ID,
			VersionNumber:      f.CurrentVersion + 1,
			StepsJSON:          in.StepsJSON,
			CreatedFromVersion: createdFrom,
			CreatedAt:          time.Now().UTC(),
		}
		if err := flows.CreateVersion(ctx, version); err != nil {
			return err
		}
		f.CurrentVersion = version.VersionNumber
		f.Status = domain.VersionedSaved
		f.UpdatedAt = version.CreatedAt
		if err := flows.Update(ctx, f); err != nil {
			return err
		}
		result = version
		return nil
	})
	return result, err
}

func (s *flowService) Rollback(ctx context.Context, actorID, flowID string, toVersion int) (*domain.FlowVersion, error) {
	var result *domain.FlowVersion
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		_, f, err := loadFlow(ctx, tx, actorID, flowID, perm.CanEditFlows)
		if err != nil {
			return err
		}
		if f.Status == domain.VersionedArchived {
			return apperr.Validation("archived flows cannot receive new versions")
		}
		flows := repository.NewSQLiteFlowRepo(tx)
		source, err := flows.GetVersion(ctx, f.ID, toVersion)
		if err != nil {
			return err
		}
		version := &domain.FlowVersion{
			ID:                 uuid.New().String(),
			FlowID:             f.ID,
			VersionNumber:      f.CurrentVersion + 1,
			StepsJSON:          source.StepsJSON,
			CreatedFromVersion: &source.VersionNumber,
			CreatedAt:          time.Now().UTC(),
		}
		if err := flows.CreateVersion(ctx, version); err != nil {
			return err
		}
		f.CurrentVersion = version.VersionNumber
		f.UpdatedAt = version.CreatedAt
		if err := flows.Update(ctx, f); err != nil {
			return err
		}
		result = version
		return nil
	})
	return result, err
}

func (s *flowService) ListVersions(ctx context.Context, actorID, flowID string) ([]*domain.FlowVersion, error) {
	var result []*domain.FlowVersion
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		_, f, err := loadFlow(ctx, tx, actorID, flowID, perm.CanViewFlows)
		if err != nil {
			return err
		}
		result, err = repository.NewSQLiteFlowRepo(tx).ListVersions(ctx, f.ID)
		return err
	})
	return result, err
}

// validateFlowSteps checks the payload decodes to a list of well-formed
// steps; each step needs an action key.
func validateFlowSteps(stepsJSON string) error {
	var steps []domain.FlowStep
	if err := json.Unmarshal([]byte(stepsJSON), &steps); err != nil {
		return apperr.Validation("steps must be a JSON array of step objects")
	}
	for i, step := range steps {
		if step.ActionKey == "" {
			return apperr.Validation("step %d is missing an action key", i+1)
		}
	}
	return nil
}
