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

type testCaseService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewTestCaseService(uow db.UnitOfWork, observers ...UseCaseObserver) TestCaseService {
	return &testCaseService{uow: uow, observer: useCaseObserverOrNoop(observers)}
}

func (s *testCaseService) Create(ctx context.Context, actorID string, tc *domain.TestCase) error {
	if tc.Name == "" {
		return apperr.Validation("test case name is required")
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), tc.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequireTestCasesEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanCreateTestCases); err != nil {
			return err
		}
		folder, err := repository.NewSQLiteFolderRepo(tx, domain.FolderTestCases).GetByID(ctx, tc.FolderID)
		if err != nil {
			return err
		}
		if folder.ProjectID != tc.ProjectID {
			return apperr.Validation("folder belongs to another project")
		}
		if folder.Status == domain.FolderArchived {
			return apperr.Validation("cannot create a test case in an archived folder")
		}
		if tc.ID == "" {
			tc.ID = uuid.New().String()
		}
		tc.Status = domain.VersionedDraft
		tc.CurrentVersion = nil
		now := time.Now().UTC()
		tc.CreatedAt = now
		tc.UpdatedAt = now
		return repository.NewSQLiteTestCaseRepo(tx).Create(ctx, tc)
	})
}

func loadTestCase(ctx context.Context, tx db.DBTX, actorID, testCaseID, permKey string) (*domain.TestCase, error) {
	tc, err := repository.NewSQLiteTestCaseRepo(tx).GetByID(ctx, testCaseID)
	if err != nil {
		return nil, err
	}
	access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), tc.ProjectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireTestCasesEnabled(); err != nil {
		return nil, err
	}
	if err := access.Require(permKey); err != nil {
		return nil, err
	}
	return tc, nil
}

func (s *testCaseService) Get(ctx context.Context, actorID, testCaseID string) (*domain.TestCase, error) {
	var result *domain.TestCase
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tc, err := loadTestCase(ctx, tx, actorID, testCaseID, perm.CanViewTestCases)
		if err != nil {
			return err
		}
		result = tc
		return nil
	})
	return result, err
}

func (s *testCaseService) ListByProject(ctx context.Context, actorID, projectID string) ([]*domain.TestCase, error) {
	var result []*domain.TestCase
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		access, err := resolveProjectAccess(ctx, repository.NewSQLiteProjectRepo(tx), projectID, actorID)
		if err != nil {
			return err
		}
		if err := access.RequireTestCasesEnabled(); err != nil {
			return err
		}
		if err := access.Require(perm.CanViewTestCases); err != nil {
			return err
		}
		result, err = repository.NewSQLiteTestCaseRepo(tx).ListByProject(ctx, projectID)
		return err
	})
	return result, err
}

func (s *testCaseService) Archive(ctx context.Context, actorID, testCaseID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tc, err := loadTestCase(ctx, tx, actorID, testCaseID, perm.CanEditTestCases)
		if err != nil {
			return err
		}
		if tc.Status == domain.VersionedArchived {
			return apperr.Validation("test case is already archived")
		}
		tc.Status = domain.VersionedArchived
		tc.UpdatedAt = time.Now().UTC()
		return repository.NewSQLiteTestCaseRepo(tx).Update(ctx, tc)
	})
}

func (s *testCaseService) SaveVersion(ctx context.Context, in SaveTestCaseVersionInput) (*domain.TestCaseVersion, error) {
	for name, payload := range map[string]string{
		"pre_conditions":    in.PreConditionsJSON,
		"steps":             in.StepsJSON,
		"expected_outcomes": in.ExpectedOutcomesJSON,
	} {
		if err := requireJSONArray(name, payload); err != nil {
			return nil, err
		}
	}
	var result *domain.TestCaseVersion
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tc, err := loadTestCase(ctx, tx, in.ActorID, in.TestCaseID, perm.CanEditTestCases)
		if err != nil {
			return err
		}
		if tc.Status == domain.VersionedArchived {
			return apperr.Validation("archived test cases cannot receive new versions")
		}
		cases := repository.NewSQLiteTestCaseRepo(tx)

		next := 1
		var createdFrom *int
		if tc.CurrentVersion != nil {
			next = *tc.CurrentVersion + 1
			createdFrom = tc.CurrentVersion
		}
		version := &domain.TestCaseVersion{
			ID:                   uuid.New().String(),
			TestCaseID:           tc.ID,
			VersionNumber:        next,
			PreConditionsJSON:    in.PreConditionsJSON,
			StepsJSON:            in.StepsJSON,
			ExpectedOutcomesJSON: in.ExpectedOutcomesJSON,
			CreatedFromVersion:   createdFrom,
			CreatedAt:            time.Now().UTC(),
		}
		if err := cases.CreateVersion(ctx, version); err != nil {
			return err
		}
		tc.CurrentVersion = &version.VersionNumber
		tc.Status = domain.VersionedSaved
		tc.UpdatedAt = version.CreatedAt
		if err := cases.Update(ctx, tc); err != nil {
			return err
		}
		result = version
		return nil
	})
	return result, err
}

func (s *testCaseService) Rollback(ctx context.Context, actorID, testCaseID string, toVersion int) (*domain.TestCaseVersion, error) {
	var result *domain.TestCaseVersion
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tc, err := loadTestCase(ctx, tx, actorID, testCaseID, perm.CanEditTestCases)
		if err != nil {
			return err
		}
		if tc.Status == domain.VersionedArchived {
			return apperr.Validation("archived test cases cannot receive new versions")
		}
		cases := repository.NewSQLiteTestCaseRepo(tx)
		source, err := cases.GetVersion(ctx, tc.ID, toVersion)
		if err != nil {
			return err
		}
		next := 1
		if tc.CurrentVersion != nil {
			next = *tc.CurrentVersion + 1
		}
		version := &domain.TestCaseVersion{
			ID:                   uuid.New().String(),
			TestCaseID:           tc.ID,
			VersionNumber:        next,
			PreConditionsJSON:    source.PreConditionsJSON,
			StepsJSON:            source.StepsJSON,
			ExpectedOutcomesJSON: source.ExpectedOutcomesJSON,
			CreatedFromVersion:   &source.VersionNumber,
			CreatedAt:            time.Now().UTC(),
		}
		if err := cases.CreateVersion(ctx, version); err != nil {
			return err
		}
		tc.CurrentVersion = &version.VersionNumber
		tc.UpdatedAt = version.CreatedAt
		if err := cases.Update(ctx, tc); err != nil {
			return err
		}
		result = version
		return nil
	})
	return result, err
}

func (s *testCaseService) ListVersions(ctx context.Context, actorID, testCaseID string) ([]*domain.TestCaseVersion, error) {
	var result []*domain.TestCaseVersion
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tc, err := loadTestCase(ctx, tx, actorID, testCaseID, perm.CanViewTestCases)
		if err != nil {
			return err
		}
		result, err = repository.NewSQLiteTestCaseRepo(tx).ListVersions(ctx, tc.ID)
		return err
	})
	return result, err
}

func requireJSONArray(name, payload string) error {
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &arr); err != nil {
		return apperr.Validation("%s must be a JSON array", name)
	}
	return nil
}
