package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
)

// SQLiteExecutionBindingRepo implements ExecutionBindingRepo over a DBTX.
type SQLiteExecutionBindingRepo struct {
	db db.DBTX
}

func NewSQLiteExecutionBindingRepo(dbtx db.DBTX) *SQLiteExecutionBindingRepo {
	return &SQLiteExecutionBindingRepo{db: dbtx}
}

func (r *SQLiteExecutionBindingRepo) GetByItem(ctx context.Context, itemID string) (*domain.ExecutionBinding, error) {
	query := `SELECT id, item_id, flow_id, test_case_id, execution_mode, auto_trigger
		FROM execution_bindings WHERE item_id = ?`
	var b domain.ExecutionBinding
	var flowID, testCaseID sql.NullString
	var autoInt int
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&b.ID, &b.ItemID, &flowID, &testCaseID, &b.ExecutionMode, &autoInt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("execution binding for item %s", itemID)
		}
		return nil, fmt.Errorf("scanning execution binding: %w", err)
	}
	b.FlowID = strPtr(flowID)
	b.TestCaseID = strPtr(testCaseID)
	b.AutoTrigger = intToBool(autoInt)
	return &b, nil
}

func (r *SQLiteExecutionBindingRepo) Upsert(ctx context.Context, b *domain.ExecutionBinding) error {
	query := `INSERT INTO execution_bindings (id, item_id, flow_id, test_case_id, execution_mode, auto_trigger)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			flow_id = excluded.flow_id,
			test_case_id = excluded.test_case_id,
			execution_mode = excluded.execution_mode,
			auto_trigger = excluded.auto_trigger`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.ItemID, nullableStr(b.FlowID), nullableStr(b.TestCaseID),
		b.ExecutionMode, boolToInt(b.AutoTrigger),
	)
	if err != nil {
		return fmt.Errorf("upserting execution binding: %w", err)
	}
	return nil
}

func (r *SQLiteExecutionBindingRepo) DeleteByItem(ctx context.Context, itemID string) error {
	query := `DELETE FROM execution_bindings WHERE item_id = ?`
	if _, err := r.db.ExecContext(ctx, query, itemID); err != nil {
		return fmt.Errorf("deleting execution binding: %w", err)
	}
	return nil
}
