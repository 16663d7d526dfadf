package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/plandeck/plandeck/internal/apperr"
	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
)

const sessionColumns = `id, item_id, project_user_id, started_at, ended_at, duration_seconds`

// SQLiteSessionRepo implements SessionRepo over a DBTX.
type SQLiteSessionRepo struct {
	db db.DBTX
}

func NewSQLiteSessionRepo(dbtx db.DBTX) *SQLiteSessionRepo {
	return &SQLiteSessionRepo{db: dbtx}
}

func (r *SQLiteSessionRepo) Create(ctx context.Context, s *domain.TimeSession) error {
	query := `INSERT INTO time_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.ItemID,
		s.ProjectUserID,
		s.StartedAt.Format(time.RFC3339),
		nullableTimeToString(s.EndedAt, time.RFC3339),
		s.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("inserting time session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepo) Update(ctx context.Context, s *domain.TimeSession) error {
	query := `UPDATE time_sessions SET ended_at = ?, duration_seconds = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		nullableTimeToString(s.EndedAt, time.RFC3339), s.DurationSeconds, s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating time session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepo) ListByItem(ctx context.Context, itemID string) ([]*domain.TimeSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM time_sessions WHERE item_id = ? ORDER BY started_at`
	return r.list(ctx, query, itemID)
}

func (r *SQLiteSessionRepo) ListOpenByItem(ctx context.Context, itemID string) ([]*domain.TimeSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM time_sessions
		WHERE item_id = ? AND ended_at IS NULL ORDER BY started_at`
	return r.list(ctx, query, itemID)
}

func (r *SQLiteSessionRepo) LatestOpen(ctx context.Context, itemID, projectUserID string) (*domain.TimeSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM time_sessions
		WHERE item_id = ? AND project_user_id = ? AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`
	s, err := scanSession(r.db.QueryRowContext(ctx, query, itemID, projectUserID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("no open time session on item %s", itemID)
	}
	return s, err
}

func (r *SQLiteSessionRepo) list(ctx context.Context, query string, args ...any) ([]*domain.TimeSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing time sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.TimeSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating time sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row scanner) (*domain.TimeSession, error) {
	var s domain.TimeSession
	var startedAtStr string
	var endedAt sql.NullString
	err := row.Scan(&s.ID, &s.ItemID, &s.ProjectUserID, &startedAtStr, &endedAt, &s.DurationSeconds)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning time session: %w", err)
	}
	s.StartedAt, err = time.Parse(time.RFC3339, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	s.EndedAt = parseNullableTime(endedAt, time.RFC3339)
	return &s, nil
}
