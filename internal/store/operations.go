package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"romplestiltskin/internal/verify"
)

// BeginOperation records the start of a mutating run and returns its ID.
func (s *SQLiteStore) BeginOperation(ctx context.Context, operation, parameters string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (operation, parameters, status, started_at)
         VALUES (?, ?, 'running', ?)`,
		operation, parameters, startedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("recording operation start: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

// FinishOperation records the outcome of a mutating run.
func (s *SQLiteStore) FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, finishedAt.UTC(), id,
	); err != nil {
		return fmt.Errorf("recording operation finish: %w", err)
	}
	return nil
}

// Operations returns the most recent operations, newest first.
func (s *SQLiteStore) Operations(ctx context.Context, limit int) ([]*verify.Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, COALESCE(parameters, ''), status, started_at, finished_at
         FROM operations ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var operations []*verify.Operation
	for rows.Next() {
		var op verify.Operation
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation row: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		operations = append(operations, &op)
	}
	return operations, rows.Err()
}
