package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"romplestiltskin/internal/verify"
)

// UpsertSystem creates a system by name, or refreshes its catalog source
// path when it already exists, and returns its ID.
func (s *SQLiteStore) UpsertSystem(ctx context.Context, name, catalogPath string) (int64, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO systems (name, catalog_source_path, created_at, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET
             catalog_source_path = excluded.catalog_source_path,
             updated_at = excluded.updated_at`,
		name, catalogPath, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("upserting system: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM systems WHERE name = ?`, name,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading system id: %w", err)
	}
	return id, nil
}

// SystemByName returns a system, or (nil, nil) when it is unknown.
func (s *SQLiteStore) SystemByName(ctx context.Context, name string) (*verify.System, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, catalog_source_path, game_count, created_at, updated_at
         FROM systems WHERE name = ?`, name)

	system, err := scanSystem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding system by name: %w", err)
	}
	return system, nil
}

// Systems returns all systems ordered by name.
func (s *SQLiteStore) Systems(ctx context.Context) ([]*verify.System, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, catalog_source_path, game_count, created_at, updated_at
         FROM systems ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing systems: %w", err)
	}
	defer rows.Close()

	var systems []*verify.System
	for rows.Next() {
		system, err := scanSystem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning system row: %w", err)
		}
		systems = append(systems, system)
	}
	return systems, rows.Err()
}

// DeleteSystem removes a system; catalog entries and scan records cascade.
func (s *SQLiteStore) DeleteSystem(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM systems WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting system: %w", err)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSystem(row rowScanner) (*verify.System, error) {
	var system verify.System
	err := row.Scan(
		&system.ID,
		&system.Name,
		&system.CatalogPath,
		&system.GameCount,
		&system.CreatedAt,
		&system.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &system, nil
}
