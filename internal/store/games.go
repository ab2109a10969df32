package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"romplestiltskin/internal/catalog"
)

// ReplaceGames swaps a system's catalog entries for the given set in a
// single transaction, and refreshes the system's game count.
func (s *SQLiteStore) ReplaceGames(ctx context.Context, systemID int64, entries []catalog.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM games WHERE system_id = ?`, systemID); err != nil {
		return fmt.Errorf("clearing games: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO games (
             system_id, release_name, expected_file_name, clone_of_id,
             crc32, size, md5, sha1,
             canonical_title, region, languages,
             is_beta, is_demo, is_prototype, is_unlicensed,
             revision, is_unofficial_translation, is_verified_dump,
             is_pirate, is_hack, is_trainer, is_overdump, is_modified,
             disc_info
         ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing game insert: %w", err)
	}
	defer stmt.Close()

	for i := range entries {
		entry := &entries[i]
		res, err := stmt.ExecContext(ctx,
			systemID, entry.ReleaseName, entry.ExpectedFileName, nullString(entry.CloneOfID),
			entry.CRC32, entry.Size, nullString(entry.MD5), nullString(entry.SHA1),
			entry.CanonicalTitle, entry.Region, entry.Languages,
			entry.IsBeta, entry.IsDemo, entry.IsPrototype, entry.IsUnlicensed,
			entry.Revision, entry.IsUnofficialTranslation, entry.IsVerifiedDump,
			entry.IsPirate, entry.IsHack, entry.IsTrainer, entry.IsOverdump, entry.IsModified,
			nullString(entry.DiscInfo),
		)
		if err != nil {
			return fmt.Errorf("inserting game %q: %w", entry.ReleaseName, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading game id: %w", err)
		}
		entry.ID = id
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE systems SET game_count = ?, updated_at = ? WHERE id = ?`,
		len(entries), time.Now().UTC(), systemID,
	); err != nil {
		return fmt.Errorf("updating game count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing games: %w", err)
	}
	return nil
}

// GamesBySystem returns all catalog entries for a system ordered by
// release name.
func (s *SQLiteStore) GamesBySystem(ctx context.Context, systemID int64) ([]*catalog.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, system_id, release_name, expected_file_name, clone_of_id,
                crc32, size, md5, sha1,
                canonical_title, region, languages,
                is_beta, is_demo, is_prototype, is_unlicensed,
                revision, is_unofficial_translation, is_verified_dump,
                is_pirate, is_hack, is_trainer, is_overdump, is_modified,
                disc_info
         FROM games WHERE system_id = ? ORDER BY release_name`, systemID)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var entries []*catalog.Entry
	for rows.Next() {
		var entry catalog.Entry
		var cloneOf, md5, sha1, discInfo sql.NullString
		err := rows.Scan(
			&entry.ID, &entry.SystemID, &entry.ReleaseName, &entry.ExpectedFileName, &cloneOf,
			&entry.CRC32, &entry.Size, &md5, &sha1,
			&entry.CanonicalTitle, &entry.Region, &entry.Languages,
			&entry.IsBeta, &entry.IsDemo, &entry.IsPrototype, &entry.IsUnlicensed,
			&entry.Revision, &entry.IsUnofficialTranslation, &entry.IsVerifiedDump,
			&entry.IsPirate, &entry.IsHack, &entry.IsTrainer, &entry.IsOverdump, &entry.IsModified,
			&discInfo,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game row: %w", err)
		}
		entry.CloneOfID = cloneOf.String
		entry.MD5 = md5.String
		entry.SHA1 = sha1.String
		entry.DiscInfo = discInfo.String
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
