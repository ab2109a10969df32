package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"romplestiltskin/internal/catalog"
	"romplestiltskin/internal/verify"
)

// preservedRow is a scan record that survives a rescan: an ignored override
// or a synthetic missing placeholder.
type preservedRow struct {
	id       int64
	filePath string
	crc32    string
	status   verify.Status
}

// ReplaceScanResults replaces a system's scan records with a fresh scan.
// Ignored rows and missing placeholders are reconciled rather than wiped:
//   - an incoming result whose checksum matches an ignored row updates that
//     row's path and size but does not clear the override
//   - a missing placeholder whose checksum reappears in the scan is deleted
//     and replaced by the real result
//   - an ignored row whose path is reused by a file with a different
//     checksum is replaced, since the override no longer names that file
func (s *SQLiteStore) ReplaceScanResults(ctx context.Context, systemID int64, results []verify.ScanResult, scannedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	preserved, err := loadPreserved(ctx, tx, systemID)
	if err != nil {
		return err
	}

	ignoredByCRC := make(map[string]preservedRow)
	ignoredByPath := make(map[string]preservedRow)
	missingByCRC := make(map[string]preservedRow)
	for _, row := range preserved {
		if row.status == verify.StatusIgnored {
			if row.crc32 != "" {
				ignoredByCRC[row.crc32] = row
			}
			ignoredByPath[row.filePath] = row
		} else if row.crc32 != "" {
			missingByCRC[row.crc32] = row
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM scanned_files
         WHERE system_id = ? AND status != ? AND file_path NOT LIKE 'missing\_%' ESCAPE '\'`,
		systemID, verify.StatusIgnored,
	); err != nil {
		return fmt.Errorf("clearing scan records: %w", err)
	}

	now := scannedAt.UTC()

	// Decide every ignored row's fate before writing anything. Deciding
	// per result leaves the maps stale once a row has been re-pathed, and
	// an ignored row can be renamed while its old path is reused by new
	// content in the same scan.
	type move struct {
		path string
		size int64
	}
	moves := make(map[int64]move)
	for _, result := range results {
		if result.CRC32 == "" {
			continue
		}
		if row, ok := ignoredByCRC[result.CRC32]; ok {
			if _, claimed := moves[row.id]; !claimed {
				moves[row.id] = move{path: result.FilePath, size: result.FileSize}
			}
		}
	}
	for _, result := range results {
		row, ok := ignoredByPath[result.FilePath]
		if !ok || row.crc32 == result.CRC32 {
			continue
		}
		if _, followed := moves[row.id]; followed {
			// The override moved with its checksum; the old path is free.
			continue
		}
		// The override's path now holds unrelated content and its own
		// checksum is gone, so it no longer names any file.
		if err := deleteRow(ctx, tx, row.id); err != nil {
			return err
		}
		delete(ignoredByPath, result.FilePath)
	}
	for id, m := range moves {
		// The ignored file is still here, possibly renamed or moved.
		// Follow it without lifting the override.
		if _, err := tx.ExecContext(ctx,
			`UPDATE scanned_files SET file_path = ?, file_size = ?, scan_timestamp = ? WHERE id = ?`,
			m.path, m.size, now, id,
		); err != nil {
			return fmt.Errorf("re-pathing ignored record: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scanned_files (
             system_id, file_path, file_size, crc32, status,
             matched_game_id, similarity_score, error_message,
             original_status, scan_timestamp
         ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing scan insert: %w", err)
	}
	defer stmt.Close()

	for _, result := range results {
		if result.CRC32 != "" {
			if _, ok := ignoredByCRC[result.CRC32]; ok {
				// Recorded on the preserved ignored row above.
				continue
			}
			if row, ok := missingByCRC[result.CRC32]; ok {
				// The entry is no longer missing.
				if err := deleteRow(ctx, tx, row.id); err != nil {
					return err
				}
				delete(missingByCRC, result.CRC32)
			}
		}

		var matchedID sql.NullInt64
		if result.Matched != nil {
			matchedID = sql.NullInt64{Int64: result.Matched.ID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			systemID, result.FilePath, result.FileSize, nullString(result.CRC32), result.Status,
			matchedID, result.SimilarityScore, nullString(result.ErrorMessage),
			nil, now,
		); err != nil {
			return fmt.Errorf("inserting scan record %q: %w", result.FilePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing scan results: %w", err)
	}
	return nil
}

func loadPreserved(ctx context.Context, tx *sql.Tx, systemID int64) ([]preservedRow, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, file_path, COALESCE(crc32, ''), status
         FROM scanned_files
         WHERE system_id = ? AND (status = ? OR file_path LIKE 'missing\_%' ESCAPE '\')`,
		systemID, verify.StatusIgnored)
	if err != nil {
		return nil, fmt.Errorf("loading preserved records: %w", err)
	}
	defer rows.Close()

	var preserved []preservedRow
	for rows.Next() {
		var row preservedRow
		if err := rows.Scan(&row.id, &row.filePath, &row.crc32, &row.status); err != nil {
			return nil, fmt.Errorf("scanning preserved row: %w", err)
		}
		preserved = append(preserved, row)
	}
	return preserved, rows.Err()
}

func deleteRow(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM scanned_files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting scan record: %w", err)
	}
	return nil
}

// UpdateStatus sets the status of the record selected by key.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, systemID int64, key verify.Key, status verify.Status, originalStatus verify.Status) error {
	if key.IsZero() {
		return verify.ErrInvalidKey
	}
	where, arg := keyClause(key)
	var err error
	if originalStatus != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE scanned_files SET status = ?, original_status = ? WHERE system_id = ? AND `+where,
			status, originalStatus, systemID, arg)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE scanned_files SET status = ? WHERE system_id = ? AND `+where,
			status, systemID, arg)
	}
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return nil
}

// Ignore overrides the selected record to ignored, capturing its current
// status as the original. Re-ignoring keeps the first captured original.
func (s *SQLiteStore) Ignore(ctx context.Context, systemID int64, key verify.Key) error {
	if key.IsZero() {
		return verify.ErrInvalidKey
	}
	where, arg := keyClause(key)

	var id int64
	var current verify.Status
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status FROM scanned_files WHERE system_id = ? AND `+where, systemID, arg,
	).Scan(&id, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no scan record for %s", key.FilePath+key.CRC32)
	}
	if err != nil {
		return fmt.Errorf("finding record to ignore: %w", err)
	}
	if current == verify.StatusIgnored {
		return nil // Already ignored, keep the first original
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE scanned_files SET status = ?, original_status = ? WHERE id = ?`,
		verify.StatusIgnored, current, id,
	); err != nil {
		return fmt.Errorf("ignoring record: %w", err)
	}
	return nil
}

// Unignore restores the selected record to its original status and clears
// it. A record that is not ignored is left untouched.
func (s *SQLiteStore) Unignore(ctx context.Context, systemID int64, key verify.Key) error {
	if key.IsZero() {
		return verify.ErrInvalidKey
	}
	where, arg := keyClause(key)

	var id int64
	var current verify.Status
	var original sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, original_status FROM scanned_files WHERE system_id = ? AND `+where,
		systemID, arg,
	).Scan(&id, &current, &original)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding record to unignore: %w", err)
	}
	if current != verify.StatusIgnored {
		return nil
	}

	restored := verify.StatusNotRecognized
	if parsed, ok := verify.ParseStatus(original.String); ok {
		restored = parsed
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE scanned_files SET status = ?, original_status = NULL WHERE id = ?`,
		restored, id,
	); err != nil {
		return fmt.Errorf("unignoring record: %w", err)
	}
	return nil
}

// UpdateFilePath re-paths a record without changing its status.
func (s *SQLiteStore) UpdateFilePath(ctx context.Context, systemID int64, oldPath, newPath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scanned_files SET file_path = ? WHERE system_id = ? AND file_path = ?`,
		newPath, systemID, oldPath)
	if err != nil {
		return fmt.Errorf("updating file path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no scan record for %s", oldPath)
	}
	return nil
}

// AddPlaceholder inserts a synthetic record for a catalog entry with no
// local file.
func (s *SQLiteStore) AddPlaceholder(ctx context.Context, systemID int64, status verify.Status, crc string, size int64, originalStatus verify.Status, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scanned_files (
             system_id, file_path, file_size, crc32, status,
             similarity_score, original_status, scan_timestamp
         ) VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		systemID, verify.PlaceholderPath(crc), size, crc, status,
		nullString(string(originalStatus)), at.UTC())
	if err != nil {
		return fmt.Errorf("adding placeholder: %w", err)
	}
	return nil
}

const recordColumns = `
    sf.id, sf.system_id, sf.file_path, sf.file_size, COALESCE(sf.crc32, ''),
    sf.status, sf.matched_game_id, sf.similarity_score,
    COALESCE(sf.error_message, ''), COALESCE(sf.original_status, ''),
    sf.scan_timestamp,
    g.id, g.release_name, g.expected_file_name, g.canonical_title,
    g.region, g.languages, g.crc32, g.size`

const recordJoin = ` FROM scanned_files sf LEFT JOIN games g ON g.id = sf.matched_game_id`

// Records returns all scan records for a system, joined with matched
// catalog data, ordered by file path.
func (s *SQLiteStore) Records(ctx context.Context, systemID int64) ([]*verify.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+recordColumns+recordJoin+` WHERE sf.system_id = ? ORDER BY sf.file_path`,
		systemID)
	if err != nil {
		return nil, fmt.Errorf("listing scan records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// RecordsByStatus returns a system's records with the given status. When
// visibleCRCs is non-nil, only records whose matched catalog entry carries
// one of those checksums are returned.
func (s *SQLiteStore) RecordsByStatus(ctx context.Context, systemID int64, status verify.Status, visibleCRCs map[string]struct{}) ([]*verify.Record, error) {
	query := `SELECT` + recordColumns + recordJoin + ` WHERE sf.system_id = ? AND sf.status = ?`
	args := []any{systemID, status}
	if visibleCRCs != nil {
		if len(visibleCRCs) == 0 {
			return nil, nil
		}
		placeholders := make([]string, 0, len(visibleCRCs))
		for crc := range visibleCRCs {
			placeholders = append(placeholders, "?")
			args = append(args, crc)
		}
		query += ` AND g.crc32 IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY sf.file_path`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records by status: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// RecordByCRC returns the record with the given checksum, or (nil, nil).
func (s *SQLiteStore) RecordByCRC(ctx context.Context, systemID int64, crc string) (*verify.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+recordColumns+recordJoin+` WHERE sf.system_id = ? AND sf.crc32 = ? LIMIT 1`,
		systemID, crc)
	if err != nil {
		return nil, fmt.Errorf("finding record by checksum: %w", err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil // Not found
	}
	return records[0], nil
}

// StatusSummary aggregates record counts per status.
func (s *SQLiteStore) StatusSummary(ctx context.Context, systemID int64) (verify.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM scanned_files WHERE system_id = ? GROUP BY status`,
		systemID)
	if err != nil {
		return verify.Summary{}, fmt.Errorf("summarizing statuses: %w", err)
	}
	defer rows.Close()

	summary := verify.Summary{Counts: make(map[verify.Status]int)}
	for rows.Next() {
		var status verify.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return verify.Summary{}, fmt.Errorf("scanning summary row: %w", err)
		}
		summary.Counts[status] = count
		summary.Total += count
	}
	return summary, rows.Err()
}

func collectRecords(rows *sql.Rows) ([]*verify.Record, error) {
	var records []*verify.Record
	for rows.Next() {
		var record verify.Record
		var matchedGameID sql.NullInt64
		var gameID sql.NullInt64
		var releaseName, expectedName, title, region, languages, gameCRC sql.NullString
		var gameSize sql.NullInt64
		err := rows.Scan(
			&record.ID, &record.SystemID, &record.FilePath, &record.FileSize, &record.CRC32,
			&record.Status, &matchedGameID, &record.SimilarityScore,
			&record.ErrorMessage, &record.OriginalStatus,
			&record.ScanTimestamp,
			&gameID, &releaseName, &expectedName, &title,
			&region, &languages, &gameCRC, &gameSize,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		if matchedGameID.Valid {
			id := matchedGameID.Int64
			record.MatchedGameID = &id
		}
		if gameID.Valid {
			record.Matched = &catalog.Entry{
				ID:               gameID.Int64,
				SystemID:         record.SystemID,
				ReleaseName:      releaseName.String,
				ExpectedFileName: expectedName.String,
				CanonicalTitle:   title.String,
				Region:           region.String,
				Languages:        languages.String,
				CRC32:            gameCRC.String,
				Size:             gameSize.Int64,
			}
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// keyClause builds the WHERE fragment selecting a record by key. Path wins
// when both fields are set.
func keyClause(key verify.Key) (string, any) {
	if key.FilePath != "" {
		return `file_path = ?`, key.FilePath
	}
	return `crc32 = ?`, key.CRC32
}
