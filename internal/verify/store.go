package verify

import (
	"context"
	"errors"
	"time"

	"romplestiltskin/internal/catalog"
)

// ErrInvalidKey indicates a store update that named neither a file path nor
// a checksum. This is a caller bug and fails fast.
var ErrInvalidKey = errors.New("update requires a file path or a checksum")

// Key selects a scan record by file path or by checksum. Exactly one field
// should be set; path wins when both are.
type Key struct {
	FilePath string
	CRC32    string
}

// IsZero reports whether the key selects nothing.
func (k Key) IsZero() bool {
	return k.FilePath == "" && k.CRC32 == ""
}

// Store provides persistence for systems, catalog entries, and scan records.
// Lookups that find nothing return (nil, nil); only real failures return
// errors. All writes are atomic relative to concurrent reads.
type Store interface {
	// Systems.

	// UpsertSystem creates or refreshes a system by name and returns its ID.
	UpsertSystem(ctx context.Context, name, catalogPath string) (int64, error)

	// SystemByName returns a system, or (nil, nil) when unknown.
	SystemByName(ctx context.Context, name string) (*System, error)

	// Systems returns all systems ordered by name.
	Systems(ctx context.Context) ([]*System, error)

	// DeleteSystem removes a system; its catalog entries and scan records
	// cascade.
	DeleteSystem(ctx context.Context, id int64) error

	// Catalog entries.

	// ReplaceGames atomically replaces a system's catalog entries and
	// refreshes its game count.
	ReplaceGames(ctx context.Context, systemID int64, entries []catalog.Entry) error

	// GamesBySystem returns a system's catalog entries.
	GamesBySystem(ctx context.Context, systemID int64) ([]*catalog.Entry, error)

	// Scan records.

	// ReplaceScanResults atomically replaces a system's scan records with a
	// fresh scan, reconciling rather than discarding user overrides: rows
	// with status ignored and synthetic missing placeholders survive, keyed
	// by checksum, and an incoming result whose checksum matches a preserved
	// ignored row does not resurrect it. scannedAt stamps every touched row.
	ReplaceScanResults(ctx context.Context, systemID int64, results []ScanResult, scannedAt time.Time) error

	// UpdateStatus sets the status of the record selected by key. When
	// originalStatus is non-empty it is stored alongside. A zero key fails
	// with ErrInvalidKey.
	UpdateStatus(ctx context.Context, systemID int64, key Key, status Status, originalStatus Status) error

	// Ignore overrides the selected record to ignored, capturing its current
	// status as the original. Ignoring an already-ignored record keeps the
	// first captured original.
	Ignore(ctx context.Context, systemID int64, key Key) error

	// Unignore restores the selected record to its original status and
	// clears it. A record that is not ignored is left untouched.
	Unignore(ctx context.Context, systemID int64, key Key) error

	// UpdateFilePath re-paths a record without changing its status.
	UpdateFilePath(ctx context.Context, systemID int64, oldPath, newPath string) error

	// AddPlaceholder inserts a synthetic record for a catalog entry with no
	// local file.
	AddPlaceholder(ctx context.Context, systemID int64, status Status, crc string, size int64, originalStatus Status, at time.Time) error

	// Records returns all scan records for a system, joined with matched
	// catalog data, ordered by file path.
	Records(ctx context.Context, systemID int64) ([]*Record, error)

	// RecordsByStatus returns a system's records with the given status.
	// When visibleCRCs is non-nil, only records whose matched catalog entry
	// carries one of those checksums are returned.
	RecordsByStatus(ctx context.Context, systemID int64, status Status, visibleCRCs map[string]struct{}) ([]*Record, error)

	// RecordByCRC returns the record with the given checksum, or (nil, nil).
	RecordByCRC(ctx context.Context, systemID int64, crc string) (*Record, error)

	// StatusSummary aggregates record counts per status.
	StatusSummary(ctx context.Context, systemID int64) (Summary, error)

	// Operation log.

	// BeginOperation records the start of a mutating run and returns its ID.
	BeginOperation(ctx context.Context, operation, parameters string, startedAt time.Time) (int64, error)

	// FinishOperation records the outcome of a mutating run.
	FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error

	// Operations returns the most recent operations, newest first.
	Operations(ctx context.Context, limit int) ([]*Operation, error)

	// Close closes the store.
	Close() error
}
