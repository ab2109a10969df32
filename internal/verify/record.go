package verify

import (
	"strings"
	"time"

	"romplestiltskin/internal/catalog"
)

// placeholderPrefix marks records that never had a real file behind them,
// such as catalog entries tracked while missing.
const placeholderPrefix = "missing_"

// PlaceholderPath builds the synthetic file path for a catalog entry with no
// local file.
func PlaceholderPath(crc string) string {
	return placeholderPrefix + crc
}

// IsPlaceholderPath reports whether a file path is a synthetic placeholder.
func IsPlaceholderPath(path string) bool {
	return strings.HasPrefix(path, placeholderPrefix)
}

// ScanResult is the scanner's classification of one local file at scan time.
type ScanResult struct {
	FilePath string
	FileSize int64
	// CRC32 is empty when the file was unreadable.
	CRC32  string
	Status Status
	// Matched references the catalog entry this file was matched to, when any.
	Matched *catalog.Entry
	// SimilarityScore is only meaningful for fuzzy matches.
	SimilarityScore float64
	ErrorMessage    string
}

// Record is a persisted scan result, joined with its matched catalog entry
// when one exists.
type Record struct {
	ID       int64
	SystemID int64
	FilePath string
	FileSize int64
	CRC32    string // empty when unknown
	Status   Status
	// MatchedGameID is nil when the record matched nothing.
	MatchedGameID   *int64
	SimilarityScore float64
	ErrorMessage    string
	// OriginalStatus is set while Status is ignored: the status held
	// immediately before the ignore override.
	OriginalStatus Status
	ScanTimestamp  time.Time

	// Matched is the joined catalog entry, populated by listing queries.
	Matched *catalog.Entry
}

// System is a platform grouping that owns a catalog entry set and a scan
// result set.
type System struct {
	ID          int64
	Name        string
	CatalogPath string
	GameCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Summary aggregates per-status record counts for one system.
type Summary struct {
	Total  int
	Counts map[Status]int
}

// Count returns the number of records with the given status.
func (s Summary) Count(status Status) int {
	if s.Counts == nil {
		return 0
	}
	return s.Counts[status]
}
