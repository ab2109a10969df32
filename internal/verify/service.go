package verify

import (
	"context"
	"fmt"

	"romplestiltskin/internal/catalog"
)

// Service is the orchestration layer that coordinates catalog import,
// directory scans, and status overrides for the CLI.
type Service struct {
	store  Store
	parser *catalog.Parser
	runner ScanRunner
	logger Logger
	clock  Clock
}

// NewService creates a Service with the provided dependencies.
func NewService(store Store, parser *catalog.Parser, runner ScanRunner, logger Logger, clock Clock) *Service {
	return &Service{
		store:  store,
		parser: parser,
		runner: runner,
		logger: logger,
		clock:  clock,
	}
}

// ImportResult summarizes one catalog document import.
type ImportResult struct {
	SystemName string
	SystemID   int64
	Entries    int
	Skipped    int
}

// ImportCatalogFile parses one catalog document and replaces the matching
// system's entry set.
func (s *Service) ImportCatalogFile(ctx context.Context, path string) (*ImportResult, error) {
	doc, err := s.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}

	systemID, err := s.store.UpsertSystem(ctx, doc.SystemName, path)
	if err != nil {
		return nil, fmt.Errorf("registering system %s: %w", doc.SystemName, err)
	}

	if err := s.store.ReplaceGames(ctx, systemID, doc.Entries); err != nil {
		return nil, fmt.Errorf("storing catalog entries: %w", err)
	}

	s.logger.Info("catalog imported",
		"system", doc.SystemName, "entries", len(doc.Entries), "skipped", doc.Skipped)

	return &ImportResult{
		SystemName: doc.SystemName,
		SystemID:   systemID,
		Entries:    len(doc.Entries),
		Skipped:    doc.Skipped,
	}, nil
}

// ImportCatalogFolder imports every catalog document under dir. A document
// that fails to parse is skipped; the rest still import. Returns
// (documents imported, documents found).
func (s *Service) ImportCatalogFolder(ctx context.Context, dir string, progress ScanProgress) (int, int, error) {
	files, err := catalog.ScanFolder(dir)
	if err != nil {
		return 0, 0, err
	}

	imported := 0
	for i, path := range files {
		if _, err := s.ImportCatalogFile(ctx, path); err != nil {
			s.logger.Warn("catalog import failed", "path", path, "error", err)
		} else {
			imported++
		}
		if progress != nil {
			progress(i+1, len(files))
		}
	}
	return imported, len(files), nil
}

// ScanReport is the outcome of one directory scan.
type ScanReport struct {
	System  *System
	Results []ScanResult
	Missing []*catalog.Entry
}

// ScanDirectory runs the integrity scan of dir against the named system's
// catalog and persists the results, preserving user overrides. The catalog
// index is built once before the scan and is immutable while workers read it.
func (s *Service) ScanDirectory(ctx context.Context, dir, systemName string, progress ScanProgress) (*ScanReport, error) {
	system, err := s.requireSystem(ctx, systemName)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.GamesBySystem(ctx, system.ID)
	if err != nil {
		return nil, fmt.Errorf("loading catalog for %s: %w", systemName, err)
	}
	index := catalog.NewIndex(entries)

	s.logger.Info("scan started", "system", systemName, "dir", dir, "catalog_entries", index.Len())

	results, err := s.runner.Scan(ctx, dir, system.ID, index, progress)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	if err := s.store.ReplaceScanResults(ctx, system.ID, results, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("storing scan results: %w", err)
	}

	missing := missingEntries(entries, results)
	s.logger.Info("scan finished",
		"system", systemName, "files", len(results), "missing", len(missing))

	return &ScanReport{System: system, Results: results, Missing: missing}, nil
}

// missingEntries derives the catalog entries not matched by any correct or
// wrong_filename result. Recomputed per call, never cached.
func missingEntries(entries []*catalog.Entry, results []ScanResult) []*catalog.Entry {
	matched := make(map[string]struct{})
	for _, r := range results {
		if r.Status.Matched() && r.Matched != nil {
			matched[r.Matched.CRC32] = struct{}{}
		}
	}

	var missing []*catalog.Entry
	for _, entry := range entries {
		if _, ok := matched[entry.CRC32]; !ok {
			missing = append(missing, entry)
		}
	}
	return missing
}

// Missing returns the named system's catalog entries that the latest stored
// scan did not positively match.
func (s *Service) Missing(ctx context.Context, systemName string) ([]*catalog.Entry, error) {
	system, err := s.requireSystem(ctx, systemName)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.GamesBySystem(ctx, system.ID)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	records, err := s.store.Records(ctx, system.ID)
	if err != nil {
		return nil, fmt.Errorf("loading scan records: %w", err)
	}

	matched := make(map[string]struct{})
	for _, rec := range records {
		if rec.Status.Matched() && rec.Matched != nil {
			matched[rec.Matched.CRC32] = struct{}{}
		}
	}

	var missing []*catalog.Entry
	for _, entry := range entries {
		if _, ok := matched[entry.CRC32]; !ok {
			missing = append(missing, entry)
		}
	}
	return missing, nil
}

// Duplicates groups the named system's stored records by checksum and
// returns the groups holding more than one file. Broken records are
// excluded; ignored and moved records still count.
func (s *Service) Duplicates(ctx context.Context, systemName string) ([][]*Record, error) {
	system, err := s.requireSystem(ctx, systemName)
	if err != nil {
		return nil, err
	}

	records, err := s.store.Records(ctx, system.ID)
	if err != nil {
		return nil, fmt.Errorf("loading scan records: %w", err)
	}

	groups := make(map[string][]*Record)
	var order []string
	for _, rec := range records {
		if rec.CRC32 == "" || rec.Status == StatusBroken {
			continue
		}
		if _, seen := groups[rec.CRC32]; !seen {
			order = append(order, rec.CRC32)
		}
		groups[rec.CRC32] = append(groups[rec.CRC32], rec)
	}

	var duplicates [][]*Record
	for _, crc := range order {
		if group := groups[crc]; len(group) > 1 {
			duplicates = append(duplicates, group)
		}
	}
	return duplicates, nil
}

// Summary returns per-status record counts for the named system.
func (s *Service) Summary(ctx context.Context, systemName string) (Summary, error) {
	system, err := s.requireSystem(ctx, systemName)
	if err != nil {
		return Summary{}, err
	}
	return s.store.StatusSummary(ctx, system.ID)
}

// Records returns all stored records for the named system.
func (s *Service) Records(ctx context.Context, systemName string) ([]*Record, error) {
	system, err := s.requireSystem(ctx, systemName)
	if err != nil {
		return nil, err
	}
	return s.store.Records(ctx, system.ID)
}

// RecordsByStatus returns the named system's records with the given status.
func (s *Service) RecordsByStatus(ctx context.Context, systemName string, status Status) ([]*Record, error) {
	system, err := s.requireSystem(ctx, systemName)
	if err != nil {
		return nil, err
	}
	return s.store.RecordsByStatus(ctx, system.ID, status, nil)
}

// Ignore marks the selected record as ignored, remembering its prior status.
// A checksum that names a catalog entry with no scan record gets a synthetic
// placeholder, so missing entries can be ignored too.
func (s *Service) Ignore(ctx context.Context, systemName string, key Key) error {
	system, err := s.requireSystem(ctx, systemName)
	if err != nil {
		return err
	}
	if key.IsZero() {
		return ErrInvalidKey
	}

	if key.FilePath == "" && key.CRC32 != "" {
		record, err := s.store.RecordByCRC(ctx, system.ID, key.CRC32)
		if err != nil {
			return err
		}
		if record == nil {
			// No scanned file carries this checksum: the user is ignoring a
			// missing catalog entry. Track it as a placeholder.
			size := int64(0)
			entries, err := s.store.GamesBySystem(ctx, system.ID)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if entry.CRC32 == key.CRC32 {
					size = entry.Size
					break
				}
			}
			if err := s.store.AddPlaceholder(ctx, system.ID, StatusIgnored, key.CRC32, size, StatusMissing, s.clock.Now()); err != nil {
				return fmt.Errorf("tracking ignored entry: %w", err)
			}
			s.logger.Info("missing entry ignored", "system", systemName, "crc", key.CRC32)
			return nil
		}
	}

	if err := s.store.Ignore(ctx, system.ID, key); err != nil {
		return err
	}
	s.logger.Info("record ignored", "system", systemName, "path", key.FilePath, "crc", key.CRC32)
	return nil
}

// Unignore restores the selected record to the status it held before being
// ignored. Not-ignored records are left untouched.
func (s *Service) Unignore(ctx context.Context, systemName string, key Key) error {
	system, err := s.requireSystem(ctx, systemName)
	if err != nil {
		return err
	}
	if err := s.store.Unignore(ctx, system.ID, key); err != nil {
		return err
	}
	s.logger.Info("record restored", "system", systemName, "path", key.FilePath, "crc", key.CRC32)
	return nil
}

// Rename re-paths a record after the caller renamed the file on disk. The
// record's status is unchanged; re-asserting correctness is a fresh scan's
// job.
func (s *Service) Rename(ctx context.Context, systemName, oldPath, newPath string) error {
	system, err := s.requireSystem(ctx, systemName)
	if err != nil {
		return err
	}
	return s.store.UpdateFilePath(ctx, system.ID, oldPath, newPath)
}

// Systems returns all known systems.
func (s *Service) Systems(ctx context.Context) ([]*System, error) {
	return s.store.Systems(ctx)
}

// DeleteSystem removes the named system with its catalog and scan records.
func (s *Service) DeleteSystem(ctx context.Context, systemName string) error {
	system, err := s.requireSystem(ctx, systemName)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSystem(ctx, system.ID); err != nil {
		return fmt.Errorf("deleting system %s: %w", systemName, err)
	}
	s.logger.Info("system deleted", "system", systemName)
	return nil
}

// History returns the most recent recorded operations.
func (s *Service) History(ctx context.Context, limit int) ([]*Operation, error) {
	return s.store.Operations(ctx, limit)
}

// requireSystem resolves a system by name, failing when it is unknown.
func (s *Service) requireSystem(ctx context.Context, name string) (*System, error) {
	system, err := s.store.SystemByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up system %s: %w", name, err)
	}
	if system == nil {
		return nil, fmt.Errorf("system not imported: %s", name)
	}
	return system, nil
}
