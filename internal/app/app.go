package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"romplestiltskin/internal/catalog"
	"romplestiltskin/internal/checksum"
	"romplestiltskin/internal/config"
	"romplestiltskin/internal/scanner"
	"romplestiltskin/internal/store"
	"romplestiltskin/internal/verify"
)

// App is the application layer between the CLI and the verify service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the DB lifecycle on Close.
type App struct {
	cfg     *config.Config
	store   verify.Store
	service *verify.Service
	clock   verify.Clock
	op      *runOperation
	logFile *os.File
}

// New creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Import", "Scan").
// The caller must call Close when done.
func New(cfg *config.Config, operation, parameters string) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "romple.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := st.CheckMigrations(); err != nil {
		st.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	runID := uuid.NewString()[:8]
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	engine := &checksum.Engine{ChunkSize: int64(cfg.Scan.ChunkSizeMB) << 20}
	sc := scanner.New(engine, scanner.Policy{
		Workers:             cfg.Scan.WorkerCount,
		SimilarityThreshold: cfg.Scan.SimilarityThreshold,
	})

	clock := verify.RealClock{}
	parser := catalog.NewParser(logger)
	svc := verify.NewService(st, parser, sc, &slogAdapter{l: logger}, clock)

	return &App{
		cfg:     cfg,
		store:   st,
		service: svc,
		clock:   clock,
		op:      newRunOperation(operation, parameters, clock.Now().UTC()),
		logFile: logFile,
	}, nil
}

// persistOperation saves the operation to the database, giving it an
// auto-increment ID. This should only be called for DB-mutating commands.
func (a *App) persistOperation(ctx context.Context) error {
	if a.op.persisted() {
		return nil // already persisted
	}
	id, err := a.store.BeginOperation(ctx, a.op.Name, a.op.Parameters, a.op.StartedAt)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = id
	return nil
}

// Import loads catalog documents from the given path. A directory imports
// every document it contains; a file imports just that document. Returns
// (documents imported, documents found).
func (a *App) Import(ctx context.Context, rawPath string, progress verify.ScanProgress) (int, int, error) {
	if err := a.persistOperation(ctx); err != nil {
		return 0, 0, err
	}
	path, err := filepath.Abs(rawPath)
	if err != nil {
		return 0, 0, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("inspecting %s: %w", path, err)
	}
	if info.IsDir() {
		return a.service.ImportCatalogFolder(ctx, path, progress)
	}
	if _, err := a.service.ImportCatalogFile(ctx, path); err != nil {
		return 0, 1, err
	}
	return 1, 1, nil
}

// Scan verifies the ROM files under the given directory against the named
// system's catalog and stores the results.
func (a *App) Scan(ctx context.Context, rawDir, systemName string, progress verify.ScanProgress) (*verify.ScanReport, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(rawDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return a.service.ScanDirectory(ctx, dir, systemName, progress)
}

// Summary returns per-status record counts for the named system.
func (a *App) Summary(ctx context.Context, systemName string) (verify.Summary, error) {
	return a.service.Summary(ctx, systemName)
}

// Records returns the named system's stored scan records, optionally
// filtered to one status.
func (a *App) Records(ctx context.Context, systemName string, status verify.Status) ([]*verify.Record, error) {
	if status == "" {
		return a.service.Records(ctx, systemName)
	}
	return a.service.RecordsByStatus(ctx, systemName, status)
}

// Missing returns the named system's catalog entries with no matched file.
func (a *App) Missing(ctx context.Context, systemName string) ([]*catalog.Entry, error) {
	return a.service.Missing(ctx, systemName)
}

// Duplicates returns groups of stored records sharing a checksum.
func (a *App) Duplicates(ctx context.Context, systemName string) ([][]*verify.Record, error) {
	return a.service.Duplicates(ctx, systemName)
}

// Ignore overrides the selected record to ignored.
func (a *App) Ignore(ctx context.Context, systemName string, key verify.Key) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	return a.service.Ignore(ctx, systemName, key)
}

// Unignore restores the selected record to its pre-ignore status.
func (a *App) Unignore(ctx context.Context, systemName string, key verify.Key) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	return a.service.Unignore(ctx, systemName, key)
}

// Rename re-paths a record after the caller renamed the file on disk.
func (a *App) Rename(ctx context.Context, systemName, oldPath, newPath string) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	oldAbs, err := filepath.Abs(oldPath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	newAbs, err := filepath.Abs(newPath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	return a.service.Rename(ctx, systemName, oldAbs, newAbs)
}

// Systems returns all imported systems.
func (a *App) Systems(ctx context.Context) ([]*verify.System, error) {
	return a.service.Systems(ctx)
}

// DeleteSystem removes the named system with its catalog and scan records.
func (a *App) DeleteSystem(ctx context.Context, systemName string) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	return a.service.DeleteSystem(ctx, systemName)
}

// History returns the most recent recorded operations.
func (a *App) History(ctx context.Context, limit int) ([]*verify.Operation, error) {
	return a.service.History(ctx, limit)
}

// Fail marks the tracked operation as failed; Close records the outcome.
func (a *App) Fail() {
	a.op.fail()
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.persisted() {
		if err := a.store.FinishOperation(context.Background(), a.op.ID, a.op.Status, a.clock.Now().UTC()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.store.Close(); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
