package verify

import (
	"context"
	"time"

	"romplestiltskin/internal/catalog"
)

// Logger is the minimal structured logging surface the service needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// ScanProgress reports scan completion as (filesCompleted, totalFiles).
// It may be called concurrently from the scan collector.
type ScanProgress func(completed, total int)

// ScanRunner runs the per-directory integrity scan. Implemented by the
// scanner package; an interface here so the service can be tested against a
// fake.
type ScanRunner interface {
	Scan(ctx context.Context, dir string, systemID int64, index *catalog.Index, progress ScanProgress) ([]ScanResult, error)
}

// Operation is one recorded mutating CLI run.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
	StartedAt  time.Time
	FinishedAt *time.Time
}
