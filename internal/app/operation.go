package app

import "time"

// Operation outcomes recorded in the history table.
const (
	opStatusSuccess = "success"
	opStatusError   = "error"
)

// runOperation is the history entry for one CLI invocation. Every command
// tracks one in memory; only commands that mutate the database persist it,
// which assigns the database ID.
type runOperation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string
	StartedAt  time.Time
}

func newRunOperation(name, parameters string, startedAt time.Time) *runOperation {
	return &runOperation{
		Name:       name,
		Parameters: parameters,
		Status:     opStatusSuccess,
		StartedAt:  startedAt,
	}
}

// persisted reports whether the operation has been written to the database.
func (op *runOperation) persisted() bool {
	return op.ID != 0
}

func (op *runOperation) fail() {
	op.Status = opStatusError
}
