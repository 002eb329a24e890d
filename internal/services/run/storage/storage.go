// Package storage defines the persisted shapes of a run and the read
// contracts the transport depends on.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/transition"
)

// Snapshot is the latest stored state of a run.
type Snapshot struct {
	RunID     string
	State     transition.State
	UpdatedAt time.Time
}

// Transition is one journal row.
type Transition struct {
	RunID      string
	Seq        uint64
	Cause      string
	Role       string
	ActorID    string
	From       progress.Phase
	To         progress.Phase
	Effects    []action.Action
	RecordedAt time.Time
}

// SnapshotLoader returns every stored run.
type SnapshotLoader interface {
	LoadSnapshots(ctx context.Context) ([]Snapshot, error)
}

// Journal reads the transition history of a run.
type Journal interface {
	// ListTransitions returns up to limit rows from fromSeq on, oldest first.
	ListTransitions(ctx context.Context, runID string, fromSeq uint64, limit int) ([]Transition, error)
}
