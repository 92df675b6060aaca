// Package state persists preprocessing runs in SQLite so include traces
// can be answered after the source files have changed or disappeared.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/stanfront/pkg/preproc"
)

// ErrRunNotFound is returned when a run id or root has no recorded run.
var ErrRunNotFound = errors.New("run not found")

// Run is a recorded preprocessing run.
type Run struct {
	ID         string    `json:"id"`
	Root       string    `json:"root"`
	SearchPath []string  `json:"search_path"`
	LineCount  int       `json:"line_count"`
	Sources    []string  `json:"sources,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store records preprocessing runs and replays their histories.
type Store interface {
	// SaveRun records a run of root and its event history.
	SaveRun(ctx context.Context, root string, searchPath []string, history preproc.History, sources []string) (*Run, error)
	// GetRun returns the run with the given id.
	GetRun(ctx context.Context, id string) (*Run, error)
	// LoadHistory returns the validated history of a run.
	LoadHistory(ctx context.Context, id string) (preproc.History, error)
	// ListRuns returns recorded runs, newest first. A limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	// LatestRun returns the most recent run of root.
	LatestRun(ctx context.Context, root string) (*Run, error)
	// DeleteRun removes a run and its events.
	DeleteRun(ctx context.Context, id string) error
	Close() error
}
