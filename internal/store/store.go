// Package store provides persistence for finished-run history.
package store

import (
	"context"

	"github.com/applyflow/agent-relay/internal/domain"
)

// Repository defines the interface for archiving and listing finished runs.
// The live relay state stays in memory; the archive is history only.
type Repository interface {
	// SaveRun records the summary of a finished session.
	SaveRun(ctx context.Context, run *domain.RunRecord) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
