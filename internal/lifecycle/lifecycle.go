// Package lifecycle implements the tombstone model of memory retirement:
// memories are never physically deleted, because contact/topic indices hold
// cross-references by id. An archival sweep flips stale chronological
// memories to archived visibility instead.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tessaro/memopipe/internal/metrics"
	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/store"
)

// Report summarizes the results of a lifecycle run.
type Report struct {
	Scanned    int `json:"scanned"`
	Tombstoned int `json:"tombstoned"`
}

// Manager handles memory archival.
type Manager struct {
	st     store.Store
	logger *slog.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(st store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{st: st, logger: logger}
}

// Archive tombstones chronological memories for the contact whose source
// timestamp is older than maxAge. Security-tier and action-item memories are
// never auto-archived. With dryRun set nothing is written.
func (m *Manager) Archive(ctx context.Context, contactID string, maxAge time.Duration, dryRun bool) (*Report, error) {
	memories, err := m.st.ReadPartition(ctx, models.CategoryChronological, contactID, false)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: listing chronological memories: %w", err)
	}

	report := &Report{Scanned: len(memories)}
	cutoff := time.Now().UTC().Add(-maxAge)

	for i := range memories {
		mem := &memories[i]
		ts := mem.SourceTimestamp
		if ts.IsZero() {
			ts = mem.Timestamp
		}
		if !ts.Before(cutoff) {
			continue
		}

		m.logger.Info("tombstoning stale memory", "id", mem.ID, "source_timestamp", ts, "dry_run", dryRun)
		if !dryRun {
			if err := m.st.SetVisibility(ctx, mem.ID, models.VisibilityArchived); err != nil {
				m.logger.Error("lifecycle: tombstoning failed", "id", mem.ID, "error", err)
				continue
			}
			metrics.Inc(metrics.LifecycleTombstoned)
		}
		report.Tombstoned++
	}

	return report, nil
}

// Restore flips an archived memory back to private visibility.
func (m *Manager) Restore(ctx context.Context, id string) error {
	mem, err := m.st.Get(ctx, id)
	if err != nil {
		return err
	}
	if !mem.IsTombstoned() {
		return fmt.Errorf("lifecycle: memory %s is not archived", id)
	}
	return m.st.SetVisibility(ctx, id, models.VisibilityPrivate)
}
