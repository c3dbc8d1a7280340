package lifecycle_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessaro/memopipe/internal/lifecycle"
	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seed(t *testing.T, ms *store.MemoryStore, id string, category models.Category, age time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, ms.Write(context.Background(), models.Memory{
		ID:              id,
		Content:         "memory " + id,
		Category:        category,
		Confidence:      0.8,
		Importance:      5,
		Timestamp:       now.Add(-age),
		SourceTimestamp: now.Add(-age),
		Provenance:      models.Provenance{ContactID: "alice"},
		Visibility:      models.VisibilityPrivate,
	}))
}

func TestArchiveTombstonesStaleMemories(t *testing.T) {
	ms := store.NewMemoryStore(true)
	mgr := lifecycle.NewManager(ms, testLogger())
	ctx := context.Background()

	seed(t, ms, "old", models.CategoryChronological, 120*24*time.Hour)
	seed(t, ms, "fresh", models.CategoryChronological, 24*time.Hour)
	seed(t, ms, "old-secret", models.CategorySecret, 120*24*time.Hour)

	report, err := mgr.Archive(ctx, "alice", 90*24*time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned, "only the chronological partition is swept")
	assert.Equal(t, 1, report.Tombstoned)

	old, err := ms.Get(ctx, "old")
	require.NoError(t, err)
	assert.True(t, old.IsTombstoned())

	fresh, err := ms.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, fresh.IsTombstoned())

	secret, err := ms.Get(ctx, "old-secret")
	require.NoError(t, err)
	assert.False(t, secret.IsTombstoned(), "security tiers are never auto-archived")
}

func TestArchiveDryRun(t *testing.T) {
	ms := store.NewMemoryStore(true)
	mgr := lifecycle.NewManager(ms, testLogger())
	ctx := context.Background()

	seed(t, ms, "old", models.CategoryChronological, 120*24*time.Hour)

	report, err := mgr.Archive(ctx, "alice", 90*24*time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tombstoned)

	old, err := ms.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, old.IsTombstoned(), "dry run must not write")
}

func TestRestore(t *testing.T) {
	ms := store.NewMemoryStore(true)
	mgr := lifecycle.NewManager(ms, testLogger())
	ctx := context.Background()

	seed(t, ms, "m1", models.CategoryChronological, time.Hour)

	err := mgr.Restore(ctx, "m1")
	assert.Error(t, err, "restoring a live memory is an error")

	require.NoError(t, ms.SetVisibility(ctx, "m1", models.VisibilityArchived))
	require.NoError(t, mgr.Restore(ctx, "m1"))

	got, err := ms.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPrivate, got.Visibility)
}
