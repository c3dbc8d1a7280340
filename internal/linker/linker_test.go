package linker_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessaro/memopipe/internal/linker"
	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newLinker(st store.Store) *linker.Linker {
	saver := store.NewSaver(st, nil, 0, time.Millisecond, testLogger())
	return linker.New(st, saver, testLogger())
}

func memoryWithPerson(id, person string, ts time.Time) models.Memory {
	return models.Memory{
		ID:       id,
		Content:  "talked with " + person,
		Category: models.CategoryGeneral,
		Entities: []models.Entity{{
			ID: id + "-e1", Type: models.EntityTypePerson,
			CanonicalName: person, RawValue: person, Confidence: 0.8,
		}},
		Timestamp:       ts,
		SourceTimestamp: ts,
		Confidence:      0.8,
		Importance:      5,
		Provenance:      models.Provenance{ContactID: "alice"},
		Visibility:      models.VisibilityPrivate,
	}
}

func TestLinkCreatesBidirectionalRelation(t *testing.T) {
	ms := store.NewMemoryStore(false)
	lnk := newLinker(ms)
	ctx := context.Background()

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	existing := memoryWithPerson("m1", "John Smith", ts.Add(-30*24*time.Hour))
	require.NoError(t, ms.Write(ctx, existing))

	mem := memoryWithPerson("m2", "John Smith", ts)
	relations, err := lnk.Link(ctx, &mem, []string{"m1"})
	require.NoError(t, err)
	require.Len(t, relations, 1)

	assert.Equal(t, "m1", relations[0].MemoryID)
	assert.Equal(t, models.RelationPerson, relations[0].Type)
	assert.InDelta(t, 1.0, relations[0].Score, 1e-9)
	assert.True(t, mem.HasRelated("m1"))

	reverse, err := ms.Get(ctx, "m1")
	require.NoError(t, err)
	require.True(t, reverse.HasRelated("m2"), "the candidate gains the reverse relation")
	require.Len(t, reverse.Relations, 1)
	assert.Equal(t, models.RelationPerson, reverse.Relations[0].Type)
}

func TestLinkDropsDanglingCandidates(t *testing.T) {
	ms := store.NewMemoryStore(false)
	lnk := newLinker(ms)
	ctx := context.Background()

	ts := time.Now().UTC()
	existing := memoryWithPerson("m1", "John Smith", ts)
	require.NoError(t, ms.Write(ctx, existing))

	mem := memoryWithPerson("m2", "John Smith", ts)
	relations, err := lnk.Link(ctx, &mem, []string{"gone-1", "m1", "gone-2"})
	require.NoError(t, err, "dangling ids are dropped, never fatal")
	require.Len(t, relations, 1)
	assert.Equal(t, "m1", relations[0].MemoryID)
}

// flakyWriteStore fails the next N writes, then behaves normally.
type flakyWriteStore struct {
	*store.MemoryStore
	failures int
}

func (f *flakyWriteStore) Write(ctx context.Context, m models.Memory) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("transient write failure")
	}
	return f.MemoryStore.Write(ctx, m)
}

// Reverse-relation updates carry the same retry and pending-queue policy as
// the initial save; a transient store failure must not leave the
// bidirectional link half-applied.
func TestLinkReverseRelationSurvivesTransientFailure(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("retried", func(t *testing.T) {
		fs := &flakyWriteStore{MemoryStore: store.NewMemoryStore(false)}
		require.NoError(t, fs.Write(ctx, memoryWithPerson("m1", "John Smith", ts)))

		saver := store.NewSaver(fs, nil, 2, time.Millisecond, testLogger())
		lnk := linker.New(fs, saver, testLogger())

		fs.failures = 1
		mem := memoryWithPerson("m2", "John Smith", ts)
		relations, err := lnk.Link(ctx, &mem, []string{"m1"})
		require.NoError(t, err)
		require.Len(t, relations, 1)

		reverse, err := fs.Get(ctx, "m1")
		require.NoError(t, err)
		assert.True(t, reverse.HasRelated("m2"), "the retry applies the reverse relation")
	})

	t.Run("queued and replayed", func(t *testing.T) {
		fs := &flakyWriteStore{MemoryStore: store.NewMemoryStore(false)}
		require.NoError(t, fs.Write(ctx, memoryWithPerson("m1", "John Smith", ts)))

		queue := store.NewPendingQueue(filepath.Join(t.TempDir(), "pending.jsonl"), testLogger())
		saver := store.NewSaver(fs, queue, 0, time.Millisecond, testLogger())
		lnk := linker.New(fs, saver, testLogger())

		fs.failures = 1
		mem := memoryWithPerson("m2", "John Smith", ts)
		_, err := lnk.Link(ctx, &mem, []string{"m1"})
		require.NoError(t, err)

		reverse, err := fs.Get(ctx, "m1")
		require.NoError(t, err)
		require.False(t, reverse.HasRelated("m2"), "the failed write waits in the queue")

		replayed, err := queue.Replay(ctx, fs)
		require.NoError(t, err)
		assert.Equal(t, 1, replayed)

		reverse, err = fs.Get(ctx, "m1")
		require.NoError(t, err)
		assert.True(t, reverse.HasRelated("m2"), "replay completes the bidirectional link")
	})
}

func TestLinkBelowThresholdCreatesNothing(t *testing.T) {
	ms := store.NewMemoryStore(false)
	lnk := newLinker(ms)
	ctx := context.Background()

	ts := time.Now().UTC()
	existing := memoryWithPerson("m1", "John Smith", ts.Add(-60*24*time.Hour))
	require.NoError(t, ms.Write(ctx, existing))

	// Different person, far apart in time, nothing thematic in common.
	mem := memoryWithPerson("m2", "Maria Lopez", ts)
	relations, err := lnk.Link(ctx, &mem, []string{"m1"})
	require.NoError(t, err)
	assert.Empty(t, relations)
	assert.Empty(t, mem.RelatedIDs)
}

// Person and thematic dimensions can score identically; the person dimension
// must win the tie.
func TestLinkTieBreaksByPriority(t *testing.T) {
	ms := store.NewMemoryStore(false)
	lnk := newLinker(ms)
	ctx := context.Background()

	ts := time.Now().UTC()
	existing := memoryWithPerson("m1", "John Smith", ts.Add(-30*24*time.Hour))
	existing.Keywords = []string{"migration"}
	require.NoError(t, ms.Write(ctx, existing))

	mem := memoryWithPerson("m2", "John Smith", ts)
	mem.Keywords = []string{"migration"}

	relations, err := lnk.Link(ctx, &mem, []string{"m1"})
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, models.RelationPerson, relations[0].Type)
}

func TestLinkTemporalRelation(t *testing.T) {
	ms := store.NewMemoryStore(false)
	lnk := newLinker(ms)
	ctx := context.Background()

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	existing := memoryWithPerson("m1", "John Smith", ts)
	existing.Entities = nil
	require.NoError(t, ms.Write(ctx, existing))

	mem := memoryWithPerson("m2", "Maria Lopez", ts.Add(30*time.Minute))
	mem.Entities = nil

	relations, err := lnk.Link(ctx, &mem, []string{"m1"})
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, models.RelationTemporal, relations[0].Type)
	assert.InDelta(t, 1.0, relations[0].Score, 1e-9)
}

func TestDedupeMergesByUtteranceOverlap(t *testing.T) {
	lnk := newLinker(store.NewMemoryStore(false))

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	base := memoryWithPerson("m1", "John Smith", ts)
	base.UtteranceIDs = []string{"u1", "u2"}
	base.Entities = append(base.Entities, models.Entity{
		ID: "m1-e2", Type: models.EntityTypeDate, CanonicalName: "tomorrow", RawValue: "tomorrow", Confidence: 0.8,
	})
	base.ActionItems = []models.ActionItem{{ID: "a1", Title: "send report", Status: models.StatusInProgress, Priority: models.PriorityMedium}}

	dup := memoryWithPerson("m2", "John Smith", ts.Add(time.Hour))
	dup.UtteranceIDs = []string{"u2", "u3"}
	dup.ActionItems = []models.ActionItem{
		{ID: "a2", Title: "send report", Status: models.StatusPending, Priority: models.PriorityMedium},
		{ID: "a3", Title: "book the flight", Status: models.StatusPending, Priority: models.PriorityMedium},
	}

	merged, wasMerged := lnk.Dedupe(dup, []models.Memory{base})
	require.True(t, wasMerged)

	assert.Equal(t, "m1", merged.ID, "the existing record's id survives")
	assert.Len(t, merged.Entities, 2, "overlapping entities union, not duplicate")
	require.Len(t, merged.ActionItems, 2)
	assert.Equal(t, models.StatusInProgress, merged.ActionItems[0].Status,
		"the earlier item's user-driven status survives the merge")
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, merged.UtteranceIDs)
	assert.Equal(t, ts, merged.Timestamp, "earlier timestamp is kept")
	assert.Equal(t, ts.Add(time.Hour), merged.SourceTimestamp, "source timestamp advances")

	require.Len(t, merged.Corrections, 1)
	assert.Equal(t, "m2", merged.Corrections[0].MergedID)
}

func TestDedupeMergesNearIdenticalContent(t *testing.T) {
	lnk := newLinker(store.NewMemoryStore(false))

	ts := time.Now().UTC()
	base := memoryWithPerson("m1", "John Smith", ts)
	base.Content = "we agreed to ship the migration next week"
	base.UtteranceIDs = []string{"u1"}

	dup := memoryWithPerson("m2", "John Smith", ts)
	dup.Content = "We agreed to ship the migration next week."
	dup.UtteranceIDs = []string{"u9"}

	_, wasMerged := lnk.Dedupe(dup, []models.Memory{base})
	assert.True(t, wasMerged, "punctuation and casing must not defeat the word-set comparison")
}

func TestDedupeRespectsPartitionBoundaries(t *testing.T) {
	lnk := newLinker(store.NewMemoryStore(false))

	ts := time.Now().UTC()
	base := memoryWithPerson("m1", "John Smith", ts)
	base.UtteranceIDs = []string{"u1"}

	t.Run("different category", func(t *testing.T) {
		dup := memoryWithPerson("m2", "John Smith", ts)
		dup.UtteranceIDs = []string{"u1"}
		dup.Category = models.CategoryChronological
		_, wasMerged := lnk.Dedupe(dup, []models.Memory{base})
		assert.False(t, wasMerged)
	})

	t.Run("different contact", func(t *testing.T) {
		dup := memoryWithPerson("m2", "John Smith", ts)
		dup.UtteranceIDs = []string{"u1"}
		dup.Provenance.ContactID = "bob"
		_, wasMerged := lnk.Dedupe(dup, []models.Memory{base})
		assert.False(t, wasMerged)
	})

	t.Run("tombstoned base", func(t *testing.T) {
		archived := base
		archived.Visibility = models.VisibilityArchived
		dup := memoryWithPerson("m2", "John Smith", ts)
		dup.UtteranceIDs = []string{"u1"}
		_, wasMerged := lnk.Dedupe(dup, []models.Memory{archived})
		assert.False(t, wasMerged, "tombstoned records never absorb new memories")
	})
}

func TestRecentIndex(t *testing.T) {
	ix, err := linker.NewRecentIndex(4, 2)
	require.NoError(t, err)

	ts := time.Now().UTC()
	m1 := memoryWithPerson("m1", "A", ts)
	m2 := memoryWithPerson("m2", "B", ts)
	m3 := memoryWithPerson("m3", "C", ts)

	ix.Remember(m1)
	ix.Remember(m2)
	ix.Remember(m3)

	recent := ix.Recent(models.CategoryGeneral, "alice")
	require.Len(t, recent, 2, "partition depth is bounded")
	assert.Equal(t, "m2", recent[0].ID)
	assert.Equal(t, "m3", recent[1].ID)

	// Re-remembering an id replaces instead of duplicating.
	ix.Remember(m3)
	recent = ix.Recent(models.CategoryGeneral, "alice")
	require.Len(t, recent, 2)
	assert.Equal(t, "m3", recent[1].ID)

	ids := ix.CandidateIDs(models.CategoryGeneral, "alice", "m3")
	assert.Equal(t, []string{"m2"}, ids)

	assert.Empty(t, ix.Recent(models.CategoryChronological, "alice"))
}

func TestRecentIndexWarm(t *testing.T) {
	ix, err := linker.NewRecentIndex(4, 2)
	require.NoError(t, err)

	ts := time.Now().UTC()
	ix.Warm(models.CategoryGeneral, "alice", []models.Memory{
		memoryWithPerson("m1", "A", ts),
		memoryWithPerson("m2", "B", ts),
		memoryWithPerson("m3", "C", ts),
	})

	recent := ix.Recent(models.CategoryGeneral, "alice")
	require.Len(t, recent, 2, "warm keeps only the newest perPartition entries")
	assert.Equal(t, "m2", recent[0].ID)
	assert.Equal(t, "m3", recent[1].ID)
}
