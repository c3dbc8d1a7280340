package search_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/search"
	"github.com/tessaro/memopipe/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seed(t *testing.T, ms *store.MemoryStore, id, content string, category models.Category, importance int, age time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, ms.Write(context.Background(), models.Memory{
		ID:              id,
		Content:         content,
		Category:        category,
		Confidence:      0.8,
		Importance:      importance,
		Timestamp:       now.Add(-age),
		SourceTimestamp: now.Add(-age),
		Provenance:      models.Provenance{ContactID: "alice"},
		Visibility:      models.VisibilityPrivate,
	}))
}

func newSearcher(ms *store.MemoryStore) *search.Searcher {
	return search.New(ms, search.DefaultWeights(), testLogger())
}

func TestSearchMatchesQueryTerms(t *testing.T) {
	ms := store.NewMemoryStore(true)
	seed(t, ms, "m1", "quarterly budget report for the finance team", models.CategoryGeneral, 5, time.Hour)
	seed(t, ms, "m2", "vacation plans for the summer", models.CategoryGeneral, 5, time.Hour)

	results, err := newSearcher(ms).Search(context.Background(), "alice", "budget report", nil, 2, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].Memory.ID)
	assert.InDelta(t, 1.0, results[0].TermScore, 1e-9)
}

func TestSearchRanksRecencyAndImportance(t *testing.T) {
	ms := store.NewMemoryStore(true)
	seed(t, ms, "old-minor", "budget discussion", models.CategoryGeneral, 2, 60*24*time.Hour)
	seed(t, ms, "fresh-major", "budget discussion", models.CategoryGeneral, 9, time.Hour)

	results, err := newSearcher(ms).Search(context.Background(), "alice", "budget", nil, 2, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "fresh-major", results[0].Memory.ID)
}

func TestSearchSecurityCap(t *testing.T) {
	ms := store.NewMemoryStore(true)
	seed(t, ms, "m1", "budget notes", models.CategoryGeneral, 5, time.Hour)
	seed(t, ms, "m2", "budget of the hidden account", models.CategoryConfidential, 5, time.Hour)

	results, err := newSearcher(ms).Search(context.Background(), "alice", "budget", nil, 2, 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "level-3 content is excluded under the default cap")
	assert.Equal(t, "m1", results[0].Memory.ID)

	results, err = newSearcher(ms).Search(context.Background(), "alice", "budget", nil, 3, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2, "raising the cap opts in to confidential content")
}

func TestSearchExcludesTombstones(t *testing.T) {
	ms := store.NewMemoryStore(true)
	seed(t, ms, "m1", "budget notes", models.CategoryGeneral, 5, time.Hour)
	require.NoError(t, ms.SetVisibility(context.Background(), "m1", models.VisibilityArchived))

	results, err := newSearcher(ms).Search(context.Background(), "alice", "budget", nil, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchLimit(t *testing.T) {
	ms := store.NewMemoryStore(true)
	for _, id := range []string{"m1", "m2", "m3", "m4"} {
		seed(t, ms, id, "budget item "+id, models.CategoryGeneral, 5, time.Hour)
	}

	results, err := newSearcher(ms).Search(context.Background(), "alice", "budget", nil, 2, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchCategoryFilter(t *testing.T) {
	ms := store.NewMemoryStore(true)
	seed(t, ms, "m1", "budget notes", models.CategoryGeneral, 5, time.Hour)
	seed(t, ms, "m2", "budget meeting tomorrow", models.CategoryChronological, 5, time.Hour)

	results, err := newSearcher(ms).Search(context.Background(), "alice", "budget",
		[]models.Category{models.CategoryChronological}, 2, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m2", results[0].Memory.ID)
}
