package pipeline_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessaro/memopipe/internal/audit"
	"github.com/tessaro/memopipe/internal/classifier"
	"github.com/tessaro/memopipe/internal/composer"
	"github.com/tessaro/memopipe/internal/extractor"
	"github.com/tessaro/memopipe/internal/linker"
	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/pipeline"
	"github.com/tessaro/memopipe/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestPipeline(t *testing.T, st store.Store, notifier *audit.Notifier) *pipeline.Pipeline {
	t.Helper()
	logger := testLogger()
	index, err := linker.NewRecentIndex(16, 8)
	require.NoError(t, err)
	saver := store.NewSaver(st, nil, 0, time.Millisecond, logger)
	return pipeline.New(
		classifier.NewService(nil, logger),
		extractor.New(logger),
		composer.New(logger),
		saver,
		st,
		linker.New(st, saver, logger),
		index,
		notifier,
		logger,
	)
}

func request(id, text string) pipeline.Request {
	return pipeline.Request{
		Utterances: []models.Utterance{{
			ID:        id,
			Text:      text,
			Timestamp: time.Now().UTC(),
		}},
		Source:    "test",
		ContactID: "alice",
	}
}

func TestProcessEndToEnd(t *testing.T) {
	ms := store.NewMemoryStore(true)
	p := newTestPipeline(t, ms, nil)
	ctx := context.Background()

	result, err := p.Process(ctx, request("u1", "Remember that @john will send the budget report by tomorrow."))
	require.NoError(t, err)

	assert.True(t, result.Stored)
	assert.False(t, result.Queued)
	assert.Equal(t, models.CategoryActionItems, result.Memory.Category,
		"general content carrying action items lands in the action partition")
	require.NotEmpty(t, result.Memory.ActionItems)
	assert.Equal(t, "john", result.Memory.ActionItems[0].Assignee)

	stored, err := ms.Get(ctx, result.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, result.Memory.Content, stored.Content)
}

func TestProcessRejectsEmptyBatch(t *testing.T) {
	p := newTestPipeline(t, store.NewMemoryStore(true), nil)

	_, err := p.Process(context.Background(), pipeline.Request{ContactID: "alice"})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "utterances", verr.Field)
}

func TestProcessRejectsSecretContentOnPlainChannel(t *testing.T) {
	// Enough secret keywords that the local classifier clears the 0.90
	// threshold and the classification is not downgraded.
	text := "This is a secret: don't tell anyone the password or the pin code or the account number, keep this quiet, just between us, the combination stays hidden."

	p := newTestPipeline(t, store.NewMemoryStore(false), nil)
	_, err := p.Process(context.Background(), request("u1", text))

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category", verr.Field)
}

func TestProcessDeduplicatesRepeatedContent(t *testing.T) {
	ms := store.NewMemoryStore(true)
	p := newTestPipeline(t, ms, nil)
	ctx := context.Background()

	text := "Maria prefers the morning slot for the weekly review"

	first, err := p.Process(ctx, request("u1", text))
	require.NoError(t, err)
	require.False(t, first.Merged)

	second, err := p.Process(ctx, request("u2", text))
	require.NoError(t, err)
	assert.True(t, second.Merged)
	assert.Equal(t, first.MemoryID, second.MemoryID, "the duplicate merges into the existing record")

	stats, err := ms.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalMemories)

	stored, err := ms.Get(ctx, first.MemoryID)
	require.NoError(t, err)
	require.Len(t, stored.Corrections, 1, "the merge leaves a correction entry")
	assert.ElementsMatch(t, []string{"u1", "u2"}, stored.UtteranceIDs)
}

func TestProcessLinksRelatedMemories(t *testing.T) {
	ms := store.NewMemoryStore(true)
	p := newTestPipeline(t, ms, nil)
	ctx := context.Background()

	first, err := p.Process(ctx, request("u1", "Had lunch with John Smith at the harbor"))
	require.NoError(t, err)

	second, err := p.Process(ctx, request("u2", "John Smith recommended a sailing club"))
	require.NoError(t, err)

	require.NotEmpty(t, second.Relations, "shared person entity should produce a relation")
	assert.Equal(t, first.MemoryID, second.Relations[0].MemoryID)
	assert.Equal(t, models.RelationPerson, second.Relations[0].Type)

	reverse, err := ms.Get(ctx, first.MemoryID)
	require.NoError(t, err)
	assert.True(t, reverse.HasRelated(second.MemoryID))
}

func TestProcessWarmsIndexFromStore(t *testing.T) {
	ms := store.NewMemoryStore(true)
	ctx := context.Background()

	// First pipeline instance stores a memory, then goes away.
	p1 := newTestPipeline(t, ms, nil)
	text := "Maria prefers the morning slot for the weekly review"
	first, err := p1.Process(ctx, request("u1", text))
	require.NoError(t, err)

	// A fresh pipeline with an empty index must still see the duplicate.
	p2 := newTestPipeline(t, ms, nil)
	second, err := p2.Process(ctx, request("u2", text))
	require.NoError(t, err)
	assert.True(t, second.Merged)
	assert.Equal(t, first.MemoryID, second.MemoryID)
}

func TestProcessPublishesAuditEvents(t *testing.T) {
	notifier := audit.NewNotifier(4, testLogger())
	defer notifier.Close()

	p := newTestPipeline(t, store.NewMemoryStore(true), notifier)

	result, err := p.Process(context.Background(), request("u1", "Maria prefers tea over coffee"))
	require.NoError(t, err)

	select {
	case e := <-notifier.Events():
		assert.Equal(t, result.MemoryID, e.MemoryID)
		assert.Equal(t, result.Memory.Category, e.Category)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected an audit event")
	}
}
