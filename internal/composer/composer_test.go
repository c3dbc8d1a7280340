package composer_test

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessaro/memopipe/internal/classifier"
	"github.com/tessaro/memopipe/internal/composer"
	"github.com/tessaro/memopipe/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func generalClassification() classifier.Classification {
	return classifier.Classification{
		Category:      models.CategoryGeneral,
		Confidence:    0.75,
		Reasoning:     "test",
		SecurityLevel: 1,
	}
}

func batch(texts ...string) []models.Utterance {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	out := make([]models.Utterance, len(texts))
	for i, tx := range texts {
		out[i] = models.Utterance{
			ID:        "u" + string(rune('1'+i)),
			Text:      tx,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestComposeBasics(t *testing.T) {
	c := composer.New(testLogger())

	entities := []models.Entity{{
		ID: "e1", Type: models.EntityTypePerson, CanonicalName: "John Smith",
		RawValue: "John Smith", Confidence: 0.7, UtteranceIDs: []string{"u1"},
	}}

	mem, err := c.Compose(batch("Talked to John Smith.", "He liked the plan."),
		generalClassification(), entities, nil, models.ConversationContext{ConversationID: "c1"},
		models.Provenance{Source: "cli", ContactID: "alice"})
	require.NoError(t, err)

	assert.NotEmpty(t, mem.ID)
	assert.Equal(t, models.CategoryGeneral, mem.Category)
	assert.Equal(t, "Talked to John Smith.\nHe liked the plan.", mem.Content)
	assert.Equal(t, []string{"u1", "u2"}, mem.UtteranceIDs)
	assert.Equal(t, []string{"john smith"}, mem.Keywords)
	assert.Equal(t, composer.ProcessingVersion, mem.Provenance.ProcessingVersion)
	assert.Equal(t, "alice", mem.Provenance.ContactID)
	assert.Equal(t, models.VisibilityPrivate, mem.Visibility)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC), mem.SourceTimestamp,
		"source timestamp is the latest utterance timestamp")
	assert.NoError(t, mem.Validate())
}

func TestComposeRejectsEmptyBatch(t *testing.T) {
	c := composer.New(testLogger())
	_, err := c.Compose(nil, generalClassification(), nil, nil, models.ConversationContext{}, models.Provenance{})
	assert.Error(t, err)
}

func TestComposeRoutesGeneralWithActionsToActionItems(t *testing.T) {
	c := composer.New(testLogger())
	actions := []models.ActionItem{{ID: "a1", Title: "send report", Priority: models.PriorityMedium, Status: models.StatusPending}}

	mem, err := c.Compose(batch("send the report"), generalClassification(), nil, actions,
		models.ConversationContext{}, models.Provenance{ContactID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryActionItems, mem.Category)

	cls := generalClassification()
	cls.Category = models.CategoryConfidential
	cls.SecurityLevel = 3
	mem, err = c.Compose(batch("send the report"), cls, nil, actions,
		models.ConversationContext{}, models.Provenance{ContactID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryConfidential, mem.Category, "security tiers keep their classification")
}

func TestComposeSummaryTruncation(t *testing.T) {
	c := composer.New(testLogger())
	long := strings.Repeat("word ", 50)

	mem, err := c.Compose(batch(long), generalClassification(), nil, nil,
		models.ConversationContext{}, models.Provenance{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(mem.Summary, "..."))
	assert.Len(t, []rune(mem.Summary), 103)

	mem, err = c.Compose(batch("short"), generalClassification(), nil, nil,
		models.ConversationContext{}, models.Provenance{})
	require.NoError(t, err)
	assert.Equal(t, "short", mem.Summary)
}

func TestComposeRoundsConfidence(t *testing.T) {
	c := composer.New(testLogger())
	cls := generalClassification()
	cls.Confidence = 0.85714

	mem, err := c.Compose(batch("anything"), cls, nil, nil, models.ConversationContext{}, models.Provenance{})
	require.NoError(t, err)
	assert.InDelta(t, 0.86, mem.Confidence, 1e-9)
}

func TestComposeImportanceMonotonicity(t *testing.T) {
	c := composer.New(testLogger())

	entity := models.Entity{ID: "e1", Type: models.EntityTypeDate, CanonicalName: "tomorrow", RawValue: "tomorrow", Confidence: 0.8}
	plain := models.ActionItem{ID: "a1", Title: "do it", Priority: models.PriorityMedium, Status: models.StatusPending}
	urgent := models.ActionItem{ID: "a2", Title: "do it now", Priority: models.PriorityHigh, Status: models.StatusPending}

	compose := func(entities []models.Entity, actions []models.ActionItem) int {
		mem, err := c.Compose(batch("anything"), generalClassification(), entities, actions,
			models.ConversationContext{}, models.Provenance{})
		require.NoError(t, err)
		return mem.Importance
	}

	base := compose(nil, nil)
	withEntity := compose([]models.Entity{entity}, nil)
	withAction := compose([]models.Entity{entity}, []models.ActionItem{plain})
	withUrgent := compose([]models.Entity{entity}, []models.ActionItem{plain, urgent})

	assert.GreaterOrEqual(t, withEntity, base)
	assert.GreaterOrEqual(t, withAction, withEntity)
	assert.GreaterOrEqual(t, withUrgent, withAction, "adding a high-priority action never decreases importance")

	for _, imp := range []int{base, withEntity, withAction, withUrgent} {
		assert.GreaterOrEqual(t, imp, 0)
		assert.LessOrEqual(t, imp, 10)
	}
}

func TestComposeDeepCopiesExtractionResults(t *testing.T) {
	c := composer.New(testLogger())

	entities := []models.Entity{{
		ID: "e1", Type: models.EntityTypePerson, CanonicalName: "John Smith",
		RawValue: "John Smith", Confidence: 0.7, UtteranceIDs: []string{"u1"},
	}}
	actions := []models.ActionItem{{
		ID: "a1", Title: "send report", Priority: models.PriorityMedium,
		Status: models.StatusPending, UtteranceIDs: []string{"u1"},
	}}

	mem, err := c.Compose(batch("x"), generalClassification(), entities, actions,
		models.ConversationContext{}, models.Provenance{})
	require.NoError(t, err)

	entities[0].UtteranceIDs[0] = "mutated"
	actions[0].UtteranceIDs[0] = "mutated"
	assert.Equal(t, "u1", mem.Entities[0].UtteranceIDs[0])
	assert.Equal(t, "u1", mem.ActionItems[0].UtteranceIDs[0])
}
