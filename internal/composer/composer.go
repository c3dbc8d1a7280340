// Package composer merges a classification pass and an extraction pass over
// one utterance batch into a single Memory record.
package composer

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessaro/memopipe/internal/classifier"
	"github.com/tessaro/memopipe/internal/models"
)

// ProcessingVersion is stamped into every memory's provenance so later
// reprocessing can tell which pipeline revision produced a record.
const ProcessingVersion = "2.1"

// summaryLength is the number of leading characters kept in the summary.
const summaryLength = 100

// Importance scoring weights. The formula is deterministic and monotonic in
// each signal: more entities or action items never lower the score.
const (
	importanceBase       = 2
	maxEntityWeight      = 3
	actionPresenceWeight = 1
	urgentActionWeight   = 2
)

var categoryImportanceWeight = map[models.Category]int{
	models.CategoryConfidential: 1,
	models.CategorySecret:       2,
	models.CategoryUltrasecret:  3,
	models.CategoryActionItems:  1,
}

// Composer builds Memory records. It has no side effects; persistence belongs
// to the store layer.
type Composer struct {
	logger *slog.Logger
}

// New creates a composer.
func New(logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{logger: logger}
}

// Compose builds a Memory from one classification and extraction pass. The
// memory deep-copies the entities and action items so it owns them
// exclusively, and always receives a fresh id — reprocessed content gets a
// new record plus a correction entry, never an in-place overwrite.
func (c *Composer) Compose(
	utterances []models.Utterance,
	cls classifier.Classification,
	entities []models.Entity,
	actions []models.ActionItem,
	convCtx models.ConversationContext,
	prov models.Provenance,
) (models.Memory, error) {
	if len(utterances) == 0 {
		return models.Memory{}, fmt.Errorf("composer: no utterances to compose")
	}

	content := joinContent(utterances)
	category := resolveCategory(cls.Category, actions)

	now := time.Now().UTC()
	prov.ProcessingVersion = ProcessingVersion

	mem := models.Memory{
		ID:              uuid.New().String(),
		Content:         content,
		Summary:         summarize(content),
		Category:        category,
		Entities:        cloneEntities(entities),
		ActionItems:     cloneActions(actions),
		Timestamp:       now,
		SourceTimestamp: latestTimestamp(utterances, now),
		Confidence:      math.Round(cls.Confidence*100) / 100,
		Importance:      scoreImportance(category, entities, actions),
		SecurityLevel:   cls.SecurityLevel,
		Provenance:      prov,
		UtteranceIDs:    utteranceIDs(utterances),
		Tags:            append([]string(nil), cls.Tags...),
		Keywords:        keywords(entities),
		Context:         convCtx,
		Visibility:      models.VisibilityPrivate,
		Metadata:        map[string]any{"classification_reasoning": cls.Reasoning},
	}

	c.logger.Debug("composed memory",
		"id", mem.ID, "category", mem.Category, "importance", mem.Importance,
		"entities", len(mem.Entities), "action_items", len(mem.ActionItems))
	return mem, nil
}

// resolveCategory routes general memories that carry action items into the
// action_items partition. Security tiers and chronological memories keep
// their classification.
func resolveCategory(cat models.Category, actions []models.ActionItem) models.Category {
	if cat == models.CategoryGeneral && len(actions) > 0 {
		return models.CategoryActionItems
	}
	return cat
}

// scoreImportance combines entity count (capped), action item urgency and
// category weight into an integer 0-10.
func scoreImportance(category models.Category, entities []models.Entity, actions []models.ActionItem) int {
	score := importanceBase

	entityWeight := len(entities)
	if entityWeight > maxEntityWeight {
		entityWeight = maxEntityWeight
	}
	score += entityWeight

	if len(actions) > 0 {
		score += actionPresenceWeight
	}
	for i := range actions {
		if actions[i].Priority == models.PriorityHigh || actions[i].Priority == models.PriorityCritical {
			score += urgentActionWeight
			break
		}
	}

	score += categoryImportanceWeight[category]

	if score > 10 {
		score = 10
	}
	return score
}

func joinContent(utterances []models.Utterance) string {
	parts := make([]string, 0, len(utterances))
	for i := range utterances {
		if t := strings.TrimSpace(utterances[i].Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func summarize(content string) string {
	runes := []rune(content)
	if len(runes) <= summaryLength {
		return content
	}
	return string(runes[:summaryLength]) + "..."
}

func latestTimestamp(utterances []models.Utterance, fallback time.Time) time.Time {
	latest := time.Time{}
	for i := range utterances {
		if utterances[i].Timestamp.After(latest) {
			latest = utterances[i].Timestamp
		}
	}
	if latest.IsZero() {
		return fallback
	}
	return latest
}

func utteranceIDs(utterances []models.Utterance) []string {
	ids := make([]string, 0, len(utterances))
	for i := range utterances {
		if utterances[i].ID != "" {
			ids = append(ids, utterances[i].ID)
		}
	}
	return ids
}

func keywords(entities []models.Entity) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range entities {
		k := strings.ToLower(entities[i].CanonicalName)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func cloneEntities(in []models.Entity) []models.Entity {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Entity, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func cloneActions(in []models.ActionItem) []models.ActionItem {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.ActionItem, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
