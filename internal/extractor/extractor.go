// Package extractor scans utterance batches for named entities (dates,
// people, amounts, locations, organizations) and actionable commitments.
// Extraction is pure pattern matching: it never calls out to a network
// service and never fails for malformed input.
package extractor

import (
	"log/slog"
	"strings"

	"github.com/tessaro/memopipe/internal/models"
)

// Extractor detects entities and action items in utterance batches.
type Extractor struct {
	logger *slog.Logger
}

// New creates an extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract scans the utterances in order and returns detected entities and
// action items in first-detected order. A recognizer failure on one utterance
// skips that utterance's contribution; the batch always completes.
func (e *Extractor) Extract(utterances []models.Utterance) ([]models.Entity, []models.ActionItem) {
	var entities []models.Entity
	var actions []models.ActionItem

	// Dedupe key -> index into entities, so repeat detections merge instead
	// of duplicating while preserving first-detected order.
	seen := make(map[string]int)

	for i := range utterances {
		u := utterances[i]
		if strings.TrimSpace(u.Text) == "" {
			continue
		}

		ents, acts, ok := e.extractOne(u)
		if !ok {
			continue
		}

		for _, ent := range ents {
			key := string(ent.Type) + "|" + strings.ToLower(ent.CanonicalName)
			if idx, dup := seen[key]; dup {
				mergeEntity(&entities[idx], ent)
				continue
			}
			seen[key] = len(entities)
			entities = append(entities, ent)
		}
		actions = append(actions, acts...)
	}

	e.logger.Debug("extraction complete",
		"utterances", len(utterances), "entities", len(entities), "action_items", len(actions))
	return entities, actions
}

// extractOne runs all recognizers over a single utterance. A panic in any
// recognizer is contained here so one bad utterance cannot abort the batch.
func (e *Extractor) extractOne(u models.Utterance) (ents []models.Entity, acts []models.ActionItem, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("extractor: recognizer failure, skipping utterance", "utterance_id", u.ID, "panic", r)
			ents, acts, ok = nil, nil, false
		}
	}()

	ents = detectEntities(u)
	acts = detectActionItems(u)
	return ents, acts, true
}

// mergeEntity folds a repeat detection into an existing entity: utterance ids
// union, alias list extended, confidence takes the max.
func mergeEntity(dst *models.Entity, src models.Entity) {
	for _, uid := range src.UtteranceIDs {
		found := false
		for _, existing := range dst.UtteranceIDs {
			if existing == uid {
				found = true
				break
			}
		}
		if !found {
			dst.UtteranceIDs = append(dst.UtteranceIDs, uid)
		}
	}
	if src.RawValue != dst.RawValue {
		addAlias(dst, src.RawValue)
	}
	for _, a := range src.Aliases {
		addAlias(dst, a)
	}
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
	}
}

func addAlias(dst *models.Entity, alias string) {
	if alias == "" || strings.EqualFold(alias, dst.CanonicalName) {
		return
	}
	for _, existing := range dst.Aliases {
		if strings.EqualFold(existing, alias) {
			return
		}
	}
	dst.Aliases = append(dst.Aliases, alias)
}
