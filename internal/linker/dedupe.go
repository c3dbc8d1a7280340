package linker

import (
	"fmt"
	"strings"

	"github.com/tessaro/memopipe/internal/models"
)

// contentSimilarityThreshold is the word-set overlap above which two memory
// contents are considered near-identical.
const contentSimilarityThreshold = 0.9

// Dedupe checks mem against recent memories from the same partition. When a
// duplicate is found the two are merged into the existing record instead of
// creating a new one: entities and action items are unioned, a correction
// entry documents the merge, the earlier timestamp is kept and the source
// timestamp advances to the latest contributing utterance.
func (l *Linker) Dedupe(mem models.Memory, recent []models.Memory) (models.Memory, bool) {
	for i := range recent {
		existing := &recent[i]
		if existing.ID == mem.ID || existing.IsTombstoned() {
			continue
		}
		if existing.Category != mem.Category {
			continue
		}
		if existing.Provenance.ContactID != mem.Provenance.ContactID {
			continue
		}
		if !utteranceOverlap(existing, &mem) && !nearIdenticalContent(existing.Content, mem.Content) {
			continue
		}

		merged := merge(*existing, mem)
		l.logger.Info("deduplicated memory into existing record",
			"existing_id", existing.ID, "duplicate_id", mem.ID, "category", mem.Category)
		return merged, true
	}
	return mem, false
}

// merge folds dup into base. Base's id and (earlier) timestamp survive.
func merge(base, dup models.Memory) models.Memory {
	if dup.Timestamp.Before(base.Timestamp) {
		base.Timestamp = dup.Timestamp
	}
	if dup.SourceTimestamp.After(base.SourceTimestamp) {
		base.SourceTimestamp = dup.SourceTimestamp
	}

	base.Entities = unionEntities(base.Entities, dup.Entities)
	base.ActionItems = unionActions(base.ActionItems, dup.ActionItems)
	base.UtteranceIDs = unionStrings(base.UtteranceIDs, dup.UtteranceIDs)
	base.Tags = unionStrings(base.Tags, dup.Tags)
	base.Keywords = unionStrings(base.Keywords, dup.Keywords)

	if dup.Confidence > base.Confidence {
		base.Confidence = dup.Confidence
	}
	if dup.Importance > base.Importance {
		base.Importance = dup.Importance
	}

	base.AddCorrection(fmt.Sprintf("merged duplicate memory %s", dup.ID), dup.ID)
	return base
}

func utteranceOverlap(a, b *models.Memory) bool {
	if len(a.UtteranceIDs) == 0 || len(b.UtteranceIDs) == 0 {
		return false
	}
	set := make(map[string]bool, len(a.UtteranceIDs))
	for _, id := range a.UtteranceIDs {
		set[id] = true
	}
	for _, id := range b.UtteranceIDs {
		if set[id] {
			return true
		}
	}
	return false
}

// nearIdenticalContent compares normalized word sets.
func nearIdenticalContent(a, b string) bool {
	wa := wordSet(a)
	wb := wordSet(b)
	return jaccard(wa, wb) >= contentSimilarityThreshold
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w != "" {
			out[w] = true
		}
	}
	return out
}

// unionEntities merges by (type, canonical name), keeping first-seen order
// and the maximum confidence of duplicate detections.
func unionEntities(a, b []models.Entity) []models.Entity {
	out := append([]models.Entity(nil), a...)
	index := make(map[string]int, len(out))
	for i := range out {
		index[entityKey(&out[i])] = i
	}
	for i := range b {
		key := entityKey(&b[i])
		if j, ok := index[key]; ok {
			if b[i].Confidence > out[j].Confidence {
				out[j].Confidence = b[i].Confidence
			}
			out[j].UtteranceIDs = unionStrings(out[j].UtteranceIDs, b[i].UtteranceIDs)
			out[j].Aliases = unionStrings(out[j].Aliases, b[i].Aliases)
			continue
		}
		index[key] = len(out)
		out = append(out, b[i].Clone())
	}
	return out
}

func entityKey(e *models.Entity) string {
	return string(e.Type) + "|" + strings.ToLower(e.CanonicalName)
}

// unionActions merges by lowercase title; the earlier item's status wins
// because user-driven status updates must survive a merge.
func unionActions(a, b []models.ActionItem) []models.ActionItem {
	out := append([]models.ActionItem(nil), a...)
	seen := make(map[string]bool, len(out))
	for i := range out {
		seen[strings.ToLower(out[i].Title)] = true
	}
	for i := range b {
		key := strings.ToLower(b[i].Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b[i].Clone())
	}
	return out
}

func unionStrings(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
