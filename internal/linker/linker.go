// Package linker establishes cross-references between related memories and
// merges near-duplicates within a partition.
package linker

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/tessaro/memopipe/internal/metrics"
	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/store"
)

// RelationThreshold is the minimum dimension score for a meaningful
// connection between two memories.
const RelationThreshold = 0.7

// relationPriority breaks ties between equally scoring dimensions.
var relationPriority = []models.RelationType{
	models.RelationPerson,
	models.RelationThematic,
	models.RelationTemporal,
	models.RelationLocation,
	models.RelationEmotional,
}

// emotionTerms mark emotionally loaded content for the emotional dimension.
var emotionTerms = []string{
	"happy", "sad", "angry", "excited", "worried", "anxious",
	"proud", "frustrated", "love", "scared", "thrilled", "upset",
}

// Persister applies write-backs under the host's retry and pending-queue
// policy. *store.Saver is the production implementation.
type Persister interface {
	Save(ctx context.Context, memory models.Memory) (models.SaveResult, error)
}

// Linker computes relations against candidate memories and performs
// confidence-based deduplication.
type Linker struct {
	st      store.Store
	persist Persister
	logger  *slog.Logger
}

// New creates a linker that reads candidates from st and writes reverse
// relations through persist.
func New(st store.Store, persist Persister, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{st: st, persist: persist, logger: logger}
}

// Link scores mem against each candidate id and creates a bidirectional
// relation for every candidate above the threshold. The relation is tagged
// with the single highest-scoring dimension. Candidate ids that no longer
// resolve are logged and dropped, never fatal. mem is mutated in place; the
// updated candidates are written back through the persister, so a transient
// store failure retries and then lands in the pending queue instead of
// leaving the relation half-applied.
func (l *Linker) Link(ctx context.Context, mem *models.Memory, candidateIDs []string) ([]models.Relation, error) {
	var created []models.Relation
	for _, id := range candidateIDs {
		if id == mem.ID || mem.HasRelated(id) {
			continue
		}
		candidate, err := l.st.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				metrics.Inc(metrics.LinksDangling)
				l.logger.Warn("linker: dropping dangling relation candidate", "memory_id", mem.ID, "candidate_id", id)
				continue
			}
			return created, err
		}

		relType, score := scoreRelation(mem, candidate)
		if score < RelationThreshold {
			continue
		}
		score = roundScore(score)

		rel := models.Relation{MemoryID: candidate.ID, Type: relType, Score: score}
		mem.Relations = append(mem.Relations, rel)
		mem.RelatedIDs = append(mem.RelatedIDs, candidate.ID)

		if !candidate.HasRelated(mem.ID) {
			candidate.Relations = append(candidate.Relations, models.Relation{
				MemoryID: mem.ID, Type: relType, Score: score,
			})
			candidate.RelatedIDs = append(candidate.RelatedIDs, mem.ID)
			if res, err := l.persist.Save(ctx, *candidate); err != nil {
				l.logger.Warn("linker: updating reverse relation failed", "candidate_id", candidate.ID, "error", err)
			} else if res.Queued {
				l.logger.Warn("linker: reverse relation queued for replay", "candidate_id", candidate.ID)
			}
		}
		created = append(created, rel)
	}
	return created, nil
}

// scoreRelation computes all dimension scores between two memories and
// returns the winning dimension. Ties resolve by the fixed priority order.
func scoreRelation(a, b *models.Memory) (models.RelationType, float64) {
	scores := map[models.RelationType]float64{
		models.RelationPerson:    entityOverlap(a, b, models.EntityTypePerson),
		models.RelationThematic:  thematicOverlap(a, b),
		models.RelationTemporal:  temporalProximity(a.SourceTimestamp, b.SourceTimestamp),
		models.RelationLocation:  entityOverlap(a, b, models.EntityTypeLocation),
		models.RelationEmotional: emotionalOverlap(a, b),
	}

	best := relationPriority[0]
	bestScore := -1.0
	for _, dim := range relationPriority {
		if scores[dim] > bestScore {
			best = dim
			bestScore = scores[dim]
		}
	}
	return best, bestScore
}

// entityOverlap is the Jaccard overlap of canonical entity names of one type.
func entityOverlap(a, b *models.Memory, et models.EntityType) float64 {
	return jaccard(entityNames(a, et), entityNames(b, et))
}

// thematicOverlap is the Jaccard overlap of keywords and tags.
func thematicOverlap(a, b *models.Memory) float64 {
	return jaccard(themeTerms(a), themeTerms(b))
}

// temporalProximity maps the distance between source timestamps onto [0,1]:
// within an hour scores 1.0, within a day 0.8, within a week 0.5.
func temporalProximity(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	switch {
	case d <= time.Hour:
		return 1.0
	case d <= 24*time.Hour:
		return 0.8
	case d <= 7*24*time.Hour:
		return 0.5
	default:
		return 0
	}
}

// emotionalOverlap scores 0.8 when both contents carry emotion terms; the
// dimension deliberately cannot reach a perfect score from keywords alone.
func emotionalOverlap(a, b *models.Memory) float64 {
	if hasEmotion(a.Content) && hasEmotion(b.Content) {
		return 0.8
	}
	return 0
}

func hasEmotion(content string) bool {
	lower := strings.ToLower(content)
	for _, term := range emotionTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func entityNames(m *models.Memory, et models.EntityType) map[string]bool {
	out := make(map[string]bool)
	for i := range m.Entities {
		if m.Entities[i].Type == et {
			out[strings.ToLower(m.Entities[i].CanonicalName)] = true
		}
	}
	return out
}

func themeTerms(m *models.Memory) map[string]bool {
	out := make(map[string]bool)
	for _, k := range m.Keywords {
		out[strings.ToLower(k)] = true
	}
	for _, t := range m.Tags {
		out[strings.ToLower(t)] = true
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// roundScore keeps relation scores readable in stored documents.
func roundScore(s float64) float64 {
	return math.Round(s*100) / 100
}
