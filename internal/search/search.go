// Package search provides side-effect-free keyword search over stored
// memories with multi-factor ranking.
package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/store"
)

// Weights controls the relative importance of each ranking factor.
type Weights struct {
	TermOverlap float64 `json:"term_overlap" mapstructure:"term_overlap"`
	Recency     float64 `json:"recency" mapstructure:"recency"`
	Importance  float64 `json:"importance" mapstructure:"importance"`
	Category    float64 `json:"category" mapstructure:"category"`
}

// DefaultWeights returns sensible default ranking weights.
func DefaultWeights() Weights {
	return Weights{
		TermOverlap: 0.5,
		Recency:     0.2,
		Importance:  0.2,
		Category:    0.1,
	}
}

// CategoryPriority boosts partitions that tend to hold actionable content.
var CategoryPriority = map[models.Category]float64{
	models.CategoryActionItems:   1.3,
	models.CategoryChronological: 1.1,
	models.CategoryGeneral:       1.0,
	models.CategoryConfidential:  0.9,
	models.CategorySecret:        0.8,
	models.CategoryUltrasecret:   0.7,
}

// Result wraps a memory with its ranking breakdown.
type Result struct {
	Memory        models.Memory `json:"memory"`
	TermScore     float64       `json:"term_score"`
	RecencyScore  float64       `json:"recency_score"`
	ImportScore   float64       `json:"importance_score"`
	CategoryBoost float64       `json:"category_boost"`
	FinalScore    float64       `json:"final_score"`
}

// Searcher runs keyword queries against a contact's partitions.
type Searcher struct {
	st      store.Store
	weights Weights
	logger  *slog.Logger
}

// New creates a searcher with the given weights.
func New(st store.Store, weights Weights, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{st: st, weights: weights, logger: logger}
}

// Search scans the given categories (all when empty) for the contact and
// ranks matches. Tombstoned memories never appear in results. maxSecurity
// caps the categories searched so secret-tier content is opt-in.
func (s *Searcher) Search(ctx context.Context, contactID, query string, categories []models.Category, maxSecurity, limit int) ([]Result, error) {
	if len(categories) == 0 {
		categories = models.ValidCategories
	}
	terms := queryTerms(query)
	now := time.Now().UTC()

	var results []Result
	for _, cat := range categories {
		if cat.SecurityLevel() > maxSecurity {
			continue
		}
		memories, err := s.st.ReadPartition(ctx, cat, contactID, false)
		if err != nil {
			return nil, err
		}
		for i := range memories {
			r := Result{
				Memory:        memories[i],
				TermScore:     termOverlap(&memories[i], terms),
				RecencyScore:  recencyScore(memories[i].SourceTimestamp, now),
				ImportScore:   float64(memories[i].Importance) / 10.0,
				CategoryBoost: categoryBoost(cat),
			}
			if len(terms) > 0 && r.TermScore == 0 {
				continue
			}
			r.FinalScore = s.weights.TermOverlap*r.TermScore +
				s.weights.Recency*r.RecencyScore +
				s.weights.Importance*r.ImportScore +
				s.weights.Category*r.CategoryBoost
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore == results[j].FinalScore {
			return results[i].Memory.ID < results[j].Memory.ID
		}
		return results[i].FinalScore > results[j].FinalScore
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	s.logger.Debug("search complete", "query", query, "results", len(results))
	return results, nil
}

// termOverlap is the fraction of query terms present in the memory's
// content, keywords or tags.
func termOverlap(m *models.Memory, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(m.Content + " " + strings.Join(m.Keywords, " ") + " " + strings.Join(m.Tags, " "))
	matched := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// recencyScore uses exponential decay with a half-life of 7 days.
func recencyScore(ts time.Time, now time.Time) float64 {
	if ts.IsZero() {
		return 0.1
	}
	hoursAgo := now.Sub(ts).Hours()
	if hoursAgo < 0 {
		hoursAgo = 0
	}
	halfLife := 168.0
	return math.Exp(-0.693 * hoursAgo / halfLife)
}

func categoryBoost(c models.Category) float64 {
	if boost, ok := CategoryPriority[c]; ok {
		return boost
	}
	return 1.0
}

func queryTerms(query string) []string {
	var out []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		t = strings.Trim(t, ".,!?;:\"'()")
		if len(t) > 1 {
			out = append(out, t)
		}
	}
	return out
}
