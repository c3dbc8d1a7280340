package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tessaro/memopipe/internal/models"
)

// minKeywordScore is the keyword-frequency score below which the local
// classifier defaults to general.
const minKeywordScore = 0.2

// Curated keyword lists per category. Scores are the fraction of a list's
// keywords present in the text, so lists are kept small and specific.
var (
	chronologicalKeywords = []string{
		"yesterday", "today", "tomorrow", "last week", "next week",
		"this morning", "meeting", "appointment",
	}
	generalKeywords = []string{
		"remember", "note", "idea", "thought", "interesting",
		"prefer", "usually", "recommend",
	}
	confidentialKeywords = []string{
		"salary", "contract", "medical", "diagnosis", "legal",
		"financial", "private", "confidential",
	}
	secretKeywords = []string{
		"secret", "password", "pin code", "account number",
		"between us", "don't tell", "keep this quiet", "combination",
	}
	ultrasecretKeywords = []string{
		"top secret", "ultra secret", "never tell anyone",
		"absolutely no one", "no one can know", "hidden account",
		"burn after reading", "deniability",
	}
)

var categoryKeywords = map[models.Category][]string{
	models.CategoryChronological: chronologicalKeywords,
	models.CategoryGeneral:       generalKeywords,
	models.CategoryConfidential:  confidentialKeywords,
	models.CategorySecret:        secretKeywords,
	models.CategoryUltrasecret:   ultrasecretKeywords,
}

// KeywordClassifier is the local fallback used when the Claude classifier is
// unavailable or returns an unusable response. It never fails.
type KeywordClassifier struct {
	logger *slog.Logger
}

// NewKeywordClassifier creates a keyword-frequency classifier.
func NewKeywordClassifier(logger *slog.Logger) *KeywordClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordClassifier{logger: logger}
}

// Classify scores the text against each category's keyword list and picks the
// argmax. A maximum score below minKeywordScore defaults to general with
// confidence 0.6.
func (k *KeywordClassifier) Classify(_ context.Context, text string, _ *models.ConversationContext) (Classification, error) {
	lower := strings.ToLower(text)

	best := models.CategoryGeneral
	bestScore := 0.0
	bestMatched := 0
	for cat, keywords := range categoryKeywords {
		matched := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched++
			}
		}
		score := float64(matched) / float64(len(keywords))
		// Ties resolve toward the less restrictive tier.
		if score > bestScore || (score == bestScore && matched > 0 && cat.SecurityLevel() < best.SecurityLevel()) {
			best = cat
			bestScore = score
			bestMatched = matched
		}
	}

	if bestScore < minKeywordScore {
		k.logger.Debug("keyword classifier: no strong signal, defaulting to general", "best_score", bestScore)
		return Classification{
			Category:      models.CategoryGeneral,
			Confidence:    0.6,
			Reasoning:     "local classification: no category keywords matched, defaulting to general",
			SecurityLevel: models.CategoryGeneral.SecurityLevel(),
		}, nil
	}

	// Map the keyword score onto [0.6, 1.0] so a weak match never reports
	// higher confidence than the default, while only an overwhelming match
	// can clear the secret-tier thresholds.
	confidence := 0.6 + 0.4*bestScore
	c := Classification{
		Category:      best,
		Confidence:    confidence,
		Reasoning:     fmt.Sprintf("local classification: matched %d/%d %s keywords", bestMatched, len(categoryKeywords[best]), best),
		SecurityLevel: best.SecurityLevel(),
	}
	k.logger.Debug("keyword classifier result", "category", c.Category, "score", bestScore, "confidence", c.Confidence)
	return c, nil
}
