// Package classifier assigns a sensitivity category and confidence score to
// raw conversational text. The primary strategy delegates to the Claude API;
// a local keyword classifier serves as the fallback so classification never
// fails outright.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tessaro/memopipe/internal/metrics"
	"github.com/tessaro/memopipe/internal/models"
)

// MaxInputChars is the upper bound on classifiable text length. Longer input
// is truncated before being sent to a classifier.
const MaxInputChars = 10000

// Thresholds holds the minimum confidence required to keep each category.
// A classification below its category's threshold is downgraded to general.
var Thresholds = map[models.Category]float64{
	models.CategoryChronological: 0.70,
	models.CategoryGeneral:       0.60,
	models.CategoryConfidential:  0.80,
	models.CategorySecret:        0.90,
	models.CategoryUltrasecret:   0.95,
}

// Classification is the validated result of one classify pass.
type Classification struct {
	Category      models.Category `json:"category"`
	Confidence    float64         `json:"confidence"`
	Reasoning     string          `json:"reasoning"`
	Tags          []string        `json:"tags,omitempty"`
	SecurityLevel int             `json:"security_level"`
}

// Classifier determines the sensitivity category of a piece of text.
type Classifier interface {
	Classify(ctx context.Context, text string, convCtx *models.ConversationContext) (Classification, error)
}

// ApplyThresholds enforces the per-category confidence floor. Classifications
// below their threshold are downgraded to general with confidence raised to
// at least the general floor; the security level is downgraded together with
// the label. Downgrades only ever move toward general, never toward a more
// restrictive tier.
func ApplyThresholds(c Classification) Classification {
	threshold, ok := Thresholds[c.Category]
	if !ok {
		threshold = Thresholds[models.CategoryGeneral]
	}
	if c.Confidence >= threshold && c.Category.IsValid() {
		return c
	}

	metrics.Inc(metrics.ClassifyDowngraded)
	original := c.Category
	c.Category = models.CategoryGeneral
	if c.Confidence < Thresholds[models.CategoryGeneral] {
		c.Confidence = Thresholds[models.CategoryGeneral]
	}
	c.SecurityLevel = models.CategoryGeneral.SecurityLevel()
	note := fmt.Sprintf("downgraded due to low confidence: %s", original)
	if c.Reasoning == "" {
		c.Reasoning = note
	} else {
		c.Reasoning = c.Reasoning + "; " + note
	}
	return c
}

// Service combines a primary classifier with the local keyword fallback.
// Classify never returns an error: primary failures degrade to the fallback,
// and the worst case is a default general classification.
type Service struct {
	primary  Classifier
	fallback *KeywordClassifier
	logger   *slog.Logger
}

// NewService creates a classification service. primary may be nil, in which
// case every call uses the local keyword classifier.
func NewService(primary Classifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		primary:  primary,
		fallback: NewKeywordClassifier(logger),
		logger:   logger,
	}
}

// Classify runs the primary classifier and applies the confidence thresholds.
// On any primary error the keyword fallback is used instead.
func (s *Service) Classify(ctx context.Context, text string, convCtx *models.ConversationContext) Classification {
	text = truncateInput(text)
	if strings.TrimSpace(text) == "" {
		return Classification{
			Category:      models.CategoryGeneral,
			Confidence:    0.5,
			Reasoning:     "default classification due to processing error: empty input",
			SecurityLevel: models.CategoryGeneral.SecurityLevel(),
		}
	}

	if s.primary != nil {
		c, err := s.primary.Classify(ctx, text, convCtx)
		if err == nil {
			return ApplyThresholds(c)
		}
		metrics.Inc(metrics.ClassifyFallback)
		s.logger.Warn("classifier: primary failed, using local fallback", "error", err)
	}

	c, err := s.fallback.Classify(ctx, text, convCtx)
	if err != nil {
		// The keyword classifier does not fail in practice; this is the
		// absolute floor required by the pipeline contract.
		s.logger.Error("classifier: fallback failed", "error", err)
		return Classification{
			Category:      models.CategoryGeneral,
			Confidence:    0.5,
			Reasoning:     "default classification due to processing error",
			SecurityLevel: models.CategoryGeneral.SecurityLevel(),
		}
	}
	return ApplyThresholds(c)
}

func truncateInput(s string) string {
	runes := []rune(s)
	if len(runes) > MaxInputChars {
		return string(runes[:MaxInputChars])
	}
	return s
}
