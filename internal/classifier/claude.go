package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/pkg/xmlutil"
)

// classifierMaxTokens is the maximum number of tokens Claude can use for the
// classification response.
const classifierMaxTokens = 512

// classificationPromptTemplate is the fixed taxonomy prompt. User content is
// injected via XML tags to prevent prompt injection attacks.
const classificationPromptTemplate = `You are a memory classification system for a personal memory assistant.

Classify the text into exactly one sensitivity category:
- CHRONOLOGICAL: dated events, appointments, schedules, things that happened
- GENERAL: everyday facts, preferences, notes with no sensitivity
- CONFIDENTIAL: personal/financial/medical/legal content shared in confidence
- SECRET: content the speaker explicitly wants kept secret
- ULTRASECRET: content whose disclosure the speaker treats as catastrophic

Return ONLY a JSON object with this exact schema:
{"classification": "<category>", "confidence": <0.0-1.0>, "reasoning": "<brief explanation>", "tags": ["<keyword>"], "security_level": <1-5>}

<content>%s</content>

<context>%s</context>`

// claudeClassification is the raw JSON shape Claude must return. It is parsed
// strictly: missing or unknown fields are a validation failure that routes the
// caller to the local fallback.
type claudeClassification struct {
	Classification string   `json:"classification"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	Tags           []string `json:"tags"`
	SecurityLevel  int      `json:"security_level"`
}

// ClaudeClassifier classifies text with the Claude API. Calls go through a
// circuit breaker so a failing upstream trips fast instead of timing out on
// every utterance, and through a rate limiter shared by all callers.
type ClaudeClassifier struct {
	client  *anthropic.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClaudeClassifier creates a classifier backed by the Anthropic Claude API.
// rps bounds the sustained request rate; rps <= 0 disables rate limiting.
func NewClaudeClassifier(apiKey, model string, rps float64, logger *slog.Logger) *ClaudeClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "claude-classifier",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return &ClaudeClassifier{
		client:  &c,
		model:   model,
		breaker: breaker,
		limiter: limiter,
		logger:  logger,
	}
}

// Classify sends the taxonomy prompt to Claude and strictly parses the JSON
// response. Any API, breaker or validation failure is returned as an error so
// the Service can fall back to the keyword classifier.
func (cc *ClaudeClassifier) Classify(ctx context.Context, text string, convCtx *models.ConversationContext) (Classification, error) {
	if cc.limiter != nil {
		if err := cc.limiter.Wait(ctx); err != nil {
			return Classification{}, fmt.Errorf("classifier: rate limit wait: %w", err)
		}
	}

	prompt := fmt.Sprintf(classificationPromptTemplate, xmlutil.Escape(text), xmlutil.Escape(contextHint(convCtx)))

	result, err := cc.breaker.Execute(func() (any, error) {
		return cc.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(cc.model),
			MaxTokens: classifierMaxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
			System: []anthropic.TextBlockParam{
				{Text: "You are a precise classification system. Output only valid JSON."},
			},
		})
	})
	if err != nil {
		return Classification{}, fmt.Errorf("classifier: Claude API call: %w", err)
	}

	resp := result.(*anthropic.Message)
	var responseText string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			responseText = strings.TrimSpace(resp.Content[i].Text)
			break
		}
	}
	if responseText == "" {
		return Classification{}, fmt.Errorf("classifier: empty response from Claude")
	}

	cc.logger.Debug("claude classification response", "response", responseText)
	return parseClaudeClassification(responseText)
}

// parseClaudeClassification validates the loosely-typed JSON Claude returns
// and maps it into a strict Classification. Unknown fields, unknown
// categories and out-of-range values are all rejected.
func parseClaudeClassification(raw string) (Classification, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	var parsed claudeClassification
	if err := dec.Decode(&parsed); err != nil {
		return Classification{}, fmt.Errorf("classifier: parsing response: %w (raw: %s)", err, raw)
	}

	cat := models.Category(strings.ToLower(strings.TrimSpace(parsed.Classification)))
	if !cat.IsValid() || cat == models.CategoryActionItems {
		return Classification{}, fmt.Errorf("classifier: unknown category %q in response", parsed.Classification)
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return Classification{}, fmt.Errorf("classifier: confidence %v outside [0,1]", parsed.Confidence)
	}
	if parsed.SecurityLevel < 1 || parsed.SecurityLevel > 5 {
		return Classification{}, fmt.Errorf("classifier: security_level %d outside [1,5]", parsed.SecurityLevel)
	}

	return Classification{
		Category:      cat,
		Confidence:    parsed.Confidence,
		Reasoning:     parsed.Reasoning,
		Tags:          parsed.Tags,
		SecurityLevel: parsed.SecurityLevel,
	}, nil
}

// contextHint renders the conversation context for the prompt.
func contextHint(c *models.ConversationContext) string {
	if c == nil {
		return ""
	}
	var parts []string
	if c.MeetingType != "" {
		parts = append(parts, "meeting_type="+c.MeetingType)
	}
	if len(c.Participants) > 0 {
		parts = append(parts, "participants="+strings.Join(c.Participants, ","))
	}
	if c.Project != "" {
		parts = append(parts, "project="+c.Project)
	}
	if c.Location != "" {
		parts = append(parts, "location="+c.Location)
	}
	return strings.Join(parts, " ")
}
