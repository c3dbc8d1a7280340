package extractor

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessaro/memopipe/internal/models"
)

// Assignment markers like "@john - do the thing" bind a task to an assignee.
var assignmentRe = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9_]*)\s*[-:]\s*(.+)`)

// Numbered list items are treated as tasks in their own right.
var numberedItemRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)`)

// commitmentMarkers introduce an imperative phrase. The title of the action
// item is the text following the first marker found.
var commitmentMarkers = []string{
	"need to ", "needs to ", "have to ", "has to ",
	"will ", "should ", "must ", "going to ",
	"don't forget to ", "remember to ",
}

var dueRe = regexp.MustCompile(`(?i)\bby\s+((?:` + strings.Join(relativeDateTerms, "|") + `)|` +
	monthNamePattern + `\s+\d{1,2}(?:st|nd|rd|th)?|\d{1,2}/\d{1,2}(?:/\d{2,4})?)`)

// detectActionItems finds commitments in one utterance, one action item per
// matching sentence. Status is always initialized to pending.
func detectActionItems(u models.Utterance) []models.ActionItem {
	var out []models.ActionItem
	for _, sentence := range splitSentences(u.Text) {
		item, ok := actionFromSentence(u, sentence)
		if ok {
			out = append(out, item)
		}
	}
	return out
}

func actionFromSentence(u models.Utterance, sentence string) (models.ActionItem, bool) {
	trimmed := strings.TrimSpace(sentence)
	if trimmed == "" {
		return models.ActionItem{}, false
	}

	var title, assignee string

	switch {
	case assignmentRe.MatchString(trimmed):
		m := assignmentRe.FindStringSubmatch(trimmed)
		assignee = m[1]
		title = strings.TrimSpace(m[2])
	case numberedItemRe.MatchString(trimmed):
		m := numberedItemRe.FindStringSubmatch(trimmed)
		title = strings.TrimSpace(m[1])
		assignee = mentionIn(title)
	default:
		marker, rest := firstCommitment(trimmed)
		if marker == "" {
			return models.ActionItem{}, false
		}
		title = rest
		assignee = mentionIn(trimmed)
	}

	title = strings.TrimRight(title, ".!? ")
	if title == "" {
		return models.ActionItem{}, false
	}

	now := time.Now().UTC()
	item := models.ActionItem{
		ID:           uuid.New().String(),
		Title:        title,
		Description:  trimmed,
		Assignee:     assignee,
		Priority:     inferPriority(trimmed),
		Status:       models.StatusPending,
		UtteranceIDs: []string{u.ID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if m := dueRe.FindStringSubmatch(trimmed); m != nil {
		item.DueText = m[1]
		if due, ok := relativeDue(strings.ToLower(m[1]), u.Timestamp); ok {
			item.DueDate = &due
		}
	}
	return item, true
}

// firstCommitment returns the earliest commitment marker in the sentence and
// the text following it.
func firstCommitment(sentence string) (marker, rest string) {
	lower := strings.ToLower(sentence)
	bestIdx := -1
	for _, m := range commitmentMarkers {
		idx := strings.Index(lower, m)
		if idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			bestIdx = idx
			marker = m
		}
	}
	if bestIdx < 0 {
		return "", ""
	}
	return marker, strings.TrimSpace(sentence[bestIdx+len(marker):])
}

// inferPriority maps urgency keywords to a priority; the default is medium.
func inferPriority(sentence string) models.Priority {
	lower := strings.ToLower(sentence)
	if strings.Contains(lower, "critical") || strings.Contains(lower, "emergency") {
		return models.PriorityCritical
	}
	if strings.Contains(lower, "urgent") || strings.Contains(lower, "asap") ||
		strings.Contains(lower, "immediately") || strings.Contains(lower, "right away") {
		return models.PriorityHigh
	}
	return models.PriorityMedium
}

// relativeDue resolves "today"/"tomorrow" style due terms against the
// utterance timestamp. Absolute dates stay textual: the year is ambiguous and
// guessing one would fabricate data.
func relativeDue(term string, ref time.Time) (time.Time, bool) {
	if ref.IsZero() {
		ref = time.Now().UTC()
	}
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	switch term {
	case "today", "tonight":
		return day.AddDate(0, 0, 1).Add(-time.Second), true
	case "tomorrow":
		return day.AddDate(0, 0, 2).Add(-time.Second), true
	case "next week":
		return day.AddDate(0, 0, 7), true
	default:
		return time.Time{}, false
	}
}

func mentionIn(s string) string {
	if m := mentionRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// splitSentences breaks text on sentence punctuation and newlines. Numbered
// list lines survive as their own segments.
func splitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if numberedItemRe.MatchString(line) {
			out = append(out, strings.TrimSpace(line))
			continue
		}
		start := 0
		for i := 0; i < len(line); i++ {
			if line[i] == '.' || line[i] == '!' || line[i] == '?' {
				if seg := strings.TrimSpace(line[start:i]); seg != "" {
					out = append(out, seg)
				}
				start = i + 1
			}
		}
		if seg := strings.TrimSpace(line[start:]); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
