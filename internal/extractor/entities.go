package extractor

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/tessaro/memopipe/internal/models"
)

// Recognizer confidence weights. Relative date terms carry a fixed 0.80
// weight; explicit markers like currency symbols and @mentions score higher
// than bare capitalization heuristics.
const (
	confRelativeDate = 0.80
	confAbsoluteDate = 0.90
	confMention      = 0.90
	confCapitalized  = 0.70
	confAmount       = 0.90
	confLocation     = 0.60
	confOrganization = 0.85
)

// relativeDateTerms are matched whole against lowercase text.
var relativeDateTerms = []string{
	"today", "tomorrow", "yesterday", "tonight",
	"next week", "last week", "next month", "last month",
	"this week", "this weekend",
}

var (
	monthNamePattern = `(?:January|February|March|April|May|June|July|August|September|October|November|December)`

	absoluteDateRe = regexp.MustCompile(
		`\b(?:` + monthNamePattern + `\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?` +
			`|\d{1,2}\s+` + monthNamePattern +
			`|\d{1,2}/\d{1,2}(?:/\d{2,4})?)\b`)

	mentionRe = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9_]*)`)

	fullNameRe = regexp.MustCompile(`\b([A-Z][a-z]+\s+[A-Z][a-z]+)\b`)

	amountSymbolRe = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d{1,2})?`)
	amountWordRe   = regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d+)?\s?(?:dollars|euros|pounds|usd|eur|gbp)\b`)

	locationRe = regexp.MustCompile(`\b(?:in|at)\s+([A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)?)`)

	organizationRe = regexp.MustCompile(`\b([A-Z][A-Za-z&]*(?:\s+[A-Z][A-Za-z&]*)*\s+(?:Inc|Corp|Corporation|Ltd|LLC|GmbH))\b\.?`)
)

// nameStopwords filters capitalized bigrams that are sentence fragments, not
// person names.
var nameStopwords = map[string]bool{
	"the": true, "this": true, "that": true, "next": true, "last": true,
	"should": true, "please": true, "documentation": true, "team": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

var monthNames = map[string]bool{
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// detectEntities runs all recognizers over one utterance in a fixed order so
// output ordering is deterministic.
func detectEntities(u models.Utterance) []models.Entity {
	var out []models.Entity
	out = append(out, detectDates(u)...)
	out = append(out, detectPersons(u)...)
	out = append(out, detectAmounts(u)...)
	out = append(out, detectLocations(u)...)
	out = append(out, detectOrganizations(u)...)
	return out
}

func newEntity(u models.Utterance, et models.EntityType, raw, canonical string, confidence float64) models.Entity {
	return models.Entity{
		ID:            uuid.New().String(),
		Type:          et,
		RawValue:      raw,
		CanonicalName: canonical,
		Confidence:    confidence,
		UtteranceIDs:  []string{u.ID},
	}
}

func detectDates(u models.Utterance) []models.Entity {
	var out []models.Entity
	lower := strings.ToLower(u.Text)

	for _, term := range relativeDateTerms {
		if containsWord(lower, term) {
			out = append(out, newEntity(u, models.EntityTypeDate, term, term, confRelativeDate))
		}
	}

	for _, m := range absoluteDateRe.FindAllString(u.Text, -1) {
		canonical := strings.Join(strings.Fields(m), " ")
		out = append(out, newEntity(u, models.EntityTypeDate, m, canonical, confAbsoluteDate))
	}
	return out
}

func detectPersons(u models.Utterance) []models.Entity {
	var out []models.Entity

	for _, m := range mentionRe.FindAllStringSubmatch(u.Text, -1) {
		name := m[1]
		e := newEntity(u, models.EntityTypePerson, m[0], name, confMention)
		e.Attributes = map[string]string{"mention": "true"}
		out = append(out, e)
	}

	for _, m := range fullNameRe.FindAllString(u.Text, -1) {
		words := strings.Fields(strings.ToLower(m))
		if nameStopwords[words[0]] || nameStopwords[words[1]] || monthNames[words[0]] || monthNames[words[1]] {
			continue
		}
		out = append(out, newEntity(u, models.EntityTypePerson, m, m, confCapitalized))
	}
	return out
}

func detectAmounts(u models.Utterance) []models.Entity {
	var out []models.Entity
	for _, m := range amountSymbolRe.FindAllString(u.Text, -1) {
		canonical := strings.ReplaceAll(m, " ", "")
		out = append(out, newEntity(u, models.EntityTypeAmount, m, canonical, confAmount))
	}
	for _, m := range amountWordRe.FindAllString(u.Text, -1) {
		canonical := strings.ToLower(strings.Join(strings.Fields(m), " "))
		out = append(out, newEntity(u, models.EntityTypeAmount, m, canonical, confAmount))
	}
	return out
}

func detectLocations(u models.Utterance) []models.Entity {
	var out []models.Entity
	for _, m := range locationRe.FindAllStringSubmatch(u.Text, -1) {
		candidate := m[1]
		lower := strings.ToLower(candidate)
		if monthNames[strings.Fields(lower)[0]] || nameStopwords[strings.Fields(lower)[0]] {
			continue
		}
		// Organization suffixes mean the org recognizer owns this span.
		if organizationRe.MatchString(candidate) {
			continue
		}
		out = append(out, newEntity(u, models.EntityTypeLocation, m[0], candidate, confLocation))
	}
	return out
}

func detectOrganizations(u models.Utterance) []models.Entity {
	var out []models.Entity
	for _, m := range organizationRe.FindAllStringSubmatch(u.Text, -1) {
		out = append(out, newEntity(u, models.EntityTypeOrganization, m[0], m[1], confOrganization))
	}
	return out
}

// containsWord reports whether term occurs in text on word boundaries.
func containsWord(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
