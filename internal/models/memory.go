package models

import (
	"fmt"
	"strings"
	"time"
)

// Category is the sensitivity tier assigned to a memory.
type Category string

const (
	CategoryChronological Category = "chronological"
	CategoryGeneral       Category = "general"
	CategoryActionItems   Category = "action_items"
	CategoryConfidential  Category = "confidential"
	CategorySecret        Category = "secret"
	CategoryUltrasecret   Category = "ultrasecret"
)

// ValidCategories is the set of all valid memory categories.
var ValidCategories = []Category{
	CategoryChronological,
	CategoryGeneral,
	CategoryActionItems,
	CategoryConfidential,
	CategorySecret,
	CategoryUltrasecret,
}

// IsValid returns true if the category is recognized.
func (c Category) IsValid() bool {
	for i := range ValidCategories {
		if c == ValidCategories[i] {
			return true
		}
	}
	return false
}

// SecurityLevel returns the 1-5 security level implied by the category.
func (c Category) SecurityLevel() int {
	switch c {
	case CategoryConfidential:
		return 3
	case CategorySecret:
		return 4
	case CategoryUltrasecret:
		return 5
	case CategoryChronological:
		return 2
	default:
		return 1
	}
}

// RequiresEncryption reports whether the category must only be written to an
// encrypted-capable store channel.
func (c Category) RequiresEncryption() bool {
	return c == CategoryConfidential || c == CategorySecret || c == CategoryUltrasecret
}

// Visibility controls access to a memory. Archived acts as the tombstone
// state: read paths skip archived memories unless explicitly requested.
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityShared   Visibility = "shared"
	VisibilityPublic   Visibility = "public"
	VisibilityArchived Visibility = "archived"
)

// RelationType tags the dominant dimension of a memory-to-memory relation.
type RelationType string

const (
	RelationPerson    RelationType = "person"
	RelationThematic  RelationType = "thematic"
	RelationTemporal  RelationType = "temporal"
	RelationLocation  RelationType = "location"
	RelationEmotional RelationType = "emotional"
)

// Relation links a memory to another memory by id.
type Relation struct {
	MemoryID string       `json:"memory_id"`
	Type     RelationType `json:"type"`
	Score    float64      `json:"score"`
}

// Correction is one entry in a memory's append-only edit trail.
type Correction struct {
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
	MergedID  string    `json:"merged_id,omitempty"`
}

// Provenance records where a memory came from.
type Provenance struct {
	Source            string `json:"source"`
	ContactID         string `json:"contact_id"`
	ProcessingVersion string `json:"processing_version"`
}

// ConversationContext carries conversation-level metadata into a memory.
type ConversationContext struct {
	ConversationID string        `json:"conversation_id,omitempty"`
	Participants   []string      `json:"participants,omitempty"`
	MeetingType    string        `json:"meeting_type,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
	Location       string        `json:"location,omitempty"`
	Project        string        `json:"project,omitempty"`
}

// Memory is the top-level persisted unit: one classified, extracted piece of
// conversational content. A Memory exclusively owns its embedded Entity and
// ActionItem records; cross-memory relationships are by-id references only.
type Memory struct {
	ID              string              `json:"id"`
	Content         string              `json:"content"`
	Summary         string              `json:"summary"`
	Category        Category            `json:"category"`
	Subcategory     string              `json:"subcategory,omitempty"`
	Entities        []Entity            `json:"entities,omitempty"`
	ActionItems     []ActionItem        `json:"action_items,omitempty"`
	Relations       []Relation          `json:"relations,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
	SourceTimestamp time.Time           `json:"source_timestamp"`
	Confidence      float64             `json:"confidence"`
	Importance      int                 `json:"importance"`
	SecurityLevel   int                 `json:"security_level"`
	Provenance      Provenance          `json:"provenance"`
	UtteranceIDs    []string            `json:"utterance_ids,omitempty"`
	Tags            []string            `json:"tags,omitempty"`
	Keywords        []string            `json:"keywords,omitempty"`
	Context         ConversationContext `json:"context"`
	RelatedIDs      []string            `json:"related_memory_ids,omitempty"`
	Corrections     []Correction        `json:"corrections,omitempty"`
	Verified        bool                `json:"verified"`
	Visibility      Visibility          `json:"visibility"`
	Metadata        map[string]any      `json:"metadata,omitempty"`
}

// ValidationError reports an invariant violation detected before persistence.
// It is fatal for the single memory: the write is rejected, never coerced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid memory: %s: %s", e.Field, e.Reason)
}

// Validate checks the memory invariants required before persistence.
func (m *Memory) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if !m.Category.IsValid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", m.Category)}
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: fmt.Sprintf("%v outside [0,1]", m.Confidence)}
	}
	if m.Importance < 0 || m.Importance > 10 {
		return &ValidationError{Field: "importance", Reason: fmt.Sprintf("%d outside [0,10]", m.Importance)}
	}
	for i := range m.Entities {
		if err := m.Entities[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsTombstoned reports whether the memory has been archived. Memories are
// never physically deleted because contact/topic indices cross-reference ids.
func (m *Memory) IsTombstoned() bool {
	return m.Visibility == VisibilityArchived
}

// AddCorrection appends an entry to the memory's edit trail.
func (m *Memory) AddCorrection(note, mergedID string) {
	m.Corrections = append(m.Corrections, Correction{
		Timestamp: time.Now().UTC(),
		Note:      note,
		MergedID:  mergedID,
	})
}

// HasRelated reports whether id is already present in RelatedIDs.
func (m *Memory) HasRelated(id string) bool {
	for i := range m.RelatedIDs {
		if m.RelatedIDs[i] == id {
			return true
		}
	}
	return false
}

// SaveResult is what callers see after attempting to persist a memory.
// Stored=false with Queued=true means the write was deferred to the
// pending-write log after retries were exhausted; the memory is not lost.
type SaveResult struct {
	MemoryID string `json:"memory_id"`
	Stored   bool   `json:"stored"`
	Queued   bool   `json:"queued"`
	Merged   bool   `json:"merged"`
	MergedID string `json:"merged_into,omitempty"`
}

// PartitionStats holds per-category counts for a contact's partitions.
type PartitionStats struct {
	TotalMemories int64            `json:"total_memories"`
	ByCategory    map[string]int64 `json:"by_category"`
	Tombstoned    int64            `json:"tombstoned"`
	PendingWrites int64            `json:"pending_writes"`
}
