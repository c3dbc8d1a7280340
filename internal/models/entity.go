package models

import (
	"fmt"
	"strings"
)

// EntityType classifies the kind of entity.
type EntityType string

const (
	EntityTypeDate         EntityType = "date"
	EntityTypePerson       EntityType = "person"
	EntityTypeAmount       EntityType = "amount"
	EntityTypeLocation     EntityType = "location"
	EntityTypeOrganization EntityType = "organization"
)

// ValidEntityTypes is the set of all valid entity types.
var ValidEntityTypes = []EntityType{
	EntityTypeDate,
	EntityTypePerson,
	EntityTypeAmount,
	EntityTypeLocation,
	EntityTypeOrganization,
}

// IsValid returns true if the entity type is recognized.
func (et EntityType) IsValid() bool {
	for i := range ValidEntityTypes {
		if et == ValidEntityTypes[i] {
			return true
		}
	}
	return false
}

// Entity is a structured fact detected within one or more utterances.
// Entities are immutable once extracted; memories embed deep copies.
type Entity struct {
	ID            string            `json:"id"`
	Type          EntityType        `json:"type"`
	RawValue      string            `json:"raw_value"`
	CanonicalName string            `json:"canonical_name"`
	Confidence    float64           `json:"confidence"`
	UtteranceIDs  []string          `json:"utterance_ids,omitempty"`
	Aliases       []string          `json:"aliases,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Validate checks the entity invariants.
func (e *Entity) Validate() error {
	if strings.TrimSpace(e.CanonicalName) == "" {
		return &ValidationError{Field: "entity.canonical_name", Reason: "must not be empty"}
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return &ValidationError{Field: "entity.confidence", Reason: fmt.Sprintf("%v outside [0,1]", e.Confidence)}
	}
	if !e.Type.IsValid() {
		return &ValidationError{Field: "entity.type", Reason: fmt.Sprintf("unknown type %q", e.Type)}
	}
	return nil
}

// Clone returns a deep copy of the entity so a memory can own it exclusively.
func (e Entity) Clone() Entity {
	out := e
	if len(e.UtteranceIDs) > 0 {
		out.UtteranceIDs = append([]string(nil), e.UtteranceIDs...)
	}
	if len(e.Aliases) > 0 {
		out.Aliases = append([]string(nil), e.Aliases...)
	}
	if len(e.Attributes) > 0 {
		out.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}
