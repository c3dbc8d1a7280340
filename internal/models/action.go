package models

import (
	"fmt"
	"time"
)

// Priority is the urgency level of an action item.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ActionStatus is the lifecycle state of an action item.
type ActionStatus string

const (
	StatusPending    ActionStatus = "pending"
	StatusInProgress ActionStatus = "in_progress"
	StatusCompleted  ActionStatus = "completed"
	StatusCancelled  ActionStatus = "cancelled"
)

// validTransitions encodes the allowed status machine:
// pending -> in_progress -> completed, plus any state -> cancelled.
var validTransitions = map[ActionStatus][]ActionStatus{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {StatusCancelled},
	StatusCancelled:  {},
}

// ActionItem is an extracted commitment or task. Action items are never
// deleted, only marked cancelled.
type ActionItem struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Assignee     string       `json:"assignee,omitempty"`
	Owner        string       `json:"owner,omitempty"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	DueText      string       `json:"due_text,omitempty"`
	Priority     Priority     `json:"priority"`
	Status       ActionStatus `json:"status"`
	Dependencies []string     `json:"dependencies,omitempty"`
	Blockers     []string     `json:"blockers,omitempty"`
	UtteranceIDs []string     `json:"utterance_ids,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// Transition moves the action item to the given status, enforcing the
// pending -> in_progress -> completed machine. CompletedAt is set iff the new
// status is completed.
func (a *ActionItem) Transition(to ActionStatus) error {
	allowed := validTransitions[a.Status]
	ok := false
	for i := range allowed {
		if allowed[i] == to {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("action item %s: invalid status transition %s -> %s", a.ID, a.Status, to)
	}
	now := time.Now().UTC()
	a.Status = to
	a.UpdatedAt = now
	if to == StatusCompleted {
		a.CompletedAt = &now
	} else {
		a.CompletedAt = nil
	}
	return nil
}

// Clone returns a deep copy of the action item so a memory can own it
// exclusively.
func (a ActionItem) Clone() ActionItem {
	out := a
	if len(a.Dependencies) > 0 {
		out.Dependencies = append([]string(nil), a.Dependencies...)
	}
	if len(a.Blockers) > 0 {
		out.Blockers = append([]string(nil), a.Blockers...)
	}
	if len(a.UtteranceIDs) > 0 {
		out.UtteranceIDs = append([]string(nil), a.UtteranceIDs...)
	}
	if len(a.Tags) > 0 {
		out.Tags = append([]string(nil), a.Tags...)
	}
	if a.DueDate != nil {
		d := *a.DueDate
		out.DueDate = &d
	}
	if a.CompletedAt != nil {
		c := *a.CompletedAt
		out.CompletedAt = &c
	}
	return out
}
