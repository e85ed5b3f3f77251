// Package models defines the domain types for coursevault.
package models

import (
	"fmt"
	"time"
)

// Kind discriminates the SourceItem variants.
type Kind string

const (
	KindAssignment Kind = "assignment"
	KindEvent      Kind = "event"
)

// Kinds lists every kind in the order a run processes them.
var Kinds = []Kind{KindAssignment, KindEvent}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindAssignment || k == KindEvent
}

// Folder is the per-course directory notes of this kind live in.
func (k Kind) Folder() string {
	switch k {
	case KindAssignment:
		return "Assignments"
	case KindEvent:
		return "Events"
	default:
		return "Other"
	}
}

// Label is the human name used in run summaries.
func (k Kind) Label() string {
	switch k {
	case KindAssignment:
		return "Assignments"
	case KindEvent:
		return "Calendar events"
	default:
		return string(k)
	}
}

// ItemKey identifies a SourceItem. IDs are unique within a kind only.
type ItemKey struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (k ItemKey) String() string {
	return fmt.Sprintf("%s %s", k.Kind, k.ID)
}

// Course is a collection of items, namespacing their note paths.
type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// DisplayName returns the label used for the course folder.
func (c Course) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Code != "":
		return c.Code
	default:
		return "course_" + c.ID
	}
}

// SourceItem is a read-only snapshot of an upstream assignment or event.
// Exactly one of Assignment or Event is set, matching Kind.
type SourceItem struct {
	ID               string
	Kind             Kind
	CourseID         string
	CourseName       string
	SourceModifiedAt time.Time
	URL              string
	Description      string // HTML as delivered by the source

	Assignment *AssignmentFields
	Event      *EventFields
}

// Key returns the identity of the item.
func (it SourceItem) Key() ItemKey {
	return ItemKey{Kind: it.Kind, ID: it.ID}
}

// DisplayName is the name the note file is derived from.
func (it SourceItem) DisplayName() string {
	switch {
	case it.Kind == KindAssignment && it.Assignment != nil:
		return it.Assignment.Name
	case it.Kind == KindEvent && it.Event != nil:
		return it.Event.Title
	default:
		return ""
	}
}

// AssignmentFields are the assignment-only display fields.
type AssignmentFields struct {
	Name            string
	DueAt           *time.Time
	PointsPossible  *float64
	SubmissionTypes []string
	Submission      *Submission
}

// Submission is the current user's submission state for an assignment.
type Submission struct {
	WorkflowState string
	Grade         *string
}

// EventFields are the calendar-event-only display fields.
type EventFields struct {
	Title        string
	StartAt      *time.Time
	EndAt        *time.Time
	LocationName string
}
