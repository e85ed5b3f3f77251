package models

import "time"

// Action is what the engine did with an item.
type Action string

const (
	ActionWrite Action = "write"
	ActionSkip  Action = "skip"
	ActionError Action = "error"
)

// Reason explains an Action.
type Reason string

const (
	ReasonNewFile       Reason = "new_file"
	ReasonNoDBRecord    Reason = "no_db_record"
	ReasonSourceUpdated Reason = "source_updated"
	ReasonLocallyEdited Reason = "locally_edited"
	ReasonNoChanges     Reason = "no_changes"
)

// ItemResult is the outcome of reconciling one item.
type ItemResult struct {
	Key    ItemKey `json:"key"`
	Name   string  `json:"name"`
	Path   string  `json:"path,omitempty"`
	Action Action  `json:"action"`
	Reason Reason  `json:"reason,omitempty"`
	Err    error   `json:"-"`
}

// RunSummary aggregates one sync run.
type RunSummary struct {
	RunID         string       `json:"run_id"`
	StartedAt     time.Time    `json:"started_at"`
	CompletedAt   time.Time    `json:"completed_at"`
	Written       map[Kind]int `json:"written"`
	LocallyEdited int          `json:"skipped_locally_edited"`
	NoChanges     int          `json:"skipped_no_changes"`
	CoursesSynced []string     `json:"courses_synced"`
	Errors        []string     `json:"errors"`
	Cancelled     bool         `json:"cancelled,omitempty"`
}

// NewRunSummary returns an empty summary with initialised collections.
func NewRunSummary(runID string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:         runID,
		StartedAt:     startedAt,
		Written:       make(map[Kind]int, len(Kinds)),
		CoursesSynced: []string{},
		Errors:        []string{},
	}
}

// Add folds an item result into the counters.
func (s *RunSummary) Add(r ItemResult) {
	switch r.Action {
	case ActionWrite:
		s.Written[r.Key.Kind]++
	case ActionSkip:
		if r.Reason == ReasonLocallyEdited {
			s.LocallyEdited++
		} else {
			s.NoChanges++
		}
	}
}

// Skipped is the total of both skip reasons.
func (s *RunSummary) Skipped() int {
	return s.LocallyEdited + s.NoChanges
}

// TotalWritten sums writes across kinds.
func (s *RunSummary) TotalWritten() int {
	n := 0
	for _, c := range s.Written {
		n += c
	}
	return n
}

// OK reports whether the run finished without recorded errors.
func (s *RunSummary) OK() bool {
	return len(s.Errors) == 0 && !s.Cancelled
}
