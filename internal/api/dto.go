package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/syncservice"
)

// CourseInput is one course in a selection request.
type CourseInput struct {
	ID   string `json:"id" example:"12345" validate:"required"`
	Name string `json:"name,omitempty" example:"CS 101"`
}

// Validate implements validation.Validatable.
func (c CourseInput) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required, is.Digit),
		validation.Field(&c.Name, validation.Length(0, 200)),
	)
}

// SelectCoursesRequest replaces the stored course selection.
type SelectCoursesRequest struct {
	Courses []CourseInput `json:"courses" validate:"required"`
}

// Validate implements validation.Validatable.
func (r SelectCoursesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Courses, validation.NotNil),
	)
}

func (r SelectCoursesRequest) courses() []models.Course {
	out := make([]models.Course, 0, len(r.Courses))
	for _, c := range r.Courses {
		out = append(out, models.Course{ID: c.ID, Name: c.Name})
	}
	return out
}

// CourseListResponse lists the courses runs sync and where they come from.
type CourseListResponse struct {
	Courses []models.Course `json:"courses" validate:"required"`
	Source  string          `json:"source" example:"selection" validate:"required"`
}

// AvailableCoursesResponse lists upstream courses.
type AvailableCoursesResponse struct {
	Courses []models.Course `json:"courses" validate:"required"`
}

// SyncStartedResponse is returned when a run was started in the background.
type SyncStartedResponse struct {
	Status string `json:"status" example:"started" validate:"required"`
}

// RecordListResponse wraps sync records.
type RecordListResponse struct {
	Records []RecordView `json:"records" validate:"required"`
	Total   int          `json:"total" example:"42" validate:"required"`
}

// RecordView is a sync record with its note's local state (aliased from the service layer).
type RecordView = syncservice.RecordView

// NoteEntry is a vault file listing item (aliased from the service layer).
type NoteEntry = syncservice.NoteEntry

// NoteListResponse wraps vault listings.
type NoteListResponse struct {
	Notes []NoteEntry `json:"notes" validate:"required"`
	Total int         `json:"total" example:"42" validate:"required"`
}

// NoteDetail is a materialized note (aliased from the service layer).
type NoteDetail = syncservice.NoteDetail

// StatusResponse is the sync status (aliased from the service layer).
type StatusResponse = syncservice.Status

// RunSummary is the outcome of a run.
type RunSummary = models.RunSummary
