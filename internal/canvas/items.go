package canvas

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/models"
)

// flexID accepts Canvas ids encoded as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexID(s)
	return nil
}

type courseDTO struct {
	ID         flexID `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code"`
}

type submissionDTO struct {
	WorkflowState string  `json:"workflow_state"`
	Grade         *string `json:"grade"`
}

type assignmentDTO struct {
	ID              flexID         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	DueAt           *time.Time     `json:"due_at"`
	PointsPossible  *float64       `json:"points_possible"`
	HTMLURL         string         `json:"html_url"`
	UpdatedAt       *time.Time     `json:"updated_at"`
	SubmissionTypes []string       `json:"submission_types"`
	Submission      *submissionDTO `json:"submission"`
}

type eventDTO struct {
	ID           flexID     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	StartAt      *time.Time `json:"start_at"`
	EndAt        *time.Time `json:"end_at"`
	LocationName string     `json:"location_name"`
	HTMLURL      string     `json:"html_url"`
	UpdatedAt    *time.Time `json:"updated_at"`
	ContextCode  string     `json:"context_code"`
}

// FetchItems returns the items of one kind for a course, in the order Canvas
// returns them. Items last updated strictly before since are dropped.
// CourseName is left empty; the caller knows the course label.
func (c *Client) FetchItems(ctx context.Context, courseID string, kind models.Kind, since *time.Time) ([]models.SourceItem, error) {
	var (
		items []models.SourceItem
		err   error
	)
	switch kind {
	case models.KindAssignment:
		items, err = c.fetchAssignments(ctx, courseID)
	case models.KindEvent:
		items, err = c.fetchEvents(ctx, courseID)
	default:
		return nil, fmt.Errorf("canvas: unknown kind %q: %w", kind, apperr.ErrPermanentSource)
	}
	if err != nil {
		return nil, err
	}
	if since == nil {
		return items, nil
	}
	kept := items[:0]
	for _, it := range items {
		if it.SourceModifiedAt.IsZero() || !it.SourceModifiedAt.Before(*since) {
			kept = append(kept, it)
		}
	}
	return kept, nil
}

func (c *Client) fetchAssignments(ctx context.Context, courseID string) ([]models.SourceItem, error) {
	q := url.Values{}
	q.Add("include[]", "submission")
	q.Set("order_by", "due_at")
	dtos, err := getAll[assignmentDTO](ctx, c, c.endpoint("/api/v1/courses/"+url.PathEscape(courseID)+"/assignments", q))
	if err != nil {
		return nil, err
	}
	out := make([]models.SourceItem, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toItem(courseID))
	}
	return out, nil
}

func (c *Client) fetchEvents(ctx context.Context, courseID string) ([]models.SourceItem, error) {
	now := c.now()
	contextCode := "course_" + courseID
	q := url.Values{}
	q.Add("context_codes[]", contextCode)
	q.Set("type", "event")
	q.Set("start_date", now.AddDate(0, 0, -c.pastDays).Format("2006-01-02"))
	q.Set("end_date", now.AddDate(0, 0, c.futureDays).Format("2006-01-02"))
	dtos, err := getAll[eventDTO](ctx, c, c.endpoint("/api/v1/calendar_events", q))
	if err != nil {
		return nil, err
	}
	out := make([]models.SourceItem, 0, len(dtos))
	for _, d := range dtos {
		if d.ContextCode != "" && d.ContextCode != contextCode {
			continue
		}
		out = append(out, d.toItem(courseID))
	}
	return out, nil
}

func (d assignmentDTO) toItem(courseID string) models.SourceItem {
	a := &models.AssignmentFields{
		Name:            d.Name,
		DueAt:           d.DueAt,
		PointsPossible:  d.PointsPossible,
		SubmissionTypes: d.SubmissionTypes,
	}
	if d.Submission != nil {
		a.Submission = &models.Submission{
			WorkflowState: d.Submission.WorkflowState,
			Grade:         d.Submission.Grade,
		}
	}
	return models.SourceItem{
		ID:               string(d.ID),
		Kind:             models.KindAssignment,
		CourseID:         courseID,
		SourceModifiedAt: deref(d.UpdatedAt),
		URL:              d.HTMLURL,
		Description:      d.Description,
		Assignment:       a,
	}
}

func (d eventDTO) toItem(courseID string) models.SourceItem {
	return models.SourceItem{
		ID:               string(d.ID),
		Kind:             models.KindEvent,
		CourseID:         courseID,
		SourceModifiedAt: deref(d.UpdatedAt),
		URL:              d.HTMLURL,
		Description:      d.Description,
		Event: &models.EventFields{
			Title:        d.Title,
			StartAt:      d.StartAt,
			EndAt:        d.EndAt,
			LocationName: d.LocationName,
		},
	}
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
