// Package render turns source items into Markdown notes with YAML
// frontmatter. Output depends only on the item and the display time zone.
package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/models"
)

const (
	dateTimeLayout = "January 02, 2006 at 03:04 PM"
	dateLayout     = "January 02, 2006"
	clockLayout    = "03:04 PM"

	noDescription = "No description provided."
)

// Status values derived from an assignment submission.
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
	StatusGraded    = "graded"
)

// Renderer renders notes. Times are displayed in its location.
type Renderer struct {
	loc *time.Location
}

// New returns a Renderer displaying times in loc (UTC when nil).
func New(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

type assignmentFrontmatter struct {
	Type     string   `yaml:"type"`
	Course   string   `yaml:"course"`
	CourseID string   `yaml:"course_id"`
	CanvasID string   `yaml:"canvas_id"`
	Due      *string  `yaml:"due"`
	Points   *float64 `yaml:"points"`
	Status   string   `yaml:"status"`
	URL      string   `yaml:"url"`
}

type eventFrontmatter struct {
	Type     string  `yaml:"type"`
	Course   string  `yaml:"course"`
	CourseID string  `yaml:"course_id"`
	CanvasID string  `yaml:"canvas_id"`
	Start    *string `yaml:"start"`
	End      *string `yaml:"end"`
	AllDay   bool    `yaml:"all_day"`
	Location *string `yaml:"location"`
}

// Render returns the full note text for item.
func (r *Renderer) Render(item models.SourceItem) (string, error) {
	switch {
	case item.Kind == models.KindAssignment && item.Assignment != nil:
		return r.assignment(item)
	case item.Kind == models.KindEvent && item.Event != nil:
		return r.event(item)
	default:
		return "", fmt.Errorf("render: %s has no %s fields: %w", item.Key(), item.Kind, apperr.ErrRender)
	}
}

func (r *Renderer) assignment(item models.SourceItem) (string, error) {
	a := item.Assignment
	fm := assignmentFrontmatter{
		Type:     "assignment",
		Course:   item.CourseName,
		CourseID: item.CourseID,
		CanvasID: item.ID,
		Due:      isoTime(a.DueAt),
		Points:   a.PointsPossible,
		Status:   Status(a.Submission),
		URL:      item.URL,
	}

	due := "No due date"
	if a.DueAt != nil {
		due = a.DueAt.In(r.loc).Format(dateTimeLayout)
	}
	points := "Ungraded"
	if a.PointsPossible != nil && *a.PointsPossible != 0 {
		points = strconv.FormatFloat(*a.PointsPossible, 'f', -1, 64)
	}
	types := "None"
	if len(a.SubmissionTypes) > 0 {
		types = strings.Join(a.SubmissionTypes, ", ")
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n", a.Name)
	fmt.Fprintf(&body, "## Description\n\n%s\n\n", orDefault(HTMLToMarkdown(item.Description), noDescription))
	body.WriteString("## Details\n\n")
	fmt.Fprintf(&body, "- **Due**: %s\n", due)
	fmt.Fprintf(&body, "- **Points**: %s\n", points)
	fmt.Fprintf(&body, "- **Submission Types**: %s\n\n", types)
	fmt.Fprintf(&body, "[Open in Canvas](%s)\n", item.URL)

	return compose(fm, body.String())
}

func (r *Renderer) event(item models.SourceItem) (string, error) {
	e := item.Event
	allDay := r.allDay(e.StartAt)
	var location *string
	if e.LocationName != "" {
		location = &e.LocationName
	}
	fm := eventFrontmatter{
		Type:     "calendar_event",
		Course:   item.CourseName,
		CourseID: item.CourseID,
		CanvasID: item.ID,
		Start:    isoTime(e.StartAt),
		End:      isoTime(e.EndAt),
		AllDay:   allDay,
		Location: location,
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n", e.Title)
	fmt.Fprintf(&body, "## When\n\n%s\n\n", r.when(e.StartAt, e.EndAt, allDay))
	fmt.Fprintf(&body, "## Location\n\n%s\n\n", orDefault(e.LocationName, "Not specified"))
	fmt.Fprintf(&body, "## Description\n\n%s\n\n", orDefault(HTMLToMarkdown(item.Description), noDescription))
	fmt.Fprintf(&body, "[Open in Canvas](%s)\n", item.URL)

	return compose(fm, body.String())
}

// allDay reports whether start falls exactly on midnight in the display zone.
func (r *Renderer) allDay(start *time.Time) bool {
	if start == nil {
		return false
	}
	h, m, s := start.In(r.loc).Clock()
	return h == 0 && m == 0 && s == 0
}

func (r *Renderer) when(start, end *time.Time, allDay bool) string {
	switch {
	case start == nil:
		return "Time not specified"
	case allDay:
		return start.In(r.loc).Format(dateLayout) + " (All Day)"
	case end != nil:
		return fmt.Sprintf("%s from %s to %s",
			start.In(r.loc).Format(dateLayout),
			start.In(r.loc).Format(clockLayout),
			end.In(r.loc).Format(clockLayout))
	default:
		return start.In(r.loc).Format(dateTimeLayout)
	}
}

// Status maps a submission to pending, submitted or graded.
func Status(sub *models.Submission) string {
	if sub == nil {
		return StatusPending
	}
	switch {
	case sub.WorkflowState == "graded" || sub.Grade != nil:
		return StatusGraded
	case sub.WorkflowState == "submitted" || sub.WorkflowState == "pending_review":
		return StatusSubmitted
	default:
		return StatusPending
	}
}

func compose(fm any, body string) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return "", fmt.Errorf("render: frontmatter: %w: %w", apperr.ErrRender, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("render: frontmatter: %w: %w", apperr.ErrRender, err)
	}
	return "---\n" + buf.String() + "---\n\n" + body, nil
}

func isoTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
