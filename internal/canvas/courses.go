package canvas

import (
	"context"
	"net/url"

	"github.com/starford/coursevault/internal/models"
)

// ListCourses returns the user's actively enrolled courses.
func (c *Client) ListCourses(ctx context.Context) ([]models.Course, error) {
	q := url.Values{}
	q.Set("enrollment_state", "active")
	dtos, err := getAll[courseDTO](ctx, c, c.endpoint("/api/v1/courses", q))
	if err != nil {
		return nil, err
	}
	out := make([]models.Course, 0, len(dtos))
	for _, d := range dtos {
		// Courses the user can no longer access come back without a name.
		if d.ID == "" || (d.Name == "" && d.CourseCode == "") {
			continue
		}
		out = append(out, models.Course{ID: string(d.ID), Name: d.Name, Code: d.CourseCode})
	}
	return out, nil
}
