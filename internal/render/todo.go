package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/coursevault/internal/models"
)

type todoFrontmatter struct {
	Type    string `yaml:"type"`
	Courses int    `yaml:"courses"`
	Tasks   int    `yaml:"tasks"`
}

// TodoList renders the master TODO note: every assignment with a due date,
// soonest first, checked once submitted or graded. Undated assignments and
// events are left out. The text depends only on items, so an unchanged
// course list renders byte-identically.
func (r *Renderer) TodoList(items []models.SourceItem) (string, error) {
	tasks := make([]models.SourceItem, 0, len(items))
	courses := make(map[string]struct{})
	for _, it := range items {
		if it.Kind != models.KindAssignment || it.Assignment == nil || it.Assignment.DueAt == nil {
			continue
		}
		tasks = append(tasks, it)
		courses[it.CourseID] = struct{}{}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if da, db := *a.Assignment.DueAt, *b.Assignment.DueAt; !da.Equal(db) {
			return da.Before(db)
		}
		if a.CourseName != b.CourseName {
			return a.CourseName < b.CourseName
		}
		if a.Assignment.Name != b.Assignment.Name {
			return a.Assignment.Name < b.Assignment.Name
		}
		return a.ID < b.ID
	})

	var body strings.Builder
	body.WriteString("# Course TODO List\n\n## All Tasks\n\n")
	if len(tasks) == 0 {
		body.WriteString("Nothing due.\n")
	}
	for _, it := range tasks {
		box := "[ ]"
		if s := Status(it.Assignment.Submission); s == StatusSubmitted || s == StatusGraded {
			box = "[x]"
		}
		fmt.Fprintf(&body, "- %s **%s**: %s (due %s)", box, todoCourse(it.CourseName), oneLine(it.Assignment.Name),
			it.Assignment.DueAt.In(r.loc).Format(dateTimeLayout))
		if it.URL != "" {
			fmt.Fprintf(&body, " [Link](%s)", it.URL)
		}
		body.WriteString("\n")
	}

	return compose(todoFrontmatter{Type: "todo_master", Courses: len(courses), Tasks: len(tasks)}, body.String())
}

// todoCourse shortens "TERM - CS 101 - Title" style names to the course code.
func todoCourse(name string) string {
	parts := strings.Split(name, " - ")
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1])
	}
	return name
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
