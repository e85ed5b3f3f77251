package render

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/coursevault/internal/models"
)

func todoItem(id, course, name string, due *time.Time, sub *models.Submission) models.SourceItem {
	return models.SourceItem{
		ID:         id,
		Kind:       models.KindAssignment,
		CourseID:   "c-" + course,
		CourseName: course,
		URL:        "https://canvas.example.edu/a/" + id,
		Assignment: &models.AssignmentFields{Name: name, DueAt: due, Submission: sub},
	}
}

func TestTodoList(t *testing.T) {
	r := New(time.UTC)
	feb := ptrTime(time.Date(2026, 2, 15, 23, 59, 0, 0, time.UTC))
	jan := ptrTime(time.Date(2026, 1, 30, 9, 0, 0, 0, time.UTC))
	items := []models.SourceItem{
		todoItem("2", "FA26 - CS 225 - Data Structures", "MP Lists", feb, nil),
		todoItem("1", "MATH 241", "Quiz 1", jan, &models.Submission{WorkflowState: "submitted"}),
		todoItem("3", "MATH 241", "Reading", nil, nil),
		{ID: "9", Kind: models.KindEvent, CourseName: "MATH 241", Event: &models.EventFields{Title: "Exam", StartAt: jan}},
	}

	note, err := r.TodoList(items)
	if err != nil {
		t.Fatalf("TodoList: %v", err)
	}
	fm := frontmatter(t, note)
	if fm["type"] != "todo_master" || fm["tasks"] != 2 || fm["courses"] != 2 {
		t.Errorf("frontmatter = %v", fm)
	}

	first := "- [x] **MATH 241**: Quiz 1 (due January 30, 2026 at 09:00 AM) [Link](https://canvas.example.edu/a/1)"
	second := "- [ ] **CS 225**: MP Lists (due February 15, 2026 at 11:59 PM) [Link](https://canvas.example.edu/a/2)"
	i, j := strings.Index(note, first), strings.Index(note, second)
	if i < 0 || j < 0 || i > j {
		t.Fatalf("tasks missing or out of due order:\n%s", note)
	}
	for _, absent := range []string{"Reading", "Exam"} {
		if strings.Contains(note, absent) {
			t.Errorf("note lists %q:\n%s", absent, note)
		}
	}
}

func TestTodoList_DeterministicAndEmpty(t *testing.T) {
	r := New(time.UTC)
	due := ptrTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := []models.SourceItem{
		todoItem("1", "CS 101", "B", due, nil),
		todoItem("2", "CS 101", "A", due, nil),
	}
	b := []models.SourceItem{a[1], a[0]}
	x, _ := r.TodoList(a)
	y, _ := r.TodoList(b)
	if x != y {
		t.Errorf("input order changed the note:\n%s\n---\n%s", x, y)
	}
	if strings.Index(x, ": A ") > strings.Index(x, ": B ") {
		t.Errorf("ties should sort by name:\n%s", x)
	}

	empty, err := r.TodoList(nil)
	if err != nil || !strings.Contains(empty, "Nothing due.") {
		t.Errorf("empty list = %q, %v", empty, err)
	}
}
