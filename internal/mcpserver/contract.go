package mcpserver

// NoteFormat describes the Markdown notes the sync writes, so LLM
// consumers can interpret their frontmatter and know which edits survive.
const NoteFormat = `# Synced Note Format

Every course item is materialized as one Markdown note under
` + "`" + `Courses/<course>/<Assignments|Events>/<name>.md` + "`" + `.

## Assignment

` + "```" + `markdown
---
type: assignment
course: CS 101
course_id: "123"
canvas_id: "456"
due: 2026-02-01T23:59:00Z         # absent when there is no due date
points: 10                         # absent when ungraded
status: pending                    # pending | submitted | graded
url: https://canvas.example.edu/courses/123/assignments/456
---

# Homework 1

## Description
...

## Details
- **Due:** February 01, 2026 at 05:59 PM
- **Points:** 10
- **Submission Types:** online_upload

[Open in Canvas](https://canvas.example.edu/courses/123/assignments/456)
` + "```" + `

## Calendar event

Frontmatter keys: ` + "`" + `type: calendar_event` + "`" + `, ` + "`" + `course` + "`" + `, ` + "`" + `course_id` + "`" + `,
` + "`" + `canvas_id` + "`" + `, ` + "`" + `start` + "`" + `, ` + "`" + `end` + "`" + `, ` + "`" + `all_day` + "`" + `, ` + "`" + `location` + "`" + `.
Body sections: When, Location, Description, then the Canvas link.

## Rules

1. ` + "`" + `type` + "`" + ` and ` + "`" + `canvas_id` + "`" + ` identify the source item. Do not change them.
2. A note edited by hand is never overwritten; the sync skips it and reports
   ` + "`" + `locally_edited` + "`" + `.
3. A note deleted by hand is recreated on the next run.
4. Items removed upstream keep their notes.
5. Two items with the same name in one course folder are disambiguated as
   ` + "`" + `<name>_<canvas_id>.md` + "`" + `.
`
