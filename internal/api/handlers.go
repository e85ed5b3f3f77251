package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/syncservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *syncservice.Service
	// base outlives requests; background runs derive from it.
	base context.Context
}

// NewHandler creates a new Handler. Background runs started through it
// are cancelled with base.
func NewHandler(base context.Context, svc *syncservice.Service) *Handler {
	return &Handler{svc: svc, base: base}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. CS%20101%2Fquiz.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Status handles GET /api/status.
//
//	@Summary		Current sync state and last run summary
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		writeError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// TriggerSync handles POST /api/sync.
//
//	@Summary		Start a sync run
//	@Description	Starts a run in the background and answers 202. With wait=true the run completes before the response.
//	@Tags			sync
//	@Produce		json
//	@Param			wait	query		bool	false	"Wait for the run to finish"
//	@Success		200		{object}	RunSummary
//	@Success		202		{object}	SyncStartedResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if wait {
		summary, err := h.svc.RunSync(r.Context())
		if err != nil {
			writeError(w, "sync", err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}
	if _, err := h.svc.StartSync(h.base); err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusAccepted, SyncStartedResponse{Status: "started"})
}

// ListCourses handles GET /api/courses.
//
//	@Summary		Courses synced by each run
//	@Tags			courses
//	@Produce		json
//	@Success		200	{object}	CourseListResponse
//	@Security		BearerAuth
//	@Router			/courses [get]
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, source, err := h.svc.Courses(r.Context())
	if err != nil {
		writeError(w, "list courses", err)
		return
	}
	writeJSON(w, http.StatusOK, CourseListResponse{Courses: courses, Source: source})
}

// SelectCourses handles PUT /api/courses.
//
//	@Summary		Replace the course selection
//	@Tags			courses
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectCoursesRequest	true	"Courses to sync"
//	@Success		200		{object}	CourseListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/courses [put]
func (h *Handler) SelectCourses(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SelectCoursesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	selected, err := h.svc.SelectCourses(r.Context(), req.courses())
	if err != nil {
		writeError(w, "select courses", err)
		return
	}
	courses := make([]models.Course, 0, len(selected))
	for _, sc := range selected {
		courses = append(courses, sc.Course)
	}
	slog.Info("api: course selection replaced", slog.Int("courses", len(courses)))
	writeJSON(w, http.StatusOK, CourseListResponse{Courses: courses, Source: "selection"})
}

// AvailableCourses handles GET /api/courses/available.
//
//	@Summary		Active courses upstream
//	@Tags			courses
//	@Produce		json
//	@Success		200	{object}	AvailableCoursesResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/courses/available [get]
func (h *Handler) AvailableCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.svc.AvailableCourses(r.Context())
	if err != nil {
		writeError(w, "available courses", err)
		return
	}
	if courses == nil {
		courses = []models.Course{}
	}
	writeJSON(w, http.StatusOK, AvailableCoursesResponse{Courses: courses})
}

// ListRecords handles GET /api/records.
//
//	@Summary		Sync records with the local state of their notes
//	@Tags			records
//	@Produce		json
//	@Param			course_id	query		string	false	"Filter by course"
//	@Success		200			{object}	RecordListResponse
//	@Security		BearerAuth
//	@Router			/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.ListRecords(r.Context(), r.URL.Query().Get("course_id"))
	if err != nil {
		writeError(w, "list records", err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: records, Total: len(records)})
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List Markdown notes in the vault
//	@Tags			notes
//	@Produce		json
//	@Param			folder	query		string	false	"Vault-relative folder"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListNotes(r.Context(), r.URL.Query().Get("folder"))
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a materialized note by vault path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}
