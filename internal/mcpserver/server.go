// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes coursevault sync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/syncservice"
)

const noteFormatURI = "coursevault://note-format"

// Server wraps the MCP server with sync tools.
type Server struct {
	mcp *server.MCPServer
	svc *syncservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *syncservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"coursevault",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Report whether a sync is running, the synced courses and the last run summary."),
	), s.syncStatus)

	s.mcp.AddTool(mcp.NewTool("run_sync",
		mcp.WithDescription("Run a sync of the selected courses into the vault and return the run summary. "+
			"Notes edited by hand are never overwritten."),
	), s.runSync)

	s.mcp.AddTool(mcp.NewTool("list_synced_notes",
		mcp.WithDescription("List synced notes with their source item and local state (synced, edited or missing)."),
		mcp.WithString("course_id", mcp.Description("Optional course id to filter by")),
	), s.listSyncedNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a synced Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path (e.g. Courses/CS 101/Assignments/Homework 1.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all Markdown notes in the vault or in a folder, marking the ones the sync owns."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("list_courses",
		mcp.WithDescription("List the courses each run syncs, or with available=true the active courses upstream."),
		mcp.WithBoolean("available", mcp.Description("List upstream courses instead of the synced ones")),
	), s.listCourses)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Describe the structure of synced notes and which local edits are preserved."),
	), s.getNoteFormat)

	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Synced Note Format",
			mcp.WithResourceDescription("Structure of the notes written by the sync."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) syncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) runSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.svc.RunSync(ctx)
	switch {
	case errors.Is(err, apperr.ErrSyncBusy):
		return mcp.NewToolResultError("a sync is already running"), nil
	case errors.Is(err, apperr.ErrNoCollections):
		return mcp.NewToolResultError("no courses selected"), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summary)
}

func (s *Server) listSyncedNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courseID := ""
	if c, err := req.RequireString("course_id"); err == nil {
		courseID = c
	}
	records, err := s.svc.ListRecords(ctx, courseID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("no synced notes"), nil
	}
	return jsonResult(records)
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}
	notes, err := s.svc.ListNotes(ctx, folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	for _, n := range notes {
		b.WriteString(n.Path)
		if n.Key != nil {
			fmt.Fprintf(&b, "\t%s\t%s", n.Key, n.LocalState)
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(strings.TrimSuffix(b.String(), "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) listCourses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if available, err := req.RequireBool("available"); err == nil && available {
		courses, err := s.svc.AvailableCourses(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(courses)
	}
	courses, source, err := s.svc.Courses(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"courses": courses, "source": source})
}

func (s *Server) getNoteFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormat), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormat,
		},
	}, nil
}
