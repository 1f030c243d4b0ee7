// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Dagaz task tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/task"
	"github.com/starford/dagaz/internal/taskservice"
)

// Server wraps the MCP server with Dagaz tools.
type Server struct {
	mcp *server.MCPServer
	svc *taskservice.Service
}

// New creates a new MCP server with all Dagaz tools registered.
func New(svc *taskservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List indexed tasks, optionally filtered by tag, project, or status."),
		mcp.WithString("tag", mcp.Description("Filter by tag")),
		mcp.WithString("project", mcp.Description("Filter by project")),
		mcp.WithString("status", mcp.Description("Filter by status: active, waiting, or blocked")),
		mcp.WithBoolean("include_done", mcp.Description("Include completed tasks")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("get_errors",
		mcp.WithDescription("List lines that looked like task directives but failed parsing."),
	), s.getErrors)

	s.mcp.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Append a new task line to a vault file. The line is composed in "+
			"canonical directive form; read the contract first via the get_directive_contract "+
			"tool or the dagaz://directive-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative vault file path (e.g. inbox.md)")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("due", mcp.Description("Due date, YYYY-MM-DD or YYYYMMDD")),
		mcp.WithString("project", mcp.Description("Project name")),
	), s.addTask)

	s.mcp.AddTool(mcp.NewTool("toggle_task",
		mcp.WithDescription("Toggle a task's checkbox by its identity from list_tasks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task identity")),
	), s.toggleTask)

	s.mcp.AddTool(mcp.NewTool("reschedule_task",
		mcp.WithDescription("Move a task to a new due date."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task identity")),
		mcp.WithString("due", mcp.Required(), mcp.Description("New due date, YYYY-MM-DD or YYYYMMDD")),
	), s.rescheduleTask)

	s.mcp.AddTool(mcp.NewTool("get_directive_contract",
		mcp.WithDescription("Returns the canonical Dagaz directive line grammar. "+
			"Call this before composing task lines by hand."),
	), s.getDirectiveContract)

	// Resource: directive format contract.
	s.mcp.AddResource(
		mcp.NewResource("dagaz://directive-format", "Directive Format Contract",
			mcp.WithResourceDescription("Canonical task directive line grammar."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDirectiveFormatResource,
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

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := taskservice.Filter{
		Tag:         req.GetString("tag", ""),
		Project:     req.GetString("project", ""),
		Status:      task.Status(req.GetString("status", "")),
		IncludeDone: req.GetBool("include_done", false),
	}
	out, _ := json.MarshalIndent(s.svc.List(f), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getErrors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.Errors(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) addTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	due, err := parseDue(req.GetString("due", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid due date: %v", err)), nil
	}

	res, err := s.svc.Add(path, title, due, task.ComposeOptions{Project: req.GetString("project", "")})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added to %s", res.Path)), nil
}

func (s *Server) toggleTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Toggle(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !res.Applied {
		return mcp.NewToolResultText("nothing to do: task line no longer present"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("toggled %s in %s", res.ID, res.Path)), nil
}

func (s *Server) rescheduleTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	due, err := parseDue(req.GetString("due", ""))
	if err != nil || due.IsZero() {
		return mcp.NewToolResultError("due date is required (YYYY-MM-DD or YYYYMMDD)"), nil
	}
	res, err := s.svc.Reschedule(id, due)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !res.Applied {
		return mcp.NewToolResultText("nothing to do: task line no longer present"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("rescheduled %s to %s", res.ID, due.Format(task.DoneFormat))), nil
}

func (s *Server) getDirectiveContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DirectiveFormatContract), nil
}

func (s *Server) readDirectiveFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "dagaz://directive-format",
			MIMEType: "text/markdown",
			Text:     DirectiveFormatContract,
		},
	}, nil
}

func parseDue(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(task.DateFormat, s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation(task.DoneFormat, s, time.Local)
}
