package api

import (
	"github.com/starford/dagaz/internal/task"
)

// AddTaskRequest is the request body for appending a new task line.
type AddTaskRequest struct {
	Path     string   `json:"path" example:"inbox.md" validate:"required"`
	Title    string   `json:"title" example:"Buy milk" validate:"required"`
	Due      string   `json:"due,omitempty" example:"2026-01-15"`
	Priority int      `json:"priority,omitempty" example:"2"`
	Tags     []string `json:"tags,omitempty" example:"errands"`
	Contexts []string `json:"contexts,omitempty" example:"home"`
	Project  string   `json:"project,omitempty" example:"groceries"`
	Estimate string   `json:"estimate,omitempty" example:"30m"`
}

// ToggleTaskRequest names the task to flip.
type ToggleTaskRequest struct {
	ID string `json:"id" validate:"required"`
}

// RescheduleTaskRequest moves a task to a new due date.
type RescheduleTaskRequest struct {
	ID  string `json:"id" validate:"required"`
	Due string `json:"due" example:"2026-01-22" validate:"required"`
}

// MutationResponse is the result of any mutation endpoint. Success means
// the request was processed; Applied means the file actually changed.
type MutationResponse struct {
	Success bool   `json:"success"`
	Applied bool   `json:"applied"`
	ID      string `json:"id,omitempty"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TaskListResponse wraps a snapshot listing.
type TaskListResponse struct {
	Tasks []task.Record `json:"tasks" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// ErrorListResponse wraps the vault's parse errors.
type ErrorListResponse struct {
	Errors []task.ParseError `json:"errors" validate:"required"`
	Total  int               `json:"total" example:"3" validate:"required"`
}
