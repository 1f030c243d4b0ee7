package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/task"
	"github.com/starford/dagaz/internal/taskservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *taskservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *taskservice.Service) *Handler {
	return &Handler{svc: svc}
}

// parseDue accepts both the compact 8-digit form and YYYY-MM-DD.
func parseDue(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(task.DateFormat, s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation(task.DoneFormat, s, time.Local)
}

// ListTasks handles GET /api/tasks.
//
//	@Summary		List indexed tasks with optional filtering
//	@Tags			tasks
//	@Produce		json
//	@Param			tag				query		string	false	"Filter by tag"
//	@Param			context			query		string	false	"Filter by context"
//	@Param			project			query		string	false	"Filter by project"
//	@Param			status			query		string	false	"Filter by status"	Enums(active, waiting, blocked)
//	@Param			path			query		string	false	"Filter by file path"
//	@Param			due_before		query		string	false	"Only tasks due before this date"
//	@Param			include_done	query		bool	false	"Include completed tasks"
//	@Success		200				{object}	TaskListResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := taskservice.Filter{
		Path:        q.Get("path"),
		Tag:         q.Get("tag"),
		Context:     q.Get("context"),
		Project:     q.Get("project"),
		Status:      task.Status(q.Get("status")),
		IncludeDone: q.Get("include_done") == "true",
	}
	if due, err := parseDue(q.Get("due_before")); err == nil {
		f.DueBefore = due
	} else {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid due_before"))
		return
	}

	tasks := h.svc.List(f)
	if tasks == nil {
		tasks = []task.Record{}
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks, Total: len(tasks)})
}

// ListErrors handles GET /api/errors.
//
//	@Summary		List parse errors across the vault
//	@Tags			tasks
//	@Produce		json
//	@Success		200	{object}	ErrorListResponse
//	@Security		BearerAuth
//	@Router			/errors [get]
func (h *Handler) ListErrors(w http.ResponseWriter, r *http.Request) {
	errs := h.svc.Errors()
	if errs == nil {
		errs = []task.ParseError{}
	}
	writeJSON(w, http.StatusOK, ErrorListResponse{Errors: errs, Total: len(errs)})
}

// AddTask handles POST /api/tasks.
//
//	@Summary		Append a new task line to a vault file
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AddTaskRequest	true	"Task to add"
//	@Success		201		{object}	MutationResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [post]
func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req AddTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and title are required"))
		return
	}
	due, err := parseDue(req.Due)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid due date"))
		return
	}

	res, err := h.svc.Add(req.Path, req.Title, due, task.ComposeOptions{
		Priority: req.Priority,
		Tags:     req.Tags,
		Contexts: req.Contexts,
		Project:  req.Project,
		Estimate: req.Estimate,
	})
	if err != nil {
		slog.Error("add task failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, MutationResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, MutationResponse{Success: true, Applied: res.Applied, Path: res.Path})
}

// ToggleTask handles POST /api/tasks/toggle.
//
//	@Summary		Toggle a task's checkbox by identity
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ToggleTaskRequest	true	"Task identity"
//	@Success		200		{object}	MutationResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/toggle [post]
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	var req ToggleTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	res, err := h.svc.Toggle(req.ID)
	if err != nil {
		h.writeMutationError(w, req.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Success: true, Applied: res.Applied, ID: res.ID, Path: res.Path})
}

// RescheduleTask handles POST /api/tasks/reschedule.
//
//	@Summary		Move a task to a new due date
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RescheduleTaskRequest	true	"Task identity and date"
//	@Success		200		{object}	MutationResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/reschedule [post]
func (h *Handler) RescheduleTask(w http.ResponseWriter, r *http.Request) {
	var req RescheduleTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	due, err := parseDue(req.Due)
	if err != nil || due.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid due date"))
		return
	}
	res, err := h.svc.Reschedule(req.ID, due)
	if err != nil {
		h.writeMutationError(w, req.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Success: true, Applied: res.Applied, ID: res.ID, Path: res.Path})
}

func (h *Handler) writeMutationError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("task not found"))
	case errors.Is(err, apperr.ErrFileMissing):
		writeJSON(w, http.StatusConflict, MutationResponse{Error: err.Error()})
	default:
		slog.Error("mutation failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, MutationResponse{Error: "internal error"})
	}
}
