// Package taskservice coordinates the index, the mutation engine, and the
// write queue for API and MCP callers.
package taskservice

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/mutate"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/task"
	"github.com/starford/dagaz/internal/vault"
)

// Filter narrows a snapshot listing. Zero values match everything.
type Filter struct {
	Path        string
	Tag         string
	Context     string
	Project     string
	Status      task.Status
	DueBefore   time.Time
	IncludeDone bool
}

// Service is the collaborator-facing surface over the core pipeline.
type Service struct {
	store  storage.Provider
	ix     *vault.Index
	engine *mutate.Engine
	logger *slog.Logger
}

// New creates a task service.
func New(store storage.Provider, ix *vault.Index, engine *mutate.Engine, logger *slog.Logger) *Service {
	return &Service{store: store, ix: ix, engine: engine, logger: logger}
}

// List returns the current snapshot filtered by f.
func (s *Service) List(f Filter) []task.Record {
	recs := s.ix.Snapshot()
	out := make([]task.Record, 0, len(recs))
	for _, r := range recs {
		if !matches(r, f) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches(r task.Record, f Filter) bool {
	if r.Checked && !f.IncludeDone {
		return false
	}
	if f.Path != "" && r.Path != f.Path {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Project != "" && r.Project != f.Project {
		return false
	}
	if f.Tag != "" && !contains(r.Tags, f.Tag) {
		return false
	}
	if f.Context != "" && !contains(r.Contexts, f.Context) {
		return false
	}
	if !f.DueBefore.IsZero() && (!r.HasDue() || !r.Due.Before(f.DueBefore)) {
		return false
	}
	return true
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// Errors returns every parse error across the vault.
func (s *Service) Errors() []task.ParseError {
	return s.ix.Errors()
}

// Get returns a record by stable or ephemeral identity.
func (s *Service) Get(id string) (task.Record, bool) {
	return s.ix.Get(id)
}

// Toggle flips the task with the given identity.
func (s *Service) Toggle(id string) (mutate.Result, error) {
	rec, ok := s.ix.Get(id)
	if !ok {
		return mutate.Result{}, fmt.Errorf("%w: task %s", apperr.ErrNotFound, id)
	}
	res, err := s.engine.Toggle(rec)
	s.afterMutation(res)
	return res, err
}

// Reschedule moves the task with the given identity to newDate.
func (s *Service) Reschedule(id string, newDate time.Time) (mutate.Result, error) {
	rec, ok := s.ix.Get(id)
	if !ok {
		return mutate.Result{}, fmt.Errorf("%w: task %s", apperr.ErrNotFound, id)
	}
	res, err := s.engine.Reschedule(rec, newDate)
	s.afterMutation(res)
	return res, err
}

// Add appends a new canonical directive line to path.
func (s *Service) Add(path, title string, due time.Time, opts task.ComposeOptions) (mutate.Result, error) {
	res, err := s.engine.Add(path, title, due, opts)
	s.afterMutation(res)
	return res, err
}

// afterMutation reindexes the mutated file from a fresh read so callers
// observe the write immediately. The watcher's debounced reindex that
// follows the same write becomes a cheap hash-match hydrate.
func (s *Service) afterMutation(res mutate.Result) {
	if !res.Applied {
		return
	}
	if err := s.ix.ReindexFile(res.Path, s.ix.FreshReader()); err != nil {
		s.logger.Warn("service: reindex after mutation failed",
			slog.String("path", res.Path), slog.String("error", err.Error()))
	}
}
