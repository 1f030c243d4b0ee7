// Package mutate locates a task's line by identity and rewrites it: toggle,
// reschedule, or append. Every mutation for a file runs through the write
// serialization queue, and a write only happens when content actually
// changed.
package mutate

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/task"
	"github.com/starford/dagaz/internal/vault"
	"github.com/starford/dagaz/internal/writeq"
)

// Result reports what a mutation did. Applied is false when the target
// line could no longer be located: the task was deleted or edited away,
// which is a silent no-op rather than an error.
type Result struct {
	Applied bool   `json:"applied"`
	Path    string `json:"path,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Engine performs line-level mutations against vault files.
type Engine struct {
	store storage.Provider
	queue *writeq.Queue
	now   func() time.Time
	newID func() string
}

// NewEngine creates a mutation engine. now may be nil for wall-clock time.
func NewEngine(store storage.Provider, queue *writeq.Queue, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store: store,
		queue: queue,
		now:   now,
		newID: func() string { return uuid.NewString()[:8] },
	}
}

// Toggle flips the checkbox of the record's line. The direction is the
// logical negation of the record's last-known state. Completion stamps
// today's date into the metadata; un-completion clears it. Completing a
// recurring task with a due date inserts an unchecked sibling line for the
// next occurrence, carrying a freshly generated stable identity.
func (e *Engine) Toggle(rec task.Record) (Result, error) {
	res := Result{Path: rec.Path}
	err := e.queue.Do(rec.Path, func() error {
		data, err := e.store.Read(rec.Path)
		if err != nil {
			return fmt.Errorf("%w: %s", apperr.ErrFileMissing, rec.Path)
		}
		original := string(data)
		lines := strings.Split(original, "\n")

		i := vault.LocateLine(lines, rec)
		if i < 0 {
			return nil
		}

		base, meta := task.StripMeta(lines[i])
		base = strings.TrimRight(base, " \t")
		if meta == nil {
			// Lazy identity promotion on first interaction.
			meta = &task.Metadata{ID: e.newID(), Version: task.MetaVersion}
		}

		checked := !rec.Checked
		if checked {
			meta.Done = e.now().Format(task.DoneFormat)
		} else {
			meta.Done = ""
		}
		lines[i] = task.SetChecked(base, checked) + " " + task.RenderMeta(meta)
		res.ID = meta.ID

		if checked && rec.Recurrence != nil && rec.HasDue() {
			next := rec.Recurrence.Next(rec.Due)
			sib := task.SetChecked(base, false)
			sib = strings.Replace(sib, rec.DueText, next.Format(task.DateFormat), 1)
			sibMeta := &task.Metadata{ID: e.newID(), Version: task.MetaVersion}
			sibling := sib + " " + task.RenderMeta(sibMeta)
			lines = append(lines[:i+1], append([]string{sibling}, lines[i+1:]...)...)
		}

		updated := strings.Join(lines, "\n")
		if updated == original {
			return nil
		}
		res.Applied = true
		return e.store.Write(rec.Path, []byte(updated))
	})
	return res, err
}

// Reschedule replaces the record's due date token with newDate, or inserts
// a date token when the line had none: immediately before the identity
// metadata comment, or at line end when no metadata exists yet. The line
// always ends up with a stable identity.
func (e *Engine) Reschedule(rec task.Record, newDate time.Time) (Result, error) {
	res := Result{Path: rec.Path}
	err := e.queue.Do(rec.Path, func() error {
		data, err := e.store.Read(rec.Path)
		if err != nil {
			return fmt.Errorf("%w: %s", apperr.ErrFileMissing, rec.Path)
		}
		original := string(data)
		lines := strings.Split(original, "\n")

		i := vault.LocateLine(lines, rec)
		if i < 0 {
			return nil
		}

		base, meta := task.StripMeta(lines[i])
		base = strings.TrimRight(base, " \t")
		token := newDate.Format(task.DateFormat)

		if rec.DueText != "" && strings.Contains(base, rec.DueText) {
			base = strings.Replace(base, rec.DueText, token, 1)
		} else {
			base = base + " " + token
		}
		if meta == nil {
			meta = &task.Metadata{ID: e.newID(), Version: task.MetaVersion}
		}
		lines[i] = base + " " + task.RenderMeta(meta)
		res.ID = meta.ID

		updated := strings.Join(lines, "\n")
		if updated == original {
			return nil
		}
		res.Applied = true
		return e.store.Write(rec.Path, []byte(updated))
	})
	return res, err
}

// Add composes a canonical directive line and appends it to the target
// file, creating the file when it does not exist yet.
func (e *Engine) Add(path, title string, due time.Time, opts task.ComposeOptions) (Result, error) {
	res := Result{Path: path}
	if strings.TrimSpace(title) == "" {
		return res, fmt.Errorf("mutate: title is required")
	}
	err := e.queue.Do(path, func() error {
		line := task.ComposeLine(title, due, opts)

		existing, err := e.store.Read(path)
		if err != nil {
			res.Applied = true
			return e.store.Write(path, []byte(line+"\n"))
		}
		content := string(existing)
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		res.Applied = true
		return e.store.Write(path, []byte(content+line+"\n"))
	})
	return res, err
}
