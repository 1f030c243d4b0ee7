// Package task implements the directive line grammar: parsing one line of
// vault text into a structured task, the natural-language date sub-grammar,
// recurrence rules, and the canonical line format written back on mutation.
package task

import "time"

// Status classifies a directive's workflow state.
type Status string

const (
	StatusActive  Status = "active"
	StatusWaiting Status = "waiting"
	StatusBlocked Status = "blocked"
)

// DateFormat is the compact on-disk form of a due date.
const DateFormat = "20060102"

// DoneFormat is the on-disk form of the completion date inside metadata.
const DoneFormat = "2006-01-02"

// MetaVersion is the current schema version written into identity metadata.
const MetaVersion = 1

// Metadata is the stable-identity record persisted inline in the source
// line as a <!--todo:...--> comment. Once assigned, ID is immutable for
// that logical task.
type Metadata struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Done    string `json:"done,omitempty"` // YYYY-MM-DD, empty when not completed
}

// RecurUnit enumerates recurrence rule variants.
type RecurUnit string

const (
	RecurDay     RecurUnit = "day"
	RecurWeek    RecurUnit = "week"
	RecurMonth   RecurUnit = "month"
	RecurYear    RecurUnit = "year"
	RecurWeekday RecurUnit = "weekday" // next business day
	RecurCustom  RecurUnit = "custom"  // explicit weekday set
)

// Recurrence is a parsed recurrence rule. Interval is always >= 1 for the
// day/week/month/year units. Weekdays is populated only for RecurCustom.
// Text is the exact matched source fragment, kept for round-trip display.
type Recurrence struct {
	Unit     RecurUnit      `json:"unit"`
	Interval int            `json:"interval"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	Text     string         `json:"text"`
}

// Estimate is a parsed time estimate. Days normalise to an 8-hour workday.
type Estimate struct {
	Minutes int    `json:"minutes"`
	Text    string `json:"text"` // display form, e.g. "~2h"
}

// Directive is the ephemeral result of parsing one line. Title is never
// empty; a candidate line that would yield an empty title is a parse error.
type Directive struct {
	Checked    bool        `json:"checked"`
	Title      string      `json:"title"`
	Due        time.Time   `json:"due,omitzero"` // zero means no due date
	DueText    string      `json:"due_text,omitempty"`
	Priority   int         `json:"priority"` // 0..3
	Tags       []string    `json:"tags,omitempty"`
	Contexts   []string    `json:"contexts,omitempty"`
	Project    string      `json:"project,omitempty"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`
	Estimate   *Estimate   `json:"estimate,omitempty"`
	Status     Status      `json:"status"`
	StatusRef  string      `json:"status_ref,omitempty"`
	Meta       *Metadata   `json:"meta,omitempty"`
}

// HasDue reports whether the directive carries a due date.
func (d *Directive) HasDue() bool { return !d.Due.IsZero() }

// Record is the indexed form of a directive. Line is a 0-based hint only:
// text may have shifted since indexing. Raw is the exact source line.
type Record struct {
	Directive
	ID     string `json:"id"`
	Stable bool   `json:"stable"`
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Raw    string `json:"raw"`
	Indent int    `json:"indent"`
}

// ParseError describes a line that looked like a directive candidate but
// failed full parsing. Collected per file, never fatal.
type ParseError struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e ParseError) Error() string { return e.Reason }
