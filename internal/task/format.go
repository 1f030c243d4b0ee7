package task

import (
	"strconv"
	"strings"
	"time"
)

// RenderMeta renders the stable-identity comment for a line.
func RenderMeta(m *Metadata) string {
	var b strings.Builder
	b.WriteString("<!--")
	b.WriteString(Keyword)
	b.WriteString(":id=")
	b.WriteString(m.ID)
	b.WriteString(";v=")
	b.WriteString(strconv.Itoa(m.Version))
	if m.Done != "" {
		b.WriteString(";done=")
		b.WriteString(m.Done)
	}
	b.WriteString("-->")
	return b.String()
}

// ComposeOptions are the optional fields of a newly composed line.
type ComposeOptions struct {
	Priority int
	Tags     []string
	Contexts []string
	Project  string
	Estimate string // estimate token without the leading "~", e.g. "2h"
}

// ComposeLine builds a canonical directive line in the fixed field order:
// checkbox, priority marks, title, tags, contexts, project, due date,
// estimate. Parsing the result recovers the same fields.
func ComposeLine(title string, due time.Time, opts ComposeOptions) string {
	parts := []string{"- [ ]"}
	if opts.Priority > 0 {
		p := opts.Priority
		if p > 3 {
			p = 3
		}
		parts = append(parts, strings.Repeat("!", p))
	}
	parts = append(parts, strings.TrimSpace(title))
	for _, t := range opts.Tags {
		parts = append(parts, "#"+t)
	}
	for _, c := range opts.Contexts {
		parts = append(parts, "@"+c)
	}
	if opts.Project != "" {
		parts = append(parts, "+"+opts.Project)
	}
	if !due.IsZero() {
		parts = append(parts, due.Format(DateFormat))
	}
	if opts.Estimate != "" {
		parts = append(parts, "~"+opts.Estimate)
	}
	return strings.Join(parts, " ")
}

// NormalizeToCheckbox converts a shorthand line to canonical checkbox
// form, rewriting any natural-language date to the compact 8-digit form.
// It reports whether the line changed; canonical lines pass through
// untouched, which makes the conversion idempotent.
func NormalizeToCheckbox(line string, now time.Time) (string, bool) {
	if checkboxRe.MatchString(line) {
		return line, false
	}
	sm := shorthandRe.FindStringSubmatch(line)
	if sm == nil {
		return line, false
	}
	indent, body := sm[1], sm[2]

	// Mask any recurrence expression before searching for a date so that
	// "every 3 days" is not misread as a relative date. The mask keeps
	// byte offsets valid against the original body.
	search := body
	if _, s, e, ok := ParseRecurrence(body); ok {
		search = body[:s] + strings.Repeat(" ", e-s) + body[e:]
	}
	if dm, ok, err := ResolveDate(search, now); err == nil && ok {
		compact := dm.Date.Format(DateFormat)
		if dm.Text != compact {
			body = body[:dm.Start] + compact + body[dm.End:]
		}
	}

	return indent + "- [ ] " + body, true
}

// SetChecked rewrites the checkbox token of a canonical line. Lines that
// are not in checkbox form are returned unchanged.
func SetChecked(line string, checked bool) string {
	m := checkboxRe.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	tok := " "
	if checked {
		tok = "x"
	}
	return m[1] + "- [" + tok + "] " + m[3]
}

// NormalizeLine is the canonical content form used for ephemeral identity
// and re-matching: metadata stripped, lowercased, checkbox forced to the
// unchecked token, whitespace collapsed.
func NormalizeLine(line string) string {
	s, _ := StripMeta(line)
	s = strings.ToLower(s)
	if m := checkboxRe.FindStringSubmatch(s); m != nil {
		s = "- [ ] " + m[3]
	} else if m := shorthandRe.FindStringSubmatch(s); m != nil {
		s = "- [ ] " + m[2]
	}
	return strings.Join(strings.Fields(s), " ")
}
