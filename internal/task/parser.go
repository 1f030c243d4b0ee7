package task

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Keyword is the shorthand lead-in for directive lines that carry no
// checkbox yet. Shorthand lines are normalised to checkbox form on index.
const Keyword = "todo"

var (
	checkboxRe  = regexp.MustCompile(`^(\s*)- \[( |x|X)\] ?(.*)$`)
	shorthandRe = regexp.MustCompile(`^(\s*)` + Keyword + `\s+(\S.*)$`)
	metaRe      = regexp.MustCompile(`<!--` + Keyword + `:id=([^;>]+);v=(\d+)(?:;done=(\d{4}-\d{2}-\d{2}))?-->`)

	// Priority marks require trailing whitespace or end-of-line so a
	// status keyword ("!blocked") is never read as priority.
	priorityRe = regexp.MustCompile(`(?:^|\s)(!{1,3})(?:\s|$)`)
	statusRe   = regexp.MustCompile(`(?:^|\s)!(waiting|blocked)(?::(\S+))?(?:\s|$)`)
	estimateRe = regexp.MustCompile(`(?:^|\s)~(\d+)([mhd])(?:\s|$)`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z0-9][\w/-]*)`)
	contextRe  = regexp.MustCompile(`(?:^|\s)@([A-Za-z0-9][\w/-]*)`)
	projectRe  = regexp.MustCompile(`(?:^|\s)\+([A-Za-z0-9][\w/-]*)`)
)

// IsCandidate is the cheap pre-check that keeps the full pipeline off
// ordinary prose: only checkbox items and shorthand lines qualify.
func IsCandidate(line string) bool {
	return checkboxRe.MatchString(line) || shorthandRe.MatchString(line)
}

// IsShorthand reports whether line uses the keyword lead-in form.
func IsShorthand(line string) bool {
	return !checkboxRe.MatchString(line) && shorthandRe.MatchString(line)
}

// IndentOf returns the nesting depth of a line, measured in leading
// whitespace characters.
func IndentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// StripMeta removes the stable-identity comment from a line fragment and
// returns the parsed metadata, or nil when none is present.
func StripMeta(s string) (string, *Metadata) {
	loc := metaRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return s, nil
	}
	m := &Metadata{ID: s[loc[2]:loc[3]]}
	m.Version, _ = strconv.Atoi(s[loc[4]:loc[5]])
	if loc[6] >= 0 {
		m.Done = s[loc[6]:loc[7]]
	}
	return strings.TrimRight(s[:loc[0]], " \t") + s[loc[1]:], m
}

// Parse turns one line into a directive. The extractors run in a fixed
// order, each consuming a non-overlapping span: priority, status,
// estimate, recurrence, date, then tags/contexts/project. Reordering them
// changes results (a date extractor running before recurrence would read
// "every 3 days" as a relative date), so the order is part of the contract.
func Parse(line string, now time.Time) (*Directive, error) {
	var checked bool
	var body string
	switch m := checkboxRe.FindStringSubmatch(line); {
	case m != nil:
		checked = m[2] == "x" || m[2] == "X"
		body = m[3]
	default:
		sm := shorthandRe.FindStringSubmatch(line)
		if sm == nil {
			return nil, errors.New("not a directive line")
		}
		body = sm[2]
	}

	d := &Directive{Checked: checked, Status: StatusActive}
	body, d.Meta = StripMeta(body)
	rest := body

	if loc := priorityRe.FindStringSubmatchIndex(rest); loc != nil {
		d.Priority = loc[3] - loc[2]
		rest = cut(rest, loc[2], loc[3])
	}

	if loc := statusRe.FindStringSubmatchIndex(rest); loc != nil {
		d.Status = Status(strings.ToLower(rest[loc[2]:loc[3]]))
		end := loc[3]
		if loc[4] >= 0 {
			d.StatusRef = rest[loc[4]:loc[5]]
			end = loc[5]
		}
		rest = cut(rest, loc[2]-1, end) // -1 covers the leading '!'
	}

	if loc := estimateRe.FindStringSubmatchIndex(rest); loc != nil {
		n, _ := strconv.Atoi(rest[loc[2]:loc[3]])
		minutes := n
		switch rest[loc[4]:loc[5]] {
		case "h":
			minutes = n * 60
		case "d":
			minutes = n * 8 * 60 // 8-hour workday
		}
		d.Estimate = &Estimate{Minutes: minutes, Text: rest[loc[2]-1 : loc[5]]}
		rest = cut(rest, loc[2]-1, loc[5])
	}

	if rec, s, e, ok := ParseRecurrence(rest); ok {
		d.Recurrence = rec
		rest = cut(rest, s, e)
	}

	dm, ok, err := ResolveDate(rest, now)
	if err != nil {
		return nil, err
	}
	if ok {
		d.Due = dm.Date
		d.DueText = dm.Text
		rest = cut(rest, dm.Start, dm.End)
	}

	d.Tags, rest = extractTokens(tagRe, rest, false)
	d.Contexts, rest = extractTokens(contextRe, rest, false)
	var projects []string
	projects, rest = extractTokens(projectRe, rest, true)
	if len(projects) > 0 {
		d.Project = projects[0]
	}

	d.Title = strings.Join(strings.Fields(rest), " ")
	if d.Title == "" {
		return nil, fmt.Errorf("directive has no title")
	}
	return d, nil
}

// cut removes s[i:j], leaving a single space so neighbouring tokens stay
// separated until the final whitespace collapse.
func cut(s string, i, j int) string {
	return s[:i] + " " + s[j:]
}

// extractTokens collects every match of re in document order and removes
// the matched tokens from s. When firstOnly is set all tokens are still
// consumed but only the first value matters to the caller.
func extractTokens(re *regexp.Regexp, s string, firstOnly bool) ([]string, string) {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return nil, s
	}
	var values []string
	seen := make(map[string]bool)
	for _, loc := range locs {
		v := s[loc[2]:loc[3]]
		if firstOnly && len(values) > 0 {
			continue
		}
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	// Remove right to left so earlier indices stay valid.
	for i := len(locs) - 1; i >= 0; i-- {
		loc := locs[i]
		s = cut(s, loc[2]-1, loc[3])
	}
	return values, s
}
