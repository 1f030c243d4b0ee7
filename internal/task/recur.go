package task

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// Custom weekday lists are checked before the other recurrence forms:
	// their grammar is a superset-looking prefix of "every weekday" and
	// "every N <unit>", so the order here is a contract.
	recurCustomRe   = regexp.MustCompile(`(?i)\bevery((?:[\s,]+(?:mon|tue|wed|thu|fri|sat|sun))+)\b`)
	recurWeekdayRe  = regexp.MustCompile(`(?i)\bevery\s+weekday\b`)
	recurIntervalRe = regexp.MustCompile(`(?i)\bevery(?:\s+(\d+))?\s+(day|week|month|year)s?\b`)

	weekdayAbbrevs = map[string]time.Weekday{
		"mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
		"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
		"sun": time.Sunday,
	}
)

// ParseRecurrence finds the first recurrence expression in text. It returns
// the rule and the byte span of the matched substring.
func ParseRecurrence(text string) (*Recurrence, int, int, bool) {
	if loc := recurCustomRe.FindStringSubmatchIndex(text); loc != nil {
		s, e := loc[0], loc[1]
		list := text[loc[2]:loc[3]]
		var days []time.Weekday
		seen := make(map[time.Weekday]bool)
		for _, tok := range strings.FieldsFunc(list, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' }) {
			wd, ok := weekdayAbbrevs[strings.ToLower(tok)]
			if !ok {
				continue
			}
			if !seen[wd] {
				seen[wd] = true
				days = append(days, wd)
			}
		}
		if len(days) > 0 {
			return &Recurrence{Unit: RecurCustom, Interval: 1, Weekdays: days, Text: text[s:e]}, s, e, true
		}
	}

	if loc := recurWeekdayRe.FindStringIndex(text); loc != nil {
		return &Recurrence{Unit: RecurWeekday, Interval: 1, Text: text[loc[0]:loc[1]]}, loc[0], loc[1], true
	}

	if loc := recurIntervalRe.FindStringSubmatchIndex(text); loc != nil {
		s, e := loc[0], loc[1]
		interval := 1
		if loc[2] >= 0 {
			interval, _ = strconv.Atoi(text[loc[2]:loc[3]])
			if interval < 1 {
				interval = 1
			}
		}
		unit := RecurUnit(strings.ToLower(text[loc[4]:loc[5]]))
		return &Recurrence{Unit: unit, Interval: interval, Text: text[s:e]}, s, e, true
	}

	return nil, 0, 0, false
}

// Next computes the due date of the following occurrence. Month and year
// arithmetic clamps to the last valid day of the target month. A custom
// rule whose day set never matches leaves the date unchanged.
func (r *Recurrence) Next(due time.Time) time.Time {
	switch r.Unit {
	case RecurDay:
		return due.AddDate(0, 0, r.Interval)
	case RecurWeek:
		return due.AddDate(0, 0, 7*r.Interval)
	case RecurMonth:
		return addMonthsClamped(due, r.Interval)
	case RecurYear:
		return addMonthsClamped(due, 12*r.Interval)
	case RecurWeekday:
		d := due.AddDate(0, 0, 1)
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		return d
	case RecurCustom:
		for i := 1; i <= 7; i++ {
			d := due.AddDate(0, 0, i)
			for _, wd := range r.Weekdays {
				if d.Weekday() == wd {
					return d
				}
			}
		}
		return due
	}
	return due
}
