package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression
// "minute hour day-of-month month day-of-week", evaluated in UTC. Fields
// accept "*", single values, ranges "a-b", lists "a,b" and steps "*/n" or
// "a-b/n".
type Schedule struct {
	expr   string
	fields [5]uint64 // bit i set when value i matches
}

var fieldBounds = [5]struct{ lo, hi int }{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week, 0 = Sunday
}

// ParseSchedule parses expr.
func ParseSchedule(expr string) (Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return Schedule{}, fmt.Errorf("pipeline: cron %q: want 5 fields, got %d", expr, len(parts))
	}
	s := Schedule{expr: expr}
	for i, p := range parts {
		bits, err := parseField(p, fieldBounds[i].lo, fieldBounds[i].hi)
		if err != nil {
			return Schedule{}, fmt.Errorf("pipeline: cron %q field %d: %w", expr, i+1, err)
		}
		s.fields[i] = bits
	}
	return s, nil
}

func parseField(field string, lo, hi int) (uint64, error) {
	var bits uint64
	for _, term := range strings.Split(field, ",") {
		rng, stepStr, hasStep := strings.Cut(term, "/")
		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepStr)
			if err != nil || n < 1 {
				return 0, fmt.Errorf("bad step %q", stepStr)
			}
			step = n
		}

		from, to := lo, hi
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return 0, fmt.Errorf("bad range start %q", a)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return 0, fmt.Errorf("bad range end %q", b)
			}
		default:
			n, err := strconv.Atoi(rng)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", rng)
			}
			from, to = n, n
			if hasStep {
				to = hi
			}
		}
		if from < lo || to > hi || from > to {
			return 0, fmt.Errorf("%q outside %d-%d", term, lo, hi)
		}
		for v := from; v <= to; v += step {
			bits |= 1 << uint(v)
		}
	}
	return bits, nil
}

func (s Schedule) match(field, v int) bool {
	return s.fields[field]&(1<<uint(v)) != 0
}

// Next returns the first minute strictly after t that matches, or the zero
// time when none occurs within a year.
func (s Schedule) Next(t time.Time) time.Time {
	c := t.UTC().Truncate(time.Minute).Add(time.Minute)
	limit := c.AddDate(1, 0, 1)
	for c.Before(limit) {
		switch {
		case !s.match(3, int(c.Month())):
			c = time.Date(c.Year(), c.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		case !s.match(2, c.Day()) || !s.match(4, int(c.Weekday())):
			c = time.Date(c.Year(), c.Month(), c.Day()+1, 0, 0, 0, 0, time.UTC)
		case !s.match(1, c.Hour()):
			c = c.Truncate(time.Hour).Add(time.Hour)
		case !s.match(0, c.Minute()):
			c = c.Add(time.Minute)
		default:
			return c
		}
	}
	return time.Time{}
}

func (s Schedule) String() string { return s.expr }
