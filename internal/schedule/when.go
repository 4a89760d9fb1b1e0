package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"tues":      time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"thur":      time.Thursday,
	"thurs":     time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// ParseWhen parses a calendar expression: an optional weekday name followed
// by a time of day.
//
// Accepted forms:
//
//	"Monday 5:00pm"  "wed 08:15"  "5:00pm"  "17:00"  "5pm"
func ParseWhen(expr string) (WhenExpr, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return WhenExpr{}, fmt.Errorf("empty when expression")
	}

	out := WhenExpr{Expr: expr}
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		// time only
	case 2:
		wd, ok := weekdays[strings.ToLower(fields[0])]
		if !ok {
			return WhenExpr{}, fmt.Errorf("unknown weekday %q in %q", fields[0], expr)
		}
		out.Weekday = wd
		out.HasWeekday = true
		fields = fields[1:]
	default:
		return WhenExpr{}, fmt.Errorf("invalid when expression %q", expr)
	}

	at, err := ParseDayTime(fields[0])
	if err != nil {
		return WhenExpr{}, fmt.Errorf("invalid time in %q: %w", expr, err)
	}
	out.At = at
	return out, nil
}

// ParseDayTime parses a time of day: "5:00pm", "05:00PM", "17:00", "5pm".
func ParseDayTime(raw string) (DayTime, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return DayTime{}, fmt.Errorf("empty time")
	}

	meridiem := ""
	if strings.HasSuffix(s, "am") || strings.HasSuffix(s, "pm") {
		meridiem = s[len(s)-2:]
		s = strings.TrimSpace(s[:len(s)-2])
	}

	hr, min := s, "0"
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hr, min = s[:i], s[i+1:]
	}
	h, err := strconv.Atoi(hr)
	if err != nil {
		return DayTime{}, fmt.Errorf("invalid hour %q", hr)
	}
	m, err := strconv.Atoi(min)
	if err != nil || m < 0 || m > 59 {
		return DayTime{}, fmt.Errorf("invalid minute %q", min)
	}

	switch meridiem {
	case "am":
		if h < 1 || h > 12 {
			return DayTime{}, fmt.Errorf("invalid hour %d for am/pm time", h)
		}
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 1 || h > 12 {
			return DayTime{}, fmt.Errorf("invalid hour %d for am/pm time", h)
		}
		if h != 12 {
			h += 12
		}
	default:
		if h < 0 || h > 23 {
			return DayTime{}, fmt.Errorf("invalid hour %d", h)
		}
	}
	return DayTime{Hour: h, Minute: m}, nil
}

// next returns the first instant matching the expression strictly after ref.
func (w WhenExpr) next(ref time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	ref = ref.In(loc)

	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)
	at := func(d time.Time) time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), w.At.Hour, w.At.Minute, 0, 0, loc)
	}

	if !w.HasWeekday {
		// daily: today at the given time, or tomorrow if already passed
		t := at(day)
		if t.After(ref) {
			return t
		}
		return at(day.AddDate(0, 0, 1))
	}

	// weekly: next matching weekday, wrapping to the following week if the
	// time this week has already passed
	delta := (int(w.Weekday) - int(ref.Weekday()) + 7) % 7
	t := at(day.AddDate(0, 0, delta))
	if t.After(ref) {
		return t
	}
	return at(day.AddDate(0, 0, delta+7))
}

// nextWhen returns the soonest occurrence across all expressions strictly
// after ref. Ties at the same instant resolve to the first expression in
// declaration order.
func nextWhen(exprs []WhenExpr, ref time.Time, loc *time.Location) time.Time {
	var best time.Time
	for _, e := range exprs {
		t := e.next(ref, loc)
		if best.IsZero() || t.Before(best) {
			best = t
		}
	}
	return best
}
