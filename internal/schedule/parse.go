package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"fleetsched/internal/config"
)

// cronParser accepts standard 5-field expressions plus descriptors
// ("@hourly", "@every 15m").
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseJob turns a wire-shaped job definition into a validated Job.
//
// The returned warnings are non-fatal oddities (e.g. splay combined with a
// calendar trigger, which is ignored); a non-nil error is a *ConfigError and
// means the definition must not be scheduled.
func ParseJob(name string, raw config.JobRaw, loc *time.Location, src Source) (*Job, []string, error) {
	if loc == nil {
		loc = time.Local
	}
	fail := func(format string, a ...any) (*Job, []string, error) {
		return nil, nil, &ConfigError{Job: name, Err: fmt.Errorf(format, a...)}
	}

	if strings.TrimSpace(name) == "" {
		return fail("job name required")
	}
	fn := strings.TrimSpace(raw.Function)
	if fn == "" {
		return fail("function required")
	}

	var warnings []string

	// Trigger selection: exactly one of interval fields, when, cron.
	interval := time.Duration(raw.Seconds)*time.Second +
		time.Duration(raw.Minutes)*time.Minute +
		time.Duration(raw.Hours)*time.Hour +
		time.Duration(raw.Days)*24*time.Hour

	kinds := 0
	if interval != 0 {
		kinds++
	}
	if len(raw.When) > 0 {
		kinds++
	}
	if strings.TrimSpace(raw.Cron) != "" {
		kinds++
	}
	if kinds == 0 {
		return fail("no trigger: set seconds/minutes/hours/days, when, or cron")
	}
	if kinds > 1 {
		return fail("seconds/minutes/hours/days, when, and cron are mutually exclusive")
	}

	var trig Trigger
	switch {
	case interval != 0:
		if interval < 0 {
			return fail("interval must be positive")
		}
		trig = Trigger{Kind: TriggerInterval, Every: interval}

	case len(raw.When) > 0:
		exprs := make([]WhenExpr, 0, len(raw.When))
		for _, w := range raw.When {
			e, err := ParseWhen(w)
			if err != nil {
				return fail("when: %v", err)
			}
			exprs = append(exprs, e)
		}
		trig = Trigger{Kind: TriggerCalendar, When: exprs}

	default:
		expr := strings.TrimSpace(raw.Cron)
		sch, err := cronParser.Parse(expr)
		if err != nil {
			return fail("cron %q: %v", expr, err)
		}
		trig = Trigger{Kind: TriggerCron, CronExpr: expr, cronSch: sch}
	}

	if raw.Range != nil {
		if trig.Kind != TriggerInterval {
			return fail("range requires an interval trigger")
		}
		start, err := ParseDayTime(raw.Range.Start)
		if err != nil {
			return fail("range.start: %v", err)
		}
		end, err := ParseDayTime(raw.Range.End)
		if err != nil {
			return fail("range.end: %v", err)
		}
		if start == end {
			return fail("range start and end must differ")
		}
		trig.Window = &Window{Start: start, End: end, Invert: raw.Range.Invert}
	}

	var splay Splay
	if raw.Splay != nil {
		switch {
		case trig.Kind != TriggerInterval:
			// Matches the original system: splay only applies to interval
			// schedules; elsewhere it is ignored, not fatal.
			warnings = append(warnings, fmt.Sprintf("splay is ignored with a %s trigger", trig.Kind))
		case raw.Splay.End < raw.Splay.Start || raw.Splay.Start < 0:
			warnings = append(warnings, "invalid splay: end must be >= start >= 0; ignoring splay")
		case raw.Splay.End > 0:
			splay = Splay{
				Min: time.Duration(raw.Splay.Start) * time.Second,
				Max: time.Duration(raw.Splay.End) * time.Second,
			}
		}
	}

	var after, until time.Time
	var err error
	if strings.TrimSpace(raw.After) != "" {
		after, err = parseTimestamp(raw.After, loc)
		if err != nil {
			return fail("after: %v", err)
		}
	}
	if strings.TrimSpace(raw.Until) != "" {
		until, err = parseTimestamp(raw.Until, loc)
		if err != nil {
			return fail("until: %v", err)
		}
	}

	maxRunning := raw.MaxRunning
	if maxRunning < 0 {
		warnings = append(warnings, "maxrunning must be >= 1; using 1")
		maxRunning = 1
	}
	if maxRunning == 0 {
		maxRunning = 1
	}

	j := &Job{
		Name:       name,
		Function:   fn,
		Args:       raw.Args,
		Kwargs:     raw.Kwargs,
		Trigger:    trig,
		Splay:      splay,
		After:      after,
		Until:      until,
		MaxRunning: maxRunning,
		RunOnStart: boolOr(raw.RunOnStart, true),
		JidInclude: boolOr(raw.JidInclude, true),
		ReturnJob:  boolOr(raw.ReturnJob, true),
		Returners:  append([]string(nil), raw.Returner...),
		Metadata:   raw.Metadata,
		Enabled:    boolOr(raw.Enabled, true),
		Source:     src,
	}
	return j, warnings, nil
}

// InvalidJob builds a placeholder entry for a definition that failed
// validation, so operators can still see it in snapshots.
func InvalidJob(name string, raw config.JobRaw, src Source, err error) *Job {
	return &Job{
		Name:     name,
		Function: strings.TrimSpace(raw.Function),
		Enabled:  boolOr(raw.Enabled, true),
		Source:   src,
		Invalid:  err,
	}
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
