package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Source tags where a job definition came from. When both sources declare
// the same name, the most recently applied source wins entirely (the whole
// definition is replaced, not merged field by field).
type Source int

const (
	SourceStatic Source = iota
	SourceDynamic
)

func (s Source) String() string {
	if s == SourceDynamic {
		return "dynamic"
	}
	return "static"
}

// TriggerKind selects the rule that makes a job due.
type TriggerKind int

const (
	// TriggerInterval fires every fixed duration after the previous fire
	// (or after scheduler start).
	TriggerInterval TriggerKind = iota
	// TriggerCalendar fires at the next "when" expression chronologically
	// after the previous fire ("Monday 5:00pm", "03:30", ...).
	TriggerCalendar
	// TriggerCron fires per a 5-field cron expression.
	TriggerCron
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerCalendar:
		return "when"
	case TriggerCron:
		return "cron"
	default:
		return "interval"
	}
}

// Trigger is a tagged variant; exactly one of the kind-specific fields is
// meaningful. Window may additionally bound an interval trigger.
type Trigger struct {
	Kind TriggerKind

	// Interval
	Every time.Duration

	// Calendar
	When []WhenExpr

	// Cron
	CronExpr string
	cronSch  cron.Schedule

	// Window bounds an interval trigger to a daily time-of-day range.
	// Outside the window a due job is skipped but its schedule clock keeps
	// advancing.
	Window *Window
}

// DayTime is a time of day, independent of date.
type DayTime struct {
	Hour   int
	Minute int
}

func (d DayTime) minutes() int { return d.Hour*60 + d.Minute }

// Window is a daily [Start, End) time-of-day range. Windows that cross
// midnight (Start > End) are supported. Invert flips the containment test.
type Window struct {
	Start  DayTime
	End    DayTime
	Invert bool
}

// Contains reports whether t's time-of-day (in loc) falls inside the window.
func (w Window) Contains(t time.Time, loc *time.Location) bool {
	if loc != nil {
		t = t.In(loc)
	}
	cur := DayTime{Hour: t.Hour(), Minute: t.Minute()}.minutes()
	start := w.Start.minutes()
	end := w.End.minutes()

	var in bool
	if start <= end {
		in = cur >= start && cur < end
	} else {
		// crosses midnight
		in = cur >= start || cur < end
	}
	if w.Invert {
		return !in
	}
	return in
}

// WhenExpr is one parsed calendar expression: an optional weekday plus a
// time of day. Without a weekday the expression fires daily.
type WhenExpr struct {
	Weekday    time.Weekday
	HasWeekday bool
	At         DayTime
	// Expr keeps the original text for logs and snapshots.
	Expr string
}

// Splay is an additional randomized dispatch delay. A zero value means none.
// Min==0 with Max>0 corresponds to a plain scalar splay.
type Splay struct {
	Min time.Duration
	Max time.Duration
}

func (s Splay) IsZero() bool { return s.Max <= 0 }

// Job is one named scheduled unit of work. Definition fields are immutable
// after parse; the run-state fields at the bottom are guarded by the Table
// lock and must not be touched by anything else.
type Job struct {
	Name     string
	Function string
	Args     []any
	Kwargs   map[string]any

	Trigger Trigger
	Splay   Splay

	// After/Until bound the job's lifetime. Zero means unbounded.
	After time.Time
	Until time.Time

	MaxRunning int
	RunOnStart bool
	JidInclude bool
	// ReturnJob false suppresses routing of the outcome to returners
	// (it is still logged).
	ReturnJob bool

	Returners []string
	Metadata  map[string]string

	Enabled bool
	Source  Source

	// Invalid is set when the definition failed semantic validation
	// (ConfigError). Invalid jobs stay in the table but never fire.
	Invalid error

	// mutable run-state (Table lock)
	lastRun time.Time
	nextRun time.Time
	fires   int
	skips   int
}

// View is a consistent read-only copy of one job taken for a single scan.
type View struct {
	Name     string
	Function string
	Args     []any
	Kwargs   map[string]any

	Trigger Trigger
	Splay   Splay

	After time.Time
	Until time.Time

	MaxRunning int
	RunOnStart bool
	JidInclude bool
	ReturnJob  bool

	Returners []string
	Metadata  map[string]string

	Enabled bool
	Source  Source
	Invalid error

	LastRun time.Time
	NextRun time.Time
	Fires   int
	Skips   int
}

func (j *Job) view() View {
	return View{
		Name:       j.Name,
		Function:   j.Function,
		Args:       j.Args,
		Kwargs:     j.Kwargs,
		Trigger:    j.Trigger,
		Splay:      j.Splay,
		After:      j.After,
		Until:      j.Until,
		MaxRunning: j.MaxRunning,
		RunOnStart: j.RunOnStart,
		JidInclude: j.JidInclude,
		ReturnJob:  j.ReturnJob,
		Returners:  j.Returners,
		Metadata:   j.Metadata,
		Enabled:    j.Enabled,
		Source:     j.Source,
		Invalid:    j.Invalid,
		LastRun:    j.lastRun,
		NextRun:    j.nextRun,
		Fires:      j.fires,
		Skips:      j.skips,
	}
}
