package schedule

import "time"

// NextFire computes the next nominal due time for a trigger.
//
// ref is the last nominal fire time (zero if the job has never fired),
// start is the scheduler start time, and runOnStart selects whether an
// interval job with no history is due immediately or after one full period.
//
// This is pure computation: nothing here looks at the wall clock or mutates
// state, so subsecond jitter in the scan cadence can't skew the schedule.
func (tr Trigger) NextFire(ref, start time.Time, runOnStart bool, loc *time.Location) time.Time {
	switch tr.Kind {
	case TriggerCalendar:
		base := ref
		if base.IsZero() {
			base = start
		}
		return nextWhen(tr.When, base, loc)

	case TriggerCron:
		base := ref
		if base.IsZero() {
			base = start
		}
		if loc != nil {
			base = base.In(loc)
		}
		if tr.cronSch == nil {
			return time.Time{}
		}
		return tr.cronSch.Next(base)

	default: // TriggerInterval
		if ref.IsZero() {
			if runOnStart {
				return start
			}
			return start.Add(tr.Every)
		}
		return ref.Add(tr.Every)
	}
}

// InWindow reports whether a due time is allowed to dispatch. Triggers
// without a range window always dispatch.
func (tr Trigger) InWindow(due time.Time, loc *time.Location) bool {
	if tr.Window == nil {
		return true
	}
	return tr.Window.Contains(due, loc)
}

// Describe returns a short human-readable form for logs and snapshots.
func (tr Trigger) Describe() string {
	switch tr.Kind {
	case TriggerCalendar:
		s := "when"
		for i, e := range tr.When {
			if i == 0 {
				s += " " + e.Expr
			} else {
				s += ", " + e.Expr
			}
		}
		return s
	case TriggerCron:
		return "cron " + tr.CronExpr
	default:
		return "every " + tr.Every.String()
	}
}
