package schedule

import (
	"sort"
	"sync"
	"time"
)

// Table is the authoritative set of job definitions plus their run-state.
// All mutation is serialized by a single lock; readers get copies, never
// pointers into the table.
type Table struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	enabled bool
}

func NewTable() *Table {
	return &Table{
		jobs:    map[string]*Job{},
		enabled: true,
	}
}

// Upsert inserts or wholly replaces the definition for job.Name. Run-state
// carries over when the trigger is unchanged, so editing e.g. the returner
// list does not make an interval job fire immediately.
func (t *Table) Upsert(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.upsertLocked(job)
}

func (t *Table) upsertLocked(job *Job) {
	if prev, ok := t.jobs[job.Name]; ok && sameTrigger(prev.Trigger, job.Trigger) {
		job.lastRun = prev.lastRun
		job.nextRun = prev.nextRun
		job.fires = prev.fires
		job.skips = prev.skips
	}
	t.jobs[job.Name] = job
}

// Remove deletes a job by name. Removing an unknown name is not an error.
func (t *Table) Remove(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.jobs[name]
	delete(t.jobs, name)
	return ok
}

// ReplaceSource atomically swaps every job tagged src for the given set.
// Same-name jobs currently owned by the other source are overwritten too:
// the most recently applied source wins. No scan can observe a mix of the
// old and new set.
func (t *Table) ReplaceSource(src Source, jobs []*Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, j := range t.jobs {
		if j.Source == src {
			delete(t.jobs, name)
		}
	}
	for _, j := range jobs {
		j.Source = src
		t.upsertLocked(j)
	}
}

// Enable marks a job runnable again. Run-state is untouched, so a re-enabled
// interval job resumes from its previous cadence rather than firing at once.
func (t *Table) Enable(name string) bool {
	return t.setEnabled(name, true)
}

// Disable stops a job from firing without removing it.
func (t *Table) Disable(name string) bool {
	return t.setEnabled(name, false)
}

func (t *Table) setEnabled(name string, v bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[name]
	if !ok {
		return false
	}
	j.Enabled = v
	return true
}

// EnableScheduler / DisableScheduler flip the global toggle. While disabled
// no job fires, but schedule clocks keep advancing.
func (t *Table) EnableScheduler()  { t.setSchedulerEnabled(true) }
func (t *Table) DisableScheduler() { t.setSchedulerEnabled(false) }

func (t *Table) setSchedulerEnabled(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = v
}

func (t *Table) SchedulerEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Get returns a copy of one job's current state.
func (t *Table) Get(name string) (View, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[name]
	if !ok {
		return View{}, false
	}
	return j.view(), true
}

// Snapshot returns a consistent copy of every job, sorted by name. A single
// snapshot backs one dispatcher scan, so a reload landing mid-scan is either
// fully visible or fully invisible.
func (t *Table) Snapshot() []View {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]View, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j.view())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// RecordFire advances a job's clock after the dispatcher decides to fire
// (or window-skip) it: lastRun is the nominal due time, not the wall time
// the decision was made, so cadence never drifts under slow ticks.
func (t *Table) RecordFire(name string, due, next time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[name]
	if !ok {
		return
	}
	j.lastRun = due
	j.nextRun = next
	j.fires++
}

// RecordSkip advances the clock like RecordFire for an occurrence that was
// not dispatched (range window, disabled, maxrunning, until).
func (t *Table) RecordSkip(name string, due, next time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[name]
	if !ok {
		return
	}
	j.lastRun = due
	j.nextRun = next
	j.skips++
}

// CountSkip bumps the skip counter without touching the run clock.
func (t *Table) CountSkip(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[name]; ok {
		j.skips++
	}
}

// SetNextRun updates only the projected next fire time (used for the
// first projection after a job lands in the table).
func (t *Table) SetNextRun(name string, next time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[name]; ok {
		j.nextRun = next
	}
}

// Len reports the number of jobs, valid or not.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// sameTrigger compares the schedule-relevant parts of two triggers. Run-state
// survives a redefinition only when this holds.
func sameTrigger(a, b Trigger) bool {
	if a.Kind != b.Kind || a.Every != b.Every || a.CronExpr != b.CronExpr {
		return false
	}
	if len(a.When) != len(b.When) {
		return false
	}
	for i := range a.When {
		if a.When[i].Expr != b.When[i].Expr {
			return false
		}
	}
	if (a.Window == nil) != (b.Window == nil) {
		return false
	}
	if a.Window != nil && *a.Window != *b.Window {
		return false
	}
	return true
}
