package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleetsched/internal/action"
	"fleetsched/internal/config"
	"fleetsched/internal/eventbus"
	"fleetsched/internal/returner"
	"fleetsched/internal/runtime/supervisor"
	"fleetsched/pkg/logx"
)

// Invoker resolves and runs a job's function.
type Invoker interface {
	Invoke(ctx context.Context, call action.Call) (any, error)
}

// Deliverer routes a finished run's outcome to its sinks.
type Deliverer interface {
	Deliver(ctx context.Context, o returner.Outcome, names []string)
}

// Options configures a Service. Zero values get sensible defaults.
type Options struct {
	// NodeID tags every outcome record with the node's identity.
	NodeID string
	// Tick is the scan cadence. Scans are coalesced: a scan that overruns
	// the tick delays the next one instead of stacking up.
	Tick time.Duration
	// Location is the timezone calendar triggers and range windows are
	// evaluated in. Defaults to the system timezone.
	Location *time.Location

	Invoker Invoker
	Router  Deliverer
	Bus     eventbus.Bus
	Log     logx.Logger
}

const defaultTick = time.Second

// Service owns the job table and runs the scan loop that fires due jobs.
type Service struct {
	mu   sync.Mutex
	tick time.Duration
	loc  *time.Location
	node string

	table   *Table
	guard   *Guard
	dynamic map[string]config.JobRaw
	splay   *splayResolver
	invoker Invoker
	router  Deliverer
	bus     eventbus.Bus
	log     logx.Logger

	sup *supervisor.Supervisor

	// now is swapped out by tests to drive scans deterministically.
	now       func() time.Time
	startedAt time.Time
	started   bool
}

func NewService(opts Options) *Service {
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Log.IsZero() {
		opts.Log = logx.Nop()
	}
	return &Service{
		tick:    opts.Tick,
		loc:     opts.Location,
		node:    opts.NodeID,
		table:   NewTable(),
		guard:   NewGuard(),
		dynamic: map[string]config.JobRaw{},
		splay:   newSplayResolver(opts.NodeID),
		invoker: opts.Invoker,
		router:  opts.Router,
		bus:     opts.Bus,
		log:     opts.Log,
		now:     time.Now,
	}
}

// Table exposes the job table for management operations.
func (s *Service) Table() *Table { return s.table }

// Start launches the scan loop on the supervisor. It is not restartable;
// a node runs exactly one scheduler for its lifetime.
func (s *Service) Start(sup *supervisor.Supervisor) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.sup = sup
	s.startedAt = s.now()
	s.mu.Unlock()

	s.log.Info("scheduler started",
		logx.Int("jobs", s.table.Len()),
		logx.Duration("tick", s.tickInterval()))
	sup.Go("schedule.loop", s.loop)
}

// Apply updates the scan cadence and timezone from a config reload. The
// job set itself is applied separately through Refresh.
func (s *Service) Apply(tick time.Duration, loc *time.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tick > 0 {
		s.tick = tick
	}
	if loc != nil {
		s.loc = loc
	}
}

func (s *Service) tickInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

func (s *Service) location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

func (s *Service) loop(ctx context.Context) error {
	timer := time.NewTimer(s.tickInterval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			s.scanOnce(ctx, s.now())
			timer.Reset(s.tickInterval())
		}
	}
}

// scanOnce walks one snapshot of the table and fires everything due at
// wall-clock time now. Firing is fire-and-forget: the scan never blocks
// on a job's execution.
func (s *Service) scanOnce(ctx context.Context, now time.Time) {
	loc := s.location()
	schedEnabled := s.table.SchedulerEnabled()

	for _, v := range s.table.Snapshot() {
		if v.Invalid != nil {
			continue
		}

		due := v.Trigger.NextFire(v.LastRun, s.startedAt, v.RunOnStart, loc)
		if due.IsZero() {
			if v.NextRun.IsZero() {
				continue
			}
			// calendar/cron triggers can run out of future occurrences
			s.table.SetNextRun(v.Name, time.Time{})
			continue
		}
		if v.NextRun.IsZero() || !v.NextRun.Equal(due) {
			s.table.SetNextRun(v.Name, due)
		}
		if due.After(now) {
			continue
		}

		// missed occurrences coalesce into a single firing. The range
		// window is checked against each nominal due time, not the scan
		// time, so a dispatch always carries an in-window due time.
		nominal := due
		next := v.Trigger.NextFire(nominal, s.startedAt, v.RunOnStart, loc)
		var fireAt time.Time
		if v.Trigger.InWindow(nominal, loc) {
			fireAt = nominal
		}
		for !next.IsZero() && !next.After(now) {
			nominal = next
			if v.Trigger.InWindow(nominal, loc) {
				fireAt = nominal
			}
			next = v.Trigger.NextFire(nominal, s.startedAt, v.RunOnStart, loc)
		}

		if !v.After.IsZero() && now.Before(v.After) {
			// not yet eligible; leave the clock alone so the occurrence
			// fires once the after bound passes
			continue
		}
		if !v.Until.IsZero() && now.After(v.Until) {
			s.skip(v, nominal, next, "until")
			continue
		}
		if !schedEnabled {
			s.skip(v, nominal, next, "scheduler_disabled")
			continue
		}
		if !v.Enabled {
			s.skip(v, nominal, next, "disabled")
			continue
		}
		if fireAt.IsZero() {
			s.skip(v, nominal, next, "range")
			continue
		}
		fireNext := next
		if !fireAt.Equal(nominal) {
			fireNext = v.Trigger.NextFire(fireAt, s.startedAt, v.RunOnStart, loc)
		}

		jid := ""
		if v.JidInclude {
			jid = GenJID(now)
		}
		if !s.guard.TryAcquire(v.Name, v.MaxRunning, jid) {
			s.log.Warn("job skipped, maxrunning reached",
				logx.String("schedule", v.Name),
				logx.Int("maxrunning", v.MaxRunning),
				logx.Int("running", s.guard.Running(v.Name)))
			// the clock stays untouched; the occurrence remains due and
			// retries on the next tick once a slot frees
			s.table.CountSkip(v.Name)
			s.publish("job.skipped", map[string]any{
				"schedule": v.Name,
				"reason":   "maxrunning",
				"due":      fireAt,
			})
			continue
		}

		s.table.RecordFire(v.Name, fireAt, fireNext)
		s.fire(ctx, v, jid, fireAt)
	}
}

func (s *Service) skip(v View, nominal, next time.Time, reason string) {
	s.table.RecordSkip(v.Name, nominal, next)
	s.publish("job.skipped", map[string]any{
		"schedule": v.Name,
		"reason":   reason,
		"due":      nominal,
	})
}

func (s *Service) fire(ctx context.Context, v View, jid string, due time.Time) {
	delay := s.splay.Delay(v.Splay)
	s.publish("job.fired", map[string]any{
		"schedule": v.Name,
		"fun":      v.Function,
		"jid":      jid,
		"due":      due,
		"splay":    delay,
	})
	run := func(ctx context.Context) {
		defer s.guard.Release(v.Name, jid)
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
		s.execute(ctx, v, jid)
	}
	if s.sup != nil {
		s.sup.Go0("job."+v.Name, run)
	} else {
		run(ctx)
	}
}

// execute invokes the job's function and routes the outcome. A failing or
// even panicking function only produces a failed outcome record.
func (s *Service) execute(ctx context.Context, v View, jid string) {
	log := s.log.With(
		logx.String("schedule", v.Name),
		logx.String("fun", v.Function),
		logx.String("jid", jid))
	log.Info("running scheduled job")

	started := s.now()
	ret, err := s.invoker.Invoke(ctx, action.Call{
		Function: v.Function,
		Args:     v.Args,
		Kwargs:   v.Kwargs,
	})
	finished := s.now()

	o := returner.Outcome{
		Node:     s.node,
		JID:      jid,
		Schedule: v.Name,
		Fun:      v.Function,
		FunArgs:  v.Args,
		Success:  err == nil,
		Return:   ret,
		Started:  started,
		Finished: finished,
		Metadata: v.Metadata,
	}
	if err != nil {
		o.Error = err.Error()
		log.Error("scheduled job failed",
			logx.Duration("took", o.Duration()),
			logx.Err(err))
	} else {
		log.Info("scheduled job finished",
			logx.Duration("took", o.Duration()))
	}

	if v.ReturnJob && s.router != nil {
		s.router.Deliver(ctx, o, v.Returners)
	}
	s.publish("job.finished", map[string]any{
		"schedule": v.Name,
		"jid":      jid,
		"success":  o.Success,
		"took":     o.Duration(),
	})
}

// RunJob fires a job immediately, outside its schedule. The job's own
// clock is untouched; disabled jobs and jobs outside their range window
// can still be force-run, only maxrunning is honored.
func (s *Service) RunJob(ctx context.Context, name string) (string, error) {
	v, ok := s.table.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if v.Invalid != nil {
		return "", v.Invalid
	}
	jid := ""
	if v.JidInclude {
		jid = GenJID(s.now())
	}
	if !s.guard.TryAcquire(v.Name, v.MaxRunning, jid) {
		return "", fmt.Errorf("%w: %s has %d running", ErrCapacity, name, s.guard.Running(name))
	}
	v.Splay = Splay{}
	s.fire(ctx, v, jid, s.now())
	return jid, nil
}

func (s *Service) publish(typ string, data map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}
