package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fleetsched/internal/action"
	"fleetsched/internal/config"
	"fleetsched/internal/returner"
)

type fakeInvoker struct {
	mu    sync.Mutex
	calls []action.Call
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, call action.Call) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	return true, nil
}

func (f *fakeInvoker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordedDelivery struct {
	outcome returner.Outcome
	names   []string
}

type fakeRouter struct {
	mu         sync.Mutex
	deliveries []recordedDelivery
}

func (f *fakeRouter) Deliver(_ context.Context, o returner.Outcome, names []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, recordedDelivery{outcome: o, names: names})
}

func (f *fakeRouter) last() (recordedDelivery, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.deliveries) == 0 {
		return recordedDelivery{}, false
	}
	return f.deliveries[len(f.deliveries)-1], true
}

// testService builds a service with a fake clock anchored at start.
// Executions run synchronously because no supervisor is attached.
func testService(t *testing.T, start time.Time, inv Invoker, router Deliverer) (*Service, *time.Time) {
	t.Helper()
	svc := NewService(Options{
		NodeID:   "test-node",
		Location: time.UTC,
		Invoker:  inv,
		Router:   router,
	})
	now := start
	svc.now = func() time.Time { return now }
	svc.startedAt = start
	return svc, &now
}

func mustAdd(t *testing.T, svc *Service, name string, raw config.JobRaw) {
	t.Helper()
	job, _, err := ParseJob(name, raw, time.UTC, SourceStatic)
	if err != nil {
		t.Fatalf("ParseJob(%s): %v", name, err)
	}
	svc.table.Upsert(job)
}

func TestScanFiresOnIntervalCadence(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	router := &fakeRouter{}
	svc, now := testService(t, start, inv, router)
	mustAdd(t, svc, "uptime-check", config.JobRaw{
		Function: "status.uptime",
		Seconds:  60,
		Returner: config.StringList{"sqlite", "log"},
	})

	ctx := context.Background()

	// run_on_start: due immediately
	svc.scanOnce(ctx, *now)
	if got := inv.count(); got != 1 {
		t.Fatalf("after t0 scan: %d invocations, want 1", got)
	}

	// half a period in: nothing due
	*now = start.Add(30 * time.Second)
	svc.scanOnce(ctx, *now)
	if got := inv.count(); got != 1 {
		t.Fatalf("after t30 scan: %d invocations, want 1", got)
	}

	// past the next due time: fires again
	*now = start.Add(65 * time.Second)
	svc.scanOnce(ctx, *now)
	if got := inv.count(); got != 2 {
		t.Fatalf("after t65 scan: %d invocations, want 2", got)
	}

	// bookkeeping uses the nominal due time, not the scan time
	v, _ := svc.table.Get("uptime-check")
	if want := start.Add(60 * time.Second); !v.LastRun.Equal(want) {
		t.Fatalf("LastRun = %v, want nominal %v", v.LastRun, want)
	}
	if want := start.Add(120 * time.Second); !v.NextRun.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", v.NextRun, want)
	}

	d, ok := router.last()
	if !ok {
		t.Fatal("no outcome delivered")
	}
	if !d.outcome.Success || d.outcome.Schedule != "uptime-check" || d.outcome.Node != "test-node" {
		t.Fatalf("outcome = %+v", d.outcome)
	}
	if len(d.names) != 2 || d.names[0] != "sqlite" {
		t.Fatalf("sinks = %v, want [sqlite log]", d.names)
	}
	if d.outcome.JID == "" {
		t.Fatal("outcome missing jid")
	}
}

func TestScanCoalescesMissedOccurrences(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, now := testService(t, start, inv, &fakeRouter{})
	mustAdd(t, svc, "sync", config.JobRaw{Function: "test.ping", Seconds: 60})

	ctx := context.Background()
	svc.scanOnce(ctx, *now)
	if got := inv.count(); got != 1 {
		t.Fatalf("t0: %d invocations, want 1", got)
	}

	// five periods elapse without a scan: exactly one catch-up firing
	*now = start.Add(5 * time.Minute)
	svc.scanOnce(ctx, *now)
	if got := inv.count(); got != 2 {
		t.Fatalf("after gap: %d invocations, want 2", got)
	}
	v, _ := svc.table.Get("sync")
	if want := start.Add(5 * time.Minute); !v.LastRun.Equal(want) {
		t.Fatalf("LastRun = %v, want %v", v.LastRun, want)
	}
}

func TestScanSkipsDisabledJob(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, now := testService(t, start, inv, &fakeRouter{})
	mustAdd(t, svc, "sync", config.JobRaw{Function: "test.ping", Seconds: 60})
	svc.table.Disable("sync")

	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 0 {
		t.Fatalf("%d invocations, want 0 for disabled job", got)
	}
	// the clock still advances
	v, _ := svc.table.Get("sync")
	if !v.LastRun.Equal(start) {
		t.Fatalf("LastRun = %v, want %v", v.LastRun, start)
	}
}

func TestScanSkipsWhenSchedulerDisabled(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, now := testService(t, start, inv, &fakeRouter{})
	mustAdd(t, svc, "sync", config.JobRaw{Function: "test.ping", Seconds: 60})
	svc.table.DisableScheduler()

	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 0 {
		t.Fatalf("%d invocations, want 0 with scheduler disabled", got)
	}
}

func TestScanRespectsRangeWindow(t *testing.T) {
	t.Parallel()
	// 18:00: outside the 08:00-17:00 window
	start := time.Date(2026, 8, 25, 18, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, now := testService(t, start, inv, &fakeRouter{})
	mustAdd(t, svc, "sync", config.JobRaw{
		Function: "test.ping",
		Seconds:  60,
		Range:    &config.RangeRaw{Start: "08:00", End: "17:00"},
	})

	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 0 {
		t.Fatalf("%d invocations, want 0 outside range", got)
	}
	// skipped occurrences still advance the clock
	v, _ := svc.table.Get("sync")
	if !v.LastRun.Equal(start) {
		t.Fatalf("LastRun = %v, want %v", v.LastRun, start)
	}
}

func TestScanRangeChecksNominalDueTime(t *testing.T) {
	t.Parallel()
	// due at 07:45, before the window opens
	start := time.Date(2026, 8, 25, 7, 45, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, now := testService(t, start, inv, &fakeRouter{})
	mustAdd(t, svc, "sync", config.JobRaw{
		Function: "test.ping",
		Seconds:  3600,
		Range:    &config.RangeRaw{Start: "08:00", End: "17:00"},
	})

	// scanning inside the window must not dispatch the 07:45 occurrence
	*now = start.Add(45 * time.Minute)
	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 0 {
		t.Fatalf("%d invocations, want 0 for a due time before the window", got)
	}
	v, _ := svc.table.Get("sync")
	if !v.LastRun.Equal(start) {
		t.Fatalf("LastRun = %v, want %v", v.LastRun, start)
	}
	if want := start.Add(time.Hour); !v.NextRun.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", v.NextRun, want)
	}

	// the first in-window occurrence fires
	*now = start.Add(time.Hour)
	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 1 {
		t.Fatalf("%d invocations, want 1 at the first in-window due time", got)
	}
	v, _ = svc.table.Get("sync")
	if want := start.Add(time.Hour); !v.LastRun.Equal(want) {
		t.Fatalf("LastRun = %v, want %v", v.LastRun, want)
	}
}

func TestScanRespectsMaxRunning(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, now := testService(t, start, inv, &fakeRouter{})
	mustAdd(t, svc, "sync", config.JobRaw{Function: "test.ping", Seconds: 60})

	// simulate an in-flight run
	if !svc.guard.TryAcquire("sync", 1, "held") {
		t.Fatal("setup acquire failed")
	}
	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 0 {
		t.Fatalf("%d invocations, want 0 at maxrunning", got)
	}

	svc.guard.Release("sync", "held")
	*now = start.Add(60 * time.Second)
	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 1 {
		t.Fatalf("%d invocations, want 1 after release", got)
	}
}

func TestScanMaxRunningLeavesOccurrenceDue(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, now := testService(t, start, inv, &fakeRouter{})
	mustAdd(t, svc, "sync", config.JobRaw{Function: "test.ping", Seconds: 60})

	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 1 {
		t.Fatalf("t0: %d invocations, want 1", got)
	}

	// slot held when the next occurrence comes due
	if !svc.guard.TryAcquire("sync", 1, "held") {
		t.Fatal("setup acquire failed")
	}
	*now = start.Add(60 * time.Second)
	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 1 {
		t.Fatalf("t60: %d invocations, want 1 at maxrunning", got)
	}
	// a cap skip leaves the run clock alone and only counts the skip
	v, _ := svc.table.Get("sync")
	if !v.LastRun.Equal(start) {
		t.Fatalf("LastRun = %v, want %v unchanged", v.LastRun, start)
	}
	if v.Skips != 1 {
		t.Fatalf("Skips = %d, want 1", v.Skips)
	}

	// the occurrence catches up on the next tick, not the next interval
	svc.guard.Release("sync", "held")
	*now = start.Add(61 * time.Second)
	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 2 {
		t.Fatalf("t61: %d invocations, want 2 after the slot freed", got)
	}
	v, _ = svc.table.Get("sync")
	if want := start.Add(60 * time.Second); !v.LastRun.Equal(want) {
		t.Fatalf("LastRun = %v, want nominal %v", v.LastRun, want)
	}
}

func TestScanRespectsUntilBound(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, now := testService(t, start, inv, &fakeRouter{})
	mustAdd(t, svc, "sync", config.JobRaw{
		Function: "test.ping",
		Seconds:  60,
		Until:    "2026-08-25 11:00",
	})

	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 0 {
		t.Fatalf("%d invocations, want 0 past until", got)
	}
}

func TestScanDefersUntilAfterBound(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, now := testService(t, start, inv, &fakeRouter{})
	mustAdd(t, svc, "sync", config.JobRaw{
		Function: "test.ping",
		Seconds:  60,
		After:    "2026-08-25 12:02",
	})

	ctx := context.Background()
	svc.scanOnce(ctx, *now)
	if got := inv.count(); got != 0 {
		t.Fatalf("%d invocations, want 0 before after-bound", got)
	}

	*now = start.Add(3 * time.Minute)
	svc.scanOnce(ctx, *now)
	if got := inv.count(); got != 1 {
		t.Fatalf("%d invocations, want 1 past after-bound", got)
	}
}

func TestExecutionFailureProducesFailedOutcome(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{err: errors.New("exit status 1")}
	router := &fakeRouter{}
	svc, now := testService(t, start, inv, router)
	mustAdd(t, svc, "sync", config.JobRaw{Function: "test.fail", Seconds: 60})

	svc.scanOnce(context.Background(), *now)

	d, ok := router.last()
	if !ok {
		t.Fatal("failed run must still deliver an outcome")
	}
	if d.outcome.Success {
		t.Fatal("outcome marked success for a failed run")
	}
	if d.outcome.Error != "exit status 1" {
		t.Fatalf("outcome error = %q", d.outcome.Error)
	}
	// the guard slot is released even on failure
	if got := svc.guard.Running("sync"); got != 0 {
		t.Fatalf("running = %d after failed run, want 0", got)
	}
}

func TestReturnJobFalseSuppressesRouting(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	router := &fakeRouter{}
	svc, now := testService(t, start, inv, router)
	off := false
	mustAdd(t, svc, "quiet", config.JobRaw{Function: "test.ping", Seconds: 60, ReturnJob: &off})

	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 1 {
		t.Fatalf("%d invocations, want 1", got)
	}
	if _, ok := router.last(); ok {
		t.Fatal("outcome delivered despite return_job false")
	}
}

func TestJidIncludeFalseOmitsJid(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	router := &fakeRouter{}
	svc, now := testService(t, start, &fakeInvoker{}, router)
	off := false
	mustAdd(t, svc, "nojid", config.JobRaw{Function: "test.ping", Seconds: 60, JidInclude: &off})

	svc.scanOnce(context.Background(), *now)
	d, ok := router.last()
	if !ok {
		t.Fatal("no outcome delivered")
	}
	if d.outcome.JID != "" {
		t.Fatalf("jid = %q, want empty with jid_include false", d.outcome.JID)
	}
}

func TestRunJobFiresImmediately(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, _ := testService(t, start, inv, &fakeRouter{})
	mustAdd(t, svc, "sync", config.JobRaw{Function: "test.ping", Seconds: 3600})
	svc.table.Disable("sync")

	jid, err := svc.RunJob(context.Background(), "sync")
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if jid == "" {
		t.Fatal("RunJob returned empty jid")
	}
	if got := inv.count(); got != 1 {
		t.Fatalf("%d invocations, want 1", got)
	}
	// the schedule clock is untouched
	v, _ := svc.table.Get("sync")
	if !v.LastRun.IsZero() {
		t.Fatalf("LastRun = %v, want zero after manual run", v.LastRun)
	}

	if _, err := svc.RunJob(context.Background(), "ghost"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("err = %v, want ErrUnknownJob", err)
	}
}

func TestInvalidJobNeverFires(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	inv := &fakeInvoker{}
	svc, now := testService(t, start, inv, &fakeRouter{})
	svc.table.Upsert(InvalidJob("broken", config.JobRaw{Function: "f"},
		SourceStatic, errors.New("no trigger")))

	svc.scanOnce(context.Background(), *now)
	if got := inv.count(); got != 0 {
		t.Fatalf("%d invocations, want 0 for invalid job", got)
	}
	if _, err := svc.RunJob(context.Background(), "broken"); err == nil {
		t.Fatal("RunJob must refuse an invalid job")
	}
}
