package schedule

import (
	"context"
	"testing"
	"time"

	"fleetsched/internal/config"
)

func TestStatusReflectsTableState(t *testing.T) {
	t.Parallel()
	svc := NewService(Options{NodeID: "test-node", Location: time.UTC})
	svc.Refresh(map[string]config.JobRaw{
		"b-job": {Function: "test.ping", Seconds: 60},
		"a-job": {Function: "state.sync", When: config.StringList{"Monday 5:00pm"}},
		"bad":   {Function: "f"},
	})
	svc.guard.TryAcquire("b-job", 2, "jid-1")

	st := svc.Status()
	if !st.Enabled {
		t.Fatal("scheduler must report enabled")
	}
	if len(st.Jobs) != 3 {
		t.Fatalf("%d jobs, want 3", len(st.Jobs))
	}
	// sorted by name
	if st.Jobs[0].Name != "a-job" || st.Jobs[1].Name != "b-job" || st.Jobs[2].Name != "bad" {
		t.Fatalf("order = %s, %s, %s", st.Jobs[0].Name, st.Jobs[1].Name, st.Jobs[2].Name)
	}
	if st.Jobs[0].Trigger != "when Monday 5:00pm" {
		t.Fatalf("trigger = %q", st.Jobs[0].Trigger)
	}
	if st.Jobs[1].Running != 1 || len(st.Jobs[1].JIDs) != 1 {
		t.Fatalf("running = %d jids = %v", st.Jobs[1].Running, st.Jobs[1].JIDs)
	}
	if st.Jobs[2].Invalid == "" {
		t.Fatal("invalid job must expose its error")
	}
}

func TestStatusCountsFiresAndSkips(t *testing.T) {
	t.Parallel()
	inv := &fakeInvoker{}
	svc, clock := testService(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), inv, nil)
	svc.Refresh(map[string]config.JobRaw{
		"beat": {Function: "test.ping", Seconds: 60},
	})

	svc.scanOnce(context.Background(), *clock) // fires at start
	svc.DisableJob("beat")
	*clock = clock.Add(60 * time.Second)
	svc.scanOnce(context.Background(), *clock) // skipped: disabled

	st := svc.Status()
	if st.Jobs[0].Fires != 1 || st.Jobs[0].Skips != 1 {
		t.Fatalf("fires = %d skips = %d, want 1 and 1", st.Jobs[0].Fires, st.Jobs[0].Skips)
	}
}
