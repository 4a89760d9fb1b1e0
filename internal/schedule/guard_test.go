package schedule

import (
	"sync"
	"testing"
)

func TestGuardMaxRunning(t *testing.T) {
	t.Parallel()
	g := NewGuard()

	if !g.TryAcquire("sync", 1, "jid-1") {
		t.Fatal("first acquire must succeed")
	}
	if g.TryAcquire("sync", 1, "jid-2") {
		t.Fatal("second acquire must fail at maxrunning=1")
	}
	// other jobs are unaffected
	if !g.TryAcquire("other", 1, "jid-3") {
		t.Fatal("unrelated job must acquire")
	}

	g.Release("sync", "jid-1")
	if !g.TryAcquire("sync", 1, "jid-4") {
		t.Fatal("acquire after release must succeed")
	}
}

func TestGuardOverlap(t *testing.T) {
	t.Parallel()
	g := NewGuard()
	for i, jid := range []string{"a", "b", "c"} {
		if !g.TryAcquire("job", 3, jid) {
			t.Fatalf("acquire %d must succeed", i)
		}
	}
	if g.TryAcquire("job", 3, "d") {
		t.Fatal("fourth acquire must fail at maxrunning=3")
	}
	if got := g.Running("job"); got != 3 {
		t.Fatalf("Running = %d, want 3", got)
	}
	if got := len(g.ActiveJIDs("job")); got != 3 {
		t.Fatalf("ActiveJIDs count = %d, want 3", got)
	}

	g.Release("job", "b")
	if got := g.Running("job"); got != 2 {
		t.Fatalf("Running after release = %d, want 2", got)
	}
}

func TestGuardReleaseFloorsAtZero(t *testing.T) {
	t.Parallel()
	g := NewGuard()
	g.Release("ghost", "jid")
	if got := g.Running("ghost"); got != 0 {
		t.Fatalf("Running = %d, want 0", got)
	}
}

func TestGuardConcurrent(t *testing.T) {
	t.Parallel()
	g := NewGuard()
	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire("contended", 1, "") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)
	n := 0
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("%d acquisitions won, want exactly 1", n)
	}
}
