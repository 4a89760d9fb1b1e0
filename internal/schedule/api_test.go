package schedule

import (
	"path/filepath"
	"testing"
	"time"

	"fleetsched/internal/config"
)

func apiService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(Options{NodeID: "test-node", Location: time.UTC})
	return svc
}

func TestRefreshKeepsInvalidJobsVisible(t *testing.T) {
	t.Parallel()
	svc := apiService(t)
	svc.Refresh(map[string]config.JobRaw{
		"good": {Function: "test.ping", Seconds: 60},
		"bad":  {Function: "test.ping"}, // no trigger
	})

	if got := svc.table.Len(); got != 2 {
		t.Fatalf("table len = %d, want 2", got)
	}
	v, _ := svc.table.Get("bad")
	if v.Invalid == nil {
		t.Fatal("bad job must carry its validation error")
	}
	v, _ = svc.table.Get("good")
	if v.Invalid != nil {
		t.Fatalf("good job marked invalid: %v", v.Invalid)
	}
}

func TestRefreshPreservesDynamicJobs(t *testing.T) {
	t.Parallel()
	svc := apiService(t)
	if err := svc.AddJob("dyn", config.JobRaw{Function: "test.ping", Seconds: 60}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	svc.Refresh(map[string]config.JobRaw{
		"static": {Function: "test.ping", Seconds: 60},
	})

	if _, ok := svc.table.Get("dyn"); !ok {
		t.Fatal("dynamic job lost on static refresh")
	}
	if _, ok := svc.table.Get("static"); !ok {
		t.Fatal("static job missing after refresh")
	}
}

func TestAddJobRejectsInvalid(t *testing.T) {
	t.Parallel()
	svc := apiService(t)
	if err := svc.AddJob("bad", config.JobRaw{Function: "test.ping"}); err == nil {
		t.Fatal("expected error for job without trigger")
	}
	if _, ok := svc.table.Get("bad"); ok {
		t.Fatal("invalid dynamic job must not land in the table")
	}
}

func TestDeleteJobRefusesStatic(t *testing.T) {
	t.Parallel()
	svc := apiService(t)
	svc.Refresh(map[string]config.JobRaw{
		"static": {Function: "test.ping", Seconds: 60},
	})
	if err := svc.DeleteJob("static"); err == nil {
		t.Fatal("deleting a config-declared job must be refused")
	}

	if err := svc.AddJob("dyn", config.JobRaw{Function: "test.ping", Seconds: 60}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := svc.DeleteJob("dyn"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, ok := svc.table.Get("dyn"); ok {
		t.Fatal("dynamic job still present after delete")
	}
}

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()
	svc := apiService(t)
	if err := svc.AddJob("dyn", config.JobRaw{Function: "test.ping", Minutes: 2}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	path := filepath.Join(t.TempDir(), "_schedule.yaml")
	if err := svc.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	restored := apiService(t)
	if err := restored.LoadPersisted(path); err != nil {
		t.Fatalf("LoadPersisted: %v", err)
	}
	v, ok := restored.table.Get("dyn")
	if !ok {
		t.Fatal("persisted job missing after reload")
	}
	if v.Source != SourceDynamic || v.Trigger.Every != 2*time.Minute {
		t.Fatalf("restored job = %+v", v)
	}
}

func TestEnableDisableJobAPI(t *testing.T) {
	t.Parallel()
	svc := apiService(t)
	svc.Refresh(map[string]config.JobRaw{
		"sync": {Function: "test.ping", Seconds: 60},
	})
	if err := svc.DisableJob("sync"); err != nil {
		t.Fatalf("DisableJob: %v", err)
	}
	if v, _ := svc.table.Get("sync"); v.Enabled {
		t.Fatal("job still enabled")
	}
	if err := svc.EnableJob("sync"); err != nil {
		t.Fatalf("EnableJob: %v", err)
	}
	if err := svc.EnableJob("ghost"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}
