package schedule

import "time"

// JobStatus is one job's current state for diagnostics output.
type JobStatus struct {
	Name     string            `json:"name"`
	Function string            `json:"fun"`
	Trigger  string            `json:"trigger"`
	Source   string            `json:"source"`
	Enabled  bool              `json:"enabled"`
	Invalid  string            `json:"invalid,omitempty"`
	Running  int               `json:"running"`
	JIDs     []string          `json:"jids,omitempty"`
	Fires    int               `json:"fires"`
	Skips    int               `json:"skips"`
	LastRun  time.Time         `json:"last_run,omitzero"`
	NextRun  time.Time         `json:"next_run,omitzero"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Status is the node's scheduler state for diagnostics output.
type Status struct {
	Enabled bool        `json:"enabled"`
	Jobs    []JobStatus `json:"jobs"`
}

// Status reports the scheduler and every job, sorted by name.
func (s *Service) Status() Status {
	views := s.table.Snapshot()
	out := Status{
		Enabled: s.table.SchedulerEnabled(),
		Jobs:    make([]JobStatus, 0, len(views)),
	}
	for _, v := range views {
		js := JobStatus{
			Name:     v.Name,
			Function: v.Function,
			Trigger:  v.Trigger.Describe(),
			Source:   v.Source.String(),
			Enabled:  v.Enabled,
			Running:  s.guard.Running(v.Name),
			JIDs:     s.guard.ActiveJIDs(v.Name),
			Fires:    v.Fires,
			Skips:    v.Skips,
			LastRun:  v.LastRun,
			NextRun:  v.NextRun,
			Metadata: v.Metadata,
		}
		if v.Invalid != nil {
			js.Invalid = v.Invalid.Error()
		}
		out.Jobs = append(out.Jobs, js)
	}
	return out
}
