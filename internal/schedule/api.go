package schedule

import (
	"fmt"

	"fleetsched/internal/config"
	"fleetsched/pkg/logx"
)

// Refresh replaces the statically declared job set from a (re)loaded
// config. Definitions that fail validation are kept as invalid placeholders
// and reported once here, so one bad job never blocks the rest.
func (s *Service) Refresh(schedule map[string]config.JobRaw) {
	loc := s.location()
	jobs := make([]*Job, 0, len(schedule))
	invalid := 0
	for name, raw := range schedule {
		job, warns, err := ParseJob(name, raw, loc, SourceStatic)
		if err != nil {
			invalid++
			s.log.Error("invalid job definition",
				logx.String("schedule", name),
				logx.Err(err))
			jobs = append(jobs, InvalidJob(name, raw, SourceStatic, err))
			continue
		}
		for _, w := range warns {
			s.log.Warn("job definition warning",
				logx.String("schedule", name),
				logx.String("warning", w))
		}
		jobs = append(jobs, job)
	}
	s.table.ReplaceSource(SourceStatic, jobs)
	s.log.Info("schedule refreshed",
		logx.Int("jobs", len(jobs)),
		logx.Int("invalid", invalid))
}

// AddJob inserts or replaces a dynamically managed job.
func (s *Service) AddJob(name string, raw config.JobRaw) error {
	job, warns, err := ParseJob(name, raw, s.location(), SourceDynamic)
	if err != nil {
		return err
	}
	for _, w := range warns {
		s.log.Warn("job definition warning",
			logx.String("schedule", name),
			logx.String("warning", w))
	}
	s.table.Upsert(job)
	s.mu.Lock()
	s.dynamic[name] = raw
	s.mu.Unlock()
	s.log.Info("job added", logx.String("schedule", name))
	return nil
}

// DeleteJob removes a dynamically managed job. Statically declared jobs
// come back on the next config refresh, so deleting them here is refused.
func (s *Service) DeleteJob(name string) error {
	v, ok := s.table.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if v.Source == SourceStatic {
		return fmt.Errorf("job %s is declared in the config, disable it instead", name)
	}
	s.table.Remove(name)
	s.mu.Lock()
	delete(s.dynamic, name)
	s.mu.Unlock()
	s.log.Info("job removed", logx.String("schedule", name))
	return nil
}

// EnableJob marks a job runnable again.
func (s *Service) EnableJob(name string) error {
	if !s.table.Enable(name) {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return nil
}

// DisableJob stops a job from firing without removing it.
func (s *Service) DisableJob(name string) error {
	if !s.table.Disable(name) {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return nil
}

// Persist writes the dynamically managed jobs to a drop-in schedule file
// so they survive a restart.
func (s *Service) Persist(path string) error {
	s.mu.Lock()
	out := make(map[string]config.JobRaw, len(s.dynamic))
	for name, raw := range s.dynamic {
		out[name] = raw
	}
	s.mu.Unlock()
	return config.SaveSchedule(path, out)
}

// LoadPersisted re-applies a drop-in schedule file written by Persist.
// A missing file is not an error.
func (s *Service) LoadPersisted(path string) error {
	jobs, err := config.LoadSchedule(path)
	if err != nil {
		return err
	}
	for name, raw := range jobs {
		if err := s.AddJob(name, raw); err != nil {
			s.log.Error("skipping persisted job",
				logx.String("schedule", name),
				logx.Err(err))
		}
	}
	return nil
}
