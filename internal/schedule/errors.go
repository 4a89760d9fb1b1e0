package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownJob is returned by table operations naming a job that
	// does not exist.
	ErrUnknownJob = errors.New("unknown job")

	// ErrCapacity reports that a due job was skipped because maxrunning
	// executions are already in flight. Not an execution failure; the job
	// stays eligible for its next computed fire time.
	ErrCapacity = errors.New("maxrunning reached")

	// ErrDisabled is returned when the scheduler as a whole is disabled.
	ErrDisabled = errors.New("scheduler disabled")

	// ErrStopped is returned when the service is not running.
	ErrStopped = errors.New("scheduler stopped")
)

// ConfigError marks a job definition that failed semantic validation.
// The job is retained in the table, excluded from scheduling, and the error
// is reported once per refresh. Never fatal to the tick loop.
type ConfigError struct {
	Job string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("job %q: %v", e.Job, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
