package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Config is the agent configuration.
//
// The file may be JSON or YAML (YAML is coerced to JSON before strict
// decoding, so unknown fields are rejected in both formats).
type Config struct {
	// ID is the node identity reported in outcome records.
	// If empty, a random id is generated at startup.
	ID string `json:"id,omitempty"`

	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Schedule is the static job table, keyed by job name.
	// Jobs applied dynamically at runtime take precedence per name.
	Schedule map[string]JobRaw `json:"schedule,omitempty"`

	Returners *ReturnersConfig `json:"returners,omitempty"`

	// Pprof optionally serves runtime profiles for diagnostics.
	Pprof *PprofConfig `json:"pprof,omitempty"`
}

type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// SchedulerConfig controls the dispatcher.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type SchedulerConfig struct {
	// Enabled is a pointer so we can distinguish "omitted" (default true)
	// from an explicit false.
	Enabled *bool `json:"enabled,omitempty"`

	// Tick is the polling cadence of the dispatcher. Default "1s".
	Tick string `json:"tick,omitempty"`

	// Timezone is an IANA TZ name used for calendar and range triggers,
	// e.g. "Asia/Jakarta". Empty means the system local zone.
	Timezone string `json:"timezone,omitempty"`

	// DefaultReturners receive outcomes of jobs that don't name their own.
	// Empty means the "log" sink.
	DefaultReturners []string `json:"default_returners,omitempty"`

	// PersistPath, when set, is where dynamically applied schedule changes
	// are saved (YAML) so they survive a restart.
	PersistPath string `json:"persist_path,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file,omitempty"`
	Bus     LogBusConfig  `json:"bus,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type LogBusConfig struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// ReturnersConfig configures the built-in sinks. A section being present
// registers the sink under its name.
type ReturnersConfig struct {
	File     *FileReturnerConfig     `json:"file,omitempty"`
	Sqlite   *SqliteReturnerConfig   `json:"sqlite,omitempty"`
	Telegram *TelegramReturnerConfig `json:"telegram,omitempty"`
}

type FileReturnerConfig struct {
	// Path is the JSONL file outcomes are appended to.
	Path string `json:"path"`
}

type SqliteReturnerConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type TelegramReturnerConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
	// OnlyFailures suppresses success outcomes (default false).
	OnlyFailures bool `json:"only_failures,omitempty"`
}

// JobRaw is the wire shape of one scheduled job, mirroring the schedule
// block format of the wider fleet system:
//
//	schedule:
//	  job1:
//	    function: state.sync
//	    seconds: 3600
//	    args: [httpd]
//	    kwargs: {test: true}
//	    splay: 15
//	    maxrunning: 1
//	    returner: [sqlite, log]
//
// Trigger fields (exactly one group may be used):
//   - seconds/minutes/hours/days: fixed interval
//   - when: calendar expression(s), e.g. "Monday 5:00pm"
//   - cron: cron expression, e.g. "*/15 * * * *"
//
// Semantic validation happens in the schedule package; this struct only
// carries the decoded values.
type JobRaw struct {
	Function string         `json:"function"`
	Args     []any          `json:"args,omitempty"`
	Kwargs   map[string]any `json:"kwargs,omitempty"`

	Seconds int `json:"seconds,omitempty"`
	Minutes int `json:"minutes,omitempty"`
	Hours   int `json:"hours,omitempty"`
	Days    int `json:"days,omitempty"`

	When StringList `json:"when,omitempty"`
	Cron string     `json:"cron,omitempty"`

	Range *RangeRaw `json:"range,omitempty"`
	Splay *SplayRaw `json:"splay,omitempty"`

	// After/Until bound the job's lifetime ("2006-01-02 15:04" or RFC3339).
	After string `json:"after,omitempty"`
	Until string `json:"until,omitempty"`

	MaxRunning int   `json:"maxrunning,omitempty"`
	RunOnStart *bool `json:"run_on_start,omitempty"`
	JidInclude *bool `json:"jid_include,omitempty"`
	ReturnJob  *bool `json:"return_job,omitempty"`
	Enabled    *bool `json:"enabled,omitempty"`

	Returner StringList        `json:"returner,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RangeRaw restricts an interval trigger to a daily time-of-day window.
type RangeRaw struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Invert bool   `json:"invert,omitempty"`
}

// SplayRaw accepts either a scalar (max seconds) or {start, end}:
//
//	splay: 15
//	splay: {start: 10, end: 15}
type SplayRaw struct {
	Start int
	End   int
	// Scalar records which form was used, for round-tripping.
	Scalar bool
}

func (s *SplayRaw) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			Start int `json:"start"`
			End   int `json:"end"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		s.Start = obj.Start
		s.End = obj.End
		s.Scalar = false
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("splay must be a number or {start, end}: %w", err)
	}
	s.Start = 0
	s.End = n
	s.Scalar = true
	return nil
}

func (s SplayRaw) MarshalJSON() ([]byte, error) {
	if s.Scalar {
		return json.Marshal(s.End)
	}
	return json.Marshal(struct {
		Start int `json:"start"`
		End   int `json:"end"`
	}{s.Start, s.End})
}

// StringList accepts a single string or a list of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '[' {
		var out []string
		if err := json.Unmarshal(b, &out); err != nil {
			return err
		}
		*l = out
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*l = []string{s}
	return nil
}

func (l StringList) MarshalJSON() ([]byte, error) {
	if len(l) == 1 {
		return json.Marshal(l[0])
	}
	return json.Marshal([]string(l))
}
