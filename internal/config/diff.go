package config

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	logx "fleetsched/pkg/logx"
)

// SummarizeChange returns (1) a compact list of changed sections, (2) safe
// structured attrs for logging (never includes secrets like sink tokens),
// and (3) the names of schedule jobs that were added, removed, or modified.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.bus_enabled", newCfg.Logging.Bus.Enabled),
		)
	}

	// Scheduler knobs
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.tick", strings.TrimSpace(newCfg.Scheduler.Tick)),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.Int("scheduler.default_returners", len(newCfg.Scheduler.DefaultReturners)),
		)
	}

	// Returners (never log tokens)
	if !reflect.DeepEqual(oldCfg.Returners, newCfg.Returners) {
		changed = append(changed, "returners")
		attrs = append(attrs,
			logx.Bool("returners.file", newCfg.Returners != nil && newCfg.Returners.File != nil),
			logx.Bool("returners.sqlite", newCfg.Returners != nil && newCfg.Returners.Sqlite != nil),
			logx.Bool("returners.telegram", newCfg.Returners != nil && newCfg.Returners.Telegram != nil),
		)
	}

	if !reflect.DeepEqual(oldCfg.Pprof, newCfg.Pprof) {
		changed = append(changed, "pprof")
	}

	// Schedule: per-job add/remove/modify.
	jobs := diffJobs(oldCfg.Schedule, newCfg.Schedule)
	if len(jobs) > 0 {
		changed = append(changed, "schedule")
		attrs = append(attrs, logx.Int("schedule.jobs", len(newCfg.Schedule)), logx.Int("schedule.changed", len(jobs)))
	}

	return changed, attrs, jobs
}

func diffJobs(oldJobs, newJobs map[string]JobRaw) []string {
	names := map[string]struct{}{}
	for name := range oldJobs {
		names[name] = struct{}{}
	}
	for name := range newJobs {
		names[name] = struct{}{}
	}

	out := make([]string, 0, len(names))
	for name := range names {
		o, okOld := oldJobs[name]
		n, okNew := newJobs[name]
		if okOld != okNew {
			out = append(out, name)
			continue
		}
		// JobRaw contains any-typed args; compare by canonical JSON.
		ob, _ := json.Marshal(o)
		nb, _ := json.Marshal(n)
		if string(ob) != string(nb) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
