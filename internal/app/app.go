// Package app wires the node together: config, logging, event bus,
// returner sinks, the action registry and the scheduler, plus config
// hot-reload fan-out.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetsched/internal/action"
	"fleetsched/internal/action/builtin"
	"fleetsched/internal/config"
	"fleetsched/internal/eventbus"
	"fleetsched/internal/observability/pprof"
	"fleetsched/internal/returner"
	"fleetsched/internal/runtime/supervisor"
	"fleetsched/internal/schedule"
	"fleetsched/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	actions *action.Registry
	sinks   *returner.Registry
	sched   *schedule.Service
	prof    *pprof.Service

	closers []func() error
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	node := strings.TrimSpace(cfg.ID)
	if node == "" {
		node = "node-" + uuid.NewString()[:8]
	}

	bus := eventbus.New()
	logSvc, log := logx.New(loggingConfig(cfg), bus)
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
	}

	a.sinks = returner.NewRegistry()
	a.sinks.Register(returner.NewLogSink(log.With(logx.String("comp", "returner"))))
	a.sinks.Register(returner.NewBusSink(bus, 10))
	if err := a.registerConfiguredSinks(cfg); err != nil {
		_ = a.closeAll()
		return nil, err
	}
	router := returner.NewRouter(a.sinks, cfg.Scheduler.DefaultReturners,
		log.With(logx.String("comp", "returner")))

	a.actions = action.NewRegistry()
	builtin.Register(a.actions)

	tick, err := config.ParseDurationDefault("scheduler.tick", cfg.Scheduler.Tick, time.Second)
	if err != nil {
		_ = a.closeAll()
		return nil, err
	}
	loc, err := loadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		_ = a.closeAll()
		return nil, err
	}

	a.sched = schedule.NewService(schedule.Options{
		NodeID:   node,
		Tick:     tick,
		Location: loc,
		Invoker:  a.actions,
		Router:   router,
		Bus:      bus,
		Log:      log.With(logx.String("comp", "scheduler")),
	})
	a.sched.Refresh(cfg.Schedule)
	if cfg.Scheduler.Enabled != nil && !*cfg.Scheduler.Enabled {
		a.sched.Table().DisableScheduler()
	}
	if p := cfg.Scheduler.PersistPath; p != "" {
		if err := a.sched.LoadPersisted(p); err != nil {
			log.Warn("could not load persisted schedule",
				logx.String("path", p), logx.Err(err))
		}
	}

	if cfg.Pprof != nil {
		a.prof = pprof.New(pprof.Config{
			Enabled: cfg.Pprof.Enabled,
			Addr:    cfg.Pprof.Addr,
		}, log.With(logx.String("comp", "pprof")))
	}

	return a, nil
}

// Scheduler exposes the schedule service for management surfaces.
func (a *App) Scheduler() *schedule.Service { return a.sched }

// Bus exposes the in-process event bus.
func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) registerConfiguredSinks(cfg *config.Config) error {
	r := cfg.Returners
	if r == nil {
		return nil
	}
	if r.File != nil {
		s, err := returner.NewFileSink(r.File.Path)
		if err != nil {
			return err
		}
		a.sinks.Register(s)
	}
	if r.Sqlite != nil {
		busy, err := config.ParseDurationDefault("returners.sqlite.busy_timeout",
			r.Sqlite.BusyTimeout, 5*time.Second)
		if err != nil {
			return err
		}
		s, err := returner.NewSqliteSink(r.Sqlite.Path, busy)
		if err != nil {
			return err
		}
		a.sinks.Register(s)
		a.closers = append(a.closers, s.Close)
	}
	if r.Telegram != nil {
		s, err := returner.NewTelegramSink(r.Telegram.Token, r.Telegram.ChatID, r.Telegram.OnlyFailures)
		if err != nil {
			return err
		}
		a.sinks.Register(s)
	}
	return nil
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := config.ParseDurationDefault("scheduler.tick", cfg.Scheduler.Tick, time.Second); err != nil {
			return err
		}
		if _, err := loadLocation(cfg.Scheduler.Timezone); err != nil {
			return err
		}
		if cfg.Returners != nil && cfg.Returners.Sqlite != nil {
			if _, err := config.ParseDurationDefault("returners.sqlite.busy_timeout",
				cfg.Returners.Sqlite.BusyTimeout, 0); err != nil {
				return err
			}
		}
		return nil
	})

	a.sched.Start(a.sup)

	if a.prof != nil {
		if err := a.prof.Start(a.sup); err != nil {
			return err
		}
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts, keep only the latest
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("node started", logx.Int("actions", len(a.actions.Names())))
	return nil
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, changedJobs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, no effective changes")
		return
	}
	a.log.Debug("config change summary",
		append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	a.logs.Apply(loggingConfig(newCfg))

	tick, err := config.ParseDurationDefault("scheduler.tick", newCfg.Scheduler.Tick, time.Second)
	if err != nil {
		a.log.Warn("invalid scheduler.tick kept previous value", logx.Err(err))
		tick = 0
	}
	loc, err := loadLocation(newCfg.Scheduler.Timezone)
	if err != nil {
		a.log.Warn("invalid scheduler.timezone kept previous value", logx.Err(err))
		loc = nil
	}
	a.sched.Apply(tick, loc)

	if newCfg.Scheduler.Enabled == nil || *newCfg.Scheduler.Enabled {
		a.sched.Table().EnableScheduler()
	} else {
		a.sched.Table().DisableScheduler()
	}

	if len(changedJobs) > 0 {
		a.log.Info("schedule changed", logx.Any("jobs", changedJobs))
	}
	a.sched.Refresh(newCfg.Schedule)

	a.log.Info("config reloaded",
		logx.String("changed", strings.Join(sections, ",")))
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return a.closeAll()
	}
	a.log.Info("stopping")
	a.sup.Cancel()
	err := a.sup.Wait(ctx)
	if cerr := a.closeAll(); cerr != nil && err == nil {
		err = cerr
	}
	_ = a.logs.Close()
	return err
}

func (a *App) closeAll() error {
	var first error
	for _, fn := range a.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Bus: logx.BusConfig{
			Enabled:    cfg.Logging.Bus.Enabled,
			MinLevel:   cfg.Logging.Bus.MinLevel,
			RatePerSec: cfg.Logging.Bus.RatePerSec,
		},
	}
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}
