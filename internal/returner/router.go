package returner

import (
	"context"

	"golang.org/x/time/rate"

	"fleetsched/pkg/logx"
)

// LogSinkName is always registered and is the fallback when nothing else is
// configured or a configured sink fails.
const LogSinkName = "log"

// Router fans one outcome out to a list of sinks.
type Router struct {
	reg      *Registry
	defaults []string
	log      logx.Logger
	warnLim  *rate.Limiter
}

func NewRouter(reg *Registry, defaults []string, log logx.Logger) *Router {
	return &Router{
		reg:      reg,
		defaults: defaults,
		log:      log,
		// a misbehaving sink on a tight schedule would otherwise flood
		// the log with identical warnings
		warnLim: rate.NewLimiter(rate.Limit(1), 5),
	}
}

// Deliver routes an outcome to the named sinks, falling back to the node
// defaults and finally to the log sink. Each sink is attempted regardless of
// the others' results; failures are logged, never returned, so the caller's
// job bookkeeping cannot be derailed by a broken destination.
func (r *Router) Deliver(ctx context.Context, o Outcome, names []string) {
	targets := dedupe(names)
	if len(targets) == 0 {
		targets = dedupe(r.defaults)
	}
	if len(targets) == 0 {
		targets = []string{LogSinkName}
	}

	anyFailed := false
	logDelivered := false
	for _, name := range targets {
		sink, ok := r.reg.Lookup(name)
		if !ok {
			r.log.Warn("ignoring unknown returner",
				logx.String("returner", name),
				logx.String("schedule", o.Schedule))
			continue
		}
		if err := sink.Deliver(ctx, o); err != nil {
			anyFailed = true
			if r.warnLim.Allow() {
				r.log.Warn("returner delivery failed",
					logx.String("returner", name),
					logx.String("schedule", o.Schedule),
					logx.String("jid", o.JID),
					logx.Err(err))
			}
			continue
		}
		if name == LogSinkName {
			logDelivered = true
		}
	}
	if anyFailed && !logDelivered {
		if fb, ok := r.reg.Lookup(LogSinkName); ok {
			_ = fb.Deliver(ctx, o)
		}
	}
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := names[:0:0]
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
