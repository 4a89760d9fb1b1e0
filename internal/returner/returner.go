// Package returner routes finished job outcomes to configured sinks.
//
// Sinks are independent: a failing sink never suppresses delivery to the
// others, and a failed delivery always ends up in the log so the outcome is
// never silently lost.
package returner

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Outcome is the record of one finished job run.
type Outcome struct {
	Node     string            `json:"id"`
	JID      string            `json:"jid,omitempty"`
	Schedule string            `json:"schedule"`
	Fun      string            `json:"fun"`
	FunArgs  []any             `json:"fun_args,omitempty"`
	Success  bool              `json:"success"`
	Return   any               `json:"return,omitempty"`
	Error    string            `json:"error,omitempty"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Duration is the wall time the run took.
func (o Outcome) Duration() time.Duration { return o.Finished.Sub(o.Started) }

// Sink delivers one outcome to a destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, o Outcome) error
}

// Registry holds the sinks configured on this node.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

func NewRegistry() *Registry {
	return &Registry{sinks: map[string]Sink{}}
}

func (r *Registry) Register(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[s.Name()] = s
}

func (r *Registry) Lookup(name string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[name]
	return s, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
