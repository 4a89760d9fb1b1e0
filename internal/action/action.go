// Package action resolves function names like "test.ping" or
// "status.uptime" to Go implementations and invokes them.
package action

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
)

// Call is one resolved invocation request.
type Call struct {
	Function string
	Args     []any
	Kwargs   map[string]any
}

// StrKwarg returns a string kwarg, or def when absent or not a string.
func (c Call) StrKwarg(key, def string) string {
	if v, ok := c.Kwargs[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Func implements one callable function.
type Func func(ctx context.Context, call Call) (any, error)

// Registry maps dotted function names to implementations. Registration
// happens during startup wiring; Invoke is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Invoke runs a call. An unknown function name and a panicking
// implementation both come back as ordinary errors; neither takes the
// process down.
func (r *Registry) Invoke(ctx context.Context, call Call) (ret any, err error) {
	fn, ok := r.Lookup(call.Function)
	if !ok {
		return nil, fmt.Errorf("'%s' is not available", call.Function)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s panicked: %v\n%s", call.Function, rec, debug.Stack())
		}
	}()
	return fn(ctx, call)
}
