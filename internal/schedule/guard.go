package schedule

import "sync"

// Guard tracks in-flight run counts per job name and enforces maxrunning.
//
// For jobs scheduled with jid_include, the jid of each overlapping run is
// tracked as well so logs and snapshots can tell concurrent invocations
// apart; the cap arithmetic is identical either way.
type Guard struct {
	mu      sync.Mutex
	running map[string]int
	jids    map[string]map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{
		running: map[string]int{},
		jids:    map[string]map[string]struct{}{},
	}
}

// TryAcquire atomically checks running < limit and increments on success.
// jid may be empty (jid_include false); it is then not tracked.
func (g *Guard) TryAcquire(name string, limit int, jid string) bool {
	if limit < 1 {
		limit = 1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[name] >= limit {
		return false
	}
	g.running[name]++
	if jid != "" {
		set := g.jids[name]
		if set == nil {
			set = map[string]struct{}{}
			g.jids[name] = set
		}
		set[jid] = struct{}{}
	}
	return true
}

// Release decrements the run count, flooring at zero, and forgets the jid.
func (g *Guard) Release(name, jid string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[name] > 0 {
		g.running[name]--
	}
	if g.running[name] == 0 {
		delete(g.running, name)
	}
	if jid != "" {
		if set := g.jids[name]; set != nil {
			delete(set, jid)
			if len(set) == 0 {
				delete(g.jids, name)
			}
		}
	}
}

// Running returns the current in-flight count for a job name.
func (g *Guard) Running(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[name]
}

// ActiveJIDs returns the jids of in-flight runs for a jid_include job.
func (g *Guard) ActiveJIDs(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.jids[name]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for jid := range set {
		out = append(out, jid)
	}
	return out
}
