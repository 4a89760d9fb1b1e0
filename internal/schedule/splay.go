package schedule

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// splayResolver draws the randomized dispatch delay for a firing.
//
// The delay defers only the actual execution start; next-run bookkeeping is
// computed from nominal due times so the cadence never drifts. A fresh value
// is drawn for every firing.
type splayResolver struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSplayResolver(seedTag string) *splayResolver {
	seed := time.Now().UnixNano() ^ int64(fnv64a(seedTag))
	return &splayResolver{rng: rand.New(rand.NewSource(seed))}
}

// Delay returns 0 for a zero splay, a uniform value in [0, Max] for a scalar
// splay, and a uniform value in [Min, Max] for a bounded one.
func (r *splayResolver) Delay(s Splay) time.Duration {
	if s.IsZero() {
		return 0
	}
	min := s.Min
	if min < 0 {
		min = 0
	}
	span := s.Max - min
	if span < 0 {
		return min
	}
	r.mu.Lock()
	d := min + time.Duration(r.rng.Int63n(int64(span)+1))
	r.mu.Unlock()
	return d
}

func fnv64a(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
