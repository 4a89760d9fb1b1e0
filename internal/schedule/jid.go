package schedule

import (
	"fmt"
	"sync"
	"time"
)

// jidGen produces job ids from the wall clock: a timestamp down to the
// second plus six digits of sub-second precision, e.g.
// 20260829153000123456. Calls landing in the same microsecond bump the
// fractional part so jids stay unique per node.
type jidGen struct {
	mu   sync.Mutex
	last string
}

func (g *jidGen) next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	jid := fmt.Sprintf("%s%06d", now.Format("20060102150405"), now.Nanosecond()/1000)
	if jid <= g.last {
		jid = incrJID(g.last)
	}
	g.last = jid
	return jid
}

var defaultJIDGen jidGen

// GenJID returns the next job id for this process.
func GenJID(now time.Time) string {
	return defaultJIDGen.next(now)
}

func incrJID(jid string) string {
	b := []byte(jid)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < '9' {
			b[i]++
			return string(b)
		}
		b[i] = '0'
	}
	return string(b)
}
