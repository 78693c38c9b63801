// README: Injectable wall clock; services stamp events and derived timestamps through it.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts time.Now so timestamp and duration logic can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real returns a Clock backed by the system time, truncated to microseconds to match Postgres.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// FakeClock stands still until Set or Advance is called. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}
