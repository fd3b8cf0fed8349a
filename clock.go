package nostrcrdt

import (
	"sync/atomic"
	"time"
)

// SystemClock reads the wall clock. Rapid writes to the same key within
// one second produce equal timestamps and fall under the register's
// tie rule: the value already applied keeps winning.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// LogicalClock hands out strictly increasing timestamps. Used by tests
// and by sessions that prefer ordering over wall-clock meaning.
type LogicalClock struct {
	last atomic.Uint64
}

func (c *LogicalClock) Now() uint64 { return c.last.Add(1) }
