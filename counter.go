package nostrcrdt

import "sync"

// GCounter is a grow-only counter map; merging an increment adds it to
// the running total. Summation commutes across distinct operations, but
// there is no per-operation identity: the same increment delivered
// twice counts twice. The wire protocol assumes exactly-once
// application, so duplicates must be weeded out by the transport (see
// relay.Client's seen-cache).
type GCounter struct {
	lock   sync.Mutex
	totals map[string]uint64
}

func NewGCounter() *GCounter {
	return &GCounter{totals: make(map[string]uint64)}
}

func (c *GCounter) Apply(op Operation) error {
	inc, ok := op.(CounterIncrement)
	if !ok {
		return ErrInvalidOperation
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.totals[inc.Key] += inc.Increment
	return nil
}

// Read returns the accumulated total for key, reporting absence via ok.
func (c *GCounter) Read(key string) (total uint64, ok bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	total, ok = c.totals[key]
	return
}
