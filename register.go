package nostrcrdt

import "sync"

type regCell struct {
	value string
	time  uint64
}

// LWWRegister is a last-writer-wins register map. An incoming write
// replaces the stored cell only when its timestamp is strictly greater;
// on an exact tie the value applied first stays. Equal timestamps with
// different values can therefore leave replicas diverged permanently —
// a known property of the wire protocol, kept as is.
type LWWRegister struct {
	lock  sync.Mutex
	cells map[string]regCell
}

func NewLWWRegister() *LWWRegister {
	return &LWWRegister{cells: make(map[string]regCell)}
}

func (r *LWWRegister) Apply(op Operation) error {
	set, ok := op.(RegisterSet)
	if !ok {
		return ErrInvalidOperation
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if cur, ok := r.cells[set.Key]; ok && cur.time >= set.Timestamp {
		return nil // older or tied write loses
	}
	r.cells[set.Key] = regCell{value: set.Value, time: set.Timestamp}
	return nil
}

// Read returns the current value for key, reporting absence via ok.
func (r *LWWRegister) Read(key string) (value string, ok bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	cell, ok := r.cells[key]
	return cell.value, ok
}
