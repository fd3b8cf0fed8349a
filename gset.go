package nostrcrdt

import (
	"slices"
	"sync"
)

// GSet is a grow-only set map: membership only ever grows, and adding a
// present element is a no-op, which makes the merge idempotent and
// commutative under any delivery order. Members keeps local insertion
// order; replicas agree on membership, never on sequence.
type GSet struct {
	lock sync.Mutex
	sets map[string][]string
}

func NewGSet() *GSet {
	return &GSet{sets: make(map[string][]string)}
}

func (s *GSet) Apply(op Operation) error {
	add, ok := op.(SetAdd)
	if !ok {
		return ErrInvalidOperation
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if slices.Contains(s.sets[add.Key], add.Element) {
		return nil
	}
	s.sets[add.Key] = append(s.sets[add.Key], add.Element)
	return nil
}

// Members returns a copy of key's members in local insertion order,
// reporting absence via ok.
func (s *GSet) Members(key string) (members []string, ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	set, ok := s.sets[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(set), true
}
