package nostrcrdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGSetAddAndMembership(t *testing.T) {
	s := NewGSet()

	assert.NoError(t, s.Apply(SetAdd{Key: "users", Element: "alice"}))
	assert.NoError(t, s.Apply(SetAdd{Key: "users", Element: "bob"}))

	members, ok := s.Members("users")
	assert.True(t, ok)
	assert.ElementsMatch(t, []string{"alice", "bob"}, members)

	_, ok = s.Members("absent")
	assert.False(t, ok)
}

func TestGSetDuplicateAddIsNoop(t *testing.T) {
	s := NewGSet()
	op := SetAdd{Key: "users", Element: "alice"}

	assert.NoError(t, s.Apply(op))
	assert.NoError(t, s.Apply(op))

	members, _ := s.Members("users")
	assert.Len(t, members, 1)
}

func TestGSetKeepsLocalInsertionOrder(t *testing.T) {
	s := NewGSet()
	for _, e := range []string{"c", "a", "b"} {
		assert.NoError(t, s.Apply(SetAdd{Key: "k", Element: e}))
	}
	members, _ := s.Members("k")
	assert.Equal(t, []string{"c", "a", "b"}, members)
}

func TestGSetMembersReturnsCopy(t *testing.T) {
	s := NewGSet()
	assert.NoError(t, s.Apply(SetAdd{Key: "k", Element: "a"}))

	members, _ := s.Members("k")
	members[0] = "mutated"

	again, _ := s.Members("k")
	assert.Equal(t, []string{"a"}, again)
}

func TestGSetRejectsForeignVariant(t *testing.T) {
	s := NewGSet()
	err := s.Apply(RegisterSet{Key: "k", Value: "v", Timestamp: 1})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, ok := s.Members("k")
	assert.False(t, ok)
}
