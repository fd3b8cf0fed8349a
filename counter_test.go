package nostrcrdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGCounterAccumulates(t *testing.T) {
	c := NewGCounter()

	assert.NoError(t, c.Apply(CounterIncrement{Key: "visitors", Increment: 1}))
	assert.NoError(t, c.Apply(CounterIncrement{Key: "visitors", Increment: 1}))
	assert.NoError(t, c.Apply(CounterIncrement{Key: "downloads", Increment: 5}))

	v, ok := c.Read("visitors")
	assert.True(t, ok)
	assert.EqualValues(t, 2, v)

	v, ok = c.Read("downloads")
	assert.True(t, ok)
	assert.EqualValues(t, 5, v)

	_, ok = c.Read("absent")
	assert.False(t, ok)
}

// The counter has no per-operation identity: the same increment applied
// twice counts twice. That is the protocol's documented gap, so the
// test pins the double-count rather than papering over it.
func TestGCounterDuplicateDeliveryDoubleCounts(t *testing.T) {
	c := NewGCounter()
	op := CounterIncrement{Key: "k", Increment: 3}

	assert.NoError(t, c.Apply(op))
	assert.NoError(t, c.Apply(op))

	v, _ := c.Read("k")
	assert.EqualValues(t, 6, v)
}

func TestGCounterRejectsForeignVariant(t *testing.T) {
	c := NewGCounter()
	assert.NoError(t, c.Apply(CounterIncrement{Key: "k", Increment: 2}))

	err := c.Apply(SetAdd{Key: "k", Element: "x"})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	v, _ := c.Read("k")
	assert.EqualValues(t, 2, v)
}
