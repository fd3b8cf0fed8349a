package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasugamirai/nostr-crdt/protocol"
)

func TestEventLogAppendAndReplay(t *testing.T) {
	log, err := OpenEventLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	dup, err := log.Append(crdtEvent("a"))
	require.NoError(t, err)
	assert.False(t, dup)
	dup, err = log.Append(crdtEvent("b"))
	require.NoError(t, err)
	assert.False(t, dup)

	var ids []string
	require.NoError(t, log.Replay(func(ev *protocol.Event) bool {
		ids = append(ids, ev.ID)
		return true
	}))
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestEventLogDeduplicatesById(t *testing.T) {
	log, err := OpenEventLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	_, err = log.Append(crdtEvent("a"))
	require.NoError(t, err)
	dup, err := log.Append(crdtEvent("a"))
	require.NoError(t, err)
	assert.True(t, dup)

	count := 0
	require.NoError(t, log.Replay(func(*protocol.Event) bool {
		count++
		return true
	}))
	assert.Equal(t, 1, count)
}

func TestEventLogReplayStops(t *testing.T) {
	log, err := OpenEventLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	for _, id := range []string{"a", "b", "c"} {
		_, err = log.Append(crdtEvent(id))
		require.NoError(t, err)
	}

	seen := 0
	require.NoError(t, log.Replay(func(*protocol.Event) bool {
		seen++
		return seen < 2
	}))
	assert.Equal(t, 2, seen)
}
