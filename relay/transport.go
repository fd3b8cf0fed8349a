// Package relay implements the broadcast transport the replication core
// publishes through: an in-process hub, a pebble-backed event log and a
// TCP relay server/client speaking TLV-framed events. Delivery is
// at-least-once and unordered; subscribers may see duplicates and must
// merge accordingly.
package relay

import (
	"context"

	"github.com/kasugamirai/nostr-crdt/protocol"
)

// Filter selects the events a subscriber wants. Zero fields match
// everything.
type Filter struct {
	Kinds    []int
	Hashtags []string
}

func (f Filter) Match(ev *protocol.Event) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if ev.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, h := range f.Hashtags {
		if !ev.Tags.HasHashtag(h) {
			return false
		}
	}
	return true
}

// Transport is the broadcast collaborator contract. Publish is one
// request from the caller's point of view regardless of fan-out behind
// it. Subscribe returns a stream of raw events plus a cancel func;
// the stream is unordered, at-least-once and possibly duplicated.
type Transport interface {
	Publish(ctx context.Context, ev *protocol.Event) error
	Subscribe(ctx context.Context, f Filter) (<-chan *protocol.Event, func(), error)
}
