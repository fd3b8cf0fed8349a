package protocol

import (
	"errors"
	"fmt"

	"github.com/learn-decentralized-systems/toytlv"
	"github.com/vmihailenco/msgpack/v5"
)

// Relay connections carry events as ToyTLV records: an 'E' record whose
// body is the msgpack encoding of the Event.
const EventLit = 'E'

var ErrBadFrame = errors.New("protocol: bad event frame")

// FrameEvent encodes an event into a single TLV record.
func FrameEvent(ev *Event) ([]byte, error) {
	body, err := msgpack.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return toytlv.Record(EventLit, body), nil
}

// UnframeEvent decodes one complete 'E' record.
func UnframeEvent(rec []byte) (*Event, error) {
	body, _ := toytlv.Take(EventLit, rec)
	if body == nil {
		return nil, ErrBadFrame
	}
	var ev Event
	if err := msgpack.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return &ev, nil
}

// SplitFrames consumes as many complete records as buf holds and
// returns the unconsumed tail, typically a partial read off a socket.
func SplitFrames(buf []byte) (recs [][]byte, rest []byte, err error) {
	rest = buf
	for len(rest) > 0 {
		lit, hlen, blen := toytlv.ProbeHeader(rest)
		if lit == '-' {
			return recs, rest, ErrBadFrame
		}
		if lit == 0 || hlen+blen > len(rest) { // incomplete
			return recs, rest, nil
		}
		recs = append(recs, rest[:hlen+blen])
		rest = rest[hlen+blen:]
	}
	return recs, rest, nil
}
