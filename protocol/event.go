// Package protocol defines the relay event envelope: ids, tags, JSON
// serialization and the TLV framing used on relay connections.
package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const (
	// KindTextNote is the event kind replicated-state operations ride
	// on; custom kinds get dropped by some public relays.
	KindTextNote = 1

	// CRDTMarker tags every outbound operation event so receivers can
	// filter the firehose before paying for decryption or decoding.
	CRDTMarker = "nostr-crdt"
)

// Tag is a list of strings, the first being the tag name.
type Tag []string

type Tags []Tag

// Hashtag builds a "t" tag.
func Hashtag(value string) Tag { return Tag{"t", value} }

// Category builds a "c" tag, e.g. ("crdt", "lww").
func Category(values ...string) Tag { return append(Tag{"c"}, values...) }

// HasHashtag reports whether a "t" tag with the given value is present.
func (ts Tags) HasHashtag(value string) bool {
	for _, t := range ts {
		if len(t) >= 2 && t[0] == "t" && t[1] == value {
			return true
		}
	}
	return false
}

// Event is the broadcast envelope. Content carries the operation
// payload, encrypted when it ends in the "?iv=" marker form.
type Event struct {
	ID        string `json:"id" msgpack:"id"`
	PubKey    string `json:"pubkey" msgpack:"pubkey"`
	CreatedAt uint64 `json:"created_at" msgpack:"created_at"`
	Kind      int    `json:"kind" msgpack:"kind"`
	Tags      Tags   `json:"tags" msgpack:"tags"`
	Content   string `json:"content" msgpack:"content"`
	Sig       string `json:"sig" msgpack:"sig"`
}

// Serialize renders the canonical id preimage:
// [0, pubkey, created_at, kind, tags, content].
func (ev *Event) Serialize() ([]byte, error) {
	tags := ev.Tags
	if tags == nil {
		tags = Tags{}
	}
	return json.Marshal([]any{0, ev.PubKey, ev.CreatedAt, ev.Kind, tags, ev.Content})
}

// ComputeID returns the hex sha256 of the canonical serialization.
func (ev *Event) ComputeID() (string, error) {
	ser, err := ev.Serialize()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(ser)
	return hex.EncodeToString(sum[:]), nil
}

// CheckID reports whether the event's id matches its content.
func (ev *Event) CheckID() bool {
	id, err := ev.ComputeID()
	return err == nil && id == ev.ID
}
