// Package nostrcrdt replicates mutable application state between peers
// over a broadcast relay network. Three conflict-free replicated data
// types (an LWW register, a grow-only counter and a grow-only set) merge
// operations in any arrival order; the Manager ties local mutation,
// merge and relay publication together.
package nostrcrdt

import "errors"

var (
	// ErrInvalidOperation is returned when an operation variant is fed
	// to a store of a different type. The store is left untouched.
	ErrInvalidOperation = errors.New("nostrcrdt: invalid operation for this type")

	// ErrSerialization covers undecryptable or malformed payloads, both
	// inbound and outbound. Inbound, the event is dropped.
	ErrSerialization = errors.New("nostrcrdt: serialization error")

	// ErrTransport is returned once the publish retry budget is spent.
	// The local replica keeps the already-applied mutation.
	ErrTransport = errors.New("nostrcrdt: publish failed")

	// ErrKeysNotAvailable means the session has no signing identity.
	ErrKeysNotAvailable = errors.New("nostrcrdt: keys not available")
)
