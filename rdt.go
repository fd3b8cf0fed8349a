package nostrcrdt

// A Store holds one replicated data type's key->state mapping and
// merges operations into it. Apply must be commutative and must either
// fully succeed or reject the operation without touching state; each
// implementation guards its state with its own lock and does no I/O
// while holding it.
type Store interface {
	Apply(op Operation) error
}

// Clock supplies register timestamps as Unix seconds. Injectable so
// tie-break and ordering behavior is testable without wall-clock races.
type Clock interface {
	Now() uint64
}
