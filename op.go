package nostrcrdt

import (
	"encoding/json"
	"fmt"
)

// Operation is a single replicated-state mutation. The variant set is
// closed: RegisterSet, CounterIncrement and SetAdd. Operations are
// plain values, immutable once built, and carry no replica identity.
type Operation interface {
	// OpKey returns the state key the operation mutates.
	OpKey() string
	sealed()
}

// RegisterSet assigns a value to an LWW register cell. The timestamp is
// a wall-clock-derived scalar; the greatest one wins on merge.
type RegisterSet struct {
	Key       string
	Value     string
	Timestamp uint64
}

// CounterIncrement grows a counter by a non-negative amount.
type CounterIncrement struct {
	Key       string
	Increment uint64
}

// SetAdd inserts an element into a grow-only set.
type SetAdd struct {
	Key     string
	Element string
}

func (o RegisterSet) OpKey() string      { return o.Key }
func (o CounterIncrement) OpKey() string { return o.Key }
func (o SetAdd) OpKey() string           { return o.Key }

func (RegisterSet) sealed()      {}
func (CounterIncrement) sealed() {}
func (SetAdd) sealed()           {}

// Wire format. The discriminant names and field names below are a
// compatibility contract with existing peers; do not rename.
const (
	wireLWW     = "LWWRegister"
	wireCounter = "GCounter"
	wireSet     = "GSet"

	wireActionAdd = "Add"
)

type lwwWire struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Timestamp uint64 `json:"timestamp"`
}

type counterWire struct {
	Key       string `json:"key"`
	Increment uint64 `json:"increment"`
}

type setWire struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Action string `json:"action"`
}

// MarshalOperation encodes an operation as an externally-tagged JSON
// object, e.g. {"GCounter":{"key":"k","increment":1}}.
func MarshalOperation(op Operation) ([]byte, error) {
	var tagged map[string]any
	switch o := op.(type) {
	case RegisterSet:
		tagged = map[string]any{wireLWW: lwwWire{o.Key, o.Value, o.Timestamp}}
	case CounterIncrement:
		tagged = map[string]any{wireCounter: counterWire{o.Key, o.Increment}}
	case SetAdd:
		tagged = map[string]any{wireSet: setWire{o.Key, o.Element, wireActionAdd}}
	default:
		return nil, fmt.Errorf("%w: unknown variant %T", ErrSerialization, op)
	}
	data, err := json.Marshal(tagged)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

// UnmarshalOperation decodes the wire form produced by
// MarshalOperation. Unknown discriminants, missing payloads and
// malformed JSON all map to ErrSerialization.
func UnmarshalOperation(data []byte) (Operation, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("%w: want exactly one variant, got %d", ErrSerialization, len(tagged))
	}
	for variant, payload := range tagged {
		switch variant {
		case wireLWW:
			var w lwwWire
			if err := json.Unmarshal(payload, &w); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
			}
			return RegisterSet{Key: w.Key, Value: w.Value, Timestamp: w.Timestamp}, nil
		case wireCounter:
			var w counterWire
			if err := json.Unmarshal(payload, &w); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
			}
			return CounterIncrement{Key: w.Key, Increment: w.Increment}, nil
		case wireSet:
			var w setWire
			if err := json.Unmarshal(payload, &w); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
			}
			if w.Action != wireActionAdd {
				return nil, fmt.Errorf("%w: unknown set action %q", ErrSerialization, w.Action)
			}
			return SetAdd{Key: w.Key, Element: w.Value}, nil
		default:
			return nil, fmt.Errorf("%w: unknown variant %q", ErrSerialization, variant)
		}
	}
	return nil, ErrSerialization // len check makes this unreachable
}
