package nostrcrdt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kasugamirai/nostr-crdt/crypto"
	"github.com/kasugamirai/nostr-crdt/protocol"
	"github.com/kasugamirai/nostr-crdt/relay"
	"github.com/kasugamirai/nostr-crdt/utils"
)

// Options wires a session together. One Options value, one Manager, no
// ambient singletons: identity, transport and clock all arrive here.
type Options struct {
	Keys  *crypto.Keys    // session identity; nil disables publication
	Relay relay.Transport // broadcast collaborator
	Clock Clock           // defaults to SystemClock
	Log   utils.Logger    // defaults to a stderr slog logger
	Retry RetryPolicy     // defaults to DefaultRetry
	Kind  int             // defaults to protocol.KindTextNote
}

// Manager owns one instance of each replicated type and runs both
// directions of replication: local mutations apply in memory first and
// then publish with bounded retry; inbound events decrypt, decode and
// merge. A Manager lives for the whole session.
type Manager struct {
	log   utils.Logger
	clock Clock
	keys  *crypto.Keys
	relay relay.Transport
	retry RetryPolicy
	kind  int

	metrics *Metrics

	registers *LWWRegister
	counters  *GCounter
	sets      *GSet
}

func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Log == nil {
		opts.Log = utils.NewDefaultLogger(slog.LevelInfo)
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = DefaultRetry
	}
	if opts.Kind == 0 {
		opts.Kind = protocol.KindTextNote
	}
	return &Manager{
		log:       opts.Log,
		clock:     opts.Clock,
		keys:      opts.Keys,
		relay:     opts.Relay,
		retry:     opts.Retry,
		kind:      opts.Kind,
		metrics:   NewMetrics(),
		registers: NewLWWRegister(),
		counters:  NewGCounter(),
		sets:      NewGSet(),
	}
}

func (m *Manager) Metrics() *Metrics { return m.metrics }

// Mutation entry points. Each applies locally first — the caller reads
// its own write immediately — and only then publishes. A failed publish
// returns an error while the local mutation stays: until re-published
// by the caller, such state is provisional.

func (m *Manager) UpdateRegister(ctx context.Context, key, value string) (eventID string, err error) {
	op := RegisterSet{Key: key, Value: value, Timestamp: m.clock.Now()}
	return m.mutate(ctx, op)
}

func (m *Manager) IncrementCounter(ctx context.Context, key string, amount uint64) (eventID string, err error) {
	op := CounterIncrement{Key: key, Increment: amount}
	return m.mutate(ctx, op)
}

func (m *Manager) AddToSet(ctx context.Context, key, element string) (eventID string, err error) {
	op := SetAdd{Key: key, Element: element}
	return m.mutate(ctx, op)
}

func (m *Manager) mutate(ctx context.Context, op Operation) (string, error) {
	store, categ := m.dispatch(op)
	if err := store.Apply(op); err != nil {
		return "", err
	}
	m.metrics.Applied.WithLabelValues(categ, "local").Inc()
	return m.publish(ctx, op, categ)
}

// Readers.

func (m *Manager) RegisterValue(key string) (string, bool) { return m.registers.Read(key) }
func (m *Manager) CounterValue(key string) (uint64, bool)  { return m.counters.Read(key) }
func (m *Manager) SetMembers(key string) ([]string, bool)  { return m.sets.Members(key) }

// dispatch maps an operation variant to its store and category tag.
// The variant set is closed, so the switch is exhaustive.
func (m *Manager) dispatch(op Operation) (Store, string) {
	switch op.(type) {
	case RegisterSet:
		return m.registers, "lww"
	case CounterIncrement:
		return m.counters, "gcounter"
	case SetAdd:
		return m.sets, "gset"
	}
	panic("nostrcrdt: unreachable operation variant")
}

func (m *Manager) publish(ctx context.Context, op Operation, categ string) (string, error) {
	if m.keys == nil {
		return "", ErrKeysNotAvailable
	}
	payload, err := MarshalOperation(op)
	if err != nil {
		return "", err
	}
	content, err := m.keys.Encrypt(m.keys.PublicKey(), string(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	ev := &protocol.Event{
		CreatedAt: m.clock.Now(),
		Kind:      m.kind,
		Tags: protocol.Tags{
			protocol.Category("crdt", categ),
			protocol.Hashtag(protocol.CRDTMarker),
		},
		Content: content,
	}
	if err := m.keys.SignEvent(ev); err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeysNotAvailable, err)
	}

	err = m.retry.Do(ctx, func() error {
		m.metrics.PublishAttempts.Inc()
		return m.relay.Publish(ctx, ev)
	})
	if err != nil {
		m.metrics.PublishFailures.Inc()
		m.log.Error("publish failed, local state kept",
			"key", op.OpKey(), "type", categ, "err", err)
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	m.log.Debug("published", "event", ev.ID, "type", categ, "key", op.OpKey())
	return ev.ID, nil
}

// Filter matches the events this session publishes: the operation kind
// plus the application marker hashtag.
func (m *Manager) Filter() relay.Filter {
	return relay.Filter{
		Kinds:    []int{m.kind},
		Hashtags: []string{protocol.CRDTMarker},
	}
}

// ProcessEvent merges one inbound event. Events of a foreign kind are
// dropped without error; undecryptable or malformed content yields
// ErrSerialization with no state touched and no retry. Duplicate and
// reordered delivery is tolerated by the merge rules themselves, except
// for counter increments, which the transport must not replay.
func (m *Manager) ProcessEvent(_ context.Context, ev *protocol.Event) error {
	if ev.Kind != m.kind {
		return nil
	}
	content := ev.Content
	if crypto.IsEncrypted(content) {
		if m.keys == nil {
			return ErrKeysNotAvailable
		}
		plain, err := m.keys.Decrypt(ev.PubKey, content)
		if err != nil {
			m.metrics.InboundDropped.WithLabelValues("decrypt").Inc()
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		content = plain
	}
	op, err := UnmarshalOperation([]byte(content))
	if err != nil {
		m.metrics.InboundDropped.WithLabelValues("decode").Inc()
		return err
	}
	store, categ := m.dispatch(op)
	if err := store.Apply(op); err != nil {
		m.metrics.InboundDropped.WithLabelValues("apply").Inc()
		return err
	}
	m.metrics.Applied.WithLabelValues(categ, "remote").Inc()
	return nil
}

// Run subscribes to the relay and merges inbound events until the
// context ends or the stream closes. Ingestion errors never propagate
// past this loop: the event is logged and dropped, nobody is waiting
// on it.
func (m *Manager) Run(ctx context.Context) error {
	events, cancel, err := m.relay.Subscribe(ctx, m.Filter())
	if err != nil {
		return err
	}
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := m.ProcessEvent(ctx, ev); err != nil {
				m.log.Debug("inbound event dropped", "event", ev.ID, "err", err)
			}
		}
	}
}
