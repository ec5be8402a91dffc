// Package broadcast fans world events out to subscribed sessions: block
// edits, chat/presence, player movement, and the periodic world time tick.
// Each event family gets its own set of subscriber channels, generalizing
// the teacher's per-peer notify-channel idiom (a buffered chan struct{}
// signalling a consumer to drain a pending-message slice) into a pub-sub
// bus shared by every session instead of one queue per peer connection.
package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cubeland/server/protocol"
)

// Kind identifies an event family. Each handler subscribes to the families
// it cares about.
type Kind int

const (
	BlockEdits Kind = iota
	Chat
	PlayerJoined
	PlayerLeft
	PlayerMoved
	TimeTick
)

// Event is the payload delivered to subscribers. Only the fields relevant
// to Kind are populated.
type Event struct {
	Kind Kind

	// OriginatorID is the player whose action produced this event, used by
	// subscribers to implement the no-self-broadcast property. The zero
	// UUID means "no originator" (e.g. TimeTick).
	OriginatorID uuid.UUID

	Chunk        protocol.ChunkCoord
	BlockChanges []protocol.BlockChange

	ChatSender uuid.UUID
	ChatText   string

	PlayerID    uuid.UUID
	DisplayName string

	Position protocol.Vec3
	Angles   protocol.Vec3

	WorldTime float64
}

// subscriberBufSize bounds each subscriber's channel; publishes to a full
// channel are dropped rather than blocking the publisher, matching the
// bus's never-block-on-a-slow-consumer contract.
const subscriberBufSize = 64

// Subscription is a live subscriber registration. Callers must call Close
// when done to release the entry from the bus.
type Subscription struct {
	bus  *Bus
	kind Kind
	ch   chan Event
}

// C returns the channel events are delivered on.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close unregisters the subscription. Safe to call once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.subs[s.kind]
	for i, sub := range subs {
		if sub == s {
			s.bus.subs[s.kind] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// DropHandler is invoked when a publish would block a full subscriber
// channel; it receives the subscriber's Kind and the dropped Event. Tests
// and the listener's logger can observe backpressure through it.
type DropHandler func(Kind, Event)

// Bus fans events out to per-family subscriber channels.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]*Subscription

	// OnDrop, if set, is called whenever a full subscriber channel causes
	// an event to be dropped instead of delivered.
	OnDrop DropHandler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[Kind][]*Subscription)}
}

// Subscribe registers a new subscriber for kind and returns its Subscription.
func (b *Bus) Subscribe(kind Kind) *Subscription {
	sub := &Subscription{bus: b, kind: kind, ch: make(chan Event, subscriberBufSize)}
	b.mu.Lock()
	b.subs[kind] = append(b.subs[kind], sub)
	b.mu.Unlock()
	return sub
}

// Publish delivers ev to every subscriber of ev.Kind. Delivery never
// blocks: a subscriber whose channel is full has this event dropped for it
// and OnDrop is invoked if set.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := append([]*Subscription(nil), b.subs[ev.Kind]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			if b.OnDrop != nil {
				b.OnDrop(ev.Kind, ev)
			}
		}
	}
}
