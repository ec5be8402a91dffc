package handlers

import (
	"context"

	"github.com/cubeland/server/broadcast"
	"github.com/cubeland/server/frame"
	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/session"
	"github.com/cubeland/server/world"
)

// TimeHandler implements the Time endpoint (§4.4.8): the server-owned
// world clock is broadcast periodically by the listener's world-clock
// loop; this handler only relays TimeTick events to its session and sends
// the initial clock state once the session authenticates.
type TimeHandler struct {
	storage  world.Storage
	listener *session.Listener
	bus      *broadcast.Bus
	s        *session.Session
}

// NewTimeHandler constructs the handler for one session and starts its
// bus-consumer goroutine, stopped automatically when s closes.
func NewTimeHandler(storage world.Storage, listener *session.Listener, bus *broadcast.Bus, s *session.Session) *TimeHandler {
	h := &TimeHandler{storage: storage, listener: listener, bus: bus, s: s}
	go h.consumeBroadcasts()
	return h
}

func (h *TimeHandler) Endpoint() uint8 { return protocol.EndpointTime }

// CanHandle never matches: the Time endpoint carries no client-initiated
// requests, only server-originated state, matching the spec's description
// of Time as a push-only endpoint.
func (h *TimeHandler) CanHandle(hdr frame.Header) bool { return false }

func (h *TimeHandler) Handle(ctx context.Context, s *session.Session, hdr frame.Header, payload []byte) error {
	return session.ErrNoHandler
}

func (h *TimeHandler) consumeBroadcasts() {
	sub := h.bus.Subscribe(broadcast.TimeTick)
	defer sub.Close()

	for {
		select {
		case <-h.s.Done():
			return
		case ev := <-sub.C():
			out := protocol.TimeUpdate{CurrentTime: ev.WorldTime}
			_ = h.s.Send(protocol.EndpointTime, protocol.TimeTypeUpdate, 0, out.Encode())
		}
	}
}

// SendInitialState sends the current world clock state, called once on
// authentication.
func (h *TimeHandler) SendInitialState(ctx context.Context) error {
	out := protocol.TimeInitialState{
		TickFactor:  h.listener.TickFactor(),
		CurrentTime: h.listener.CurrentWorldTime(),
	}
	return h.s.Send(protocol.EndpointTime, protocol.TimeTypeInitialState, 0, out.Encode())
}

func (h *TimeHandler) Dirty() bool { return false }

// Save persists the world clock's current value. Dirty always reports
// false because the clock is process-global, not per-session state, so the
// saver's per-handler sweep never calls this; PersistWorldTime below is
// what the run command's shutdown path in cmd/cubeland-server calls.
func (h *TimeHandler) Save(ctx context.Context) error {
	return PersistWorldTime(ctx, h.storage, h.listener)
}

// PersistWorldTime writes the listener's current world clock value to
// storage under the reserved world-time key. Called once during process
// shutdown, since the clock is shared process-global state rather than
// something any single session's saver sweep owns.
func PersistWorldTime(ctx context.Context, storage world.Storage, listener *session.Listener) error {
	persisted := protocol.WorldTimePersisted{Time: listener.CurrentWorldTime()}.Encode()
	return storage.SetWorldInfo(ctx, protocol.KeyWorldTime, persisted)
}
