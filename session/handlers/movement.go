package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cubeland/server/broadcast"
	"github.com/cubeland/server/frame"
	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/session"
	"github.com/cubeland/server/world"
)

// MovementHandler implements the PlayerMovement endpoint (§4.4.7): clients
// report their position/look angles tagged with a monotonic epoch; stale
// reports are discarded per the epoch-guard rule, the latest report is
// broadcast to other sessions on a fixed interval, and the latest value is
// persisted so a reconnecting player resumes where they left off.
type MovementHandler struct {
	storage  world.Storage
	bus      *broadcast.Bus
	s        *session.Session
	interval time.Duration

	mu         sync.Mutex
	lastEpoch  uint32
	haveEpoch  bool
	position   protocol.Vec3
	angles     protocol.Vec3
	dirty      bool
	moved      bool
}

// NewMovementHandler constructs the handler for one session and starts its
// broadcast-ticker and bus-consumer goroutines, stopped automatically when
// s closes.
func NewMovementHandler(storage world.Storage, bus *broadcast.Bus, s *session.Session, interval time.Duration) *MovementHandler {
	h := &MovementHandler{storage: storage, bus: bus, s: s, interval: interval}
	go h.broadcastLoop()
	go h.consumeBroadcasts()
	return h
}

func (h *MovementHandler) Endpoint() uint8 { return protocol.EndpointPlayerMovement }

func (h *MovementHandler) CanHandle(hdr frame.Header) bool {
	return hdr.Type == protocol.MovementTypePositionChanged
}

func (h *MovementHandler) Handle(ctx context.Context, s *session.Session, hdr frame.Header, payload []byte) error {
	if s.AuthState() != session.AuthSuccessful {
		return errUnauthorized
	}

	req, err := protocol.DecodePlayerPositionChanged(payload)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.haveEpoch && req.Epoch < h.lastEpoch && (h.lastEpoch-req.Epoch) < session.EpochDriftWindow {
		h.mu.Unlock()
		return nil
	}
	h.lastEpoch = req.Epoch
	h.haveEpoch = true
	h.position = req.Position
	h.angles = req.Angles
	h.dirty = true
	h.moved = true
	h.mu.Unlock()

	return nil
}

// broadcastLoop publishes the latest accepted position on a fixed
// interval, only while there is a fresh update to report.
func (h *MovementHandler) broadcastLoop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.s.Done():
			return
		case <-ticker.C:
			h.mu.Lock()
			if !h.moved {
				h.mu.Unlock()
				continue
			}
			h.moved = false
			pos, ang := h.position, h.angles
			h.mu.Unlock()

			h.bus.Publish(broadcast.Event{
				Kind:         broadcast.PlayerMoved,
				OriginatorID: h.s.PlayerID(),
				PlayerID:     h.s.PlayerID(),
				Position:     pos,
				Angles:       ang,
			})
		}
	}
}

// consumeBroadcasts forwards other sessions' PlayerMoved events to this
// client, excluding this session's own movement.
func (h *MovementHandler) consumeBroadcasts() {
	sub := h.bus.Subscribe(broadcast.PlayerMoved)
	defer sub.Close()

	for {
		select {
		case <-h.s.Done():
			return
		case ev := <-sub.C():
			if ev.OriginatorID == h.s.PlayerID() {
				continue
			}
			out := protocol.PlayerPositionBroadcast{PlayerID: ev.PlayerID, Position: ev.Position, Angles: ev.Angles}
			_ = h.s.Send(protocol.EndpointPlayerMovement, protocol.MovementTypeBroadcast, 0, out.Encode())
		}
	}
}

// ReplayInitial loads a player's persisted position, if any, and sends it
// as a PlayerPositionInitial, used on join.
func (h *MovementHandler) ReplayInitial(ctx context.Context, id uuid.UUID) error {
	data, found, err := h.storage.GetPlayerInfo(ctx, id, protocol.KeyPlayerPosition)
	if err != nil || !found {
		return err
	}
	persisted, err := protocol.DecodePlayerPositionPersisted(data)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.position = persisted.Position
	h.angles = persisted.Angles
	h.mu.Unlock()

	out := protocol.PlayerPositionInitial{Position: persisted.Position, Angles: persisted.Angles}
	return h.s.Send(protocol.EndpointPlayerMovement, protocol.MovementTypeInitial, 0, out.Encode())
}

func (h *MovementHandler) Dirty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirty
}

func (h *MovementHandler) Save(ctx context.Context) error {
	h.mu.Lock()
	pos, ang := h.position, h.angles
	h.dirty = false
	h.mu.Unlock()

	data := protocol.PlayerPositionPersisted{Position: pos, Angles: ang}.Encode()
	return h.storage.SetPlayerInfo(ctx, h.s.PlayerID(), protocol.KeyPlayerPosition, data)
}
