package handlers

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cubeland/server/broadcast"
	"github.com/cubeland/server/frame"
	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/session"
	"github.com/cubeland/server/world"
)

// BlockChangeVeto lets the caller reject or filter a reported set of block
// changes before they are applied and broadcast, e.g. for server-side
// anti-cheat. Returning a shorter slice than given drops those entries;
// the default (nil) applies every reported change unmodified.
type BlockChangeVeto func(s *session.Session, changes []protocol.BlockChange) []protocol.BlockChange

// BlockChangeHandler implements the BlockChange endpoint (§4.4.3): clients
// report edits they've made, the server applies them to world storage and
// fans them out to every other session observing the affected chunk.
type BlockChangeHandler struct {
	storage  world.Storage
	listener *session.Listener
	bus      *broadcast.Bus
	veto     BlockChangeVeto

	s *session.Session

	observed mapset.Set[protocol.ChunkCoord]
}

// NewBlockChangeHandler constructs the handler for one session and starts
// its bus-consumer goroutine, stopped automatically when s closes.
func NewBlockChangeHandler(storage world.Storage, listener *session.Listener, bus *broadcast.Bus, veto BlockChangeVeto, s *session.Session) *BlockChangeHandler {
	h := &BlockChangeHandler{
		storage:  storage,
		listener: listener,
		bus:      bus,
		veto:     veto,
		s:        s,
		observed: mapset.NewSet[protocol.ChunkCoord](),
	}
	go h.consumeBroadcasts()
	return h
}

func (h *BlockChangeHandler) Endpoint() uint8 { return protocol.EndpointBlockChange }

func (h *BlockChangeHandler) CanHandle(hdr frame.Header) bool {
	return hdr.Type == protocol.BlockChangeTypeReport || hdr.Type == protocol.BlockChangeTypeUnregister
}

func (h *BlockChangeHandler) Handle(ctx context.Context, s *session.Session, hdr frame.Header, payload []byte) error {
	if s.AuthState() != session.AuthSuccessful {
		return errUnauthorized
	}

	switch hdr.Type {
	case protocol.BlockChangeTypeReport:
		return h.handleReport(ctx, s, payload)
	case protocol.BlockChangeTypeUnregister:
		return h.handleUnregister(s, payload)
	default:
		return session.ErrNoHandler
	}
}

func (h *BlockChangeHandler) handleReport(ctx context.Context, s *session.Session, payload []byte) error {
	report, err := protocol.DecodeBlockChangeReport(payload)
	if err != nil {
		return err
	}

	changes := report.Changes
	if h.veto != nil {
		changes = h.veto(s, changes)
	}
	if len(changes) == 0 {
		return nil
	}

	byChunk := make(map[protocol.ChunkCoord][]protocol.BlockChange)
	for _, c := range changes {
		byChunk[c.Chunk] = append(byChunk[c.Chunk], c)
	}

	for coord, cs := range byChunk {
		if err := h.storage.ApplyBlockChanges(ctx, coord, cs); err != nil {
			continue
		}
		h.storage.MarkChunkDirty(coord)
		h.observed.Add(coord)
		h.listener.ObserveChunk(coord, s)

		h.bus.Publish(broadcast.Event{
			Kind:         broadcast.BlockEdits,
			OriginatorID: s.PlayerID(),
			Chunk:        coord,
			BlockChanges: cs,
		})
	}
	return nil
}

func (h *BlockChangeHandler) handleUnregister(s *session.Session, payload []byte) error {
	req, err := protocol.DecodeBlockChangeUnregister(payload)
	if err != nil {
		return err
	}
	h.observed.Remove(req.Coord)
	h.listener.UnobserveChunk(req.Coord, s)
	return nil
}

// consumeBroadcasts forwards BlockEdits events for chunks this session
// observes to the client, excluding edits this same session originated
// (the no-self-broadcast property).
func (h *BlockChangeHandler) consumeBroadcasts() {
	sub := h.bus.Subscribe(broadcast.BlockEdits)
	defer sub.Close()

	for {
		select {
		case <-h.s.Done():
			return
		case ev := <-sub.C():
			if ev.OriginatorID == h.s.PlayerID() {
				continue
			}
			observing := false
			for _, o := range h.listener.ChunkObservers(ev.Chunk) {
				if o == h.s {
					observing = true
					break
				}
			}
			if !observing {
				continue
			}
			msg := protocol.BlockChangeBroadcast{Changes: ev.BlockChanges}
			_ = h.s.Send(protocol.EndpointBlockChange, protocol.BlockChangeTypeBroadcast, 0, msg.Encode())
		}
	}
}

func (h *BlockChangeHandler) Dirty() bool            { return false }
func (h *BlockChangeHandler) Save(context.Context) error { return nil }
