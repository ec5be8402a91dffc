package handlers

import (
	"context"
	"sync"

	"github.com/cubeland/server/frame"
	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/session"
	"github.com/cubeland/server/world"
)

// ChunkHandler implements the Chunk endpoint (§4.4.2): clients request a
// chunk by coordinate and the server streams it back as a sequence of
// ChunkSliceData frames followed by one ChunkCompletion, offloading slice
// serialization to the listener's chunk worker pool so a slow client never
// stalls another session's reader goroutine.
type ChunkHandler struct {
	bgCtx    context.Context
	storage  world.Storage
	listener *session.Listener

	mu      sync.Mutex
	pending map[protocol.ChunkCoord]bool
}

// NewChunkHandler constructs the handler for one session. bgCtx bounds the
// worker-pool jobs this handler submits; it should be the listener's root
// context, not a per-frame context, since chunk serialization outlives the
// Handle call that triggered it.
func NewChunkHandler(bgCtx context.Context, storage world.Storage, listener *session.Listener) *ChunkHandler {
	return &ChunkHandler{bgCtx: bgCtx, storage: storage, listener: listener, pending: make(map[protocol.ChunkCoord]bool)}
}

func (h *ChunkHandler) Endpoint() uint8 { return protocol.EndpointChunk }

func (h *ChunkHandler) CanHandle(hdr frame.Header) bool {
	return hdr.Type == protocol.ChunkTypeGet
}

func (h *ChunkHandler) Handle(ctx context.Context, s *session.Session, hdr frame.Header, payload []byte) error {
	if s.AuthState() != session.AuthSuccessful {
		return errUnauthorized
	}

	req, err := protocol.DecodeChunkGet(payload)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.pending[req.Coord] {
		h.mu.Unlock()
		s.Log().Warningf("session %s: duplicate ChunkGet for %v while a request is already in flight", s.RemoteAddr(), req.Coord)
		return nil // already in flight; the original request's completion covers this one too
	}
	h.pending[req.Coord] = true
	h.mu.Unlock()

	h.listener.ObserveChunk(req.Coord, s)

	h.listener.ChunkPool().Submit(func() {
		defer func() {
			h.mu.Lock()
			delete(h.pending, req.Coord)
			h.mu.Unlock()
		}()
		h.serializeAndSend(s, hdr.Tag, req.Coord)
	})

	return nil
}

func (h *ChunkHandler) serializeAndSend(s *session.Session, tag uint16, coord protocol.ChunkCoord) {
	chunk, err := h.storage.GetChunk(h.bgCtx, coord)
	if err != nil {
		return
	}

	for sliceY, data := range chunk.Slices {
		msg := protocol.ChunkSliceData{Coord: coord, SliceY: sliceY, Data: data}
		_ = s.Send(protocol.EndpointChunk, protocol.ChunkTypeSliceData, tag, msg.Encode())
	}

	completion := protocol.ChunkCompletion{
		Coord:     coord,
		NumSlices: uint32(len(chunk.Slices)),
		ChunkMeta: chunk.ChunkMeta,
	}
	_ = s.Send(protocol.EndpointChunk, protocol.ChunkTypeCompletion, tag, completion.Encode())
}

func (h *ChunkHandler) Dirty() bool            { return false }
func (h *ChunkHandler) Save(context.Context) error { return nil }
