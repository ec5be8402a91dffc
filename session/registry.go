package session

import (
	"context"
	"sync"

	"github.com/cubeland/server/frame"
)

// Handler implements one endpoint's sub-protocol. Auth-gating (whether a
// handler may run before a session is authenticated) is handler-internal,
// not enforced by the Registry — only the Authentication handler itself
// runs unconditionally.
type Handler interface {
	// Endpoint returns the frame.Header.Endpoint this handler claims.
	Endpoint() uint8
	// CanHandle reports whether this handler accepts a frame with the
	// given header (normally just a Type range check).
	CanHandle(h frame.Header) bool
	// Handle processes one inbound frame for an authenticated or
	// authenticating session.
	Handle(ctx context.Context, s *Session, h frame.Header, payload []byte) error
	// Dirty reports whether this handler holds state the saver should
	// flush on its periodic sweep.
	Dirty() bool
	// Save persists this handler's dirty state and clears the dirty flag.
	Save(ctx context.Context) error
}

// Registry dispatches inbound frames to the first handler whose Endpoint
// and CanHandle match, in registration order — mirroring the teacher's
// single ordered peer list protected by one mutex, copied before iteration.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry { return &Registry{} }

// Register appends h to the dispatch order.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// Handlers returns a snapshot of the registered handlers, for the saver's
// periodic sweep.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// Dispatch finds the first handler matching hdr.Endpoint and CanHandle(hdr)
// and invokes it. Returns ErrNoHandler if none match.
func (r *Registry) Dispatch(ctx context.Context, s *Session, hdr frame.Header, payload []byte) error {
	r.mu.RLock()
	handlers := make([]Handler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.RUnlock()

	for _, h := range handlers {
		if h.Endpoint() == hdr.Endpoint && h.CanHandle(hdr) {
			return h.Handle(ctx, s, hdr, payload)
		}
	}
	return ErrNoHandler
}
