package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cubeland/server/frame"
)

type stubHandler struct {
	endpoint uint8
	minType  uint8
	maxType  uint8
	calls    int
}

func (h *stubHandler) Endpoint() uint8 { return h.endpoint }
func (h *stubHandler) CanHandle(hdr frame.Header) bool {
	return hdr.Type >= h.minType && hdr.Type < h.maxType
}
func (h *stubHandler) Handle(ctx context.Context, s *Session, hdr frame.Header, payload []byte) error {
	h.calls++
	return nil
}
func (h *stubHandler) Dirty() bool          { return false }
func (h *stubHandler) Save(context.Context) error { return nil }

func TestDispatchPicksFirstMatchingHandlerInOrder(t *testing.T) {
	r := NewRegistry()
	first := &stubHandler{endpoint: 1, minType: 1, maxType: 5}
	second := &stubHandler{endpoint: 1, minType: 1, maxType: 5}
	r.Register(first)
	r.Register(second)

	err := r.Dispatch(context.Background(), nil, frame.Header{Endpoint: 1, Type: 2}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "second handler must not run once the first claims the frame")
}

func TestDispatchReturnsErrNoHandlerWhenNoneMatch(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubHandler{endpoint: 1, minType: 1, maxType: 2})

	err := r.Dispatch(context.Background(), nil, frame.Header{Endpoint: 2, Type: 1}, nil)
	assert.ErrorIs(t, err, ErrNoHandler)
}
