package handlers

import (
	"context"

	"github.com/cubeland/server/frame"
	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/session"
	"github.com/cubeland/server/world"
)

// WorldInfoHandler implements the WorldInfo endpoint (§4.4.6): read-only
// access to opaque world-scoped key/value data (the reserved keys include
// the persisted world clock value).
type WorldInfoHandler struct {
	storage world.Storage
}

// NewWorldInfoHandler constructs the handler.
func NewWorldInfoHandler(storage world.Storage) *WorldInfoHandler {
	return &WorldInfoHandler{storage: storage}
}

func (h *WorldInfoHandler) Endpoint() uint8 { return protocol.EndpointWorldInfo }

func (h *WorldInfoHandler) CanHandle(hdr frame.Header) bool {
	return hdr.Type == protocol.WorldInfoTypeGet
}

func (h *WorldInfoHandler) Handle(ctx context.Context, s *session.Session, hdr frame.Header, payload []byte) error {
	if s.AuthState() != session.AuthSuccessful {
		return errUnauthorized
	}

	req, err := protocol.DecodeWorldInfoGet(payload)
	if err != nil {
		return err
	}
	data, found, err := h.storage.GetWorldInfo(ctx, req.Key)
	if err != nil {
		return err
	}
	out := protocol.WorldInfoGetReply{Key: req.Key, Found: found, Data: data}
	return s.Send(protocol.EndpointWorldInfo, protocol.WorldInfoTypeGetReply, hdr.Tag, out.Encode())
}

func (h *WorldInfoHandler) Dirty() bool            { return false }
func (h *WorldInfoHandler) Save(context.Context) error { return nil }
