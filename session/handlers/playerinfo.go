package handlers

import (
	"context"

	"github.com/cubeland/server/frame"
	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/session"
	"github.com/cubeland/server/world"
)

// PlayerInfoHandler implements the PlayerInfo endpoint (§4.4.5): clients
// read and write opaque key/value data scoped to their own player id.
type PlayerInfoHandler struct {
	storage world.Storage
}

// NewPlayerInfoHandler constructs the handler; it is stateless across
// sessions, so one instance may be shared, but is constructed per-session
// to match the registration convention of the other handlers.
func NewPlayerInfoHandler(storage world.Storage) *PlayerInfoHandler {
	return &PlayerInfoHandler{storage: storage}
}

func (h *PlayerInfoHandler) Endpoint() uint8 { return protocol.EndpointPlayerInfo }

func (h *PlayerInfoHandler) CanHandle(hdr frame.Header) bool {
	return hdr.Type == protocol.PlayerInfoTypeGet || hdr.Type == protocol.PlayerInfoTypeSet
}

func (h *PlayerInfoHandler) Handle(ctx context.Context, s *session.Session, hdr frame.Header, payload []byte) error {
	if s.AuthState() != session.AuthSuccessful {
		return errUnauthorized
	}

	switch hdr.Type {
	case protocol.PlayerInfoTypeGet:
		req, err := protocol.DecodePlayerInfoGet(payload)
		if err != nil {
			return err
		}
		data, found, err := h.storage.GetPlayerInfo(ctx, s.PlayerID(), req.Key)
		if err != nil {
			return err
		}
		out := protocol.PlayerInfoGetReply{Key: req.Key, Found: found, Data: data}
		return s.Send(protocol.EndpointPlayerInfo, protocol.PlayerInfoTypeGetReply, hdr.Tag, out.Encode())

	case protocol.PlayerInfoTypeSet:
		req, err := protocol.DecodePlayerInfoSet(payload)
		if err != nil {
			return err
		}
		return h.storage.SetPlayerInfo(ctx, s.PlayerID(), req.Key, req.Data)

	default:
		return session.ErrNoHandler
	}
}

func (h *PlayerInfoHandler) Dirty() bool            { return false }
func (h *PlayerInfoHandler) Save(context.Context) error { return nil }
