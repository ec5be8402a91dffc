package handlers

import (
	"context"

	"github.com/cubeland/server/broadcast"
	"github.com/cubeland/server/frame"
	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/session"
)

// ChatHandler implements the Chat endpoint (§4.4.4): inbound chat messages
// are published to the bus and fanned out to every other session; presence
// (join/leave) events likewise arrive here from the auth handler via the
// bus rather than a direct call, keeping presence notification decoupled
// from authentication.
type ChatHandler struct {
	bus *broadcast.Bus
	s   *session.Session
}

// NewChatHandler constructs the handler for one session and starts its
// bus-consumer goroutine, stopped automatically when s closes.
func NewChatHandler(bus *broadcast.Bus, s *session.Session) *ChatHandler {
	h := &ChatHandler{bus: bus, s: s}
	go h.consumeBroadcasts()
	return h
}

func (h *ChatHandler) Endpoint() uint8 { return protocol.EndpointChat }

func (h *ChatHandler) CanHandle(hdr frame.Header) bool {
	return hdr.Type == protocol.ChatTypeMessage
}

func (h *ChatHandler) Handle(ctx context.Context, s *session.Session, hdr frame.Header, payload []byte) error {
	if s.AuthState() != session.AuthSuccessful {
		return errUnauthorized
	}

	msg, err := protocol.DecodeChatMessageIn(payload)
	if err != nil {
		return err
	}

	h.bus.Publish(broadcast.Event{
		Kind:       broadcast.Chat,
		OriginatorID: s.PlayerID(),
		ChatSender: s.PlayerID(),
		ChatText:   msg.Text,
	})
	return nil
}

func (h *ChatHandler) consumeBroadcasts() {
	chat := h.bus.Subscribe(broadcast.Chat)
	joined := h.bus.Subscribe(broadcast.PlayerJoined)
	left := h.bus.Subscribe(broadcast.PlayerLeft)
	defer chat.Close()
	defer joined.Close()
	defer left.Close()

	for {
		select {
		case <-h.s.Done():
			return

		case ev := <-chat.C():
			if ev.OriginatorID == h.s.PlayerID() {
				continue
			}
			out := protocol.ChatMessageOut{Sender: ev.ChatSender, Text: ev.ChatText}
			_ = h.s.Send(protocol.EndpointChat, protocol.ChatTypeMessage, 0, out.Encode())

		case ev := <-joined.C():
			if ev.PlayerID == h.s.PlayerID() {
				continue
			}
			out := protocol.ChatPlayerJoined{ID: ev.PlayerID, DisplayName: ev.DisplayName}
			_ = h.s.Send(protocol.EndpointChat, protocol.ChatTypePlayerJoined, 0, out.Encode())

		case ev := <-left.C():
			if ev.PlayerID == h.s.PlayerID() {
				continue
			}
			out := protocol.ChatPlayerLeft{ID: ev.PlayerID}
			_ = h.s.Send(protocol.EndpointChat, protocol.ChatTypePlayerLeft, 0, out.Encode())
		}
	}
}

func (h *ChatHandler) Dirty() bool            { return false }
func (h *ChatHandler) Save(context.Context) error { return nil }
