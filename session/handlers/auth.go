// Package handlers implements one session.Handler per endpoint.
package handlers

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec"

	"github.com/cubeland/server/frame"
	"github.com/cubeland/server/keycache"
	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/session"
)

// Curve is the elliptic curve player keys and challenge signatures use.
// btcec.S256() is reused from the teacher's own dependency on
// github.com/btcsuite/btcd rather than pulling in a second curve
// implementation.
var Curve = btcec.S256()

// AuthHandler implements the Authentication endpoint (§4.4.1): challenge-
// response verification of a player's ECDSA key, fetched through the
// three-tier keycache.Cache.
type AuthHandler struct {
	keys     *keycache.Cache
	listener *session.Listener
	onJoin   func(ctx context.Context, s *session.Session) error
	onLeave  func(ctx context.Context, s *session.Session)
}

// NewAuthHandler constructs the handler for one session. onJoin is invoked
// once authentication succeeds (e.g. to publish PlayerJoined and replay
// persisted state). onLeave is stored but not called by AuthHandler;
// NewHandlerSet calls the same hook itself when an authenticated session
// closes.
func NewAuthHandler(keys *keycache.Cache, listener *session.Listener, onJoin func(context.Context, *session.Session) error, onLeave func(context.Context, *session.Session)) *AuthHandler {
	return &AuthHandler{keys: keys, listener: listener, onJoin: onJoin, onLeave: onLeave}
}

func (h *AuthHandler) Endpoint() uint8 { return protocol.EndpointAuthentication }

func (h *AuthHandler) CanHandle(hdr frame.Header) bool {
	return hdr.Type > 0 && hdr.Type < protocol.AuthTypeMax
}

func (h *AuthHandler) Handle(ctx context.Context, s *session.Session, hdr frame.Header, payload []byte) error {
	switch s.AuthState() {
	case session.AuthIdle:
		if hdr.Type != protocol.AuthTypeRequest {
			return session.ErrNoHandler
		}
		return h.handleRequest(s, hdr, payload)

	case session.AuthChallengeSent:
		if hdr.Type == protocol.AuthTypeRequest {
			// A second AuthRequest arriving while we're mid-handshake loses
			// the tie-break: the spec requires closing this session rather
			// than restarting the handshake.
			s.SetAuthState(session.AuthFailed)
			return errAuthRetryDuringChallenge
		}
		if hdr.Type != protocol.AuthTypeChallengeReply {
			return session.ErrNoHandler
		}
		return h.handleChallengeReply(ctx, s, hdr, payload)

	default:
		return errAuthUnexpectedState
	}
}

func (h *AuthHandler) handleRequest(s *session.Session, hdr frame.Header, payload []byte) error {
	req, err := protocol.DecodeAuthRequest(payload)
	if err != nil {
		return err
	}

	var challenge [protocol.ChallengeLength]byte
	if _, err := rand.Read(challenge[:]); err != nil {
		return err
	}

	s.SetState(h.Endpoint(), &pendingAuth{clientID: req.ClientID, displayName: req.DisplayName})
	s.SetChallenge(challenge)
	s.SetAuthState(session.AuthChallengeSent)

	out := protocol.AuthChallenge{Random: challenge}.Encode()
	return s.Send(protocol.EndpointAuthentication, protocol.AuthTypeChallenge, hdr.Tag, out)
}

type pendingAuth struct {
	clientID    [16]byte
	displayName string
}

func (h *AuthHandler) handleChallengeReply(ctx context.Context, s *session.Session, hdr frame.Header, payload []byte) error {
	reply, err := protocol.DecodeAuthChallengeReply(payload)
	if err != nil {
		return err
	}

	pendingAny := s.State(h.Endpoint())
	pending, _ := pendingAny.(*pendingAuth)
	if pending == nil {
		return errAuthUnexpectedState
	}

	id := pending.clientID
	challenge := s.Challenge()

	status := protocol.AuthStatusSuccess
	pubKey, err := h.keys.Get(id)
	if err != nil {
		status = protocol.AuthStatusUnknownID
	} else if !verifyChallenge(pubKey, challenge[:], reply.Signature) {
		status = protocol.AuthStatusInvalidSignature
	}

	if status == protocol.AuthStatusSuccess {
		s.SetIdentity(id, pending.displayName)
		s.SetAuthState(session.AuthSuccessful)
		h.listener.MarkAuthenticated()
	} else {
		s.SetAuthState(session.AuthFailed)
	}

	out := protocol.AuthStatusMsg{State: status}.Encode()
	if err := s.Send(protocol.EndpointAuthentication, protocol.AuthTypeStatus, hdr.Tag, out); err != nil {
		return err
	}

	if status == protocol.AuthStatusSuccess && h.onJoin != nil {
		return h.onJoin(ctx, s)
	}
	return nil
}

// verifyChallenge checks an ECDSA signature (ASN.1 DER, as produced by
// ecdsa.Sign/btcec's signature encoding) over SHA-256(challenge).
func verifyChallenge(pub *ecdsa.PublicKey, challenge, sig []byte) bool {
	digest := sha256.Sum256(challenge)
	parsed, err := btcec.ParseDERSignature(sig, Curve)
	if err != nil {
		return false
	}
	return parsed.Verify(digest[:], (*btcec.PublicKey)(pub))
}

func (h *AuthHandler) Dirty() bool            { return false }
func (h *AuthHandler) Save(context.Context) error { return nil }
