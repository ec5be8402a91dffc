// Package session implements one connected client's lifetime: the paired
// reader/writer goroutines driving a *tls.Conn, the framed-protocol
// dispatch loop, and the per-session authentication and player state. This
// generalizes the teacher's TCPPeer (readLoop/sendLoop over a raw net.Conn
// with two queued-message channels) onto a single tls.Conn with one
// outbound queue, since there is no consensus/internal traffic-class split
// in this protocol.
package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/op/go-logging.v1"

	"github.com/cubeland/server/frame"
)

// AuthState is a session's authentication progress, generalizing the
// teacher's peer-initiated authenticationState enum to this protocol's
// four-state challenge-response handshake.
type AuthState uint8

const (
	// AuthIdle: the connection has just been accepted; no AuthRequest yet.
	AuthIdle AuthState = iota
	// AuthChallengeSent: an AuthChallenge has been sent, awaiting the reply.
	AuthChallengeSent
	// AuthSuccessful: the signature verified; the session is authenticated.
	AuthSuccessful
	// AuthFailed: the key lookup or signature check failed (the connection
	// stays open), or the session lost the tie-break on a second
	// AuthRequest (the handler returns an error and the session closes).
	AuthFailed
)

const outboundQueueDepth = 256

type outboundFrame struct {
	endpoint uint8
	typ      uint8
	tag      uint16
	payload  []byte
}

// Session owns one client connection: its TLS transport, auth/player
// state, and the single writer goroutine that serializes outbound frames.
type Session struct {
	conn       *tls.Conn
	remoteAddr string
	registry   *Registry
	log        *logging.Logger

	mu          sync.Mutex
	authState   AuthState
	playerID    uuid.UUID
	displayName string
	challenge   [32]byte

	tags frame.TagAllocator

	outbound chan outboundFrame
	die      chan struct{}
	dieOnce  sync.Once

	// handlerState holds arbitrary per-handler, per-session state (e.g. the
	// auth handler's pending AuthRequest), keyed by endpoint.
	handlerStateMu sync.Mutex
	handlerState   map[uint8]interface{}
}

// New wraps an accepted, not-yet-handshaken TLS connection in a Session.
func New(conn *tls.Conn, registry *Registry, log *logging.Logger) *Session {
	return &Session{
		conn:         conn,
		remoteAddr:   conn.RemoteAddr().String(),
		registry:     registry,
		log:          log,
		outbound:     make(chan outboundFrame, outboundQueueDepth),
		die:          make(chan struct{}),
		handlerState: make(map[uint8]interface{}),
	}
}

// RemoteAddr returns the peer's network address, fixed at accept time.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// Log returns the session's logger, for handlers that need to report
// conditions that aren't themselves dispatch errors.
func (s *Session) Log() *logging.Logger { return s.log }

// AuthState returns the session's current authentication state.
func (s *Session) AuthState() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authState
}

// SetAuthState transitions the session's authentication state.
func (s *Session) SetAuthState(st AuthState) {
	s.mu.Lock()
	s.authState = st
	s.mu.Unlock()
}

// PlayerID returns the authenticated player's id, valid once AuthState is
// AuthSuccessful.
func (s *Session) PlayerID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

// DisplayName returns the display name supplied in the session's
// AuthRequest.
func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

// SetIdentity records the player id and display name once authenticated.
func (s *Session) SetIdentity(id uuid.UUID, displayName string) {
	s.mu.Lock()
	s.playerID = id
	s.displayName = displayName
	s.mu.Unlock()
}

// Challenge returns the random challenge issued during the handshake.
func (s *Session) Challenge() [32]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challenge
}

// SetChallenge stores the random challenge issued to the client.
func (s *Session) SetChallenge(c [32]byte) {
	s.mu.Lock()
	s.challenge = c
	s.mu.Unlock()
}

// State returns handler-owned per-session state for endpoint, or nil if
// none has been set.
func (s *Session) State(endpoint uint8) interface{} {
	s.handlerStateMu.Lock()
	defer s.handlerStateMu.Unlock()
	return s.handlerState[endpoint]
}

// SetState stores handler-owned per-session state for endpoint.
func (s *Session) SetState(endpoint uint8, v interface{}) {
	s.handlerStateMu.Lock()
	s.handlerState[endpoint] = v
	s.handlerStateMu.Unlock()
}

// NextTag allocates the next request tag for an outbound request this
// session originates. Only the writer goroutine calls this.
func (s *Session) NextTag() uint16 { return s.tags.Next() }

// Send enqueues a frame for delivery by the writer goroutine. It never
// blocks: if the outbound queue is full the frame is dropped and
// ErrWriteBackpressure is returned, so a slow client can never stall a
// handler or the broadcast bus.
func (s *Session) Send(endpoint, typ uint8, tag uint16, payload []byte) error {
	select {
	case <-s.die:
		return ErrSessionClosed
	default:
	}

	select {
	case s.outbound <- outboundFrame{endpoint: endpoint, typ: typ, tag: tag, payload: payload}:
		return nil
	default:
		return ErrWriteBackpressure
	}
}

// Close tears down the connection and signals both goroutines to exit.
// Safe to call more than once and from any goroutine.
func (s *Session) Close() error {
	s.dieOnce.Do(func() { close(s.die) })
	return s.conn.Close()
}

// Done reports whether the session has started closing.
func (s *Session) Done() <-chan struct{} { return s.die }

// Run drives the session to completion: it blocks until the reader loop
// exits (peer disconnect, protocol error, or Close), running the writer
// loop concurrently. Run always returns after cleaning up; the caller
// should discard the Session afterward.
func (s *Session) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop()
	}()

	s.readLoop(ctx)
	s.Close()
	<-done
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		select {
		case <-s.die:
			return
		case <-ctx.Done():
			return
		default:
		}

		hdr, payload, err := frame.ReadFrame(s.conn, true)
		if err != nil {
			s.log.Debugf("session %s: read error: %v", s.remoteAddr, err)
			return
		}

		if err := s.registry.Dispatch(ctx, s, hdr, payload); err != nil {
			if err == ErrNoHandler {
				s.log.Warningf("session %s: dropped unmatched frame endpoint=%d type=%d", s.remoteAddr, hdr.Endpoint, hdr.Type)
				continue
			}
			s.log.Warningf("session %s: dispatch endpoint=%d type=%d: %v", s.remoteAddr, hdr.Endpoint, hdr.Type, err)
			return
		}
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case out := <-s.outbound:
			if err := frame.WriteFrame(s.conn, out.endpoint, out.typ, out.tag, out.payload); err != nil {
				s.log.Debugf("session %s: write error: %v", s.remoteAddr, err)
				return
			}
		case <-s.die:
			// Drain nothing further; the connection is going away.
			return
		}
	}
}

// NewForTest builds a Session with no live connection, authenticated and
// ready to exercise a Handler's Handle method directly. Intended for use by
// this module's own handler tests, not by production code.
func NewForTest() *Session {
	s := &Session{
		log:          logging.MustGetLogger("session_test"),
		outbound:     make(chan outboundFrame, outboundQueueDepth),
		die:          make(chan struct{}),
		handlerState: make(map[uint8]interface{}),
		authState:    AuthSuccessful,
		playerID:     uuid.New(),
	}
	go func() {
		for range s.outbound {
		}
	}()
	return s
}

func (s *Session) String() string {
	return fmt.Sprintf("session{%s player=%s}", s.remoteAddr, s.PlayerID())
}
