package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestSession() *Session {
	return &Session{
		outbound:     make(chan outboundFrame, 2),
		die:          make(chan struct{}),
		handlerState: make(map[uint8]interface{}),
	}
}

func TestSendDropsWhenQueueFull(t *testing.T) {
	s := newTestSession()
	assert.NoError(t, s.Send(1, 1, 1, nil))
	assert.NoError(t, s.Send(1, 1, 2, nil))
	err := s.Send(1, 1, 3, nil)
	assert.ErrorIs(t, err, ErrWriteBackpressure)
}

func TestSendAfterCloseReturnsErrSessionClosed(t *testing.T) {
	s := newTestSession()
	s.dieOnce.Do(func() { close(s.die) })
	err := s.Send(1, 1, 1, nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestAuthStateTransitions(t *testing.T) {
	s := newTestSession()
	assert.Equal(t, AuthIdle, s.AuthState())
	s.SetAuthState(AuthChallengeSent)
	assert.Equal(t, AuthChallengeSent, s.AuthState())
	s.SetAuthState(AuthSuccessful)
	assert.Equal(t, AuthSuccessful, s.AuthState())
}

func TestSetIdentityIsVisibleThroughAccessors(t *testing.T) {
	s := newTestSession()
	id := uuid.New()
	s.SetIdentity(id, "wanderer")
	assert.Equal(t, id, s.PlayerID())
	assert.Equal(t, "wanderer", s.DisplayName())
}

func TestPerEndpointHandlerState(t *testing.T) {
	s := newTestSession()
	assert.Nil(t, s.State(2))
	s.SetState(2, "pending-coords")
	assert.Equal(t, "pending-coords", s.State(2))
}
