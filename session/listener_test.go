package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/serverconfig"
)

func newTestListener() *Listener {
	cfg := serverconfig.Default()
	cfg.Proto.SecsPerDay = 1440
	return NewListener(cfg, nil, nil, nil, func(s *Session) []Handler { return nil })
}

func TestChunkObserverRegistrationAndRemoval(t *testing.T) {
	l := newTestListener()
	coord := protocol.ChunkCoord{CX: 1, CZ: 2}
	a := newTestSession()
	b := newTestSession()

	l.ObserveChunk(coord, a)
	l.ObserveChunk(coord, b)
	assert.Len(t, l.ChunkObservers(coord), 2)

	l.UnobserveChunk(coord, a)
	assert.Len(t, l.ChunkObservers(coord), 1)

	l.UnobserveChunk(coord, b)
	assert.Empty(t, l.ChunkObservers(coord))
}

func TestUnobserveAllClearsEverySubscribedChunk(t *testing.T) {
	l := newTestListener()
	s := newTestSession()
	c1 := protocol.ChunkCoord{CX: 0, CZ: 0}
	c2 := protocol.ChunkCoord{CX: 1, CZ: 1}

	l.ObserveChunk(c1, s)
	l.ObserveChunk(c2, s)
	l.UnobserveAll(s)

	assert.Empty(t, l.ChunkObservers(c1))
	assert.Empty(t, l.ChunkObservers(c2))
}

func TestAuthenticatedCountTracksMarkCalls(t *testing.T) {
	l := newTestListener()
	assert.EqualValues(t, 0, l.AuthenticatedCount())
	l.MarkAuthenticated()
	l.MarkAuthenticated()
	assert.EqualValues(t, 2, l.AuthenticatedCount())
	l.MarkUnauthenticated()
	assert.EqualValues(t, 1, l.AuthenticatedCount())
}

func TestForEachSessionVisitsRegisteredSessions(t *testing.T) {
	l := newTestListener()
	a := newTestSession()
	b := newTestSession()
	l.addSession(a)
	l.addSession(b)

	seen := map[*Session]bool{}
	l.forEachSession(func(s *Session) { seen[s] = true })
	assert.True(t, seen[a])
	assert.True(t, seen[b])

	l.removeSession(a)
	assert.Equal(t, 1, l.SessionCount())
}
