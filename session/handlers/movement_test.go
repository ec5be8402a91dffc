package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubeland/server/broadcast"
	"github.com/cubeland/server/frame"
	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/session"
	"github.com/cubeland/server/world/memstorage"
)

func newMovementTestSession(t *testing.T) *session.Session {
	t.Helper()
	return session.NewForTest()
}

func TestEpochGuardTable(t *testing.T) {
	cases := []struct {
		name       string
		lastEpoch  uint32
		haveEpoch  bool
		newEpoch   uint32
		wantAccept bool
	}{
		{"first update always accepted", 0, false, 5, true},
		{"strictly increasing accepted", 10, true, 11, true},
		{"equal epoch accepted (not less-than)", 10, true, 10, true},
		{"slightly behind within window discarded", 10, true, 5, false},
		{"far behind outside window accepted as reset", 10, true, 0, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := newMovementTestSession(t)
			bus := broadcast.New()
			h := NewMovementHandler(memstorage.New(), bus, s, time.Hour)

			h.mu.Lock()
			h.lastEpoch = c.lastEpoch
			h.haveEpoch = c.haveEpoch
			h.mu.Unlock()

			req := protocol.PlayerPositionChanged{Epoch: c.newEpoch}
			err := h.Handle(context.Background(), s, frame.Header{Type: protocol.MovementTypePositionChanged}, req.Encode())
			require.NoError(t, err)

			h.mu.Lock()
			accepted := h.lastEpoch == c.newEpoch
			h.mu.Unlock()
			assert.Equal(t, c.wantAccept, accepted)
		})
	}
}
