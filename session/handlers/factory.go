package handlers

import (
	"context"
	"time"

	"github.com/cubeland/server/broadcast"
	"github.com/cubeland/server/keycache"
	"github.com/cubeland/server/session"
	"github.com/cubeland/server/world"
)

// Deps bundles the shared dependencies every session's handler set is
// built from.
type Deps struct {
	Storage                   world.Storage
	Keys                      *keycache.Cache
	Listener                  *session.Listener
	Bus                       *broadcast.Bus
	Veto                      BlockChangeVeto
	PositionBroadcastInterval time.Duration
}

// NewHandlerSet constructs one session's full ordered handler list and
// wires the authentication handler's join/leave hooks to the other
// handlers' replay and presence-broadcast behavior, so the pieces built
// and tested independently above compose into the session lifecycle the
// spec describes: authenticate, replay persisted state, announce
// presence, then serve every other endpoint.
func NewHandlerSet(bgCtx context.Context, d Deps, s *session.Session) []session.Handler {
	movement := NewMovementHandler(d.Storage, d.Bus, s, d.PositionBroadcastInterval)
	timeHandler := NewTimeHandler(d.Storage, d.Listener, d.Bus, s)
	chat := NewChatHandler(d.Bus, s)
	blockChange := NewBlockChangeHandler(d.Storage, d.Listener, d.Bus, d.Veto, s)
	chunk := NewChunkHandler(bgCtx, d.Storage, d.Listener)
	playerInfo := NewPlayerInfoHandler(d.Storage)
	worldInfo := NewWorldInfoHandler(d.Storage)

	onJoin := func(ctx context.Context, s *session.Session) error {
		if err := movement.ReplayInitial(ctx, s.PlayerID()); err != nil {
			return err
		}
		if err := timeHandler.SendInitialState(ctx); err != nil {
			return err
		}
		d.Bus.Publish(broadcast.Event{
			Kind:        broadcast.PlayerJoined,
			OriginatorID: s.PlayerID(),
			PlayerID:    s.PlayerID(),
			DisplayName: s.DisplayName(),
		})
		return nil
	}

	onLeave := func(ctx context.Context, s *session.Session) {
		d.Bus.Publish(broadcast.Event{
			Kind:        broadcast.PlayerLeft,
			OriginatorID: s.PlayerID(),
			PlayerID:    s.PlayerID(),
		})
	}

	auth := NewAuthHandler(d.Keys, d.Listener, onJoin, onLeave)

	go func() {
		<-s.Done()
		if s.AuthState() == session.AuthSuccessful {
			onLeave(context.Background(), s)
		}
	}()

	return []session.Handler{
		auth,
		chunk,
		blockChange,
		chat,
		playerInfo,
		worldInfo,
		movement,
		timeHandler,
	}
}
