// Listener accepts TLS connections and drives the server's background
// tasks: the periodic saver sweep, session reaping, and the shared world
// clock. It generalizes the original Listener's three pthreads (worker,
// murderer-reaper, saver) onto goroutines coordinated by an errgroup, and
// its libtls-based TLS setup onto crypto/tls.
package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/JekaMas/workerpool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"gopkg.in/op/go-logging.v1"

	"github.com/cubeland/server/broadcast"
	"github.com/cubeland/server/serverconfig"
)

const (
	saverInterval    = 2 * time.Second
	worldClockTick   = 100 * time.Millisecond
	epochDriftWindow = 10
)

// Listener owns the accept loop, the registered session set, and the
// background tasks shared by all sessions.
type Listener struct {
	cfg    *serverconfig.Config
	tlsCfg *tls.Config
	bus    *broadcast.Bus
	log    *logging.Logger

	chunkPool *workerpool.WorkerPool

	mu       sync.Mutex
	sessions map[*Session]struct{}

	// chunkObservers maps a chunk coordinate to the set of sessions
	// observing it, replacing the original's cyclic raw-pointer observer
	// graph with an indexed set pair owned by the Listener.
	chunkObserversMu sync.Mutex
	chunkObservers   map[interface{}]mapset.Set[*Session]

	authenticatedCount int32
	worldTime          float64
	tickFactor         float64

	newHandlers func(*Session) []Handler
}

// NewListener builds a Listener from validated configuration. newHandlers
// constructs the per-session handler set (one call per accepted
// connection), since each handler instance holds session-scoped state.
func NewListener(cfg *serverconfig.Config, tlsCfg *tls.Config, bus *broadcast.Bus, log *logging.Logger, newHandlers func(*Session) []Handler) *Listener {
	return &Listener{
		cfg:            cfg,
		tlsCfg:         tlsCfg,
		bus:            bus,
		log:            log,
		chunkPool:      workerpool.New(cfg.World.ChunkSerializerThreads),
		sessions:       make(map[*Session]struct{}),
		chunkObservers: make(map[interface{}]mapset.Set[*Session]),
		tickFactor:     24 * time.Hour.Seconds() / cfg.Proto.SecsPerDay,
		newHandlers:    newHandlers,
	}
}

// ChunkPool returns the chunk-serialization worker pool, used by the chunk
// handler to offload slice encoding off the session's reader goroutine.
func (l *Listener) ChunkPool() *workerpool.WorkerPool { return l.chunkPool }

// Bus returns the shared broadcast bus.
func (l *Listener) Bus() *broadcast.Bus { return l.bus }

// ObserveChunk registers s as an observer of coord.
func (l *Listener) ObserveChunk(coord interface{}, s *Session) {
	l.chunkObserversMu.Lock()
	defer l.chunkObserversMu.Unlock()
	set, ok := l.chunkObservers[coord]
	if !ok {
		set = mapset.NewSet[*Session]()
		l.chunkObservers[coord] = set
	}
	set.Add(s)
}

// UnobserveChunk removes s as an observer of coord.
func (l *Listener) UnobserveChunk(coord interface{}, s *Session) {
	l.chunkObserversMu.Lock()
	defer l.chunkObserversMu.Unlock()
	if set, ok := l.chunkObservers[coord]; ok {
		set.Remove(s)
		if set.Cardinality() == 0 {
			delete(l.chunkObservers, coord)
		}
	}
}

// ChunkObservers returns a snapshot of the sessions observing coord.
func (l *Listener) ChunkObservers(coord interface{}) []*Session {
	l.chunkObserversMu.Lock()
	defer l.chunkObserversMu.Unlock()
	set, ok := l.chunkObservers[coord]
	if !ok {
		return nil
	}
	return set.ToSlice()
}

// UnobserveAll removes s from every chunk's observer set, called when a
// session disconnects.
func (l *Listener) UnobserveAll(s *Session) {
	l.chunkObserversMu.Lock()
	defer l.chunkObserversMu.Unlock()
	for coord, set := range l.chunkObservers {
		set.Remove(s)
		if set.Cardinality() == 0 {
			delete(l.chunkObservers, coord)
		}
	}
}

// addSession registers a new connection in the session set.
func (l *Listener) addSession(s *Session) {
	l.mu.Lock()
	l.sessions[s] = struct{}{}
	l.mu.Unlock()
}

// removeSession unregisters a session; serve defers it, so it runs whenever
// a session's Run returns. Safe to call more than once.
func (l *Listener) removeSession(s *Session) {
	l.mu.Lock()
	_, existed := l.sessions[s]
	delete(l.sessions, s)
	l.mu.Unlock()

	if existed {
		l.UnobserveAll(s)
		if s.AuthState() == AuthSuccessful {
			l.MarkUnauthenticated()
		}
	}
}

// forEachSession invokes fn for a snapshot of currently registered
// sessions, copied out from under the lock before iterating so fn may
// itself call back into the Listener (e.g. to Send on another session)
// without deadlocking.
func (l *Listener) forEachSession(fn func(*Session)) {
	l.mu.Lock()
	snapshot := make([]*Session, 0, len(l.sessions))
	for s := range l.sessions {
		snapshot = append(snapshot, s)
	}
	l.mu.Unlock()

	for _, s := range snapshot {
		fn(s)
	}
}

// SessionCount returns the number of currently registered sessions.
func (l *Listener) SessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// MarkAuthenticated increments the authenticated-session count, called by
// the authentication handler once a session's signature verifies.
func (l *Listener) MarkAuthenticated() { atomic.AddInt32(&l.authenticatedCount, 1) }

// MarkUnauthenticated decrements the authenticated-session count, called
// when an authenticated session disconnects.
func (l *Listener) MarkUnauthenticated() { atomic.AddInt32(&l.authenticatedCount, -1) }

// AuthenticatedCount returns how many sessions are currently authenticated;
// the world clock only advances while this is nonzero.
func (l *Listener) AuthenticatedCount() int32 { return atomic.LoadInt32(&l.authenticatedCount) }

// listenConfig applies SO_REUSEADDR to the accept socket before bind,
// matching the original's explicit setsockopt call.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
		},
	}
}

// ListenAndServe binds the configured address, accepts TLS connections
// until ctx is cancelled, and runs the listener's background tasks. It
// blocks until shutdown completes.
func (l *Listener) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", l.cfg.Listen.Address, l.cfg.Listen.Port)

	lc := listenConfig()
	rawLn, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("session: listen %s: %w", addr, err)
	}
	ln := tls.NewListener(rawLn, l.tlsCfg)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	g.Go(func() error { return l.acceptLoop(ctx, ln) })
	g.Go(func() error { l.saverLoop(ctx); return nil })
	g.Go(func() error { l.worldClockLoop(ctx); return nil })

	return g.Wait()
}

func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			l.log.Warningf("accept: %v", err)
			continue
		}

		tlsConn, ok := conn.(*tls.Conn)
		if !ok {
			conn.Close()
			continue
		}

		go l.serve(ctx, tlsConn)
	}
}

func (l *Listener) serve(ctx context.Context, conn *tls.Conn) {
	reg := NewRegistry()
	s := New(conn, reg, l.log)
	for _, h := range l.newHandlers(s) {
		reg.Register(h)
	}

	l.addSession(s)
	defer l.removeSession(s)

	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("session %s: panic recovered: %v", s.RemoteAddr(), r)
			s.Close()
		}
	}()

	s.Run(ctx)
}

// saverLoop periodically sweeps every handler's dirty state, generalizing
// the original saverMain's "sleep 2s, invoke every client's save()" loop
// into per-handler Dirty/Save calls across every live session.
func (l *Listener) saverLoop(ctx context.Context) {
	ticker := time.NewTicker(saverInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.forEachSession(func(s *Session) {
				for _, h := range s.registry.Handlers() {
					if !h.Dirty() {
						continue
					}
					if err := h.Save(ctx); err != nil {
						l.log.Errorf("session %s: save endpoint=%d: %v", s.RemoteAddr(), h.Endpoint(), err)
					}
				}
			})
		}
	}
}

// worldClockLoop advances the shared world clock while at least one
// session is authenticated, gated and paced per the spec's world-clock
// contract, and publishes a periodic TimeTick.
func (l *Listener) worldClockLoop(ctx context.Context) {
	ticker := time.NewTicker(worldClockTick)
	defer ticker.Stop()

	lastPublish := time.Now()
	lastTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(lastTick).Seconds()
			lastTick = now

			if l.AuthenticatedCount() == 0 {
				continue
			}

			l.mu.Lock()
			l.worldTime += l.tickFactor * elapsed
			current := l.worldTime
			l.mu.Unlock()

			if now.Sub(lastPublish) >= l.cfg.Proto.TimeUpdateInterval {
				lastPublish = now
				l.bus.Publish(broadcast.Event{Kind: broadcast.TimeTick, WorldTime: current})
			}
		}
	}
}

// CurrentWorldTime returns the world clock's current value.
func (l *Listener) CurrentWorldTime() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.worldTime
}

// SeedWorldTime initializes the world clock, e.g. from persisted state at
// startup.
func (l *Listener) SeedWorldTime(t float64) {
	l.mu.Lock()
	l.worldTime = t
	l.mu.Unlock()
}

// TickFactor returns the configured ratio of world-seconds to real-seconds.
func (l *Listener) TickFactor() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tickFactor
}

// EpochDriftWindow is the movement epoch-guard tolerance: an update is
// discarded if epoch < lastEpoch and lastEpoch-epoch < EpochDriftWindow.
const EpochDriftWindow = epochDriftWindow

// Shutdown flushes every handler's dirty state once and stops the chunk
// pool, for use after ListenAndServe's context is cancelled and it returns.
func (l *Listener) Shutdown(ctx context.Context) {
	l.forEachSession(func(s *Session) {
		for _, h := range s.registry.Handlers() {
			if h.Dirty() {
				_ = h.Save(ctx)
			}
		}
	})
	l.chunkPool.StopWait()
}
