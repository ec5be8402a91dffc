// Package memstorage is an in-memory world.Storage used by tests and by
// the cubeland-server run command; it never touches disk.
package memstorage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/world"
)

type playerKey struct {
	id  uuid.UUID
	key string
}

// Storage is a goroutine-safe, in-memory world.Storage.
type Storage struct {
	mu sync.Mutex

	chunks     map[protocol.ChunkCoord]*world.Chunk
	dirty      map[protocol.ChunkCoord]bool
	worldInfo  map[string][]byte
	playerInfo map[playerKey][]byte

	// Generate, if set, produces a chunk on demand for a coordinate with
	// no stored data, instead of returning world.ErrNotFound.
	Generate func(protocol.ChunkCoord) *world.Chunk
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		chunks:     make(map[protocol.ChunkCoord]*world.Chunk),
		dirty:      make(map[protocol.ChunkCoord]bool),
		worldInfo:  make(map[string][]byte),
		playerInfo: make(map[playerKey][]byte),
	}
}

func (s *Storage) GetChunk(ctx context.Context, coord protocol.ChunkCoord) (*world.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.chunks[coord]; ok {
		return c, nil
	}
	if s.Generate != nil {
		c := s.Generate(coord)
		s.chunks[coord] = c
		return c, nil
	}
	return nil, world.ErrNotFound
}

func (s *Storage) MarkChunkDirty(coord protocol.ChunkCoord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[coord] = true
}

func (s *Storage) ApplyBlockChanges(ctx context.Context, coord protocol.ChunkCoord, changes []protocol.BlockChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[coord]
	if !ok {
		if s.Generate != nil {
			c = s.Generate(coord)
			s.chunks[coord] = c
		} else {
			return world.ErrNotFound
		}
	}
	// The in-memory chunk representation doesn't model per-voxel storage;
	// the changes are not recorded anywhere and Slices and ChunkMeta are left
	// unchanged; only the chunk's dirty bit is set.
	_ = changes
	s.dirty[coord] = true
	return nil
}

func (s *Storage) FlushDirty(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for coord := range s.dirty {
		delete(s.dirty, coord)
	}
	return nil
}

func (s *Storage) GetWorldInfo(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.worldInfo[key]
	return v, ok, nil
}

func (s *Storage) SetWorldInfo(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.worldInfo[key] = cp
	return nil
}

func (s *Storage) GetPlayerInfo(ctx context.Context, id uuid.UUID, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.playerInfo[playerKey{id, key}]
	return v, ok, nil
}

func (s *Storage) SetPlayerInfo(ctx context.Context, id uuid.UUID, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.playerInfo[playerKey{id, key}] = cp
	return nil
}

func (s *Storage) Close() error { return nil }

var _ world.Storage = (*Storage)(nil)
