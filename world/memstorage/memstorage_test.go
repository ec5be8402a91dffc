package memstorage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/cubeland/server/protocol"
	"github.com/cubeland/server/world"
)

func TestChunkNotFoundWithoutGenerator(t *testing.T) {
	s := New()
	_, err := s.GetChunk(context.Background(), protocol.ChunkCoord{CX: 1, CZ: 1})
	assert.ErrorIs(t, err, world.ErrNotFound)
}

func TestChunkGeneratesOnDemand(t *testing.T) {
	s := New()
	s.Generate = func(c protocol.ChunkCoord) *world.Chunk {
		return &world.Chunk{Coord: c, Slices: map[int32][]byte{0: {1, 2, 3}}}
	}
	c, err := s.GetChunk(context.Background(), protocol.ChunkCoord{CX: 2, CZ: 3})
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, c.Slices[0])
}

func TestWorldInfoRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, ok, err := s.GetWorldInfo(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.SetWorldInfo(ctx, "server.world.time", []byte{1, 2}))
	v, ok, err := s.GetWorldInfo(ctx, "server.world.time")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, v)
}

func TestPlayerInfoIsolatedByID(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	assert.NoError(t, s.SetPlayerInfo(ctx, a, "k", []byte("a")))
	_, ok, err := s.GetPlayerInfo(ctx, b, "k")
	assert.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.GetPlayerInfo(ctx, a, "k")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), v)
}

func TestDirtyChunksClearedOnFlush(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Generate = func(c protocol.ChunkCoord) *world.Chunk { return &world.Chunk{Coord: c} }
	coord := protocol.ChunkCoord{CX: 0, CZ: 0}
	assert.NoError(t, s.ApplyBlockChanges(ctx, coord, nil))
	assert.True(t, s.dirty[coord])
	assert.NoError(t, s.FlushDirty(ctx))
	assert.False(t, s.dirty[coord])
}
