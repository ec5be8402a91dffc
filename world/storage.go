// Package world defines the storage contract the session handlers use to
// read and persist world state: chunks, world-scoped key/value info, and
// per-player key/value info. The concrete implementation (disk, database,
// whatever backs the actual voxel world) lives outside this module; the
// session layer only depends on the Storage interface, the same way the
// original server's handlers only ever touched its World abstraction and
// never the on-disk chunk format directly.
package world

import (
	"context"

	"github.com/google/uuid"

	"github.com/cubeland/server/protocol"
)

// Chunk is one loaded chunk's slice data, keyed by Y-slice index. The slice
// encoding is opaque to this package; it is produced and consumed entirely
// by the concrete Storage implementation and the chunk handler.
type Chunk struct {
	Coord     protocol.ChunkCoord
	Slices    map[int32][]byte
	ChunkMeta []byte
}

// Storage is the contract handlers use to read and persist world state.
// Every method except MarkChunkDirty and Close takes a context so a slow
// disk/network-backed implementation can be cancelled along with the
// session or listener shutdown.
type Storage interface {
	// GetChunk loads a chunk, generating it on demand if the implementation
	// supports world generation. Returns world.ErrNotFound if the chunk
	// coordinate is out of range for implementations that don't generate.
	GetChunk(ctx context.Context, coord protocol.ChunkCoord) (*Chunk, error)

	// MarkChunkDirty records that coord has pending unsaved block changes.
	// It must not block on I/O; dirty chunks are persisted by FlushDirty.
	MarkChunkDirty(coord protocol.ChunkCoord)

	// ApplyBlockChanges mutates the in-memory chunk state for coord and
	// marks it dirty. It does not itself perform persistence I/O.
	ApplyBlockChanges(ctx context.Context, coord protocol.ChunkCoord, changes []protocol.BlockChange) error

	// FlushDirty persists every chunk marked dirty since the last flush and
	// clears their dirty bit. Called once during process shutdown; the
	// listener's periodic saver does not call it.
	FlushDirty(ctx context.Context) error

	// GetWorldInfo returns the raw bytes stored under key, or ok=false if
	// absent.
	GetWorldInfo(ctx context.Context, key string) (data []byte, ok bool, err error)

	// SetWorldInfo stores raw bytes under key, replacing any prior value.
	SetWorldInfo(ctx context.Context, key string, data []byte) error

	// GetPlayerInfo returns the raw bytes stored under key for player id,
	// or ok=false if absent.
	GetPlayerInfo(ctx context.Context, id uuid.UUID, key string) (data []byte, ok bool, err error)

	// SetPlayerInfo stores raw bytes under key for player id.
	SetPlayerInfo(ctx context.Context, id uuid.UUID, key string, data []byte) error

	// Close releases any resources (file handles, connections) held by the
	// implementation.
	Close() error
}
