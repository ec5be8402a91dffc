// Package protocol defines the wire messages carried by each endpoint of
// the cubeland frame protocol (§6 of the spec) and their portable binary
// encodings, built on top of package frame's codec primitives.
package protocol

// Endpoint numbers. Part of the wire contract; never renumber these.
const (
	EndpointAuthentication uint8 = 1
	EndpointChunk          uint8 = 2
	EndpointBlockChange    uint8 = 3
	EndpointChat           uint8 = 4
	EndpointPlayerInfo     uint8 = 5
	EndpointWorldInfo      uint8 = 6
	EndpointPlayerMovement uint8 = 7
	EndpointTime           uint8 = 8
)

// Authentication endpoint sub-types.
const (
	_ uint8 = iota
	AuthTypeRequest
	AuthTypeChallenge
	AuthTypeChallengeReply
	AuthTypeStatus
	authTypeMax
)

// AuthTypeMax is one past the last valid authentication sub-type.
const AuthTypeMax = authTypeMax

// AuthStatus values carried by AuthStatusMsg.
const (
	AuthStatusSuccess uint8 = iota
	AuthStatusInvalidSignature
	AuthStatusTemporaryError
	AuthStatusUnknownID
)

// Chunk endpoint sub-types.
const (
	_ uint8 = iota
	ChunkTypeGet
	ChunkTypeSliceData
	ChunkTypeCompletion
	chunkTypeMax
)

// ChunkTypeMax is one past the last valid chunk sub-type.
const ChunkTypeMax = chunkTypeMax

// Block change endpoint sub-types.
const (
	_ uint8 = iota
	BlockChangeTypeReport
	BlockChangeTypeUnregister
	BlockChangeTypeBroadcast
	blockChangeTypeMax
)

// BlockChangeTypeMax is one past the last valid block-change sub-type.
const BlockChangeTypeMax = blockChangeTypeMax

// Chat endpoint sub-types.
const (
	_ uint8 = iota
	ChatTypeMessage
	ChatTypePlayerJoined
	ChatTypePlayerLeft
	chatTypeMax
)

// ChatTypeMax is one past the last valid chat sub-type.
const ChatTypeMax = chatTypeMax

// Player info endpoint sub-types.
const (
	_ uint8 = iota
	PlayerInfoTypeGet
	PlayerInfoTypeGetReply
	PlayerInfoTypeSet
	playerInfoTypeMax
)

// PlayerInfoTypeMax is one past the last valid player-info sub-type.
const PlayerInfoTypeMax = playerInfoTypeMax

// World info endpoint sub-types.
const (
	_ uint8 = iota
	WorldInfoTypeGet
	WorldInfoTypeGetReply
	worldInfoTypeMax
)

// WorldInfoTypeMax is one past the last valid world-info sub-type.
const WorldInfoTypeMax = worldInfoTypeMax

// Player movement endpoint sub-types.
const (
	_ uint8 = iota
	MovementTypePositionChanged
	MovementTypeBroadcast
	MovementTypeInitial
	movementTypeMax
)

// MovementTypeMax is one past the last valid movement sub-type.
const MovementTypeMax = movementTypeMax

// Time endpoint sub-types.
const (
	_ uint8 = iota
	TimeTypeInitialState
	TimeTypeUpdate
	timeTypeMax
)

// TimeTypeMax is one past the last valid time sub-type.
const TimeTypeMax = timeTypeMax

// Reserved world-info/player-info persistence keys.
const (
	KeyWorldTime        = "server.world.time"
	KeyPlayerPosition   = "server.player.position"
)
