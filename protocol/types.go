package protocol

import (
	"github.com/google/uuid"

	"github.com/cubeland/server/frame"
)

// Vec3 is a 3-component float64 vector, used for player position and look
// angles.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) encode(e *frame.Encoder) {
	e.F64(v.X)
	e.F64(v.Y)
	e.F64(v.Z)
}

func decodeVec3(d *frame.Decoder) (Vec3, error) {
	var v Vec3
	var err error
	if v.X, err = d.F64(); err != nil {
		return v, err
	}
	if v.Y, err = d.F64(); err != nil {
		return v, err
	}
	if v.Z, err = d.F64(); err != nil {
		return v, err
	}
	return v, nil
}

// ChunkCoord identifies a chunk on the horizontal grid.
type ChunkCoord struct {
	CX, CZ int32
}

func (c ChunkCoord) encode(e *frame.Encoder) {
	e.I32(c.CX)
	e.I32(c.CZ)
}

func decodeChunkCoord(d *frame.Decoder) (ChunkCoord, error) {
	var c ChunkCoord
	var err error
	if c.CX, err = d.I32(); err != nil {
		return c, err
	}
	if c.CZ, err = d.I32(); err != nil {
		return c, err
	}
	return c, nil
}

// BlockChange describes one edited block within a chunk.
type BlockChange struct {
	Chunk    ChunkCoord
	X, Y, Z  int32
	NewBlock uuid.UUID
}

func (b BlockChange) encode(e *frame.Encoder) {
	b.Chunk.encode(e)
	e.I32(b.X)
	e.I32(b.Y)
	e.I32(b.Z)
	e.UUID(b.NewBlock)
}

func decodeBlockChange(d *frame.Decoder) (BlockChange, error) {
	var b BlockChange
	var err error
	if b.Chunk, err = decodeChunkCoord(d); err != nil {
		return b, err
	}
	if b.X, err = d.I32(); err != nil {
		return b, err
	}
	if b.Y, err = d.I32(); err != nil {
		return b, err
	}
	if b.Z, err = d.I32(); err != nil {
		return b, err
	}
	if b.NewBlock, err = d.UUID(); err != nil {
		return b, err
	}
	return b, nil
}

func encodeBlockChanges(e *frame.Encoder, changes []BlockChange) {
	e.U64(uint64(len(changes)))
	for _, c := range changes {
		c.encode(e)
	}
}

func decodeBlockChanges(d *frame.Decoder) ([]BlockChange, error) {
	n, err := d.U64()
	if err != nil {
		return nil, err
	}
	out := make([]BlockChange, 0, n)
	for i := uint64(0); i < n; i++ {
		c, err := decodeBlockChange(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// --- Authentication (endpoint 1) ---

type AuthRequest struct {
	ClientID    uuid.UUID
	DisplayName string
}

func (m AuthRequest) Encode() []byte {
	e := frame.NewEncoder()
	e.UUID(m.ClientID)
	e.String(m.DisplayName)
	return e.Bytes()
}

func DecodeAuthRequest(b []byte) (AuthRequest, error) {
	d := frame.NewDecoder(b)
	var m AuthRequest
	var err error
	if m.ClientID, err = d.UUID(); err != nil {
		return m, err
	}
	if m.DisplayName, err = d.String(); err != nil {
		return m, err
	}
	return m, nil
}

// ChallengeLength is the size in bytes of the authentication challenge.
const ChallengeLength = 32

type AuthChallenge struct {
	Random [ChallengeLength]byte
}

func (m AuthChallenge) Encode() []byte {
	e := frame.NewEncoder()
	e.FixedBytes(m.Random[:])
	return e.Bytes()
}

func DecodeAuthChallenge(b []byte) (AuthChallenge, error) {
	d := frame.NewDecoder(b)
	var m AuthChallenge
	raw, err := d.FixedBytes(ChallengeLength)
	if err != nil {
		return m, err
	}
	copy(m.Random[:], raw)
	return m, nil
}

type AuthChallengeReply struct {
	Signature []byte
}

func (m AuthChallengeReply) Encode() []byte {
	e := frame.NewEncoder()
	e.RawBytes(m.Signature)
	return e.Bytes()
}

func DecodeAuthChallengeReply(b []byte) (AuthChallengeReply, error) {
	d := frame.NewDecoder(b)
	var m AuthChallengeReply
	var err error
	if m.Signature, err = d.RawBytes(); err != nil {
		return m, err
	}
	return m, nil
}

type AuthStatusMsg struct {
	State uint8
}

func (m AuthStatusMsg) Encode() []byte {
	e := frame.NewEncoder()
	e.U8(m.State)
	return e.Bytes()
}

func DecodeAuthStatus(b []byte) (AuthStatusMsg, error) {
	d := frame.NewDecoder(b)
	var m AuthStatusMsg
	var err error
	if m.State, err = d.U8(); err != nil {
		return m, err
	}
	return m, nil
}

// --- Chunk transfer (endpoint 2) ---

type ChunkGet struct {
	Coord ChunkCoord
}

func (m ChunkGet) Encode() []byte {
	e := frame.NewEncoder()
	m.Coord.encode(e)
	return e.Bytes()
}

func DecodeChunkGet(b []byte) (ChunkGet, error) {
	d := frame.NewDecoder(b)
	c, err := decodeChunkCoord(d)
	return ChunkGet{Coord: c}, err
}

// ChunkSliceData carries one opaque Y-slice; its encoding is produced by
// the world storage and is treated as opaque bytes by this protocol layer
// (see spec §4.4.2 "Slice encoding is opaque to this specification").
type ChunkSliceData struct {
	Coord    ChunkCoord
	SliceY   int32
	Data     []byte
}

func (m ChunkSliceData) Encode() []byte {
	e := frame.NewEncoder()
	m.Coord.encode(e)
	e.I32(m.SliceY)
	e.RawBytes(m.Data)
	return e.Bytes()
}

func DecodeChunkSliceData(b []byte) (ChunkSliceData, error) {
	d := frame.NewDecoder(b)
	var m ChunkSliceData
	var err error
	if m.Coord, err = decodeChunkCoord(d); err != nil {
		return m, err
	}
	if m.SliceY, err = d.I32(); err != nil {
		return m, err
	}
	if m.Data, err = d.RawBytes(); err != nil {
		return m, err
	}
	return m, nil
}

type ChunkCompletion struct {
	Coord        ChunkCoord
	NumSlices    uint32
	ChunkMeta    []byte
}

func (m ChunkCompletion) Encode() []byte {
	e := frame.NewEncoder()
	m.Coord.encode(e)
	e.U32(m.NumSlices)
	e.RawBytes(m.ChunkMeta)
	return e.Bytes()
}

func DecodeChunkCompletion(b []byte) (ChunkCompletion, error) {
	d := frame.NewDecoder(b)
	var m ChunkCompletion
	var err error
	if m.Coord, err = decodeChunkCoord(d); err != nil {
		return m, err
	}
	if m.NumSlices, err = d.U32(); err != nil {
		return m, err
	}
	if m.ChunkMeta, err = d.RawBytes(); err != nil {
		return m, err
	}
	return m, nil
}

// --- Block change (endpoint 3) ---

type BlockChangeReport struct {
	Changes []BlockChange
}

func (m BlockChangeReport) Encode() []byte {
	e := frame.NewEncoder()
	encodeBlockChanges(e, m.Changes)
	return e.Bytes()
}

func DecodeBlockChangeReport(b []byte) (BlockChangeReport, error) {
	d := frame.NewDecoder(b)
	changes, err := decodeBlockChanges(d)
	return BlockChangeReport{Changes: changes}, err
}

type BlockChangeUnregister struct {
	Coord ChunkCoord
}

func (m BlockChangeUnregister) Encode() []byte {
	e := frame.NewEncoder()
	m.Coord.encode(e)
	return e.Bytes()
}

func DecodeBlockChangeUnregister(b []byte) (BlockChangeUnregister, error) {
	d := frame.NewDecoder(b)
	c, err := decodeChunkCoord(d)
	return BlockChangeUnregister{Coord: c}, err
}

type BlockChangeBroadcast struct {
	Changes []BlockChange
}

func (m BlockChangeBroadcast) Encode() []byte {
	e := frame.NewEncoder()
	encodeBlockChanges(e, m.Changes)
	return e.Bytes()
}

func DecodeBlockChangeBroadcast(b []byte) (BlockChangeBroadcast, error) {
	d := frame.NewDecoder(b)
	changes, err := decodeBlockChanges(d)
	return BlockChangeBroadcast{Changes: changes}, err
}

// --- Chat (endpoint 4) ---

type ChatMessageIn struct {
	Text string
}

func (m ChatMessageIn) Encode() []byte {
	e := frame.NewEncoder()
	e.String(m.Text)
	return e.Bytes()
}

func DecodeChatMessageIn(b []byte) (ChatMessageIn, error) {
	d := frame.NewDecoder(b)
	var m ChatMessageIn
	var err error
	if m.Text, err = d.String(); err != nil {
		return m, err
	}
	return m, nil
}

type ChatMessageOut struct {
	Sender uuid.UUID
	Text   string
}

func (m ChatMessageOut) Encode() []byte {
	e := frame.NewEncoder()
	e.UUID(m.Sender)
	e.String(m.Text)
	return e.Bytes()
}

func DecodeChatMessageOut(b []byte) (ChatMessageOut, error) {
	d := frame.NewDecoder(b)
	var m ChatMessageOut
	var err error
	if m.Sender, err = d.UUID(); err != nil {
		return m, err
	}
	if m.Text, err = d.String(); err != nil {
		return m, err
	}
	return m, nil
}

type ChatPlayerJoined struct {
	ID          uuid.UUID
	DisplayName string
}

func (m ChatPlayerJoined) Encode() []byte {
	e := frame.NewEncoder()
	e.UUID(m.ID)
	e.String(m.DisplayName)
	return e.Bytes()
}

func DecodeChatPlayerJoined(b []byte) (ChatPlayerJoined, error) {
	d := frame.NewDecoder(b)
	var m ChatPlayerJoined
	var err error
	if m.ID, err = d.UUID(); err != nil {
		return m, err
	}
	if m.DisplayName, err = d.String(); err != nil {
		return m, err
	}
	return m, nil
}

type ChatPlayerLeft struct {
	ID uuid.UUID
}

func (m ChatPlayerLeft) Encode() []byte {
	e := frame.NewEncoder()
	e.UUID(m.ID)
	return e.Bytes()
}

func DecodeChatPlayerLeft(b []byte) (ChatPlayerLeft, error) {
	d := frame.NewDecoder(b)
	var m ChatPlayerLeft
	var err error
	if m.ID, err = d.UUID(); err != nil {
		return m, err
	}
	return m, nil
}

// --- Player info (endpoint 5) ---

type PlayerInfoGet struct {
	Key string
}

func (m PlayerInfoGet) Encode() []byte {
	e := frame.NewEncoder()
	e.String(m.Key)
	return e.Bytes()
}

func DecodePlayerInfoGet(b []byte) (PlayerInfoGet, error) {
	d := frame.NewDecoder(b)
	var m PlayerInfoGet
	var err error
	if m.Key, err = d.String(); err != nil {
		return m, err
	}
	return m, nil
}

type PlayerInfoGetReply struct {
	Key   string
	Found bool
	Data  []byte
}

func (m PlayerInfoGetReply) Encode() []byte {
	e := frame.NewEncoder()
	e.String(m.Key)
	e.OptionalRawBytes(m.Data, m.Found)
	return e.Bytes()
}

func DecodePlayerInfoGetReply(b []byte) (PlayerInfoGetReply, error) {
	d := frame.NewDecoder(b)
	var m PlayerInfoGetReply
	var err error
	if m.Key, err = d.String(); err != nil {
		return m, err
	}
	if m.Data, m.Found, err = d.OptionalRawBytes(); err != nil {
		return m, err
	}
	return m, nil
}

type PlayerInfoSet struct {
	Key  string
	Data []byte
	Has  bool
}

func (m PlayerInfoSet) Encode() []byte {
	e := frame.NewEncoder()
	e.String(m.Key)
	e.OptionalRawBytes(m.Data, m.Has)
	return e.Bytes()
}

func DecodePlayerInfoSet(b []byte) (PlayerInfoSet, error) {
	d := frame.NewDecoder(b)
	var m PlayerInfoSet
	var err error
	if m.Key, err = d.String(); err != nil {
		return m, err
	}
	if m.Data, m.Has, err = d.OptionalRawBytes(); err != nil {
		return m, err
	}
	return m, nil
}

// --- World info (endpoint 6) ---

type WorldInfoGet struct {
	Key string
}

func (m WorldInfoGet) Encode() []byte {
	e := frame.NewEncoder()
	e.String(m.Key)
	return e.Bytes()
}

func DecodeWorldInfoGet(b []byte) (WorldInfoGet, error) {
	d := frame.NewDecoder(b)
	var m WorldInfoGet
	var err error
	if m.Key, err = d.String(); err != nil {
		return m, err
	}
	return m, nil
}

type WorldInfoGetReply struct {
	Key   string
	Found bool
	Data  []byte
}

func (m WorldInfoGetReply) Encode() []byte {
	e := frame.NewEncoder()
	e.String(m.Key)
	e.OptionalRawBytes(m.Data, m.Found)
	return e.Bytes()
}

func DecodeWorldInfoGetReply(b []byte) (WorldInfoGetReply, error) {
	d := frame.NewDecoder(b)
	var m WorldInfoGetReply
	var err error
	if m.Key, err = d.String(); err != nil {
		return m, err
	}
	if m.Data, m.Found, err = d.OptionalRawBytes(); err != nil {
		return m, err
	}
	return m, nil
}

// --- Player movement (endpoint 7) ---

type PlayerPositionChanged struct {
	Epoch    uint32
	Position Vec3
	Angles   Vec3
}

func (m PlayerPositionChanged) Encode() []byte {
	e := frame.NewEncoder()
	e.U32(m.Epoch)
	m.Position.encode(e)
	m.Angles.encode(e)
	return e.Bytes()
}

func DecodePlayerPositionChanged(b []byte) (PlayerPositionChanged, error) {
	d := frame.NewDecoder(b)
	var m PlayerPositionChanged
	var err error
	if m.Epoch, err = d.U32(); err != nil {
		return m, err
	}
	if m.Position, err = decodeVec3(d); err != nil {
		return m, err
	}
	if m.Angles, err = decodeVec3(d); err != nil {
		return m, err
	}
	return m, nil
}

type PlayerPositionBroadcast struct {
	PlayerID uuid.UUID
	Position Vec3
	Angles   Vec3
}

func (m PlayerPositionBroadcast) Encode() []byte {
	e := frame.NewEncoder()
	e.UUID(m.PlayerID)
	m.Position.encode(e)
	m.Angles.encode(e)
	return e.Bytes()
}

func DecodePlayerPositionBroadcast(b []byte) (PlayerPositionBroadcast, error) {
	d := frame.NewDecoder(b)
	var m PlayerPositionBroadcast
	var err error
	if m.PlayerID, err = d.UUID(); err != nil {
		return m, err
	}
	if m.Position, err = decodeVec3(d); err != nil {
		return m, err
	}
	if m.Angles, err = decodeVec3(d); err != nil {
		return m, err
	}
	return m, nil
}

type PlayerPositionInitial struct {
	Position Vec3
	Angles   Vec3
}

func (m PlayerPositionInitial) Encode() []byte {
	e := frame.NewEncoder()
	m.Position.encode(e)
	m.Angles.encode(e)
	return e.Bytes()
}

func DecodePlayerPositionInitial(b []byte) (PlayerPositionInitial, error) {
	d := frame.NewDecoder(b)
	var m PlayerPositionInitial
	var err error
	if m.Position, err = decodeVec3(d); err != nil {
		return m, err
	}
	if m.Angles, err = decodeVec3(d); err != nil {
		return m, err
	}
	return m, nil
}

// --- Time (endpoint 8) ---

type TimeInitialState struct {
	TickFactor  float64
	CurrentTime float64
}

func (m TimeInitialState) Encode() []byte {
	e := frame.NewEncoder()
	e.F64(m.TickFactor)
	e.F64(m.CurrentTime)
	return e.Bytes()
}

func DecodeTimeInitialState(b []byte) (TimeInitialState, error) {
	d := frame.NewDecoder(b)
	var m TimeInitialState
	var err error
	if m.TickFactor, err = d.F64(); err != nil {
		return m, err
	}
	if m.CurrentTime, err = d.F64(); err != nil {
		return m, err
	}
	return m, nil
}

type TimeUpdate struct {
	CurrentTime float64
}

func (m TimeUpdate) Encode() []byte {
	e := frame.NewEncoder()
	e.F64(m.CurrentTime)
	return e.Bytes()
}

func DecodeTimeUpdate(b []byte) (TimeUpdate, error) {
	d := frame.NewDecoder(b)
	var m TimeUpdate
	var err error
	if m.CurrentTime, err = d.F64(); err != nil {
		return m, err
	}
	return m, nil
}

// WorldTimePersisted and PlayerPositionPersisted are the encodings stored
// under the reserved world-info/player-info keys (§6 "Persisted state").

type WorldTimePersisted struct {
	Time float64
}

func (m WorldTimePersisted) Encode() []byte {
	e := frame.NewEncoder()
	e.F64(m.Time)
	return e.Bytes()
}

func DecodeWorldTimePersisted(b []byte) (WorldTimePersisted, error) {
	d := frame.NewDecoder(b)
	var m WorldTimePersisted
	var err error
	if m.Time, err = d.F64(); err != nil {
		return m, err
	}
	return m, nil
}

type PlayerPositionPersisted struct {
	Position Vec3
	Angles   Vec3
}

func (m PlayerPositionPersisted) Encode() []byte {
	e := frame.NewEncoder()
	m.Position.encode(e)
	m.Angles.encode(e)
	return e.Bytes()
}

func DecodePlayerPositionPersisted(b []byte) (PlayerPositionPersisted, error) {
	d := frame.NewDecoder(b)
	var m PlayerPositionPersisted
	var err error
	if m.Position, err = decodeVec3(d); err != nil {
		return m, err
	}
	if m.Angles, err = decodeVec3(d); err != nil {
		return m, err
	}
	return m, nil
}
