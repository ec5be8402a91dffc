package serverconfig

import "errors"

// Sentinel errors returned by Verify, one per violated field — mirrors the
// teacher's VerifyConfig error-per-field style.
var (
	ErrConfigPort             = errors.New("serverconfig: listen.port out of range")
	ErrConfigBacklog          = errors.New("serverconfig: listen.backlog must be positive")
	ErrConfigCertFile         = errors.New("serverconfig: tls.cert is required")
	ErrConfigKeyFile          = errors.New("serverconfig: tls.key is required")
	ErrConfigTLSProtocols     = errors.New("serverconfig: tls.protocols must be \"secure\" or \"compat\"")
	ErrConfigTLSCiphers       = errors.New("serverconfig: tls.ciphers must be \"secure\" or \"compat\"")
	ErrConfigChunkThreads     = errors.New("serverconfig: world.chunkSerializerThreads must be positive")
	ErrConfigSourceThreads    = errors.New("serverconfig: world.sourceWorkThreads must be positive")
	ErrConfigPositionInterval = errors.New("serverconfig: proto.positionBroadcastInterval must be positive")
	ErrConfigTimeInterval     = errors.New("serverconfig: proto.timeUpdateInterval must be positive")
	ErrConfigSecsPerDay       = errors.New("serverconfig: proto.secsPerDay must be positive")
	ErrConfigKeyCacheDB       = errors.New("serverconfig: keycache.dbPath is required")
	ErrConfigKeyCacheAPI      = errors.New("serverconfig: keycache.apiBaseUrl is required")
)
