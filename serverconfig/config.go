// Package serverconfig defines the listener's configuration, loaded from a
// TOML file, and its validation — generalizing the teacher's Config/
// VerifyConfig pattern from a consensus-parameter struct to a network
// listener's parameters.
package serverconfig

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration for a cubeland-server process.
type Config struct {
	Listen ListenConfig `toml:"listen"`
	TLS    TLSConfig    `toml:"tls"`
	World  WorldConfig  `toml:"world"`
	Proto  ProtoConfig  `toml:"proto"`
	KeyCache KeyCacheConfig `toml:"keycache"`
}

// ListenConfig configures the TCP accept socket.
type ListenConfig struct {
	// Address is the bind address, e.g. "0.0.0.0" or "".
	Address string `toml:"address"`
	// Port is the TCP port to listen on.
	Port int `toml:"port"`
	// Backlog is the configured accept-queue depth. It is validated and shown
	// in the startup summary; the listener does not pass it to the socket,
	// which uses the operating system's default backlog.
	Backlog int `toml:"backlog"`
}

// TLSConfig configures the server's TLS identity and negotiation policy.
type TLSConfig struct {
	// CertFile and KeyFile are PEM paths for the server's certificate chain
	// and private key.
	CertFile string `toml:"cert"`
	KeyFile  string `toml:"key"`
	// Protocols names the negotiation policy, "secure" or "compat",
	// mirroring the original libtls profile names. The server requires
	// TLS 1.2 or later under either value.
	Protocols string `toml:"protocols"`
	// Ciphers names the cipher-suite policy, "secure" or "compat". It is
	// validated but not applied: the TLS config uses crypto/tls's default
	// cipher suites under either value.
	Ciphers string `toml:"ciphers"`
}

// WorldConfig configures background world-processing concurrency.
type WorldConfig struct {
	// ChunkSerializerThreads bounds the worker pool used to serialize chunk
	// slices for transfer to clients.
	ChunkSerializerThreads int `toml:"chunkSerializerThreads"`
	// SourceWorkThreads is the worker-pool size for a world storage's own
	// source work. No component in this module reads it beyond validation
	// and the startup summary.
	SourceWorkThreads int `toml:"sourceWorkThreads"`
}

// ProtoConfig configures protocol-level timing parameters.
type ProtoConfig struct {
	// PositionBroadcastInterval is how often a session's latest player
	// position is broadcast to other sessions.
	PositionBroadcastInterval time.Duration `toml:"positionBroadcastInterval"`
	// TimeUpdateInterval is how often a TimeUpdate is broadcast.
	TimeUpdateInterval time.Duration `toml:"timeUpdateInterval"`
	// SecsPerDay sets the world clock's day length in real seconds,
	// determining the tick_factor applied to elapsed wall-clock time.
	SecsPerDay float64 `toml:"secsPerDay"`
}

// KeyCacheConfig configures the three-tier player key cache.
type KeyCacheConfig struct {
	DBPath     string `toml:"dbPath"`
	APIBaseURL string `toml:"apiBaseUrl"`
}

// Defaults mirror the spec's configuration table.
const (
	DefaultPort                      = 47420
	DefaultBacklog                   = 10
	DefaultChunkSerializerThreads    = 4
	DefaultSourceWorkThreads         = 4
	DefaultPositionBroadcastInterval = 74 * time.Millisecond
	DefaultTimeUpdateInterval        = 10 * time.Second
	DefaultSecsPerDay                = 1440.0
)

// Default returns a Config with every field set to its documented default.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Port:    DefaultPort,
			Backlog: DefaultBacklog,
		},
		TLS: TLSConfig{
			Protocols: "secure",
			Ciphers:   "secure",
		},
		World: WorldConfig{
			ChunkSerializerThreads: DefaultChunkSerializerThreads,
			SourceWorkThreads:      DefaultSourceWorkThreads,
		},
		Proto: ProtoConfig{
			PositionBroadcastInterval: DefaultPositionBroadcastInterval,
			TimeUpdateInterval:        DefaultTimeUpdateInterval,
			SecsPerDay:                DefaultSecsPerDay,
		},
	}
}

// Load reads and parses a TOML config file at path, applying defaults for
// any field the file leaves zero.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.Listen.Port == 0 {
		c.Listen.Port = DefaultPort
	}
	if c.Listen.Backlog == 0 {
		c.Listen.Backlog = DefaultBacklog
	}
	if c.TLS.Protocols == "" {
		c.TLS.Protocols = "secure"
	}
	if c.TLS.Ciphers == "" {
		c.TLS.Ciphers = "secure"
	}
	if c.World.ChunkSerializerThreads == 0 {
		c.World.ChunkSerializerThreads = DefaultChunkSerializerThreads
	}
	if c.World.SourceWorkThreads == 0 {
		c.World.SourceWorkThreads = DefaultSourceWorkThreads
	}
	if c.Proto.PositionBroadcastInterval == 0 {
		c.Proto.PositionBroadcastInterval = DefaultPositionBroadcastInterval
	}
	if c.Proto.TimeUpdateInterval == 0 {
		c.Proto.TimeUpdateInterval = DefaultTimeUpdateInterval
	}
	if c.Proto.SecsPerDay == 0 {
		c.Proto.SecsPerDay = DefaultSecsPerDay
	}
}

// Verify checks that c is complete and internally consistent, in the same
// step-by-step style as the teacher's VerifyConfig.
func Verify(c *Config) error {
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return ErrConfigPort
	}
	if c.Listen.Backlog <= 0 {
		return ErrConfigBacklog
	}
	if c.TLS.CertFile == "" {
		return ErrConfigCertFile
	}
	if c.TLS.KeyFile == "" {
		return ErrConfigKeyFile
	}
	if c.TLS.Protocols != "secure" && c.TLS.Protocols != "compat" {
		return ErrConfigTLSProtocols
	}
	if c.TLS.Ciphers != "secure" && c.TLS.Ciphers != "compat" {
		return ErrConfigTLSCiphers
	}
	if c.World.ChunkSerializerThreads <= 0 {
		return ErrConfigChunkThreads
	}
	if c.World.SourceWorkThreads <= 0 {
		return ErrConfigSourceThreads
	}
	if c.Proto.PositionBroadcastInterval <= 0 {
		return ErrConfigPositionInterval
	}
	if c.Proto.TimeUpdateInterval <= 0 {
		return ErrConfigTimeInterval
	}
	if c.Proto.SecsPerDay <= 0 {
		return ErrConfigSecsPerDay
	}
	if c.KeyCache.DBPath == "" {
		return ErrConfigKeyCacheDB
	}
	if c.KeyCache.APIBaseURL == "" {
		return ErrConfigKeyCacheAPI
	}
	return nil
}
