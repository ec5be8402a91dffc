package serverconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyStepByStep(t *testing.T) {
	config := Default()

	config.Listen.Port = 0
	err := Verify(config)
	assert.Equal(t, ErrConfigPort, err)
	config.Listen.Port = DefaultPort

	config.Listen.Backlog = 0
	err = Verify(config)
	assert.Equal(t, ErrConfigBacklog, err)
	config.Listen.Backlog = DefaultBacklog

	err = Verify(config)
	assert.Equal(t, ErrConfigCertFile, err)
	config.TLS.CertFile = "server.crt"

	err = Verify(config)
	assert.Equal(t, ErrConfigKeyFile, err)
	config.TLS.KeyFile = "server.key"

	config.TLS.Protocols = "insecure"
	err = Verify(config)
	assert.Equal(t, ErrConfigTLSProtocols, err)
	config.TLS.Protocols = "secure"

	config.TLS.Ciphers = "insecure"
	err = Verify(config)
	assert.Equal(t, ErrConfigTLSCiphers, err)
	config.TLS.Ciphers = "secure"

	config.World.ChunkSerializerThreads = 0
	err = Verify(config)
	assert.Equal(t, ErrConfigChunkThreads, err)
	config.World.ChunkSerializerThreads = DefaultChunkSerializerThreads

	config.World.SourceWorkThreads = 0
	err = Verify(config)
	assert.Equal(t, ErrConfigSourceThreads, err)
	config.World.SourceWorkThreads = DefaultSourceWorkThreads

	config.Proto.PositionBroadcastInterval = 0
	err = Verify(config)
	assert.Equal(t, ErrConfigPositionInterval, err)
	config.Proto.PositionBroadcastInterval = DefaultPositionBroadcastInterval

	config.Proto.TimeUpdateInterval = 0
	err = Verify(config)
	assert.Equal(t, ErrConfigTimeInterval, err)
	config.Proto.TimeUpdateInterval = DefaultTimeUpdateInterval

	config.Proto.SecsPerDay = 0
	err = Verify(config)
	assert.Equal(t, ErrConfigSecsPerDay, err)
	config.Proto.SecsPerDay = DefaultSecsPerDay

	err = Verify(config)
	assert.Equal(t, ErrConfigKeyCacheDB, err)
	config.KeyCache.DBPath = "keys.sqlite3"

	err = Verify(config)
	assert.Equal(t, ErrConfigKeyCacheAPI, err)
	config.KeyCache.APIBaseURL = "https://api.cubeland.example"

	assert.NoError(t, Verify(config))
}

func TestLoadAppliesDefaultsForZeroFields(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	assert.Equal(t, DefaultPort, cfg.Listen.Port)
	assert.Equal(t, DefaultBacklog, cfg.Listen.Backlog)
	assert.Equal(t, DefaultSecsPerDay, cfg.Proto.SecsPerDay)
}
