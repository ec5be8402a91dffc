package keycache

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genPEM(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return priv, string(pem.EncodeToMemory(block))
}

func newTestCache(t *testing.T, handler http.HandlerFunc) (*Cache, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c, err := New(Config{
		DBPath:     filepath.Join(t.TempDir(), "keys.sqlite3"),
		APIBaseURL: srv.URL,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		srv.Close()
	})
	return c, srv
}

func TestGetFetchesFromRemoteOnFullMiss(t *testing.T) {
	_, pemStr := genPEM(t)
	id := uuid.New()
	var hits int32

	c, _ := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, fmt.Sprintf("/user/%s/pubkey", id), r.URL.Path)
		json.NewEncoder(w).Encode(pubkeyResponse{Success: true, Key: pemStr})
	})

	key, err := c.Get(id)
	require.NoError(t, err)
	assert.NotNil(t, key)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestGetUnknownIDReturnsError(t *testing.T) {
	id := uuid.New()
	c, _ := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pubkeyResponse{Success: false})
	})
	_, err := c.Get(id)
	assert.ErrorIs(t, err, ErrUnknownID)
}

func TestMemoryHitAvoidsDiskAndNetwork(t *testing.T) {
	_, pemStr := genPEM(t)
	id := uuid.New()
	var hits int32

	c, _ := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(pubkeyResponse{Success: true, Key: pemStr})
	})

	_, err := c.Get(id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	// Second call must hit the memory tier only.
	_, err = c.Get(id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "remote must not be hit again on memory hit")
}

func TestDiskHitAvoidsNetwork(t *testing.T) {
	_, pemStr := genPEM(t)
	id := uuid.New()
	var hits int32

	c, _ := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(pubkeyResponse{Success: true, Key: pemStr})
	})

	_, err := c.Get(id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	// Evict from memory but leave the disk row; the next Get must resolve it
	// from the disk tier without another remote request.
	c.memory.Remove(id)
	_, err = c.Get(id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "remote must not be hit again on disk hit")
}

func TestConcurrentMissesCoalesceToOneRemoteRequest(t *testing.T) {
	_, pemStr := genPEM(t)
	id := uuid.New()
	var hits int32

	c, _ := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(pubkeyResponse{Success: true, Key: pemStr})
	})

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get(id)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "concurrent misses for the same id must coalesce to one remote request")
}
