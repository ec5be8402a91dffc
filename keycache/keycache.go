// Package keycache resolves a player's ECDSA public key through a three-tier
// cache: an in-memory LRU, a local SQLite table, and finally the Cubeland
// account API. Concurrent misses for the same id are coalesced into a
// single remote request, matching the original server's own TODO on this exact
// point ("we need to investigate better locking so that multiple concurrent
// clients don't race") resolved here with singleflight instead of left open.
package keycache

import (
	"crypto/ecdsa"
	"crypto/x509"
	"database/sql"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	_ "github.com/mattn/go-sqlite3"
)

const schemaV1 = `CREATE TABLE IF NOT EXISTS keys_v1 (
	uuid BLOB PRIMARY KEY,
	pubkey TEXT NOT NULL
);`

// Cache resolves player public keys through memory, disk, and remote tiers.
type Cache struct {
	memory *lru.Cache
	db     *sql.DB
	client *http.Client
	apiURL string

	group singleflight.Group
}

// Config configures a Cache.
type Config struct {
	// DBPath is the SQLite database file path (created if absent).
	DBPath string
	// APIBaseURL is the Cubeland account API base URL, e.g.
	// "https://api.cubeland.example". GET {APIBaseURL}/user/{uuid}/pubkey
	// is issued on a memory+disk miss.
	APIBaseURL string
	// MemorySize bounds the in-memory LRU tier's entry count.
	MemorySize int
	// HTTPTimeout bounds a single remote lookup.
	HTTPTimeout time.Duration
}

// New opens (and if needed initializes) the on-disk tier and returns a ready
// Cache.
func New(cfg Config) (*Cache, error) {
	if cfg.MemorySize <= 0 {
		cfg.MemorySize = 4096
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}

	mem, err := lru.New(cfg.MemorySize)
	if err != nil {
		return nil, fmt.Errorf("keycache: allocate memory tier: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("keycache: open db: %w", err)
	}
	if _, err := db.Exec(schemaV1); err != nil {
		db.Close()
		return nil, fmt.Errorf("keycache: apply schema: %w", err)
	}

	return &Cache{
		memory: mem,
		db:     db,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		apiURL: cfg.APIBaseURL,
	}, nil
}

// Close releases the on-disk tier's connection.
func (c *Cache) Close() error { return c.db.Close() }

// Get resolves the public key for id, checking memory, then disk, then the
// remote API, populating faster tiers as it goes. Concurrent Get calls for
// the same id share a single remote lookup.
func (c *Cache) Get(id uuid.UUID) (*ecdsa.PublicKey, error) {
	if v, ok := c.memory.Get(id); ok {
		return v.(*ecdsa.PublicKey), nil
	}

	v, err, _ := c.group.Do(id.String(), func() (interface{}, error) {
		// Re-check memory: another goroutine may have populated it while
		// this one waited to enter the singleflight group.
		if v, ok := c.memory.Get(id); ok {
			return v.(*ecdsa.PublicKey), nil
		}

		if pemStr, ok, err := c.readDBKey(id); err != nil {
			return nil, err
		} else if ok {
			key, err := decodePEM(pemStr)
			if err != nil {
				return nil, err
			}
			c.memory.Add(id, key)
			return key, nil
		}

		pemStr, err := c.fetchRemote(id)
		if err != nil {
			return nil, err
		}
		key, err := decodePEM(pemStr)
		if err != nil {
			return nil, err
		}
		if err := c.writeDBKey(id, pemStr); err != nil {
			return nil, err
		}
		c.memory.Add(id, key)
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ecdsa.PublicKey), nil
}

func (c *Cache) readDBKey(id uuid.UUID) (string, bool, error) {
	var pemStr string
	err := c.db.QueryRow(`SELECT pubkey FROM keys_v1 WHERE uuid = ?`, id[:]).Scan(&pemStr)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keycache: read db key: %w", err)
	}
	return pemStr, true, nil
}

func (c *Cache) writeDBKey(id uuid.UUID, pemStr string) error {
	_, err := c.db.Exec(`INSERT INTO keys_v1 (uuid, pubkey) VALUES (?, ?)`, id[:], pemStr)
	if err != nil {
		return fmt.Errorf("keycache: write db key: %w", err)
	}
	return nil
}

type pubkeyResponse struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
}

func (c *Cache) fetchRemote(id uuid.UUID) (string, error) {
	url := fmt.Sprintf("%s/user/%s/pubkey", c.apiURL, id.String())
	resp, err := c.client.Get(url)
	if err != nil {
		return "", fmt.Errorf("keycache: remote lookup: %w", err)
	}
	defer resp.Body.Close()

	var body pubkeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("keycache: decode remote response: %w", err)
	}
	if !body.Success {
		return "", ErrUnknownID
	}
	return body.Key, nil
}

func decodePEM(pemStr string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, ErrInvalidKey
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	ecKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	return ecKey, nil
}
