package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/folio/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketCollections = []byte("collections")
	bucketSession     = []byte("session")
	bucketCart        = []byte("cart")
)

// SessionTokenKey is the fixed key the session token is stored under
const SessionTokenKey = "auth_token"

const cartKey = "lines"

// BoltStore implements domain.Store and domain.SessionStore using BoltDB.
type BoltStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

// NewBoltStore opens (or creates) the store for an API base URL.
// An empty baseDir gives a memory-only store with no persistence.
func NewBoltStore(baseDir, apiURL string) (*BoltStore, error) {
	if baseDir == "" {
		return &BoltStore{cache: make(map[string][]byte)}, nil
	}

	dir := baseDir
	if apiURL != "" {
		dir = filepath.Join(baseDir, hashAPIURL(apiURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "folio.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketCollections, bucketSession, bucketCart} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, cache: make(map[string][]byte)}, nil
}

// NewMemoryStore returns a store that keeps everything in memory.
func NewMemoryStore() *BoltStore {
	return &BoltStore{cache: make(map[string][]byte)}
}

func hashAPIURL(apiURL string) string {
	normalized := strings.TrimRight(strings.ToLower(apiURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *BoltStore) getRaw(bucket []byte, key string) ([]byte, bool) {
	cacheKey := string(bucket) + ":" + key

	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return data, true
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return nil, false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return data, true
}

func (s *BoltStore) get(bucket []byte, key string, dest any) bool {
	data, ok := s.getRaw(bucket, key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *BoltStore) set(bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	delete(s.cache, cacheKey)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// keys returns every key in a bucket (memory and disk)
func (s *BoltStore) keys(bucket []byte) []string {
	seen := make(map[string]bool)

	prefix := string(bucket) + ":"
	s.mu.RLock()
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			seen[strings.TrimPrefix(k, prefix)] = true
		}
	}
	s.mu.RUnlock()

	if s.db != nil {
		s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucket)
			if b == nil {
				return nil
			}
			return b.ForEach(func(k, _ []byte) error {
				seen[string(k)] = true
				return nil
			})
		})
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// === Collections ===

func (s *BoltStore) GetEntry(key domain.ResourceKey, dest any) bool {
	return s.get(bucketCollections, string(key), dest)
}

func (s *BoltStore) SaveEntry(key domain.ResourceKey, entry any) error {
	return s.set(bucketCollections, string(key), entry)
}

func (s *BoltStore) DeleteEntry(key domain.ResourceKey) {
	s.delete(bucketCollections, string(key))
}

func (s *BoltStore) EntryKeys() []domain.ResourceKey {
	raw := s.keys(bucketCollections)
	keys := make([]domain.ResourceKey, len(raw))
	for i, k := range raw {
		keys[i] = domain.ResourceKey(k)
	}
	return keys
}

// === Session ===

func (s *BoltStore) GetToken() (string, bool) {
	data, ok := s.getRaw(bucketSession, SessionTokenKey)
	if !ok || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// SaveToken stores the raw token string (not JSON encoded)
func (s *BoltStore) SaveToken(token string) error {
	data := []byte(token)
	cacheKey := string(bucketSession) + ":" + SessionTokenKey

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Put([]byte(SessionTokenKey), data)
	})
}

func (s *BoltStore) ClearToken() error {
	return s.delete(bucketSession, SessionTokenKey)
}

// === Cart ===

func (s *BoltStore) GetCart(dest any) bool {
	return s.get(bucketCart, cartKey, dest)
}

func (s *BoltStore) SaveCart(lines any) error {
	return s.set(bucketCart, cartKey, lines)
}

// InvalidateAll wipes every cached collection. The session token and the
// cart are left alone.
func (s *BoltStore) InvalidateAll() {
	s.mu.Lock()
	prefix := string(bucketCollections) + ":"
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCollections)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}
