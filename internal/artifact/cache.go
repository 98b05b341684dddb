// Package artifact implements the bounded on-device cache for binary tool
// outputs.
//
// Every Store re-reads the current total inside the same bbolt read-write
// transaction that inserts the blob, so interleaved callers can never push
// the cache past its ceiling. Expired entries are purged before insertion
// and lazily on access; when space is short the least recently accessed
// entries are evicted first.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	metaBucketName = "artifact_meta"
	blobBucketName = "artifact_blob"
)

var (
	ErrNotFound = errors.New("artifact not found")
	ErrTooLarge = errors.New("artifact exceeds cache ceiling")
	ErrClosed   = errors.New("artifact cache is closed")
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Meta is everything about an artifact except its bytes.
type Meta struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	MIMEType       string    `json:"mimeType"`
	SizeBytes      int64     `json:"sizeBytes"`
	OwnerToolID    string    `json:"ownerToolId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	TTLExpiry      time.Time `json:"ttlExpiry"`
}

// Artifact is a cached blob with its metadata.
type Artifact struct {
	Meta
	Data []byte
}

// StoreOptions tune a single Store call.
type StoreOptions struct {
	TTLDays  int
	CustomID string
}

// ListFilter narrows List.
type ListFilter struct {
	OwnerToolID    string
	IncludeExpired bool
}

// Stats summarizes the cache for quota displays.
type Stats struct {
	TotalSize  int64      `json:"totalSize"`
	TotalCount int        `json:"totalCount"`
	MaxSize    int64      `json:"maxSize"`
	Oldest     *time.Time `json:"oldest,omitempty"`
	Newest     *time.Time `json:"newest,omitempty"`
}

// Recorder receives cache events. The metrics package implements it.
type Recorder interface {
	CacheEvicted(n int)
	CacheExpired(n int)
	CacheSize(bytes int64)
}

// Config holds cache configuration.
type Config struct {
	Path       string
	MaxBytes   int64
	DefaultTTL time.Duration
	Logger     *zap.Logger
	Recorder   Recorder
}

// Cache is the bbolt-backed artifact store.
type Cache struct {
	mu       sync.RWMutex
	db       *bolt.DB
	maxBytes int64
	ttl      time.Duration
	logger   *zap.Logger
	recorder Recorder
	closed   bool
}

// Open opens (or creates) the cache file at cfg.Path.
func Open(cfg Config) (*Cache, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("artifact: cache path is required")
	}
	if cfg.MaxBytes <= 0 {
		return nil, fmt.Errorf("artifact: max bytes must be positive")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 7 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("artifact: ensure cache dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("artifact: open cache db: %w", err)
	}
	if err := db.Update(ensureBuckets); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("artifact: create buckets: %w", err)
	}
	return &Cache{
		db:       db,
		maxBytes: cfg.MaxBytes,
		ttl:      cfg.DefaultTTL,
		logger:   cfg.Logger.Named("artifact"),
		recorder: cfg.Recorder,
	}, nil
}

// Close closes the cache file.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

// MaxBytes returns the configured ceiling.
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// Store inserts data and returns its id. Expired entries are purged
// first; then least recently accessed entries are evicted until the new
// blob fits. A blob larger than the ceiling is rejected with ErrTooLarge
// without touching existing entries. Storage errors from bbolt (including
// a full disk) are returned unchanged in meaning.
func (c *Cache) Store(data []byte, meta Meta, opts StoreOptions) (string, error) {
	size := int64(len(data))
	if size > c.maxBytes {
		return "", fmt.Errorf("artifact: store %q (%d bytes, max %d): %w", meta.Filename, size, c.maxBytes, ErrTooLarge)
	}

	id := opts.CustomID
	if id == "" {
		id = uuid.NewString()
	}
	ttl := c.ttl
	if opts.TTLDays > 0 {
		ttl = time.Duration(opts.TTLDays) * 24 * time.Hour
	}
	now := timeNow().UTC()
	meta.ID = id
	meta.SizeBytes = size
	meta.CreatedAt = now
	meta.LastAccessedAt = now
	meta.TTLExpiry = now.Add(ttl)

	var expired, evicted int
	var total int64
	err := c.update(func(tx *bolt.Tx) error {
		metas, err := readMetas(tx)
		if err != nil {
			return err
		}

		live := metas[:0]
		for _, m := range metas {
			switch {
			case !now.Before(m.TTLExpiry):
				if err := deleteEntry(tx, m.ID); err != nil {
					return err
				}
				expired++
			case m.ID == id:
				// Overwritten below; its bytes do not count.
				if err := deleteEntry(tx, m.ID); err != nil {
					return err
				}
			default:
				live = append(live, m)
				total += m.SizeBytes
			}
		}

		if total+size > c.maxBytes {
			sortLRU(live)
			for _, m := range live {
				if total+size <= c.maxBytes {
					break
				}
				if err := deleteEntry(tx, m.ID); err != nil {
					return err
				}
				total -= m.SizeBytes
				evicted++
			}
		}

		raw, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode meta: %w", err)
		}
		if err := tx.Bucket([]byte(metaBucketName)).Put([]byte(id), raw); err != nil {
			return fmt.Errorf("write meta: %w", err)
		}
		if err := tx.Bucket([]byte(blobBucketName)).Put([]byte(id), data); err != nil {
			return fmt.Errorf("write blob: %w", err)
		}
		total += size
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("artifact: store %q: %w", meta.Filename, err)
	}

	if evicted > 0 || expired > 0 {
		c.logger.Debug("cache pressure",
			zap.Int("evicted", evicted),
			zap.Int("expired", expired),
			zap.Int64("total_bytes", total),
		)
	}
	c.record(evicted, expired, total)
	return id, nil
}

// Get returns the artifact with id and marks it as just accessed. An
// expired artifact is deleted and reported as ErrNotFound.
func (c *Cache) Get(id string) (*Artifact, error) {
	now := timeNow().UTC()
	var out *Artifact
	expired := false
	err := c.update(func(tx *bolt.Tx) error {
		metaBucket := tx.Bucket([]byte(metaBucketName))
		raw := metaBucket.Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		var m Meta
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("decode meta %s: %w", id, err)
		}
		if !now.Before(m.TTLExpiry) {
			expired = true
			return deleteEntry(tx, id)
		}

		m.LastAccessedAt = now
		updated, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode meta: %w", err)
		}
		if err := metaBucket.Put([]byte(id), updated); err != nil {
			return fmt.Errorf("touch %s: %w", id, err)
		}
		blob := tx.Bucket([]byte(blobBucketName)).Get([]byte(id))
		out = &Artifact{Meta: m, Data: append([]byte(nil), blob...)}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("artifact: get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: get %s: %w", id, err)
	}
	if expired {
		c.record(0, 1, -1)
		return nil, fmt.Errorf("artifact: get %s: %w", id, ErrNotFound)
	}
	return out, nil
}

// Delete removes one artifact. Deleting a missing id is not an error.
func (c *Cache) Delete(id string) error {
	if err := c.update(func(tx *bolt.Tx) error {
		return deleteEntry(tx, id)
	}); err != nil {
		return fmt.Errorf("artifact: delete %s: %w", id, err)
	}
	c.record(0, 0, -1)
	return nil
}

// List returns metadata only, most recently accessed first. Blob bytes are
// never read.
func (c *Cache) List(filter ListFilter) ([]Meta, error) {
	now := timeNow().UTC()
	var out []Meta
	err := c.view(func(tx *bolt.Tx) error {
		metas, err := readMetas(tx)
		if err != nil {
			return err
		}
		for _, m := range metas {
			if filter.OwnerToolID != "" && m.OwnerToolID != filter.OwnerToolID {
				continue
			}
			if !filter.IncludeExpired && !now.Before(m.TTLExpiry) {
				continue
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: list: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastAccessedAt.After(out[j].LastAccessedAt)
	})
	return out, nil
}

// Stats walks the current rows; nothing is cached between calls.
func (c *Cache) Stats() (Stats, error) {
	st := Stats{MaxSize: c.maxBytes}
	err := c.view(func(tx *bolt.Tx) error {
		metas, err := readMetas(tx)
		if err != nil {
			return err
		}
		for _, m := range metas {
			st.TotalSize += m.SizeBytes
			st.TotalCount++
			created := m.CreatedAt
			if st.Oldest == nil || created.Before(*st.Oldest) {
				st.Oldest = &created
			}
			if st.Newest == nil || created.After(*st.Newest) {
				st.Newest = &created
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("artifact: stats: %w", err)
	}
	return st, nil
}

// Clear removes every artifact.
func (c *Cache) Clear() error {
	err := c.update(func(tx *bolt.Tx) error {
		for _, name := range []string{metaBucketName, blobBucketName} {
			if tx.Bucket([]byte(name)) == nil {
				continue
			}
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return fmt.Errorf("drop %s: %w", name, err)
			}
		}
		return ensureBuckets(tx)
	})
	if err != nil {
		return fmt.Errorf("artifact: clear: %w", err)
	}
	c.record(0, 0, 0)
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (c *Cache) view(fn func(*bolt.Tx) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return c.db.View(fn)
}

func (c *Cache) update(fn func(*bolt.Tx) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return c.db.Update(fn)
}

// record forwards counters to the recorder. total < 0 means "unknown,
// recompute".
func (c *Cache) record(evicted, expired int, total int64) {
	if c.recorder == nil {
		return
	}
	if evicted > 0 {
		c.recorder.CacheEvicted(evicted)
	}
	if expired > 0 {
		c.recorder.CacheExpired(expired)
	}
	if total < 0 {
		st, err := c.Stats()
		if err != nil {
			return
		}
		total = st.TotalSize
	}
	c.recorder.CacheSize(total)
}

func ensureBuckets(tx *bolt.Tx) error {
	for _, name := range []string{metaBucketName, blobBucketName} {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
	}
	return nil
}

func readMetas(tx *bolt.Tx) ([]Meta, error) {
	bucket := tx.Bucket([]byte(metaBucketName))
	if bucket == nil {
		return nil, fmt.Errorf("missing meta bucket")
	}
	var metas []Meta
	err := bucket.ForEach(func(key, value []byte) error {
		var m Meta
		if err := json.Unmarshal(value, &m); err != nil {
			return fmt.Errorf("decode meta %s: %w", key, err)
		}
		metas = append(metas, m)
		return nil
	})
	return metas, err
}

func deleteEntry(tx *bolt.Tx, id string) error {
	if err := tx.Bucket([]byte(metaBucketName)).Delete([]byte(id)); err != nil {
		return fmt.Errorf("delete meta %s: %w", id, err)
	}
	if err := tx.Bucket([]byte(blobBucketName)).Delete([]byte(id)); err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return nil
}

// sortLRU orders least recently accessed first; ties fall back to
// creation time then id so eviction is deterministic.
func sortLRU(metas []Meta) {
	sort.SliceStable(metas, func(i, j int) bool {
		a, b := metas[i], metas[j]
		if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
			return a.LastAccessedAt.Before(b.LastAccessedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
