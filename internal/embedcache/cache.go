// Package embedcache memoizes embedding vectors in BadgerDB.
//
// Keys are content addressed by model and text, so entries are shared only
// between identical inputs and a run never sees vectors derived from another
// run's configuration. The cache is advisory: every storage failure falls
// through to the wrapped embedder.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/sortir/internal/logging"
	"github.com/alexanderramin/sortir/internal/metrics"
	"github.com/alexanderramin/sortir/internal/ranking"
	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const keyPrefix = "emb:"

// Config holds cache settings.
type Config struct {
	Enabled bool          `koanf:"enabled"`
	Dir     string        `koanf:"dir"` // empty keeps the cache in memory
	TTL     time.Duration `koanf:"ttl" validate:"gte=0"`
}

// DefaultConfig keeps vectors on disk for a week.
func DefaultConfig() Config {
	return Config{Enabled: true, Dir: "embeddings", TTL: 7 * 24 * time.Hour}
}

// Open opens the badger store described by cfg.
func Open(cfg Config) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.Dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}
	return db, nil
}

// Embedder wraps another embedder with the cache.
type Embedder struct {
	inner ranking.Embedder
	db    *badger.DB
	model string
	ttl   time.Duration
}

// New returns a caching embedder. model scopes the keys.
func New(inner ranking.Embedder, db *badger.DB, model string, ttl time.Duration) *Embedder {
	return &Embedder{inner: inner, db: db, model: model, ttl: ttl}
}

// Key returns the cache key for text under model.
func Key(model, text string) []byte {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return []byte(keyPrefix + hex.EncodeToString(h.Sum(nil)))
}

// Embed serves cached vectors and sends only the misses to the inner
// embedder, preserving input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	log := logging.Ctx(ctx)

	out := make([][]float64, len(texts))
	hits, err := e.lookup(texts)
	if err != nil {
		log.Warn().Err(err).Msg("embedding cache read failed, bypassing")
		return e.inner.Embed(ctx, texts)
	}

	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := hits[i]; ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	metrics.EmbedCacheHits.Add(float64(len(texts) - len(missIdx)))
	metrics.EmbedCacheMisses.Add(float64(len(missIdx)))

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
	}

	if err := e.store(missTexts, vecs); err != nil {
		log.Warn().Err(err).Msg("embedding cache write failed")
	}
	return out, nil
}

func (e *Embedder) lookup(texts []string) (map[int][]float64, error) {
	hits := make(map[int][]float64)
	err := e.db.View(func(txn *badger.Txn) error {
		for i, t := range texts {
			item, err := txn.Get(Key(e.model, t))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var v []float64
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return err
			}
			hits[i] = v
		}
		return nil
	})
	return hits, err
}

func (e *Embedder) store(texts []string, vecs [][]float64) error {
	wb := e.db.NewWriteBatch()
	defer wb.Cancel()
	for i, t := range texts {
		data, err := json.Marshal(vecs[i])
		if err != nil {
			return fmt.Errorf("marshal vector: %w", err)
		}
		entry := badger.NewEntry(Key(e.model, t), data)
		if e.ttl > 0 {
			entry = entry.WithTTL(e.ttl)
		}
		if err := wb.SetEntry(entry); err != nil {
			return err
		}
	}
	return wb.Flush()
}
