package classifier

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
	Close() error
}

// TextEncoder is a raw, uncached embedding backend such as the ONNX encoder
// or an Ollama server.
type TextEncoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Close() error
}

// CacheOptions configures a CachedEmbedder.
type CacheOptions struct {
	ModelID  string
	CacheDir string // empty disables the disk cache
	Logger   *zap.Logger
}

// CachedEmbedder puts a memory cache and an optional disk cache in front of
// a TextEncoder. Concurrent requests for the same text share one encode call.
type CachedEmbedder struct {
	enc      TextEncoder
	modelID  string
	cacheDir string
	logger   *zap.Logger

	mu       sync.RWMutex
	memCache map[string][]float32
	inflight singleflight.Group
}

// NewCachedEmbedder prepares the cache directory and wraps enc.
func NewCachedEmbedder(enc TextEncoder, opts CacheOptions) (*CachedEmbedder, error) {
	if enc == nil {
		return nil, errors.New("text encoder is required")
	}
	if opts.CacheDir != "" {
		if err := os.MkdirAll(opts.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		enc:      enc,
		modelID:  opts.ModelID,
		cacheDir: opts.CacheDir,
		logger:   logger,
		memCache: make(map[string][]float32),
	}, nil
}

// Close releases the encoder.
func (c *CachedEmbedder) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memCache = nil
	if c.enc == nil {
		return nil
	}
	err := c.enc.Close()
	c.enc = nil
	return err
}

// ModelID returns the identifier used for cache keys and term tables.
func (c *CachedEmbedder) ModelID() string {
	return c.modelID
}

// EmbedText embeds the normalized form of text.
func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	c.mu.RLock()
	enc := c.enc
	c.mu.RUnlock()
	if enc == nil {
		return nil, errors.New("embedder is closed")
	}
	normalized := NormalizeText(text)
	key := c.cacheKey(normalized)
	if vec := c.getFromCache(key); vec != nil {
		return vec, nil
	}
	v, err, _ := c.inflight.Do(key, func() (any, error) {
		if vec, err := c.loadFromDisk(key); err == nil {
			c.storeInMemory(key, vec)
			return vec, nil
		}
		vec, err := enc.Encode(ctx, normalized)
		if err != nil {
			return nil, err
		}
		c.storeInMemory(key, vec)
		if err := c.saveToDisk(key, vec); err != nil {
			c.logger.Warn("embedding cache write failed", zap.Error(err))
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneVector(v.([]float32)), nil
}

// EmbedTexts embeds a slice of strings sequentially.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := c.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, c.modelID)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) getFromCache(key string) []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if vec, ok := c.memCache[key]; ok {
		return cloneVector(vec)
	}
	return nil
}

func (c *CachedEmbedder) storeInMemory(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memCache != nil {
		c.memCache[key] = cloneVector(vec)
	}
}

func (c *CachedEmbedder) loadFromDisk(key string) ([]float32, error) {
	if c.cacheDir == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(filepath.Join(c.cacheDir, key+".bin"))
	if err != nil {
		return nil, err
	}
	return DecodeVector(data)
}

func (c *CachedEmbedder) saveToDisk(key string, vec []float32) error {
	if c.cacheDir == "" {
		return nil
	}
	buf, err := EncodeVector(vec)
	if err != nil {
		return err
	}
	path := filepath.Join(c.cacheDir, key+".bin")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
