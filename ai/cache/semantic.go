package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Embedder generates vector embeddings for cache lookups.
// This is a local interface to avoid a dependency on the embedding package.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SemanticCache is an in-memory cache matching on embedding similarity.
// Entries are scoped by an exact context hash: two entries compete on
// similarity only when their context hashes are identical.
type SemanticCache[V any] struct {
	mu       sync.Mutex
	entries  map[string]*semanticEntry[V]
	embedder Embedder

	threshold float64
	ttl       time.Duration
	maxSize   int

	hits                  int64
	misses                int64
	embeddingComputations int64

	now func() time.Time // test hook
}

type semanticEntry[V any] struct {
	embedding   []float32
	response    V
	timestamp   time.Time
	contextHash string
}

// SemanticStats represents semantic cache statistics.
type SemanticStats struct {
	Enabled               bool    `json:"enabled"`
	Hits                  int64   `json:"hits"`
	Misses                int64   `json:"misses"`
	HitRate               float64 `json:"hit_rate"`
	EmbeddingComputations int64   `json:"embedding_computations"`
	Size                  int     `json:"size"`
	MaxSize               int     `json:"max_size"`
	TTLSeconds            int64   `json:"ttl_seconds"`
	SimilarityThreshold   float64 `json:"similarity_threshold"`
}

// NewSemanticCache creates a new semantic cache.
// A nil embedder disables the cache: every Get is a miss and every Set a no-op.
func NewSemanticCache[V any](embedder Embedder, threshold float64, maxSize int, ttl time.Duration) *SemanticCache[V] {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.92
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	if embedder == nil {
		slog.Warn("embedding provider not configured, semantic cache disabled")
	}

	return &SemanticCache[V]{
		entries:   make(map[string]*semanticEntry[V]),
		embedder:  embedder,
		threshold: threshold,
		ttl:       ttl,
		maxSize:   maxSize,
		now:       time.Now,
	}
}

// Enabled reports whether the cache has an embedding provider.
func (c *SemanticCache[V]) Enabled() bool {
	return c.embedder != nil
}

// Get returns a cached response whose stored message is semantically similar
// to the query and whose context hash matches exactly. Embedding failures
// degrade to a miss without touching the hit/miss counters.
func (c *SemanticCache[V]) Get(ctx context.Context, message string, contextMap map[string]string) (V, bool) {
	var zero V
	if c.embedder == nil {
		return zero, false
	}

	queryEmbedding, err := c.embed(ctx, message)
	if err != nil {
		slog.Error("failed to compute query embedding", "error", err)
		return zero, false
	}

	contextHash := ContextHash(contextMap)

	c.mu.Lock()
	defer c.mu.Unlock()

	var bestMatch *semanticEntry[V]
	bestSimilarity := 0.0
	now := c.now()

	for key, entry := range c.entries {
		// Lazy eviction of expired entries during the scan
		if now.Sub(entry.timestamp) > c.ttl {
			delete(c.entries, key)
			continue
		}

		if entry.contextHash != contextHash {
			continue
		}

		similarity := CosineSimilarity(queryEmbedding, entry.embedding)
		if similarity > bestSimilarity && similarity >= c.threshold {
			bestSimilarity = similarity
			bestMatch = entry
		}
	}

	if bestMatch != nil {
		c.hits++
		slog.Debug("semantic cache hit", "similarity", bestSimilarity)
		return bestMatch.response, true
	}

	c.misses++
	return zero, false
}

// Set stores a response with its message embedding. Embedding failures are
// skipped silently: the caller already has the response, caching is best effort.
func (c *SemanticCache[V]) Set(ctx context.Context, message string, contextMap map[string]string, response V) {
	if c.embedder == nil {
		return
	}

	embedding, err := c.embed(ctx, message)
	if err != nil {
		slog.Error("failed to compute embedding for cache write", "error", err)
		return
	}

	contextHash := ContextHash(contextMap)
	sum := sha256.Sum256([]byte(message + ":" + contextHash))
	key := hex.EncodeToString(sum[:])

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &semanticEntry[V]{
		embedding:   embedding,
		response:    response,
		timestamp:   c.now(),
		contextHash: contextHash,
	}
}

func (c *SemanticCache[V]) embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.embeddingComputations++
	c.mu.Unlock()
	return c.embedder.Embed(ctx, text)
}

// evictOldest removes the entry with the smallest stored timestamp.
// Must be called with lock held.
func (c *SemanticCache[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.timestamp.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.timestamp
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Clear removes all entries and resets counters.
func (c *SemanticCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*semanticEntry[V])
	c.hits = 0
	c.misses = 0
	c.embeddingComputations = 0
}

// Stats returns cache statistics.
func (c *SemanticCache[V]) Stats() SemanticStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return SemanticStats{
		Enabled:               c.embedder != nil,
		Hits:                  c.hits,
		Misses:                c.misses,
		HitRate:               hitRate,
		EmbeddingComputations: c.embeddingComputations,
		Size:                  len(c.entries),
		MaxSize:               c.maxSize,
		TTLSeconds:            int64(c.ttl.Seconds()),
		SimilarityThreshold:   c.threshold,
	}
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns 0.0 on length mismatch or when either vector has zero norm, so a
// degenerate comparison can never register as a hit.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
