package similarity

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
)

// wordEmbedder hashes words into a fixed number of buckets
type wordEmbedder struct {
	calls atomic.Int64
	fixed map[string][]float64
	err   error
}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.fixed[text]; ok {
		return v, nil
	}
	v := make([]float64, 32)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%32]++
	}
	// keep empty texts embeddable
	v[0] += 0.5
	return v, nil
}

type countingObserver struct {
	mu        sync.Mutex
	hits      int
	misses    int
	undefined int
}

func (o *countingObserver) RecordCacheLookup(_ context.Context, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func (o *countingObserver) RecordUndefinedSimilarity(context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.undefined++
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"scaled", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, -1}, []float64{-1, 1}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.LessOrEqual(t, got, 1.0)
			assert.GreaterOrEqual(t, got, -1.0)
		})
	}
}

func TestCosineUndefined(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
	}{
		{"empty", nil, []float64{1}},
		{"dimension mismatch", []float64{1, 2}, []float64{1, 2, 3}},
		{"zero vector", []float64{0, 0}, []float64{1, 1}},
		{"not finite", []float64{math.Inf(1), 1}, []float64{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Cosine(tt.a, tt.b)
			assert.ErrorIs(t, err, errors.ErrUndefinedSimilarity)
		})
	}
}

func TestSimilarityProperties(t *testing.T) {
	svc := NewService(&wordEmbedder{}, nil, errors.NewNopLogger())
	ctx := context.Background()

	texts := []string{
		"Développeur Go senior",
		`{"titre":"Data Scientist","disponibilite":null}`,
		"[]",
		"",
	}
	for _, text := range texts {
		self, err := svc.Similarity(ctx, text, text)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, self, 1e-6, "similarity(%q, itself)", text)
	}

	ab, err := svc.Similarity(ctx, texts[0], texts[1])
	require.NoError(t, err)
	ba, err := svc.Similarity(ctx, texts[1], texts[0])
	require.NoError(t, err)
	assert.InDelta(t, ab, ba, 1e-12)
}

func TestSimilarityUndefinedForZeroEmbedding(t *testing.T) {
	embedder := &wordEmbedder{fixed: map[string][]float64{"zero": {0, 0, 0}}}
	obs := &countingObserver{}
	svc := NewService(embedder, nil, errors.NewNopLogger()).WithObserver(obs)

	_, err := svc.Similarity(context.Background(), "zero", "zero")
	require.Error(t, err)
	assert.True(t, errors.HasType(err, errors.ErrorTypeSimilarity))
	assert.Equal(t, 1, obs.undefined)
}

func TestSimilarityEmbedderFailure(t *testing.T) {
	upstream := errors.NewServiceUnavailableError("huggingface", 503, "down", nil)
	svc := NewService(&wordEmbedder{err: upstream}, nil, errors.NewNopLogger())

	_, err := svc.Similarity(context.Background(), "a", "b")
	assert.ErrorIs(t, err, errors.ErrServiceUnavailable)
}

func TestEmbedUsesCache(t *testing.T) {
	embedder := &wordEmbedder{}
	obs := &countingObserver{}
	svc := NewService(embedder, NewMemoryCache(8), errors.NewNopLogger()).WithObserver(obs)
	ctx := context.Background()

	first, err := svc.Embed(ctx, "Go SQL Docker")
	require.NoError(t, err)
	second, err := svc.Embed(ctx, "Go SQL Docker")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, embedder.calls.Load())
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestMemoryCacheEvictsOldest(t *testing.T) {
	cache := NewMemoryCache(2)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", []float64{1}))
	require.NoError(t, cache.Set(ctx, "b", []float64{2}))
	require.NoError(t, cache.Set(ctx, "c", []float64{3}))

	_, ok, _ := cache.Get(ctx, "a")
	assert.False(t, ok)
	v, ok, _ := cache.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, []float64{3}, v)
	assert.Equal(t, 2, cache.Len())
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCache(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewRedisCache(client, "cvmatch:emb:", time.Hour)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, Key("hf/minilm", "texte"))
	require.NoError(t, err)
	assert.False(t, ok)

	want := []float64{0.1, -0.2, 0.30000000000000004}
	require.NoError(t, cache.Set(ctx, Key("hf/minilm", "texte"), want))

	got, ok, err := cache.Get(ctx, Key("hf/minilm", "texte"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	assert.True(t, mr.Exists("cvmatch:emb:"+Key("hf/minilm", "texte")))
	assert.Equal(t, time.Hour, mr.TTL("cvmatch:emb:"+Key("hf/minilm", "texte")))
}

func TestCacheErrorsAreIgnored(t *testing.T) {
	mr, client := newTestRedis(t)
	embedder := &wordEmbedder{}
	svc := NewService(embedder, NewRedisCache(client, "", time.Minute), errors.NewNopLogger())

	mr.Close()

	v, err := svc.Embed(context.Background(), "Go")
	require.NoError(t, err)
	assert.NotEmpty(t, v)
	assert.EqualValues(t, 1, embedder.calls.Load())
}

func TestLayeredCacheBackfillsMemory(t *testing.T) {
	_, client := newTestRedis(t)
	memory := NewMemoryCache(4)
	shared := NewRedisCache(client, "p:", time.Minute)
	cache := layeredCache{memory, shared}
	ctx := context.Background()

	require.NoError(t, shared.Set(ctx, "k", []float64{1, 2}))

	v, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2}, v)
	assert.Equal(t, 1, memory.Len())
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()
	logger := errors.NewNopLogger()

	cache, closeFn, err := NewCache(ctx, config.CacheConfig{Enabled: false}, logger)
	require.NoError(t, err)
	assert.Nil(t, cache)
	assert.NoError(t, closeFn())

	cache, _, err = NewCache(ctx, config.CacheConfig{Enabled: true, Capacity: 4}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, cache)

	mr := miniredis.RunT(t)
	cache, closeFn, err = NewCache(ctx, config.CacheConfig{
		Enabled:  true,
		Capacity: 4,
		Redis:    config.RedisConfig{Enabled: true, Addr: mr.Addr(), TTL: time.Minute},
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, layeredCache{}, cache)
	assert.NoError(t, closeFn())

	mr.Close()
	_, _, err = NewCache(ctx, config.CacheConfig{
		Enabled: true,
		Redis:   config.RedisConfig{Enabled: true, Addr: mr.Addr()},
	}, logger)
	assert.True(t, errors.HasType(err, errors.ErrorTypeNetwork))
}

func TestKeyIsStable(t *testing.T) {
	assert.Equal(t, Key("m", "abc"), Key("m", "abc"))
	assert.NotEqual(t, Key("m", "abc"), Key("m", "abd"))
	assert.NotEqual(t, Key("m1", "abc"), Key("m2", "abc"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Len(t, Key("", ""), 64)
}

// sizedEmbedder returns constant vectors of a fixed dimension for one model
type sizedEmbedder struct {
	model string
	dims  int
	calls atomic.Int64
}

func (e *sizedEmbedder) ModelID() string { return e.model }

func (e *sizedEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls.Add(1)
	v := make([]float64, e.dims)
	for i := range v {
		v[i] = float64(len(text)%7 + i + 1)
	}
	return v, nil
}

func TestSharedRedisKeepsModelsApart(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	logger := errors.NewNopLogger()

	small := &sizedEmbedder{model: "huggingface/minilm", dims: 384}
	large := &sizedEmbedder{model: "gemini/text-embedding-004", dims: 768}
	first := NewService(small, NewRedisCache(client, "cvmatch:emb:", time.Hour), logger)
	second := NewService(large, NewRedisCache(client, "cvmatch:emb:", time.Hour), logger)

	_, err := first.Embed(ctx, "Python SQL")
	require.NoError(t, err)

	score, err := second.Similarity(ctx, "Python SQL", "Python Java")
	require.NoError(t, err)
	assert.LessOrEqual(t, score, 1.0)
	assert.EqualValues(t, 2, large.calls.Load())

	v, err := second.Embed(ctx, "Python SQL")
	require.NoError(t, err)
	assert.Len(t, v, 768)
	assert.EqualValues(t, 2, large.calls.Load())
}
