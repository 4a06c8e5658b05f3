package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/time/rate"

	"github.com/mnemo-ai/mnemo/internal/model"
	"github.com/mnemo-ai/mnemo/internal/textprep"
)

// Result is a gateway embedding response. Callers must check Provider
// and Dims before assuming compatibility with stored vectors: a cache
// or fallback hit may come from a different embedding space than the
// one requested.
type Result struct {
	Vector   Vector `json:"vector"`
	Provider string `json:"provider"`
	Dims     int    `json:"dims"`
	Cached   bool   `json:"cached"`
	Fallback bool   `json:"fallback"`
}

// ProviderSpec binds a provider to its per-provider limits.
type ProviderSpec struct {
	Provider      Provider
	MaxInputChars int           // 0 uses textprep.DefaultMaxInput
	MaxRequests   int           // 0 disables rate limiting
	Window        time.Duration // rolling window for MaxRequests
}

// GatewayConfig configures gateway-wide behavior.
type GatewayConfig struct {
	Default      string        // default provider name, required
	CacheTTL     time.Duration // 0 means 24h
	CacheEntries int64         // 0 means 10000
	HashFallback bool          // enable the deterministic final fallback
	HashDims     int
}

type providerEntry struct {
	provider Provider
	maxInput int
	limiter  *rate.Limiter
}

// Gateway produces embedding vectors through configured providers with
// caching, rate limiting, and a fallback chain. Cache and rate-limit
// state is process-wide and resets on restart; accuracy across
// multiple process instances is best-effort.
type Gateway struct {
	entries     map[string]*providerEntry
	order       []string // default first, then registration order
	defaultName string
	cache       *ristretto.Cache
	ttl         time.Duration
	hash        *HashProvider // nil disables the hash fallback
	logger      *slog.Logger
}

type cachedVector struct {
	vec Vector
}

// NewGateway builds a gateway over the given providers. Provider order
// determines fallback preference after the default.
func NewGateway(cfg GatewayConfig, specs []ProviderSpec, logger *slog.Logger) (*Gateway, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("gateway: at least one provider required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	entries := cfg.CacheEntries
	if entries <= 0 {
		entries = 10000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: entries * 10,
		MaxCost:     entries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway cache: %w", err)
	}

	g := &Gateway{
		entries:     make(map[string]*providerEntry, len(specs)),
		defaultName: cfg.Default,
		cache:       cache,
		ttl:         ttl,
		logger:      logger,
	}
	if cfg.HashFallback {
		g.hash = NewHashProvider(cfg.HashDims)
	}

	for _, sp := range specs {
		name := sp.Provider.Name()
		if _, dup := g.entries[name]; dup {
			return nil, fmt.Errorf("gateway: duplicate provider %q", name)
		}
		e := &providerEntry{provider: sp.Provider, maxInput: sp.MaxInputChars}
		if e.maxInput <= 0 {
			e.maxInput = textprep.DefaultMaxInput
		}
		if sp.MaxRequests > 0 {
			window := sp.Window
			if window <= 0 {
				window = time.Minute
			}
			e.limiter = rate.NewLimiter(
				rate.Limit(float64(sp.MaxRequests)/window.Seconds()),
				sp.MaxRequests,
			)
		}
		g.entries[name] = e
		g.order = append(g.order, name)
	}

	if g.defaultName == "" {
		g.defaultName = g.order[0]
	}
	if _, ok := g.entries[g.defaultName]; !ok {
		return nil, fmt.Errorf("gateway: default provider %q not configured", g.defaultName)
	}
	// Default leads the fallback order.
	order := []string{g.defaultName}
	for _, name := range g.order {
		if name != g.defaultName {
			order = append(order, name)
		}
	}
	g.order = order

	return g, nil
}

// Embed produces a vector for text via the named provider (or the
// default when name is empty), falling back per the gateway chain:
// cache under any provider, one retry against an alternate provider,
// then the deterministic hash vector when enabled.
func (g *Gateway) Embed(ctx context.Context, text, name string) (*Result, error) {
	return g.embed(ctx, text, name, g.hash != nil)
}

// EmbedStrict is Embed without the hash fallback: it fails instead of
// degrading, so callers that persist vectors (consolidation backfill)
// can retry with a real provider later.
func (g *Gateway) EmbedStrict(ctx context.Context, text, name string) (*Result, error) {
	return g.embed(ctx, text, name, false)
}

func (g *Gateway) embed(ctx context.Context, text, name string, allowHash bool) (*Result, error) {
	norm := textprep.Normalize(text)
	if norm == "" {
		return nil, fmt.Errorf("empty text: %w", model.ErrInvalidRequest)
	}
	if name == "" {
		name = g.defaultName
	}
	entry, ok := g.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q: %w", name, model.ErrInvalidRequest)
	}

	input := textprep.Truncate(norm, entry.maxInput)
	if r := g.cached(name, input); r != nil {
		return r, nil
	}

	vec, primaryErr := g.call(ctx, name, entry, input)
	if primaryErr == nil {
		return &Result{Vector: vec, Provider: name, Dims: len(vec)}, nil
	}
	g.logger.Warn("embedding provider failed", "provider", name, "error", primaryErr)

	// Fallback 1: a cached vector for the same text under any other
	// provider. Dimensions may differ; the caller checks Provider.
	for _, other := range g.order {
		if other == name {
			continue
		}
		otherInput := textprep.Truncate(norm, g.entries[other].maxInput)
		if r := g.cached(other, otherInput); r != nil {
			return r, nil
		}
	}

	// Fallback 2: one retry against the first alternate provider.
	for _, other := range g.order {
		if other == name {
			continue
		}
		alt := g.entries[other]
		altInput := textprep.Truncate(norm, alt.maxInput)
		vec, err := g.call(ctx, other, alt, altInput)
		if err == nil {
			return &Result{Vector: vec, Provider: other, Dims: len(vec), Fallback: true}, nil
		}
		g.logger.Warn("alternate embedding provider failed", "provider", other, "error", err)
		break
	}

	// Fallback 3: deterministic hash vector. Never fails, never cached,
	// explicitly lower semantic quality.
	if allowHash && g.hash != nil {
		vec, _ := g.hash.Embed(ctx, input)
		return &Result{Vector: vec, Provider: g.hash.Name(), Dims: len(vec), Fallback: true}, nil
	}

	return nil, fmt.Errorf("%w: %v", model.ErrEmbeddingFailed, primaryErr)
}

// call runs one rate-limit-checked provider request and caches success.
func (g *Gateway) call(ctx context.Context, name string, entry *providerEntry, input string) (Vector, error) {
	if entry.limiter != nil && !entry.limiter.Allow() {
		return nil, fmt.Errorf("provider %q: %w", name, model.ErrRateLimited)
	}
	vec, err := entry.provider.Embed(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("provider %q returned empty vector", name)
	}
	g.cache.SetWithTTL(cacheKey(name, input), &cachedVector{vec: vec}, 1, g.ttl)
	g.cache.Wait()
	return vec, nil
}

func (g *Gateway) cached(name, input string) *Result {
	v, ok := g.cache.Get(cacheKey(name, input))
	if !ok {
		return nil
	}
	cv := v.(*cachedVector)
	return &Result{Vector: cv.vec, Provider: name, Dims: len(cv.vec), Cached: true}
}

func cacheKey(provider, input string) string {
	return provider + "\x00" + input
}

// Close releases cache resources.
func (g *Gateway) Close() {
	g.cache.Close()
}
