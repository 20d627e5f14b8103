package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/dmitrymomot/wxauth/core/cache"
	"github.com/dmitrymomot/wxauth/core/logger"
)

// Feature is the cache feature receipts are stored under.
const Feature = "receipt"

// ContentType of rendered receipts.
const ContentType = "image/svg+xml"

var idPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Artifact identifies a rendered receipt.
type Artifact struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
}

// Generator renders receipts once per distinct content and serves them from
// the cache afterwards.
type Generator struct {
	cache  *cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewGenerator keeps rendered receipts for ttl.
func NewGenerator(c *cache.Cache, ttl time.Duration, log *slog.Logger) *Generator {
	if log == nil {
		log = logger.Discard()
	}
	return &Generator{cache: c, ttl: ttl, logger: log}
}

// TTL is how long a rendered receipt stays available.
func (g *Generator) TTL() time.Duration { return g.ttl }

// Generate validates r and returns the artifact of its rendering. Equal
// receipts share one artifact.
func (g *Generator) Generate(ctx context.Context, r Receipt) (Artifact, error) {
	if err := r.Validate(); err != nil {
		return Artifact{}, err
	}
	key, err := cache.Key(Feature, r)
	if err != nil {
		return Artifact{}, err
	}

	svg, err := cache.GetOrCompute(ctx, g.cache, key, g.ttl, func(ctx context.Context) ([]byte, error) {
		start := time.Now()
		out, err := Render(r)
		if err != nil {
			return nil, fmt.Errorf("receipt: render: %w", err)
		}
		g.logger.InfoContext(ctx, "receipt rendered",
			logger.CacheKey(key),
			slog.Int("size", len(out)),
			logger.Duration(time.Since(start)),
		)
		return out, nil
	})
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{ID: key[len(Feature+":cache:"):], Size: len(svg)}, nil
}

// Load returns the rendered receipt with id.
func (g *Generator) Load(ctx context.Context, id string) ([]byte, error) {
	if !idPattern.MatchString(id) {
		return nil, ErrNotFound
	}
	svg, ok, err := cache.Peek[[]byte](ctx, g.cache, Feature+":cache:"+id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return svg, nil
}
