package worldcache

import (
	"go.uber.org/zap"

	"github.com/markdrei/spacewars-cache/pkg/metrics"
	"github.com/markdrei/spacewars-cache/pkg/model"
)

// Option configures a Cache at construction time.
type Option func(*config)

type config struct {
	logger  *zap.Logger
	metrics metrics.Sink
	bounds  model.WorldBounds
}

func defaultConfig() *config {
	return &config{
		logger:  zap.NewNop(),
		metrics: metrics.Noop,
		bounds:  model.DefaultWorldBounds,
	}
}

// WithLogger plugs a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables a metrics.Sink.
func WithMetrics(m metrics.Sink) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithBounds overrides the default 5000x5000 world bounds. Bounds are
// configuration, never a compiled-in literal.
func WithBounds(b model.WorldBounds) Option {
	return func(c *config) {
		c.bounds = b
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
