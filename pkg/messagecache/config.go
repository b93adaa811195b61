package messagecache

import (
	"go.uber.org/zap"

	"github.com/markdrei/spacewars-cache/pkg/metrics"
)

// Option configures a Cache at construction time, following the same
// functional-option shape as the teacher's cache.Option[K,V].
type Option func(*config)

type config struct {
	logger  *zap.Logger
	metrics metrics.Sink
}

func defaultConfig() *config {
	return &config{logger: zap.NewNop(), metrics: metrics.Noop}
}

// WithLogger plugs a structured logger. The cache only logs slow-path
// events (pending-insert failures, store errors) — never on the
// Get/Create hot path.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables a metrics.Sink (typically backed by Prometheus).
func WithMetrics(m metrics.Sink) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
