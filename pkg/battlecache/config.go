package battlecache

import (
	"time"

	"go.uber.org/zap"

	"github.com/markdrei/spacewars-cache/pkg/metrics"
)

// Option configures a Cache at construction time.
type Option func(*config)

type config struct {
	logger  *zap.Logger
	metrics metrics.Sink

	persistInterval       time.Duration
	enableAutoPersistence bool
}

func defaultConfig() *config {
	return &config{
		logger:                zap.NewNop(),
		metrics:               metrics.Noop,
		persistInterval:       30 * time.Second,
		enableAutoPersistence: true,
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

// WithPersistInterval overrides the default 30s background flush period.
// BattleCache's timer runs independently of UserCache's (§4.6).
func WithPersistInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.persistInterval = d
		}
	}
}

// WithAutoPersistence toggles the background flush timer. Test mode
// passes false.
func WithAutoPersistence(enabled bool) Option {
	return func(c *config) {
		c.enableAutoPersistence = enabled
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
