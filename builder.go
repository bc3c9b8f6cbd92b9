package authform

import (
	"errors"

	"github.com/MrEthical07/authform/internal/limiters"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. It is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	lookup    EmailLookup
	backend   Backend
	auditSink AuditSink
	logger    *zap.Logger

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the client backing the server-side throttles. It is only
// required when LookupThrottle or SubmitThrottle is enabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithEmailLookup(lookup EmailLookup) *Builder {
	b.lookup = lookup
	return b
}

func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms records lookup latency buckets. It has no effect unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.lookup == nil {
		return nil, errors.New("email lookup required")
	}
	if b.backend == nil {
		return nil, errors.New("backend required")
	}
	if b.redis == nil && (cfg.LookupThrottle.Enabled || cfg.SubmitThrottle.Enabled) {
		return nil, errors.New("throttles require redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:  cfg,
		lookup:  b.lookup,
		backend: b.backend,
		logger:  logger.Named("authform"),
	}

	if cfg.LookupThrottle.Enabled {
		engine.lookupLimiter = limiters.NewLookupLimiter(b.redis, limiters.LookupConfig{
			EnableIdentifierThrottle: cfg.LookupThrottle.EnableIdentifierThrottle,
			EnableIPThrottle:         cfg.LookupThrottle.EnableIPThrottle,
			MaxAttempts:              cfg.LookupThrottle.MaxAttempts,
			Window:                   cfg.LookupThrottle.Window,
		})
	}
	if cfg.SubmitThrottle.Enabled {
		engine.submitLimiter = limiters.NewSubmitLimiter(b.redis, limiters.SubmitConfig{
			EnableIdentifierThrottle: cfg.SubmitThrottle.EnableIdentifierThrottle,
			EnableIPThrottle:         cfg.SubmitThrottle.EnableIPThrottle,
			MaxAttempts:              cfg.SubmitThrottle.MaxAttempts,
			Cooldown:                 cfg.SubmitThrottle.Window,
		})
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, engine.logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
