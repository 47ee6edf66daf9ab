package draftstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Store is a DraftStore that owns a connection or a background sweeper
type Store interface {
	rental.DraftStore
	io.Closer
	Ping(ctx context.Context) error
}

// Factory creates draft stores based on configuration
type Factory struct {
	draftConfig config.DraftConfig
	redisConfig config.RedisConfig
	logger      *zap.Logger
	sweep       time.Duration
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithSweepInterval sets how often the in-memory store drops expired drafts
func WithSweepInterval(d time.Duration) FactoryOption {
	return func(f *Factory) {
		f.sweep = d
	}
}

// NewFactory creates a new factory
func NewFactory(draft config.DraftConfig, redisCfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		draftConfig: draft,
		redisConfig: redisCfg,
		logger:      zap.NewNop(),
		sweep:       time.Minute,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns the configured store. When Redis is configured but
// unreachable it falls back to memory if the configuration allows it.
func (f *Factory) CreateStore(ctx context.Context) (Store, error) {
	switch f.draftConfig.Store {
	case "memory":
		f.logger.Info("using in-memory draft store")
		return NewMemoryStore(f.draftConfig.TTL, f.sweep), nil
	case "redis", "":
	default:
		return nil, fmt.Errorf("unknown draft store %q", f.draftConfig.Store)
	}

	store, err := NewRedisStore(ctx, f.redisConfig, f.draftConfig.TTL)
	if err == nil {
		f.logger.Info("using Redis draft store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.draftConfig.FallbackToMemory {
		return nil, fmt.Errorf("Redis required for draft persistence but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory draft store. "+
		"Drafts will not survive a restart.",
		zap.Error(err),
	)
	return NewMemoryStore(f.draftConfig.TTL, f.sweep), nil
}
