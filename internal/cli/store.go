package cli

import (
	"io"
	"log/slog"

	"github.com/aretw0/loom/pkg/adapters/file"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/adapters/redis"
	"github.com/aretw0/loom/pkg/persistence/middleware"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/session"
)

// Backend is an opened snapshot store with its optional distributed locker.
type Backend struct {
	Store  ports.SnapshotStore
	Locker ports.DistributedLocker
	closer io.Closer
}

// Close releases the backend connection, if any.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// OpenBackend builds the snapshot store described by cfg, wrapped with the
// PII and encryption middlewares when configured. Masking runs before encryption.
func OpenBackend(cfg Config, logger *slog.Logger) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{}
	switch cfg.Store {
	case StoreFile:
		b.Store = file.New(cfg.DataDir)
	case StoreRedis:
		rs := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithPrefix(cfg.RedisPrefix))
		b.Store = rs
		b.Locker = redis.NewLocker(rs.Client(), cfg.RedisPrefix)
		b.closer = rs
	default:
		b.Store = memory.NewStore()
	}

	var mws []middleware.Middleware
	if len(cfg.PIIKeys) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.PIIKeys))
	}
	active, fallback, _ := cfg.Keys()
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	b.Store = middleware.Chain(b.Store, mws...)

	logger.Info("Snapshot store ready",
		"store", cfg.Store,
		"encrypted", active != nil,
		"pii_keys", len(cfg.PIIKeys),
		"distributed_lock", b.Locker != nil,
	)
	return b, nil
}

// NewManager creates a document manager over the backend.
func (b *Backend) NewManager(logger *slog.Logger, opts ...session.Option) *session.Manager {
	base := []session.Option{session.WithLogger(logger)}
	if b.Locker != nil {
		base = append(base, session.WithLocker(b.Locker))
	}
	return session.NewManager(b.Store, append(base, opts...)...)
}
