package identity

import (
	"errors"

	internalpkg "github.com/stocktrack/identity/internal"
	internalaudit "github.com/stocktrack/identity/internal/audit"
	"github.com/stocktrack/identity/jwt"
	"github.com/stocktrack/identity/password"
)

// Builder assembles an [Engine]. Construction is allocation-only; no I/O
// happens until the engine methods run.
//
// Builder instances are intended to be configured during initialization and
// then treated as immutable.
type Builder struct {
	config    Config
	store     AccountStore
	keys      KeyProvider
	auditSink AuditSink

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore supplies the persistence backend.
func (b *Builder) WithStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithKeyProvider supplies the pepper and signing key material. The provider
// is read exactly once, during Build.
func (b *Builder) WithKeyProvider(keys KeyProvider) *Builder {
	b.keys = keys
	return b
}

// WithAuditSink supplies the audit event receiver.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the wiring and constructs the engine. A Builder may build
// at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("account store required")
	}
	if b.keys == nil {
		return nil, errors.New("key provider required")
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	}, b.keys.Pepper())
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Algorithm: jwt.Algorithm(b.keys.Algorithm()),
		Key:       b.keys.SigningKey(),
		Issuer:    "urn:" + cfg.Namespace,
		Audience:  "urn:" + cfg.Namespace + ":be",
		AccessTTL: cfg.JWT.AccessTTL,
	})
	if err != nil {
		return nil, err
	}

	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return &Engine{
		config:     cfg,
		store:      b.store,
		hasher:     hasher,
		jwtManager: jwtManager,
		urn:        internalpkg.NewURNCodec(cfg.Namespace),
		audit:      dispatcher,
		metrics:    NewMetrics(cfg.Metrics),
	}, nil
}
