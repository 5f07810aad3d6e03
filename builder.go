package authcore

import (
	"errors"
	"fmt"

	"github.com/larslab/authcore/logging"
	"github.com/larslab/authcore/refresh"
	"github.com/larslab/authcore/refresh/memstore"
	"github.com/larslab/authcore/token"
)

// Builder assembles an Engine. Configure, then call Build exactly once;
// misconfiguration fails at Build, never at request time.
type Builder struct {
	config Config

	store   refresh.Store
	users   UserProvider
	log     logging.Logger
	metrics bool

	built bool
}

// New returns a Builder with metrics enabled and defaults everywhere else.
func New() *Builder {
	return &Builder{metrics: true}
}

// WithConfig sets the full configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the refresh-credential backend. Without one, Build falls
// back to the in-process store, which does not survive a restart.
func (b *Builder) WithStore(store refresh.Store) *Builder {
	b.store = store
	return b
}

// WithUserProvider wires the host application's user store. When set, the
// Engine re-checks the subject on every rotation.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.users = up
	return b
}

// WithLogger sets the structured logger. Defaults to slog.
func (b *Builder) WithLogger(log logging.Logger) *Builder {
	b.log = log
	return b
}

// WithMetricsEnabled toggles the counter set.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.metrics = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. A weak
// signing key is a hard failure here.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	log := b.log
	if log == nil {
		log = logging.Default()
	}

	tokens, err := token.NewManager(b.config.Token)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	store := b.store
	if store == nil {
		store = memstore.New()
	}

	var metrics *Metrics
	if b.metrics {
		metrics = NewMetrics()
	}

	return &Engine{
		config:  b.config,
		tokens:  tokens,
		refresh: refresh.NewService(store, b.config.Refresh),
		users:   b.users,
		metrics: metrics,
		log:     log,
	}, nil
}
