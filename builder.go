package tokengate

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tokengate/tokengate/internal/rate"
	"github.com/tokengate/tokengate/internal/stores"
	"github.com/tokengate/tokengate/internal/token"
	"github.com/tokengate/tokengate/jwt"
	"github.com/tokengate/tokengate/password"
)

// Builder assembles an [Engine]. Redis is the only hard dependency; the user
// provider and mail sender are needed only when the orchestration flows
// (login, password reset, email verification) are used.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	mailSender   MailSender
	log          *slog.Logger

	built bool
}

// NewBuilder starts a builder with default configuration.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the key-value store client shared by all managers.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the identity store used by orchestration flows.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithMailSender sets the transport behind the background delivery queue.
func (b *Builder) WithMailSender(sender MailSender) *Builder {
	b.mailSender = sender
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.log = log
	return b
}

// Build validates the configuration, proves the entropy source works, and
// returns a ready Engine. A broken entropy source fails the build — the
// process must not serve traffic while token generation is degraded.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}

	cfg := b.config.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	codec := token.NewCodec()
	if err := codec.SelfCheck(); err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Secret:    cfg.JWT.Secret,
		AccessTTL: cfg.JWT.AccessTTL,
		Issuer:    cfg.JWT.Issuer,
		Leeway:    cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = slog.Default()
	}

	engine := &Engine{
		config:       cfg,
		codec:        codec,
		refreshStore: stores.NewRefreshStore(b.redis),
		verifyStore:  stores.NewVerificationStore(b.redis),
		limiter: rate.New(b.redis, rate.Config{
			Quota:  cfg.RateLimit.Quota,
			Window: cfg.RateLimit.Window,
		}),
		jwtManager:   jwtManager,
		passwordHash: hasher,
		users:        b.userProvider,
		log:          log,
	}
	engine.mail = newMailDispatcher(cfg.Mail, b.mailSender, log)

	b.built = true
	return engine, nil
}
