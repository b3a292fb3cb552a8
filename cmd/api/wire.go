package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/application/auth"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/application/verification"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/config"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/awsconf"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/dynamo"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/google"
	jwtinfra "github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/jwt"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/memory"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/metrics"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/notify"
	redisinfra "github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/redis"
	s3infra "github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/s3"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/smtp"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/sns"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/password"
	transporthttp "github.com/Modett/modett-ecommerce-platform-sub000/internal/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// userStore is satisfied by both the DynamoDB and in-memory user stores.
type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
}

// app is the fully wired process.
type app struct {
	auth         auth.Service
	verification verification.Service
	cleaner      *verification.Cleaner
	deps         *transporthttp.Deps
	closers      []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func policiesFromConfig(cfg *config.Config) domain.Policies {
	p := domain.DefaultPolicies()
	set := func(purpose domain.Purpose, ttl time.Duration) {
		if ttl <= 0 {
			return
		}
		pp := p[purpose]
		pp.TTL = ttl
		p[purpose] = pp
	}
	set(domain.PurposeEmailVerification, cfg.EmailTokenTTL)
	set(domain.PurposePhoneVerification, cfg.PhoneCodeTTL)
	set(domain.PurposePasswordReset, cfg.ResetTokenTTL)
	return p
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	now := time.Now
	policies := policiesFromConfig(cfg)
	limitPolicy := verification.RateLimitPolicy{MaxAttempts: cfg.SendMaxAttempts, Window: cfg.SendWindow}

	var (
		users    userStore
		tokens   *verification.TokenStore
		limiter  *verification.RateLimiter
		auditLog *verification.AuditLog
	)

	awsCfg, err := awsconf.Load(ctx, cfg, "")
	if err != nil {
		return nil, err
	}

	switch cfg.StorageDriver {
	case "memory":
		slog.Warn("using in-memory storage; data is lost on restart")
		users = memory.NewUserStore()
		tokens = verification.NewTokenStore(memory.NewTokenStore(), policies, now)
		limiter = verification.NewRateLimiter(memory.NewRateLimitStore(), limitPolicy, now)
		auditLog = verification.NewAuditLog(memory.NewAuditLogStore(), nil, cfg.AuditRetention, now)
	default:
		client := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
		var archiver verification.Archiver
		if cfg.AuditArchiveBucket != "" {
			archiver = s3infra.NewStore(s3infra.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.AuditArchiveBucket)
		}
		users = dynamo.NewUserRepo(client, cfg.DynamoTables.Users)
		tokens = verification.NewTokenStore(dynamo.NewTokenRepo(client, cfg.DynamoTables.VerificationTokens), policies, now)
		limiter = verification.NewRateLimiter(dynamo.NewRateLimitRepo(client, cfg.DynamoTables.RateLimits), limitPolicy, now)
		auditLog = verification.NewAuditLog(dynamo.NewAuditLogRepo(client, cfg.DynamoTables.AuditLogs), archiver, cfg.AuditRetention, now)
	}

	if cfg.RateLimitBackend == "redis" {
		rdb, err := redisinfra.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		limiter = verification.NewRateLimiter(redisinfra.NewRateLimitRepo(rdb), limitPolicy, now)
	}

	snsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		a.close()
		return nil, err
	}
	notifier := notify.New(smtp.NewMailer(cfg), sns.NewSender(snsCfg, cfg.AWSEndpointURL), cfg.PublicBaseURL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	signer, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("token signer: %w", err)
	}

	a.verification = verification.NewService(verification.ServiceDeps{
		Users:    users,
		Tokens:   tokens,
		Limiter:  limiter,
		Audit:    auditLog,
		Notifier: notifier,
		Metrics:  m,
	})

	authDeps := auth.ServiceDeps{
		Users:       users,
		Hasher:      password.NewHasher(cfg.BcryptCost),
		Signer:      signer,
		ResetTokens: a.verification,
		Metrics:     m,
	}
	if cfg.GoogleClientID != "" {
		authDeps.Google = google.NewVerifier(cfg.GoogleClientID)
	}
	a.auth = auth.NewService(authDeps)

	a.cleaner = verification.NewCleaner(a.verification, cfg.CleanupInterval, m)
	a.deps = &transporthttp.Deps{
		Auth:         a.auth,
		Verification: a.verification,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
	return a, nil
}
