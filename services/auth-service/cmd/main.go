package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/matthewhartstonge/argon2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/cache"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/handler"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/notify"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/identity-portal/shared/auth"
	"github.com/vasapolrittideah/identity-portal/shared/mailer"
	"github.com/vasapolrittideah/identity-portal/shared/provider"
	"github.com/vasapolrittideah/identity-portal/shared/security"
	"github.com/vasapolrittideah/identity-portal/shared/sms"
	"github.com/vasapolrittideah/identity-portal/shared/utilities"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &logger, cfg); err != nil {
		logger.Fatal().Err(err).Msg("auth service stopped")
	}
}

func newLogger(cfg *config.AuthServiceConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout)
	if cfg.RunMode == config.RunModeDev {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger.Level(level).With().Timestamp().Str("service", cfg.Consul.ServiceName).Logger()
}

func run(ctx context.Context, logger *zerolog.Logger, cfg *config.AuthServiceConfig) error {
	identityRepo, closeRepo, err := openIdentityRepository(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	codeStore := cache.NewRedisCodeStore(rdb, cache.Options{
		Prefix:    cfg.Redis.KeyPrefix,
		OpTimeout: cfg.Redis.OpTimeout,
	})

	outbound := &http.Client{Timeout: cfg.OAuth.HTTPTimeout}
	dispatcher, err := newDispatcher(logger, cfg, outbound)
	if err != nil {
		return err
	}

	jwtAuth, err := auth.NewJWTAuthenticator(cfg.Token.Audience, cfg.Token.Issuer, cfg.Token.Algorithm)
	if err != nil {
		return err
	}
	tokens := usecase.NewTokenUsecase(jwtAuth, identityRepo, cfg.Token)
	hasher := security.NewHasher(argon2.DefaultConfig(), cfg.HashConcurrency)

	deps := &handler.Deps{
		Logger: logger,
		Config: cfg,
		Tokens: tokens,
		Login:  usecase.NewLoginUsecase(logger, identityRepo, codeStore, tokens, hasher, dispatcher, cfg),
		OAuth: usecase.NewOAuthUsecase(
			logger,
			identityRepo,
			codeStore,
			hasher,
			provider.NewAvatarFetcher(outbound),
			oauthProviders(cfg, outbound),
			cfg,
		),
		Register:      usecase.NewRegisterUsecase(logger, identityRepo, codeStore, tokens, hasher, dispatcher, cfg),
		PasswordReset: usecase.NewPasswordResetUsecase(logger, identityRepo, codeStore, hasher, dispatcher, cfg),
		Profile:       usecase.NewProfileUsecase(logger, identityRepo, codeStore, dispatcher, cfg),
	}

	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTP.Port)),
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := utilities.RegisterHealthServer(grpcServer, cfg.Consul.ServiceName)
	grpcListener, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(cfg.GRPC.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	deregister := func() error { return nil }
	if cfg.Consul.Addr != "" {
		deregister, err = utilities.RegisterConsulService(cfg.Consul.Addr, utilities.ServiceRegistration{
			Name:      cfg.Consul.ServiceName,
			Host:      cfg.Consul.ServiceHost,
			Port:      cfg.HTTP.Port,
			HealthURL: fmt.Sprintf("http://%s/healthz", net.JoinHostPort(cfg.Consul.ServiceHost, strconv.Itoa(cfg.HTTP.Port))),
		})
		if err != nil {
			return err
		}
		logger.Info().Str("consul", cfg.Consul.Addr).Msg("registered with consul")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Int("port", cfg.GRPC.Port).Msg("grpc health server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		if err := deregister(); err != nil {
			logger.Warn().Err(err).Msg("failed to deregister from consul")
		}
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http server did not shut down cleanly")
		}
		grpcServer.GracefulStop()

		if err := dispatcher.Wait(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("pending notifications were dropped")
		}
		return nil
	})

	return g.Wait()
}

func openIdentityRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	cfg *config.AuthServiceConfig,
) (repository.IdentityRepository, func(), error) {
	if cfg.Database.Driver == config.DriverMongo {
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
		if err := client.Ping(ctx, nil); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
		}

		repo := repository.NewIdentityMongoRepository(ctx, logger, client.Database(cfg.Mongo.Database), cfg.Database.OpTimeout)
		return repo, closeFn, nil
	}

	db, err := repository.OpenGorm(logger, string(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	repo := repository.NewIdentityGormRepository(logger, db, cfg.Database.OpTimeout, cfg.Database.AutoMigrate)
	return repo, closeFn, nil
}

// newDispatcher wires the senders that are configured. A channel without a
// sender logs and drops its messages.
func newDispatcher(logger *zerolog.Logger, cfg *config.AuthServiceConfig, httpClient *http.Client) (*notify.Dispatcher, error) {
	var (
		mail      notify.EmailSender
		smsSender notify.SMSSender
	)

	if cfg.Mail.Enabled() {
		m, err := mailer.New(cfg.Mail)
		if err != nil {
			return nil, err
		}
		mail = m
	} else {
		logger.Warn().Msg("SMTP is not configured, emails will be dropped")
	}

	if cfg.SMS.Enabled() {
		c, err := sms.New(cfg.SMS, httpClient)
		if err != nil {
			return nil, err
		}
		smsSender = c
	} else {
		logger.Warn().Msg("SMS gateway is not configured, text messages will be dropped")
	}

	return notify.NewDispatcher(logger, mail, smsSender, cfg.NotifyTimeout), nil
}

func oauthProviders(cfg *config.AuthServiceConfig, httpClient *http.Client) []provider.Provider {
	var providers []provider.Provider

	if cfg.OAuth.GoogleEnabled() {
		providers = append(providers, provider.NewGoogleOAuthProvider(provider.Config{
			ClientID:     cfg.OAuth.GoogleClientID,
			ClientSecret: cfg.OAuth.GoogleClientSecret,
			RedirectURL:  cfg.OAuth.GoogleRedirectURL,
			HTTPClient:   httpClient,
		}))
	}
	if cfg.OAuth.GithubEnabled() {
		providers = append(providers, provider.NewGithubOAuthProvider(provider.Config{
			ClientID:     cfg.OAuth.GithubClientID,
			ClientSecret: cfg.OAuth.GithubClientSecret,
			RedirectURL:  cfg.OAuth.GithubRedirectURL,
			HTTPClient:   httpClient,
		}))
	}

	return providers
}
