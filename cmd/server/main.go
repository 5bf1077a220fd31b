package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/citifix/backend/internal/auth"
	"github.com/citifix/backend/internal/classifier"
	"github.com/citifix/backend/internal/config"
	"github.com/citifix/backend/internal/db"
	"github.com/citifix/backend/internal/events"
	"github.com/citifix/backend/internal/geocode"
	httpapi "github.com/citifix/backend/internal/http"
	"github.com/citifix/backend/internal/metrics"
	"github.com/citifix/backend/internal/ratelimit"
	"github.com/citifix/backend/internal/resilience"
	"github.com/citifix/backend/internal/service"
	"github.com/citifix/backend/internal/session"
	"github.com/citifix/backend/internal/storage"
)

// @title Citifix API
// @version 1.0
// @description Community problem reporting backend.
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", "citifix-backend").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var router http.Handler
	if !cfg.Configured() {
		logger.Warn().Strs("missing", cfg.Missing()).Msg("backend not configured, serving setup instructions")
		router = httpapi.Router(cfg, httpapi.Deps{Logger: logger})
	} else {
		deps, cleanup := wire(ctx, cfg, logger)
		defer cleanup()
		router = httpapi.Router(cfg, deps)
	}

	if cfg.RequestTimeout > 0 {
		router = http.TimeoutHandler(router, cfg.RequestTimeout, `{"error":{"code":"TIMEOUT","message":"Request timed out"}}`)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

func wire(ctx context.Context, cfg config.Config, logger zerolog.Logger) (httpapi.Deps, func()) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	m := metrics.New("citifix-backend")
	breaker := resilience.New(resilience.DefaultConfig(), logger)
	breaker.Ignore = func(err error) bool {
		return errors.Is(err, db.ErrNotFound) || auth.IsClientError(err)
	}

	var repo db.Repository
	if cfg.DatabaseURL != "" {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		closers = append(closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare schema")
		}
		repo = store
	} else {
		logger.Info().Msg("DATABASE_URL not set, using in-memory storage")
		repo = db.NewMemoryStore()
	}

	var limiter ratelimit.Limiter = ratelimit.NewLocal(cfg.SubmitCooldown)
	if cfg.RedisAddr != "" {
		rl := ratelimit.NewRedis(cfg.RedisAddr, "", 0, cfg.SubmitCooldown)
		if err := rl.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using in-process rate limiter")
			_ = rl.Close()
		} else {
			closers = append(closers, func() { _ = rl.Close() })
			limiter = rl
		}
	}

	var objects storage.ObjectStore
	var uploadDir string
	if cfg.StorageEndpoint != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:     cfg.StorageBucket,
			Region:     cfg.StorageRegion,
			Endpoint:   cfg.StorageEndpoint,
			PublicBase: cfg.StoragePublicURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure object storage")
		}
		objects = s3Store
	} else {
		local, err := storage.NewLocalStore(cfg.UploadDir, "/uploads")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare upload dir")
		}
		objects = local
		uploadDir = local.Dir()
		logger.Info().Str("dir", uploadDir).Msg("storing uploads on local disk")
	}

	var publisher events.Publisher = events.Nop{}
	var nats *events.NATSPublisher
	if cfg.NATSURL != "" {
		p, err := events.NewNATSPublisher(cfg.NATSURL, events.NATSOptions{
			SubjectPrefix: cfg.NATSSubjectPrefix,
			Breaker:       breaker,
			Logger:        logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, report events disabled")
		} else {
			closers = append(closers, p.Close)
			publisher = p
			nats = p
		}
	}

	var geocoder geocode.ReverseGeocoder
	if cfg.NominatimURL != "" {
		geocoder = &geocode.NominatimGeocoder{BaseURL: cfg.NominatimURL}
	}

	provider := auth.NewGoTrueClient(cfg.BackendURL, cfg.BackendAnonKey)
	provider.Breaker = breaker

	dash := service.NewDashboard(service.Options{
		Repo:            repo,
		Storage:         objects,
		Classifier:      classifier.NewManual(cfg.AnalysisDelay),
		Geocoder:        geocoder,
		Publisher:       publisher,
		Metrics:         m,
		Breaker:         breaker,
		Limiter:         limiter,
		SubmitDelay:     cfg.SubmitDelay,
		ResetDelay:      cfg.ResetDelay,
		LocationTimeout: cfg.GeolocationTimeout,
		PointsPerReport: cfg.PointsPerReport,
		DemoFixtures:    cfg.DemoFixtures,
		Logger:          logger,
	})
	sessions := session.NewManager(session.Options{
		Provider:     provider,
		Verifier:     auth.NewVerifier(cfg.BackendJWTSecret),
		Profiles:     repo,
		NewWorkspace: dash.NewWorkspace,
		Logger:       logger,

		IdleTimeout:   cfg.SessionIdleTimeout,
		SweepInterval: cfg.SessionSweepInterval,
	})
	closers = append(closers, sessions.Close)
	dash.Sessions = sessions
	sessions.Subscribe(func(ev auth.Event, _ *auth.Session) {
		m.RecordAuthEvent(string(ev))
		m.SetActiveSessions(sessions.Len())
	})

	if nats != nil {
		if err := nats.Subscribe(ctx, events.ReportModerated, dash.ApplyModeration); err != nil {
			logger.Warn().Err(err).Msg("moderation events not subscribed")
		}
	}

	accounts := service.NewAccounts(provider, sessions, limiter, cfg.PasswordResetRedirect, logger)

	return httpapi.Deps{
		Dashboard: dash,
		Accounts:  accounts,
		Sessions:  sessions,
		Repo:      repo,
		Metrics:   m,
		UploadDir: uploadDir,
		Logger:    logger,
	}, cleanup
}
