package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/credential-service/internal/config"
	"github.com/iliyamo/credential-service/internal/database"
	"github.com/iliyamo/credential-service/internal/logger"
	"github.com/iliyamo/credential-service/internal/middleware"
	"github.com/iliyamo/credential-service/internal/oauthstate"
	"github.com/iliyamo/credential-service/internal/provider"
	"github.com/iliyamo/credential-service/internal/queue"
	"github.com/iliyamo/credential-service/internal/ratelimit"
	"github.com/iliyamo/credential-service/internal/repository"
	"github.com/iliyamo/credential-service/internal/router"
	"github.com/iliyamo/credential-service/internal/service"
	"github.com/iliyamo/credential-service/internal/utils"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err) // logger is not built yet
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		lg.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		lg.Fatal("schema bootstrap failed", zap.Error(err))
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		lg.Warn("redis unavailable, using in-process rate limiter and nonce store")
	} else {
		defer rdb.Close()
	}

	var events queue.Publisher = queue.NopPublisher{}
	if cfg.AMQP.URL != "" {
		pub := queue.NewAMQPPublisher(cfg.AMQP.URL, lg.Named("events"))
		go func() {
			if err := pub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("event publisher stopped", zap.Error(err))
			}
		}()
		events = pub
		if cfg.AMQP.ConsumerEnabled {
			go func() {
				if err := queue.StartAuditConsumer(ctx, cfg.AMQP.URL, cfg.AMQP.AuditLogDir, lg); err != nil && !errors.Is(err, context.Canceled) {
					lg.Error("audit consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	signer := utils.NewSigner(cfg.JWTSecret)
	users := repository.NewUserRepo(db)
	creds := service.NewCredentialService(users, utils.NewPasswordHasher(cfg.BcryptCost), signer, cfg.SessionTTL, events, lg.Named("credentials"))
	keys := service.NewAPIKeyManager(repository.NewAPIKeyRepo(db), events, lg.Named("apikeys"))

	deps := router.Deps{
		DB:        db,
		Creds:     creds,
		Keys:      keys,
		Limiter:   newLimiter(ctx, rlCfg, rdb, lg),
		RateLimit: rlCfg,
		Log:       lg,
	}

	if oc, err := config.LoadOAuthConfig(); err != nil {
		lg.Warn("account linking disabled", zap.Error(err))
	} else {
		p := provider.New(provider.Config{
			Name:           oc.Provider,
			ClientID:       oc.ClientID,
			ClientSecret:   oc.ClientSecret,
			RedirectURL:    oc.RedirectURL,
			AuthURL:        oc.AuthURL,
			TokenURL:       oc.TokenURL,
			UserInfoURL:    oc.UserInfoURL,
			Scopes:         oc.Scopes,
			ScopeSeparator: oc.ScopeSeparator,
		}, nil, lg.Named("provider"))
		var nonces oauthstate.Store = oauthstate.NewMemoryStore(nil)
		if rdb != nil {
			nonces = oauthstate.NewRedisStore(rdb, "oauth:nonce")
		}
		deps.Links = service.NewLinkService(p, signer, nonces, repository.NewLinkedTokenRepo(db),
			oc.StateTTL, oc.TokenTTL, events, lg.Named("linking"))
		deps.Link = router.LinkOptions{SecureCookies: cfg.IsProduction(), SuccessURL: oc.SuccessURL}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(lg.Named("http")))
	router.Register(e, deps)

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
	lg.Info("server stopped")
}

// newLimiter picks the limiter backend. The memory limiter gets a janitor
// that lives as long as ctx.
func newLimiter(ctx context.Context, cfg config.RateLimitConfig, rdb *redis.Client, lg *zap.Logger) ratelimit.Limiter {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Backend == "redis" {
		if rdb != nil {
			return ratelimit.NewRedisLimiter(rdb, cfg.Prefix)
		}
		lg.Warn("RATE_LIMIT_BACKEND=redis but redis is unavailable, falling back to memory")
	}
	l := ratelimit.NewMemoryLimiter(nil)
	go l.Run(ctx, cfg.SweepInterval)
	return l
}
