package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/agromarket/internal/apiclient"
	"github.com/Skotchmaster/agromarket/internal/config"
	"github.com/Skotchmaster/agromarket/internal/flash"
	"github.com/Skotchmaster/agromarket/internal/handlers"
	"github.com/Skotchmaster/agromarket/internal/handlers/cart"
	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/metrics"
	"github.com/Skotchmaster/agromarket/internal/middleware/auth"
	"github.com/Skotchmaster/agromarket/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/agromarket/internal/middleware/logging"
	"github.com/Skotchmaster/agromarket/internal/mykafka"
	"github.com/Skotchmaster/agromarket/internal/session"
	"github.com/Skotchmaster/agromarket/internal/storage"
	httpserver "github.com/Skotchmaster/agromarket/internal/transport/http"
	"github.com/Skotchmaster/agromarket/internal/views"
)

// backing is the storage driver chosen at start-up.
type backing struct {
	opener storage.Opener
	ready  func(ctx context.Context) error
	close  func() error
}

func openStorage(ctx context.Context, cfg *config.Config) (*backing, error) {
	visitors := storage.VisitorCookie{Secure: cfg.CookieSecure, MaxAge: cfg.StorageTTL}

	switch cfg.StorageDriver {
	case config.DriverMemory:
		o := storage.NewMemoryOpener(cfg.CookieSecure)
		o.Visitors = visitors
		return &backing{opener: o}, nil

	case config.DriverSQLite, config.DriverPostgres:
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		open := func() (*storage.GormOpener, error) {
			if cfg.StorageDriver == config.DriverSQLite {
				db, err := storage.OpenSQLite(initCtx, cfg.SQLitePath)
				if err != nil {
					return nil, err
				}
				return &storage.GormOpener{DB: db, Visitors: visitors}, nil
			}
			db, err := storage.OpenPostgres(initCtx, cfg.DatabaseURL)
			if err != nil {
				return nil, err
			}
			return &storage.GormOpener{DB: db, Visitors: visitors}, nil
		}
		o, err := open()
		if err != nil {
			return nil, err
		}
		sqlDB, err := o.DB.DB()
		if err != nil {
			return nil, err
		}
		return &backing{opener: o, ready: sqlDB.PingContext, close: sqlDB.Close}, nil

	case config.DriverRedis:
		client, err := storage.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &backing{
			opener: &storage.RedisOpener{Client: client, TTL: cfg.StorageTTL, Visitors: visitors},
			ready:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:  client.Close,
		}, nil

	default:
		return &backing{opener: &storage.CookieOpener{Sessions: storage.NewCookieStore(cfg.SessionKey, cfg.CookieSecure)}}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := openStorage(context.Background(), cfg)
	if err != nil {
		logger.Error("storage_init_failed", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}

	var prod mykafka.Publisher = mykafka.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Error("kafka_init_failed", "error", err)
			os.Exit(1)
		}
		prod = p
	}

	m := metrics.New()
	client := apiclient.NewClient(cfg.BackendURL, apiclient.WithTimeout(cfg.BackendTimeout), apiclient.WithMetrics(m))

	renderer, err := views.NewRenderer()
	if err != nil {
		logger.Error("templates_parse_failed", "error", err)
		os.Exit(1)
	}

	flasher := &flash.Flasher{Store: storage.NewCookieStore(cfg.SessionKey, cfg.CookieSecure)}
	base := &handlers.Base{
		API:      client,
		Flash:    flasher,
		Producer: prod,
		Metrics:  m,
		FlashTTL: cfg.FlashTTL,
	}

	e := echo.New()
	e.HideBanner = true
	e.Renderer = renderer
	e.HTTPErrorHandler = base.ErrorHandler(e)

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.SecureWithConfig(middleware.SecureConfig{
			XSSProtection:      "1; mode=block",
			ContentTypeNosniff: "nosniff",
			XFrameOptions:      "DENY",
			ReferrerPolicy:     "same-origin",
		}),
		loggingmw.RequestLogger(logger),
		m.Middleware(),
	)

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.Secure = cfg.CookieSecure
	csrfCfg.SkipPaths = []string{"/health/live", "/health/ready", "/metrics"}
	csrfCfg.SkipPrefixes = []string{"/api/", "/static/"}

	if err := httpserver.Register(e, &httpserver.Deps{
		AuthHandler:   &handlers.AuthHandler{Base: base},
		AdminHandler:  &handlers.AdminHandler{Base: base},
		FarmerHandler: &handlers.FarmerHandler{Base: base},
		BuyerHandler:  &handlers.BuyerHandler{Base: base},
		CartHandler:   &cart.CartHandler{Base: base},
		Gate:          &auth.Gate{Loading: base.Loading},
		Opener:        store.opener,
		Loader:        &session.Loader{Users: client, Wait: cfg.SessionLoadWait},
		Flash:         flasher,
		Metrics:       m,
		CSRFConfig:    csrfCfg,
		BackendURL:    cfg.BackendURL,
		Ready:         store.ready,
	}); err != nil {
		logger.Error("routes_register_failed", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("server_starting", "addr", cfg.ListenAddr, "backend", cfg.BackendURL, "storage", cfg.StorageDriver)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	go func() {
		<-quit
		logger.Warn("force_exit")
		os.Exit(1)
	}()

	logger.Info("shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	if store.close != nil {
		if err := store.close(); err != nil {
			logger.Error("storage_close_failed", "error", err)
		}
	}
	if err := prod.Close(); err != nil {
		logger.Error("kafka_close_failed", "error", err)
	}

	logger.Info("shutdown_complete")
}
