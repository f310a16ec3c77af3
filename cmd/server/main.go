package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/filmpass/internal/apiclient"
	"github.com/iliyamo/filmpass/internal/booking"
	"github.com/iliyamo/filmpass/internal/checkout"
	"github.com/iliyamo/filmpass/internal/config"
	"github.com/iliyamo/filmpass/internal/database"
	"github.com/iliyamo/filmpass/internal/handler"
	"github.com/iliyamo/filmpass/internal/logger"
	"github.com/iliyamo/filmpass/internal/middleware"
	"github.com/iliyamo/filmpass/internal/queue"
	"github.com/iliyamo/filmpass/internal/repository"
	"github.com/iliyamo/filmpass/internal/router"
	"github.com/iliyamo/filmpass/internal/seatmap"
	"github.com/iliyamo/filmpass/internal/service"
	"github.com/iliyamo/filmpass/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Check{}

	rdb := config.NewRedisClient(cfg.Redis)
	var store session.Store = session.NewMemoryStore()
	if rdb != nil {
		store = session.NewRedisStore(rdb, "")
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		defer func() { _ = rdb.Close() }()
	} else {
		lg.Warn("redis unreachable, using in-process identity store and rate limiter", zap.String("addr", cfg.Redis.Address()))
	}

	var browseCache *apiclient.BrowseCache
	if cfg.Cache.Enabled {
		browseCache = apiclient.NewBrowseCache(rdb, cfg.Cache.TTL, cfg.Cache.Prefix)
	}
	api := apiclient.New(cfg.APIBaseURL,
		apiclient.WithDoer(apiclient.NewBreakerClient(cfg.APITimeout, cfg.BreakerThreshold)),
		apiclient.WithLogger(lg.Named("apiclient")),
		apiclient.WithBrowseCache(browseCache),
	)

	ledger, db := openLedger(ctx, cfg, lg)
	if db != nil {
		checks["mysql"] = db.PingContext
		defer func() { _ = db.Close() }()
	}

	var publisher checkout.Publisher
	if cfg.RabbitMQ.Publish {
		publisher = service.NewPublisher(cfg.RabbitMQ.URL, lg)
	}

	bridgeOpts := []checkout.Option{checkout.WithLogger(lg.Named("checkout"))}
	if publisher != nil {
		bridgeOpts = append(bridgeOpts, checkout.WithPublisher(publisher))
	}
	if cfg.Stripe.SecretKey != "" {
		bridgeOpts = append(bridgeOpts, checkout.WithProbe(checkout.NewStripeProbe(cfg.Stripe.SecretKey, nil)))
	}
	bridge := checkout.NewBridge(api, ledger, cfg.PublicURL, bridgeOpts...)

	validate := validator.New()
	loader := seatmap.NewLoader(api)
	direct := booking.NewDirectSubmitter(api)
	machineLog := lg.Named("booking")
	registry := booking.NewRegistry(func(sid string) *booking.Machine {
		return booking.New(loader, session.Bind(store, sid),
			booking.Submitters{Direct: direct, Payment: bridge},
			booking.WithSessionID(sid),
			booking.WithRequireAccount(cfg.RequireAccount),
			booking.WithValidator(validate),
			booking.WithObserver(func(t booking.Transition) {
				machineLog.Debug("transition",
					zap.String("session_id", sid),
					zap.Stringer("from", t.From),
					zap.Stringer("to", t.To),
					zap.Int64("showtime_id", t.ShowtimeID),
					zap.NamedError("cause", t.Err))
			}),
		)
	}, cfg.BookingIdle)
	go registry.Run(ctx, time.Minute)

	if cfg.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.RabbitMQ.URL, cfg.BookingLogPath, lg)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("booking consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.Session(store, middleware.SessionOptions{Secure: cfg.IsProduction(), Logger: lg}))
	e.Use(middleware.RequestLogger(lg.Named("http")))
	limit := middleware.NewTokenBucket(cfg.RateLimit, rdb, lg.Named("ratelimit"))

	router.RegisterRoutes(e, checks)
	router.RegisterPublic(e, &handler.BrowseHandler{Catalog: api})
	router.RegisterAuth(e, &handler.AuthHandler{
		API: api, Store: store, TTL: cfg.SessionTTL, Validate: validate, Log: lg,
	}, limit)
	router.RegisterBooking(e, &handler.BookingHandler{
		Registry:  registry,
		Catalog:   api,
		Bookings:  api,
		Publisher: publisher,
		Validate:  validate,
		Log:       lg,
	}, limit)
	router.RegisterPayment(e, &handler.PaymentHandler{Bridge: bridge}, limit)

	addr := ":" + cfg.Port
	lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("api", cfg.APIBaseURL))
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}

// openLedger returns the MySQL ledger when DB_HOST is set and reachable,
// the in-memory one otherwise.
func openLedger(ctx context.Context, cfg config.Config, lg *zap.Logger) (checkout.Ledger, *sqlx.DB) {
	if !cfg.MySQL.Enabled() {
		return checkout.NewMemoryLedger(), nil
	}
	db, err := database.Open(cfg.MySQL.User, cfg.MySQL.Pass, cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.Name)
	if err != nil {
		lg.Warn("mysql unreachable, checkout ledger kept in memory", zap.Error(err))
		return checkout.NewMemoryLedger(), nil
	}
	repo := repository.NewCheckoutRepo(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		lg.Error("checkout ledger schema", zap.Error(err))
	}
	return repo, db
}
