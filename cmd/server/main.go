package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/festival-boxoffice/internal/config"
	"github.com/iliyamo/festival-boxoffice/internal/database"
	"github.com/iliyamo/festival-boxoffice/internal/handler"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/mail"
	"github.com/iliyamo/festival-boxoffice/internal/middleware"
	"github.com/iliyamo/festival-boxoffice/internal/payment"
	"github.com/iliyamo/festival-boxoffice/internal/queue"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
	"github.com/iliyamo/festival-boxoffice/internal/router"
	"github.com/iliyamo/festival-boxoffice/internal/scheduler"
	"github.com/iliyamo/festival-boxoffice/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			log.Fatal("migration failed", "error", err)
		}
		log.Info("schema applied")
	}

	// Redis is optional: without it the cache and rate limiter pass through.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable, cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewProgrammeCache(config.LoadCacheConfig(), rdb, log)
	limits := middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb, log)

	store := handler.NewStore(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	publisher := service.NewPublisher(cfg.RabbitURL, log)
	square := payment.NewSquareTerminal(cfg.Square)
	stripe := payment.NewStripeCheckout(cfg.Stripe)

	sales := handler.NewSaleHandler(store, publisher, square, log)
	checkout := handler.NewCheckoutHandler(store, users, stripe, publisher, cfg.SiteURL, log)
	program := handler.NewProgramHandler(cfg, store, users, log)
	reports := handler.NewReportHandler(store, log)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, store, log), cfg.JWTSecret, limits)
	router.RegisterPublic(e, program, cache)
	router.RegisterPayments(e, sales, checkout, limits)
	router.RegisterStaff(e, router.StaffHandlers{
		Sales:   sales,
		Refunds: handler.NewRefundHandler(store, publisher, log),
		Venues:  handler.NewVenueHandler(store, log),
		Reports: reports,
	}, cfg.JWTSecret)
	router.RegisterCustomer(e, handler.NewBasketHandler(store, users, publisher, log), checkout, cfg.JWTSecret, limits)
	router.RegisterAdmin(e, program, reports, cfg.JWTSecret, cache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port // Address string with port
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return queue.NewConsumer(cfg.RabbitURL, mail.New(cfg.SMTP, log), log).Run(ctx)
	})

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler, scheduler.RepoSales{Repo: store.Sales}, log)
		if err != nil {
			log.Fatal("scheduler setup failed", "error", err)
		}
		sched.Start()
		g.Go(func() error {
			<-ctx.Done()
			return sched.Shutdown()
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		return
	}
	log.Info("server stopped")
}
