package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/shop_checkout/internal/config"
	"github.com/Skotchmaster/shop_checkout/internal/gateway"
	"github.com/Skotchmaster/shop_checkout/internal/httpserver"
	"github.com/Skotchmaster/shop_checkout/internal/notify"
	"github.com/Skotchmaster/shop_checkout/internal/pricing"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	"github.com/Skotchmaster/shop_checkout/internal/service"
	"github.com/Skotchmaster/shop_checkout/pkg/db"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
	loggingmw "github.com/Skotchmaster/shop_checkout/pkg/middleware/logging"
	"github.com/Skotchmaster/shop_checkout/pkg/mykafka"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(middleware.CORS())

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := config.InitDB(initCtx, cfg)
	if err != nil {
		cancel()
		fatal(logger, "db_init_error", err)
	}
	Repo := repo.New(gdb)
	if err := Repo.AutoMigrate(initCtx); err != nil {
		cancel()
		fatal(logger, "db_migrate_error", err)
	}
	cancel()

	var events service.Publisher = mykafka.Discard{}
	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			fatal(logger, "kafka_init_error", err)
		}
		events = producer
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	var (
		notifier service.Notifier
		worker   *notify.Worker
		rdb      *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		queue := notify.NewQueue(rdb)
		notifier = queue

		var mailer notify.Mailer = notify.LogMailer{Logger: logger}
		if cfg.SMTP.Addr != "" {
			mailer = notify.NewSMTPMailer(cfg.SMTP.Addr, cfg.SMTP.Host, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		}
		worker = &notify.Worker{
			Queue:       queue,
			Orders:      Repo,
			Mailer:      mailer,
			Logger:      logger,
			MaxAttempts: 5,
		}
	} else {
		logger.Warn("notifications_disabled", "reason", "REDIS_ADDR is empty")
	}

	policy := pricing.Policy{
		TaxRate:         cfg.Pricing.TaxRate,
		ShippingFee:     cfg.Pricing.ShippingFee,
		FreeShippingMin: cfg.Pricing.FreeShippingMin,
	}

	provider := gateway.NewClient(gateway.ClientConfig{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Logger:    logger,
	})

	addressService := &service.AddressService{Repo: Repo}
	reconciler := &service.Reconciler{Repo: Repo, Events: events, Notifier: notifier}
	paymentService := &service.PaymentService{
		Repo:           Repo,
		Provider:       provider,
		Reconciler:     reconciler,
		KeyID:          cfg.Gateway.KeyID,
		KeySecret:      cfg.Gateway.KeySecret,
		WebhookSecret:  cfg.Gateway.WebhookSecret,
		MerchantName:   cfg.Gateway.MerchantName,
		ConfirmTimeout: cfg.PaymentConfirmTimeout,
	}

	httpserver.Register(e, &httpserver.Deps{
		CatalogHandler: &httpserver.CatalogHTTP{
			Svc: &service.CatalogService{Repo: Repo, Events: events},
		},
		CartHandler: &httpserver.CartHTTP{
			Svc: &service.CartService{Repo: Repo, Policy: policy},
		},
		AddressHandler: &httpserver.AddressHTTP{Svc: addressService},
		OrderHandler: &httpserver.OrderHTTP{
			Svc: &service.OrderService{
				Repo:      Repo,
				Addresses: addressService,
				Policy:    policy,
				Currency:  cfg.Pricing.Currency,
				Events:    events,
				Notifier:  notifier,
			},
		},
		PaymentHandler: &httpserver.PaymentHTTP{
			Svc:        paymentService,
			Reconciler: reconciler,
		},
		JWTSecret: cfg.JWTAccessSecret,
		Ready:     Repo.Ping,
	})

	bgCtx, stopBackground := context.WithCancel(logging.IntoContext(context.Background(), logger))
	var wg sync.WaitGroup

	sweeper := &service.Sweeper{
		Repo:     Repo,
		Payments: paymentService,
		Events:   events,
		Logger:   logger,
		TTL:      cfg.PendingOrderTTL,
		Interval: cfg.SweepInterval,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(bgCtx)
	}()

	if worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(bgCtx)
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	go func() {
		logger.Info("server_starting", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			fatal(logger, "server_start_error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("server_shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	stopBackground()
	wg.Wait()

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis_close_error", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}

	logger.Info("shutdown_complete")
}

func fatal(l *slog.Logger, event string, err error) {
	l.Error(event, "error", err)
	os.Exit(1)
}
