package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/smtp"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"heavenly-backend/internal/config"
	"heavenly-backend/internal/db"
	"heavenly-backend/internal/domain"
	"heavenly-backend/internal/email"
	"heavenly-backend/internal/httpserver"
	"heavenly-backend/internal/payment"
	"heavenly-backend/internal/queue"
	"heavenly-backend/internal/realtime"
	cartrepo "heavenly-backend/internal/repository/cart"
	couponrepo "heavenly-backend/internal/repository/coupon"
	customerrepo "heavenly-backend/internal/repository/customer"
	notifrepo "heavenly-backend/internal/repository/notification"
	orderrepo "heavenly-backend/internal/repository/order"
	productrepo "heavenly-backend/internal/repository/product"
	checkoutsvc "heavenly-backend/internal/service/checkout"
	customersvc "heavenly-backend/internal/service/customer"
	notifysvc "heavenly-backend/internal/service/notify"
	ordersvc "heavenly-backend/internal/service/order"
)

func main() {
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		logger.Printf("no .env file loaded: %v", err)
	}
	cfg := config.FromEnv()

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Printf("redis unreachable at %s: %v", cfg.RedisAddr, err)
	}

	productRepo := productrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool)
	couponRepo := couponrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	notificationRepo := notifrepo.NewPostgres(dbpool, logger)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)

	gateway := payment.NewStripe(cfg.StripeKey, cfg.StripeWebhookSecret)
	mailSvc := email.New(mailTransport(cfg, logger), logger)

	hub := realtime.NewHub(logger)
	mailbox := queue.NewRedis(redisClient, queue.DefaultTTL)
	dispatcher := notifysvc.New(notificationRepo, hub, mailbox, logger)
	hub.OnConnect(func(ctx context.Context, rec domain.Recipient) {
		dispatcher.FlushMissed(ctx, rec)
	})

	checkoutService := checkoutsvc.New(gateway, productRepo, cartRepo, couponRepo, orderRepo, mailSvc, dispatcher, checkoutsvc.Config{
		SuccessURL:            cfg.ClientURL + "/order-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:             cfg.ClientURL + "/cart",
		LoyaltyThresholdCents: cfg.LoyaltyThresholdCents,
	}, logger)
	orderService := ordersvc.New(orderRepo, gateway, mailSvc, dispatcher, logger)
	customerService := customersvc.New(customerRepo, cfg.JWTSecret)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		CustomerSvc:      customerService,
		CheckoutSvc:      checkoutService,
		OrderSvc:         orderService,
		NotificationRepo: notificationRepo,
		Hub:              hub,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}

func mailTransport(cfg config.Config, logger *log.Logger) email.Transport {
	if cfg.SMTPAddr == "" {
		return &email.LogTransport{Logger: logger}
	}
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		host, _, _ := strings.Cut(cfg.SMTPAddr, ":")
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, host)
	}
	return &email.SMTPTransport{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom, Auth: auth}
}
