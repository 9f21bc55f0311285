package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-service/cache"
	"shop-service/config"
	"shop-service/consumers"
	"shop-service/controllers"
	"shop-service/database"
	"shop-service/logger"
	"shop-service/middlewares"
	"shop-service/payment"
	"shop-service/rabbitmq"
	"shop-service/repositories"
	"shop-service/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig()
	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	config.Watch(func(c *config.Config) {
		logger.SetLevel(c.LogLevel)
		log.Info().Str("level", c.LogLevel).Msg("config reloaded")
	})

	if cfg.PaymentWebhookKey == "" {
		log.Warn().Msg("PAYMENT_WEBHOOK_KEY is empty, all payment webhooks will be rejected")
	}

	// 初始化数据库
	if err := database.InitDB(cfg); err != nil {
		log.Fatal().Err(err).Msg("database initialization failed")
	}
	defer database.CloseDB()

	// 初始化RabbitMQ
	rmq, err := rabbitmq.NewRabbitMQ(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq initialization failed")
	}
	defer rmq.Close()

	// 设置队列和交换机
	if err := rmq.SetupQueues(); err != nil {
		log.Fatal().Err(err).Msg("failed to setup rabbitmq queues")
	}

	redisClient := cache.NewRedisClient(cfg)
	defer redisClient.Close()

	store := repositories.NewStore(database.DB)
	ledger := services.NewVoucherLedger(store, log)
	orders := services.NewOrderService(
		store,
		services.NewProductStock(),
		ledger,
		rmq,
		payment.NewCheckoutLinkGateway(cfg.PaymentBaseURL),
		services.OrderOptions{
			Shipping: services.ShippingPolicy{
				Fee:           cfg.ShippingFee,
				FreeThreshold: cfg.FreeShippingThreshold,
			},
			PaymentCheckDelay: cfg.PaymentCheckDelay,
		},
		log,
	)
	reviews := services.NewReviewService(store, log)
	payments := services.NewPaymentService(
		orders,
		cache.NewRedisDeduper(redisClient, cfg.WebhookDedupTTL),
		cfg.PaymentWebhookKey,
		log,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middlewares.RequestID(),
		middlewares.LoggerMiddleware(log),
		middlewares.PrometheusMiddleware(),
	)
	controllers.RegisterRoutes(r, controllers.Handlers{
		Orders:   controllers.NewOrderController(orders),
		Vouchers: controllers.NewVoucherController(ledger),
		Reviews:  controllers.NewReviewController(reviews),
		Payments: controllers.NewPaymentController(payments),
	}, cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// 启动服务器
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("shop service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 启动消息消费者
	g.Go(func() error {
		return consumers.NewOrderConsumer(rmq.Channel, cfg, orders, log).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service stopped with error")
		return
	}
	log.Info().Msg("service stopped")
}
