// cmd/checkout-service/main.go
package main

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"storefront/internal/checkout/application"
	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/domain/port"
	"storefront/internal/checkout/infrastructure"
	"storefront/internal/checkout/infrastructure/adapter"
	"storefront/internal/checkout/infrastructure/idempotency"
	"storefront/internal/checkout/infrastructure/memory"
	"storefront/internal/checkout/interfaces"
	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/mq"
)

const serviceName = "checkout-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	tracer := otel.Tracer(serviceName)
	client := httpclient.NewClient(tracer)

	// 存储层：有 DSN 走 MySQL，否则退回内存实现（本地联调用）
	var (
		stockRepo    domain.StockRepository
		clientRepo   domain.ClientRepository
		ledgerRepo   domain.TransactionRepository
		deliveryRepo domain.DeliveryRepository
	)
	if dsn := cfg.Infra.MysqlDSN; dsn != "" {
		db, err := infrastructure.OpenMysql(dsn)
		if err != nil {
			log.Fatalf("FATAL: cannot open mysql: %v", err)
		}
		if err := infrastructure.AutoMigrate(db); err != nil {
			log.Fatalf("FATAL: cannot migrate schema: %v", err)
		}
		stockRepo = infrastructure.NewGormStockRepository(db)
		clientRepo = infrastructure.NewGormClientRepository(db)
		ledgerRepo = infrastructure.NewGormTransactionRepository(db)
		deliveryRepo = infrastructure.NewGormDeliveryRepository(db)
	} else {
		log.Println("WARN: MYSQL_DSN not set, using in-memory repositories")
		memStock := memory.NewStockRepository()
		memClients := memory.NewClientRepository()
		memStock.SeedProduct(&domain.Product{
			ID: "demo-product", Name: "Demo Product", PriceCents: 150000, Stock: 100, IsActive: true,
		})
		stockRepo = memStock
		clientRepo = memClients
		ledgerRepo = memory.NewTransactionRepository(memClients)
		deliveryRepo = memory.NewDeliveryRepository()
	}

	gateway := adapter.NewPaymentHTTPAdapter(client, tracer, adapter.PaymentConfig{
		APIURL:          cfg.Payment.APIURL,
		PublicKey:       cfg.Payment.PublicKey,
		PrivateKey:      cfg.Payment.PrivateKey,
		IntegritySecret: cfg.Payment.IntegritySecret,
		Currency:        cfg.Payment.Currency,
		Timeout:         cfg.Payment.Timeout,
		MaxAttempts:     cfg.Payment.MaxAttempts,
	})
	scheduler := adapter.NewDeliveryHTTPAdapter(client, tracer, cfg.Delivery.BaseURL, cfg.Delivery.Timeout)

	// Kafka 通知是可选的：没有 broker 就不广播
	var notifier port.NotificationProducer
	if len(cfg.Infra.Kafka.Brokers) > 0 {
		writer := mq.NewWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NotificationTopic)
		kafkaNotifier := adapter.NewNotificationKafkaAdapter(writer)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	// Redis 去重表同样可选
	var idemStore *idempotency.Store
	if cfg.Infra.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Infra.Redis.Addr})
		idemStore = idempotency.NewStore(rdb, 24*time.Hour)
	}

	service := application.NewCheckoutService(
		stockRepo, clientRepo, ledgerRepo, deliveryRepo,
		gateway, scheduler, notifier,
		cfg.Saga.ReservationTTL, cfg.Saga.ProcessingTimeout,
	)
	sweeper := application.NewSweeper(stockRepo, deliveryRepo, scheduler, cfg.Saga.SweepInterval)
	handler := interfaces.NewCheckoutHandler(service, idemStore)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.App.ServiceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		Runners: []func(ctx context.Context) error{
			sweeper.Run,
		},
	})
}
