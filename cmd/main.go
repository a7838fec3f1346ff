package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/shopspring/decimal"

	"SafeHold/internal/cache"
	"SafeHold/internal/config"
	"SafeHold/internal/database"
	"SafeHold/internal/escrow"
	"SafeHold/internal/events"
	"SafeHold/internal/handlers"
	"SafeHold/internal/routes"
	"SafeHold/internal/services"
	"SafeHold/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ Failed to load configuration:", err)
	}

	log.Printf("🔍 Configuration:")
	log.Printf("   DATABASE_URL: '%s'", config.Mask(cfg.DatabaseURL))
	log.Printf("   JWT_SECRET: '%s'", config.Mask(cfg.JWTSecret))
	log.Printf("   STRIPE_SECRET_KEY: '%s'", config.Mask(cfg.Stripe.SecretKey))
	log.Printf("   ESCROWCOM_EMAIL: '%s'", cfg.EscrowCom.Email)
	log.Printf("   ESCROWCOM_API_KEY: '%s'", config.Mask(cfg.EscrowCom.APIKey))
	log.Printf("   RISK_ENGINE_URL: '%s'", cfg.RiskEngine.URL)
	log.Printf("   ESCROW_DEFAULT_PROVIDER: '%s'", cfg.Escrow.DefaultProvider)
	log.Printf("   ESCROW_HIGH_RISK_PROVIDER: '%s'", cfg.Escrow.HighRiskProvider)

	appLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	db, err := database.Connect(cfg.DatabaseURL, false)
	if err != nil {
		log.Fatal("❌ Failed to connect to database:", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal("❌ Failed to migrate database:", err)
	}
	log.Println("✅ Database connected and migrated successfully")

	timeout := cfg.Escrow.ProviderTimeout
	registry := escrow.NewRegistry()
	registry.Register(services.NewPaymentIntentProvider(cfg.Stripe, timeout))
	registry.Register(services.NewEscrowComProvider(cfg.EscrowCom, timeout))
	if cfg.Sandbox.Enabled {
		registry.Register(services.NewSandboxProvider())
		log.Println("🧪 Sandbox escrow provider enabled")
	}
	if err := registry.SetDefault(cfg.Escrow.DefaultProvider); err != nil {
		log.Fatal("❌ Invalid escrow provider configuration:", err)
	}
	if cfg.Escrow.HighRiskProvider != "" {
		if err := registry.SetHighRisk(cfg.Escrow.HighRiskProvider); err != nil {
			log.Fatal("❌ Invalid escrow provider configuration:", err)
		}
	}
	log.Printf("✅ Escrow providers registered: %v", registry.Names())

	var locker escrow.Locker = escrow.NewMemoryLocker()
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("❌ Failed to connect to Redis:", err)
		}
		defer redisClient.Close()
		locker = cache.NewRedisLocker(redisClient, cfg.Escrow.LockTTL, appLogger)
		log.Println("✅ Redis escrow lock enabled")
	} else {
		log.Println("⚠️  REDIS_URL not set, escrow locks are per-process only")
	}

	notifications := services.NewNotificationService(db, services.NewEmailService(cfg.Email), appLogger)
	publishers := events.Fanout{notifications}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatal("❌ Failed to configure Kafka publisher:", err)
		}
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
	} else {
		publishers = append(publishers, events.NewLogPublisher(appLogger))
	}

	orchestrator, err := escrow.NewOrchestrator(escrow.Dependencies{
		Registry:  registry,
		Store:     storage.NewStore(db),
		Risk:      services.NewRiskClient(cfg.RiskEngine, timeout),
		Locker:    locker,
		Publisher: publishers,
		Logger:    appLogger,
		Thresholds: escrow.Thresholds{
			HighValue:     decimal.NewFromFloat(cfg.Escrow.HighValueThreshold),
			VeryHighValue: decimal.NewFromFloat(cfg.Escrow.VeryHighValueThreshold),
		},
		LowTrustThreshold: cfg.Escrow.LowTrustThreshold,
		EscrowTTL:         cfg.Escrow.Expiry,
	})
	if err != nil {
		log.Fatal("❌ Failed to build escrow orchestrator:", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "SafeHold API v1.0",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app)
	routes.SetupEscrowRoutes(app, handlers.NewEscrowHandler(orchestrator), cfg.JWTSecret)
	routes.SetupNotificationRoutes(app, handlers.NewNotificationHandler(notifications), cfg.JWTSecret)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Println("🛑 Shutting down SafeHold")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Printf("🚀 SafeHold server starting on http://localhost:%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
