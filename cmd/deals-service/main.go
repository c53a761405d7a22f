package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-deals/internal/auth"
	"ms-deals/internal/clock"
	"ms-deals/internal/config"
	"ms-deals/internal/database"
	"ms-deals/internal/database/migrations"
	"ms-deals/internal/deals"
	dealsdb "ms-deals/internal/deals/db"
	"ms-deals/internal/deals/deal_api"
	"ms-deals/internal/errs"
	"ms-deals/internal/kafka"
	"ms-deals/internal/logger"
	"ms-deals/internal/models"
	"ms-deals/internal/redemptions"
	redemptionsdb "ms-deals/internal/redemptions/db"
	"ms-deals/internal/redemptions/qr"
	"ms-deals/internal/redemptions/redemption_api"
	idem "ms-deals/internal/redemptions/redis"
	"ms-deals/internal/sse"
	"ms-deals/internal/utils"
)

// eventSink is what both services publish through.
type eventSink interface {
	deals.EventPublisher
	redemptions.EventPublisher
}

// localEvents feeds confirmations straight to this instance's SSE clients when Kafka is off.
type localEvents struct {
	kafka.NopPublisher
	emitter *sse.RedemptionEventEmitter
}

func (l localEvents) RedemptionConfirmed(_ context.Context, r *models.Redemption, merchantID string) {
	l.emitter.Emit(models.RedemptionEvent{
		Type:         "redemption.confirmed",
		RedemptionID: r.ID,
		DealID:       r.DealID,
		MerchantID:   merchantID,
		Code:         r.Code,
		RedeemedAt:   r.RedeemedAt,
		OccurredAt:   time.Now().UTC(),
	})
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Dir)
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	log.Info("APP", "Starting Deals Service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runMigrations(cfg.Database.DSN, cfg.Database.MigrationsDir, log)
	}

	dealDB := &dealsdb.DB{Bun: bunDB}
	redemptionDB := &redemptionsdb.DB{Bun: bunDB}

	if cfg.Deals.DemoMode {
		ensureDemoMerchant(ctx, dealDB, cfg.Deals.DefaultMerchantID, log)
	}

	emitter := sse.NewRedemptionEventEmitter()
	events, closeEvents := setupEvents(ctx, cfg.Kafka, emitter, log)
	defer closeEvents()

	var idemStore redemptions.IdempotencyStore
	if redisClient := connectRedis(ctx, cfg.Redis, log); redisClient != nil {
		defer redisClient.Close()
		idemStore = idem.NewIdempotencyStore(redisClient, cfg.Deals.IdempotencyTTL)
	}

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	clk := clock.NewRealClock()
	codes := utils.NewUniqueCodeAllocator(cfg.Deals.CodeLength, cfg.Deals.CodeMaxAttempts)
	qrGen := qr.NewQRGenerator(cfg.Deals.QRSize)
	resolver := &auth.Resolver{
		Merchants:         dealDB,
		DemoMode:          cfg.Deals.DemoMode,
		DefaultMerchantID: cfg.Deals.DefaultMerchantID,
	}

	dealService := deals.NewDealService(dealDB, redemptionDB, codes, clk, events, log)
	dealService.RepostDuration = cfg.Deals.RepostDefaultDuration
	merchantService := deals.NewMerchantService(dealDB, clk, log)
	redemptionService := redemptions.NewRedemptionService(redemptionDB, dealDB, idemStore, codes, clk, events, log, redemptions.Options{
		EnforceExpiryOnConfirm: cfg.Deals.EnforceExpiryOnConfirm,
		AvailabilityTimeout:    cfg.Deals.AvailabilityTimeout,
	})

	dealHandler := deal_api.NewHandler(dealService, merchantService, resolver, qrGen, log)
	redemptionHandler := redemption_api.NewHandler(redemptionService, resolver, qrGen, emitter, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", redemption_api.IdempotencyHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes ---
	r.Get("/healthz", healthHandler(bunDB))
	dealHandler.RegisterPublicRoutes(r)
	redemptionHandler.RegisterPublicRoutes(r)
	log.Info("ROUTER", "Public deal and redemption routes registered")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))
		dealHandler.RegisterProtectedRoutes(r)
		redemptionHandler.RegisterProtectedRoutes(r)
	})
	log.Info("AUTH", "Bearer middleware applied to merchant routes")

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Deals Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Deals Service shutdown complete")
	}
}

// runMigrations uses a dedicated connection, so closing the runner leaves bunDB serving.
func runMigrations(dsn, dir string, log *logger.Logger) {
	runner := migrations.NewRunner(dsn, dir, log)
	defer runner.Close()
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("REDIS", "Redis disabled, confirm idempotency keys are ignored")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable at %s, idempotency disabled: %v", cfg.Addr, err))
		client.Close()
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

// setupEvents wires the Kafka producer and the confirmation consumer that drives SSE.
func setupEvents(ctx context.Context, cfg config.KafkaConfig, emitter *sse.RedemptionEventEmitter, log *logger.Logger) (eventSink, func()) {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info("KAFKA", "Kafka disabled, events stay in-process")
		return localEvents{emitter: emitter}, func() {}
	}

	if err := kafka.EnsureTopicsExist(cfg.Brokers, kafka.TopicNames(cfg.Topics), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	producer := kafka.NewProducer(cfg.Brokers, cfg.Topics, log)
	consumer := kafka.NewConsumer(cfg.Brokers, cfg.Topics.RedemptionConfirmed, kafka.InstanceGroupID(cfg.GroupID, cfg.InstanceID), log)
	go consumer.Start(ctx, emitter.Emit)
	log.Info("KAFKA", "Kafka producer and confirmation consumer initialized")

	return producer, func() {
		if err := consumer.Close(); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Failed to close consumer: %v", err))
		}
		if err := producer.Close(); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	switch {
	case cfg.OIDCIssuer != "":
		return auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
	case cfg.JWTSecret != "":
		return auth.NewHMACVerifier(cfg.JWTSecret), nil
	}
	return nil, fmt.Errorf("no token verifier configured: set OIDC_ISSUER or JWT_SECRET")
}

// ensureDemoMerchant creates the demo tenant row so deals created under it satisfy the merchant FK.
func ensureDemoMerchant(ctx context.Context, db *dealsdb.DB, merchantID string, log *logger.Logger) {
	if merchantID == "" {
		log.Warn("CONFIG", "DEMO_MODE set without DEFAULT_MERCHANT_ID, demo tenant disabled")
		return
	}
	err := db.CreateMerchant(ctx, &models.Merchant{
		ID:          merchantID,
		OwnerUserID: "demo:" + merchantID,
		Name:        "Demo merchant",
	})
	switch {
	case err == nil:
		log.Info("CONFIG", fmt.Sprintf("Demo merchant %s created", merchantID))
	case errs.Is(err, errs.ErrConflict):
		log.Debug("CONFIG", fmt.Sprintf("Demo merchant %s already present", merchantID))
	default:
		log.Warn("CONFIG", fmt.Sprintf("Failed to ensure demo merchant: %v", err))
	}
}

func healthHandler(db *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("database unreachable", "Unavailable"))
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	}
}
