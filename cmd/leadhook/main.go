package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	config "github.com/davicafu/leadhook/internal/config"
	infraEvents "github.com/davicafu/leadhook/internal/shared/infra/events"
	sharedCache "github.com/davicafu/leadhook/internal/shared/infra/platform/cache"
	"github.com/davicafu/leadhook/internal/webhook/application"
	"github.com/davicafu/leadhook/internal/webhook/domain"
	crmEvents "github.com/davicafu/leadhook/internal/webhook/infra/inbound/events"
	webhookHttp "github.com/davicafu/leadhook/internal/webhook/infra/inbound/http"
	leadCache "github.com/davicafu/leadhook/internal/webhook/infra/outbound/cache"
	storeDB "github.com/davicafu/leadhook/internal/webhook/infra/outbound/db"
	storeMongo "github.com/davicafu/leadhook/internal/webhook/infra/outbound/db/mongodb"
	storePostgres "github.com/davicafu/leadhook/internal/webhook/infra/outbound/db/postgres"
	storeSQLite "github.com/davicafu/leadhook/internal/webhook/infra/outbound/db/sqlite"
	"github.com/davicafu/leadhook/internal/webhook/infra/outbound/graph"
	"github.com/davicafu/leadhook/internal/webhook/infra/outbound/sinks"
	"github.com/davicafu/leadhook/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const shutdownTimeout = 15 * time.Second

// ---------------- Main ----------------
func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.LogLevel) // inicializa zap
	log := logger.Logger()
	defer log.Sync() // flush buffers al salir

	ctx := context.Background()

	if cfg.VerifyToken == "" {
		log.Warn("⚠️ WEBHOOK_VERIFY_TOKEN no configurado, el handshake será rechazado")
	}
	if cfg.EnforceSignature && cfg.AppSecret == "" {
		log.Warn("⚠️ ENFORCE_SIGNATURE activo sin FB_APP_SECRET, todos los POST serán rechazados")
	}

	// ---------------- Store ----------------
	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	// ---------------- Cache ----------------
	var cacheInstance sharedCache.Cache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, deduplicación en memoria", zap.Error(err))
		memCache := leadCache.NewInMemoryCache(cfg.LeadDedupTTL, time.Minute)
		defer memCache.Stop()
		cacheInstance = memCache
	} else {
		cacheInstance = leadCache.NewRedisCache(rdb, cfg.LeadDedupTTL)
		log.Info("✅ Redis conectado, deduplicación compartida")
	}
	defer rdb.Close()
	guard := leadCache.NewLeadGuard(cacheInstance, cfg.LeadDedupTTL, log)

	// ---------------- Sinks ----------------
	var crmSink domain.CRMSink
	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka para el CRM", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaCRMTopic))
		writer := &kafka.Writer{
			Addr:                   kafka.TCP(cfg.KafkaBrokers...),
			Topic:                  cfg.KafkaCRMTopic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
		defer writer.Close()
		crmSink = sinks.NewBusCRMSink(infraEvents.NewKafkaPublisher(writer, log))
	} else {
		log.Info("⚡️ Usando bus en memoria para el CRM (canales de Go)")
		inMemoryCRMBus := infraEvents.NewInMemoryEventBus(domain.CRMTopic, log)
		crmSink = sinks.NewBusCRMSink(inMemoryCRMBus)

		log.Info("🎧 Iniciando listener en memoria para leads del CRM", zap.String("topic", inMemoryCRMBus.Topic()))
		consumerDone := crmEvents.BackgroundConsumerChan(ctx, inMemoryCRMBus.Subscribe(100), crmEvents.NewCRMConsumer(sinks.NewLogCRMSink(log), log))
		defer func() {
			inMemoryCRMBus.Close()
			<-consumerDone
		}()
	}
	dispatcher := application.NewLeadDispatcher(sinks.NewLogNotificationSink(log), crmSink, cfg.NotifyEmailTo, log)

	// --------------- Servicio --------------
	graphClient := graph.NewClient(cfg.GraphAPIURL, cfg.GraphAPIVersion, cfg.GraphTimeout, log)
	service := application.NewWebhookService(store, graphClient, dispatcher, guard, application.Settings{
		VerifyToken:      cfg.VerifyToken,
		AppSecret:        cfg.AppSecret,
		PageAccessToken:  cfg.PageAccessToken,
		EnforceSignature: cfg.EnforceSignature,
		FetchTimeout:     cfg.GraphTimeout,
		DispatchTimeout:  cfg.DispatchTimeout,
	}, log)

	// ---------------- HTTP ----------------
	router := webhookHttp.NewRouter(log)
	webhookHttp.RegisterWebhookRoutes(router, webhookHttp.NewWebhookHandler(service, log))
	if cfg.EnableSetupEndpoints {
		admin := application.NewPageAdminService(graphClient, cfg.PageID, cfg.PageAccessToken, log)
		webhookHttp.RegisterSetupRoutes(router, webhookHttp.NewSetupHandler(admin))
		log.Info("🔧 Setup endpoints habilitados", zap.String("page_id", cfg.PageID))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("🚀 Server running",
			zap.String("url", "http://localhost:"+cfg.HTTPPort),
			zap.String("webhook", "http://localhost:"+cfg.HTTPPort+"/webhook"),
			zap.Bool("store_available", store.Available()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", zap.Error(err))
	}
	if err := service.Wait(shutdownCtx); err != nil {
		log.Warn("⚠️ Leads en curso sin terminar", zap.Error(err))
	}
}

// openStore elige el backend de persistencia. Si no arranca, el servicio sigue
// aceptando webhooks con un store no disponible.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (domain.PayloadStore, func()) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.StoreMongoDB:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Error("❌ Error connecting to MongoDB", zap.Error(err))
			return storeDB.UnavailableStore{Reason: err.Error()}, noop
		}
		store, err := storeMongo.NewEventStoreMongoDB(connectCtx, client, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			log.Error("❌ MongoDB not reachable", zap.Error(err))
			_ = client.Disconnect(context.Background())
			return storeDB.UnavailableStore{Reason: err.Error()}, noop
		}
		log.Info("✅ Connected to MongoDB", zap.String("database", cfg.MongoDatabase), zap.String("collection", cfg.MongoCollection))
		return store, func() { _ = client.Disconnect(context.Background()) }

	case config.StorePostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err == nil {
			err = storePostgres.InitPostgres(ctx, db)
		}
		if err != nil {
			log.Error("❌ Error initializing Postgres", zap.Error(err))
			if db != nil {
				db.Close()
			}
			return storeDB.UnavailableStore{Reason: err.Error()}, noop
		}
		log.Info("✅ Connected to Postgres")
		return storePostgres.NewEventStorePostgres(db), func() { db.Close() }

	case config.StoreSQLite:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err == nil {
			err = storeSQLite.InitSQLite(db)
		}
		if err != nil {
			log.Error("❌ Error initializing SQLite", zap.Error(err))
			if db != nil {
				db.Close()
			}
			return storeDB.UnavailableStore{Reason: err.Error()}, noop
		}
		log.Info("✅ SQLite listo", zap.String("path", cfg.SQLitePath))
		return storeSQLite.NewEventStoreSQLite(db), func() { db.Close() }

	default:
		log.Warn("⚠️ Persistencia deshabilitada", zap.String("backend", cfg.StoreBackend))
		return storeDB.UnavailableStore{Reason: "store backend " + cfg.StoreBackend}, noop
	}
}
