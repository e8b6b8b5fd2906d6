package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backends de persistencia soportados por STORE_BACKEND.
const (
	StoreMongoDB  = "mongodb"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreNone     = "none"
)

type Config struct {
	HTTPPort string
	LogLevel string

	// Plataforma
	VerifyToken      string
	AppSecret        string
	PageAccessToken  string
	PageID           string
	GraphAPIURL      string
	GraphAPIVersion  string
	GraphTimeout     time.Duration
	DispatchTimeout  time.Duration
	EnforceSignature bool

	// Persistencia
	StoreBackend    string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	DatabaseURL     string
	SQLitePath      string

	// Deduplicación
	RedisAddr    string
	LeadDedupTTL time.Duration

	// Sinks
	UseKafka      bool
	KafkaBrokers  []string
	KafkaCRMTopic string
	NotifyEmailTo string

	EnableSetupEndpoints bool
}

// LoadConfig lee la configuración del entorno. Si existe un .env se carga antes,
// sin pisar variables ya definidas.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort: getEnv("HTTP_PORT", getEnv("PORT", "3000")),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		VerifyToken:      os.Getenv("WEBHOOK_VERIFY_TOKEN"),
		AppSecret:        os.Getenv("FB_APP_SECRET"),
		PageAccessToken:  os.Getenv("FB_PAGE_ACCESS_TOKEN"),
		PageID:           os.Getenv("FB_PAGE_ID"),
		GraphAPIURL:      getEnv("GRAPH_API_URL", "https://graph.facebook.com"),
		GraphAPIVersion:  getEnv("GRAPH_API_VERSION", "v18.0"),
		GraphTimeout:     getEnvDuration("GRAPH_TIMEOUT", 10*time.Second),
		DispatchTimeout:  getEnvDuration("DISPATCH_TIMEOUT", 10*time.Second),
		EnforceSignature: getEnvBool("ENFORCE_SIGNATURE", true),

		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", StoreMongoDB)),
		MongoURI:        getEnv("MONGO_URI", getEnv("MONGODB_URI", "mongodb://localhost:27017")),
		MongoDatabase:   getEnv("MONGO_DATABASE", "facebook_leads"),
		MongoCollection: getEnv("MONGO_COLLECTION", "webhooks"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SQLitePath:      getEnv("SQLITE_PATH", "./leadhook.db"),

		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		LeadDedupTTL: getEnvDuration("LEAD_DEDUP_TTL", 24*time.Hour),

		UseKafka:      getEnvBool("USE_KAFKA", false),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaCRMTopic: getEnv("KAFKA_CRM_TOPIC", "crm-leads"),
		NotifyEmailTo: os.Getenv("NOTIFY_EMAIL_TO"),

		EnableSetupEndpoints: getEnvBool("ENABLE_SETUP_ENDPOINTS", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
