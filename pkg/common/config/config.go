package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	// Server
	ServerPort        string        `yaml:"server_port"`
	ServerHost        string        `yaml:"server_host"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	MaxRequestBody    int64         `yaml:"max_request_body_bytes"`
	CORSAllowedOrigin string        `yaml:"cors_allowed_origin"`
	RateLimitRPS      int           `yaml:"rate_limit_rps"`
	RateLimitBurst    int           `yaml:"rate_limit_burst"`

	// Record store
	StoreDriver      string `yaml:"store_driver"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`
	FormulariTable   string `yaml:"formulari_table"`
	TicketsTable     string `yaml:"tickets_table"`
	MemorySeedFile   string `yaml:"memory_seed_file"`

	// Redis
	RedisEnabled  bool   `yaml:"redis_enabled"`
	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Kafka
	KafkaEnabled     bool     `yaml:"kafka_enabled"`
	KafkaBrokers     []string `yaml:"kafka_brokers"`
	KafkaGroupID     string   `yaml:"kafka_group_id"`
	KafkaEventsTopic string   `yaml:"kafka_events_topic"`

	// Formulari
	StorageBaseURL   string `yaml:"storage_base_url"`
	DefaultPageSize  int    `yaml:"default_page_size"`
	MaxPageSize      int    `yaml:"max_page_size"`
	OperatorID       string `yaml:"operator_id"`
	DateFilterColumn string `yaml:"date_filter_column"`
	PECSentRule      string `yaml:"pec_sent_rule"`

	// External services
	UpdateServiceURL string        `yaml:"update_service_url"`
	DeleteServiceURL string        `yaml:"delete_service_url"`
	PECServiceURL    string        `yaml:"pec_service_url"`
	UpstreamTimeout  time.Duration `yaml:"upstream_timeout"`
	ActionLockTTL    time.Duration `yaml:"action_lock_ttl"`

	// Dashboard
	StatsCacheTTL time.Duration `yaml:"stats_cache_ttl"`
}

func Defaults() *Config {
	return &Config{
		ServerPort:        "8080",
		ServerHost:        "0.0.0.0",
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		MaxRequestBody:    4 * 1024 * 1024,
		CORSAllowedOrigin: "*",
		RateLimitRPS:      50,
		RateLimitBurst:    100,

		StoreDriver:      StoreDriverPostgres,
		PostgresHost:     "localhost",
		PostgresPort:     "5432",
		PostgresUser:     "postgres",
		PostgresPassword: "",
		PostgresDB:       "postgres",
		PostgresSSLMode:  "disable",
		FormulariTable:   "formulari",
		TicketsTable:     "formulari_tickets",

		RedisEnabled: false,
		RedisHost:    "localhost",
		RedisPort:    "6379",
		RedisDB:      0,

		KafkaEnabled:     false,
		KafkaBrokers:     []string{"localhost:9092"},
		KafkaGroupID:     "formulari-dashboard",
		KafkaEventsTopic: "formulari.events",

		StorageBaseURL:   "",
		DefaultPageSize:  15,
		MaxPageSize:      100,
		OperatorID:       "70577",
		DateFilterColumn: "data_movimento",
		PECSentRule:      "presence",

		UpdateServiceURL: "http://192.168.1.41:8020/aggiorna",
		DeleteServiceURL: "http://192.168.1.41:8021/cancella",
		PECServiceURL:    "http://192.168.1.172:8022/api/send-pec",
		UpstreamTimeout:  15 * time.Second,
		ActionLockTTL:    2 * time.Minute,

		StatsCacheTTL: 5 * time.Minute,
	}
}

// Load resolves configuration from defaults, the optional YAML file named by
// CONFIG_FILE, a local .env file and finally the process environment.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// LoadFile overlays the keys present in a YAML file onto cfg.
func LoadFile(path string, cfg *Config) error {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	return yaml.Unmarshal(content, cfg)
}

func applyEnv(cfg *Config) {
	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.ServerHost = getEnv("SERVER_HOST", cfg.ServerHost)
	cfg.ReadTimeout = getDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.MaxRequestBody = int64(getIntEnv("MAX_REQUEST_BODY_BYTES", int(cfg.MaxRequestBody)))
	cfg.CORSAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", cfg.CORSAllowedOrigin)
	cfg.RateLimitRPS = getIntEnv("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = getIntEnv("RATE_LIMIT_BURST", cfg.RateLimitBurst)

	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.PostgresHost = getEnv("POSTGRES_HOST", cfg.PostgresHost)
	cfg.PostgresPort = getEnv("POSTGRES_PORT", cfg.PostgresPort)
	cfg.PostgresUser = getEnv("POSTGRES_USER", cfg.PostgresUser)
	cfg.PostgresPassword = getEnv("POSTGRES_PASSWORD", cfg.PostgresPassword)
	cfg.PostgresDB = getEnv("POSTGRES_DB", cfg.PostgresDB)
	cfg.PostgresSSLMode = getEnv("POSTGRES_SSLMODE", cfg.PostgresSSLMode)
	cfg.FormulariTable = getEnv("FORMULARI_TABLE", cfg.FormulariTable)
	cfg.TicketsTable = getEnv("TICKETS_TABLE", cfg.TicketsTable)
	cfg.MemorySeedFile = getEnv("MEMORY_SEED_FILE", cfg.MemorySeedFile)

	cfg.RedisEnabled = getBoolEnv("REDIS_ENABLED", cfg.RedisEnabled)
	cfg.RedisHost = getEnv("REDIS_HOST", cfg.RedisHost)
	cfg.RedisPort = getEnv("REDIS_PORT", cfg.RedisPort)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getIntEnv("REDIS_DB", cfg.RedisDB)

	cfg.KafkaEnabled = getBoolEnv("KAFKA_ENABLED", cfg.KafkaEnabled)
	cfg.KafkaBrokers = getStringSliceEnv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaGroupID = getEnv("KAFKA_GROUP_ID", cfg.KafkaGroupID)
	cfg.KafkaEventsTopic = getEnv("KAFKA_EVENTS_TOPIC", cfg.KafkaEventsTopic)

	cfg.StorageBaseURL = getEnv("STORAGE_BASE_URL", cfg.StorageBaseURL)
	cfg.DefaultPageSize = getIntEnv("DEFAULT_PAGE_SIZE", cfg.DefaultPageSize)
	cfg.MaxPageSize = getIntEnv("MAX_PAGE_SIZE", cfg.MaxPageSize)
	cfg.OperatorID = getEnv("OPERATOR_ID", cfg.OperatorID)
	cfg.DateFilterColumn = getEnv("DATE_FILTER_COLUMN", cfg.DateFilterColumn)
	cfg.PECSentRule = strings.ToLower(getEnv("PEC_SENT_RULE", cfg.PECSentRule))

	cfg.UpdateServiceURL = getEnv("UPDATE_SERVICE_URL", cfg.UpdateServiceURL)
	cfg.DeleteServiceURL = getEnv("DELETE_SERVICE_URL", cfg.DeleteServiceURL)
	cfg.PECServiceURL = getEnv("PEC_SERVICE_URL", cfg.PECServiceURL)
	cfg.UpstreamTimeout = getDuration("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	cfg.ActionLockTTL = getDuration("ACTION_LOCK_TTL", cfg.ActionLockTTL)

	cfg.StatsCacheTTL = getDuration("STATS_CACHE_TTL", cfg.StatsCacheTTL)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
