package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// M-Pesa settings are looked up at call time, never snapshotted into Config.
const (
	MpesaConsumerKey        = "MPESA_CONSUMER_KEY"
	MpesaConsumerSecret     = "MPESA_CONSUMER_SECRET"
	MpesaShortCode          = "MPESA_SHORTCODE"
	MpesaPasskey            = "MPESA_PASSKEY"
	MpesaCallbackURL        = "MPESA_CALLBACK_URL"
	MpesaInitiatorName      = "MPESA_INITIATOR_NAME"
	MpesaSecurityCredential = "MPESA_SECURITY_CREDENTIAL"
	MpesaResultURL          = "MPESA_RESULT_URL"
	MpesaQueueTimeoutURL    = "MPESA_QUEUE_TIMEOUT_URL"
	MpesaConfirmationURL    = "MPESA_C2B_CONFIRMATION_URL"
	MpesaValidationURL      = "MPESA_C2B_VALIDATION_URL"
	MpesaEnv                = "MPESA_ENV"
)

// Config holds the process-level settings read once at startup.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Auth          AuthConfig
	Events        EventsConfig
	LogLevel      string
}

type ServerConfig struct {
	HTTPPort string
	GRPCPort string
	// STKInterval is the minimum gap between two STK pushes to the same phone.
	STKInterval time.Duration
}

type DatabaseConfig struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Pass +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=disable TimeZone=UTC"
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers         []string
	Enabled         bool
	ConnectAttempts int
}

type ElasticsearchConfig struct {
	Addresses []string
	Index     string
}

type AuthConfig struct {
	JWTSecret string
}

type EventsConfig struct {
	HeartbeatInterval time.Duration
}

// New returns a viper instance bound to the environment with the service defaults.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("HTTP_PORT", "3008")
	v.SetDefault("GRPC_PORT", "50057")
	v.SetDefault("STK_INTERVAL", "10s")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASS", "postgres")
	v.SetDefault("DB_NAME", "davietech")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_BROKERS", "kafka:9092")
	v.SetDefault("KAFKA_ENABLED", true)
	v.SetDefault("KAFKA_CONNECT_ATTEMPTS", 10)
	v.SetDefault("ELASTICSEARCH_URL", "http://localhost:9200")
	v.SetDefault("ELASTICSEARCH_INDEX", "products")
	v.SetDefault("SSE_HEARTBEAT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault(MpesaEnv, "sandbox")
	return v
}

// Read merges the optional config.yaml into v. A missing file is not an error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load reads the optional config.yaml and the environment into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := Read(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			HTTPPort:    v.GetString("HTTP_PORT"),
			GRPCPort:    v.GetString("GRPC_PORT"),
			STKInterval: v.GetDuration("STK_INTERVAL"),
		},
		Database: DatabaseConfig{
			Host: v.GetString("DB_HOST"),
			Port: v.GetString("DB_PORT"),
			User: v.GetString("DB_USER"),
			Pass: v.GetString("DB_PASS"),
			Name: v.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(v.GetString("KAFKA_BROKERS")),
			Enabled:         v.GetBool("KAFKA_ENABLED"),
			ConnectAttempts: v.GetInt("KAFKA_CONNECT_ATTEMPTS"),
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses: splitList(v.GetString("ELASTICSEARCH_URL")),
			Index:     v.GetString("ELASTICSEARCH_INDEX"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
		},
		Events: EventsConfig{
			HeartbeatInterval: v.GetDuration("SSE_HEARTBEAT"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.Events.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("SSE_HEARTBEAT must be positive, got %s", cfg.Events.HeartbeatInterval)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
