package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Shortener ShortenerConfig
	Kafka     KafkaConfig
	OTel      OTelConfig
}

type AppConfig struct {
	Name     string
	Version  string
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Port string
	Host string
}

type MongoDBConfig struct {
	URI      string
	Database string
}

type ShortenerConfig struct {
	BaseURL        string
	ShortIDLength  int
	RedirectStatus int // 301 or 302
}

type KafkaConfig struct {
	Brokers    []string
	ClickTopic string
}

type OTelConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		App: AppConfig{
			Name:     GetEnv("APP_NAME", "linktally"),
			Version:  GetEnv("APP_VERSION", "0.1.0"),
			Env:      GetEnv("APP_ENV", "development"),
			LogLevel: GetEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: GetEnv("APP_PORT", "8080"),
			Host: GetEnv("APP_HOST", "localhost"),
		},
		MongoDB: MongoDBConfig{
			URI:      GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: GetEnv("MONGODB_DATABASE", "linktally"),
		},
		Shortener: ShortenerConfig{
			BaseURL:        GetEnv("SHORTENER_BASE_URL", "http://localhost:8080"),
			ShortIDLength:  GetEnvInt("SHORT_ID_LENGTH", 8),
			RedirectStatus: GetEnvInt("REDIRECT_STATUS", 302),
		},
		Kafka: KafkaConfig{
			Brokers:    SplitCSV(GetEnv("KAFKA_BROKERS", "localhost:9092")),
			ClickTopic: GetEnv("KAFKA_CLICK_TOPIC", "clicks.recorded"),
		},
		OTel: OTelConfig{
			Enabled:  GetEnvBool("OTEL_ENABLED", false),
			Endpoint: GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		},
	}

	if cfg.Shortener.RedirectStatus != 301 && cfg.Shortener.RedirectStatus != 302 {
		return nil, fmt.Errorf("REDIRECT_STATUS must be 301 or 302 (got %d)", cfg.Shortener.RedirectStatus)
	}
	if cfg.Shortener.ShortIDLength < 4 || cfg.Shortener.ShortIDLength > 32 {
		return nil, fmt.Errorf("SHORT_ID_LENGTH must be between 4 and 32 (got %d)", cfg.Shortener.ShortIDLength)
	}

	return cfg, nil
}
