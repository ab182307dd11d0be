package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Mail      MailConfig      `yaml:"mail"`
	Auth      AuthConfig      `yaml:"auth"`
	ParcelBox ParcelBoxConfig `yaml:"parcelbox"`
}

type DatabaseConfig struct {
	// Driver: "postgres" (default) или "memory" для локального запуска без БД.
	Driver   string `yaml:"driver" env:"STORAGE_DRIVER"`
	URL      string `yaml:"url" env:"DATABASE_URL"`
	Host     string `yaml:"host" env:"DATABASE_HOST"`
	Port     int    `yaml:"port" env:"DATABASE_PORT"`
	Username string `yaml:"username" env:"DATABASE_USER"`
	Password string `yaml:"password" env:"DATABASE_PASSWORD"`
	DBName   string `yaml:"name" env:"DATABASE_NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"DATABASE_SSLMODE"`
}

// ConnString returns URL if set, otherwise builds one from the parts.
func (d DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" {
		return ""
	}
	port := d.Port
	if port == 0 {
		port = 5432
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host    string   `yaml:"host" env:"KAFKA_HOST"`
	Port    int      `yaml:"port" env:"KAFKA_PORT"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`

	PackageRegisteredTopicName string `yaml:"package_registered_topic_name"`
}

func (k KafkaConfig) BrokerList() []string {
	out := make([]string, 0, len(k.Brokers)+1)
	for _, b := range k.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	if len(out) == 0 && k.Host != "" {
		port := k.Port
		if port == 0 {
			port = 9092
		}
		out = append(out, fmt.Sprintf("%s:%d", k.Host, port))
	}
	return out
}

type RedisConfig struct {
	Host      string `yaml:"host" env:"REDIS_HOST"`
	Port      int    `yaml:"port" env:"REDIS_PORT"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix"`
}

func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", r.Host, port)
}

type MailConfig struct {
	Host     string `yaml:"host" env:"MAIL_HOST"`
	Port     int    `yaml:"port" env:"MAIL_PORT"`
	Username string `yaml:"username" env:"MAIL_USER"`
	Password string `yaml:"password" env:"MAIL_PASS"`
	From     string `yaml:"from" env:"MAIL_FROM"`
	TLS      string `yaml:"tls" env:"MAIL_TLS"`
}

type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTLSeconds int    `yaml:"token_ttl_seconds"`
	BcryptCost      int    `yaml:"bcrypt_cost"`

	BootstrapAdminUsername string `yaml:"bootstrap_admin_username" env:"ADMIN_USERNAME"`
	BootstrapAdminPassword string `yaml:"bootstrap_admin_password" env:"ADMIN_PASSWORD"`
}

type ParcelBoxConfig struct {
	HTTPAddr    string `yaml:"http_addr" env:"HTTP_ADDR"`
	Port        int    `yaml:"port" env:"PORT"`
	SwaggerPath string `yaml:"swagger_path" env:"swaggerPath"`

	TrackCacheTTLSeconds    int `yaml:"track_cache_ttl_seconds"`
	PublishTimeoutSeconds   int `yaml:"publish_timeout_seconds"`
	LoginRateLimitPerMinute int `yaml:"login_rate_limit_per_minute"`
	TrackRateLimitPerMinute int `yaml:"track_rate_limit_per_minute"`

	ReportTimezone string `yaml:"report_timezone" env:"REPORT_TZ"`

	NotifierHTTPAddr      string `yaml:"notifier_http_addr" env:"NOTIFIER_HTTP_ADDR"`
	NotifierConsumerGroup string `yaml:"notifier_consumer_group"`
	SendTimeoutSeconds    int    `yaml:"send_timeout_seconds"`
}

// ListenAddr: PORT важнее http_addr, как принято у PaaS.
func (c ParcelBoxConfig) ListenAddr() string {
	if c.Port > 0 {
		return fmt.Sprintf(":%d", c.Port)
	}
	return c.HTTPAddr
}

// LoadConfig читает YAML (если путь задан), затем .env и переменные окружения поверх.
func LoadConfig(filename string) (*Config, error) {
	var config Config

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	}

	// .env не обязателен; уже заданные переменные он не перетирает.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	return &config, nil
}
