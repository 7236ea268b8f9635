package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

// PaymentsKey is the top-level key holding the payment settings mapping.
const PaymentsKey = "payments"

// paymentsEnvPrefix lets secrets such as PAYMENTS_STRIPE_API_KEY come from
// the deployment environment instead of the config file.
const paymentsEnvPrefix = "PAYMENTS_"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Payments is handed to the settings resolver as-is, keys upper-cased.
	Payments map[string]any `mapstructure:"-"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Database,
	)
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// BrokerList splits the comma separated broker list. Empty means Kafka
// publishing is disabled.
func (c KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type MetricsConfig struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval_ms"`
	CommonLabels string `mapstructure:"common_labels"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8072")
	v.SetDefault("server.host", "0.0.0.0")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)

	v.SetDefault("mysql.host", "localhost:3306")
	v.SetDefault("mysql.user", "payments")
	v.SetDefault("mysql.password", "payments123")
	v.SetDefault("mysql.database", "payments")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "payments.events")
	v.SetDefault("kafka.group_id", "payment-processors")

	v.SetDefault("metrics.url", "")
	v.SetDefault("metrics.interval_ms", 10000)
	v.SetDefault("metrics.common_labels", "")
}

// Load reads config.yaml from CONFIG_PATH (default "."), applies
// environment overrides (SERVER_PORT, MYSQL_HOST, ...) and falls back to
// compiled-in defaults. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(getEnv("CONFIG_PATH", "."))
}

func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Payments = paymentsMapping(v.GetStringMap(PaymentsKey), os.Environ())
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// listSettings are the payment settings whose environment value is a
// comma separated list. Every other value, API keys included, is taken
// verbatim.
var listSettings = map[string]bool{
	"DEFAULT_INTEGRATION_CLASSES": true,
}

// paymentsMapping upper-cases the file keys (viper lower-cases them) and
// lays PAYMENTS_* environment variables over them.
func paymentsMapping(fromFile map[string]any, environ []string) map[string]any {
	out := make(map[string]any, len(fromFile))
	for k, v := range fromFile {
		out[strings.ToUpper(k)] = v
	}

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, paymentsEnvPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, paymentsEnvPrefix)
		if listSettings[name] {
			var items []string
			for _, item := range strings.Split(value, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			out[name] = items
			continue
		}
		out[name] = value
	}

	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
