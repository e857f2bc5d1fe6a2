package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. BOXWORKS_WEB_PORT.
const EnvPrefix = "BOXWORKS_"

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Log       LogConfig       `yaml:"log"`
	Inventory InventoryConfig `yaml:"inventory"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver" env:"DB_DRIVER"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH"`
}

type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT"`
	Database string `yaml:"database" env:"POSTGRES_DB"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
	Address  string `yaml:"address" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type WebConfig struct {
	Host          string `yaml:"host" env:"WEB_HOST"`
	Port          int    `yaml:"port" env:"WEB_PORT"`
	SessionSecret string `yaml:"session_secret" env:"SESSION_SECRET"`
	AdminPassword string `yaml:"admin_password" env:"ADMIN_PASSWORD"` // seeds the first admin user
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend" env:"MSG_BACKEND"` // kafka, mqtt or none
	Kafka               KafkaConfig   `yaml:"kafka"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	EventsTopic         string        `yaml:"events_topic" env:"MSG_EVENTS_TOPIC"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval" env:"MSG_OUTBOX_DRAIN_INTERVAL"`
	Source              string        `yaml:"source" env:"MSG_SOURCE"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker" env:"MQTT_BROKER"`
	Port     int    `yaml:"port" env:"MQTT_PORT"`
	ClientID string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // json or text
}

type InventoryConfig struct {
	AutoReorderAlerts    bool   `yaml:"auto_reorder_alerts" env:"AUTO_REORDER_ALERTS"`
	DefaultAlertPriority string `yaml:"default_alert_priority" env:"DEFAULT_ALERT_PRIORITY"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "boxworks.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "boxworks",
				User:     "boxworks",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8090,
			SessionSecret: "change-me-in-production",
			AdminPassword: "admin",
		},
		Messaging: MessagingConfig{
			Backend: "none",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "boxworks-tail",
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "boxworks",
			},
			EventsTopic:         "boxworks.events",
			OutboxDrainInterval: 5 * time.Second,
			Source:              "boxworks",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Inventory: InventoryConfig{
			AutoReorderAlerts:    true,
			DefaultAlertPriority: "medium",
		},
	}
}

// Load returns Defaults overlaid with the YAML file at path (if present)
// and then with BOXWORKS_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv applies environment overrides to target.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()   { c.mu.Lock() }
func (c *Config) Unlock() { c.mu.Unlock() }
