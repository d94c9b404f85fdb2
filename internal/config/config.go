// Package config - настройки сервиса: YAML-файл (GATEGO_CONFIG) и переменные окружения поверх него.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"gatego-backend/internal/db"
	"gatego-backend/internal/kafka"
	"gatego-backend/internal/logging"
)

type Config struct {
	Server  ServerConfig   `yaml:"server"`
	DB      db.Config      `yaml:"db"`
	Kafka   kafka.Config   `yaml:"kafka"`
	ISO     ISOConfig      `yaml:"iso8583"`
	Logging logging.Config `yaml:"logging"`
	Quote   QuoteConfig    `yaml:"quote"`

	// IDR за 1 USD, если курс не передан в запросе
	DefaultExchangeRate string          `yaml:"default_exchange_rate"`
	ExchangeRate        decimal.Decimal `yaml:"-"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ISOConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

type QuoteConfig struct {
	SigningKey string        `yaml:"signing_key"`
	TTL        time.Duration `yaml:"ttl"`
}

// KafkaEnabled - consumers запускаются только при заданном брокере
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", ShutdownTimeout: 10 * time.Second},
		DB: db.Config{
			User: "postgres",
			Host: "localhost",
			Port: "5432",
			Name: "gatego",
		},
		Kafka: kafka.Config{
			GroupID:           "gatego-group",
			JSONRequestTopic:  "landed-cost.requests.json",
			JSONResponseTopic: "landed-cost.responses.json",
			XMLRequestTopic:   "landed-cost.requests.xml",
			XMLResponseTopic:  "landed-cost.responses.xml",
			EventsTopic:       "pib.customs-events",
		},
		ISO:                 ISOConfig{Port: "8583"},
		Logging:             logging.DefaultConfig(),
		Quote:               QuoteConfig{TTL: 24 * time.Hour},
		DefaultExchangeRate: "16000",
	}
}

// FromEnv - загрузка из окружения процесса
func FromEnv() (*Config, error) { return Load(os.Getenv) }

// Load - значения по умолчанию, затем YAML, затем окружение
func Load(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path := getenv("GATEGO_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
		}
	}

	str := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	str(&cfg.Server.Port, "SERVER_PORT")
	str(&cfg.DB.User, "DB_USER")
	str(&cfg.DB.Password, "DB_PASSWORD")
	str(&cfg.DB.Host, "DB_HOST")
	str(&cfg.DB.Port, "DB_PORT")
	str(&cfg.DB.Name, "DB_NAME")
	str(&cfg.Kafka.GroupID, "KAFKA_GROUP_ID")
	str(&cfg.Kafka.JSONRequestTopic, "KAFKA_TOPIC_JSON_REQUEST")
	str(&cfg.Kafka.JSONResponseTopic, "KAFKA_TOPIC_JSON_RESPONSES")
	str(&cfg.Kafka.XMLRequestTopic, "KAFKA_TOPIC_XML_REQUEST")
	str(&cfg.Kafka.XMLResponseTopic, "KAFKA_TOPIC_XML_RESPONSES")
	str(&cfg.Kafka.EventsTopic, "KAFKA_TOPIC_CUSTOMS_EVENTS")
	str(&cfg.ISO.Port, "ISO8583_PORT")
	str(&cfg.Logging.Level, "LOG_LEVEL")
	str(&cfg.Logging.Format, "LOG_FORMAT")
	str(&cfg.Logging.Output, "LOG_OUTPUT")
	str(&cfg.Quote.SigningKey, "QUOTE_SIGNING_KEY")
	str(&cfg.DefaultExchangeRate, "DEFAULT_EXCHANGE_RATE")

	if v := getenv("KAFKA_BROKER"); v != "" {
		cfg.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	if v := getenv("ISO8583_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("ISO8583_ENABLED: %w", err)
		}
		cfg.ISO.Enabled = enabled
	}
	if v := getenv("QUOTE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("QUOTE_TTL: %w", err)
		}
		cfg.Quote.TTL = ttl
	}
	if v := getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	rate, err := decimal.NewFromString(cfg.DefaultExchangeRate)
	if err != nil || !rate.IsPositive() {
		return nil, fmt.Errorf("DEFAULT_EXCHANGE_RATE: ожидается положительное число, получено %q", cfg.DefaultExchangeRate)
	}
	cfg.ExchangeRate = rate

	if cfg.Server.Port == "" {
		return nil, errors.New("не задан порт сервера")
	}
	return cfg, nil
}
