package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	TelegramToken string

	// SupportChatID — чат поддержки, куда пересылаются обращения.
	// SupportTopicID — необязательный топик внутри чата; 0 = без топика,
	// сообщения вне топика движок игнорирует.
	SupportChatID  int64
	SupportTopicID int64

	// OpenTicketsLimit — максимум тикетов в выдаче команды списка открытых.
	OpenTicketsLimit int

	// DisplayTZ — часовой пояс для отображения дат операторам.
	DisplayTZ string

	// NotifyBlockedReply — сообщать ли оператору, что ответ не доставлен
	// из-за блокировки пользователя.
	NotifyBlockedReply bool

	// Kafka — если Brokers/Topic заданы, support-bridge публикует события
	// жизненного цикла тикетов (best-effort).
	Kafka struct {
		Brokers string
		Topic   string
	}

	DB struct {
		Driver   string // sqlite | postgres
		Path     string // для sqlite
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:            getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:           firstEnv("APP_PORT", "HTTP_PORT", "8099"),
		AppEnv:             getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		TelegramToken:      getEnv("TELEGRAM_TOKEN", ""),
		SupportChatID:      getEnvInt64("SUPPORT_CHAT_ID", 0),
		SupportTopicID:     getEnvInt64("SUPPORT_TOPIC_ID", 0),
		OpenTicketsLimit:   int(getEnvInt64("OPEN_TICKETS_LIMIT", 50)),
		DisplayTZ:          getEnv("DISPLAY_TZ", "Europe/Moscow"),
		NotifyBlockedReply: getEnvBool("NOTIFY_BLOCKED_REPLY", true),
	}
	cfg.Kafka.Brokers = getEnv("KAFKA_BROKERS", "")
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", "")

	cfg.DB.Driver = getEnv("DB_DRIVER", "sqlite")
	cfg.DB.Path = getEnv("DB_PATH", "support_bridge.db")
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "support_bridge")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SupportChatID == 0 {
		return errors.New("config: SUPPORT_CHAT_ID is required")
	}
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return errors.New("config: DB_PATH is required for sqlite")
		}
	case "postgres":
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DB_HOST and DB_DATABASE are required for postgres")
		}
		if c.AppEnv == "production" && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DB.Driver)
	}
	if _, err := time.LoadLocation(c.DisplayTZ); err != nil {
		return fmt.Errorf("config: DISPLAY_TZ: %w", err)
	}
	return nil
}

// DSN возвращает строку подключения для драйвера postgres.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

// DisplayLocation возвращает загруженный часовой пояс; вызывать после Validate.
func (c *Config) DisplayLocation() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
