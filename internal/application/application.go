package application

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/psds-microservice/support-bridge/internal/config"
	"github.com/psds-microservice/support-bridge/internal/database"
	"github.com/psds-microservice/support-bridge/internal/engine"
	"github.com/psds-microservice/support-bridge/internal/handler"
	"github.com/psds-microservice/support-bridge/internal/kafka"
	"github.com/psds-microservice/support-bridge/internal/router"
	"github.com/psds-microservice/support-bridge/internal/service"
	"github.com/psds-microservice/support-bridge/internal/transport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Повторяющиеся подряд ошибки хранилища — проблема живости процесса, а не
// отдельного события: после этого порога Run завершается с ошибкой.
const storageFailureLimit = 5

// NewLogger собирает zap-логгер по конфигу.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.AppEnv == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

// Bot — приложение support-bridge: движок маршрутизации плюс read-only
// HTTP API для операторов.
type Bot struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   *engine.Engine
	tr       transport.Transport
	producer *kafka.Producer
	httpSrv  *http.Server
}

// New собирает приложение: БД, хранилища, продюсер событий, движок, HTTP.
func New(cfg *config.Config, tr transport.Transport, logger *zap.Logger) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	tickets := service.NewTicketService(db)
	links := service.NewLinkService(db)
	blocks := service.NewBlockService(db)
	producer := kafka.NewProducer(kafka.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.Topic)

	eng := engine.New(engine.Config{
		SupportChatID:      cfg.SupportChatID,
		SupportTopicID:     cfg.SupportTopicID,
		OpenTicketsLimit:   cfg.OpenTicketsLimit,
		NotifyBlockedReply: cfg.NotifyBlockedReply,
		DisplayLocation:    cfg.DisplayLocation(),
	}, tickets, links, blocks, tr, producer, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(handler.NewTicketHandler(tickets, blocks)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Bot{
		cfg:      cfg,
		logger:   logger,
		engine:   eng,
		tr:       tr,
		producer: producer,
		httpSrv:  httpSrv,
	}, nil
}

// Run обрабатывает события транспорта до отмены ctx. Каждое событие
// доводится до конца прежде, чем берётся следующее.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("support-bridge started",
		zap.Int64("support_chat_id", b.cfg.SupportChatID),
		zap.Int64("support_topic_id", b.cfg.SupportTopicID),
		zap.String("http_addr", b.httpSrv.Addr))

	go func() {
		if err := b.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.logger.Error("http server", zap.Error(err))
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.httpSrv.Shutdown(shutdownCtx); err != nil {
			b.logger.Warn("http shutdown", zap.Error(err))
		}
		if err := b.producer.Close(); err != nil {
			b.logger.Warn("kafka close", zap.Error(err))
		}
	}()

	storageFailures := 0
	events := b.tr.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			outcome, err := b.engine.HandleEvent(ctx, ev)
			if err != nil {
				storageFailures++
				b.logger.Error("event failed",
					zap.Int("consecutive_failures", storageFailures), zap.Error(err))
				if storageFailures >= storageFailureLimit {
					return fmt.Errorf("storage failing repeatedly: %w", err)
				}
				continue
			}
			storageFailures = 0
			b.logger.Debug("event handled", zap.String("outcome", string(outcome)))
		}
	}
}
