package database

import (
	"fmt"

	"github.com/psds-microservice/support-bridge/internal/config"
	"github.com/psds-microservice/support-bridge/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open открывает соединение с БД по конфигу. По умолчанию sqlite (как и
// исходный бот), postgres — через DB_DRIVER=postgres.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	switch cfg.DB.Driver {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DSN()), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	default:
		db, err := gorm.Open(sqlite.Open(cfg.DB.Path), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", cfg.DB.Path, err)
		}
		return db, nil
	}
}

// Migrate приводит схему к актуальной (gorm AutoMigrate по моделям).
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Ticket{},
		&model.MessageLink{},
		&model.BlockEntry{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
