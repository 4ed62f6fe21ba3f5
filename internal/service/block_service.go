package service

import (
	"context"
	"errors"
	"time"

	"github.com/psds-microservice/support-bridge/internal/model"
	"gorm.io/gorm"
)

// BlockStorer — интерфейс списка блокировок для движка маршрутизации.
type BlockStorer interface {
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	Toggle(ctx context.Context, userID, adminID int64) (bool, error)
}

type BlockService struct {
	db *gorm.DB
}

func NewBlockService(db *gorm.DB) *BlockService {
	return &BlockService{db: db}
}

func (s *BlockService) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	var cnt int64
	err := s.db.WithContext(ctx).
		Model(&model.BlockEntry{}).
		Where("user_id = ?", userID).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// Toggle переключает блокировку пользователя и возвращает новое состояние
// (true = теперь заблокирован). Чтение и запись — одна транзакция: два
// одновременных переключения не могут оба «снять» или оба «поставить»
// блокировку.
func (s *BlockService) Toggle(ctx context.Context, userID, adminID int64) (bool, error) {
	var nowBlocked bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e model.BlockEntry
		err := tx.Where("user_id = ?", userID).First(&e).Error
		if err == nil {
			nowBlocked = false
			return tx.Where("user_id = ?", userID).Delete(&model.BlockEntry{}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		nowBlocked = true
		return tx.Create(&model.BlockEntry{
			UserID:    userID,
			AdminID:   adminID,
			BlockedAt: time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return false, err
	}
	return nowBlocked, nil
}
