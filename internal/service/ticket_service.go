package service

import (
	"context"
	"errors"
	"time"

	"github.com/psds-microservice/support-bridge/internal/errs"
	"github.com/psds-microservice/support-bridge/internal/model"
	"gorm.io/gorm"
)

// TicketStorer — интерфейс хранилища тикетов для движка маршрутизации
// (Dependency Inversion, подмена моком в тестах).
type TicketStorer interface {
	FindOpen(ctx context.Context, userID int64) (*model.Ticket, error)
	OpenOrCreate(ctx context.Context, userID int64, displayName, handle string) (*model.Ticket, bool, error)
	SetStatus(ctx context.Context, id int64, status model.TicketStatus) error
	Get(ctx context.Context, id int64) (*model.Ticket, error)
	ListOpen(ctx context.Context, limit int) ([]model.Ticket, error)
	LatestByUser(ctx context.Context, userID int64) (*model.Ticket, error)
}

type TicketService struct {
	db *gorm.DB
}

func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

// FindOpen возвращает последний открытый тикет пользователя
// (при нескольких — с наибольшим id). Если открытых нет — errs.ErrTicketNotFound.
func (s *TicketService) FindOpen(ctx context.Context, userID int64) (*model.Ticket, error) {
	var t model.Ticket
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.TicketStatusOpen).
		Order("id DESC").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// OpenOrCreate возвращает открытый тикет пользователя, создавая его при
// отсутствии. Поиск и создание выполняются в одной транзакции, чтобы два
// почти одновременных первых сообщения не породили два открытых тикета.
// Второй результат — true, если тикет создан этим вызовом.
func (s *TicketService) OpenOrCreate(ctx context.Context, userID int64, displayName, handle string) (*model.Ticket, bool, error) {
	var t model.Ticket
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("user_id = ? AND status = ?", userID, model.TicketStatusOpen).
			Order("id DESC").
			First(&t).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		now := time.Now().UTC()
		t = model.Ticket{
			UserID:      userID,
			DisplayName: displayName,
			Handle:      handle,
			Status:      model.TicketStatusOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &t, created, nil
}

// SetStatus выставляет статус тикета. Идемпотентна: повторное закрытие
// закрытого тикета не ошибка, но updated_at обновляется в любом случае.
func (s *TicketService) SetStatus(ctx context.Context, id int64, status model.TicketStatus) error {
	res := s.db.WithContext(ctx).
		Model(&model.Ticket{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrTicketNotFound
	}
	return nil
}

func (s *TicketService) Get(ctx context.Context, id int64) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListOpen возвращает открытые тикеты, свежие по updated_at — первыми.
func (s *TicketService) ListOpen(ctx context.Context, limit int) ([]model.Ticket, error) {
	var items []model.Ticket
	tx := s.db.WithContext(ctx).
		Where("status = ?", model.TicketStatusOpen).
		Order("updated_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// LatestByUser возвращает последний по id тикет пользователя независимо от
// статуса — источник снимка имени для объявлений о блокировке.
func (s *TicketService) LatestByUser(ctx context.Context, userID int64) (*model.Ticket, error) {
	var t model.Ticket
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}
