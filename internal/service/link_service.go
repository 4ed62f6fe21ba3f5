package service

import (
	"context"
	"errors"

	"github.com/psds-microservice/support-bridge/internal/errs"
	"github.com/psds-microservice/support-bridge/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkStorer — интерфейс таблицы связей сообщений для движка маршрутизации.
type LinkStorer interface {
	Link(ctx context.Context, userID, userMessageID, supportMessageID, ticketID int64) error
	ResolveBySupportMessage(ctx context.Context, supportMessageID int64) (*model.MessageLink, error)
	TicketOfSupportMessage(ctx context.Context, supportMessageID int64) (int64, error)
}

type LinkService struct {
	db *gorm.DB
}

func NewLinkService(db *gorm.DB) *LinkService {
	return &LinkService{db: db}
}

// Link сохраняет связь пользовательского сообщения с его копией в чате
// поддержки. Upsert по (user_id, user_message_id); существующая запись с тем
// же support_message_id вытесняется — одна копия резолвится ровно в одно
// сообщение пользователя, побеждает поздняя запись.
func (s *LinkService) Link(ctx context.Context, userID, userMessageID, supportMessageID, ticketID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("support_message_id = ? AND NOT (user_id = ? AND user_message_id = ?)",
				supportMessageID, userID, userMessageID).
			Delete(&model.MessageLink{}).Error; err != nil {
			return err
		}
		link := model.MessageLink{
			UserID:           userID,
			UserMessageID:    userMessageID,
			SupportMessageID: supportMessageID,
			TicketID:         ticketID,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "user_message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"support_message_id", "ticket_id"}),
		}).Create(&link).Error
	})
}

// ResolveBySupportMessage находит связь по id копии в чате поддержки.
func (s *LinkService) ResolveBySupportMessage(ctx context.Context, supportMessageID int64) (*model.MessageLink, error) {
	var link model.MessageLink
	err := s.db.WithContext(ctx).
		Where("support_message_id = ?", supportMessageID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// TicketOfSupportMessage возвращает id тикета, к которому относится копия в
// чате поддержки. Используется командами операторов (close/reopen/info).
func (s *LinkService) TicketOfSupportMessage(ctx context.Context, supportMessageID int64) (int64, error) {
	link, err := s.ResolveBySupportMessage(ctx, supportMessageID)
	if err != nil {
		return 0, err
	}
	return link.TicketID, nil
}
