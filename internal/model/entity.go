package model

import "time"

type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// Ticket — обращение пользователя в поддержку. DisplayName и Handle — снимок
// профиля на момент открытия тикета; с последующими изменениями профиля
// специально не синхронизируются (операторы видят, кем пользователь представился).
type Ticket struct {
	ID          int64        `gorm:"primaryKey" json:"id"`
	UserID      int64        `gorm:"index;not null" json:"user_id"`
	DisplayName string       `gorm:"type:varchar(255)" json:"display_name,omitempty"`
	Handle      string       `gorm:"type:varchar(255)" json:"handle,omitempty"`
	Status      TicketStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageLink связывает сообщение пользователя с его копией в чате поддержки.
// SupportMessageID уникален: по нему резолвятся ответы операторов.
// Записи никогда не удаляются — ответы на старые сообщения работают и после
// закрытия тикета.
type MessageLink struct {
	UserID           int64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	UserMessageID    int64 `gorm:"primaryKey;autoIncrement:false" json:"user_message_id"`
	SupportMessageID int64 `gorm:"uniqueIndex;not null" json:"support_message_id"`
	TicketID         int64 `gorm:"index;not null" json:"ticket_id"`
}

// BlockEntry — запись блокировки. Наличие строки = пользователь заблокирован.
type BlockEntry struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	AdminID   int64     `gorm:"not null" json:"admin_id"`
	BlockedAt time.Time `json:"blocked_at"`
}
