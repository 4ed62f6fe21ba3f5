// Package transport описывает контракт между движком маршрутизации и чат-
// транспортом. Сам транспорт (Telegram и т.п.) — внешний коллаборатор; ядро
// видит только входящие события и абстрактную отправку.
package transport

import "context"

type ContentKind string

const (
	ContentPhoto    ContentKind = "photo"
	ContentVideo    ContentKind = "video"
	ContentDocument ContentKind = "document"
	ContentVoice    ContentKind = "voice"
	ContentAudio    ContentKind = "audio"
	ContentText     ContentKind = "text"
)

// Content — содержимое сообщения, ровно один вид на сообщение. Транспорт
// обязан выбрать вид по приоритету photo > video > document > voice > audio >
// text, если технически присутствует несколько.
type Content struct {
	Kind   ContentKind
	Text   string // только для ContentText
	FileID string // идентификатор файла у транспорта, для остальных видов
}

// Supported сообщает, относится ли содержимое к шести поддерживаемым видам.
func (c Content) Supported() bool {
	switch c.Kind {
	case ContentPhoto, ContentVideo, ContentDocument, ContentVoice, ContentAudio, ContentText:
		return true
	}
	return false
}

// Text возвращает текстовое содержимое.
func Text(s string) Content {
	return Content{Kind: ContentText, Text: s}
}

// User — личность отправителя на момент события.
type User struct {
	ID          int64
	DisplayName string
	Handle      string // без «@»; пустой = не указан
}

// Scope — чат поддержки и необязательный топик, из которого пришло событие.
type Scope struct {
	ChatID  int64
	TopicID int64 // 0 — без топика
}

// UserMessage — сообщение пользователя из личного чата.
type UserMessage struct {
	From      User
	ChatID    int64
	MessageID int64
	Content   Content
	Caption   string
}

// SupportReply — ответ оператора на сообщение внутри чата поддержки.
type SupportReply struct {
	MessageID   int64
	RepliedToID int64 // 0 — не ответ
	Scope       Scope
	Content     Content
	Caption     string
}

type CommandName string

const (
	CommandClose       CommandName = "close"
	CommandReopen      CommandName = "reopen"
	CommandTicketInfo  CommandName = "ticket"
	CommandOpenTickets CommandName = "open_tickets"
)

// ControlCommand — команда оператора в чате поддержки.
type ControlCommand struct {
	Name        CommandName
	MessageID   int64
	RepliedToID int64 // 0 — команда не была ответом
	Scope       Scope
	IssuerID    int64
}

// BlockToggleRequest — нажатие оператором элемента управления блокировкой,
// прикреплённого к пересланной копии сообщения.
type BlockToggleRequest struct {
	TargetUserID int64
	IssuerID     int64
	Scope        Scope
}

// UserCommand — сервисная команда пользователя в личном чате (/start, /help).
type UserCommand struct {
	From   User
	ChatID int64
	Name   string
}

// Event — одно входящее событие транспорта: *UserMessage, *SupportReply,
// *ControlCommand, *BlockToggleRequest или *UserCommand.
type Event interface {
	isEvent()
}

func (*UserMessage) isEvent()        {}
func (*SupportReply) isEvent()       {}
func (*ControlCommand) isEvent()     {}
func (*BlockToggleRequest) isEvent() {}
func (*UserCommand) isEvent()        {}

// Outbound — исходящее сообщение. Для текста тело лежит в Content.Text,
// для медиа — FileID плюс Caption.
type Outbound struct {
	ChatID  int64
	TopicID int64 // 0 — без топика
	ReplyTo int64 // 0 — не ответ
	Content Content
	Caption string

	// BlockToggleUserID — если не 0, транспорт прикрепляет к сообщению
	// элемент управления блокировкой этого пользователя.
	BlockToggleUserID int64
}

// Transport — абстракция чат-транспорта.
type Transport interface {
	// Events возвращает канал входящих событий; закрывается при отмене ctx.
	Events(ctx context.Context) <-chan Event
	// Send отправляет сообщение и возвращает его id у транспорта.
	Send(ctx context.Context, out Outbound) (int64, error)
}
