package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/psds-microservice/support-bridge/internal/model"
	"github.com/psds-microservice/support-bridge/internal/transport"
)

const (
	startText = "Здравствуйте! Напишите ваше сообщение.\n\n" +
		"Напишите Ваш вопрос, и мы ответим Вам в ближайшее время.\n\n" +
		"🕘 Время работы поддержки: Пн - Вс, с 7:00 до 21:00 по МСК"

	helpText = "🕘 Время работы поддержки: Пн - Вс, с 7:00 до 21:00 по МСК\n\n" +
		"📝 Заполняйте тикет внимательно и кратко, но максимально подробно. " +
		"Помните, что это не чат с техподдержкой в реальном времени. " +
		"Все тикеты обрабатываются в порядке очереди.\n\n" +
		"⌛️ Возможно придётся подождать некоторое время, прежде чем вы получите ответ на свой вопрос."
)

func displayName(s string) string {
	if s == "" {
		return "Не указано"
	}
	return s
}

func handleDisplay(h string) string {
	if h == "" {
		return "Не указан"
	}
	return "@" + h
}

// newTicketHeader — полный заголовок, используется ровно один раз на тикет,
// в момент его создания.
func newTicketHeader(ticketID int64, from transport.User) string {
	return fmt.Sprintf(
		"🎫 НОВЫЙ ТИКЕТ\n\n🆔 Тикет: %d\n👤 Пользователь: %s\n🆔 Telegram ID: %d\n📱 Username: %s",
		ticketID, displayName(from.DisplayName), from.ID, handleDisplay(from.Handle),
	)
}

// continuationHeader — компактный заголовок последующих сообщений в уже
// открытом тикете.
func continuationHeader(ticketID int64, from transport.User) string {
	return fmt.Sprintf(
		"💬 Тикет #%d\n👤 %s (%s):",
		ticketID, displayName(from.DisplayName), handleDisplay(from.Handle),
	)
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}

func openTicketsList(items []model.Ticket, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("📂 Открытые тикеты:\n")
	for _, t := range items {
		fmt.Fprintf(&b,
			"\n🎫 Тикет #%d\n👤 %s\n📱 %s\n🆔 ID: %d\n📅 Создан: %s\n",
			t.ID, displayName(t.DisplayName), handleDisplay(t.Handle),
			t.UserID, formatTime(t.CreatedAt, loc),
		)
	}
	return b.String()
}

// blockIdentity — лучшее доступное имя пользователя для объявления о
// блокировке: снимок из последнего тикета.
func blockIdentity(t *model.Ticket) string {
	if t.Handle != "" {
		return fmt.Sprintf("%s (@%s)", displayName(t.DisplayName), t.Handle)
	}
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return fmt.Sprintf("%d", t.UserID)
}
