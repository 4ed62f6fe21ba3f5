package engine

import (
	"testing"
	"time"

	"github.com/psds-microservice/support-bridge/internal/model"
	"github.com/psds-microservice/support-bridge/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicketHeader(t *testing.T) {
	h := newTicketHeader(7, transport.User{ID: 100, DisplayName: "Иван", Handle: "ivan"})
	assert.Contains(t, h, "🎫 НОВЫЙ ТИКЕТ")
	assert.Contains(t, h, "🆔 Тикет: 7")
	assert.Contains(t, h, "👤 Пользователь: Иван")
	assert.Contains(t, h, "🆔 Telegram ID: 100")
	assert.Contains(t, h, "📱 Username: @ivan")
}

func TestNewTicketHeader_MissingIdentity(t *testing.T) {
	h := newTicketHeader(7, transport.User{ID: 100})
	assert.Contains(t, h, "Пользователь: Не указано")
	assert.Contains(t, h, "Username: Не указан")
}

func TestContinuationHeader(t *testing.T) {
	h := continuationHeader(7, transport.User{ID: 100, DisplayName: "Иван", Handle: "ivan"})
	assert.Equal(t, "💬 Тикет #7\n👤 Иван (@ivan):", h)
	assert.NotContains(t, h, "НОВЫЙ ТИКЕТ")
}

func TestFormatTime(t *testing.T) {
	msk, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	ts := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "31.08.2026 12:30", formatTime(ts, msk))
	assert.Equal(t, "31.08.2026 09:30", formatTime(ts, time.UTC))
}

func TestOpenTicketsList(t *testing.T) {
	ts := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	out := openTicketsList([]model.Ticket{
		{ID: 1, UserID: 100, DisplayName: "Иван", Handle: "ivan", CreatedAt: ts},
		{ID: 2, UserID: 200, CreatedAt: ts},
	}, time.UTC)
	assert.Contains(t, out, "📂 Открытые тикеты:")
	assert.Contains(t, out, "🎫 Тикет #1")
	assert.Contains(t, out, "@ivan")
	assert.Contains(t, out, "🆔 ID: 200")
	assert.Contains(t, out, "📅 Создан: 31.08.2026 09:30")
}

func TestBlockIdentity(t *testing.T) {
	assert.Equal(t, "Иван (@ivan)", blockIdentity(&model.Ticket{UserID: 100, DisplayName: "Иван", Handle: "ivan"}))
	assert.Equal(t, "Иван", blockIdentity(&model.Ticket{UserID: 100, DisplayName: "Иван"}))
	assert.Equal(t, "100", blockIdentity(&model.Ticket{UserID: 100}))
}
