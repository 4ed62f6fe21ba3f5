package service

import (
	"context"
	"testing"

	"github.com/psds-microservice/support-bridge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLink_ResolveRoundTrip(t *testing.T) {
	svc := NewLinkService(setupDB(t))
	ctx := context.Background()

	require.NoError(t, svc.Link(ctx, 100, 1, 500, 7))

	link, err := svc.ResolveBySupportMessage(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(100), link.UserID)
	assert.Equal(t, int64(1), link.UserMessageID)
	assert.Equal(t, int64(7), link.TicketID)

	ticketID, err := svc.TicketOfSupportMessage(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(7), ticketID)
}

func TestLink_UpsertByPrimaryKey(t *testing.T) {
	svc := NewLinkService(setupDB(t))
	ctx := context.Background()

	// Повторная пересылка того же сообщения (edit/resend) перезаписывает
	// связь, не накапливая устаревших записей.
	require.NoError(t, svc.Link(ctx, 100, 1, 500, 7))
	require.NoError(t, svc.Link(ctx, 100, 1, 501, 7))

	link, err := svc.ResolveBySupportMessage(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, int64(1), link.UserMessageID)

	_, err = svc.ResolveBySupportMessage(ctx, 500)
	assert.ErrorIs(t, err, errs.ErrLinkNotFound)
}

func TestLink_SupportMessageReplaceWins(t *testing.T) {
	svc := NewLinkService(setupDB(t))
	ctx := context.Background()

	// Один и тот же support_message_id записан дважды для разных сообщений
	// пользователя: резолвиться должна поздняя запись, и ровно одна.
	require.NoError(t, svc.Link(ctx, 100, 1, 500, 7))
	require.NoError(t, svc.Link(ctx, 100, 2, 500, 7))

	link, err := svc.ResolveBySupportMessage(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(2), link.UserMessageID)
}

func TestResolveBySupportMessage_NotFound(t *testing.T) {
	svc := NewLinkService(setupDB(t))
	_, err := svc.ResolveBySupportMessage(context.Background(), 999)
	assert.ErrorIs(t, err, errs.ErrLinkNotFound)

	_, err = svc.TicketOfSupportMessage(context.Background(), 999)
	assert.ErrorIs(t, err, errs.ErrLinkNotFound)
}
