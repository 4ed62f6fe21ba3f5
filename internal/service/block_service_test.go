package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggle_Cycle(t *testing.T) {
	svc := NewBlockService(setupDB(t))
	ctx := context.Background()

	blocked, err := svc.IsBlocked(ctx, 100)
	require.NoError(t, err)
	require.False(t, blocked)

	nowBlocked, err := svc.Toggle(ctx, 100, 555)
	require.NoError(t, err)
	assert.True(t, nowBlocked)

	blocked, err = svc.IsBlocked(ctx, 100)
	require.NoError(t, err)
	assert.True(t, blocked)

	nowBlocked, err = svc.Toggle(ctx, 100, 555)
	require.NoError(t, err)
	assert.False(t, nowBlocked)

	blocked, err = svc.IsBlocked(ctx, 100)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestToggle_IndependentUsers(t *testing.T) {
	svc := NewBlockService(setupDB(t))
	ctx := context.Background()

	_, err := svc.Toggle(ctx, 100, 555)
	require.NoError(t, err)

	blocked, err := svc.IsBlocked(ctx, 200)
	require.NoError(t, err)
	assert.False(t, blocked)
}
