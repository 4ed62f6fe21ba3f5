package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-bridge/internal/model"
	"github.com/psds-microservice/support-bridge/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupHandler(t *testing.T) (*TicketHandler, *service.TicketService, *service.BlockService) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Ticket{}, &model.MessageLink{}, &model.BlockEntry{}))
	tickets := service.NewTicketService(db)
	blocks := service.NewBlockService(db)
	return NewTicketHandler(tickets, blocks), tickets, blocks
}

func newTestRouter(h *TicketHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/tickets", h.ListOpen)
	r.GET("/api/v1/tickets/:id", h.Get)
	return r
}

func TestListOpenEndpoint(t *testing.T) {
	h, tickets, _ := setupHandler(t)
	ctx := context.Background()
	_, _, err := tickets.OpenOrCreate(ctx, 100, "Иван", "ivan")
	require.NoError(t, err)
	_, _, err = tickets.OpenOrCreate(ctx, 200, "Вера", "vera")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets?limit=1", nil)
	newTestRouter(h).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Tickets []model.Ticket `json:"tickets"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Tickets, 1)
}

func TestGetEndpoint(t *testing.T) {
	h, tickets, blocks := setupHandler(t)
	ctx := context.Background()
	tk, _, err := tickets.OpenOrCreate(ctx, 100, "Иван", "ivan")
	require.NoError(t, err)
	_, err = blocks.Toggle(ctx, 100, 555)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets/1", nil)
	newTestRouter(h).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Ticket  model.Ticket `json:"ticket"`
		Blocked bool         `json:"blocked"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, tk.ID, body.Ticket.ID)
	assert.True(t, body.Blocked)
}

func TestGetEndpoint_NotFound(t *testing.T) {
	h, _, _ := setupHandler(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets/999", nil)
	newTestRouter(h).ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
