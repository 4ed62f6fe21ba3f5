package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-bridge/internal/errs"
	"github.com/psds-microservice/support-bridge/internal/service"
)

// TicketHandler — read-only API для операторских дашбордов. Все мутации
// тикетов идут только через движок маршрутизации.
type TicketHandler struct {
	tickets *service.TicketService
	blocks  *service.BlockService
}

func NewTicketHandler(tickets *service.TicketService, blocks *service.BlockService) *TicketHandler {
	return &TicketHandler{tickets: tickets, blocks: blocks}
}

// ListOpen отдаёт открытые тикеты, свежие первыми. ?limit= ограничивает выдачу.
func (h *TicketHandler) ListOpen(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	items, err := h.tickets.ListOpen(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tickets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": items,
		"count":   len(items),
	})
}

func (h *TicketHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	t, err := h.tickets.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	blocked, err := h.blocks.IsBlocked(c.Request.Context(), t.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticket":  t,
		"blocked": blocked,
	})
}
