package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-bridge/internal/handler"
)

func New(ticketHandler *handler.TicketHandler) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", handler.Health)
	r.GET("/ready", handler.Ready)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/tickets", ticketHandler.ListOpen)
		v1.GET("/tickets/:id", ticketHandler.Get)
	}

	return r
}
