package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/feedstream-backend/internal/sse"
)

type SSEHandler struct {
	hub *sse.Hub
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// Stream holds the connection open and pushes notification count
// events for the addressed user.
func (h *SSEHandler) Stream(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		RespondError(c, http.StatusBadRequest, "invalid_user", nil)
		return
	}
	client := h.hub.Subscribe(userID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
