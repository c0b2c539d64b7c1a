package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/aibuddy/internal/services"
)

type ConversationHandler struct {
	svc services.ConversationService
}

func NewConversationHandler(svc services.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// Recent lists finished conversations, newest first.
func (h *ConversationHandler) Recent(c *gin.Context) {
	limit := queryLimit(c, 50, 500)

	rows, err := h.svc.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": rows})
}
