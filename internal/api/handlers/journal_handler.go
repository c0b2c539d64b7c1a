package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/aibuddy/internal/services"
)

type JournalHandler struct {
	svc services.JournalService
}

func NewJournalHandler(svc services.JournalService) *JournalHandler {
	return &JournalHandler{svc: svc}
}

func (h *JournalHandler) ListBySession(c *gin.Context) {
	sessionID := c.Param("session_id")
	limit := queryLimit(c, 50, 500)

	rows, err := h.svc.ListBySession(c.Request.Context(), sessionID, int64(limit))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"turns":      rows,
	})
}
