package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/aibuddy/internal/services"
	"github.com/yoockh/aibuddy/internal/utils"
)

// ContextHandler exposes the stored user facts and conversation topics.
type ContextHandler struct {
	svc services.ContextService
}

func NewContextHandler(svc services.ContextService) *ContextHandler {
	return &ContextHandler{svc: svc}
}

type AddFactRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value" binding:"required"`
}

type AddTopicRequest struct {
	Topic    string `json:"topic" binding:"required"`
	Keywords string `json:"keywords"`
}

func (h *ContextHandler) ListFacts(c *gin.Context) {
	facts, err := h.svc.ListFacts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"facts": facts})
}

func (h *ContextHandler) AddFact(c *gin.Context) {
	var req AddFactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ContextHandler.AddFact", "invalid request body", err))
		return
	}

	f, err := h.svc.AddFact(c.Request.Context(), req.Key, req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *ContextHandler) DeleteFact(c *gin.Context) {
	id, ok := paramID(c, "ContextHandler.DeleteFact")
	if !ok {
		return
	}
	if err := h.svc.DeleteFact(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ContextHandler) ListTopics(c *gin.Context) {
	topics, err := h.svc.ListTopics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

func (h *ContextHandler) AddTopic(c *gin.Context) {
	var req AddTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ContextHandler.AddTopic", "invalid request body", err))
		return
	}

	t, err := h.svc.AddTopic(c.Request.Context(), req.Topic, req.Keywords)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *ContextHandler) DeleteTopic(c *gin.Context) {
	id, ok := paramID(c, "ContextHandler.DeleteTopic")
	if !ok {
		return
	}
	if err := h.svc.DeleteTopic(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
