package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/aibuddy/internal/session"
	"github.com/yoockh/aibuddy/internal/utils"
)

// Controller is the slice of the conversation controller the API drives.
type Controller interface {
	Snapshot() session.State
	Subscribe() (<-chan session.State, func())
	Dispatch(in session.Intent) error
}

type SessionHandler struct {
	ctrl Controller
}

func NewSessionHandler(ctrl Controller) *SessionHandler {
	return &SessionHandler{ctrl: ctrl}
}

type IntentRequest struct {
	Type string `json:"type" binding:"required"`
	Text string `json:"text"`
}

func (h *SessionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// PostIntent queues an intent. The result shows up in later snapshots, so the
// response only acknowledges it.
func (h *SessionHandler) PostIntent(c *gin.Context) {
	const op = "SessionHandler.PostIntent"

	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	if err := dispatch(h.ctrl, session.Intent{Type: session.IntentType(req.Type), Text: req.Text}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func dispatch(ctrl Controller, in session.Intent) error {
	const op = "Session.Dispatch"

	err := ctrl.Dispatch(in)
	var ae *utils.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, session.ErrClosed):
		return utils.E(utils.CodeUnavailable, op, "session is shutting down", err)
	default:
		return utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}
}
