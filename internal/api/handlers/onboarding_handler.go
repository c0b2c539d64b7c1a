package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/aibuddy/internal/services"
	"github.com/yoockh/aibuddy/internal/utils"
)

type OnboardingHandler struct {
	svc services.OnboardingService
}

func NewOnboardingHandler(svc services.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{svc: svc}
}

// SubmitStepRequest carries one answer (value) or several (values, for interests).
type SubmitStepRequest struct {
	Value  string   `json:"value"`
	Values []string `json:"values"`
}

type OnboardingResponse struct {
	Step     services.OnboardingStep `json:"step"`
	Finished bool                    `json:"finished"`
}

func onboardingResponse(step services.OnboardingStep) OnboardingResponse {
	return OnboardingResponse{Step: step, Finished: step == services.StepFinished}
}

func (h *OnboardingHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, onboardingResponse(h.svc.Current()))
}

func (h *OnboardingHandler) Submit(c *gin.Context) {
	const op = "OnboardingHandler.Submit"

	step, ok := services.ParseOnboardingStep(c.Param("step"))
	if !ok {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unknown onboarding step", nil))
		return
	}

	var req SubmitStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	values := req.Values
	if req.Value != "" {
		values = append([]string{req.Value}, values...)
	}

	next, err := h.svc.Submit(c.Request.Context(), step, values)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, onboardingResponse(next))
}
