package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/aibuddy/internal/api/handlers"
	"github.com/yoockh/aibuddy/internal/api/middleware"
)

type Deps struct {
	Context      *handlers.ContextHandler
	Conversation *handlers.ConversationHandler
	Onboarding   *handlers.OnboardingHandler
	Session      *handlers.SessionHandler
	Journal      *handlers.JournalHandler // nil without MongoDB
	WS           *handlers.WSHandler

	Auth middleware.JWTConfig
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.Auth))

	auth.GET("/context/facts", d.Context.ListFacts)
	auth.POST("/context/facts", d.Context.AddFact)
	auth.DELETE("/context/facts/:id", d.Context.DeleteFact)
	auth.GET("/context/topics", d.Context.ListTopics)
	auth.POST("/context/topics", d.Context.AddTopic)
	auth.DELETE("/context/topics/:id", d.Context.DeleteTopic)

	auth.GET("/conversations", d.Conversation.Recent)

	auth.GET("/onboarding", d.Onboarding.Get)
	auth.POST("/onboarding/:step", d.Onboarding.Submit)

	auth.GET("/session", d.Session.Get)
	auth.POST("/session/intents", d.Session.PostIntent)
	if d.Journal != nil {
		auth.GET("/session/:session_id/turns", d.Journal.ListBySession)
	}

	auth.GET("/ws/session", d.WS.SessionWS)
}
