package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sharad1666/Discoursify/internal/handler"
	"github.com/sharad1666/Discoursify/pkg/constants"
)

// New builds the HTTP router.
func New(
	sessionHandler *handler.SessionHandler,
	signaling *handler.SignalingHandler,
	health *handler.HealthHandler,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(constants.PathHealth, health.Health)
	r.GET(constants.PathReady, health.Ready)
	r.GET(constants.PathMetrics, gin.WrapH(promhttp.Handler()))

	// REST sessions
	sessions := r.Group("/sessions")
	{
		sessions.POST("", sessionHandler.CreateSession)
		sessions.GET("", sessionHandler.ListSessions)
		sessions.GET("/:id", sessionHandler.GetSession)
		sessions.GET("/code/:code", sessionHandler.GetSessionByCode)
		sessions.POST("/:id/join", sessionHandler.JoinSession)
		sessions.POST("/:id/admit/:participantId", sessionHandler.AdmitParticipant)
		sessions.POST("/:id/start", sessionHandler.StartSession)
		sessions.POST("/:id/lock", sessionHandler.LockSession)
		sessions.POST("/:id/end", sessionHandler.EndSession)
	}

	// WebSocket signaling: /ws/session/:session_id/:user_id
	r.GET("/ws/session/:session_id/:user_id", signaling.ServeWS)

	return r
}
