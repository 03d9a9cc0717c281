package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/akademix/examroom-backend/internal/config"
	"github.com/akademix/examroom-backend/internal/handler"
	"github.com/akademix/examroom-backend/internal/middleware"
	"github.com/akademix/examroom-backend/internal/response"
	"github.com/akademix/examroom-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Portal *handler.PortalHandler
	WS     *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Public Group (Access-Code Gate) ────────────────────────────
	public := router.Group("/api/v1/exams")
	{
		public.POST("/:exam_id/verify", handlers.Portal.VerifyAccess)
		public.POST("/:exam_id/register", handlers.Portal.Register)
	}

	// ─── 2. Session Group (JWT) ────────────────────────────────────────
	sessionAPI := router.Group("/api/v1/exams")
	sessionAPI.Use(middleware.RequireSessionJWT(authService))
	{
		sessionAPI.GET("/:exam_id/paper", handlers.Portal.GetPaper)
		sessionAPI.GET("/:exam_id/state", handlers.Portal.GetState)
	}

	// ─── 3. WebSocket Group (WS Auth) ──────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/exams/:exam_id/stream", handlers.WS.SessionStream)
	}

	return router
}
