package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/leadhook/pkg/utils"
)

// NewRouter crea el engine con recovery que responde {"error": ...} y log de accesos en zap.
func NewRouter(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(accessLog(log))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("Unhandled error", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		utils.SendInternalServerError(c, "Internal server error")
		c.Abort()
	}))
	r.GET("/health", Health)
	return r
}

// RegisterWebhookRoutes registra el handshake y la recepción de eventos.
func RegisterWebhookRoutes(r *gin.Engine, handler *WebhookHandler) {
	r.GET("/webhook", handler.Verify)
	r.POST("/webhook", handler.Receive)
}

// RegisterSetupRoutes registra las rutas de setup de la suscripción de la página.
func RegisterSetupRoutes(r *gin.Engine, handler *SetupHandler) {
	r.POST("/setup-page-subscription", handler.Subscribe)
	r.DELETE("/setup-page-subscription", handler.Unsubscribe)
	r.GET("/check-page-subscriptions", handler.Check)
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
