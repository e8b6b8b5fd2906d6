// en internal/webhook/infra/inbound/http/webhook_handler.go
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/leadhook/internal/webhook/application"
	"github.com/davicafu/leadhook/internal/webhook/domain"
	"github.com/davicafu/leadhook/pkg/utils"
)

const (
	EventReceived = "EVENT_RECEIVED"
	ServiceName   = "Facebook Leads Webhook"

	maxBodyBytes = 1 << 20
)

// WebhookHandler encapsula los endpoints HTTP del webhook.
type WebhookHandler struct {
	service *application.WebhookService
	log     *zap.Logger
}

// NewWebhookHandler crea un nuevo WebhookHandler.
func NewWebhookHandler(service *application.WebhookService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, log: log}
}

// Verify endpoint GET /webhook (handshake de suscripción)
func (h *WebhookHandler) Verify(c *gin.Context) {
	challenge, err := h.service.Verify(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)

	switch {
	case errors.Is(err, domain.ErrChallengeIncomplete):
		utils.SendBadRequest(c, "Missing hub.mode or hub.verify_token")
	case err != nil:
		c.String(http.StatusForbidden, "Forbidden")
	default:
		c.String(http.StatusOK, challenge)
	}
}

// Receive endpoint POST /webhook. Responde 200 en cuanto el cuerpo es válido,
// aunque falle la persistencia, para no provocar reintentos de la plataforma.
func (h *WebhookHandler) Receive(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		h.log.Error("❌ Error reading webhook body", zap.Error(err))
		utils.SendInternalServerError(c, "Failed to process webhook")
		return
	}

	res, err := h.service.Ingest(c.Request.Context(), application.Inbound{
		Body:        body,
		Headers:     c.Request.Header,
		ContentType: c.GetHeader("Content-Type"),
		Signature:   c.GetHeader(application.SignatureHeader),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			c.String(http.StatusForbidden, "Forbidden")
			return
		}
		utils.SendInternalServerError(c, "Failed to process webhook")
		return
	}

	h.log.Info("📥 POST /webhook received",
		zap.String("kind", res.Kind.String()),
		zap.String("document_id", res.DocumentID),
		zap.Int("leads", res.LeadsQueued))
	c.String(http.StatusOK, EventReceived)
}

// Health endpoint GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"service":   ServiceName,
	})
}
