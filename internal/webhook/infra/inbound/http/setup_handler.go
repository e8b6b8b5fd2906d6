package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/leadhook/internal/webhook/application"
	"github.com/davicafu/leadhook/internal/webhook/domain"
	"github.com/davicafu/leadhook/pkg/utils"
)

// SetupHandler expone las operaciones de suscripción de la página. Solo se registra bajo flag.
type SetupHandler struct {
	service *application.PageAdminService
}

func NewSetupHandler(service *application.PageAdminService) *SetupHandler {
	return &SetupHandler{service: service}
}

// Subscribe endpoint POST /setup-page-subscription
func (h *SetupHandler) Subscribe(c *gin.Context) {
	h.respond(c, h.service.Subscribe)
}

// Unsubscribe endpoint DELETE /setup-page-subscription
func (h *SetupHandler) Unsubscribe(c *gin.Context) {
	h.respond(c, h.service.Unsubscribe)
}

// Check endpoint GET /check-page-subscriptions
func (h *SetupHandler) Check(c *gin.Context) {
	h.respond(c, h.service.Subscriptions)
}

func (h *SetupHandler) respond(c *gin.Context, fn func(ctx context.Context) (map[string]interface{}, error)) {
	res, err := fn(c.Request.Context())
	if err != nil {
		var apiErr *domain.APIError
		switch {
		case errors.Is(err, application.ErrPageNotConfigured):
			utils.SendError(c, http.StatusServiceUnavailable, err.Error())
		case errors.As(err, &apiErr):
			utils.SendBadGateway(c, apiErr.Error())
		default:
			utils.SendBadGateway(c, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, res)
}
