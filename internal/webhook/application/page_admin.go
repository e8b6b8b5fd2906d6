package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

// ErrPageNotConfigured se devuelve si falta el page id o el token de página.
var ErrPageNotConfigured = errors.New("page id or page access token not configured")

// PageAdminService expone las operaciones de setup de la suscripción leadgen.
type PageAdminService struct {
	client      domain.PageSubscriber
	pageID      string
	accessToken string
	log         *zap.Logger
}

func NewPageAdminService(client domain.PageSubscriber, pageID, accessToken string, log *zap.Logger) *PageAdminService {
	return &PageAdminService{
		client:      client,
		pageID:      pageID,
		accessToken: accessToken,
		log:         log,
	}
}

// Subscribe suscribe la página a la app para el campo leadgen. Se ejecuta una vez en el setup.
func (s *PageAdminService) Subscribe(ctx context.Context) (map[string]interface{}, error) {
	return s.call(ctx, "subscribe", s.client.SubscribePage)
}

func (s *PageAdminService) Unsubscribe(ctx context.Context) (map[string]interface{}, error) {
	return s.call(ctx, "unsubscribe", s.client.UnsubscribePage)
}

// Subscriptions lista las apps instaladas en la página.
func (s *PageAdminService) Subscriptions(ctx context.Context) (map[string]interface{}, error) {
	return s.call(ctx, "list_subscribed_apps", s.client.ListSubscribedApps)
}

func (s *PageAdminService) call(
	ctx context.Context,
	op string,
	fn func(ctx context.Context, pageID, accessToken string) (map[string]interface{}, error),
) (map[string]interface{}, error) {
	if s.pageID == "" || s.accessToken == "" {
		return nil, ErrPageNotConfigured
	}

	res, err := fn(ctx, s.pageID, s.accessToken)
	if err != nil {
		s.log.Error("❌ Page subscription call failed", zap.String("op", op), zap.String("page_id", s.pageID), zap.Error(err))
		return nil, err
	}
	s.log.Info("Page subscription call succeeded", zap.String("op", op), zap.String("page_id", s.pageID))
	return res, nil
}
