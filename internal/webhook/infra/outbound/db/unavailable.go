package db

import (
	"context"

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

// UnavailableStore representa un backend no configurado o que no arrancó.
// El servicio sigue respondiendo 200 a la plataforma; solo se pierde la persistencia.
type UnavailableStore struct {
	Reason string
}

func (UnavailableStore) Save(ctx context.Context, evt *domain.WebhookEvent) (string, error) {
	return "", domain.ErrStoreUnavailable
}

func (UnavailableStore) Available() bool {
	return false
}

var _ domain.PayloadStore = UnavailableStore{}
