package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrChallengeRejected   = errors.New("verification token mismatch")
	ErrChallengeIncomplete = errors.New("missing hub.mode or hub.verify_token")
	ErrParseFailure        = errors.New("failed to parse webhook body")
	ErrStoreUnavailable    = errors.New("payload store unavailable")
)

// APIError guarda el status y el cuerpo de una respuesta fallida de la API remota.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("graph api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("graph api error (status %d)", e.StatusCode)
}

// --- Puertos de salida ---

// PayloadStore persiste los WebhookEvent en una colección de solo inserción.
type PayloadStore interface {
	Save(ctx context.Context, evt *WebhookEvent) (string, error)
	Available() bool
}

// LeadFetcher obtiene el detalle de un lead a partir de su id.
type LeadFetcher interface {
	FetchLeadDetails(ctx context.Context, leadID, accessToken string) (*LeadDetail, error)
}

// PageSubscriber gestiona la suscripción de la página a la app.
type PageSubscriber interface {
	SubscribePage(ctx context.Context, pageID, accessToken string) (map[string]interface{}, error)
	UnsubscribePage(ctx context.Context, pageID, accessToken string) (map[string]interface{}, error)
	ListSubscribedApps(ctx context.Context, pageID, accessToken string) (map[string]interface{}, error)
}

type NotificationSink interface {
	Notify(ctx context.Context, n LeadNotification) error
}

type CRMSink interface {
	AddLead(ctx context.Context, lead CRMLead) error
}

// LeadGuard evita despachar dos veces el mismo lead dentro de una ventana de tiempo.
type LeadGuard interface {
	FirstSeen(ctx context.Context, leadID string) bool
	Release(leadID string)
}

// ---------- Helpers comunes (cache keys, etc.) ----------

func LeadCacheKeyByID(leadID string) string {
	return fmt.Sprintf("lead:seen:%s", leadID)
}
