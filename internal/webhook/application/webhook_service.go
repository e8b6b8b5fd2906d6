package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

// Stage identifica el paso del pipeline en el que está una petición.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageVerifyingChallenge Stage = "verifying_challenge"
	StageVerifyingSignature Stage = "verifying_signature"
	StagePersisting         Stage = "persisting"
	StageFetching           Stage = "fetching"
	StageDispatching        Stage = "dispatching"
	StageDone               Stage = "done"
)

const (
	defaultFetchTimeout    = 10 * time.Second
	defaultDispatchTimeout = 10 * time.Second
)

// Settings agrupa los secretos y políticas que necesita el servicio.
type Settings struct {
	VerifyToken      string
	AppSecret        string
	PageAccessToken  string
	EnforceSignature bool
	FetchTimeout     time.Duration
	DispatchTimeout  time.Duration
}

// Inbound es la petición POST ya desacoplada de HTTP.
type Inbound struct {
	Body        []byte
	Headers     map[string][]string
	ContentType string
	Signature   string
}

// IngestResult resume lo que pasó con una entrega.
type IngestResult struct {
	DocumentID  string
	Kind        domain.PayloadKind
	LeadsQueued int
}

// Dispatcher es lo que el servicio necesita del LeadDispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec domain.LeadRecord)
}

// WebhookService orquesta verificación, persistencia y el envío de leads.
type WebhookService struct {
	store      domain.PayloadStore
	fetcher    domain.LeadFetcher
	dispatcher Dispatcher
	guard      domain.LeadGuard
	settings   Settings
	log        *zap.Logger
	now        func() time.Time

	inflight sync.WaitGroup
}

// NewWebhookService es el constructor del servicio. guard puede ser nil.
func NewWebhookService(
	store domain.PayloadStore,
	fetcher domain.LeadFetcher,
	dispatcher Dispatcher,
	guard domain.LeadGuard,
	settings Settings,
	log *zap.Logger,
) *WebhookService {
	if settings.FetchTimeout <= 0 {
		settings.FetchTimeout = defaultFetchTimeout
	}
	if settings.DispatchTimeout <= 0 {
		settings.DispatchTimeout = defaultDispatchTimeout
	}
	return &WebhookService{
		store:      store,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		guard:      guard,
		settings:   settings,
		log:        log,
		now:        time.Now,
	}
}

// Verify resuelve el handshake GET.
func (s *WebhookService) Verify(mode, token, challenge string) (string, error) {
	s.log.Debug("Webhook handshake", zap.String("stage", string(StageVerifyingChallenge)))

	resp, err := HandleChallenge(mode, token, challenge, s.settings.VerifyToken)
	if err != nil {
		s.log.Warn("❌ Webhook verification failed", zap.String("mode", mode), zap.Error(err))
		return "", err
	}
	s.log.Info("✅ Webhook verified", zap.String("challenge", challenge))
	return resp, nil
}

// Ingest procesa un POST. Solo devuelve error por firma inválida o cuerpo ilegible;
// los fallos de persistencia y de los leads se registran y no afectan al ack.
func (s *WebhookService) Ingest(ctx context.Context, in Inbound) (*IngestResult, error) {
	if s.settings.EnforceSignature {
		s.log.Debug("Webhook ingest", zap.String("stage", string(StageVerifyingSignature)))
		if !VerifySignature(in.Body, in.Signature, s.settings.AppSecret) {
			s.log.Warn("❌ Invalid webhook signature", zap.Bool("header_present", in.Signature != ""))
			return nil, domain.ErrInvalidSignature
		}
	}

	payload, err := ParseBody(in.Body, in.ContentType)
	if err != nil {
		s.log.Error("❌ Error parsing webhook body", zap.Int("bytes", len(in.Body)), zap.Error(err))
		return nil, err
	}

	s.log.Debug("Webhook ingest", zap.String("stage", string(StagePersisting)))
	evt := domain.NewWebhookEvent(payload, in.Headers, domain.SourceWebhook, s.now())
	result := &IngestResult{Kind: domain.KindGeneric}
	if evt.IsPlatformEvent() {
		result.Kind = domain.KindPlatform
	}

	result.DocumentID = s.persist(ctx, evt)

	if result.Kind == domain.KindPlatform {
		for _, ref := range domain.Classify(payload).LeadRefs() {
			if s.processLeadAsync(ref) {
				result.LeadsQueued++
			}
		}
	}

	return result, nil
}

// persist es best effort: nunca bloquea el ack.
func (s *WebhookService) persist(ctx context.Context, evt *domain.WebhookEvent) string {
	if s.store == nil || !s.store.Available() {
		s.log.Warn("⚠️ Payload store not available, skipping save")
		return ""
	}

	id, err := s.store.Save(ctx, evt)
	if err != nil {
		s.log.Error("❌ Error saving webhook event", zap.Error(err))
		return ""
	}
	s.log.Info("✅ Webhook event saved",
		zap.String("document_id", id),
		zap.String("platform", evt.Platform),
		zap.Int("entry_count", evt.EntryCount))
	return id
}

// processLeadAsync lanza el fetch+dispatch en segundo plano. Devuelve false si no hay
// fetcher o dispatcher y el lead no se encola.
func (s *WebhookService) processLeadAsync(ref domain.LeadRef) bool {
	if s.fetcher == nil || s.dispatcher == nil {
		return false
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("❌ Panic handling lead", zap.String("lead_id", ref.LeadgenID), zap.Any("panic", r))
			}
		}()

		// Contexto desacoplado de la petición: el ack ya se envió.
		s.ProcessLead(context.Background(), ref)
	}()
	return true
}

// ProcessLead trae el detalle del lead y lo entrega al dispatcher.
func (s *WebhookService) ProcessLead(ctx context.Context, ref domain.LeadRef) {
	log := s.log.With(zap.String("lead_id", ref.LeadgenID), zap.String("page_id", ref.PageID))

	if s.guard != nil {
		guardCtx, cancelGuard := context.WithTimeout(ctx, s.settings.FetchTimeout)
		first := s.guard.FirstSeen(guardCtx, ref.LeadgenID)
		cancelGuard()
		if !first {
			log.Info("Lead already handled, skipping")
			return
		}
	}

	log.Info("📥 Processing lead", zap.String("stage", string(StageFetching)))
	fetchCtx, cancelFetch := context.WithTimeout(ctx, s.settings.FetchTimeout)
	detail, err := s.fetcher.FetchLeadDetails(fetchCtx, ref.LeadgenID, s.settings.PageAccessToken)
	cancelFetch()
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			log.Error("❌ Error fetching lead details",
				zap.Int("status", apiErr.StatusCode),
				zap.String("body", apiErr.Body),
				zap.Error(err))
		} else {
			log.Error("❌ Error fetching lead details", zap.Error(err))
		}
		// Sin detalle no hubo despacho: una reentrega debe poder intentarlo de nuevo.
		if s.guard != nil {
			s.guard.Release(ref.LeadgenID)
		}
		return
	}

	rec := domain.NewLeadRecord(detail)
	log.Debug("Lead record built", zap.String("stage", string(StageDispatching)), zap.Int("fields", len(rec.Fields)))
	// El despacho tiene su propio plazo: no hereda lo que dejó el fetch.
	dispatchCtx, cancelDispatch := context.WithTimeout(context.WithoutCancel(ctx), s.settings.DispatchTimeout)
	defer cancelDispatch()
	s.dispatcher.Dispatch(dispatchCtx, rec)
	log.Info("✅ Lead dispatched", zap.String("stage", string(StageDone)))
}

// Wait bloquea hasta que terminen los leads en curso o venza ctx.
func (s *WebhookService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseBody decodifica el cuerpo. Acepta JSON, JSON serializado dentro de un string
// JSON y formularios x-www-form-urlencoded.
func ParseBody(body []byte, contentType string) (interface{}, error) {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/x-www-form-urlencoded" {
		return parseForm(body)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrParseFailure)
	}

	var payload interface{}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}

	// Cuerpo que llega como string: hay que decodificarlo otra vez.
	if raw, ok := payload.(string); ok {
		var inner interface{}
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
		}
		payload = inner
	}

	return payload, nil
}

func parseForm(body []byte) (interface{}, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out, nil
}
