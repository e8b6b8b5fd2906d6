package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

// InMemoryEventStore simula el PayloadStore guardando los eventos en un slice.
type InMemoryEventStore struct {
	Events  []*domain.WebhookEvent
	SaveErr error
	Down    bool
	mu      sync.Mutex
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{Events: []*domain.WebhookEvent{}}
}

func (s *InMemoryEventStore) Save(ctx context.Context, evt *domain.WebhookEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return "", s.SaveErr
	}
	evt.ID = fmt.Sprintf("doc-%d", len(s.Events)+1)
	s.Events = append(s.Events, evt)
	return evt.ID, nil
}

func (s *InMemoryEventStore) Available() bool {
	return !s.Down
}

func (s *InMemoryEventStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Events)
}

// FakeLeadFetcher devuelve los detalles registrados por id.
type FakeLeadFetcher struct {
	Details map[string]*domain.LeadDetail
	Err     error
	Calls   []string
	Tokens  []string
	mu      sync.Mutex
}

func NewFakeLeadFetcher() *FakeLeadFetcher {
	return &FakeLeadFetcher{Details: make(map[string]*domain.LeadDetail)}
}

func (f *FakeLeadFetcher) FetchLeadDetails(ctx context.Context, leadID, accessToken string) (*domain.LeadDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, leadID)
	f.Tokens = append(f.Tokens, accessToken)
	if f.Err != nil {
		return nil, f.Err
	}
	d, ok := f.Details[leadID]
	if !ok {
		return nil, &domain.APIError{StatusCode: 404, Message: "lead not found"}
	}
	return d, nil
}

func (f *FakeLeadFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// RecordingDispatcher captura los LeadRecord despachados.
type RecordingDispatcher struct {
	Records []domain.LeadRecord
	mu      sync.Mutex
}

func (d *RecordingDispatcher) Dispatch(ctx context.Context, rec domain.LeadRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Records = append(d.Records, rec)
}

func (d *RecordingDispatcher) Dispatched() []domain.LeadRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.LeadRecord(nil), d.Records...)
}

// RecordingNotificationSink captura los avisos; Err o Panic simulan un sink caído.
type RecordingNotificationSink struct {
	Sent  []domain.LeadNotification
	Err   error
	Panic bool
	mu    sync.Mutex
}

func (s *RecordingNotificationSink) Notify(ctx context.Context, n domain.LeadNotification) error {
	if s.Panic {
		panic("notification sink exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Sent = append(s.Sent, n)
	return nil
}

// RecordingCRMSink captura los leads enviados al CRM.
type RecordingCRMSink struct {
	Leads []domain.CRMLead
	Err   error
	mu    sync.Mutex
}

func (s *RecordingCRMSink) AddLead(ctx context.Context, lead domain.CRMLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Leads = append(s.Leads, lead)
	return nil
}

// FakePageSubscriber responde con mapas fijos y registra las operaciones llamadas.
type FakePageSubscriber struct {
	Ops      []string
	Response map[string]interface{}
	Err      error
	mu       sync.Mutex
}

func (f *FakePageSubscriber) record(op string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, op)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Response, nil
}

func (f *FakePageSubscriber) SubscribePage(ctx context.Context, pageID, accessToken string) (map[string]interface{}, error) {
	return f.record("subscribe:" + pageID)
}

func (f *FakePageSubscriber) UnsubscribePage(ctx context.Context, pageID, accessToken string) (map[string]interface{}, error) {
	return f.record("unsubscribe:" + pageID)
}

func (f *FakePageSubscriber) ListSubscribedApps(ctx context.Context, pageID, accessToken string) (map[string]interface{}, error) {
	return f.record("list:" + pageID)
}

// Verificación estática
var (
	_ domain.PayloadStore     = (*InMemoryEventStore)(nil)
	_ domain.LeadFetcher      = (*FakeLeadFetcher)(nil)
	_ domain.NotificationSink = (*RecordingNotificationSink)(nil)
	_ domain.CRMSink          = (*RecordingCRMSink)(nil)
	_ domain.PageSubscriber   = (*FakePageSubscriber)(nil)
)

// FakeLeadGuard deduplica en un mapa y registra los leads liberados.
type FakeLeadGuard struct {
	Seen     map[string]bool
	Released []string
	mu       sync.Mutex
}

func NewFakeLeadGuard() *FakeLeadGuard {
	return &FakeLeadGuard{Seen: make(map[string]bool)}
}

func (g *FakeLeadGuard) FirstSeen(ctx context.Context, leadID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Seen[leadID] {
		return false
	}
	g.Seen[leadID] = true
	return true
}

func (g *FakeLeadGuard) Release(leadID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.Seen, leadID)
	g.Released = append(g.Released, leadID)
}

var _ domain.LeadGuard = (*FakeLeadGuard)(nil)
