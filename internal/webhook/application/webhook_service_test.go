package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/leadhook/internal/webhook/domain"
	"github.com/davicafu/leadhook/tests/mocks"
)

const leadgenPayload = `{
  "object": "page",
  "entry": [{
    "id": "P1",
    "time": 1700000000,
    "changes": [{
      "field": "leadgen",
      "value": {"leadgen_id": "L1", "page_id": "P1", "form_id": "F1", "created_time": 1700000000}
    }]
  }]
}`

type serviceFixture struct {
	service    *WebhookService
	store      *mocks.InMemoryEventStore
	fetcher    *mocks.FakeLeadFetcher
	dispatcher *mocks.RecordingDispatcher
	guard      *mocks.FakeLeadGuard
}

func newServiceFixture(settings Settings) *serviceFixture {
	f := &serviceFixture{
		store:      mocks.NewInMemoryEventStore(),
		fetcher:    mocks.NewFakeLeadFetcher(),
		dispatcher: &mocks.RecordingDispatcher{},
		guard:      mocks.NewFakeLeadGuard(),
	}
	f.fetcher.Details["L1"] = &domain.LeadDetail{
		ID:           "L1",
		CampaignName: "Spring",
		FieldData:    []domain.FieldData{{Name: "email", Values: []string{"a@b.com"}}},
	}
	f.service = NewWebhookService(f.store, f.fetcher, f.dispatcher, f.guard, settings, zap.NewNop())
	f.service.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func waitLeads(t *testing.T, s *WebhookService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestIngest_GenericJSONStoresOneDocument(t *testing.T) {
	f := newServiceFixture(Settings{})

	res, err := f.service.Ingest(context.Background(), Inbound{
		Body:        []byte(`{"hello":"world"}`),
		Headers:     map[string][]string{"Content-Type": {"application/json"}},
		ContentType: "application/json",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.KindGeneric, res.Kind)
	assert.Equal(t, "doc-1", res.DocumentID)
	assert.Equal(t, 0, res.LeadsQueued)

	require.Equal(t, 1, f.store.Count())
	evt := f.store.Events[0]
	assert.False(t, evt.Processed)
	assert.Equal(t, domain.SourceWebhook, evt.Source)
	assert.Equal(t, "application/json", evt.Headers["content-type"])
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), evt.ReceivedAt)
	assert.Empty(t, evt.Platform)
}

func TestIngest_UnparsableBodyStoresNothing(t *testing.T) {
	f := newServiceFixture(Settings{})

	for _, body := range []string{"not json", "", "   "} {
		_, err := f.service.Ingest(context.Background(), Inbound{Body: []byte(body)})
		assert.ErrorIs(t, err, domain.ErrParseFailure, "body %q", body)
	}
	assert.Equal(t, 0, f.store.Count())
}

func TestIngest_EnforcedSignature(t *testing.T) {
	body := []byte(`{"object":"page","entry":[]}`)

	t.Run("firma inválida no persiste", func(t *testing.T) {
		f := newServiceFixture(Settings{AppSecret: testSecret, EnforceSignature: true})

		_, err := f.service.Ingest(context.Background(), Inbound{Body: body, Signature: "sha256=deadbeef"})

		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
		assert.Equal(t, 0, f.store.Count())
	})

	t.Run("sin cabecera no persiste", func(t *testing.T) {
		f := newServiceFixture(Settings{AppSecret: testSecret, EnforceSignature: true})

		_, err := f.service.Ingest(context.Background(), Inbound{Body: body})

		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
		assert.Equal(t, 0, f.store.Count())
	})

	t.Run("firma válida", func(t *testing.T) {
		f := newServiceFixture(Settings{AppSecret: testSecret, EnforceSignature: true})

		res, err := f.service.Ingest(context.Background(), Inbound{Body: body, Signature: ComputeSignature(body, testSecret)})

		require.NoError(t, err)
		assert.Equal(t, domain.KindPlatform, res.Kind)
		assert.Equal(t, 1, f.store.Count())
	})
}

func TestIngest_SignatureIgnoredWhenNotEnforced(t *testing.T) {
	f := newServiceFixture(Settings{AppSecret: testSecret})

	_, err := f.service.Ingest(context.Background(), Inbound{Body: []byte(`{"a":1}`), Signature: "sha256=bad"})

	assert.NoError(t, err)
	assert.Equal(t, 1, f.store.Count())
}

func TestIngest_StoreFailureStillAcks(t *testing.T) {
	t.Run("error al guardar", func(t *testing.T) {
		f := newServiceFixture(Settings{})
		f.store.SaveErr = errors.New("write failed")

		res, err := f.service.Ingest(context.Background(), Inbound{Body: []byte(`{"a":1}`)})

		require.NoError(t, err)
		assert.Empty(t, res.DocumentID)
	})

	t.Run("store no disponible", func(t *testing.T) {
		f := newServiceFixture(Settings{})
		f.store.Down = true

		res, err := f.service.Ingest(context.Background(), Inbound{Body: []byte(leadgenPayload)})

		require.NoError(t, err)
		assert.Empty(t, res.DocumentID)
		assert.Equal(t, 0, f.store.Count())

		// Los leads se siguen procesando aunque no haya persistencia
		waitLeads(t, f.service)
		assert.Len(t, f.dispatcher.Dispatched(), 1)
	})
}

func TestIngest_LeadgenFetchesAndDispatches(t *testing.T) {
	f := newServiceFixture(Settings{PageAccessToken: "page-token"})

	res, err := f.service.Ingest(context.Background(), Inbound{Body: []byte(leadgenPayload)})
	require.NoError(t, err)
	assert.Equal(t, domain.KindPlatform, res.Kind)
	assert.Equal(t, 1, res.LeadsQueued)

	waitLeads(t, f.service)

	evt := f.store.Events[0]
	assert.Equal(t, domain.PlatformFacebook, evt.Platform)
	assert.Equal(t, "page", evt.ObjectType)
	assert.Equal(t, 1, evt.EntryCount)
	assert.Equal(t, "P1", evt.EntryID)

	assert.Equal(t, []string{"L1"}, f.fetcher.Calls)
	assert.Equal(t, []string{"page-token"}, f.fetcher.Tokens)

	recs := f.dispatcher.Dispatched()
	require.Len(t, recs, 1)
	assert.Equal(t, "L1", recs[0].LeadID)
	assert.Equal(t, "a@b.com", recs[0].Field("email"))
	assert.Equal(t, "Spring", recs[0].CampaignName)
}

func TestIngest_DuplicateLeadFetchedOnce(t *testing.T) {
	f := newServiceFixture(Settings{})

	for i := 0; i < 3; i++ {
		_, err := f.service.Ingest(context.Background(), Inbound{Body: []byte(leadgenPayload)})
		require.NoError(t, err)
	}
	waitLeads(t, f.service)

	// Cada entrega se guarda, pero el lead se procesa una sola vez
	assert.Equal(t, 3, f.store.Count())
	assert.Equal(t, 1, f.fetcher.CallCount())
	assert.Len(t, f.dispatcher.Dispatched(), 1)
}

func TestIngest_FetchErrorReleasesLead(t *testing.T) {
	f := newServiceFixture(Settings{})
	f.fetcher.Err = &domain.APIError{StatusCode: 400, Message: "Invalid OAuth access token"}

	_, err := f.service.Ingest(context.Background(), Inbound{Body: []byte(leadgenPayload)})
	require.NoError(t, err)
	waitLeads(t, f.service)

	assert.Empty(t, f.dispatcher.Dispatched())
	assert.Equal(t, []string{"L1"}, f.guard.Released)

	// Tras liberar, una reentrega vuelve a intentarlo
	f.fetcher.Err = nil
	_, err = f.service.Ingest(context.Background(), Inbound{Body: []byte(leadgenPayload)})
	require.NoError(t, err)
	waitLeads(t, f.service)

	assert.Equal(t, 2, f.fetcher.CallCount())
	assert.Len(t, f.dispatcher.Dispatched(), 1)
}

func TestIngest_ChangesWithoutLeadIDAreSkipped(t *testing.T) {
	f := newServiceFixture(Settings{})
	body := `{"object":"page","entry":[{"id":"P1","changes":[{"field":"leadgen","value":{"page_id":"P1"}},{"field":"feed","value":{"leadgen_id":"X"}}]}]}`

	res, err := f.service.Ingest(context.Background(), Inbound{Body: []byte(body)})
	require.NoError(t, err)
	waitLeads(t, f.service)

	assert.Equal(t, 0, res.LeadsQueued)
	assert.Equal(t, 0, f.fetcher.CallCount())
}

func TestIngest_FormBody(t *testing.T) {
	f := newServiceFixture(Settings{})

	res, err := f.service.Ingest(context.Background(), Inbound{
		Body:        []byte("name=Ana&name=Eva&city=Madrid"),
		ContentType: "application/x-www-form-urlencoded; charset=utf-8",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.KindGeneric, res.Kind)
	payload := f.store.Events[0].Payload.(map[string]interface{})
	assert.Equal(t, "Ana", payload["name"])
	assert.Equal(t, "Madrid", payload["city"])
}

func TestParseBody_JSONString(t *testing.T) {
	payload, err := ParseBody([]byte(`"{\"object\":\"page\",\"entry\":[]}"`), "application/json")

	require.NoError(t, err)
	m, ok := payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "page", m["object"])
	assert.Equal(t, domain.KindPlatform, domain.Classify(payload).Kind)
}

func TestParseBody_JSONStringNotJSONInside(t *testing.T) {
	_, err := ParseBody([]byte(`"just text"`), "application/json")

	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestVerify_UsesConfiguredToken(t *testing.T) {
	f := newServiceFixture(Settings{VerifyToken: "secret"})

	got, err := f.service.Verify("subscribe", "secret", "123")
	require.NoError(t, err)
	assert.Equal(t, "123", got)

	_, err = f.service.Verify("subscribe", "nope", "123")
	assert.ErrorIs(t, err, domain.ErrChallengeRejected)
}

func TestNewWebhookService_DefaultFetchTimeout(t *testing.T) {
	s := NewWebhookService(nil, nil, nil, nil, Settings{}, zap.NewNop())

	assert.Equal(t, defaultFetchTimeout, s.settings.FetchTimeout)
	assert.Equal(t, defaultDispatchTimeout, s.settings.DispatchTimeout)
}

func TestIngest_NilCollaborators(t *testing.T) {
	s := NewWebhookService(nil, nil, nil, nil, Settings{}, zap.NewNop())

	res, err := s.Ingest(context.Background(), Inbound{Body: []byte(leadgenPayload)})

	require.NoError(t, err)
	assert.Empty(t, res.DocumentID)
	assert.Equal(t, domain.KindPlatform, res.Kind)
	assert.Zero(t, res.LeadsQueued, "sin fetcher ni dispatcher no se encola nada")
	waitLeads(t, s)
}

func TestIngest_WithoutDispatcherQueuesNothing(t *testing.T) {
	fetcher := mocks.NewFakeLeadFetcher()
	s := NewWebhookService(mocks.NewInMemoryEventStore(), fetcher, nil, nil, Settings{}, zap.NewNop())

	res, err := s.Ingest(context.Background(), Inbound{Body: []byte(leadgenPayload)})

	require.NoError(t, err)
	assert.Zero(t, res.LeadsQueued)
	waitLeads(t, s)
	assert.Zero(t, fetcher.CallCount())
}

// slowFetcher consume casi todo el plazo del fetch antes de responder.
type slowFetcher struct {
	delay  time.Duration
	detail *domain.LeadDetail
}

func (f *slowFetcher) FetchLeadDetails(ctx context.Context, leadID, accessToken string) (*domain.LeadDetail, error) {
	select {
	case <-time.After(f.delay):
		return f.detail, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ctxDispatcher tarda un rato y registra si el contexto seguía vivo al terminar.
type ctxDispatcher struct {
	work   time.Duration
	result chan error
}

func (d *ctxDispatcher) Dispatch(ctx context.Context, rec domain.LeadRecord) {
	select {
	case <-time.After(d.work):
		d.result <- nil
	case <-ctx.Done():
		d.result <- ctx.Err()
	}
}

func TestProcessLead_SlowFetchDoesNotStarveDispatch(t *testing.T) {
	// Arrange: el fetch gasta 80ms de un plazo de 100ms y el despacho necesita 60ms más.
	fetcher := &slowFetcher{delay: 80 * time.Millisecond, detail: &domain.LeadDetail{ID: "L1"}}
	dispatcher := &ctxDispatcher{work: 60 * time.Millisecond, result: make(chan error, 1)}
	guard := mocks.NewFakeLeadGuard()
	s := NewWebhookService(nil, fetcher, dispatcher, guard, Settings{
		FetchTimeout:    100 * time.Millisecond,
		DispatchTimeout: time.Second,
	}, zap.NewNop())

	// Act
	res, err := s.Ingest(context.Background(), Inbound{Body: []byte(leadgenPayload)})
	require.NoError(t, err)
	require.Equal(t, 1, res.LeadsQueued)
	waitLeads(t, s)

	// Assert
	select {
	case dispatchErr := <-dispatcher.result:
		assert.NoError(t, dispatchErr, "el despacho no debe heredar el plazo del fetch")
	default:
		t.Fatal("el lead no llegó al dispatcher")
	}
	assert.Empty(t, guard.Released)
}

func TestProcessLead_FetchTimeoutReleasesLead(t *testing.T) {
	fetcher := &slowFetcher{delay: time.Second, detail: &domain.LeadDetail{ID: "L1"}}
	dispatcher := &ctxDispatcher{work: 0, result: make(chan error, 1)}
	guard := mocks.NewFakeLeadGuard()
	s := NewWebhookService(nil, fetcher, dispatcher, guard, Settings{FetchTimeout: 20 * time.Millisecond}, zap.NewNop())

	s.ProcessLead(context.Background(), domain.LeadRef{LeadgenID: "L1", PageID: "P1"})

	assert.Equal(t, []string{"L1"}, guard.Released)
	assert.Empty(t, dispatcher.result)
}
