package contracts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/leadhook/internal/webhook/application"
	storeDB "github.com/davicafu/leadhook/internal/webhook/infra/outbound/db"
	webhookHttp "github.com/davicafu/leadhook/internal/webhook/infra/inbound/http"
	"github.com/davicafu/leadhook/tests/mocks"
)

// Contrato HTTP que espera la plataforma: cuerpos y códigos exactos.

func newContractRouter(store *mocks.InMemoryEventStore, enforce bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	service := application.NewWebhookService(store, nil, nil, nil, application.Settings{
		VerifyToken:      "contract-token",
		AppSecret:        "contract-secret",
		EnforceSignature: enforce,
	}, zap.NewNop())

	r := webhookHttp.NewRouter(zap.NewNop())
	webhookHttp.RegisterWebhookRoutes(r, webhookHttp.NewWebhookHandler(service, zap.NewNop()))
	return r
}

func TestWebhookContract_Handshake(t *testing.T) {
	r := newContractRouter(mocks.NewInMemoryEventStore(), false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=contract-token&hub.challenge=1158201444", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1158201444", rec.Body.String())
}

func TestWebhookContract_PostAck(t *testing.T) {
	store := mocks.NewInMemoryEventStore()
	r := newContractRouter(store, true)
	body := `{"object":"page","entry":[{"id":"P1","time":1700000000,"changes":[{"field":"feed","value":{"item":"status"}}]}]}`

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(application.SignatureHeader, application.ComputeSignature([]byte(body), "contract-secret"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EVENT_RECEIVED", rec.Body.String())
	require.Equal(t, 1, store.Count())

	evt := store.Events[0]
	assert.Equal(t, "page", evt.ObjectType)
	assert.Equal(t, int64(1700000000), evt.EntryTime)
	require.Len(t, evt.Changes, 1)
	assert.Equal(t, "feed", evt.Changes[0].Field)
	// Los valores compuestos se guardan como texto JSON
	assert.JSONEq(t, `{"item":"status"}`, evt.Changes[0].Value.(string))
}

func TestWebhookContract_ErrorBody(t *testing.T) {
	r := newContractRouter(mocks.NewInMemoryEventStore(), false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("<xml/>")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"error": "Failed to process webhook"}, resp)
}

func TestWebhookContract_UnavailableStoreStillAcks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := application.NewWebhookService(storeDB.UnavailableStore{Reason: "test"}, nil, nil, nil, application.Settings{}, zap.NewNop())
	r := webhookHttp.NewRouter(zap.NewNop())
	webhookHttp.RegisterWebhookRoutes(r, webhookHttp.NewWebhookHandler(service, zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"hello":"world"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EVENT_RECEIVED", rec.Body.String())
}
