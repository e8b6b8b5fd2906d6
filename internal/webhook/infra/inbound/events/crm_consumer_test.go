package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/leadhook/internal/shared/events"
	infraEvents "github.com/davicafu/leadhook/internal/shared/infra/events"
	"github.com/davicafu/leadhook/internal/webhook/domain"
	"github.com/davicafu/leadhook/internal/webhook/infra/outbound/sinks"
	"github.com/davicafu/leadhook/tests/mocks"
)

func TestCRMConsumer_HandleMessage(t *testing.T) {
	sink := &mocks.RecordingCRMSink{}
	consumer := NewCRMConsumer(sink, zap.NewNop())
	lead := domain.CRMLead{LeadID: "L1", Email: "ana@example.com"}

	evt, err := sharedEvents.NewIntegrationEvent(domain.LeadCRMRequested, lead.LeadID, lead, time.Now())
	require.NoError(t, err)
	payload, err := json.Marshal(evt)
	require.NoError(t, err)

	consumer.HandleMessage(context.Background(), "L1", payload)
	consumer.HandleMessage(context.Background(), "", []byte(`not json`))
	consumer.HandleMessage(context.Background(), "", []byte(`{"type":"other","data":{}}`))

	require.Len(t, sink.Leads, 1)
	assert.Equal(t, lead, sink.Leads[0])
}

func TestBackgroundConsumerChan_InMemoryBus(t *testing.T) {
	// Arrange: sink de bus en memoria -> consumidor -> sink final
	bus := infraEvents.NewInMemoryEventBus(domain.CRMTopic, zap.NewNop())
	final := &mocks.RecordingCRMSink{}
	done := BackgroundConsumerChan(context.Background(), bus.Subscribe(10), NewCRMConsumer(final, zap.NewNop()))

	// Act
	require.NoError(t, sinks.NewBusCRMSink(bus).AddLead(context.Background(), domain.CRMLead{LeadID: "L7"}))
	bus.Close()

	// Assert
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	require.Len(t, final.Leads, 1)
	assert.Equal(t, "L7", final.Leads[0].LeadID)
}

func TestBackgroundConsumerChan_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := BackgroundConsumerChan(ctx, make(chan []byte), NewCRMConsumer(&mocks.RecordingCRMSink{}, zap.NewNop()))

	cancel()

	assert.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
