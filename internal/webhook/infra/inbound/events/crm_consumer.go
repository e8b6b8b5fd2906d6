package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/leadhook/internal/shared/events"
	sharedUtils "github.com/davicafu/leadhook/internal/shared/infra/utils"
	"github.com/davicafu/leadhook/internal/webhook/domain"
)

const handleTimeout = 5 * time.Second

// CRMConsumer lee los eventos del topic del CRM y los entrega a un CRMSink.
type CRMConsumer struct {
	sink domain.CRMSink
	log  *zap.Logger
}

func NewCRMConsumer(sink domain.CRMSink, log *zap.Logger) *CRMConsumer {
	return &CRMConsumer{sink: sink, log: log}
}

func (c *CRMConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event", zap.String("key", key), zap.Error(err))
		return
	}

	switch base.Type {
	case domain.LeadCRMRequested:
		sharedUtils.UnmarshalAndHandle[domain.CRMLead](c.log, base.Type, base.Data, func(lead domain.CRMLead) error {
			ctxLead, cancel := context.WithTimeout(ctx, handleTimeout)
			defer cancel()
			return c.sink.AddLead(ctxLead, lead)
		})
	default:
		c.log.Warn("Unknown event type", zap.String("type", base.Type))
	}
}

// BackgroundConsumerChan consume el canal hasta que se cierre o venza ctx.
// done se cierra al salir.
func BackgroundConsumerChan(ctx context.Context, ch <-chan []byte, consumer *CRMConsumer) (done <-chan struct{}) {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-ctx.Done():
				consumer.log.Info("CRMConsumer stopped")
				return
			case payload, ok := <-ch:
				if !ok {
					consumer.log.Info("CRMConsumer channel closed")
					return
				}
				consumer.HandleMessage(ctx, "", payload)
			}
		}
	}()
	return finished
}
