package sinks

import (
	"context"
	"fmt"
	"time"

	sharedEvents "github.com/davicafu/leadhook/internal/shared/events"
	sharedBus "github.com/davicafu/leadhook/internal/shared/infra/platform/bus"
	"github.com/davicafu/leadhook/internal/webhook/domain"
)

// BusCRMSink publica cada CRMLead en el bus (Kafka o memoria); el conector del CRM consume el topic.
type BusCRMSink struct {
	bus sharedBus.EventBus
	now func() time.Time
}

func NewBusCRMSink(bus sharedBus.EventBus) *BusCRMSink {
	return &BusCRMSink{bus: bus, now: time.Now}
}

func (s *BusCRMSink) AddLead(ctx context.Context, lead domain.CRMLead) error {
	evt, err := sharedEvents.NewIntegrationEvent(domain.LeadCRMRequested, lead.PartitionKey(), lead, s.now())
	if err != nil {
		return fmt.Errorf("marshal crm lead: %w", err)
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish crm lead %s: %w", lead.LeadID, err)
	}
	return nil
}

var _ domain.CRMSink = (*BusCRMSink)(nil)
