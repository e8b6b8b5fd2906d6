package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

// LeadDispatcher reparte un LeadRecord entre el sink de notificaciones y el CRM.
type LeadDispatcher struct {
	notifier domain.NotificationSink
	crm      domain.CRMSink
	notifyTo string
	log      *zap.Logger
}

func NewLeadDispatcher(notifier domain.NotificationSink, crm domain.CRMSink, notifyTo string, log *zap.Logger) *LeadDispatcher {
	return &LeadDispatcher{
		notifier: notifier,
		crm:      crm,
		notifyTo: notifyTo,
		log:      log,
	}
}

// Dispatch es "dispara y olvida": los dos sinks corren en paralelo y sus errores
// solo se registran. Un sink caído no bloquea al otro.
func (d *LeadDispatcher) Dispatch(ctx context.Context, rec domain.LeadRecord) {
	// errgroup sin WithContext: un fallo no cancela al otro sink.
	var g errgroup.Group

	if d.notifier != nil {
		notification := domain.NewLeadNotification(rec, d.notifyTo)
		g.Go(d.guard("notification", rec.LeadID, func() error {
			return d.notifier.Notify(ctx, notification)
		}))
	}

	if d.crm != nil {
		crmLead := domain.NewCRMLead(rec)
		g.Go(d.guard("crm", rec.LeadID, func() error {
			return d.crm.AddLead(ctx, crmLead)
		}))
	}

	_ = g.Wait()
}

func (d *LeadDispatcher) guard(sink, leadID string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sink panic: %v", r)
			}
			if err != nil {
				d.log.Warn("⚠️ Lead sink failed",
					zap.String("sink", sink),
					zap.String("lead_id", leadID),
					zap.Error(err))
			}
		}()
		return fn()
	}
}
