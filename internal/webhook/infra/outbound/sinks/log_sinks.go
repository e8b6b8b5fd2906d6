package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

// LogNotificationSink deja el aviso en el log. El envío real de email es externo.
type LogNotificationSink struct {
	log *zap.Logger
}

func NewLogNotificationSink(log *zap.Logger) *LogNotificationSink {
	return &LogNotificationSink{log: log}
}

func (s *LogNotificationSink) Notify(ctx context.Context, n domain.LeadNotification) error {
	s.log.Info("📧 Lead notification prepared",
		zap.String("lead_id", n.LeadID),
		zap.String("to", n.To),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body))
	return nil
}

// LogCRMSink registra el lead con el formato del CRM.
type LogCRMSink struct {
	log *zap.Logger
}

func NewLogCRMSink(log *zap.Logger) *LogCRMSink {
	return &LogCRMSink{log: log}
}

func (s *LogCRMSink) AddLead(ctx context.Context, lead domain.CRMLead) error {
	s.log.Info("Adding lead to CRM",
		zap.String("lead_id", lead.LeadID),
		zap.String("source", lead.Source),
		zap.String("email", lead.Email),
		zap.String("notes", lead.Notes))
	return nil
}

var (
	_ domain.NotificationSink = (*LogNotificationSink)(nil)
	_ domain.CRMSink          = (*LogCRMSink)(nil)
)
