package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/propertyhub/maintenance-service/internal/events"
)

// AuditService mirrors workflow events into the structured log so every
// transition leaves an operator-visible trace beside the database
// history rows.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to all workflow events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventIssueReported,
		events.EventIssueStatusChanged,
		events.EventIssueAssigned,
		events.EventIssueCostAccepted,
		events.EventIssueETASet,
		events.EventIssueETAAcked,
		events.EventDebtAccrued,
	} {
		a.dispatcher.Subscribe(eventType, a.logEvent)
	}
}

func (a *AuditService) logEvent(ctx context.Context, event events.Event) error {
	a.logger.Info("workflow event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("issue_id", event.IssueID),
		zap.String("actor", event.Actor.Username),
		zap.String("role", string(event.Actor.Role)),
		zap.Any("payload", event.Payload),
	)
	return nil
}
