package events

import (
	"time"

	"github.com/propertyhub/maintenance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueReported      EventType = "issue_reported"
	EventIssueStatusChanged EventType = "issue_status_changed"
	EventIssueAssigned      EventType = "issue_assigned"
	EventIssueCostAccepted  EventType = "issue_cost_accepted"
	EventIssueETASet        EventType = "issue_eta_set"
	EventIssueETAAcked      EventType = "issue_eta_acknowledged"
	EventDebtAccrued        EventType = "debt_accrued"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	UserID   *string     `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	IssueID   string      `json:"issue_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// IssueReportedPayload payload.
type IssueReportedPayload struct {
	TenantID string              `json:"tenant_id"`
	Title    string              `json:"title"`
	Urgency  domain.IssueUrgency `json:"urgency"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
	Note      string             `json:"note,omitempty"`
}

// IssueAssignedPayload payload.
type IssueAssignedPayload struct {
	AssigneeID       string `json:"assignee_id"`
	AssigneeUsername string `json:"assignee_username"`
}

// IssueCostAcceptedPayload payload.
type IssueCostAcceptedPayload struct {
	Cost     float64 `json:"cost"`
	TenantID string  `json:"tenant_id"`
}

// IssueETAPayload payload for eta set/acknowledge events.
type IssueETAPayload struct {
	ETA time.Time `json:"eta"`
}

// DebtAccruedPayload payload.
type DebtAccruedPayload struct {
	TenantID string  `json:"tenant_id"`
	Amount   float64 `json:"amount"`
	Applied  bool    `json:"applied"`
}
