package domain

import "time"

// IssueStatus enumerates lifecycle states for maintenance issues.
type IssueStatus string

const (
	IssueStatusReported   IssueStatus = "REPORTED"
	IssueStatusForwarded  IssueStatus = "FORWARDED"
	IssueStatusAssigned   IssueStatus = "ASSIGNED"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusResolved   IssueStatus = "RESOLVED"
	IssueStatusRejected   IssueStatus = "REJECTED"
)

// KnownStatuses lists every valid issue status.
var KnownStatuses = []IssueStatus{
	IssueStatusReported,
	IssueStatusForwarded,
	IssueStatusAssigned,
	IssueStatusInProgress,
	IssueStatusResolved,
	IssueStatusRejected,
}

// IsValid reports whether s is a known status value.
func (s IssueStatus) IsValid() bool {
	for _, candidate := range KnownStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IssueUrgency flags whether a repair needs expedited handling.
type IssueUrgency string

const (
	IssueUrgencyUrgent    IssueUrgency = "URGENT"
	IssueUrgencyNotUrgent IssueUrgency = "NOT_URGENT"
)

// Issue is the aggregate for a reported maintenance problem. Status is
// never written directly by callers; it only moves through the workflow
// engine's transitions.
type Issue struct {
	ID              string
	ExternalKey     string
	TenantID        string
	ApartmentID     *string
	Title           string
	Description     string
	Urgency         IssueUrgency
	Status          IssueStatus
	AssigneeID      *string
	Cost            *float64
	ETA             *time.Time
	ETAAcknowledged bool
	History         []IssueHistory
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
