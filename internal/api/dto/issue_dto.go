package dto

import (
	"time"

	"github.com/propertyhub/maintenance-service/internal/domain"
)

// CreateIssueRequest is the tenant intake payload.
type CreateIssueRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Urgency     string  `json:"urgency"`
	ApartmentID *string `json:"apartment_id"`
}

// TransitionRequest is the staff status-change payload. Cost stays a
// raw string; the engine owns its parsing rules.
type TransitionRequest struct {
	Status   string  `json:"status"`
	Note     *string `json:"note"`
	Cost     *string `json:"cost"`
	Assignee *string `json:"assignee"`
}

// SetETARequest carries an associate's estimated arrival.
type SetETARequest struct {
	ETA time.Time `json:"eta"`
}

// IssueSummary is the listing projection.
type IssueSummary struct {
	ID          string              `json:"id"`
	ExternalKey string              `json:"external_key"`
	Title       string              `json:"title"`
	Urgency     domain.IssueUrgency `json:"urgency"`
	Status      domain.IssueStatus  `json:"status"`
	AssigneeID  *string             `json:"assignee_id,omitempty"`
	Cost        *float64            `json:"cost,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// IssueHistoryResponse projects one audit entry.
type IssueHistoryResponse struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IssueDetailResponse is the full issue projection.
type IssueDetailResponse struct {
	ID              string                 `json:"id"`
	ExternalKey     string                 `json:"external_key"`
	TenantID        string                 `json:"tenant_id"`
	ApartmentID     *string                `json:"apartment_id,omitempty"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Urgency         domain.IssueUrgency    `json:"urgency"`
	Status          domain.IssueStatus     `json:"status"`
	AssigneeID      *string                `json:"assignee_id,omitempty"`
	Cost            *float64               `json:"cost,omitempty"`
	ETA             *time.Time             `json:"eta,omitempty"`
	ETAAcknowledged bool                   `json:"eta_acknowledged"`
	History         []IssueHistoryResponse `json:"history"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// TransitionResponse wraps the engine's result envelope.
type TransitionResponse struct {
	Message string              `json:"message"`
	Issue   IssueDetailResponse `json:"issue"`
}
