package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/propertyhub/maintenance-service/internal/api/dto"
	"github.com/propertyhub/maintenance-service/internal/auth"
	"github.com/propertyhub/maintenance-service/internal/domain"
	"github.com/propertyhub/maintenance-service/internal/service"
	apperrors "github.com/propertyhub/maintenance-service/pkg/util"
)

// IssuesHandler manages tenant-facing issue endpoints.
type IssuesHandler struct {
	service *service.IssueService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService) *IssuesHandler {
	return &IssuesHandler{service: issueService}
}

// CreateIssue POST /issues.
func (h *IssuesHandler) CreateIssue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	issue, err := h.service.CreateIssue(c.Context(), principal.User.Username, service.IssueCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Urgency:     domain.IssueUrgency(strings.ToUpper(strings.TrimSpace(req.Urgency))),
		ApartmentID: req.ApartmentID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issueDetail(issue)})
}

// ListIssues GET /issues.
func (h *IssuesHandler) ListIssues(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	limit, offset := parsePaging(c)
	issues, err := h.service.ListForTenant(c.Context(), principal.User.Username, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.IssueSummary, 0, len(issues))
	for i := range issues {
		items = append(items, issueSummary(&issues[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetIssue GET /issues/:id.
func (h *IssuesHandler) GetIssue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	issue, err := h.service.GetForTenant(c.Context(), principal.User.Username, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueDetail(issue)})
}

// AcknowledgeETA POST /issues/:id/eta/ack.
func (h *IssuesHandler) AcknowledgeETA(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	issue, err := h.service.AcknowledgeETA(c.Context(), c.Params("id"), principal.User.Username)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueDetail(issue)})
}

func parsePaging(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	return pageSize, (page - 1) * pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func issueSummary(issue *domain.Issue) dto.IssueSummary {
	return dto.IssueSummary{
		ID:          issue.ID,
		ExternalKey: issue.ExternalKey,
		Title:       issue.Title,
		Urgency:     issue.Urgency,
		Status:      issue.Status,
		AssigneeID:  issue.AssigneeID,
		Cost:        issue.Cost,
		CreatedAt:   issue.CreatedAt,
		UpdatedAt:   issue.UpdatedAt,
	}
}

func issueDetail(issue *domain.Issue) dto.IssueDetailResponse {
	history := make([]dto.IssueHistoryResponse, 0, len(issue.History))
	for _, entry := range issue.History {
		history = append(history, dto.IssueHistoryResponse{
			ID:        entry.ID,
			Actor:     entry.Actor,
			Action:    string(entry.Action),
			Note:      entry.Note,
			CreatedAt: entry.CreatedAt,
		})
	}
	return dto.IssueDetailResponse{
		ID:              issue.ID,
		ExternalKey:     issue.ExternalKey,
		TenantID:        issue.TenantID,
		ApartmentID:     issue.ApartmentID,
		Title:           issue.Title,
		Description:     issue.Description,
		Urgency:         issue.Urgency,
		Status:          issue.Status,
		AssigneeID:      issue.AssigneeID,
		Cost:            issue.Cost,
		ETA:             issue.ETA,
		ETAAcknowledged: issue.ETAAcknowledged,
		History:         history,
		CreatedAt:       issue.CreatedAt,
		UpdatedAt:       issue.UpdatedAt,
	}
}
