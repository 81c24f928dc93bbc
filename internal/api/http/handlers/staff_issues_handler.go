package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/propertyhub/maintenance-service/internal/api/dto"
	"github.com/propertyhub/maintenance-service/internal/auth"
	"github.com/propertyhub/maintenance-service/internal/domain"
	"github.com/propertyhub/maintenance-service/internal/service"
	apperrors "github.com/propertyhub/maintenance-service/pkg/util"
)

// StaffIssuesHandler manages workflow-role issue endpoints.
type StaffIssuesHandler struct {
	service *service.IssueService
}

// NewStaffIssuesHandler constructs handler.
func NewStaffIssuesHandler(issueService *service.IssueService) *StaffIssuesHandler {
	return &StaffIssuesHandler{service: issueService}
}

// ListIssues GET /staff/issues.
func (h *StaffIssuesHandler) ListIssues(c *fiber.Ctx) error {
	filter := service.IssueStaffFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.IssueStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if urgencyStr := c.Query("urgency"); urgencyStr != "" {
		for _, part := range strings.Split(urgencyStr, ",") {
			filter.Urgencies = append(filter.Urgencies, domain.IssueUrgency(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if buildingID := c.Query("building_id"); buildingID != "" {
		filter.BuildingID = &buildingID
	}
	if assignee := c.Query("assignee"); assignee != "" {
		filter.AssigneeUsername = &assignee
	}
	filter.Limit, filter.Offset = parsePaging(c)

	issues, err := h.service.ListForStaff(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.IssueSummary, 0, len(issues))
	for i := range issues {
		items = append(items, issueSummary(&issues[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetIssue GET /staff/issues/:id.
func (h *StaffIssuesHandler) GetIssue(c *fiber.Ctx) error {
	issue, err := h.service.GetForStaff(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueDetail(issue)})
}

// Transition POST /staff/issues/:id/status.
func (h *StaffIssuesHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.service.Transition(c.Context(), c.Params("id"), principal.User.Username, service.TransitionInput{
		RequestedStatus: req.Status,
		Note:            req.Note,
		Cost:            req.Cost,
		Assignee:        req.Assignee,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TransitionResponse{
		Message: result.Message,
		Issue:   issueDetail(result.Issue),
	}})
}

// SetETA POST /staff/issues/:id/eta.
func (h *StaffIssuesHandler) SetETA(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.SetETARequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ETA.IsZero() {
		return apperrors.NewValidationError("eta required", nil)
	}

	issue, err := h.service.SetETA(c.Context(), c.Params("id"), principal.User.Username, req.ETA)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueDetail(issue)})
}
