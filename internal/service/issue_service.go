package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/propertyhub/maintenance-service/internal/domain"
	"github.com/propertyhub/maintenance-service/internal/events"
	"github.com/propertyhub/maintenance-service/internal/observability"
	"github.com/propertyhub/maintenance-service/internal/repository"
	"github.com/propertyhub/maintenance-service/internal/workflow"
	apperrors "github.com/propertyhub/maintenance-service/pkg/util"
)

// IssueService drives the issue lifecycle: intake, the role-gated
// status transitions, the ETA sub-flow and the read surfaces.
type IssueService struct {
	issues     repository.IssueRepository
	users      repository.UserRepository
	debts      repository.DebtRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo  repository.IssueRepository
	UserRepo   repository.UserRepository
	DebtRepo   repository.DebtRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueService{
		issues:     deps.IssueRepo,
		users:      deps.UserRepo,
		debts:      deps.DebtRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// IssueCreateInput describes issue intake payload.
type IssueCreateInput struct {
	Title       string
	Description string
	Urgency     domain.IssueUrgency
	ApartmentID *string
}

// TransitionInput carries a requested status change. Cost arrives as
// the raw request string so the accept handler owns its parsing rules.
type TransitionInput struct {
	RequestedStatus string
	Note            *string
	Cost            *string
	Assignee        *string
}

// TransitionResult is the engine's answer to a committed transition.
type TransitionResult struct {
	Message string
	Issue   *domain.Issue
}

// IssueStaffFilter describes staff listing filters.
type IssueStaffFilter struct {
	Statuses         []domain.IssueStatus
	Urgencies        []domain.IssueUrgency
	BuildingID       *string
	AssigneeUsername *string
	Limit            int
	Offset           int
}

// CreateIssue registers a tenant's maintenance report in state REPORTED.
func (s *IssueService) CreateIssue(ctx context.Context, tenantUsername string, input IssueCreateInput) (*domain.Issue, error) {
	tenant, err := s.lookupActor(ctx, tenantUsername)
	if err != nil {
		return nil, err
	}
	if tenant.Role != domain.RoleTenant {
		return nil, apperrors.NewForbidden("only tenants report issues")
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	urgency := input.Urgency
	if urgency == "" {
		urgency = domain.IssueUrgencyNotUrgent
	}
	if urgency != domain.IssueUrgencyUrgent && urgency != domain.IssueUrgencyNotUrgent {
		return nil, apperrors.NewValidationError("unknown urgency", map[string]any{"urgency": input.Urgency})
	}

	apartmentID := input.ApartmentID
	if apartmentID == nil {
		apartmentID = tenant.ApartmentID
	}

	issue := &domain.Issue{
		ExternalKey: generateIssueKey(),
		TenantID:    tenant.ID,
		ApartmentID: apartmentID,
		Title:       title,
		Description: description,
		Urgency:     urgency,
		Status:      domain.IssueStatusReported,
	}
	reported := repository.HistoryEntry{
		Actor:   tenant.Username,
		ActorID: &tenant.ID,
		Action:  domain.ActionReport,
		Note:    title,
	}
	if err := s.issues.Create(ctx, issue, reported); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventIssueReported,
		IssueID: issue.ID,
		Actor:   actorOf(tenant),
		Payload: events.IssueReportedPayload{
			TenantID: tenant.ID,
			Title:    issue.Title,
			Urgency:  issue.Urgency,
		},
	})
	return issue, nil
}

// Transition moves an issue through the workflow on behalf of the
// acting identity: identity lookup, permission matrix, router, then
// the selected handler's atomic store operation.
func (s *IssueService) Transition(ctx context.Context, issueID, actingUsername string, input TransitionInput) (*TransitionResult, error) {
	requested := domain.IssueStatus(strings.ToUpper(strings.TrimSpace(input.RequestedStatus)))
	if requested == "" {
		return nil, apperrors.NewValidationError("status required", nil)
	}
	if !requested.IsValid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": input.RequestedStatus})
	}

	actor, err := s.lookupActor(ctx, actingUsername)
	if err != nil {
		return nil, err
	}
	if (actor.Role == domain.RoleAssociate || actor.Role == domain.RoleManager) && !actor.Active() {
		return nil, apperrors.NewForbidden("acting identity is not active")
	}

	kind, ok := workflow.Route(actor.Role, requested)
	if !ok {
		return nil, apperrors.NewForbidden(fmt.Sprintf("role %s may not request status %s", actor.Role, requested))
	}

	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}

	var result *TransitionResult
	switch kind {
	case workflow.KindAccept:
		result, err = s.accept(ctx, issue, actor, input)
	case workflow.KindResolve:
		result, err = s.resolve(ctx, issue, actor)
	case workflow.KindForward:
		result, err = s.forward(ctx, issue, actor)
	case workflow.KindAssign:
		result, err = s.assign(ctx, issue, actor, input)
	default:
		result, err = s.setStatus(ctx, issue, actor, requested, input.Note)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(kind.String(), string(result.Issue.Status))
	return result, nil
}

// accept fixes the repair cost and moves the issue to IN_PROGRESS. The
// "not already in progress" precondition rides in the store update, so
// a concurrent double-accept loses there and surfaces as Conflict. The
// debt accrual row commits with the transition; applying it to the
// tenant balance is best-effort and left to the reconciler on failure.
func (s *IssueService) accept(ctx context.Context, issue *domain.Issue, actor *domain.User, input TransitionInput) (*TransitionResult, error) {
	cost, err := parseCost(input.Cost)
	if err != nil {
		return nil, err
	}

	status := domain.IssueStatusInProgress
	forbid := domain.IssueStatusInProgress
	updated, err := s.issues.ApplyTransition(ctx, issue.ID, repository.TransitionUpdate{
		SetStatus:    &status,
		SetCost:      &cost,
		ForbidStatus: &forbid,
		History: repository.HistoryEntry{
			Actor:   actor.Username,
			ActorID: &actor.ID,
			Action:  domain.ActionAccept,
			Note:    fmt.Sprintf("Accepted (cost %s)", strconv.FormatFloat(cost, 'f', -1, 64)),
		},
		Accrual: &domain.DebtAccrual{
			IssueID:  issue.ID,
			TenantID: issue.TenantID,
			Amount:   cost,
		},
	})
	if err != nil {
		return nil, s.mapTransitionErr(err, issue.ID, "issue already in progress")
	}

	applied := s.applyDebt(ctx, issue.ID)

	s.publish(ctx, events.Event{
		Type:    events.EventIssueCostAccepted,
		IssueID: issue.ID,
		Actor:   actorOf(actor),
		Payload: events.IssueCostAcceptedPayload{Cost: cost, TenantID: issue.TenantID},
	})
	s.publish(ctx, events.Event{
		Type:    events.EventDebtAccrued,
		IssueID: issue.ID,
		Actor:   actorOf(actor),
		Payload: events.DebtAccruedPayload{TenantID: issue.TenantID, Amount: cost, Applied: applied},
	})
	s.publishStatusChange(ctx, actor, issue.Status, updated, "")

	return &TransitionResult{Message: "issue accepted", Issue: updated}, nil
}

func (s *IssueService) resolve(ctx context.Context, issue *domain.Issue, actor *domain.User) (*TransitionResult, error) {
	status := domain.IssueStatusResolved
	expect := domain.IssueStatusInProgress
	updated, err := s.issues.ApplyTransition(ctx, issue.ID, repository.TransitionUpdate{
		SetStatus:    &status,
		ExpectStatus: &expect,
		History: repository.HistoryEntry{
			Actor:   actor.Username,
			ActorID: &actor.ID,
			Action:  domain.ActionResolve,
			Note:    "Resolved",
		},
	})
	if err != nil {
		return nil, s.mapTransitionErr(err, issue.ID, "issue is not in progress")
	}
	s.publishStatusChange(ctx, actor, issue.Status, updated, "")
	return &TransitionResult{Message: "issue resolved", Issue: updated}, nil
}

// forward has no status precondition: a manager may re-forward at any
// point, which is the intended contract.
func (s *IssueService) forward(ctx context.Context, issue *domain.Issue, actor *domain.User) (*TransitionResult, error) {
	status := domain.IssueStatusForwarded
	updated, err := s.issues.ApplyTransition(ctx, issue.ID, repository.TransitionUpdate{
		SetStatus: &status,
		History: repository.HistoryEntry{
			Actor:   actor.Username,
			ActorID: &actor.ID,
			Action:  domain.ActionForward,
			Note:    "Forwarded to director",
		},
	})
	if err != nil {
		return nil, s.mapTransitionErr(err, issue.ID, "")
	}
	s.publishStatusChange(ctx, actor, issue.Status, updated, "")
	return &TransitionResult{Message: "issue forwarded", Issue: updated}, nil
}

func (s *IssueService) assign(ctx context.Context, issue *domain.Issue, actor *domain.User, input TransitionInput) (*TransitionResult, error) {
	var username string
	if input.Assignee != nil {
		username = strings.TrimSpace(*input.Assignee)
	}
	if username == "" {
		return nil, apperrors.NewValidationError("assignee required", nil)
	}

	assignee, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignee", map[string]any{"username": username})
		}
		return nil, apperrors.MapError(err)
	}
	if assignee.Role != domain.RoleAssociate {
		return nil, apperrors.NewValidationError("assignee must be an associate", map[string]any{"username": username})
	}
	if !assignee.Active() {
		return nil, apperrors.NewValidationError("assignee not active", map[string]any{"username": username})
	}

	status := domain.IssueStatusAssigned
	updated, err := s.issues.ApplyTransition(ctx, issue.ID, repository.TransitionUpdate{
		SetStatus:     &status,
		SetAssigneeID: &assignee.ID,
		History: repository.HistoryEntry{
			Actor:   actor.Username,
			ActorID: &actor.ID,
			Action:  domain.ActionAssign,
			Note:    fmt.Sprintf("Assigned to %s", assignee.Username),
		},
	})
	if err != nil {
		return nil, s.mapTransitionErr(err, issue.ID, "")
	}

	s.publish(ctx, events.Event{
		Type:    events.EventIssueAssigned,
		IssueID: issue.ID,
		Actor:   actorOf(actor),
		Payload: events.IssueAssignedPayload{AssigneeID: assignee.ID, AssigneeUsername: assignee.Username},
	})
	s.publishStatusChange(ctx, actor, issue.Status, updated, "")
	return &TransitionResult{Message: "issue assigned", Issue: updated}, nil
}

// setStatus is the fallback for permitted pairs with no specialized
// handler. It trusts the permission matrix and applies no
// state-dependent precondition.
func (s *IssueService) setStatus(ctx context.Context, issue *domain.Issue, actor *domain.User, requested domain.IssueStatus, note *string) (*TransitionResult, error) {
	entryNote := string(requested)
	if note != nil && strings.TrimSpace(*note) != "" {
		entryNote = strings.TrimSpace(*note)
	}
	updated, err := s.issues.ApplyTransition(ctx, issue.ID, repository.TransitionUpdate{
		SetStatus: &requested,
		History: repository.HistoryEntry{
			Actor:   actor.Username,
			ActorID: &actor.ID,
			Action:  domain.ActionStatus,
			Note:    entryNote,
		},
	})
	if err != nil {
		return nil, s.mapTransitionErr(err, issue.ID, "")
	}
	s.publishStatusChange(ctx, actor, issue.Status, updated, entryNote)
	return &TransitionResult{Message: "status updated", Issue: updated}, nil
}

// SetETA records an associate's estimated arrival on an issue they are
// responsible for. Independent of status, by contract.
func (s *IssueService) SetETA(ctx context.Context, issueID, actingUsername string, eta time.Time) (*domain.Issue, error) {
	actor, err := s.lookupActor(ctx, actingUsername)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAssociate {
		return nil, apperrors.NewForbidden("only associates set an eta")
	}
	if !actor.Active() {
		return nil, apperrors.NewForbidden("acting identity is not active")
	}

	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	if issue.AssigneeID == nil || *issue.AssigneeID != actor.ID {
		return nil, apperrors.NewForbidden("issue is not assigned to you")
	}

	updated, err := s.issues.ApplyTransition(ctx, issueID, repository.TransitionUpdate{
		SetETA: &eta,
		History: repository.HistoryEntry{
			Actor:   actor.Username,
			ActorID: &actor.ID,
			Action:  domain.ActionETASet,
			Note:    eta.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, s.mapTransitionErr(err, issueID, "")
	}
	s.publish(ctx, events.Event{
		Type:    events.EventIssueETASet,
		IssueID: issueID,
		Actor:   actorOf(actor),
		Payload: events.IssueETAPayload{ETA: eta},
	})
	return updated, nil
}

// AcknowledgeETA lets the reporting tenant confirm the associate's eta.
func (s *IssueService) AcknowledgeETA(ctx context.Context, issueID, actingUsername string) (*domain.Issue, error) {
	actor, err := s.lookupActor(ctx, actingUsername)
	if err != nil {
		return nil, err
	}

	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	if issue.TenantID != actor.ID {
		return nil, apperrors.NewForbidden("only the reporting tenant acknowledges an eta")
	}
	if issue.ETA == nil {
		return nil, apperrors.NewConflict("eta not set", map[string]any{"issue_id": issueID})
	}

	ack := true
	updated, err := s.issues.ApplyTransition(ctx, issueID, repository.TransitionUpdate{
		SetETAAck: &ack,
		History: repository.HistoryEntry{
			Actor:   actor.Username,
			ActorID: &actor.ID,
			Action:  domain.ActionETAAck,
			Note:    "ETA acknowledged",
		},
	})
	if err != nil {
		return nil, s.mapTransitionErr(err, issueID, "")
	}
	s.publish(ctx, events.Event{
		Type:    events.EventIssueETAAcked,
		IssueID: issueID,
		Actor:   actorOf(actor),
		Payload: events.IssueETAPayload{ETA: *issue.ETA},
	})
	return updated, nil
}

// ListForTenant returns the tenant's own issues.
func (s *IssueService) ListForTenant(ctx context.Context, tenantUsername string, limit, offset int) ([]domain.Issue, error) {
	tenant, err := s.lookupActor(ctx, tenantUsername)
	if err != nil {
		return nil, err
	}
	return s.issues.ListWithFilter(ctx, repository.IssueFilter{
		TenantID: &tenant.ID,
		Limit:    limit,
		Offset:   offset,
	})
}

// GetForTenant fetches an issue ensuring ownership.
func (s *IssueService) GetForTenant(ctx context.Context, tenantUsername, issueID string) (*domain.Issue, error) {
	tenant, err := s.lookupActor(ctx, tenantUsername)
	if err != nil {
		return nil, err
	}
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	if issue.TenantID != tenant.ID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return issue, nil
}

// ListForStaff returns issues matching staff filters.
func (s *IssueService) ListForStaff(ctx context.Context, filter IssueStaffFilter) ([]domain.Issue, error) {
	repoFilter := repository.IssueFilter{
		Statuses:   filter.Statuses,
		Urgencies:  filter.Urgencies,
		BuildingID: filter.BuildingID,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if filter.AssigneeUsername != nil {
		assignee, err := s.users.GetByUsername(ctx, *filter.AssigneeUsername)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return []domain.Issue{}, nil
			}
			return nil, apperrors.MapError(err)
		}
		repoFilter.AssigneeID = &assignee.ID
	}
	return s.issues.ListWithFilter(ctx, repoFilter)
}

// GetForStaff fetches an issue by id for workflow roles.
func (s *IssueService) GetForStaff(ctx context.Context, issueID string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	return issue, nil
}

func (s *IssueService) lookupActor(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.NewValidationError("acting username required", nil)
	}
	actor, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("identity", map[string]any{"username": username})
		}
		return nil, apperrors.MapError(err)
	}
	return actor, nil
}

// applyDebt tries to post the accrual to the tenant balance. Failure is
// swallowed: the transition already committed and the reconciler will
// retry the row later.
func (s *IssueService) applyDebt(ctx context.Context, issueID string) bool {
	applied, err := s.debts.Apply(ctx, issueID)
	if err != nil {
		s.logger.Warn("debt accrual not applied inline; left for reconciler",
			zap.String("issue_id", issueID), zap.Error(err))
		return false
	}
	return applied
}

func (s *IssueService) mapTransitionErr(err error, issueID, conflictMsg string) error {
	if errors.Is(err, repository.ErrStatusPrecondition) {
		if conflictMsg == "" {
			conflictMsg = "issue state changed concurrently"
		}
		return apperrors.NewConflict(conflictMsg, map[string]any{"issue_id": issueID})
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
	}
	return apperrors.MapError(err)
}

func (s *IssueService) publishStatusChange(ctx context.Context, actor *domain.User, oldStatus domain.IssueStatus, updated *domain.Issue, note string) {
	s.publish(ctx, events.Event{
		Type:    events.EventIssueStatusChanged,
		IssueID: updated.ID,
		Actor:   actorOf(actor),
		Payload: events.IssueStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: updated.Status,
			Note:      note,
		},
	})
}

func (s *IssueService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorOf(user *domain.User) events.Actor {
	return events.Actor{
		Username: user.Username,
		Role:     user.Role,
		UserID:   &user.ID,
	}
}

func parseCost(raw *string) (float64, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return 0, apperrors.NewValidationError("cost required", nil)
	}
	cost, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
	if err != nil || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0, apperrors.NewValidationError("cost must be a finite number", map[string]any{"cost": *raw})
	}
	if cost < 0 {
		return 0, apperrors.NewValidationError("cost must not be negative", map[string]any{"cost": *raw})
	}
	return cost, nil
}

func generateIssueKey() string {
	return "ISS-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
