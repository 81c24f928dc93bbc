package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/propertyhub/maintenance-service/internal/domain"
	"github.com/propertyhub/maintenance-service/internal/repository"
	apperrors "github.com/propertyhub/maintenance-service/pkg/util"
)

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	users map[string]*domain.User // keyed by id
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) add(user domain.User) *domain.User {
	stored := user
	f.users[stored.ID] = &stored
	return &stored
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	user.ID = fmt.Sprintf("user-%d", len(f.users)+1)
	f.add(*user)
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error {
	user, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Status = status
	return nil
}

func (f *fakeUserRepo) IncrementDebt(ctx context.Context, id string, amount float64) error {
	user, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.DebtBalance += amount
	return nil
}

func (f *fakeUserRepo) ListByRole(ctx context.Context, role domain.Role, limit, offset int) ([]domain.User, error) {
	var result []domain.User
	for _, user := range f.users {
		if user.Role == role {
			result = append(result, *user)
		}
	}
	return result, nil
}

// fakeDebtRepo stores accrual rows and posts them to fakeUserRepo.
type fakeDebtRepo struct {
	accruals  map[string]*domain.DebtAccrual // keyed by issue id
	users     *fakeUserRepo
	failApply bool
}

func newFakeDebtRepo(users *fakeUserRepo) *fakeDebtRepo {
	return &fakeDebtRepo{accruals: make(map[string]*domain.DebtAccrual), users: users}
}

func (f *fakeDebtRepo) GetByIssue(ctx context.Context, issueID string) (*domain.DebtAccrual, error) {
	accrual, ok := f.accruals[issueID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *accrual
	return &copied, nil
}

func (f *fakeDebtRepo) ListUnapplied(ctx context.Context, limit int) ([]domain.DebtAccrual, error) {
	var result []domain.DebtAccrual
	for _, accrual := range f.accruals {
		if !accrual.Applied {
			result = append(result, *accrual)
		}
	}
	return result, nil
}

func (f *fakeDebtRepo) Apply(ctx context.Context, issueID string) (bool, error) {
	if f.failApply {
		return false, errors.New("ledger unavailable")
	}
	accrual, ok := f.accruals[issueID]
	if !ok || accrual.Applied {
		return false, nil
	}
	if err := f.users.IncrementDebt(ctx, accrual.TenantID, accrual.Amount); err != nil {
		return false, err
	}
	now := time.Now()
	accrual.Applied = true
	accrual.AppliedAt = &now
	return true, nil
}

// fakeIssueRepo emulates the atomic set-plus-append primitive,
// including the in-predicate status checks.
type fakeIssueRepo struct {
	issues map[string]*domain.Issue
	debts  *fakeDebtRepo
	nextID int
}

func newFakeIssueRepo(debts *fakeDebtRepo) *fakeIssueRepo {
	return &fakeIssueRepo{issues: make(map[string]*domain.Issue), debts: debts}
}

func (f *fakeIssueRepo) add(issue domain.Issue) *domain.Issue {
	stored := issue
	f.issues[stored.ID] = &stored
	return &stored
}

func (f *fakeIssueRepo) Create(ctx context.Context, issue *domain.Issue, reported repository.HistoryEntry) error {
	f.nextID++
	issue.ID = fmt.Sprintf("issue-%d", f.nextID)
	issue.CreatedAt = time.Now()
	issue.UpdatedAt = issue.CreatedAt
	issue.History = []domain.IssueHistory{{
		ID:        fmt.Sprintf("%s-h1", issue.ID),
		IssueID:   issue.ID,
		Actor:     reported.Actor,
		ActorID:   reported.ActorID,
		Action:    reported.Action,
		Note:      reported.Note,
		CreatedAt: issue.CreatedAt,
	}}
	f.add(*issue)
	return nil
}

func (f *fakeIssueRepo) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyIssue(issue), nil
}

func (f *fakeIssueRepo) ListWithFilter(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	var result []domain.Issue
	for _, issue := range f.issues {
		if filter.TenantID != nil && issue.TenantID != *filter.TenantID {
			continue
		}
		if filter.AssigneeID != nil && (issue.AssigneeID == nil || *issue.AssigneeID != *filter.AssigneeID) {
			continue
		}
		result = append(result, *copyIssue(issue))
	}
	return result, nil
}

func (f *fakeIssueRepo) ApplyTransition(ctx context.Context, issueID string, update repository.TransitionUpdate) (*domain.Issue, error) {
	issue, ok := f.issues[issueID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if update.ExpectStatus != nil && issue.Status != *update.ExpectStatus {
		return nil, repository.ErrStatusPrecondition
	}
	if update.ForbidStatus != nil && issue.Status == *update.ForbidStatus {
		return nil, repository.ErrStatusPrecondition
	}

	if update.SetStatus != nil {
		issue.Status = *update.SetStatus
	}
	if update.SetCost != nil {
		issue.Cost = update.SetCost
	}
	if update.SetAssigneeID != nil {
		issue.AssigneeID = update.SetAssigneeID
	}
	if update.SetETA != nil {
		issue.ETA = update.SetETA
	}
	if update.SetETAAck != nil {
		issue.ETAAcknowledged = *update.SetETAAck
	}
	issue.UpdatedAt = time.Now()
	issue.History = append(issue.History, domain.IssueHistory{
		ID:        fmt.Sprintf("%s-h%d", issue.ID, len(issue.History)+1),
		IssueID:   issue.ID,
		Actor:     update.History.Actor,
		ActorID:   update.History.ActorID,
		Action:    update.History.Action,
		Note:      update.History.Note,
		CreatedAt: issue.UpdatedAt,
	})

	if update.Accrual != nil {
		if _, exists := f.debts.accruals[issueID]; !exists {
			accrual := *update.Accrual
			accrual.ID = "accrual-" + issueID
			accrual.CreatedAt = issue.UpdatedAt
			f.debts.accruals[issueID] = &accrual
		}
	}
	return copyIssue(issue), nil
}

func copyIssue(issue *domain.Issue) *domain.Issue {
	copied := *issue
	copied.History = append([]domain.IssueHistory(nil), issue.History...)
	return &copied
}

type fixture struct {
	svc    *IssueService
	users  *fakeUserRepo
	issues *fakeIssueRepo
	debts  *fakeDebtRepo

	tenant    *domain.User
	associate *domain.User
	manager   *domain.User
	director  *domain.User
	admin     *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := newFakeUserRepo()
	debts := newFakeDebtRepo(users)
	issues := newFakeIssueRepo(debts)

	f := &fixture{
		users:  users,
		issues: issues,
		debts:  debts,
	}
	f.tenant = users.add(domain.User{ID: "t1", Username: "alice", Role: domain.RoleTenant, Status: domain.UserStatusActive})
	f.associate = users.add(domain.User{ID: "a1", Username: "bob", Role: domain.RoleAssociate, Status: domain.UserStatusActive})
	f.manager = users.add(domain.User{ID: "m1", Username: "mona", Role: domain.RoleManager, Status: domain.UserStatusActive})
	f.director = users.add(domain.User{ID: "d1", Username: "dora", Role: domain.RoleDirector, Status: domain.UserStatusActive})
	f.admin = users.add(domain.User{ID: "ad1", Username: "root", Role: domain.RoleAdmin, Status: domain.UserStatusActive})

	f.svc = NewIssueService(IssueDependencies{
		IssueRepo: issues,
		UserRepo:  users,
		DebtRepo:  debts,
	})
	return f
}

func (f *fixture) seedIssue(t *testing.T, status domain.IssueStatus, assigneeID *string) *domain.Issue {
	t.Helper()
	issue := f.issues.add(domain.Issue{
		ID:          fmt.Sprintf("issue-%d", len(f.issues.issues)+1),
		ExternalKey: "ISS-TEST",
		TenantID:    f.tenant.ID,
		Title:       "Leaking pipe",
		Description: "Water under the kitchen sink",
		Urgency:     domain.IssueUrgencyNotUrgent,
		Status:      status,
		AssigneeID:  assigneeID,
		History: []domain.IssueHistory{{
			ID: "h0", Actor: f.tenant.Username, Action: domain.ActionReport, Note: "Leaking pipe",
		}},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	return issue
}

func str(s string) *string { return &s }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("error code = %s, want %s (err: %v)", got, code, err)
	}
}

func TestForwardFromReported(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, domain.IssueStatusReported, nil)

	result, err := f.svc.Transition(context.Background(), issue.ID, "mona", TransitionInput{RequestedStatus: "FORWARDED"})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if result.Issue.Status != domain.IssueStatusForwarded {
		t.Errorf("status = %s, want FORWARDED", result.Issue.Status)
	}
	if len(result.Issue.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(result.Issue.History))
	}
	last := result.Issue.History[len(result.Issue.History)-1]
	if last.Action != domain.ActionForward || last.Actor != "mona" {
		t.Errorf("last entry = %s by %s, want forward by mona", last.Action, last.Actor)
	}
}

func TestAcceptSetsCostAndAccruesDebt(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, domain.IssueStatusAssigned, &f.associate.ID)

	result, err := f.svc.Transition(context.Background(), issue.ID, "bob", TransitionInput{
		RequestedStatus: "IN_PROGRESS",
		Cost:            str("1500"),
	})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if result.Issue.Status != domain.IssueStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", result.Issue.Status)
	}
	if result.Issue.Cost == nil || *result.Issue.Cost != 1500 {
		t.Errorf("cost = %v, want 1500", result.Issue.Cost)
	}
	tenant, _ := f.users.GetByID(context.Background(), f.tenant.ID)
	if tenant.DebtBalance != 1500 {
		t.Errorf("tenant debt = %v, want 1500", tenant.DebtBalance)
	}
	last := result.Issue.History[len(result.Issue.History)-1]
	if last.Action != domain.ActionAccept || !strings.Contains(last.Note, "1500") {
		t.Errorf("last entry = %s %q, want accept mentioning cost", last.Action, last.Note)
	}
	accrual, err := f.debts.GetByIssue(context.Background(), issue.ID)
	if err != nil || !accrual.Applied {
		t.Errorf("accrual applied = %v (err %v), want applied", accrual, err)
	}
}

func TestDoubleAcceptConflicts(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, domain.IssueStatusAssigned, &f.associate.ID)

	ctx := context.Background()
	if _, err := f.svc.Transition(ctx, issue.ID, "bob", TransitionInput{RequestedStatus: "IN_PROGRESS", Cost: str("1500")}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	_, err := f.svc.Transition(ctx, issue.ID, "bob", TransitionInput{RequestedStatus: "IN_PROGRESS", Cost: str("2000")})
	assertCode(t, err, apperrors.CodeConflict)

	stored, _ := f.issues.GetByID(ctx, issue.ID)
	if stored.Cost == nil || *stored.Cost != 1500 {
		t.Errorf("cost after rejected re-accept = %v, want 1500", stored.Cost)
	}
	tenant, _ := f.users.GetByID(ctx, f.tenant.ID)
	if tenant.DebtBalance != 1500 {
		t.Errorf("tenant debt = %v, want 1500 (no double billing)", tenant.DebtBalance)
	}
}

func TestResolveRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issue := f.seedIssue(t, domain.IssueStatusAssigned, &f.associate.ID)
	_, err := f.svc.Transition(ctx, issue.ID, "bob", TransitionInput{RequestedStatus: "RESOLVED"})
	assertCode(t, err, apperrors.CodeConflict)

	stored, _ := f.issues.GetByID(ctx, issue.ID)
	if stored.Status != domain.IssueStatusAssigned {
		t.Errorf("status after failed resolve = %s, want ASSIGNED", stored.Status)
	}
	if len(stored.History) != 1 {
		t.Errorf("history length after failed resolve = %d, want 1", len(stored.History))
	}
}

func TestResolveKeepsCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.seedIssue(t, domain.IssueStatusAssigned, &f.associate.ID)

	if _, err := f.svc.Transition(ctx, issue.ID, "bob", TransitionInput{RequestedStatus: "IN_PROGRESS", Cost: str("1500")}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	result, err := f.svc.Transition(ctx, issue.ID, "bob", TransitionInput{RequestedStatus: "RESOLVED"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Issue.Status != domain.IssueStatusResolved {
		t.Errorf("status = %s, want RESOLVED", result.Issue.Status)
	}
	if result.Issue.Cost == nil || *result.Issue.Cost != 1500 {
		t.Errorf("cost = %v, want unchanged 1500", result.Issue.Cost)
	}
}

func TestAssignValidatesAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.users.add(domain.User{ID: "a2", Username: "newbie", Role: domain.RoleAssociate, Status: domain.UserStatusPending})

	tests := []struct {
		name     string
		assignee *string
		wantCode string
	}{
		{"missing", nil, apperrors.CodeValidation},
		{"blank", str("   "), apperrors.CodeValidation},
		{"unknown", str("ghost"), apperrors.CodeNotFound},
		{"not an associate", str("mona"), apperrors.CodeValidation},
		{"pending associate", str("newbie"), apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := f.seedIssue(t, domain.IssueStatusForwarded, nil)
			_, err := f.svc.Transition(ctx, issue.ID, "dora", TransitionInput{
				RequestedStatus: "ASSIGNED",
				Assignee:        tt.assignee,
			})
			assertCode(t, err, tt.wantCode)

			stored, _ := f.issues.GetByID(ctx, issue.ID)
			if stored.Status != domain.IssueStatusForwarded || stored.AssigneeID != nil {
				t.Errorf("issue mutated by failed assign: status=%s assignee=%v", stored.Status, stored.AssigneeID)
			}
		})
	}
}

func TestAssignSetsAssigneeAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.seedIssue(t, domain.IssueStatusForwarded, nil)

	result, err := f.svc.Transition(ctx, issue.ID, "dora", TransitionInput{
		RequestedStatus: "ASSIGNED",
		Assignee:        str("bob"),
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if result.Issue.Status != domain.IssueStatusAssigned {
		t.Errorf("status = %s, want ASSIGNED", result.Issue.Status)
	}
	if result.Issue.AssigneeID == nil || *result.Issue.AssigneeID != f.associate.ID {
		t.Errorf("assignee = %v, want %s", result.Issue.AssigneeID, f.associate.ID)
	}
	last := result.Issue.History[len(result.Issue.History)-1]
	if last.Action != domain.ActionAssign || !strings.Contains(last.Note, "bob") {
		t.Errorf("last entry = %s %q, want assign naming bob", last.Action, last.Note)
	}
}

func TestAssociateCannotRequestAssigned(t *testing.T) {
	f := newFixture(t)
	for _, status := range []domain.IssueStatus{domain.IssueStatusReported, domain.IssueStatusForwarded, domain.IssueStatusInProgress} {
		issue := f.seedIssue(t, status, nil)
		_, err := f.svc.Transition(context.Background(), issue.ID, "bob", TransitionInput{
			RequestedStatus: "ASSIGNED",
			Assignee:        str("bob"),
		})
		assertCode(t, err, apperrors.CodeForbidden)
	}
}

func TestForbiddenPairsDoNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		actor  string
		status string
	}{
		{"alice", "RESOLVED"},  // tenants have no transitions
		{"alice", "FORWARDED"},
		{"bob", "FORWARDED"},   // associates cannot forward
		{"dora", "FORWARDED"},  // directors cannot forward
		{"mona", "REPORTED"},   // nobody can move back to reported
	}
	for _, tt := range tests {
		issue := f.seedIssue(t, domain.IssueStatusReported, nil)
		_, err := f.svc.Transition(ctx, issue.ID, tt.actor, TransitionInput{RequestedStatus: tt.status})
		assertCode(t, err, apperrors.CodeForbidden)

		stored, _ := f.issues.GetByID(ctx, issue.ID)
		if stored.Status != domain.IssueStatusReported || len(stored.History) != 1 {
			t.Errorf("%s->%s mutated issue: status=%s history=%d", tt.actor, tt.status, stored.Status, len(stored.History))
		}
	}
}

func TestInactiveActorForbidden(t *testing.T) {
	f := newFixture(t)
	f.users.add(domain.User{ID: "a3", Username: "idle", Role: domain.RoleAssociate, Status: domain.UserStatusPending})
	issue := f.seedIssue(t, domain.IssueStatusAssigned, nil)

	_, err := f.svc.Transition(context.Background(), issue.ID, "idle", TransitionInput{
		RequestedStatus: "IN_PROGRESS",
		Cost:            str("100"),
	})
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestUnknownActorNotFound(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, domain.IssueStatusReported, nil)
	_, err := f.svc.Transition(context.Background(), issue.ID, "ghost", TransitionInput{RequestedStatus: "FORWARDED"})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestUnknownIssueNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Transition(context.Background(), "missing", "mona", TransitionInput{RequestedStatus: "FORWARDED"})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestStatusValidation(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, domain.IssueStatusReported, nil)

	for _, status := range []string{"", "   ", "PAUSED"} {
		_, err := f.svc.Transition(context.Background(), issue.ID, "mona", TransitionInput{RequestedStatus: status})
		assertCode(t, err, apperrors.CodeValidation)
	}
}

func TestCostValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cost *string
	}{
		{"missing", nil},
		{"blank", str("   ")},
		{"not a number", str("lots")},
		{"negative", str("-5")},
		{"nan", str("NaN")},
		{"infinite", str("Inf")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := f.seedIssue(t, domain.IssueStatusAssigned, &f.associate.ID)
			_, err := f.svc.Transition(ctx, issue.ID, "bob", TransitionInput{
				RequestedStatus: "IN_PROGRESS",
				Cost:            tt.cost,
			})
			assertCode(t, err, apperrors.CodeValidation)

			stored, _ := f.issues.GetByID(ctx, issue.ID)
			if stored.Status != domain.IssueStatusAssigned || stored.Cost != nil {
				t.Errorf("issue mutated by invalid cost: status=%s cost=%v", stored.Status, stored.Cost)
			}
		})
	}
}

func TestAcceptZeroCostAllowed(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, domain.IssueStatusAssigned, &f.associate.ID)

	result, err := f.svc.Transition(context.Background(), issue.ID, "bob", TransitionInput{
		RequestedStatus: "IN_PROGRESS",
		Cost:            str("0"),
	})
	if err != nil {
		t.Fatalf("accept with zero cost: %v", err)
	}
	if result.Issue.Cost == nil || *result.Issue.Cost != 0 {
		t.Errorf("cost = %v, want 0", result.Issue.Cost)
	}
}

func TestDebtApplyFailureDoesNotBlockTransition(t *testing.T) {
	f := newFixture(t)
	f.debts.failApply = true
	ctx := context.Background()
	issue := f.seedIssue(t, domain.IssueStatusAssigned, &f.associate.ID)

	result, err := f.svc.Transition(ctx, issue.ID, "bob", TransitionInput{
		RequestedStatus: "IN_PROGRESS",
		Cost:            str("800"),
	})
	if err != nil {
		t.Fatalf("accept with failing ledger: %v", err)
	}
	if result.Issue.Status != domain.IssueStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", result.Issue.Status)
	}
	tenant, _ := f.users.GetByID(ctx, f.tenant.ID)
	if tenant.DebtBalance != 0 {
		t.Errorf("tenant debt = %v, want 0 (apply failed)", tenant.DebtBalance)
	}

	// the accrual row survives for the reconciler
	accrual, err := f.debts.GetByIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("accrual missing: %v", err)
	}
	if accrual.Applied || accrual.Amount != 800 {
		t.Errorf("accrual = %+v, want unapplied amount 800", accrual)
	}

	f.debts.failApply = false
	applied, err := f.debts.Apply(ctx, issue.ID)
	if err != nil || !applied {
		t.Fatalf("retry apply = (%v, %v), want success", applied, err)
	}
	tenant, _ = f.users.GetByID(ctx, f.tenant.ID)
	if tenant.DebtBalance != 800 {
		t.Errorf("tenant debt after retry = %v, want 800", tenant.DebtBalance)
	}
}

func TestGenericStatusSetUsesNote(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, domain.IssueStatusForwarded, nil)

	result, err := f.svc.Transition(context.Background(), issue.ID, "dora", TransitionInput{
		RequestedStatus: "REJECTED",
		Note:            str("duplicate of another report"),
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if result.Issue.Status != domain.IssueStatusRejected {
		t.Errorf("status = %s, want REJECTED", result.Issue.Status)
	}
	last := result.Issue.History[len(result.Issue.History)-1]
	if last.Action != domain.ActionStatus || last.Note != "duplicate of another report" {
		t.Errorf("last entry = %s %q, want status with note", last.Action, last.Note)
	}
}

func TestGenericStatusSetDefaultsNoteToStatus(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, domain.IssueStatusForwarded, nil)

	result, err := f.svc.Transition(context.Background(), issue.ID, "root", TransitionInput{RequestedStatus: "REJECTED"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	last := result.Issue.History[len(result.Issue.History)-1]
	if last.Note != "REJECTED" {
		t.Errorf("note = %q, want REJECTED", last.Note)
	}
}

func TestHistoryAppendOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.seedIssue(t, domain.IssueStatusReported, nil)

	steps := []TransitionInput{
		{RequestedStatus: "FORWARDED"},
		{RequestedStatus: "ASSIGNED", Assignee: str("bob")},
	}
	actors := []string{"mona", "dora"}

	var previous []domain.IssueHistory
	stored, _ := f.issues.GetByID(ctx, issue.ID)
	previous = stored.History

	for i, step := range steps {
		result, err := f.svc.Transition(ctx, issue.ID, actors[i], step)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if len(result.Issue.History) != len(previous)+1 {
			t.Fatalf("step %d: history length = %d, want %d", i, len(result.Issue.History), len(previous)+1)
		}
		for j, entry := range previous {
			if result.Issue.History[j].ID != entry.ID || result.Issue.History[j].Note != entry.Note {
				t.Fatalf("step %d: prior history entry %d changed", i, j)
			}
		}
		previous = result.Issue.History
	}
}

func TestCreateIssueValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateIssue(ctx, "alice", IssueCreateInput{Title: "   ", Description: "broken"})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.CreateIssue(ctx, "bob", IssueCreateInput{Title: "x", Description: "y"})
	assertCode(t, err, apperrors.CodeForbidden)

	issue, err := f.svc.CreateIssue(ctx, "alice", IssueCreateInput{Title: "Broken heater", Description: "No heat in unit"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if issue.Status != domain.IssueStatusReported {
		t.Errorf("status = %s, want REPORTED", issue.Status)
	}
	if issue.Urgency != domain.IssueUrgencyNotUrgent {
		t.Errorf("urgency = %s, want NOT_URGENT default", issue.Urgency)
	}
	if len(issue.History) != 1 || issue.History[0].Action != domain.ActionReport {
		t.Errorf("history = %+v, want single report entry", issue.History)
	}
}

func TestETAFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.seedIssue(t, domain.IssueStatusAssigned, &f.associate.ID)

	// tenant cannot acknowledge before an eta exists
	_, err := f.svc.AcknowledgeETA(ctx, issue.ID, "alice")
	assertCode(t, err, apperrors.CodeConflict)

	eta := time.Now().Add(24 * time.Hour)
	updated, err := f.svc.SetETA(ctx, issue.ID, "bob", eta)
	if err != nil {
		t.Fatalf("SetETA: %v", err)
	}
	if updated.ETA == nil || !updated.ETA.Equal(eta) {
		t.Errorf("eta = %v, want %v", updated.ETA, eta)
	}

	// only the responsible associate may set an eta
	f.users.add(domain.User{ID: "a4", Username: "carl", Role: domain.RoleAssociate, Status: domain.UserStatusActive})
	_, err = f.svc.SetETA(ctx, issue.ID, "carl", eta)
	assertCode(t, err, apperrors.CodeForbidden)

	// only the reporting tenant may acknowledge
	f.users.add(domain.User{ID: "t2", Username: "eve", Role: domain.RoleTenant, Status: domain.UserStatusActive})
	_, err = f.svc.AcknowledgeETA(ctx, issue.ID, "eve")
	assertCode(t, err, apperrors.CodeForbidden)

	acked, err := f.svc.AcknowledgeETA(ctx, issue.ID, "alice")
	if err != nil {
		t.Fatalf("AcknowledgeETA: %v", err)
	}
	if !acked.ETAAcknowledged {
		t.Error("etaAcknowledged = false, want true")
	}
	last := acked.History[len(acked.History)-1]
	if last.Action != domain.ActionETAAck {
		t.Errorf("last entry action = %s, want eta-ack", last.Action)
	}
}

func TestTenantReadSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.seedIssue(t, domain.IssueStatusReported, nil)

	got, err := f.svc.GetForTenant(ctx, "alice", issue.ID)
	if err != nil {
		t.Fatalf("GetForTenant: %v", err)
	}
	if got.ID != issue.ID {
		t.Errorf("issue id = %s, want %s", got.ID, issue.ID)
	}

	f.users.add(domain.User{ID: "t3", Username: "mallory", Role: domain.RoleTenant, Status: domain.UserStatusActive})
	_, err = f.svc.GetForTenant(ctx, "mallory", issue.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	issues, err := f.svc.ListForTenant(ctx, "alice", 10, 0)
	if err != nil {
		t.Fatalf("ListForTenant: %v", err)
	}
	if len(issues) != 1 {
		t.Errorf("listed %d issues, want 1", len(issues))
	}
}
