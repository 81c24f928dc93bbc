// Package workflow holds the pure policy core of the issue lifecycle:
// which role may request which status, and which transition handler a
// permitted request dispatches to. State-dependent preconditions (for
// example "cannot accept twice") live with the handlers in the service
// layer; this package is side-effect free.
package workflow

import "github.com/propertyhub/maintenance-service/internal/domain"

// TransitionKind tags the handler a permitted request dispatches to.
type TransitionKind int

const (
	// KindAccept: associate takes the job and fixes the repair cost.
	KindAccept TransitionKind = iota
	// KindResolve: associate finishes an in-progress job.
	KindResolve
	// KindForward: manager escalates to a director.
	KindForward
	// KindAssign: director/manager/admin hands the issue to an associate.
	KindAssign
	// KindStatusSet: fallback for any other permitted pair.
	KindStatusSet
)

func (k TransitionKind) String() string {
	switch k {
	case KindAccept:
		return "accept"
	case KindResolve:
		return "resolve"
	case KindForward:
		return "forward"
	case KindAssign:
		return "assign"
	default:
		return "status"
	}
}

// rule couples the permission entry with its handler. Keeping both in
// one table makes the dispatch a data lookup: a pair is either absent
// (forbidden) or names exactly one handler, so no rule can shadow
// another. An associate requesting ASSIGNED has no entry at all, which
// is how the source's ordering constraint becomes a structural fact.
var rules = map[domain.Role]map[domain.IssueStatus]TransitionKind{
	domain.RoleAssociate: {
		domain.IssueStatusInProgress: KindAccept,
		domain.IssueStatusResolved:   KindResolve,
		domain.IssueStatusRejected:   KindStatusSet,
	},
	domain.RoleManager: {
		domain.IssueStatusForwarded:  KindForward,
		domain.IssueStatusAssigned:   KindAssign,
		domain.IssueStatusInProgress: KindStatusSet,
		domain.IssueStatusResolved:   KindStatusSet,
		domain.IssueStatusRejected:   KindStatusSet,
	},
	domain.RoleDirector: {
		domain.IssueStatusAssigned:   KindAssign,
		domain.IssueStatusInProgress: KindStatusSet,
		domain.IssueStatusResolved:   KindStatusSet,
		domain.IssueStatusRejected:   KindStatusSet,
	},
	domain.RoleAdmin: {
		domain.IssueStatusForwarded:  KindStatusSet,
		domain.IssueStatusAssigned:   KindAssign,
		domain.IssueStatusInProgress: KindStatusSet,
		domain.IssueStatusResolved:   KindStatusSet,
		domain.IssueStatusRejected:   KindStatusSet,
	},
}

// IsAllowed reports whether role may request the given status. Any pair
// not present in the table is forbidden, including everything for
// tenants.
func IsAllowed(role domain.Role, requested domain.IssueStatus) bool {
	_, ok := rules[role][requested]
	return ok
}

// Route returns the handler kind for a permitted (role, status) pair.
// The boolean is false when the pair is forbidden.
func Route(role domain.Role, requested domain.IssueStatus) (TransitionKind, bool) {
	kind, ok := rules[role][requested]
	return kind, ok
}

// AllowedStatuses returns the statuses the role may request, for
// user-facing error details.
func AllowedStatuses(role domain.Role) []domain.IssueStatus {
	entries := rules[role]
	out := make([]domain.IssueStatus, 0, len(entries))
	for _, status := range domain.KnownStatuses {
		if _, ok := entries[status]; ok {
			out = append(out, status)
		}
	}
	return out
}
