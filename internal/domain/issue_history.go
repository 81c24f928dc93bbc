package domain

import "time"

// IssueAction identifies what a history entry records.
type IssueAction string

const (
	ActionReport  IssueAction = "report"
	ActionAccept  IssueAction = "accept"
	ActionResolve IssueAction = "resolve"
	ActionForward IssueAction = "forward"
	ActionAssign  IssueAction = "assign"
	ActionStatus  IssueAction = "status"
	ActionETASet  IssueAction = "eta"
	ActionETAAck  IssueAction = "eta-ack"
)

// IssueHistory is an immutable audit trail entry. Rows are append-only:
// every committed transition adds exactly one and none is ever updated.
type IssueHistory struct {
	ID        string
	IssueID   string
	Actor     string
	ActorID   *string
	Action    IssueAction
	Note      string
	CreatedAt time.Time
}
