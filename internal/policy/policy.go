// Package policy is the single table deciding which roles may perform which operations.
package policy

import (
	"github.com/google/uuid"

	apperrors "campuslib/internal/errors"
	"campuslib/internal/model"
)

// Operation names a guarded action.
type Operation string

const (
	OpBookList   Operation = "book:list"
	OpBookGet    Operation = "book:get"
	OpBookCreate Operation = "book:create"
	OpBookUpdate Operation = "book:update"
	OpBookDelete Operation = "book:delete"

	OpIssueRequest     Operation = "issue:request"
	OpIssueListOwn     Operation = "issue:list-own"
	OpIssueListPending Operation = "issue:list-pending"
	OpIssueApprove     Operation = "issue:approve"
	OpIssueReject      Operation = "issue:reject"
	OpIssueReturn      Operation = "issue:return"
	OpIssueRenew       Operation = "issue:renew"

	OpReportOverdue     Operation = "report:overdue"
	OpReportAnalytics   Operation = "report:analytics"
	OpReportIssueEvents Operation = "report:issue-events"

	OpUserList   Operation = "user:list"
	OpUserGet    Operation = "user:get"
	OpUserUpdate Operation = "user:update"
	OpUserDelete Operation = "user:delete"

	OpProfileRead Operation = "profile:read"
)

// Rule describes who may perform an operation.
type Rule struct {
	// Public operations need no identity.
	Public bool
	// AnyRole admits every authenticated caller.
	AnyRole bool
	// Roles admitted regardless of record ownership.
	Roles []model.Role
	// Owner admits the owner of the target record.
	Owner bool
}

var (
	staff   = []model.Role{model.RoleLibrarian, model.RoleAdmin}
	admin   = []model.Role{model.RoleAdmin}
	patrons = []model.Role{model.RoleStudent, model.RoleFaculty}
)

var rules = map[Operation]Rule{
	OpBookList:   {Public: true},
	OpBookGet:    {Public: true},
	OpBookCreate: {Roles: admin},
	OpBookUpdate: {Roles: admin},
	OpBookDelete: {Roles: admin},

	OpIssueRequest:     {Roles: patrons},
	OpIssueListOwn:     {Roles: patrons},
	OpIssueListPending: {Roles: []model.Role{model.RoleLibrarian}},
	OpIssueApprove:     {Roles: []model.Role{model.RoleLibrarian}},
	OpIssueReject:      {Roles: []model.Role{model.RoleLibrarian}},
	OpIssueReturn:      {Roles: staff, Owner: true},
	OpIssueRenew:       {Roles: []model.Role{model.RoleFaculty}},

	OpReportOverdue:     {Roles: staff},
	OpReportAnalytics:   {Roles: admin},
	OpReportIssueEvents: {Roles: staff},

	OpUserList:   {Roles: admin},
	OpUserGet:    {Roles: admin},
	OpUserUpdate: {Roles: admin},
	OpUserDelete: {Roles: admin},

	OpProfileRead: {AnyRole: true},
}

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Role   model.Role
}

// RuleFor returns the rule for op. Unknown operations get the zero Rule, which admits nobody.
func RuleFor(op Operation) Rule {
	return rules[op]
}

// Permits reports whether role may perform op on records it does not own.
func Permits(role model.Role, op Operation) bool {
	rule := rules[op]
	if rule.Public || rule.AnyRole {
		return true
	}
	for _, r := range rule.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize is the entry-point check. Operations open to owners pass here and are
// settled against the record with AuthorizeOwned.
func Authorize(p *Principal, op Operation) error {
	rule := rules[op]
	if rule.Public {
		return nil
	}
	if p == nil {
		return apperrors.ErrNotAuthenticated
	}
	if rule.Owner || Permits(p.Role, op) {
		return nil
	}
	return apperrors.ErrPermissionDenied
}

// AuthorizeOwned checks op against a record owned by ownerID.
func AuthorizeOwned(p *Principal, op Operation, ownerID uuid.UUID) error {
	if p == nil {
		return apperrors.ErrNotAuthenticated
	}
	if Permits(p.Role, op) {
		return nil
	}
	if rules[op].Owner && p.UserID == ownerID {
		return nil
	}
	return apperrors.ErrPermissionDenied
}
