package generic

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLABORATORS - Users, projects and authorization live outside the ledger
// =============================================================================

type CostMethod string

const (
	CostMethodHourly  CostMethod = "hourly"
	CostMethodMonthly CostMethod = "monthly"
)

// User is the slice of a directory user the ledger needs.
type User struct {
	ID            UserID
	Name          string
	Department    string
	HourlyRate    decimal.NullDecimal
	MonthlySalary decimal.NullDecimal
	CostMethod    CostMethod
}

// Rate returns the hourly rate, or zero when unset.
func (u User) Rate() decimal.Decimal {
	if !u.HourlyRate.Valid {
		return decimal.Zero
	}
	return u.HourlyRate.Decimal
}

// Method returns the cost method, defaulting to hourly.
func (u User) Method() CostMethod {
	if u.CostMethod == "" {
		return CostMethodHourly
	}
	return u.CostMethod
}

type UserFilter struct {
	Department string
}

type UserDirectory interface {
	// GetUser returns ErrUserNotFound when absent.
	GetUser(ctx context.Context, id UserID) (User, error)
	FindUsers(ctx context.Context, filter UserFilter) ([]User, error)
}

type Project struct {
	ID      ProjectID
	Name    string
	Budget  decimal.NullDecimal
	Members []UserID // active members only
}

type ProjectDirectory interface {
	// GetProject returns ErrProjectNotFound when absent.
	GetProject(ctx context.Context, id ProjectID) (Project, error)
	IsMember(ctx context.Context, projectID ProjectID, userID UserID) (bool, error)
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

type Permission string

const (
	PermTimeRecordCreate  Permission = "time_record_create"
	PermTimeRecordRead    Permission = "time_record_read"
	PermTimeRecordUpdate  Permission = "time_record_update"
	PermTimeRecordDelete  Permission = "time_record_delete"
	PermTimeRecordApprove Permission = "time_record_approve"
	PermReportCreate      Permission = "report_create"
	PermReportRead        Permission = "report_read"
	PermReportUpdate      Permission = "report_update"
	PermReportDelete      Permission = "report_delete"
	PermReportApprove     Permission = "report_approve"
	PermCostCalculate     Permission = "cost_calculate"
	PermCostRead          Permission = "cost_read"
	PermReportGenerate    Permission = "report_generate"
)

const (
	RoleAdmin          = "admin"
	RoleProjectManager = "project_manager"
	RoleDeveloper      = "developer"
	RoleFinance        = "finance"
)

// DefaultRoles are the stock role → permission grants.
var DefaultRoles = map[string][]Permission{
	RoleAdmin: {
		PermTimeRecordCreate, PermTimeRecordRead, PermTimeRecordUpdate, PermTimeRecordDelete, PermTimeRecordApprove,
		PermReportCreate, PermReportRead, PermReportUpdate, PermReportDelete, PermReportApprove,
		PermCostCalculate, PermCostRead, PermReportGenerate,
	},
	RoleProjectManager: {
		PermTimeRecordRead, PermTimeRecordApprove,
		PermReportRead, PermReportApprove,
		PermCostRead, PermReportGenerate,
	},
	RoleDeveloper: {
		PermTimeRecordCreate, PermTimeRecordRead, PermTimeRecordUpdate, PermTimeRecordDelete,
		PermReportCreate, PermReportRead, PermReportUpdate, PermReportDelete,
		PermCostRead,
	},
	RoleFinance: {
		PermCostCalculate, PermCostRead, PermReportGenerate,
	},
}

type Authorizer interface {
	Check(ctx context.Context, actor Actor, perm Permission) (bool, error)
	HasRole(ctx context.Context, actor Actor, role string) (bool, error)
}

// Require returns ErrPermissionDenied unless actor holds perm.
func Require(ctx context.Context, authz Authorizer, actor Actor, perm Permission) error {
	if actor.IsZero() {
		return Errorf(ErrPermissionDenied, "no authenticated actor")
	}
	ok, err := authz.Check(ctx, actor, perm)
	if err != nil {
		return err
	}
	if !ok {
		return Errorf(ErrPermissionDenied, "permission %s required", perm)
	}
	return nil
}
