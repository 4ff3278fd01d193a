package timesheet

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/cost-ledger/generic"
)

// =============================================================================
// WORK TYPE CATALOG
// =============================================================================

type CreateWorkTypeInput struct {
	Name        string
	Description string
}

// WorkTypes lists the active catalog entries. Any authenticated actor may
// read it.
func (l *TimeLedger) WorkTypes(ctx context.Context, actor generic.Actor) ([]WorkType, error) {
	if actor.IsZero() {
		return nil, generic.Errorf(generic.ErrPermissionDenied, "no authenticated actor")
	}
	return l.store.ListWorkTypes(ctx, true)
}

// CreateWorkType adds an active catalog entry. Admin only.
func (l *TimeLedger) CreateWorkType(ctx context.Context, actor generic.Actor, in CreateWorkTypeInput) (*WorkType, error) {
	if actor.IsZero() {
		return nil, generic.Errorf(generic.ErrPermissionDenied, "no authenticated actor")
	}
	admin, err := l.authz.HasRole(ctx, actor, generic.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, generic.Errorf(generic.ErrPermissionDenied, "role %s required", generic.RoleAdmin)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, generic.Errorf(generic.ErrMissingField, "name is required")
	}

	wt := WorkType{
		Name:        name,
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   l.Now.Now(),
	}
	err = l.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertWorkType(ctx, wt)
	})
	if err != nil {
		return nil, err
	}

	l.Logger.Info("work type created", zap.String("name", wt.Name), zap.String("by", string(actor.ID)))
	return &wt, nil
}
