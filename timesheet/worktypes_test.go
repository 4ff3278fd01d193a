package timesheet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/timesheet"
)

// =============================================================================
// WORK TYPES
// =============================================================================

func TestWorkTypes_DefaultSeeded(t *testing.T) {
	f := newFixture(t)

	types, err := f.ledger.WorkTypes(f.ctx, dev)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, timesheet.DefaultWorkType, types[0].Name)
	assert.True(t, types[0].IsActive)
}

func TestWorkTypes_CreateAdminOnly(t *testing.T) {
	// GIVEN: An admin and a developer
	// WHEN: Each tries to add a work type
	// THEN: Only the admin succeeds; names are unique and required

	f := newFixture(t)
	admin := generic.Actor{ID: "u-admin"}
	f.dir.Grant(admin.ID, generic.RoleAdmin)

	_, err := f.ledger.CreateWorkType(f.ctx, dev, timesheet.CreateWorkTypeInput{Name: "testing"})
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	created, err := f.ledger.CreateWorkType(f.ctx, admin, timesheet.CreateWorkTypeInput{Name: " testing ", Description: "QA"})
	require.NoError(t, err)
	assert.Equal(t, "testing", created.Name)
	assert.True(t, created.IsActive)

	_, err = f.ledger.CreateWorkType(f.ctx, admin, timesheet.CreateWorkTypeInput{Name: "testing"})
	assert.ErrorIs(t, err, generic.ErrDuplicateEntry)

	_, err = f.ledger.CreateWorkType(f.ctx, admin, timesheet.CreateWorkTypeInput{Name: "  "})
	assert.ErrorIs(t, err, generic.ErrMissingField)

	types, err := f.ledger.WorkTypes(f.ctx, dev)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "development", types[0].Name)
	assert.Equal(t, "testing", types[1].Name)
	assert.Equal(t, "QA", types[1].Description)
}

func TestWorkTypes_Anonymous_Denied(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.WorkTypes(f.ctx, generic.Actor{})
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)
}
