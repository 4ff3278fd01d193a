package timesheet_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/generic/store"
	"github.com/warp/cost-ledger/store/sqlite"
	"github.com/warp/cost-ledger/timesheet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	dev     = generic.Actor{ID: "u-dev"}
	dev2    = generic.Actor{ID: "u-dev2"}
	manager = generic.Actor{ID: "u-pm"}
	nobody  = generic.Actor{ID: "u-nobody"} // no role

	// Wednesday
	today = time.Date(2025, time.March, 12, 18, 0, 0, 0, time.UTC)
)

type fixture struct {
	ctx     context.Context
	dir     *store.Memory
	ledger  *timesheet.TimeLedger
	reports *timesheet.ReportLedger
}

func newFixture(t *testing.T) *fixture {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir := store.NewMemory()
	dir.PutProject(generic.Project{ID: "p-apollo", Name: "Apollo", Members: []generic.UserID{dev.ID, dev2.ID}})
	dir.PutProject(generic.Project{ID: "p-zephyr", Name: "Zephyr", Members: []generic.UserID{dev.ID}})
	dir.PutProject(generic.Project{ID: "p-closed", Name: "Closed"})
	dir.Grant(dev.ID, generic.RoleDeveloper)
	dir.Grant(dev2.ID, generic.RoleDeveloper)
	dir.Grant(manager.ID, generic.RoleProjectManager)

	now := func() time.Time { return today }

	ledger := timesheet.NewTimeLedger(db.Timesheets(), dir, dir)
	ledger.Now = now
	reports := timesheet.NewReportLedger(db.Timesheets(), dir)
	reports.Now = now

	return &fixture{ctx: context.Background(), dir: dir, ledger: ledger, reports: reports}
}

func march(day int) generic.Date {
	return generic.NewDate(2025, time.March, day)
}

func clock(h, m int) generic.Clock {
	return generic.NewClock(h, m)
}

func entry(project generic.ProjectID, date generic.Date, start, end generic.Clock) timesheet.CreateRecordInput {
	return timesheet.CreateRecordInput{
		ProjectID:   project,
		WorkDate:    date,
		StartTime:   start,
		EndTime:     end,
		WorkContent: "API work",
	}
}

// logApproved creates a record for actor and has the manager approve it.
func (f *fixture) logApproved(t *testing.T, actor generic.Actor, in timesheet.CreateRecordInput) *timesheet.TimeRecord {
	t.Helper()
	rec, err := f.ledger.Create(f.ctx, actor, in)
	require.NoError(t, err)
	rec, err = f.ledger.Decide(f.ctx, manager, rec.ID, generic.ActionApprove, "")
	require.NoError(t, err)
	return rec
}

// =============================================================================
// CREATE
// =============================================================================

func TestTimeLedger_Create_ComputesHours(t *testing.T) {
	// GIVEN: A developer on project Apollo
	// WHEN: Logging 09:00-17:30
	// THEN: Hours are 8.50, the record is pending and work_type defaults

	f := newFixture(t)

	rec, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(17, 30)))
	require.NoError(t, err)

	assert.Equal(t, "8.50", rec.Hours.StringFixed(2))
	assert.Equal(t, generic.StatusPending, rec.Status)
	assert.Equal(t, timesheet.DefaultWorkType, rec.WorkType)
	assert.Equal(t, dev.ID, rec.UserID)

	stored, err := f.ledger.Get(f.ctx, dev, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "8.50", stored.Hours.StringFixed(2))
	assert.True(t, stored.WorkDate.Equal(march(10)))
	assert.Equal(t, "09:00", stored.StartTime.String())
	assert.Equal(t, "17:30", stored.EndTime.String())
}

func TestTimeLedger_Create_RoundsToTwoDecimals(t *testing.T) {
	// GIVEN: A 20 minute entry
	// WHEN: Creating it
	// THEN: Hours are 20/60 rounded to 0.33

	f := newFixture(t)

	rec, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(9, 20)))
	require.NoError(t, err)
	assert.Equal(t, "0.33", rec.Hours.StringFixed(2))
}

func TestTimeLedger_Create_DuplicateDay_Rejected(t *testing.T) {
	// GIVEN: A record for (dev, Apollo, March 10)
	// WHEN: Logging the same user, project and day again
	// THEN: Conflict with duplicate_entry

	f := newFixture(t)

	_, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))
	require.NoError(t, err)

	_, err = f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(13, 0), clock(17, 0)))
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrDuplicateEntry)
	assert.ErrorIs(t, err, generic.ErrConflict)
}

func TestTimeLedger_Create_SameDayOtherProject_Allowed(t *testing.T) {
	// GIVEN: A record for (dev, Apollo, March 10)
	// WHEN: Logging March 10 on Zephyr
	// THEN: Allowed, uniqueness is per project

	f := newFixture(t)

	_, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))
	require.NoError(t, err)
	_, err = f.ledger.Create(f.ctx, dev, entry("p-zephyr", march(10), clock(13, 0), clock(17, 0)))
	assert.NoError(t, err)
}

func TestTimeLedger_Create_Concurrent_ExactlyOneWins(t *testing.T) {
	// GIVEN: Many concurrent creates for the same (user, project, day)
	// WHEN: They race
	// THEN: Exactly one succeeds and the rest get duplicate_entry

	f := newFixture(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.Create(f.ctx, dev, entry("p-apollo", march(11), clock(9, 0), clock(10, 0)))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, generic.ErrDuplicateEntry)
	}
	assert.Equal(t, 1, wins)

	page, err := f.ledger.List(f.ctx, dev, timesheet.RecordFilter{UserID: dev.ID}, generic.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestTimeLedger_Create_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		actor  generic.Actor
		input  timesheet.CreateRecordInput
		reason *generic.Reason
	}{
		{
			name:   "end before start",
			actor:  dev,
			input:  entry("p-apollo", march(10), clock(17, 0), clock(9, 0)),
			reason: generic.ErrInvalidRange,
		},
		{
			name:   "zero length",
			actor:  dev,
			input:  entry("p-apollo", march(10), clock(9, 0), clock(9, 0)),
			reason: generic.ErrInvalidRange,
		},
		{
			name:  "missing content",
			actor: dev,
			input: timesheet.CreateRecordInput{
				ProjectID: "p-apollo", WorkDate: march(10), StartTime: clock(9, 0), EndTime: clock(10, 0),
			},
			reason: generic.ErrMissingField,
		},
		{
			name:   "unknown project",
			actor:  dev,
			input:  entry("p-missing", march(10), clock(9, 0), clock(10, 0)),
			reason: generic.ErrProjectNotFound,
		},
		{
			name:   "not a member",
			actor:  dev,
			input:  entry("p-closed", march(10), clock(9, 0), clock(10, 0)),
			reason: generic.ErrNotAMember,
		},
		{
			name:   "role without create permission",
			actor:  manager,
			input:  entry("p-apollo", march(10), clock(9, 0), clock(10, 0)),
			reason: generic.ErrPermissionDenied,
		},
		{
			name:   "anonymous",
			actor:  generic.Actor{},
			input:  entry("p-apollo", march(10), clock(9, 0), clock(10, 0)),
			reason: generic.ErrPermissionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Create(f.ctx, tt.actor, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.reason)
		})
	}
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

func TestTimeLedger_Update_RecomputesHours(t *testing.T) {
	// GIVEN: A pending 09:00-12:00 record
	// WHEN: The owner moves the end to 13:15
	// THEN: Hours become 4.25

	f := newFixture(t)

	rec, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))
	require.NoError(t, err)

	end := clock(13, 15)
	updated, err := f.ledger.Update(f.ctx, dev, rec.ID, timesheet.UpdateRecordInput{EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, "4.25", updated.Hours.StringFixed(2))

	stored, err := f.ledger.Get(f.ctx, dev, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "4.25", stored.Hours.StringFixed(2))
}

func TestTimeLedger_Update_InvalidRange_Rejected(t *testing.T) {
	f := newFixture(t)

	rec, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))
	require.NoError(t, err)

	start := clock(14, 0)
	_, err = f.ledger.Update(f.ctx, dev, rec.ID, timesheet.UpdateRecordInput{StartTime: &start})
	assert.ErrorIs(t, err, generic.ErrInvalidRange)
}

func TestTimeLedger_Update_NotOwner_Forbidden(t *testing.T) {
	f := newFixture(t)

	rec, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))
	require.NoError(t, err)

	content := "hijacked"
	_, err = f.ledger.Update(f.ctx, dev2, rec.ID, timesheet.UpdateRecordInput{WorkContent: &content})
	assert.ErrorIs(t, err, generic.ErrNotOwner)
	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestTimeLedger_Update_EmptyContent_Rejected(t *testing.T) {
	// GIVEN: A pending record with a custom work type
	// WHEN: The owner blanks the content, then blanks the work type
	// THEN: Blank content is rejected; a blank work type falls back to the default

	f := newFixture(t)

	in := entry("p-apollo", march(10), clock(9, 0), clock(12, 0))
	in.WorkType = "testing"
	rec, err := f.ledger.Create(f.ctx, dev, in)
	require.NoError(t, err)

	blank := "  "
	_, err = f.ledger.Update(f.ctx, dev, rec.ID, timesheet.UpdateRecordInput{WorkContent: &blank})
	assert.ErrorIs(t, err, generic.ErrMissingField)
	assert.ErrorIs(t, err, generic.ErrValidation)

	empty := ""
	updated, err := f.ledger.Update(f.ctx, dev, rec.ID, timesheet.UpdateRecordInput{WorkType: &empty})
	require.NoError(t, err)
	assert.Equal(t, timesheet.DefaultWorkType, updated.WorkType)

	stored, err := f.ledger.Get(f.ctx, dev, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "API work", stored.WorkContent)
	assert.Equal(t, timesheet.DefaultWorkType, stored.WorkType)
}

func TestTimeLedger_Permissions(t *testing.T) {
	// GIVEN: A pending record owned by a developer
	// WHEN: A manager edits or deletes it, or a role-less user reads
	// THEN: permission_denied, checked before ownership

	f := newFixture(t)

	rec, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))
	require.NoError(t, err)

	content := "managed"
	_, err = f.ledger.Update(f.ctx, manager, rec.ID, timesheet.UpdateRecordInput{WorkContent: &content})
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	err = f.ledger.Delete(f.ctx, manager, rec.ID)
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	_, err = f.ledger.Get(f.ctx, nobody, rec.ID)
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	_, err = f.ledger.List(f.ctx, nobody, timesheet.RecordFilter{}, generic.PageRequest{})
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	_, err = f.ledger.Statistics(f.ctx, nobody, timesheet.RecordFilter{})
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	page, err := f.ledger.List(f.ctx, manager, timesheet.RecordFilter{}, generic.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "managers read time records")
}

func TestTimeLedger_Update_AfterApproval_Immutable(t *testing.T) {
	// GIVEN: An approved record
	// WHEN: The owner edits or deletes it
	// THEN: Conflict with immutable, and the record is unchanged

	f := newFixture(t)
	rec := f.logApproved(t, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))

	content := "rewritten"
	_, err := f.ledger.Update(f.ctx, dev, rec.ID, timesheet.UpdateRecordInput{WorkContent: &content})
	assert.ErrorIs(t, err, generic.ErrImmutable)

	err = f.ledger.Delete(f.ctx, dev, rec.ID)
	assert.ErrorIs(t, err, generic.ErrImmutable)

	stored, err := f.ledger.Get(f.ctx, dev, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "API work", stored.WorkContent)
}

func TestTimeLedger_Delete_Pending(t *testing.T) {
	f := newFixture(t)

	rec, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))
	require.NoError(t, err)

	require.NoError(t, f.ledger.Delete(f.ctx, dev, rec.ID))

	_, err = f.ledger.Get(f.ctx, dev, rec.ID)
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	// The slot is free again
	_, err = f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))
	assert.NoError(t, err)
}

// =============================================================================
// DECIDE
// =============================================================================

func TestTimeLedger_Decide_OneShot(t *testing.T) {
	// GIVEN: A record approved by the manager
	// WHEN: Deciding again (either way)
	// THEN: Conflict with already_decided, status stays approved

	f := newFixture(t)
	rec := f.logApproved(t, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))

	assert.Equal(t, generic.StatusApproved, rec.Status)
	require.NotNil(t, rec.ApproverID)
	assert.Equal(t, manager.ID, *rec.ApproverID)
	require.NotNil(t, rec.ApprovedAt)

	_, err := f.ledger.Decide(f.ctx, manager, rec.ID, generic.ActionReject, "changed my mind")
	assert.ErrorIs(t, err, generic.ErrAlreadyDecided)

	stored, err := f.ledger.Get(f.ctx, dev, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, stored.Status)
	require.NotNil(t, stored.ApproverID)
	assert.Equal(t, manager.ID, *stored.ApproverID)
}

func TestTimeLedger_Decide_Reject_KeepsComment(t *testing.T) {
	f := newFixture(t)

	rec, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))
	require.NoError(t, err)

	rejected, err := f.ledger.Decide(f.ctx, manager, rec.ID, generic.ActionReject, "wrong project")
	require.NoError(t, err)
	assert.Equal(t, generic.StatusRejected, rejected.Status)

	stored, err := f.ledger.Get(f.ctx, dev, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "wrong project", stored.Comment)
}

func TestTimeLedger_Decide_Rules(t *testing.T) {
	f := newFixture(t)

	rec, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(10), clock(9, 0), clock(12, 0)))
	require.NoError(t, err)

	_, err = f.ledger.Decide(f.ctx, dev2, rec.ID, generic.ActionApprove, "")
	assert.ErrorIs(t, err, generic.ErrPermissionDenied, "developers cannot approve")

	_, err = f.ledger.Decide(f.ctx, manager, rec.ID, generic.Action("maybe"), "")
	assert.ErrorIs(t, err, generic.ErrInvalidAction)

	_, err = f.ledger.Decide(f.ctx, manager, "tr-missing", generic.ActionApprove, "")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
}

// =============================================================================
// READS
// =============================================================================

func TestTimeLedger_List_FiltersAndPages(t *testing.T) {
	f := newFixture(t)

	for day := 3; day <= 7; day++ {
		_, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(day), clock(9, 0), clock(10, 0)))
		require.NoError(t, err)
	}
	_, err := f.ledger.Create(f.ctx, dev2, entry("p-apollo", march(5), clock(9, 0), clock(10, 0)))
	require.NoError(t, err)

	page, err := f.ledger.List(f.ctx, dev,
		timesheet.RecordFilter{UserID: dev.ID, Period: generic.Period{Start: march(4), End: march(6)}},
		generic.PageRequest{Page: 1, PerPage: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].WorkDate.Equal(march(6)), "newest first")
	assert.True(t, page.Items[1].WorkDate.Equal(march(5)))

	page, err = f.ledger.List(f.ctx, dev, timesheet.RecordFilter{UserID: dev.ID}, generic.PageRequest{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 5, page.Total)
}

func TestTimeLedger_Statistics_ApprovedOnly(t *testing.T) {
	// GIVEN: Two approved records on two projects and one pending record
	// WHEN: Computing statistics
	// THEN: Only approved hours count, grouped per project

	f := newFixture(t)
	f.logApproved(t, dev, entry("p-apollo", march(10), clock(9, 0), clock(17, 0)))
	f.logApproved(t, dev, entry("p-zephyr", march(10), clock(17, 0), clock(19, 30)))
	_, err := f.ledger.Create(f.ctx, dev, entry("p-apollo", march(11), clock(9, 0), clock(17, 0)))
	require.NoError(t, err)

	stats, err := f.ledger.Statistics(f.ctx, dev, timesheet.RecordFilter{UserID: dev.ID})
	require.NoError(t, err)

	assert.Equal(t, "10.50", stats.TotalHours.StringFixed(2))
	assert.Equal(t, 1, stats.TotalDays)
	require.Len(t, stats.Projects, 2)
	assert.Equal(t, generic.ProjectID("p-apollo"), stats.Projects[0].ProjectID)
	assert.Equal(t, "8.00", stats.Projects[0].Hours.StringFixed(2))
	assert.Equal(t, "2.50", stats.Projects[1].Hours.StringFixed(2))
}
