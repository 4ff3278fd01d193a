package costing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cost-ledger/costing"
	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/generic/store"
	"github.com/warp/cost-ledger/store/sqlite"
	"github.com/warp/cost-ledger/timesheet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	ann     = generic.Actor{ID: "u-ann"} // 100/h, engineering
	bob     = generic.Actor{ID: "u-bob"} // 150/h, engineering
	cid     = generic.Actor{ID: "u-cid"} // no rate, operations
	finance = generic.Actor{ID: "u-fin"}
	manager = generic.Actor{ID: "u-pm"}

	// No role grants at all
	stranger = generic.Actor{ID: "u-stranger"}

	// Wednesday
	today = time.Date(2025, time.March, 12, 18, 0, 0, 0, time.UTC)
)

type fixture struct {
	ctx        context.Context
	dir        *store.Memory
	ledger     *timesheet.TimeLedger
	engine     *costing.CostEngine
	aggregator *costing.ReportAggregator
}

func rate(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func newFixture(t *testing.T) *fixture {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir := store.NewMemory()
	dir.PutUser(generic.User{ID: ann.ID, Name: "Ann", Department: "engineering", HourlyRate: rate("100")})
	dir.PutUser(generic.User{ID: bob.ID, Name: "Bob", Department: "engineering", HourlyRate: rate("150")})
	dir.PutUser(generic.User{ID: cid.ID, Name: "Cid", Department: "operations"})
	dir.PutUser(generic.User{ID: finance.ID, Name: "Fin", Department: "finance"})
	dir.PutProject(generic.Project{ID: "p-apollo", Name: "Apollo", Members: []generic.UserID{ann.ID, bob.ID, cid.ID}})
	dir.PutProject(generic.Project{ID: "p-zephyr", Name: "Zephyr", Members: []generic.UserID{ann.ID}})
	for _, a := range []generic.Actor{ann, bob, cid} {
		dir.Grant(a.ID, generic.RoleDeveloper)
	}
	dir.Grant(finance.ID, generic.RoleFinance)
	dir.Grant(manager.ID, generic.RoleProjectManager)

	now := func() time.Time { return today }

	ledger := timesheet.NewTimeLedger(db.Timesheets(), dir, dir)
	ledger.Now = now
	engine := costing.NewCostEngine(db.Costs(), dir, dir, dir)
	engine.Now = now
	aggregator := costing.NewReportAggregator(db.Costs(), dir, dir)
	aggregator.Now = now

	return &fixture{ctx: context.Background(), dir: dir, ledger: ledger, engine: engine, aggregator: aggregator}
}

func march(day int) generic.Date {
	return generic.NewDate(2025, time.March, day)
}

// work logs hours for actor starting 09:00 and returns the record.
func (f *fixture) work(t *testing.T, actor generic.Actor, project generic.ProjectID, date generic.Date, hours int, approve bool) *timesheet.TimeRecord {
	t.Helper()
	rec, err := f.ledger.Create(f.ctx, actor, timesheet.CreateRecordInput{
		ProjectID:   project,
		WorkDate:    date,
		StartTime:   generic.NewClock(9, 0),
		EndTime:     generic.NewClock(9+hours, 0),
		WorkContent: "feature work",
	})
	require.NoError(t, err)
	if approve {
		rec, err = f.ledger.Decide(f.ctx, manager, rec.ID, generic.ActionApprove, "")
		require.NoError(t, err)
	}
	return rec
}

func (f *fixture) personal(actor generic.Actor, user generic.UserID, project generic.ProjectID, date generic.Date) (*costing.CostCalculation, error) {
	return f.engine.CalculatePersonalCost(f.ctx, actor, costing.PersonalCostInput{
		UserID:    user,
		ProjectID: project,
		Date:      date,
	})
}

// =============================================================================
// PERSONAL COST
// =============================================================================

func TestPersonalCost_RateTimesHours(t *testing.T) {
	// GIVEN: Ann (100/h) has 8 approved hours on Apollo on March 10
	// WHEN: Finance calculates her cost for that day
	// THEN: 800.00 at a 100.00 rate, hourly method

	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 8, true)

	calc, err := f.personal(finance, ann.ID, "p-apollo", march(10))
	require.NoError(t, err)

	assert.Equal(t, "8.00", calc.WorkHours.StringFixed(2))
	assert.Equal(t, "100.00", calc.HourlyRate.StringFixed(2))
	assert.Equal(t, "800.00", calc.TotalCost.StringFixed(2))
	assert.Equal(t, generic.CostMethodHourly, calc.Method)
	assert.Equal(t, ann.ID, calc.UserID)
}

func TestPersonalCost_SecondCalculation_Conflict(t *testing.T) {
	// GIVEN: Ann's March 10 cost is already calculated
	// WHEN: Calculating it again
	// THEN: Conflict with duplicate_calculation, and one row remains

	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 8, true)

	_, err := f.personal(finance, ann.ID, "p-apollo", march(10))
	require.NoError(t, err)

	_, err = f.personal(finance, ann.ID, "p-apollo", march(10))
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrDuplicateCalculation)
	assert.ErrorIs(t, err, generic.ErrConflict)

	page, err := f.engine.ListCalculations(f.ctx, finance, costing.CalculationFilter{}, generic.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestPersonalCost_RateIsSnapshotted(t *testing.T) {
	// GIVEN: Ann's March 10 cost calculated at 100/h
	// WHEN: Her rate changes to 200/h and March 11 is calculated
	// THEN: March 10 stays 800.00, March 11 uses 200.00

	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 8, true)
	f.work(t, ann, "p-apollo", march(11), 8, true)

	_, err := f.personal(finance, ann.ID, "p-apollo", march(10))
	require.NoError(t, err)

	f.dir.PutUser(generic.User{ID: ann.ID, Name: "Ann", Department: "engineering", HourlyRate: rate("200")})

	later, err := f.personal(finance, ann.ID, "p-apollo", march(11))
	require.NoError(t, err)
	assert.Equal(t, "1600.00", later.TotalCost.StringFixed(2))

	page, err := f.engine.ListCalculations(f.ctx, finance,
		costing.CalculationFilter{Period: generic.Period{Start: march(10), End: march(10)}},
		generic.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "100.00", page.Items[0].HourlyRate.StringFixed(2))
	assert.Equal(t, "800.00", page.Items[0].TotalCost.StringFixed(2))
}

func TestPersonalCost_RequiresApprovedTime(t *testing.T) {
	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 8, false)

	tests := []struct {
		name string
		date generic.Date
	}{
		{"pending record", march(10)},
		{"no record", march(11)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.personal(finance, ann.ID, "p-apollo", tt.date)
			assert.ErrorIs(t, err, generic.ErrNoApprovedTime)
			assert.ErrorIs(t, err, generic.ErrPreconditionFailed)
		})
	}
}

func TestPersonalCost_UserWithoutRate_CostsZero(t *testing.T) {
	f := newFixture(t)
	f.work(t, cid, "p-apollo", march(10), 3, true)

	calc, err := f.personal(finance, cid.ID, "p-apollo", march(10))
	require.NoError(t, err)
	assert.Equal(t, "0.00", calc.TotalCost.StringFixed(2))
	assert.Equal(t, "3.00", calc.WorkHours.StringFixed(2))
}

func TestPersonalCost_Validation(t *testing.T) {
	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 8, true)

	_, err := f.personal(ann, ann.ID, "p-apollo", march(10))
	assert.ErrorIs(t, err, generic.ErrPermissionDenied, "developers cannot calculate cost")

	_, err = f.personal(finance, ann.ID, "p-missing", march(10))
	assert.ErrorIs(t, err, generic.ErrProjectNotFound)

	_, err = f.personal(finance, "u-ghost", "p-apollo", march(10))
	assert.ErrorIs(t, err, generic.ErrUserNotFound)

	_, err = f.personal(finance, ann.ID, "", march(10))
	assert.ErrorIs(t, err, generic.ErrMissingField)

	_, err = f.personal(finance, ann.ID, "p-apollo", generic.Date{})
	assert.ErrorIs(t, err, generic.ErrMissingField)
}

func TestPersonalCost_UserDefaultsToActor(t *testing.T) {
	// GIVEN: The finance user has no time of their own
	// WHEN: Calculating without a user
	// THEN: The actor is priced, so there is no approved time

	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 8, true)

	_, err := f.personal(finance, "", "p-apollo", march(10))
	assert.ErrorIs(t, err, generic.ErrNoApprovedTime)
}

// =============================================================================
// PROJECT COST
// =============================================================================

func TestProjectCost_BlendsRatesFromTotals(t *testing.T) {
	// GIVEN: Ann 4h at 100 and Bob 4h at 150 on Apollo, March 10
	// WHEN: Calculating the daily project cost for March 10
	// THEN: 8.00 hours, 1000.00 cost, 2 members, 125.00 per hour

	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 4, true)
	f.work(t, bob, "p-apollo", march(10), 4, true)

	pc, err := f.engine.CalculateProjectCost(f.ctx, finance, costing.ProjectCostInput{
		ProjectID:   "p-apollo",
		Granularity: generic.GranularityDaily,
		Period:      generic.Period{Start: march(10), End: march(10)},
	})
	require.NoError(t, err)

	assert.Equal(t, "8.00", pc.TotalHours.StringFixed(2))
	assert.Equal(t, "1000.00", pc.TotalCost.StringFixed(2))
	assert.Equal(t, 2, pc.MemberCount)
	assert.Equal(t, "125.00", pc.CostPerHour.StringFixed(2))
}

func TestProjectCost_SamePeriodTwice_Conflict(t *testing.T) {
	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 4, true)

	in := costing.ProjectCostInput{
		ProjectID:   "p-apollo",
		Granularity: generic.GranularityDaily,
		Period:      generic.Period{Start: march(10), End: march(10)},
	}
	_, err := f.engine.CalculateProjectCost(f.ctx, finance, in)
	require.NoError(t, err)

	_, err = f.engine.CalculateProjectCost(f.ctx, finance, in)
	assert.ErrorIs(t, err, generic.ErrDuplicateCalculation)

	// Same window at another granularity is a different key
	in.Granularity = generic.GranularityWeekly
	_, err = f.engine.CalculateProjectCost(f.ctx, finance, in)
	assert.NoError(t, err)
}

func TestProjectCost_UnratedUserAddsHoursOnly(t *testing.T) {
	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 4, true)
	f.work(t, cid, "p-apollo", march(10), 4, true)

	pc, err := f.engine.CalculateProjectCost(f.ctx, finance, costing.ProjectCostInput{
		ProjectID: "p-apollo",
		Period:    generic.Period{Start: march(10), End: march(10)},
	})
	require.NoError(t, err)

	assert.Equal(t, generic.GranularityDaily, pc.Granularity, "granularity defaults to daily")
	assert.Equal(t, "8.00", pc.TotalHours.StringFixed(2))
	assert.Equal(t, "400.00", pc.TotalCost.StringFixed(2))
	assert.Equal(t, 2, pc.MemberCount)
	assert.Equal(t, "50.00", pc.CostPerHour.StringFixed(2))
}

func TestProjectCost_DefaultTrailingWindow(t *testing.T) {
	// GIVEN: Today is March 12; approved time on March 5, 6 and 12
	// WHEN: Calculating a weekly cost without dates
	// THEN: The window is [March 6, March 12], so March 5 is excluded

	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(5), 8, true)
	f.work(t, ann, "p-apollo", march(6), 2, true)
	f.work(t, bob, "p-apollo", march(12), 2, true)

	pc, err := f.engine.CalculateProjectCost(f.ctx, finance, costing.ProjectCostInput{
		ProjectID:   "p-apollo",
		Granularity: generic.GranularityWeekly,
	})
	require.NoError(t, err)

	assert.True(t, pc.Period.Start.Equal(march(6)))
	assert.True(t, pc.Period.End.Equal(march(12)))
	assert.Equal(t, "4.00", pc.TotalHours.StringFixed(2))
	assert.Equal(t, "500.00", pc.TotalCost.StringFixed(2))
}

func TestProjectCost_Errors(t *testing.T) {
	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 4, false)

	window := generic.Period{Start: march(10), End: march(10)}

	_, err := f.engine.CalculateProjectCost(f.ctx, finance, costing.ProjectCostInput{ProjectID: "p-apollo", Period: window})
	assert.ErrorIs(t, err, generic.ErrNoData, "pending time does not count")

	_, err = f.engine.CalculateProjectCost(f.ctx, finance, costing.ProjectCostInput{ProjectID: "p-missing", Period: window})
	assert.ErrorIs(t, err, generic.ErrProjectNotFound)

	_, err = f.engine.CalculateProjectCost(f.ctx, finance, costing.ProjectCostInput{ProjectID: "p-apollo", Granularity: "hourly"})
	assert.ErrorIs(t, err, generic.ErrInvalidGranularity)

	_, err = f.engine.CalculateProjectCost(f.ctx, finance, costing.ProjectCostInput{
		ProjectID: "p-apollo",
		Period:    generic.Period{Start: march(11), End: march(10)},
	})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	_, err = f.engine.CalculateProjectCost(f.ctx, manager, costing.ProjectCostInput{ProjectID: "p-apollo", Period: window})
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)
}

// =============================================================================
// STATISTICS
// =============================================================================

func TestCostStatistics_Totals(t *testing.T) {
	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 4, true)
	f.work(t, bob, "p-apollo", march(10), 4, true)
	f.work(t, ann, "p-zephyr", march(11), 2, true)

	for _, c := range []struct {
		user    generic.UserID
		project generic.ProjectID
		date    generic.Date
	}{
		{ann.ID, "p-apollo", march(10)},
		{bob.ID, "p-apollo", march(10)},
		{ann.ID, "p-zephyr", march(11)},
	} {
		_, err := f.personal(finance, c.user, c.project, c.date)
		require.NoError(t, err)
	}
	_, err := f.engine.CalculateProjectCost(f.ctx, finance, costing.ProjectCostInput{
		ProjectID: "p-apollo",
		Period:    generic.Period{Start: march(10), End: march(10)},
	})
	require.NoError(t, err)

	stats, err := f.engine.Statistics(f.ctx, finance, costing.StatisticsFilter{})
	require.NoError(t, err)

	// 400 + 600 + 200 over 10h
	assert.Equal(t, "1200.00", stats.Personal.TotalCost.StringFixed(2))
	assert.Equal(t, "10.00", stats.Personal.TotalHours.StringFixed(2))
	assert.Equal(t, "120.00", stats.Personal.AverageCostPerHour.StringFixed(2))
	assert.Equal(t, "1000.00", stats.Project.TotalCost.StringFixed(2))
	assert.Equal(t, "125.00", stats.Project.AverageCostPerHour.StringFixed(2))

	require.Len(t, stats.ByUser, 2)
	assert.Equal(t, ann.ID, stats.ByUser[0].UserID)
	assert.Equal(t, "600.00", stats.ByUser[0].TotalCost.StringFixed(2))

	annOnly, err := f.engine.Statistics(f.ctx, finance, costing.StatisticsFilter{UserID: ann.ID, ProjectID: "p-zephyr"})
	require.NoError(t, err)
	assert.Equal(t, "200.00", annOnly.Personal.TotalCost.StringFixed(2))
	assert.True(t, annOnly.Project.TotalCost.IsZero())
}

func TestCostStatistics_Empty(t *testing.T) {
	f := newFixture(t)

	stats, err := f.engine.Statistics(f.ctx, finance, costing.StatisticsFilter{})
	require.NoError(t, err)
	assert.True(t, stats.Personal.TotalCost.IsZero())
	assert.True(t, stats.Personal.AverageCostPerHour.IsZero(), "no division by zero")
	assert.Empty(t, stats.ByUser)
}

// =============================================================================
// READ PERMISSIONS
// =============================================================================

func TestCostReads_RequireCostRead(t *testing.T) {
	// GIVEN: A priced day and an actor with no role
	// WHEN: The actor lists calculations, project costs or statistics
	// THEN: Every read is denied; finance can still read

	f := newFixture(t)
	f.work(t, ann, "p-apollo", march(10), 8, true)
	_, err := f.personal(finance, ann.ID, "p-apollo", march(10))
	require.NoError(t, err)

	_, err = f.engine.ListCalculations(f.ctx, stranger, costing.CalculationFilter{}, generic.PageRequest{})
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = f.engine.ListProjectCosts(f.ctx, stranger, costing.ProjectCostFilter{}, generic.PageRequest{})
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	_, err = f.engine.Statistics(f.ctx, stranger, costing.StatisticsFilter{})
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	_, err = f.engine.Statistics(f.ctx, generic.Actor{}, costing.StatisticsFilter{})
	assert.ErrorIs(t, err, generic.ErrPermissionDenied, "anonymous")

	page, err := f.engine.ListCalculations(f.ctx, finance, costing.CalculationFilter{}, generic.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}
