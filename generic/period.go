package generic

// =============================================================================
// PERIOD - Inclusive date range used by filters and aggregation windows
// =============================================================================

// Period is the closed range [Start, End]. A zero bound is open.
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if d lies in the period, treating zero bounds as open.
func (p Period) Contains(d Date) bool {
	if !p.Start.IsZero() && d.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && d.After(p.End) {
		return false
	}
	return true
}

// Within returns true if the whole of inner lies inside p.
func (p Period) Within(inner Period) bool {
	return p.Contains(inner.Start) && p.Contains(inner.End)
}

// Validate requires both bounds and Start <= End.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return Errorf(ErrInvalidPeriod, "period requires start and end dates")
	}
	if p.End.Before(p.Start) {
		return Errorf(ErrInvalidPeriod, "period end %s is before start %s", p.End, p.Start)
	}
	return nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// WeekOf returns the seven-day window starting at start.
func WeekOf(start Date) Period {
	return Period{Start: start, End: start.AddDays(6)}
}

// =============================================================================
// GRANULARITY - Aggregation window size
// =============================================================================

type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return g, nil
	case "":
		return GranularityDaily, nil
	default:
		return "", Errorf(ErrInvalidGranularity, "unknown granularity %q", s)
	}
}

// Days is the length of the trailing window for this granularity.
func (g Granularity) Days() int {
	switch g {
	case GranularityWeekly:
		return 7
	case GranularityMonthly:
		return 30
	default:
		return 1
	}
}

// TrailingWindow returns the window of g.Days() days ending on end (inclusive).
func (g Granularity) TrailingWindow(end Date) Period {
	return Period{Start: end.AddDays(-(g.Days() - 1)), End: end}
}
