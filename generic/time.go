package generic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - A calendar day (the ledger's key granularity)
// =============================================================================

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Date is a calendar day in UTC. The zero value means "no date".
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, Errorf(ErrInvalidDate, "invalid date %q (use YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

// ParseOptionalDate parses a filter bound. Empty or malformed input yields
// the zero Date, which filters treat as "no bound".
func ParseOptionalDate(s string) Date {
	if strings.TrimSpace(s) == "" {
		return Date{}
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}
	}
	return d
}

func (d Date) Time() time.Time  { return d.t }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// StartOfWeek returns the Monday of d's week.
func (d Date) StartOfWeek() Date {
	offset := (int(d.t.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// CLOCK - A wall-clock time of day with minute precision
// =============================================================================

// Clock is minutes since midnight. Valid values are 0..1439.
type Clock struct {
	minutes int
	valid   bool
}

func NewClock(hour, minute int) Clock {
	return Clock{minutes: hour*60 + minute, valid: true}
}

// ParseClock parses HH:MM.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return Clock{}, Errorf(ErrInvalidClock, "invalid time %q (use HH:MM)", s)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

func (c Clock) Minutes() int   { return c.minutes }
func (c Clock) IsZero() bool   { return !c.valid }
func (c Clock) Before(o Clock) bool { return c.minutes < o.minutes }

func (c Clock) String() string {
	if !c.valid {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", c.minutes/60, c.minutes%60)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// =============================================================================
// CLOCK SOURCE
// =============================================================================

// NowFunc returns the current instant. Engines take one so tests can pin "today".
type NowFunc func() time.Time

func (f NowFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

func (f NowFunc) Today() Date { return DateOf(f.Now()) }
