package generic

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day (rates and classifications are day-granular)
// =============================================================================

const DateLayout = "2006-01-02"

type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return DateOf(time.Now()) }

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate parses s and panics on error. Use in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(o Date) bool        { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool         { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool         { return d.Time.Equal(o.Time) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }
func (d Date) IsZero() bool              { return d.Time.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) String() string { return d.Time.Format(DateLayout) }

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
// WINDOW - Validity interval [From, To] with an open end
// =============================================================================

// Window is an inclusive validity interval. A nil To means open-ended.
type Window struct {
	From Date
	To   *Date
}

// Contains reports From <= d and (To is nil or d <= To).
func (w Window) Contains(d Date) bool {
	if d.Before(w.From) {
		return false
	}
	return w.To == nil || d.BeforeOrEqual(*w.To)
}

func (w Window) IsOpen() bool { return w.To == nil }

// Overlaps reports whether two windows share at least one day.
func (w Window) Overlaps(o Window) bool {
	if w.To != nil && w.To.Before(o.From) {
		return false
	}
	if o.To != nil && o.To.Before(w.From) {
		return false
	}
	return true
}

func (w Window) Validate() error {
	if w.From.IsZero() {
		return fmt.Errorf("%w: missing start", ErrInvalidWindow)
	}
	if w.To != nil && w.To.Before(w.From) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidWindow, w.To, w.From)
	}
	return nil
}

func (w Window) String() string {
	if w.To == nil {
		return "[" + w.From.String() + ", open)"
	}
	return "[" + w.From.String() + ", " + w.To.String() + "]"
}
