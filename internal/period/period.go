// Package period maps calendar dates to budget period labels.
//
// A budget period is identified by a (month, year) label. When the pay day of
// the month is 1 the label is simply the calendar month. With a later pay day
// the period labelled M starts on the pay day of the month preceding M and
// ends the day before the pay day of M, so money received on the 25th of
// March is budgeted in the "April" period.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPayDay is used whenever a configured pay day is missing or invalid.
	DefaultPayDay = 1
	// MaxPayDay is the largest pay day a user can configure.
	MaxPayDay = 31
)

// Label identifies a budget period. Month is 1-12.
type Label struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// NewLabel returns the label for the given month and year.
func NewLabel(month time.Month, year int) Label {
	return Label{Month: int(month), Year: year}
}

// Valid reports whether the label has a month in 1-12 and a positive year.
func (l Label) Valid() bool {
	return l.Month >= 1 && l.Month <= 12 && l.Year > 0
}

// Compare orders labels by (year, month). It returns -1, 0 or 1.
func (l Label) Compare(other Label) int {
	switch {
	case l.Year < other.Year:
		return -1
	case l.Year > other.Year:
		return 1
	case l.Month < other.Month:
		return -1
	case l.Month > other.Month:
		return 1
	}
	return 0
}

// Before reports whether l sorts strictly before other.
func (l Label) Before(other Label) bool {
	return l.Compare(other) < 0
}

// Next returns the label of the following period.
func (l Label) Next() Label {
	if l.Month == 12 {
		return Label{Month: 1, Year: l.Year + 1}
	}
	return Label{Month: l.Month + 1, Year: l.Year}
}

// Prev returns the label of the preceding period.
func (l Label) Prev() Label {
	if l.Month == 1 {
		return Label{Month: 12, Year: l.Year - 1}
	}
	return Label{Month: l.Month - 1, Year: l.Year}
}

func (l Label) String() string {
	return fmt.Sprintf("%04d-%02d", l.Year, l.Month)
}

// ClampPayDay forces a pay day into 1-31. Anything below 1 falls back to the
// default, anything above 31 is treated as 31.
func ClampPayDay(day int) int {
	if day < 1 {
		return DefaultPayDay
	}
	if day > MaxPayDay {
		return MaxPayDay
	}
	return day
}

// ParsePayDay parses a pay day coming from configuration or user input.
// Non-numeric input yields DefaultPayDay.
func ParsePayDay(raw string) int {
	day, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultPayDay
	}
	return ClampPayDay(day)
}

// Resolve returns the label of the period containing date.
func Resolve(date time.Time, payDay int) Label {
	payDay = ClampPayDay(payDay)
	year, month, day := date.Date()
	label := NewLabel(month, year)
	if payDay == 1 {
		return label
	}
	if day >= payDayIn(year, month, payDay) {
		return label.Next()
	}
	return label
}

// Window is the inclusive range of calendar days covered by a period.
// Start and End are midnight UTC.
type Window struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
	Days  int       `json:"days"`
}

// WindowFor returns the days covered by the period labelled label.
func WindowFor(label Label, payDay int) Window {
	payDay = ClampPayDay(payDay)
	month := time.Month(label.Month)
	if payDay == 1 {
		start := day(label.Year, month, 1)
		return newWindow(start, start.AddDate(0, 1, -1))
	}

	prev := label.Prev()
	prevMonth := time.Month(prev.Month)
	start := day(prev.Year, prevMonth, payDayIn(prev.Year, prevMonth, payDay))
	next := day(label.Year, month, payDayIn(label.Year, month, payDay))
	return newWindow(start, next.AddDate(0, 0, -1))
}

func newWindow(start, end time.Time) Window {
	return Window{Start: start, End: end, Days: int(end.Sub(start).Hours()/24) + 1}
}

// Contains reports whether the calendar day of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := day(t.Year(), t.Month(), t.Day())
	return !d.Before(w.Start) && !d.After(w.End)
}

// payDayIn clamps payDay to the number of days in the given month.
func payDayIn(year int, month time.Month, payDay int) int {
	if last := daysIn(year, month); payDay > last {
		return last
	}
	return payDay
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}
