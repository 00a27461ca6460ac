// Package core holds the domain types and the pure date/aggregation logic.
//
// This file contains the day-granularity Date type and the calendar-month
// range resolver used by the reporting endpoints. Write-time normalization
// and range computation share the same truncation, so a record stored for a
// given day always falls inside the month window that contains that day.
package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// DayLayout is the canonical wire and storage representation of a Date.
const DayLayout = "2006-01-02"

// dateLayouts are the accepted input forms, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	DayLayout,
}

// Date is a calendar date normalized to day granularity in UTC.
type Date struct {
	time.Time
}

// NewDate builds a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date, normalized.
func Today() Date {
	return normalize(time.Now())
}

// ParseDate parses s as a calendar date. Time-of-day components are accepted
// and truncated away. Unparseable input fails with ErrInvalidDate rather than
// producing a zero date.
func ParseDate(s string) (Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return normalize(t), nil
		}
	}
	return Date{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidDate)
}

func normalize(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) String() string {
	return d.Format(DayLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DayLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthRange resolves a calendar-month designator to the inclusive
// [from, to] window spanning that month. The designator is either "YYYY-MM"
// or any parseable date falling within the target month. Invalid input fails
// with ErrInvalidDate; it never degrades to an empty or unbounded range.
func MonthRange(designator string) (from, to Date, err error) {
	var anchor Date
	if t, perr := time.Parse("2006-01", designator); perr == nil {
		anchor = normalize(t)
	} else if anchor, err = ParseDate(designator); err != nil {
		return Date{}, Date{}, err
	}

	from = NewDate(anchor.Year(), anchor.Month(), 1)
	to = Date{Time: from.AddDate(0, 1, -1)}
	return from, to, nil
}
