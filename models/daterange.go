package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by the feed API and the store
const DateLayout = "2006-01-02"

// MaxSpanDays is the largest number of days the feed API accepts between
// start_date and end_date
const MaxSpanDays = 7

// DateRange is an inclusive span of calendar dates
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar date
func ParseDate(value string) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", value, err)
	}
	return date, nil
}

// Truncate drops the time of day, keeping the calendar date
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDateRange validates start <= end and the API span limit
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Truncate(start), End: Truncate(end)}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// MustDateRange is NewDateRange for literals known to be valid
func MustDateRange(start, end string) DateRange {
	s, err := ParseDate(start)
	if err != nil {
		panic(err)
	}
	e, err := ParseDate(end)
	if err != nil {
		panic(err)
	}
	r, err := NewDateRange(s, e)
	if err != nil {
		panic(err)
	}
	return r
}

func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("start date %s is after end date %s", r.StartString(), r.EndString())
	}
	if r.End.Sub(r.Start) > MaxSpanDays*24*time.Hour {
		return fmt.Errorf("date range %s exceeds the %d day limit", r, MaxSpanDays)
	}
	return nil
}

func (r DateRange) StartString() string {
	return r.Start.Format(DateLayout)
}

func (r DateRange) EndString() string {
	return r.End.Format(DateLayout)
}

// Days returns the number of calendar days covered, both ends included
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return r.StartString() + ".." + r.EndString()
}

// Next returns the window of the same length starting the day after r ends
func (r DateRange) Next() DateRange {
	start := r.End.AddDate(0, 0, 1)
	return DateRange{Start: start, End: start.Add(r.End.Sub(r.Start))}
}

// Previous returns the window of the same length ending the day before r starts
func (r DateRange) Previous() DateRange {
	end := r.Start.AddDate(0, 0, -1)
	return DateRange{Start: end.Add(-r.End.Sub(r.Start)), End: end}
}
