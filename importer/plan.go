package importer

import (
	"errors"
	"fmt"
	"time"

	"neofeed/models"
)

var (
	ErrNoWindows      = errors.New("window count must be at least 1")
	ErrEndBeforeFrom  = errors.New("end date is before start date")
	ErrTooManyWindows = errors.New("too many windows")
)

// lastDate is the last calendar date a window may reach
var lastDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// MaxWindows returns how many windows fit between start and year 9999
func MaxWindows(start time.Time) int {
	start = models.Truncate(start)
	if start.After(lastDate) {
		return 0
	}
	days := int((lastDate.Unix()-start.Unix())/(24*60*60)) + 1
	return days / (models.MaxSpanDays + 1)
}

// Plan partitions an import into contiguous windows. Each window spans
// models.MaxSpanDays days after its start and the next window starts the day
// after. With an end date the windows cover [start, end] and the last one is
// clipped to end, otherwise exactly windows windows are produced.
func Plan(start time.Time, end *time.Time, windows int) ([]models.DateRange, error) {
	start = models.Truncate(start)

	if end == nil {
		if windows < 1 {
			return nil, ErrNoWindows
		}
		if limit := MaxWindows(start); windows > limit {
			return nil, fmt.Errorf("%w: %d windows from %s, at most %d", ErrTooManyWindows, windows, start.Format(models.DateLayout), limit)
		}
		var plan []models.DateRange
		w := first(start)
		for i := 0; i < windows; i++ {
			plan = append(plan, w)
			w = w.Next()
		}
		return plan, nil
	}

	last := models.Truncate(*end)
	if last.Before(start) {
		return nil, fmt.Errorf("%w: %s < %s", ErrEndBeforeFrom, last.Format(models.DateLayout), start.Format(models.DateLayout))
	}

	var plan []models.DateRange
	for w := first(start); !w.Start.After(last); w = w.Next() {
		if w.End.After(last) {
			w.End = last
		}
		plan = append(plan, w)
	}
	return plan, nil
}

func first(start time.Time) models.DateRange {
	return models.DateRange{Start: start, End: start.AddDate(0, 0, models.MaxSpanDays)}
}
