package importer

import (
	"context"
	"fmt"

	"neofeed/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var windowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "neofeed_import_windows_total",
	Help: "Import windows by outcome",
}, []string{"outcome"})

// Fetcher performs one remote fetch for one range
type Fetcher interface {
	Fetch(ctx context.Context, r models.DateRange) (*models.FeedResponse, error)
}

// Appender persists the raw body of a fetched range
type Appender interface {
	Append(ctx context.Context, r models.DateRange, raw string) (int64, error)
}

// WindowError reports the window that stopped a run
type WindowError struct {
	Index   int
	Range   models.DateRange
	Skipped int
	Err     error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %d (%s) failed, %d remaining windows skipped: %v", e.Index+1, e.Range, e.Skipped, e.Err)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}

// Report summarises a run. Completed windows stay persisted even when the
// run fails.
type Report struct {
	RunID     string
	Completed []models.DateRange
	Elements  int
}

// Batcher imports windows one at a time: a window is fetched and persisted
// before the next one starts.
type Batcher struct {
	fetcher Fetcher
	store   Appender
}

func NewBatcher(fetcher Fetcher, store Appender) *Batcher {
	return &Batcher{fetcher: fetcher, store: store}
}

// Run processes windows in order and stops at the first failure
func (b *Batcher) Run(ctx context.Context, windows []models.DateRange) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	logger := log.WithFields(log.Fields{
		"run":     report.RunID,
		"windows": len(windows),
	})
	logger.Info("Starting import")

	for i, w := range windows {
		wlog := logger.WithFields(log.Fields{
			"window":     i + 1,
			"start_date": w.StartString(),
			"end_date":   w.EndString(),
		})
		wlog.Info("Importing window")

		if err := b.runWindow(ctx, w, &report); err != nil {
			skipped := len(windows) - i - 1
			windowsTotal.WithLabelValues("failed").Inc()
			windowsTotal.WithLabelValues("skipped").Add(float64(skipped))
			wlog.WithFields(log.Fields{
				"skipped": skipped,
				"error":   err,
			}).Error("Window failed, skipping remaining windows")
			return report, &WindowError{Index: i, Range: w, Skipped: skipped, Err: err}
		}
		windowsTotal.WithLabelValues("ok").Inc()
	}

	logger.WithField("elements", report.Elements).Info("Completed import")
	return report, nil
}

func (b *Batcher) runWindow(ctx context.Context, w models.DateRange, report *Report) error {
	resp, err := b.fetcher.Fetch(ctx, w)
	if err != nil {
		return err
	}
	if _, err := b.store.Append(ctx, w, resp.Raw()); err != nil {
		return err
	}
	report.Completed = append(report.Completed, w)
	report.Elements += resp.ElementCount
	return nil
}
