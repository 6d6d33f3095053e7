package bridge

import (
	"context"
	"errors"
	"sync/atomic"

	"neofeed/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	pendingGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "neofeed_bridge_pending",
		Help: "Items waiting in a bridge queue",
	}, []string{"queue"})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neofeed_bridge_dropped_total",
		Help: "Items dropped from a bridge queue",
	}, []string{"queue", "reason"})
)

// Fetcher performs one remote fetch for one range
type Fetcher interface {
	Fetch(ctx context.Context, r models.DateRange) (*models.FeedResponse, error)
}

// Recorder persists the raw body of a successful fetch
type Recorder interface {
	Append(ctx context.Context, r models.DateRange, raw string) (int64, error)
}

type Option func(*Bridge)

// WithRecorder persists every successful result from the worker goroutine
// before it is handed to the frame side
func WithRecorder(recorder Recorder) Option {
	return func(b *Bridge) {
		b.recorder = recorder
	}
}

// WithMaxPending bounds both queues to n items, dropping the oldest item when
// full. Zero keeps the queues unbounded.
func WithMaxPending(n int) Option {
	return func(b *Bridge) {
		b.maxPending = n
	}
}

// Bridge connects a frame loop that must never block to a single background
// worker that performs blocking fetches. Requests are served strictly in
// submission order and only one fetch is ever in flight.
type Bridge struct {
	fetcher    Fetcher
	recorder   Recorder
	maxPending int

	requests *queue[models.BridgeRequest]
	results  *queue[models.BridgeResult]

	seq     atomic.Uint64
	started atomic.Bool
	// outstanding counts submitted requests whose result has not been
	// polled or discarded yet
	outstanding atomic.Int64
	done    chan struct{}
}

func New(fetcher Fetcher, opts ...Option) *Bridge {
	b := &Bridge{
		fetcher: fetcher,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.requests = newQueue[models.BridgeRequest](b.maxPending)
	b.results = newQueue[models.BridgeResult](b.maxPending)
	return b
}

// Start spawns the worker. The worker stops when ctx is done while it is
// idle, or once the request queue is closed and drained. A fetch that has
// already started always runs to completion.
func (b *Bridge) Start(ctx context.Context) {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	go b.run(ctx)
}

// Submit queues a fetch for r and returns its sequence marker. It never
// blocks. After Close the request is logged and discarded.
func (b *Bridge) Submit(r models.DateRange) (uint64, error) {
	req := models.BridgeRequest{Seq: b.seq.Add(1), Range: r}

	b.outstanding.Add(1)
	dropped, err := b.requests.push(req)
	if err != nil {
		b.outstanding.Add(-1)
		droppedTotal.WithLabelValues("requests", "closed").Inc()
		log.WithFields(log.Fields{
			"seq":   req.Seq,
			"range": r.String(),
		}).Warn("Request queue closed, discarding request")
		return 0, err
	}
	if dropped {
		b.outstanding.Add(-1)
		droppedTotal.WithLabelValues("requests", "full").Inc()
		log.WithField("max_pending", b.maxPending).Warn("Request queue full, dropped oldest request")
	}
	pendingGauge.WithLabelValues("requests").Set(float64(b.requests.size()))
	return req.Seq, nil
}

// Poll returns the next result without blocking. The second value is false
// when nothing is ready this tick.
func (b *Bridge) Poll() (models.BridgeResult, bool) {
	result, ok := b.results.tryPop()
	if ok {
		b.outstanding.Add(-1)
		pendingGauge.WithLabelValues("results").Set(float64(b.results.size()))
	}
	return result, ok
}

// Close stops accepting requests. Requests already queued are still served.
func (b *Bridge) Close() {
	b.requests.close()
}

// Stop closes the bridge and discards every request not yet picked up by the
// worker. A fetch already in flight still completes. It returns the number
// of discarded requests.
func (b *Bridge) Stop() int {
	n := b.requests.discard()
	if n > 0 {
		b.outstanding.Add(-int64(n))
		droppedTotal.WithLabelValues("requests", "stopped").Add(float64(n))
		log.WithField("discarded", n).Info("Bridge stopped, discarded queued requests")
	}
	pendingGauge.WithLabelValues("requests").Set(0)
	return n
}

// Detach drops the result side. Results produced afterwards are logged and
// discarded by the worker.
func (b *Bridge) Detach() {
	if n := b.results.discard(); n > 0 {
		b.outstanding.Add(-int64(n))
		droppedTotal.WithLabelValues("results", "detached").Add(float64(n))
	}
}

// Wait blocks until the worker has exited. It returns at once if the worker
// was never started.
func (b *Bridge) Wait() {
	if !b.started.Load() {
		return
	}
	<-b.done
}

// Outstanding reports submitted requests that have not yet produced a
// polled result. Requests and results dropped by the bridge are not counted.
func (b *Bridge) Outstanding() int {
	return int(b.outstanding.Load())
}

// Pending reports how many requests and results are queued
func (b *Bridge) Pending() (requests, results int) {
	return b.requests.size(), b.results.size()
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)
	log.Info("Bridge worker started")

	for {
		req, err := b.requests.pop(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				log.Info("Request queue closed, bridge worker stopping")
			} else {
				log.WithError(err).Info("Bridge worker stopping")
				b.requests.close()
			}
			return
		}
		pendingGauge.WithLabelValues("requests").Set(float64(b.requests.size()))

		b.deliver(b.process(ctx, req))
	}
}

func (b *Bridge) process(ctx context.Context, req models.BridgeRequest) models.BridgeResult {
	// Requests are not cancellable once dequeued
	ctx = context.WithoutCancel(ctx)
	logger := log.WithFields(log.Fields{
		"seq":   req.Seq,
		"range": req.Range.String(),
	})

	result := models.BridgeResult{Seq: req.Seq, Range: req.Range}

	resp, err := b.fetcher.Fetch(ctx, req.Range)
	if err != nil {
		logger.WithError(err).Error("Fetch failed")
		result.Err = err
		return result
	}

	if b.recorder != nil {
		if _, err := b.recorder.Append(ctx, req.Range, resp.Raw()); err != nil {
			logger.WithError(err).Error("Persisting fetched feed failed")
			result.Err = err
			return result
		}
	}

	logger.WithField("element_count", resp.ElementCount).Info("Fetch completed")
	result.Response = resp
	return result
}

func (b *Bridge) deliver(result models.BridgeResult) {
	dropped, err := b.results.push(result)
	if err != nil {
		b.outstanding.Add(-1)
		droppedTotal.WithLabelValues("results", "closed").Inc()
		log.WithField("seq", result.Seq).Warn("Result queue closed, discarding result")
		return
	}
	if dropped {
		b.outstanding.Add(-1)
		droppedTotal.WithLabelValues("results", "full").Inc()
		log.WithField("max_pending", b.maxPending).Warn("Result queue full, dropped oldest result")
	}
	pendingGauge.WithLabelValues("results").Set(float64(b.results.size()))
}
