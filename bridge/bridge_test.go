package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"neofeed/bridge"
	"neofeed/models"
	"neofeed/nasa"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher records call order and the number of concurrent fetches
type fakeFetcher struct {
	mu       sync.Mutex
	calls    []models.DateRange
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	fail     map[string]error
	gate     chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, r models.DateRange) (*models.FeedResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.gate != nil {
		<-f.gate
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.calls = append(f.calls, r)
	f.mu.Unlock()

	if err, ok := f.fail[r.StartString()]; ok {
		return nil, err
	}
	body := fmt.Sprintf(`{"element_count":1,"near_earth_objects":{%q:[{"id":%q}]}}`, r.StartString(), r.StartString())
	return models.DecodeFeedResponse([]byte(body))
}

func drain(t *testing.T, b *bridge.Bridge, n int) []models.BridgeResult {
	t.Helper()
	var results []models.BridgeResult
	require.Eventually(t, func() bool {
		for {
			res, ok := b.Poll()
			if !ok {
				break
			}
			results = append(results, res)
		}
		return len(results) >= n
	}, 5*time.Second, time.Millisecond)
	return results
}

func ranges() []models.DateRange {
	return []models.DateRange{
		models.MustDateRange("2020-01-01", "2020-01-08"),
		models.MustDateRange("2020-01-09", "2020-01-16"),
		models.MustDateRange("2020-01-17", "2020-01-24"),
	}
}

func TestResultsFollowSubmissionOrder(t *testing.T) {
	fetcher := &fakeFetcher{delay: 5 * time.Millisecond}
	b := bridge.New(fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	var seqs []uint64
	for _, r := range ranges() {
		seq, err := b.Submit(r)
		require.NoError(t, err)
		seqs = append(seqs, seq)
	}

	results := drain(t, b, 3)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, seqs[i], res.Seq)
		assert.Equal(t, ranges()[i], res.Range)
		assert.False(t, res.Failed())
		assert.Equal(t, ranges()[i].StartString(), res.Response.Objects()[0].ID)
	}
	assert.Equal(t, ranges(), fetcher.calls)
	assert.Equal(t, int32(1), fetcher.maxSeen.Load(), "only one fetch in flight")
}

func TestPollEmptyDoesNotBlock(t *testing.T) {
	b := bridge.New(&fakeFetcher{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := b.Poll()
		assert.False(t, ok)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll blocked on an empty queue")
	}
}

func TestPollDoesNotWaitForInFlightFetch(t *testing.T) {
	fetcher := &fakeFetcher{gate: make(chan struct{})}
	b := bridge.New(fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	_, err := b.Submit(ranges()[0])
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fetcher.inFlight.Load() == 1 }, time.Second, time.Millisecond)
	_, ok := b.Poll()
	assert.False(t, ok)

	close(fetcher.gate)
	results := drain(t, b, 1)
	assert.Len(t, results, 1)
}

func TestFailedFetchYieldsSentinel(t *testing.T) {
	netErr := &nasa.NetworkError{Err: errors.New("timeout")}
	fetcher := &fakeFetcher{fail: map[string]error{"2020-01-09": netErr}}
	b := bridge.New(fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	for _, r := range ranges() {
		_, err := b.Submit(r)
		require.NoError(t, err)
	}

	results := drain(t, b, 3)
	require.Len(t, results, 3)
	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.Nil(t, results[1].Response)
	assert.True(t, nasa.IsNetworkError(results[1].Err))
	assert.False(t, results[2].Failed(), "later requests still run")
}

func TestCloseDrainsQueuedRequests(t *testing.T) {
	fetcher := &fakeFetcher{delay: 2 * time.Millisecond}
	b := bridge.New(fetcher)
	for _, r := range ranges() {
		_, err := b.Submit(r)
		require.NoError(t, err)
	}
	b.Close()

	_, err := b.Submit(ranges()[0])
	assert.ErrorIs(t, err, bridge.ErrClosed)

	b.Start(context.Background())
	b.Wait()

	results := drain(t, b, 3)
	assert.Len(t, results, 3)
}

func TestDetachDiscardsResults(t *testing.T) {
	fetcher := &fakeFetcher{}
	b := bridge.New(fetcher)
	b.Detach()
	_, err := b.Submit(ranges()[0])
	require.NoError(t, err)
	b.Close()

	b.Start(context.Background())
	b.Wait()

	assert.Len(t, fetcher.calls, 1)
	_, ok := b.Poll()
	assert.False(t, ok)
}

func TestMaxPendingDropsOldest(t *testing.T) {
	b := bridge.New(&fakeFetcher{}, bridge.WithMaxPending(2))
	for _, r := range ranges() {
		_, err := b.Submit(r)
		require.NoError(t, err)
	}
	requests, _ := b.Pending()
	assert.Equal(t, 2, requests)
	b.Close()

	b.Start(context.Background())
	b.Wait()

	results := drain(t, b, 2)
	require.Len(t, results, 2)
	assert.Equal(t, ranges()[1], results[0].Range)
	assert.Equal(t, ranges()[2], results[1].Range)
}

func TestCancelStopsIdleWorker(t *testing.T) {
	b := bridge.New(&fakeFetcher{})
	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)
	cancel()
	b.Wait()

	_, err := b.Submit(ranges()[0])
	assert.ErrorIs(t, err, bridge.ErrClosed)
}

type memoryRecorder struct {
	mu   sync.Mutex
	rows []string
	err  error
}

func (m *memoryRecorder) Append(ctx context.Context, r models.DateRange, raw string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.rows = append(m.rows, raw)
	return int64(len(m.rows)), nil
}

func TestRecorderPersistsSuccessfulResults(t *testing.T) {
	recorder := &memoryRecorder{}
	b := bridge.New(&fakeFetcher{}, bridge.WithRecorder(recorder))
	_, err := b.Submit(ranges()[0])
	require.NoError(t, err)
	b.Close()
	b.Start(context.Background())
	b.Wait()

	results := drain(t, b, 1)
	require.Len(t, results, 1)
	require.Len(t, recorder.rows, 1)
	assert.Equal(t, results[0].Response.Raw(), recorder.rows[0])
}

func TestRecorderFailureYieldsSentinel(t *testing.T) {
	recorder := &memoryRecorder{err: errors.New("read-only database")}
	b := bridge.New(&fakeFetcher{}, bridge.WithRecorder(recorder))
	_, err := b.Submit(ranges()[0])
	require.NoError(t, err)
	b.Close()
	b.Start(context.Background())
	b.Wait()

	results := drain(t, b, 1)
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed())
}

func TestOutstandingSkipsDroppedRequests(t *testing.T) {
	b := bridge.New(&fakeFetcher{}, bridge.WithMaxPending(1))
	for i := 0; i < 4; i++ {
		_, err := b.Submit(ranges()[0].Next())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, b.Outstanding())

	b.Close()
	b.Start(context.Background())
	b.Wait()
	assert.Equal(t, 1, b.Outstanding())

	drain(t, b, 1)
	assert.Equal(t, 0, b.Outstanding())
}

func TestStopDiscardsQueuedButFinishesInFlight(t *testing.T) {
	fetcher := &fakeFetcher{gate: make(chan struct{})}
	recorder := &memoryRecorder{}
	b := bridge.New(fetcher, bridge.WithRecorder(recorder))
	b.Start(context.Background())
	for _, r := range ranges() {
		_, err := b.Submit(r)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return fetcher.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, 2, b.Stop())
	assert.Equal(t, 1, b.Outstanding())
	_, err := b.Submit(ranges()[0])
	assert.ErrorIs(t, err, bridge.ErrClosed)

	close(fetcher.gate)
	b.Wait()

	assert.Equal(t, []models.DateRange{ranges()[0]}, fetcher.calls)
	require.Len(t, recorder.rows, 1)
	results := drain(t, b, 1)
	assert.Equal(t, ranges()[0], results[0].Range)
	assert.Equal(t, 0, b.Outstanding())
}

func TestDetachReleasesOutstanding(t *testing.T) {
	b := bridge.New(&fakeFetcher{})
	_, err := b.Submit(ranges()[0])
	require.NoError(t, err)
	b.Close()
	b.Start(context.Background())
	b.Wait()
	require.Equal(t, 1, b.Outstanding())

	b.Detach()
	assert.Equal(t, 0, b.Outstanding())
}
