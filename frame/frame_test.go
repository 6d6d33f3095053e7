package frame_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"neofeed/frame"
	"neofeed/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPoller struct {
	results []models.BridgeResult
}

func (p *stubPoller) Poll() (models.BridgeResult, bool) {
	if len(p.results) == 0 {
		return models.BridgeResult{}, false
	}
	res := p.results[0]
	p.results = p.results[1:]
	return res, true
}

func feed(t *testing.T, body string) *models.FeedResponse {
	t.Helper()
	resp, err := models.DecodeFeedResponse([]byte(body))
	require.NoError(t, err)
	return resp
}

const twoObjects = `{"element_count":2,"near_earth_objects":{"2020-01-01":[
  {"id":"a","name":"A","estimated_diameter":{"meters":{"estimated_diameter_min":1,"estimated_diameter_max":2}},
   "close_approach_data":[
     {"close_approach_date":"2020-01-01","miss_distance":{"kilometers":"500.5"}},
     {"close_approach_date":"2020-03-01","miss_distance":{"kilometers":"120.25"}},
     {"close_approach_date":"2020-05-01","miss_distance":{"kilometers":"n/a"}}
   ]},
  {"id":"b","name":"B","close_approach_data":[]}
]}}`

const oneObject = `{"element_count":1,"near_earth_objects":{"2020-01-09":[{"id":"c","name":"C","close_approach_data":[]}]}}`

func TestSchedulerRunsInRegistrationOrder(t *testing.T) {
	var order []string
	sched := frame.NewScheduler().
		Add("first", func(now time.Time, s *frame.State) error {
			order = append(order, "first")
			return nil
		}).
		Add("failing", func(now time.Time, s *frame.State) error {
			order = append(order, "failing")
			return errors.New("boom")
		}).
		Add("last", func(now time.Time, s *frame.State) error {
			order = append(order, "last")
			return nil
		})

	state := &frame.State{}
	sched.Tick(time.Now(), state)
	sched.Tick(time.Now(), state)

	assert.Equal(t, []string{"first", "failing", "last", "first", "failing", "last"}, order)
	assert.Equal(t, uint64(2), state.Tick)
}

type stubTracker int

func (s stubTracker) Outstanding() int { return int(s) }

func TestTrackWaitingFollowsTracker(t *testing.T) {
	state := &frame.State{Waiting: 4}
	frame.NewScheduler().Add("waiting", frame.TrackWaiting(stubTracker(1))).Tick(time.Now(), state)
	assert.Equal(t, 1, state.Waiting)
}

func TestPollBridgeEmptyKeepsState(t *testing.T) {
	state := &frame.State{Objects: []frame.ObjectView{{ID: "kept"}}}
	sched := frame.NewScheduler().Add("poll", frame.PollBridge(&stubPoller{}))

	sched.Tick(time.Now(), state)
	assert.Equal(t, uint64(0), state.Generation)
	require.Len(t, state.Objects, 1)
	assert.Equal(t, "kept", state.Objects[0].ID)
}

func TestPollBridgeReplacesState(t *testing.T) {
	first := models.MustDateRange("2020-01-01", "2020-01-08")
	second := models.MustDateRange("2020-01-09", "2020-01-16")
	poller := &stubPoller{results: []models.BridgeResult{
		{Seq: 1, Range: first, Response: feed(t, twoObjects)},
		{Seq: 2, Range: second, Response: feed(t, oneObject)},
		{Seq: 3, Range: second, Err: errors.New("network down")},
	}}
	state := &frame.State{Waiting: 3}
	sched := frame.NewScheduler().Add("poll", frame.PollBridge(poller))

	sched.Tick(time.Now(), state)
	assert.Equal(t, uint64(1), state.Generation)
	assert.Equal(t, first, state.Range)
	require.Len(t, state.Objects, 2)
	assert.Equal(t, "a", state.Objects[0].ID)
	assert.Equal(t, "2020-03-01", state.Objects[0].ClosestApproach)
	assert.Equal(t, "120.25", state.Objects[0].MissDistanceKm.String())
	assert.Equal(t, 3, state.Objects[0].Approaches)
	assert.Equal(t, 2.0, state.Objects[0].DiameterMaxMeters)

	sched.Tick(time.Now(), state)
	assert.Equal(t, uint64(2), state.Generation)
	require.Len(t, state.Objects, 1, "previous objects are cleared, not merged")
	assert.Equal(t, "c", state.Objects[0].ID)

	sched.Tick(time.Now(), state)
	assert.Equal(t, uint64(3), state.Generation)
	assert.Empty(t, state.Objects)
	assert.Nil(t, state.Response)
	assert.EqualError(t, state.LastError, "network down")
	assert.Equal(t, 0, state.Waiting)
}

func TestLoopTicksUntilCancelled(t *testing.T) {
	state := &frame.State{}
	ticks := make(chan struct{}, 16)
	sched := frame.NewScheduler().Add("count", func(now time.Time, s *frame.State) error {
		select {
		case ticks <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- (&frame.Loop{Scheduler: sched, State: state, Interval: time.Millisecond}).Run(ctx)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatal("loop did not tick")
		}
	}
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}
