package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"neofeed/frame"
	"neofeed/importer"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// streamEvent is printed once for every result the frame loop materializes
type streamEvent struct {
	Generation uint64             `json:"generation"`
	StartDate  string             `json:"startDate"`
	EndDate    string             `json:"endDate"`
	Objects    []frame.ObjectView `json:"objects,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func streamCmd() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Fetch windows through the frame loop and print each result",
		Description: `Runs the headless frame loop: every window is submitted to the
background fetch worker and the loop polls for results once per tick.

Each result is printed as a JSON object on a single line as soon as the
loop picks it up. Failed windows are printed with an error field and do
not stop the remaining windows.

Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			startDateFlag(true),
			windowsFlag(),
			&cli.DurationFlag{
				Name:  "tick",
				Value: 16 * time.Millisecond,
				Usage: "Frame loop tick interval",
			},
			&cli.BoolFlag{
				Name:  "persist",
				Usage: "Also store fetched responses in the database",
			},
		},
		Action: func(ctx *cli.Context) error {
			start, err := dateFlag(ctx, "start-date")
			if err != nil {
				return err
			}
			windows, err := importer.Plan(start, nil, ctx.Int("windows"))
			if err != nil {
				return cli.Exit(err, 2)
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			b, closeStore, err := newBridge(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			loopCtx, cancel := context.WithCancel(ctx.Context)
			defer cancel()
			b.Start(loopCtx)

			state := &frame.State{}
			for _, w := range windows {
				if _, err := b.Submit(w); err != nil {
					return err
				}
				state.Requested = w
			}
			state.Waiting = b.Outstanding()
			b.Close()

			failures := 0
			lastGeneration := uint64(0)
			scheduler := frame.NewScheduler().
				Add("poll", frame.PollBridge(b)).
				Add("waiting", frame.TrackWaiting(b)).
				Add("print", func(now time.Time, s *frame.State) error {
					if s.Generation == lastGeneration {
						return nil
					}
					lastGeneration = s.Generation
					if s.LastError != nil {
						failures++
					}
					return printEvent(s)
				}).
				Add("done", func(now time.Time, s *frame.State) error {
					if s.Waiting == 0 {
						cancel()
					}
					return nil
				})

			loop := &frame.Loop{Scheduler: scheduler, State: state, Interval: ctx.Duration("tick")}
			_ = loop.Run(loopCtx)
			interrupted := ctx.Context.Err() != nil
			if interrupted {
				log.WithField("waiting", state.Waiting).Info("Stopping stream")
				// Queued windows are abandoned, a fetch in flight still finishes
				b.Stop()
				b.Detach()
			}
			b.Wait()

			return streamExit(interrupted, state.Waiting, failures, len(windows))
		},
	}
}

// streamExit maps the end of a stream run to the process exit status
func streamExit(interrupted bool, waiting, failures, total int) error {
	if interrupted {
		return cli.Exit(fmt.Sprintf("interrupted with %d of %d windows still waiting", waiting, total), 1)
	}
	if failures > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d windows failed", failures, total), 1)
	}
	return nil
}

func printEvent(s *frame.State) error {
	event := streamEvent{
		Generation: s.Generation,
		StartDate:  s.Range.StartString(),
		EndDate:    s.Range.EndString(),
		Objects:    s.Objects,
	}
	if s.LastError != nil {
		event.Error = s.LastError.Error()
	}

	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	fmt.Println(string(line))
	return nil
}
