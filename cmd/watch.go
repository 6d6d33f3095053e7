package cmd

import (
	"fmt"
	"strings"
	"time"

	"neofeed/bridge"
	"neofeed/config"
	"neofeed/db"
	"neofeed/frame"
	"neofeed/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	hazardStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// newBridge builds a bridge for the configured feed. With --persist the
// worker also stores every fetched response.
func newBridge(ctx *cli.Context, cfg *config.TomlConfig) (*bridge.Bridge, func(), error) {
	opts := []bridge.Option{bridge.WithMaxPending(ctx.Int("max-pending"))}
	closeStore := func() {}

	if ctx.Bool("persist") {
		store, err := db.Open(cfg.Secrets.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, bridge.WithRecorder(store))
		closeStore = func() { store.Close() }
	}

	return bridge.New(newClient(cfg), opts...), closeStore, nil
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Browse the feed week by week",
		Description: `Starts an interactive view of the feed. Fetches run on a background
worker while the view keeps redrawing; results replace the view as soon
as they arrive.

Keys: n / right for the next window, p / left for the previous window,
r to fetch the current window again, q to quit.

Logs are written to --log-file while the view is open.`,
		Flags: []cli.Flag{
			startDateFlag(true),
			&cli.DurationFlag{
				Name:  "tick",
				Value: 50 * time.Millisecond,
				Usage: "Frame tick interval",
			},
			&cli.BoolFlag{
				Name:  "persist",
				Usage: "Also store fetched responses in the database",
			},
			&cli.IntFlag{
				Name:  "max-pending",
				Usage: "Queued requests and results kept before the oldest is dropped, 0 for unbounded",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Value: "neofeed.log",
				Usage: "Log destination while the view is open",
			},
		},
		Action: func(ctx *cli.Context) error {
			start, err := dateFlag(ctx, "start-date")
			if err != nil {
				return err
			}
			first, err := models.NewDateRange(start, start.AddDate(0, 0, models.MaxSpanDays))
			if err != nil {
				return cli.Exit(err, 2)
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			logFile, err := tea.LogToFile(ctx.String("log-file"), "")
			if err != nil {
				return err
			}
			defer logFile.Close()
			log.SetOutput(logFile)

			b, closeStore, err := newBridge(ctx, cfg)
			if err != nil {
				return err
			}
			b.Start(ctx.Context)
			defer func() {
				// Let an in-flight fetch finish, and be stored, before the
				// store goes away
				b.Stop()
				b.Detach()
				b.Wait()
				closeStore()
			}()

			m := newWatchModel(b, ctx.Duration("tick"))
			m.request(first)

			_, err = tea.NewProgram(m, tea.WithContext(ctx.Context), tea.WithAltScreen()).Run()
			return err
		},
	}
}

type tickMsg time.Time

// watchModel renders frame.State. Every tick runs the frame scheduler,
// which polls the bridge without blocking.
type watchModel struct {
	bridge    *bridge.Bridge
	scheduler *frame.Scheduler
	state     *frame.State
	interval  time.Duration
	height    int
}

func newWatchModel(b *bridge.Bridge, interval time.Duration) watchModel {
	return watchModel{
		bridge:    b,
		scheduler: frame.NewScheduler().
			Add("poll", frame.PollBridge(b)).
			Add("waiting", frame.TrackWaiting(b)),
		state:     &frame.State{},
		interval:  interval,
		height:    24,
	}
}

func (m watchModel) request(r models.DateRange) {
	if _, err := m.bridge.Submit(r); err != nil {
		m.state.LastError = err
		return
	}
	m.state.Requested = r
	m.state.Waiting = m.bridge.Outstanding()
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return m.tick()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.scheduler.Tick(time.Time(msg), m.state)
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "n", "right":
			m.request(m.state.Requested.Next())
		case "p", "left":
			m.request(m.state.Requested.Previous())
		case "r":
			m.request(m.state.Requested)
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	s := m.state
	var b strings.Builder

	b.WriteString(titleStyle.Render("Near earth objects"))
	if s.Response != nil {
		b.WriteString(fmt.Sprintf("  %s  %d objects", s.Range, s.Response.ElementCount))
	}
	b.WriteString("\n")

	status := fmt.Sprintf("requested %s  waiting %d  generation %d", s.Requested, s.Waiting, s.Generation)
	b.WriteString(mutedStyle.Render(status) + "\n\n")

	if s.LastError != nil {
		b.WriteString(errorStyle.Render("error: "+s.LastError.Error()) + "\n\n")
	}

	rows := m.height - 8
	for i, obj := range s.Objects {
		if i >= rows {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("... %d more", len(s.Objects)-rows)) + "\n")
			break
		}
		line := fmt.Sprintf("%s  %-24s %7.0f-%-7.0fm  closest %s  %s km",
			obj.Date, obj.Name, obj.DiameterMinMeters, obj.DiameterMaxMeters,
			obj.ClosestApproach, obj.MissDistanceKm.StringFixed(0))
		if obj.Hazardous {
			line = hazardStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + mutedStyle.Render("n next · p previous · r refresh · q quit"))
	return b.String()
}
