package main

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/padctl/internal/pad"
	"github.com/srg/padctl/pkg/config"
)

func newMonitorCmd(a *app) *cobra.Command {
	var (
		asJSON   bool
		noColor  bool
		duration time.Duration
		poll     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Stream the pad's state until interrupted",
		Long: `Stream every state the pad reports, one line per state.

The pad reports its state when asked, so monitor requests stats every --poll
interval. Use --json for one JSON object per line.`,
		Example: `  padctl monitor
  padctl monitor --json --duration 1m --poll 2s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if poll != 0 && poll < pad.MinCommandInterval {
				return errors.New("--poll must be 0 or at least 890ms")
			}
			return a.withSession(cmd, func(ctx context.Context, s *pad.Session, _ *config.Config, logger *logrus.Logger) error {
				if duration > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, duration)
					defer cancel()
				}

				colored := !noColor && !asJSON && isTerminal(cmd.OutOrStdout())
				renderer := newStateRenderer(&syncWriter{w: cmd.OutOrStdout()}, asJSON, colored)
				states := pad.NewChannelSubscriber(64)
				defer s.Subscribe(states)()

				return monitorLoop(ctx, s, states, renderer, poll, logger)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per state")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop after this long (0 runs until Ctrl+C)")
	cmd.Flags().DurationVar(&poll, "poll", time.Second, "Stats request interval (0 asks once)")
	return cmd
}

// monitorLoop renders states until ctx ends or the link drops. Reaching the
// --duration deadline is a normal exit.
func monitorLoop(ctx context.Context, s *pad.Session, states *pad.ChannelSubscriber, r *stateRenderer, poll time.Duration, logger *logrus.Logger) error {
	if err := s.RequestStats(ctx); err != nil {
		return err
	}

	var tick <-chan time.Time
	if poll > 0 {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case st := <-states.C():
			if err := r.Render(st); err != nil {
				return err
			}
		case <-tick:
			if err := s.RequestStats(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				logger.WithError(err).Warn("Stats request failed")
			}
		case <-s.Done():
			return ErrConnectionLost
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		}
	}
}
