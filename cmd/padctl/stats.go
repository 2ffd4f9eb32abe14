package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/padctl/internal/pad"
	"github.com/srg/padctl/internal/protocol"
	"github.com/srg/padctl/pkg/config"
)

// waitForState returns the next state delivered to sub.
func waitForState(ctx context.Context, s *pad.Session, sub *pad.ChannelSubscriber, timeout time.Duration) (protocol.DeviceState, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case st := <-sub.C():
		return st, nil
	case <-s.Done():
		return protocol.DeviceState{}, ErrConnectionLost
	case <-timer.C:
		return protocol.DeviceState{}, fmt.Errorf("%w within %v", ErrNoState, timeout)
	case <-ctx.Done():
		return protocol.DeviceState{}, ctx.Err()
	}
}

func newStatsCmd(a *app) *cobra.Command {
	var (
		wait   time.Duration
		format string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Ask the pad for its current state and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *pad.Session, cfg *config.Config, _ *logrus.Logger) error {
				if format == "" {
					format = cfg.OutputFormat
				}
				if format != "text" && format != "json" {
					return fmt.Errorf("invalid format %q: must be text or json", format)
				}

				states := pad.NewChannelSubscriber(1)
				defer s.Subscribe(states)()

				if err := s.RequestStats(ctx); err != nil {
					return err
				}
				st, err := waitForState(ctx, s, states, wait)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if format == "json" {
					return writeStatsJSON(out, statsDocument(s.Address(), st, s.Stats()))
				}
				return writeStatsText(out, s.Address(), st)
			})
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "How long to wait for the pad to answer")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (text, json); defaults to the config's output_format")
	return cmd
}

func newProfileCmd(a *app) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Send the stored user profile record to the pad",
		Long: `Send the fixed user profile record the vendor app uses at login.

The link is held open for --wait so the pad can process the record.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *pad.Session, _ *config.Config, _ *logrus.Logger) error {
				if err := s.RequestProfile(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Profile sent")
				return holdLink(ctx, s, wait)
			})
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "How long to keep the link open afterwards")
	return cmd
}

// holdLink keeps the session open for d, ending early on link loss or ctx.
func holdLink(ctx context.Context, s *pad.Session, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-s.Done():
		return ErrConnectionLost
	case <-ctx.Done():
		return ctx.Err()
	}
}
