package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/padctl/internal/pad"
	"github.com/srg/padctl/internal/protocol"
	"github.com/srg/padctl/pkg/config"
)

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the belt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *pad.Session, _ *config.Config, _ *logrus.Logger) error {
				if err := s.StartBelt(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Belt started")
				return nil
			})
		},
	}
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the belt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *pad.Session, _ *config.Config, _ *logrus.Logger) error {
				if err := s.StopBelt(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Belt stopped")
				return nil
			})
		},
	}
}

func newSpeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "speed <0-60>",
		Short: "Set the belt speed in tenths of km/h",
		Long: `Set the belt speed in tenths of km/h: 30 is 3.0 km/h, 0 stops the belt.

The pad only follows speed changes in manual mode.`,
		Example: "  padctl speed 35",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			speed, err := parseSpeedArg(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *pad.Session, _ *config.Config, _ *logrus.Logger) error {
				if err := s.SetSpeed(ctx, speed); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Speed set to %s\n", formatSpeed(speed))
				return nil
			})
		},
	}
}

func parseSpeedArg(arg string) (uint8, error) {
	speed, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid speed %q: must be an integer", arg)
	}
	if speed < protocol.MinSpeed || speed > protocol.MaxSpeed {
		return 0, fmt.Errorf("speed %d out of range: must be between %d and %d", speed, protocol.MinSpeed, protocol.MaxSpeed)
	}
	return uint8(speed), nil
}

func newModeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "mode <manual|automatic|standby>",
		Short:     "Switch the pad's operating mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"manual", "automatic", "standby"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := protocol.ParseMode(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *pad.Session, _ *config.Config, _ *logrus.Logger) error {
				if err := s.SetMode(ctx, mode); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mode set to %s\n", mode)
				return nil
			})
		},
	}
}
