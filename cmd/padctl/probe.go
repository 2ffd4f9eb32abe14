package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/padctl/internal/device"
	"github.com/srg/padctl/internal/pad"
	"github.com/srg/padctl/pkg/config"
)

// newProbeCmd runs the pad's login handshake and prints whatever it reports.
func newProbeCmd(a *app) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run a stats/profile handshake, print the states received and stop the belt",
		Long: `Connect, request stats, send the profile record, print every state the pad
reports along the way and finally stop the belt.

Useful to check that a pad answers before wiring it into anything else.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *pad.Session, _ *config.Config, logger *logrus.Logger) error {
				logProfile(logger, s)

				colored := isTerminal(cmd.OutOrStdout())
				out := &syncWriter{w: cmd.OutOrStdout()}
				renderer := newStateRenderer(out, false, colored)
				defer s.Subscribe(pad.SubscriberFunc(renderer.Render))()

				steps := []struct {
					name string
					send func(context.Context) error
				}{
					{"stats", s.RequestStats},
					{"profile", s.RequestProfile},
				}
				for _, step := range steps {
					logger.WithField("step", step.name).Info("Probing pad")
					if err := step.send(ctx); err != nil {
						return err
					}
					if err := holdLink(ctx, s, wait); err != nil {
						return err
					}
				}

				if err := s.StopBelt(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "Probe complete")
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "How long to listen after each request")
	return cmd
}

// logProfile lists the discovered characteristics at debug level.
func logProfile(logger *logrus.Logger, s *pad.Session) {
	for _, c := range s.Characteristics() {
		logger.WithFields(logrus.Fields{
			"uuid":  c.UUID(),
			"short": device.ShortenUUID(c.UUID()),
		}).Debug("Discovered characteristic")
	}
}
