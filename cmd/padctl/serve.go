package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/padctl/internal/history"
	"github.com/srg/padctl/internal/httpapi"
	"github.com/srg/padctl/internal/pad"
	"github.com/srg/padctl/pkg/config"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API",
		Long: `Connect to the pad and serve the HTTP control API until interrupted:

  POST     /!start_belt
  POST     /!stop_belt
  GET|POST /!change_speed?speed=<0-60>
  POST     /!change_mode?mode=<manual|automatic|standby>
  GET      /!state
  GET      /!history
  GET      /ws`,
		Example: `  padctl serve --listen 0.0.0.0:3030
  curl -X POST 'http://localhost:3030/!change_speed?speed=30'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *pad.Session, cfg *config.Config, logger *logrus.Logger) error {
				if listen == "" {
					listen = cfg.HTTP.Listen
				}

				recorder, err := history.NewRecorder(cfg.HTTP.HistorySize)
				if err != nil {
					return err
				}
				defer s.Subscribe(recorder)()

				// the pad reports once asked; seed /!state right away
				if err := s.RequestStats(ctx); err != nil {
					logger.WithError(err).Warn("Initial stats request failed")
				}

				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				go func() {
					select {
					case <-s.Done():
						logger.Error("Connection to the pad lost, shutting down")
						cancel()
					case <-ctx.Done():
					}
				}()

				srv := httpapi.NewServer(s, httpapi.WithLogger(logger), httpapi.WithHistory(recorder))
				if err := srv.ListenAndServe(ctx, listen); err != nil {
					return err
				}
				select {
				case <-s.Done():
					return ErrConnectionLost
				default:
					return nil
				}
			})
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address; defaults to the config's http.listen")
	return cmd
}
