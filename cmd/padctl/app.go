package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/padctl/internal/device"
	goble "github.com/srg/padctl/internal/device/go-ble"
	"github.com/srg/padctl/internal/pad"
	"github.com/srg/padctl/pkg/config"
	"github.com/srg/padctl/scanner"
)

// app carries the global flags and the transport constructors, which tests replace.
type app struct {
	configPath string
	logLevel   string
	address    string
	name       string

	newPeripheral     func(address string, logger *logrus.Logger) device.Peripheral
	newScanningDevice func() (device.ScanningDevice, error)
	sessionOptions    []pad.Option
}

func newApp() *app {
	return &app{
		newPeripheral: func(address string, logger *logrus.Logger) device.Peripheral {
			return goble.NewPeripheral(address, logger)
		},
		newScanningDevice: goble.NewScanner,
	}
}

// setup loads the configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.address != "" {
		cfg.Address = a.address
	}
	if a.name != "" {
		cfg.DeviceName = a.name
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true
	return cfg, configureLogger(cfg.LogLevel, cmd.ErrOrStderr()), nil
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// findPad scans for the first device whose local name contains cfg.DeviceName.
func (a *app) findPad(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (string, error) {
	dev, err := a.newScanningDevice()
	if err != nil {
		return "", fmt.Errorf("failed to create BLE scanner: %w", err)
	}

	opts := scanner.DefaultScanOptions()
	opts.Duration = cfg.ScanTimeout
	opts.NameFilter = cfg.DeviceName

	found, err := scanner.NewScanner(dev, logger).Find(ctx, opts)
	if err != nil {
		return "", err
	}
	logger.WithFields(logrus.Fields{
		"device":  found.Name,
		"address": found.Address,
		"rssi":    found.RSSI,
	}).Info("Found pad")
	return found.Address, nil
}

// connect resolves the pad address and establishes a session.
func (a *app) connect(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*pad.Session, error) {
	address := cfg.Address
	if address == "" {
		var err error
		if address, err = a.findPad(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}

	opts := append(cfg.SessionOptions(logger), a.sessionOptions...)
	return pad.Connect(ctx, a.newPeripheral(address, logger), opts...)
}

type sessionFunc func(ctx context.Context, s *pad.Session, cfg *config.Config, logger *logrus.Logger) error

// withSession runs fn on a freshly connected session and disconnects afterwards.
func (a *app) withSession(cmd *cobra.Command, fn sessionFunc) error {
	cfg, logger, err := a.setup(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	session, err := a.connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Disconnect(); err != nil {
			logger.WithError(err).Warn("Failed to disconnect cleanly")
		}
	}()

	return fn(ctx, session, cfg, logger)
}
