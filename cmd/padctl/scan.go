package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/padctl/scanner"
)

func newScanCmd(a *app) *cobra.Command {
	var (
		duration  time.Duration
		format    string
		all       bool
		allowList []string
		blockList []string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for WalkingPads nearby",
		Long: `Scan for Bluetooth Low Energy devices whose local name contains the pad
name (see --name), strongest signal first. Use --all to list every device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
			}

			cfg, logger, err := a.setup(cmd)
			if err != nil {
				return err
			}

			opts := scanner.DefaultScanOptions()
			opts.Duration = cfg.ScanTimeout
			if duration > 0 {
				opts.Duration = duration
			}
			opts.NameFilter = cfg.DeviceName
			if all {
				opts.NameFilter = ""
			}
			opts.AllowList = allowList
			opts.BlockList = blockList

			dev, err := a.newScanningDevice()
			if err != nil {
				return fmt.Errorf("failed to create BLE scanner: %w", err)
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			fmt.Fprintf(cmd.ErrOrStderr(), "Scanning for %v...\n", opts.Duration)
			devices, err := scanner.NewScanner(dev, logger).Scan(ctx, opts)
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(devices)
			}
			return displayDevicesTable(cmd.OutOrStdout(), devices)
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Scan duration; defaults to the config's scan_timeout")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json)")
	cmd.Flags().BoolVar(&all, "all", false, "List every advertiser, not only pads")
	cmd.Flags().StringSliceVar(&allowList, "allow", nil, "Only show devices with these addresses")
	cmd.Flags().StringSliceVar(&blockList, "block", nil, "Hide devices with these addresses")
	return cmd
}

func displayDevicesTable(out io.Writer, devices []scanner.DiscoveredDevice) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(out, "No devices discovered")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tCONNECTABLE\tSEEN")

	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		connectable := "no"
		if d.Connectable {
			connectable = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%d\n", name, d.Address, d.RSSI, connectable, d.Seen)
	}
	return w.Flush()
}
