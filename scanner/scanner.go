package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/device"
	"github.com/srg/padctl/internal/ringchan"
)

// DefaultNameFilter matches the local name every WalkingPad model advertises.
const DefaultNameFilter = "walkingpad"

// ErrNoDevice is returned by Find when no matching device was seen in time.
var ErrNoDevice = errors.New("no matching device found")

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

func (t DeviceEventType) String() string {
	if t == EventNew {
		return "new"
	}
	return "updated"
}

// DiscoveredDevice is what the scanner knows about one advertiser.
type DiscoveredDevice struct {
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	RSSI        int       `json:"rssi"`
	Connectable bool      `json:"connectable"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Seen        int       `json:"seen"`
}

type DeviceEvent struct {
	Type   DeviceEventType
	Device DiscoveredDevice
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	AllowDuplicates bool
	// NameFilter is matched case-insensitively against the local name; empty matches all.
	NameFilter string
	AllowList  []string
	BlockList  []string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:   10 * time.Second,
		NameFilter: DefaultNameFilter,
	}
}

// Scanner handles BLE device discovery
type Scanner struct {
	dev     device.ScanningDevice
	devices *hashmap.Map[string, DiscoveredDevice]
	events  *ringchan.RingChannel[DeviceEvent]
	logger  *logrus.Logger
	now     func() time.Time
}

// NewScanner creates a scanner on dev
func NewScanner(dev device.ScanningDevice, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		dev:     dev,
		devices: hashmap.New[string, DiscoveredDevice](),
		events:  ringchan.New[DeviceEvent](100),
		logger:  logger,
		now:     time.Now,
	}
}

// Scan performs discovery for opts.Duration and returns the matching devices
// ordered by signal strength, strongest first.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) ([]DiscoveredDevice, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	s.devices = hashmap.New[string, DiscoveredDevice]()

	s.logger.WithFields(logrus.Fields{
		"duration": opts.Duration,
		"filter":   opts.NameFilter,
	}).Info("Starting BLE scan...")

	scanCtx, cancel := withOptionalTimeout(ctx, opts.Duration)
	defer cancel()

	err := s.dev.Scan(scanCtx, opts.AllowDuplicates, func(adv device.Advertisement) {
		s.handleAdvertisement(adv, opts)
	})
	if err := scanError(ctx, err); err != nil {
		return nil, err
	}

	devices := s.Devices()
	s.logger.WithField("device_count", len(devices)).Info("BLE scan completed")
	return devices, nil
}

// Find scans until the first matching device is seen and returns it. It
// returns ErrNoDevice if opts.Duration elapses first.
func (s *Scanner) Find(ctx context.Context, opts *ScanOptions) (DiscoveredDevice, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	s.devices = hashmap.New[string, DiscoveredDevice]()

	scanCtx, cancel := withOptionalTimeout(ctx, opts.Duration)
	defer cancel()

	found := make(chan DiscoveredDevice, 1)
	s.logger.WithField("filter", opts.NameFilter).Info("Looking for device...")

	err := s.dev.Scan(scanCtx, opts.AllowDuplicates, func(adv device.Advertisement) {
		if d, ok := s.handleAdvertisement(adv, opts); ok {
			select {
			case found <- d:
				cancel()
			default:
			}
		}
	})

	select {
	case d := <-found:
		return d, nil
	default:
	}
	if err := scanError(ctx, err); err != nil {
		return DiscoveredDevice{}, err
	}
	return DiscoveredDevice{}, fmt.Errorf("%w: no name containing %q within %v", ErrNoDevice, opts.NameFilter, opts.Duration)
}

// handleAdvertisement updates existing or adds a new device
func (s *Scanner) handleAdvertisement(adv device.Advertisement, opts *ScanOptions) (DiscoveredDevice, bool) {
	if !s.shouldIncludeDevice(adv, opts) {
		return DiscoveredDevice{}, false
	}

	now := s.now()
	addr := adv.Addr()
	d, existing := s.devices.Get(addr)
	if !existing {
		d = DiscoveredDevice{Address: addr, FirstSeen: now}
	}
	if name := adv.LocalName(); name != "" {
		d.Name = name
	}
	d.RSSI = adv.RSSI()
	d.Connectable = adv.Connectable()
	d.LastSeen = now
	d.Seen++
	s.devices.Set(addr, d)

	event := DeviceEvent{Type: EventUpdated, Device: d}
	if !existing {
		event.Type = EventNew
		s.logger.WithFields(logrus.Fields{
			"device":  d.Name,
			"address": d.Address,
			"rssi":    d.RSSI,
		}).Info("Discovered new device")
	}
	s.events.Send(event)
	return d, true
}

// shouldIncludeDevice applies the name, allow and block filters
func (s *Scanner) shouldIncludeDevice(adv device.Advertisement, opts *ScanOptions) bool {
	addr := adv.Addr()

	for _, blocked := range opts.BlockList {
		if strings.EqualFold(addr, blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if strings.EqualFold(addr, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if opts.NameFilter != "" {
		return strings.Contains(strings.ToLower(adv.LocalName()), strings.ToLower(opts.NameFilter))
	}
	return true
}

// Devices returns a snapshot of discovered devices, strongest signal first
func (s *Scanner) Devices() []DiscoveredDevice {
	devs := make([]DiscoveredDevice, 0, s.devices.Len())
	s.devices.Range(func(_ string, d DiscoveredDevice) bool {
		devs = append(devs, d)
		return true
	})
	sort.Slice(devs, func(i, j int) bool {
		if devs[i].RSSI != devs[j].RSSI {
			return devs[i].RSSI > devs[j].RSSI
		}
		return devs[i].Address < devs[j].Address
	})
	return devs
}

// Events return a read-only channel of device events
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// scanError drops the error a scan returns when it was stopped on purpose,
// keeping parent cancellation visible to the caller.
func scanError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return fmt.Errorf("scan failed: %w", err)
}
