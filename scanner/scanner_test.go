package scanner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/padctl/internal/device"
	"github.com/srg/padctl/internal/testutils"
	"github.com/srg/padctl/internal/testutils/mocks"
	"github.com/srg/padctl/scanner"
	"github.com/stretchr/testify/mock"
	suitelib "github.com/stretchr/testify/suite"
)

type ScannerTestSuite struct {
	suitelib.Suite

	helper *testutils.TestHelper
	dev    *mocks.MockScanningDevice

	pad, padTwin, heartRate device.Advertisement
}

func (suite *ScannerTestSuite) SetupTest() {
	suite.helper = testutils.NewTestHelper(suite.T())

	suite.pad = mocks.StubAdvertisement{Name: "WalkingPad A1", Address: "AA:BB:CC:DD:EE:FF", Signal: -67, CanConnect: true}
	suite.padTwin = mocks.StubAdvertisement{Name: "walkingpad-r1", Address: "11:22:33:44:55:66", Signal: -45, CanConnect: true}
	suite.heartRate = mocks.StubAdvertisement{Name: "HRM Pro", Address: "99:88:77:66:55:44", Signal: -30, CanConnect: false}

	suite.dev = &mocks.MockScanningDevice{}
	suite.dev.On("Scan", mock.Anything, mock.Anything).Return(nil)
}

func (suite *ScannerTestSuite) scanOptions() *scanner.ScanOptions {
	opts := scanner.DefaultScanOptions()
	opts.Duration = 50 * time.Millisecond
	return opts
}

func (suite *ScannerTestSuite) TestDefaultScanOptions() {
	opts := scanner.DefaultScanOptions()

	suite.Equal(10*time.Second, opts.Duration)
	suite.Equal("walkingpad", opts.NameFilter)
	suite.False(opts.AllowDuplicates)
	suite.Empty(opts.AllowList)
	suite.Empty(opts.BlockList)
}

func (suite *ScannerTestSuite) TestScan() {
	suite.Run("returns walking pads strongest first", func() {
		suite.dev.Advertisements = []device.Advertisement{suite.pad, suite.heartRate, suite.padTwin}
		s := scanner.NewScanner(suite.dev, suite.helper.Logger)

		devices, err := s.Scan(context.Background(), suite.scanOptions())

		suite.Require().NoError(err)
		suite.Require().Len(devices, 2, "non-matching names MUST be filtered out")
		suite.Equal("11:22:33:44:55:66", devices[0].Address)
		suite.Equal("walkingpad-r1", devices[0].Name)
		suite.Equal("AA:BB:CC:DD:EE:FF", devices[1].Address)
		suite.True(devices[1].Connectable)
	})

	suite.Run("empty name filter matches every advertiser", func() {
		suite.dev.Advertisements = []device.Advertisement{suite.pad, suite.heartRate}
		s := scanner.NewScanner(suite.dev, suite.helper.Logger)
		opts := suite.scanOptions()
		opts.NameFilter = ""

		devices, err := s.Scan(context.Background(), opts)

		suite.Require().NoError(err)
		suite.Len(devices, 2)
		suite.Equal("HRM Pro", devices[0].Name)
	})

	suite.Run("repeated advertisements update one entry", func() {
		louder := mocks.StubAdvertisement{Name: "", Address: "AA:BB:CC:DD:EE:FF", Signal: -40, CanConnect: true}
		suite.dev.Advertisements = []device.Advertisement{suite.pad, louder}
		s := scanner.NewScanner(suite.dev, suite.helper.Logger)
		opts := suite.scanOptions()
		opts.NameFilter = ""

		devices, err := s.Scan(context.Background(), opts)

		suite.Require().NoError(err)
		suite.Require().Len(devices, 1)
		suite.Equal(2, devices[0].Seen)
		suite.Equal(-40, devices[0].RSSI)
		suite.Equal("WalkingPad A1", devices[0].Name, "an empty name MUST NOT erase the known one")
	})

	suite.Run("allow and block lists", func() {
		suite.dev.Advertisements = []device.Advertisement{suite.pad, suite.padTwin}
		s := scanner.NewScanner(suite.dev, suite.helper.Logger)

		opts := suite.scanOptions()
		opts.AllowList = []string{"aa:bb:cc:dd:ee:ff"}
		devices, err := s.Scan(context.Background(), opts)
		suite.Require().NoError(err)
		suite.Require().Len(devices, 1)
		suite.Equal("AA:BB:CC:DD:EE:FF", devices[0].Address)

		opts = suite.scanOptions()
		opts.BlockList = []string{"AA:BB:CC:DD:EE:FF"}
		devices, err = s.Scan(context.Background(), opts)
		suite.Require().NoError(err)
		suite.Require().Len(devices, 1)
		suite.Equal("11:22:33:44:55:66", devices[0].Address)
	})
}

func (suite *ScannerTestSuite) TestScanEvents() {
	suite.dev.Advertisements = []device.Advertisement{suite.pad, suite.pad}
	s := scanner.NewScanner(suite.dev, suite.helper.Logger)

	_, err := s.Scan(context.Background(), suite.scanOptions())
	suite.Require().NoError(err)

	first := <-s.Events()
	second := <-s.Events()
	suite.Equal(scanner.EventNew, first.Type)
	suite.Equal(scanner.EventUpdated, second.Type)
	suite.Equal("updated", second.Type.String())
}

func (suite *ScannerTestSuite) TestScanErrors() {
	suite.Run("adapter errors are wrapped", func() {
		dev := &mocks.MockScanningDevice{}
		dev.On("Scan", mock.Anything, false).Return(device.ErrBluetoothOff)
		s := scanner.NewScanner(dev, suite.helper.Logger)

		_, err := s.Scan(context.Background(), suite.scanOptions())

		suite.ErrorIs(err, device.ErrBluetoothOff)
	})

	suite.Run("parent cancellation is reported", func() {
		s := scanner.NewScanner(suite.dev, suite.helper.Logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Scan(ctx, suite.scanOptions())

		suite.ErrorIs(err, context.Canceled)
	})
}

func (suite *ScannerTestSuite) TestFind() {
	suite.Run("returns the first matching device without waiting out the scan", func() {
		suite.dev.Advertisements = []device.Advertisement{suite.heartRate, suite.pad, suite.padTwin}
		s := scanner.NewScanner(suite.dev, suite.helper.Logger)
		opts := scanner.DefaultScanOptions()

		start := time.Now()
		d, err := s.Find(context.Background(), opts)

		suite.Require().NoError(err)
		suite.Equal("AA:BB:CC:DD:EE:FF", d.Address)
		suite.Less(time.Since(start), opts.Duration, "Find MUST stop scanning once a match is seen")
	})

	suite.Run("no match within the window", func() {
		suite.dev.Advertisements = []device.Advertisement{suite.heartRate}
		s := scanner.NewScanner(suite.dev, suite.helper.Logger)

		_, err := s.Find(context.Background(), suite.scanOptions())

		suite.True(errors.Is(err, scanner.ErrNoDevice), "MUST report ErrNoDevice, got %v", err)
	})
}

func TestScannerTestSuite(t *testing.T) {
	suitelib.Run(t, new(ScannerTestSuite))
}
