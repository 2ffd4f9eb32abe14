package pad

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/device"
	"github.com/srg/padctl/internal/protocol"
	"github.com/srg/padctl/internal/testutils"
	"github.com/srg/padctl/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const (
	notifyUUID = "0000fe01-0000-1000-8000-00805f9b34fb"
	writeUUID  = "0000fe02-0000-1000-8000-00805f9b34fb"
)

var referenceFrame = []byte{248, 162, 1, 12, 0, 0, 0, 10, 0, 0, 50, 0, 1, 100, 8}

type SessionSuite struct {
	suite.Suite

	logger     *logrus.Logger
	clock      *testutils.FakeClock
	peripheral *mocks.MockPeripheral
	notifyChar *mocks.MockCharacteristic
	writeChar  *mocks.MockCharacteristic
	session    *Session
}

func (s *SessionSuite) SetupTest() {
	s.logger = testutils.NewTestHelper(s.T()).Logger
	s.clock = testutils.NewFakeClock(epoch)
	s.notifyChar = mocks.NewMockCharacteristic(notifyUUID)
	s.writeChar = mocks.NewMockCharacteristic(writeUUID)

	s.peripheral = mocks.NewMockPeripheral(16)
	s.peripheral.On("Address").Return("AA:BB:CC:DD:EE:FF").Maybe()
	s.session = nil
}

func (s *SessionSuite) TearDownTest() {
	if s.session != nil {
		_ = s.session.Disconnect()
	}
	s.peripheral.AssertExpectations(s.T())
	s.writeChar.AssertExpectations(s.T())
}

func (s *SessionSuite) chars(list ...device.Characteristic) []device.Characteristic {
	return list
}

// connect sets up a peripheral that is not yet connected and has no profile.
func (s *SessionSuite) connect() *Session {
	s.peripheral.On("IsConnected").Return(false).Once()
	s.peripheral.On("Connect", mock.Anything, mock.Anything).Return(nil).Once()
	s.peripheral.On("Characteristics").Return(nil).Once()
	s.peripheral.On("DiscoverProfile", mock.Anything).Return(nil).Once()
	s.peripheral.On("Characteristics").Return(s.chars(s.notifyChar, s.writeChar))
	s.peripheral.On("Subscribe", mock.Anything, s.notifyChar).Return(nil).Once()
	s.peripheral.On("Disconnect").Return(nil).Maybe()

	session, err := Connect(context.Background(), s.peripheral, WithLogger(s.logger), WithClock(s.clock))
	s.Require().NoError(err, "MUST connect")
	s.session = session
	return session
}

func (s *SessionSuite) receive(sub *ChannelSubscriber) protocol.DeviceState {
	select {
	case st := <-sub.C():
		return st
	case <-time.After(2 * time.Second):
		s.FailNow("subscriber MUST receive a state")
		return protocol.DeviceState{}
	}
}

func (s *SessionSuite) TestConnectSkipsDialWhenConnected() {
	// GOAL: An already connected peripheral with a known profile is used as-is
	//
	// TEST SCENARIO: IsConnected=true, characteristics present → no Connect/DiscoverProfile calls

	s.peripheral.On("IsConnected").Return(true).Once()
	s.peripheral.On("Characteristics").Return(s.chars(s.writeChar, s.notifyChar))
	s.peripheral.On("Subscribe", mock.Anything, s.notifyChar).Return(nil).Once()
	s.peripheral.On("Disconnect").Return(nil).Once()

	session, err := Connect(context.Background(), s.peripheral, WithLogger(s.logger))
	s.Require().NoError(err)
	s.session = session

	s.Assert().Equal(s.chars(s.writeChar, s.notifyChar), session.Characteristics())
	s.peripheral.AssertNotCalled(s.T(), "Connect", mock.Anything, mock.Anything)
	s.peripheral.AssertNotCalled(s.T(), "DiscoverProfile", mock.Anything)
}

func (s *SessionSuite) TestCommandsProduceExactFrames() {
	// GOAL: Every public command writes its exact wire frame without response
	//
	// TEST SCENARIO: issue each command → write characteristic receives the reference bytes in order

	session := s.connect()

	expected := [][]byte{
		{0xF7, 0xA2, 0x04, 0x01, 0xA7, 0xFD},
		{0xF7, 0xA2, 0x01, 0x1E, 0xC1, 0xFD},
		{0xF7, 0xA2, 0x02, 0x01, 0xA5, 0xFD},
		{0xF7, 0xA2, 0x00, 0x00, 0xA2, 0xFD},
		{0xF7, 0xA5, 96, 74, 77, 147, 113, 41, 201, 0xFD},
		{0xF7, 0xA2, 0x01, 0x00, 0xA3, 0xFD},
	}
	var written [][]byte
	s.writeChar.On("Write", mock.Anything, false, 5*time.Second).
		Run(func(args mock.Arguments) { written = append(written, args.Get(0).([]byte)) }).
		Return(nil).Times(len(expected))

	ctx := context.Background()
	s.Require().NoError(session.StartBelt(ctx))
	s.Require().NoError(session.SetSpeed(ctx, 30))
	s.Require().NoError(session.SetMode(ctx, protocol.ModeManual))
	s.Require().NoError(session.RequestStats(ctx))
	s.Require().NoError(session.RequestProfile(ctx))
	s.Require().NoError(session.StopBelt(ctx))

	s.Assert().Equal(expected, written)
	s.Assert().Len(s.clock.Sleeps(), len(expected)-1, "every command after the first MUST wait its turn")
	s.Assert().Equal(uint64(len(expected)), session.Stats().CommandsSent)
}

func (s *SessionSuite) TestSpeedBoundsAreNotValidated() {
	// GOAL: The session forwards any speed byte, range checks live at the boundary
	//
	// TEST SCENARIO: SetSpeed(0), SetSpeed(60), SetSpeed(200) → three frames written

	session := s.connect()
	s.writeChar.On("Write", []byte{0xF7, 0xA2, 0x01, 0x00, 0xA3, 0xFD}, false, mock.Anything).Return(nil).Once()
	s.writeChar.On("Write", []byte{0xF7, 0xA2, 0x01, 60, 0xDF, 0xFD}, false, mock.Anything).Return(nil).Once()
	s.writeChar.On("Write", []byte{0xF7, 0xA2, 0x01, 200, 0x6B, 0xFD}, false, mock.Anything).Return(nil).Once()

	s.Assert().NoError(session.SetSpeed(context.Background(), 0))
	s.Assert().NoError(session.SetSpeed(context.Background(), 60))
	s.Assert().NoError(session.SetSpeed(context.Background(), 200))
}

func (s *SessionSuite) TestCharacteristicNotFound() {
	// GOAL: A profile without the command characteristic fails session establishment
	//
	// TEST SCENARIO: only fe01 present → ConnectError{lookup} matching ErrCharacteristicNotFound → link released

	s.peripheral.On("IsConnected").Return(false).Once()
	s.peripheral.On("Connect", mock.Anything, mock.Anything).Return(nil).Once()
	s.peripheral.On("Characteristics").Return(s.chars(s.notifyChar))
	s.peripheral.On("Disconnect").Return(nil).Once()

	session, err := Connect(context.Background(), s.peripheral, WithLogger(s.logger))

	s.Assert().Nil(session)
	s.Assert().ErrorIs(err, ErrCharacteristicNotFound)
	var cerr *ConnectError
	s.Require().ErrorAs(err, &cerr)
	s.Assert().Equal("lookup", cerr.Op)
	var nf *device.NotFoundError
	s.Assert().ErrorAs(err, &nf, "lookup detail MUST be preserved")
}

func (s *SessionSuite) TestConnectFailureIsNormalized() {
	// GOAL: Transport connect errors surface as ConnectError with structured cause
	//
	// TEST SCENARIO: Connect returns "bluetooth is turned off" → ConnectError{connect} matching ErrBluetoothOff

	s.peripheral.On("IsConnected").Return(false).Once()
	s.peripheral.On("Connect", mock.Anything, mock.Anything).Return(errors.New("Bluetooth is turned off")).Once()

	_, err := Connect(context.Background(), s.peripheral, WithLogger(s.logger))

	var cerr *ConnectError
	s.Require().ErrorAs(err, &cerr)
	s.Assert().Equal("connect", cerr.Op)
	s.Assert().ErrorIs(err, device.ErrBluetoothOff)
}

func (s *SessionSuite) TestFanOutToAllSubscribers() {
	// GOAL: Every registered subscriber receives the same decoded state
	//
	// TEST SCENARIO: 3 subscribers → one reference frame → identical states everywhere

	session := s.connect()
	subs := []*ChannelSubscriber{NewChannelSubscriber(4), NewChannelSubscriber(4), NewChannelSubscriber(4)}
	for _, sub := range subs {
		session.Subscribe(sub)
	}

	s.peripheral.Push(notifyUUID, referenceFrame)

	var states []protocol.DeviceState
	for _, sub := range subs {
		states = append(states, s.receive(sub))
	}
	s.Assert().Equal(protocol.BeltMoving, states[0].Belt)
	s.Assert().Equal(uint8(12), states[0].Speed)
	s.Assert().Equal(protocol.ModeAutomatic, states[0].Mode)
	s.Assert().Equal(uint32(10), states[0].Time)
	s.Assert().Equal(uint32(50), states[0].Distance)
	s.Assert().Equal(uint32(356), states[0].Steps)
	s.Assert().Equal(uint8(8), states[0].LastSpeed)
	s.Assert().Equal(states[0], states[1], "subscribers MUST see identical states")
	s.Assert().Equal(states[0], states[2], "subscribers MUST see identical states")

	latest, ok := session.Latest()
	s.Assert().True(ok)
	s.Assert().Equal(states[0], latest)
}

func (s *SessionSuite) TestUnsubscribeStopsDelivery() {
	// GOAL: A removed subscriber receives nothing after unsubscribing
	//
	// TEST SCENARIO: subscribe A then B → unsubscribe A → push → B receives, A stays empty

	session := s.connect()
	a, b := NewChannelSubscriber(4), NewChannelSubscriber(4)
	unsubscribe := session.Subscribe(a)
	session.Subscribe(b)

	unsubscribe()
	unsubscribe()
	s.peripheral.Push(notifyUUID, referenceFrame)

	s.receive(b)
	s.Assert().Zero(len(a.C()), "unsubscribed subscriber MUST NOT receive states")
	s.Assert().Equal(1, session.Stats().Subscribers)
}

func (s *SessionSuite) TestDecodeFailureDoesNotStopPump() {
	// GOAL: Malformed notifications are dropped and the pump keeps running
	//
	// TEST SCENARIO: push garbage, short frame, valid frame → only the valid one is delivered

	session := s.connect()
	sub := NewChannelSubscriber(4)
	session.Subscribe(sub)

	s.peripheral.Push(notifyUUID, []byte{0x01, 0x02, 0x03})
	s.peripheral.Push(notifyUUID, []byte{0xF8, 0xA2, 0x01})
	s.peripheral.Push(notifyUUID, referenceFrame)

	st := s.receive(sub)
	s.Assert().Equal(uint32(356), st.Steps)
	stats := session.Stats()
	s.Assert().Equal(uint64(2), stats.FramesDropped)
	s.Assert().Equal(uint64(1), stats.FramesDecoded)
}

func (s *SessionSuite) TestFailingSubscribersAreIsolated() {
	// GOAL: A subscriber error or panic affects neither other subscribers nor later states
	//
	// TEST SCENARIO: panicking + erroring + channel subscriber → two frames → channel gets both

	session := s.connect()
	session.Subscribe(SubscriberFunc(func(protocol.DeviceState) error { panic("boom") }))
	session.Subscribe(SubscriberFunc(func(protocol.DeviceState) error { return errors.New("sink full") }))
	sub := NewChannelSubscriber(4)
	session.Subscribe(sub)

	s.peripheral.Push(notifyUUID, testutils.StateFrame(1, 20, 1, 60, 100, 120, 20))
	s.peripheral.Push(notifyUUID, testutils.StateFrame(0, 0, 1, 61, 100, 121, 20))

	s.Assert().Equal(uint8(20), s.receive(sub).Speed)
	s.Assert().Equal(protocol.BeltStationary, s.receive(sub).Belt)
	s.Assert().Eventually(func() bool { return session.Stats().Failures == 4 }, 2*time.Second, 10*time.Millisecond,
		"each failed delivery MUST be counted")
}

func (s *SessionSuite) TestBlockedSubscriberDoesNotStarveOthers() {
	// GOAL: A subscriber stuck in OnState neither delays other subscribers nor teardown
	//
	// TEST SCENARIO: blocking subscriber + channel subscriber → push → channel receives → Disconnect returns

	session := s.connect()
	release := make(chan struct{})
	defer close(release)
	entered := make(chan struct{}, 1)
	session.Subscribe(SubscriberFunc(func(protocol.DeviceState) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}))
	sub := NewChannelSubscriber(4)
	session.Subscribe(sub)

	s.peripheral.Push(notifyUUID, referenceFrame)

	s.Assert().Equal(uint32(356), s.receive(sub).Steps)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		s.FailNow("blocking subscriber MUST receive the state too")
	}

	disconnected := make(chan error, 1)
	go func() { disconnected <- session.Disconnect() }()
	select {
	case err := <-disconnected:
		s.Assert().NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("Disconnect MUST return while a subscriber is blocked")
	}
	<-session.Done()
}

func (s *SessionSuite) TestLinkLossEndsPump() {
	// GOAL: Closing the notification source terminates delivery
	//
	// TEST SCENARIO: close notifications → Done closes

	session := s.connect()
	s.peripheral.CloseNotifications()

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		s.FailNow("pump MUST stop when the notification source closes")
	}
}

func (s *SessionSuite) TestDisconnectClosesSession() {
	// GOAL: Disconnect tears down the transport once and rejects later commands
	//
	// TEST SCENARIO: Disconnect twice → one transport call → StartBelt returns ErrSessionClosed

	session := s.connect()

	s.Require().NoError(session.Disconnect())
	s.Require().NoError(session.Disconnect())

	s.Assert().ErrorIs(session.StartBelt(context.Background()), ErrSessionClosed)
	s.peripheral.AssertNumberOfCalls(s.T(), "Disconnect", 1)
	<-session.Done()
}

func (s *SessionSuite) TestDisconnectFailureIsReported() {
	// GOAL: A transport failure while disconnecting is surfaced as ConnectError
	//
	// TEST SCENARIO: Disconnect returns error → ConnectError{disconnect}

	s.peripheral.On("IsConnected").Return(true).Once()
	s.peripheral.On("Characteristics").Return(s.chars(s.notifyChar, s.writeChar))
	s.peripheral.On("Subscribe", mock.Anything, s.notifyChar).Return(nil).Once()
	s.peripheral.On("Disconnect").Return(errors.New("hci: command timeout")).Once()

	session, err := Connect(context.Background(), s.peripheral, WithLogger(s.logger))
	s.Require().NoError(err)

	err = session.Disconnect()
	var cerr *ConnectError
	s.Require().ErrorAs(err, &cerr)
	s.Assert().Equal("disconnect", cerr.Op)
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}
