package pad

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/protocol"
	"github.com/srg/padctl/internal/testutils"
	"github.com/stretchr/testify/suite"
)

// recordingWriter is a device.Characteristic capturing every write with the
// clock reading at the moment of the write.
type recordingWriter struct {
	mu     sync.Mutex
	clock  Clock
	frames [][]byte
	times  []time.Time
	fail   error
}

func (w *recordingWriter) UUID() string { return "0000fe02-0000-1000-8000-00805f9b34fb" }

func (w *recordingWriter) Write(data []byte, _ bool, _ time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, append([]byte(nil), data...))
	w.times = append(w.times, w.clock.Now())
	return w.fail
}

func (w *recordingWriter) snapshot() ([][]byte, []time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.frames...), append([]time.Time(nil), w.times...)
}

type CommandChannelSuite struct {
	suite.Suite

	logger *logrus.Logger
	clock  *testutils.FakeClock
	writer *recordingWriter
	ch     *CommandChannel
}

func (s *CommandChannelSuite) SetupTest() {
	s.logger = testutils.NewTestHelper(s.T()).Logger
	s.clock = testutils.NewFakeClock(epoch)
	s.writer = &recordingWriter{clock: s.clock}
	s.ch = NewCommandChannel(s.writer, NewRateLimiter(MinCommandInterval, s.clock), time.Second, s.logger)
}

func (s *CommandChannelSuite) TestFirstCommandIsImmediate() {
	// GOAL: A freshly created channel writes the first command without waiting
	//
	// TEST SCENARIO: send one command → no sleep requested → exact frame written

	s.Require().NoError(s.ch.Send(context.Background(), protocol.StartBelt()))

	frames, _ := s.writer.snapshot()
	s.Assert().Empty(s.clock.Sleeps(), "first command MUST NOT wait")
	s.Assert().Equal([][]byte{{0xF7, 0xA2, 0x04, 0x01, 0xA7, 0xFD}}, frames)
}

func (s *CommandChannelSuite) TestBackToBackCommandsAreSpaced() {
	// GOAL: Two immediate sends are separated by the full interval
	//
	// TEST SCENARIO: send twice → second waits 890ms → write times 890ms apart

	s.Require().NoError(s.ch.Send(context.Background(), protocol.SetSpeed(30)))
	s.Require().NoError(s.ch.Send(context.Background(), protocol.Stop()))

	_, times := s.writer.snapshot()
	s.Require().Len(times, 2)
	s.Assert().Equal([]time.Duration{MinCommandInterval}, s.clock.Sleeps())
	s.Assert().Equal(MinCommandInterval, times[1].Sub(times[0]))
}

func (s *CommandChannelSuite) TestConcurrentSendersNeverOverlap() {
	// GOAL: Concurrent callers are serialized and every gap honours the interval
	//
	// TEST SCENARIO: 10 goroutines send at once → 10 intact frames → all gaps ≥ 890ms

	const senders = 10
	cmds := []protocol.Command{
		protocol.StartBelt(), protocol.Stop(), protocol.SetSpeed(25),
		protocol.SetMode(protocol.ModeManual), protocol.RequestStats(),
	}
	valid := make(map[string]bool)
	for _, c := range cmds {
		valid[c.Frame().Hex()] = true
	}

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Assert().NoError(s.ch.Send(context.Background(), cmds[i%len(cmds)]))
		}(i)
	}
	wg.Wait()

	frames, times := s.writer.snapshot()
	s.Require().Len(frames, senders)
	for _, f := range frames {
		s.Assert().True(valid[protocol.Frame(f).Hex()], "frame %x MUST be one complete command", f)
	}
	for i := 1; i < len(times); i++ {
		s.Assert().GreaterOrEqual(times[i].Sub(times[i-1]), MinCommandInterval, "gap %d MUST honour the interval", i)
	}

	sent, failed := s.ch.Stats()
	s.Assert().Equal(uint64(senders), sent)
	s.Assert().Zero(failed)
}

func (s *CommandChannelSuite) TestFailedWriteConsumesBudget() {
	// GOAL: A failed write is reported and still counts as a transmission
	//
	// TEST SCENARIO: write fails → TransportError wrapping the cause → next send waits the full interval

	cause := errors.New("write: device not connected")
	s.writer.fail = cause

	err := s.ch.Send(context.Background(), protocol.SetSpeed(10))

	var terr *TransportError
	s.Require().ErrorAs(err, &terr, "failure MUST be a TransportError")
	s.Assert().ErrorIs(err, cause, "transport error MUST be preserved")
	s.Assert().Equal(protocol.SetSpeed(10), terr.Command)

	s.writer.fail = nil
	s.Require().NoError(s.ch.Send(context.Background(), protocol.Stop()))
	s.Assert().Equal([]time.Duration{MinCommandInterval}, s.clock.Sleeps(), "failed send MUST consume the interval")

	sent, failed := s.ch.Stats()
	s.Assert().Equal(uint64(2), sent)
	s.Assert().Equal(uint64(1), failed)
}

func (s *CommandChannelSuite) TestCancelledWaitWritesNothing() {
	// GOAL: A caller whose context ends while waiting gives up without writing
	//
	// TEST SCENARIO: first send ok → second waits on a clock that never fires → cancel → ctx error, one write

	writer := &recordingWriter{clock: testutils.NewBlockingClock(epoch)}
	ch := NewCommandChannel(writer, NewRateLimiter(MinCommandInterval, testutils.NewBlockingClock(epoch)), time.Second, s.logger)
	s.Require().NoError(ch.Send(context.Background(), protocol.StartBelt()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := ch.Send(ctx, protocol.Stop())

	s.Assert().ErrorIs(err, context.DeadlineExceeded)
	frames, _ := writer.snapshot()
	s.Assert().Len(frames, 1, "cancelled command MUST NOT be written")
}

func (s *CommandChannelSuite) TestRealClockSpacing() {
	// GOAL: With the wall clock two immediate sends take at least one interval
	//
	// TEST SCENARIO: default limiter → two sends → elapsed ≥ 890ms

	writer := &recordingWriter{clock: SystemClock}
	ch := NewCommandChannel(writer, nil, time.Second, s.logger)

	start := time.Now()
	s.Require().NoError(ch.Send(context.Background(), protocol.RequestStats()))
	s.Require().NoError(ch.Send(context.Background(), protocol.RequestStats()))

	s.Assert().GreaterOrEqual(time.Since(start), MinCommandInterval)
}

func TestCommandChannelSuite(t *testing.T) {
	suite.Run(t, new(CommandChannelSuite))
}
