// Package pad is the WalkingPad driver core.
//
// A Session owns one connected peripheral. Commands go through a
// CommandChannel that serializes writes and keeps at least
// MinCommandInterval between two frames. Inbound state notifications are
// decoded by a Pump and fanned out to every registered Subscriber.
//
//	s, err := pad.Connect(ctx, peripheral, pad.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer s.Disconnect()
//
//	states := pad.NewChannelSubscriber(16)
//	defer s.Subscribe(states)()
//
//	_ = s.StartBelt(ctx)
//	_ = s.SetSpeed(ctx, 30)
//	for st := range states.C() {
//	    fmt.Println(st)
//	}
package pad
