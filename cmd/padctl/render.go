package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/term"

	"github.com/srg/padctl/internal/pad"
	"github.com/srg/padctl/internal/protocol"
)

// formatSpeed renders a speed byte, in tenths of km/h.
func formatSpeed(speed uint8) string {
	return fmt.Sprintf("%d.%d km/h", speed/10, speed%10)
}

// formatDistance renders the distance counter, in tens of meters.
func formatDistance(distance uint32) string {
	return fmt.Sprintf("%d.%02d km", distance/100, distance%100)
}

func formatElapsed(seconds uint32) string {
	d := time.Duration(seconds) * time.Second
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// stateRenderer prints states as text lines or JSON objects.
type stateRenderer struct {
	out     io.Writer
	json    bool
	moving  *color.Color
	stopped *color.Color
	dim     *color.Color
}

func newStateRenderer(out io.Writer, asJSON, colored bool) *stateRenderer {
	r := &stateRenderer{
		out:     out,
		json:    asJSON,
		moving:  color.New(color.FgGreen, color.Bold),
		stopped: color.New(color.FgYellow),
		dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{r.moving, r.stopped, r.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

func (r *stateRenderer) Render(st protocol.DeviceState) error {
	if r.json {
		_, err := fmt.Fprintf(r.out, "%s\n", st.JSON())
		return err
	}

	belt := r.stopped.Sprintf("%-10s", st.Belt)
	if st.Belt == protocol.BeltMoving {
		belt = r.moving.Sprintf("%-10s", st.Belt)
	}
	stamp := st.ReceivedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	_, err := fmt.Fprintf(r.out, "%s  %s  %-9s  %-9s  %s  %-9s  %d steps\n",
		r.dim.Sprint(stamp.Format("15:04:05")),
		belt,
		formatSpeed(st.Speed),
		st.Mode,
		formatElapsed(st.Time),
		formatDistance(st.Distance),
		st.Steps)
	return err
}

// statsDocument lays out a state and session counters with a stable key order.
func statsDocument(address string, st protocol.DeviceState, stats pad.Stats) *orderedmap.OrderedMap[string, any] {
	state := orderedmap.New[string, any]()
	state.Set("belt", st.Belt.String())
	state.Set("speed", st.Speed)
	state.Set("speed_kmh", float64(st.Speed)/10)
	state.Set("mode", st.Mode.String())
	state.Set("time", st.Time)
	state.Set("distance", st.Distance)
	state.Set("distance_km", float64(st.Distance)/100)
	state.Set("steps", st.Steps)
	state.Set("last_speed", st.LastSpeed)

	session := orderedmap.New[string, any]()
	session.Set("commands_sent", stats.CommandsSent)
	session.Set("commands_failed", stats.CommandsFailed)
	session.Set("frames_decoded", stats.FramesDecoded)
	session.Set("frames_dropped", stats.FramesDropped)

	doc := orderedmap.New[string, any]()
	doc.Set("address", address)
	doc.Set("state", state)
	doc.Set("session", session)
	return doc
}

func writeStatsJSON(out io.Writer, doc *orderedmap.OrderedMap[string, any]) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeStatsText(out io.Writer, address string, st protocol.DeviceState) error {
	_, err := fmt.Fprintf(out, `Address:    %s
Belt:       %s
Speed:      %s
Mode:       %s
Time:       %s
Distance:   %s
Steps:      %d
Last speed: %s
`, address, st.Belt, formatSpeed(st.Speed), st.Mode, formatElapsed(st.Time),
		formatDistance(st.Distance), st.Steps, formatSpeed(st.LastSpeed))
	return err
}

// syncWriter serializes writes from the pump goroutine and the command.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
