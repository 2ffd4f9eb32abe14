package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/pad"
	"github.com/srg/padctl/internal/protocol"
)

// Controller is the part of a pad session the HTTP API drives.
type Controller interface {
	StartBelt(ctx context.Context) error
	StopBelt(ctx context.Context) error
	SetSpeed(ctx context.Context, speed uint8) error
	SetMode(ctx context.Context, mode protocol.Mode) error
	Latest() (protocol.DeviceState, bool)
	Subscribe(sub pad.Subscriber) (unsubscribe func())
}

// HistorySource provides recent states for /!history.
type HistorySource interface {
	Snapshot() []protocol.DeviceState
}

type Option func(*Server)

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithHistory(h HistorySource) Option {
	return func(s *Server) { s.history = h }
}

// WithShutdownTimeout bounds how long Serve waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

// Server routes HTTP requests to a Controller. It implements http.Handler.
type Server struct {
	ctrl    Controller
	history HistorySource
	hub     *Hub
	logger  *logrus.Logger
	mux     *http.ServeMux

	upgrader        websocket.Upgrader
	baseCtx         context.Context
	shutdownTimeout time.Duration
}

// NewServer creates the API for ctrl. Websocket clients receive states while
// Serve runs.
func NewServer(ctrl Controller, opts ...Option) *Server {
	s := &Server{
		ctrl:            ctrl,
		logger:          logrus.New(),
		baseCtx:         context.Background(),
		shutdownTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.logger)

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/!start_belt", s.allow(s.handleStartBelt, http.MethodPost))
	s.mux.HandleFunc("/!stop_belt", s.allow(s.handleStopBelt, http.MethodPost))
	s.mux.HandleFunc("/!change_speed", s.allow(s.handleChangeSpeed, http.MethodGet, http.MethodPost))
	s.mux.HandleFunc("/!change_mode", s.allow(s.handleChangeMode, http.MethodPost))
	s.mux.HandleFunc("/!state", s.allow(s.handleState, http.MethodGet))
	s.mux.HandleFunc("/!history", s.allow(s.handleHistory, http.MethodGet))
	s.mux.HandleFunc("/ws", s.handleWebsocket)
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeRejection(w, &rejection{status: http.StatusNotFound, reason: ReasonNotFound}, s.logger)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Hub returns the websocket hub fed by the controller's subscription.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Serve listens on l until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.baseCtx = ctx
	unsubscribe := s.ctrl.Subscribe(s.hub)
	defer unsubscribe()
	defer s.hub.Close()

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()

	s.logger.WithField("address", l.Addr().String()).Info("HTTP API listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	s.logger.Info("HTTP API stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) (any, *rejection)

// allow adapts h to http.HandlerFunc, rejecting other methods and rendering
// the result or rejection as JSON.
func (s *Server) allow(h handlerFunc, methods ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowed := false
		for _, m := range methods {
			if r.Method == m {
				allowed = true
				break
			}
		}
		if !allowed {
			w.Header().Set("Allow", strings.Join(methods, ", "))
			writeRejection(w, &rejection{status: http.StatusMethodNotAllowed, reason: ReasonMethodNotAllowed}, s.logger)
			return
		}

		defer func() {
			if p := recover(); p != nil {
				s.logger.WithFields(logrus.Fields{"path": r.URL.Path, "panic": p}).Error("Unhandled rejection")
				writeRejection(w, &rejection{status: http.StatusInternalServerError, reason: ReasonUnhandled}, s.logger)
			}
		}()

		body, rej := h(w, r)
		if rej != nil {
			s.logger.WithFields(logrus.Fields{
				"path":   r.URL.Path,
				"status": rej.status,
				"reason": rej.reason,
			}).Warn("Request rejected")
			writeRejection(w, rej, s.logger)
			return
		}
		writeJSON(w, http.StatusOK, body, s.logger)
	}
}

func (s *Server) handleStartBelt(_ http.ResponseWriter, r *http.Request) (any, *rejection) {
	if err := s.ctrl.StartBelt(r.Context()); err != nil {
		return nil, internalError(err)
	}
	return "Belt Started!", nil
}

func (s *Server) handleStopBelt(_ http.ResponseWriter, r *http.Request) (any, *rejection) {
	if err := s.ctrl.StopBelt(r.Context()); err != nil {
		return nil, internalError(err)
	}
	return "Belt Stopped!", nil
}

func (s *Server) handleChangeSpeed(_ http.ResponseWriter, r *http.Request) (any, *rejection) {
	speed, rej := parseSpeed(r)
	if rej != nil {
		return nil, rej
	}
	if err := s.ctrl.SetSpeed(r.Context(), uint8(speed)); err != nil {
		return nil, internalError(err)
	}
	return fmt.Sprintf("Speed changed to %d", speed), nil
}

// parseSpeed reads the speed query parameter. A missing parameter means 0.
func parseSpeed(r *http.Request) (int, *rejection) {
	raw, present := r.URL.Query()["speed"]
	if !present || len(raw) == 0 {
		return 0, nil
	}
	speed, err := strconv.Atoi(raw[0])
	if err != nil {
		return 0, badRequest(ReasonSpeedNotProvided)
	}
	if speed > protocol.MaxSpeed || speed < protocol.MinSpeed {
		return 0, badRequest(fmt.Sprintf("Speed not allowed! %d", speed))
	}
	return speed, nil
}

func (s *Server) handleChangeMode(_ http.ResponseWriter, r *http.Request) (any, *rejection) {
	raw := r.URL.Query().Get("mode")
	if raw == "" {
		return nil, badRequest(ReasonModeNotProvided)
	}
	mode, err := protocol.ParseMode(raw)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("Mode not allowed! %s", raw))
	}
	if err := s.ctrl.SetMode(r.Context(), mode); err != nil {
		return nil, internalError(err)
	}
	return fmt.Sprintf("Mode changed to %s", mode), nil
}

func (s *Server) handleState(_ http.ResponseWriter, _ *http.Request) (any, *rejection) {
	st, ok := s.ctrl.Latest()
	if !ok {
		return nil, &rejection{status: http.StatusNotFound, reason: ReasonNoStateYet}
	}
	return st, nil
}

func (s *Server) handleHistory(_ http.ResponseWriter, _ *http.Request) (any, *rejection) {
	if s.history == nil {
		return []protocol.DeviceState{}, nil
	}
	return s.history.Snapshot(), nil
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeRejection(w, &rejection{status: http.StatusMethodNotAllowed, reason: ReasonMethodNotAllowed}, s.logger)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.logger.WithError(err).Warn("Failed to upgrade websocket connection")
		return
	}
	s.hub.AddClient(s.baseCtx, conn)
}
