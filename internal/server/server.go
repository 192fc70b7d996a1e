// Package server owns the sync listener lifecycle and the per-connection
// request loop.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/emberhq/embersync/internal/addr"
	"github.com/emberhq/embersync/internal/locsync"
	"github.com/emberhq/embersync/internal/observability"
	"github.com/emberhq/embersync/internal/protocol/frame"
	"github.com/emberhq/embersync/internal/protocol/locwire"
)

var (
	ErrAlreadyListening = errors.New("server: listener already running")
	ErrListenerBind     = errors.New("server: listener bind failed")
	ErrNotListening     = errors.New("server: not listening")
	ErrShutdownTimeout  = errors.New("server: drain deadline exceeded")
)

// Phase describes listener lifecycle transitions.
type Phase string

const (
	PhaseStopped   Phase = "stopped"
	PhaseStarting  Phase = "starting"
	PhaseListening Phase = "listening"
	PhaseDraining  Phase = "draining"
)

// Config configures the sync endpoint.
type Config struct {
	// ListenAddr defaults to the sync port companions expect.
	ListenAddr string
	// DrainTimeout bounds the wait for in-flight calls at shutdown.
	DrainTimeout time.Duration
	// NavigateTimeout bounds one navigation round-trip to the UI thread.
	NavigateTimeout time.Duration
	// ReadTimeout; zero means connections may idle indefinitely, which is
	// normal for a companion that holds its connection between clicks.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Limits       frame.Limits
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:50058",
		DrainTimeout:    30 * time.Second,
		NavigateTimeout: 10 * time.Second,
		ReadTimeout:     0,
		WriteTimeout:    10 * time.Second,
		Limits:          frame.DefaultLimits(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = def.DrainTimeout
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = def.NavigateTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	return c
}

// Server owns the accept loop and drains it on shutdown. It runs entirely on
// its own goroutines; nothing here may block or crash the host UI thread.
type Server struct {
	cfg Config
	svc *locsync.Service

	mu    sync.Mutex
	phase Phase
	ln    net.Listener

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	inflight    sync.WaitGroup
	draining    atomic.Bool
	clientCount atomic.Int64
}

func New(cfg Config, svc *locsync.Service) *Server {
	return &Server{
		cfg:   cfg.withDefaults(),
		svc:   svc,
		phase: PhaseStopped,
		conns: make(map[net.Conn]struct{}),
	}
}

// Phase returns the current lifecycle phase.
func (s *Server) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Addr returns the bound listener address, useful with a ":0" config.
func (s *Server) Addr() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil, ErrNotListening
	}
	return s.ln.Addr(), nil
}

// ActiveClients reports open companion connections.
func (s *Server) ActiveClients() int64 {
	return s.clientCount.Load()
}

// Start binds the listener and launches the accept loop. A bind failure
// aborts this attempt and is not retried; a Start while already listening is
// rejected without disturbing the running listener.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.phase != PhaseStopped {
		phase := s.phase
		s.mu.Unlock()
		log.Warn().Str("phase", string(phase)).Msg("start ignored: listener already running")
		return fmt.Errorf("%w: phase=%s", ErrAlreadyListening, phase)
	}
	s.phase = PhaseStarting
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.mu.Lock()
		s.phase = PhaseStopped
		s.mu.Unlock()
		log.Error().Str("addr", s.cfg.ListenAddr).Err(err).Msg("listener bind failed")
		return fmt.Errorf("%w: addr=%s: %v", ErrListenerBind, s.cfg.ListenAddr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.phase = PhaseListening
	s.mu.Unlock()
	s.draining.Store(false)

	log.Info().Str("addr", ln.Addr().String()).Msg("sync listener started")
	go s.acceptLoop(ln)
	return nil
}

// Shutdown drains in-flight calls within the configured bound, then forces
// remaining connections closed. It returns ErrShutdownTimeout when the drain
// deadline passed with calls still running; those calls are abandoned, never
// left half-applied, because each call's effect is one atomic state update.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseListening {
		phase := s.phase
		s.mu.Unlock()
		if phase == PhaseStopped {
			return nil
		}
		return fmt.Errorf("%w: phase=%s", ErrNotListening, phase)
	}
	s.phase = PhaseDraining
	ln := s.ln
	s.ln = nil
	s.mu.Unlock()

	s.draining.Store(true)
	_ = ln.Close()
	log.Info().Dur("drain_timeout", s.cfg.DrainTimeout).Msg("sync listener draining")

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	var drainErr error
	select {
	case <-done:
	case <-time.After(s.cfg.DrainTimeout):
		observability.RecordDrainTimeout()
		log.Warn().Msg("shutdown timeout: abandoning in-flight calls")
		drainErr = ErrShutdownTimeout
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("shutdown cancelled: abandoning in-flight calls")
		drainErr = ctx.Err()
	}

	s.closeAllConns()
	s.mu.Lock()
	s.phase = PhaseStopped
	s.mu.Unlock()
	log.Info().Msg("sync listener stopped")
	return drainErr
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("accept loop panicked; sync service disabled")
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.draining.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error().Err(err).Msg("accept failed; sync listener exiting")
			return
		}
		s.trackConn(conn)
		go s.handleConn(conn)
	}
}

// handleConn serves one companion connection: one request frame in, one ack
// frame out, repeated until the peer goes away or the server drains.
func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("connection handler panicked")
		}
	}()
	defer conn.Close()
	defer s.untrackConn(conn)

	remote := conn.RemoteAddr().String()
	active := s.clientCount.Add(1)
	observability.ClientConnected()
	log.Info().Str("remote", remote).Int64("active_clients", active).Msg("companion connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		observability.ClientDisconnected()
		log.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("companion disconnected")
	}()

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		fr, err := locwire.ReadFrame(conn, s.cfg.Limits)
		if err != nil {
			if !errors.Is(err, frame.ErrShortHeader) {
				log.Warn().Str("remote", remote).Err(err).Msg("read frame failed")
			}
			return
		}
		if s.draining.Load() {
			return
		}

		req, err := locwire.DecodeRequestFrame(fr)
		if err != nil {
			log.Warn().Str("remote", remote).Err(err).Msg("malformed sync request")
			return
		}

		ack := s.dispatch(fr.Header.MessageID, req)
		payload, err := locwire.EncodeAckFrame(fr.Header.MessageID, ack)
		if err != nil {
			log.Error().Str("remote", remote).Err(err).Msg("encode ack failed")
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if _, err := conn.Write(payload); err != nil {
			log.Warn().Str("remote", remote).Err(err).Msg("write ack failed")
			return
		}
	}
}

// dispatch runs one SetLocation call, counted for shutdown draining.
func (s *Server) dispatch(messageID uint64, req locwire.Request) locwire.Ack {
	s.inflight.Add(1)
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NavigateTimeout)
	defer cancel()

	res := s.svc.SetLocation(ctx, addr.Offset(req.Offset))
	log.Debug().
		Uint64("message_id", messageID).
		Str("status", string(res.Status)).
		Msg("sync request handled")
	return locwire.Ack{
		Offset:      req.Offset,
		Status:      res.Status,
		Message:     res.Message,
		TimestampMS: uint64(time.Now().UnixMilli()),
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
