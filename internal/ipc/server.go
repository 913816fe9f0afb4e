package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"captured/internal/bus"
	"captured/internal/logging"
)

// ServerConfig configures the IPC server.
type ServerConfig struct {
	Addr         string // Loopback TCP address
	Version      string // Server version
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:         addr,
		Version:      "1.0.0",
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
	}
}

// Server accepts control connections and fans captured events out to
// streaming clients. Each streaming connection holds its own bus
// subscription, so one slow client never stalls another.
type Server struct {
	cfg     ServerConfig
	service *Service
	events  *bus.Bus
	log     *logging.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*conn]struct{}

	streams atomic.Int64
	running atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// conn is one accepted client connection.
type conn struct {
	net.Conn

	// writeMu serializes response frames with streamed event frames.
	writeMu sync.Mutex

	// streaming is set once; a second stream request on the same
	// connection is an error.
	streaming bool

	cancel context.CancelFunc
}

// NewServer creates a server for the given service and event source.
func NewServer(cfg ServerConfig, service *Service, events *bus.Bus) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		service: service,
		events:  events,
		log:     logging.Default().WithComponent("ipc"),
		conns:   make(map[*conn]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.running.Store(true)
	s.log.Info("listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(listener)

	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Subscribers reports the number of live event streams.
func (s *Server) Subscribers() int {
	return int(s.streams.Load())
}

// Stop shuts the server down and closes every client connection.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		netConn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				continue
			}
		}

		ctx, cancel := context.WithCancel(s.ctx)
		c := &conn{Conn: netConn, cancel: cancel}

		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(ctx, c)
	}
}

func (s *Server) handleConn(ctx context.Context, c *conn) {
	defer s.wg.Done()
	defer func() {
		c.cancel()
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		msg, err := ReadMessage(c)
		if err != nil {
			if err == io.EOF || errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Streaming clients are read-silent; a ping keeps
				// the connection verifiably alive.
				if s.send(c, NewMessage(MsgPing, 0, nil)) != nil {
					return
				}
				continue
			}
			s.log.Warn("read failed", "error", err)
			return
		}

		resp := s.process(ctx, c, msg)
		if resp == nil {
			continue
		}
		if err := s.send(c, resp); err != nil {
			return
		}
	}
}

func (s *Server) process(ctx context.Context, c *conn, msg *Message) *Message {
	reqID := msg.Header.RequestID

	switch msg.Header.Type {
	case MsgPing:
		return NewMessage(MsgPong, reqID, nil)

	case MsgPong:
		return nil

	case MsgHandshake:
		var req HandshakeRequest
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(reqID, ErrInvalidRequest, "invalid handshake")
		}
		resp, err := NewResponse(MsgHandshakeAck, reqID, &HandshakeResponse{
			ServerVersion:   s.cfg.Version,
			ProtocolVersion: ProtocolVersion,
		})
		if err != nil {
			return NewErrorMessage(reqID, ErrInternalError, err.Error())
		}
		return resp

	case MsgStartCapture:
		resp, _ := NewResponse(MsgStartCaptureResp, reqID, s.service.Start())
		return resp

	case MsgStopCapture:
		resp, _ := NewResponse(MsgStopCaptureResp, reqID, s.service.Stop())
		return resp

	case MsgStatusRequest:
		resp, _ := NewResponse(MsgStatusResponse, reqID, s.service.Status(s.Subscribers()))
		return resp

	case MsgStreamEvents:
		if c.streaming {
			return NewErrorMessage(reqID, ErrInvalidRequest, "already streaming")
		}
		c.streaming = true
		resp, _ := NewResponse(MsgStreamEventsResp, reqID, &ControlResponse{Message: "Streaming"})
		if err := s.send(c, resp); err != nil {
			return nil
		}
		s.wg.Add(1)
		go s.streamEvents(ctx, c)
		return nil

	default:
		return NewErrorMessage(reqID, ErrInvalidRequest, "unknown message type")
	}
}

// streamEvents pushes bus events to one connection until the bus
// closes, the connection dies, or the server stops. The subscription
// belongs to this connection alone; a dead client tears down only its
// own stream.
func (s *Server) streamEvents(ctx context.Context, c *conn) {
	defer s.wg.Done()

	s.streams.Add(1)
	defer s.streams.Add(-1)

	sub := s.events.Subscribe()
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrClosed) {
				s.send(c, NewMessage(MsgStreamEnd, 0, nil))
			}
			return
		}

		payload, err := Encode(ev)
		if err != nil {
			continue
		}
		if err := s.send(c, NewMessage(MsgEvent, 0, payload)); err != nil {
			s.log.Error("event stream send failed", "remote", c.RemoteAddr().String(), "error", err)
			c.cancel()
			return
		}
	}
}

func (s *Server) send(c *conn, msg *Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return msg.Write(c)
}
