package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"captured/internal/bus"
)

// Common errors
var (
	ErrNotConnected     = errors.New("not connected to daemon")
	ErrDaemonNotRunning = errors.New("daemon is not running")
)

// ClientConfig configures the IPC client.
type ClientConfig struct {
	Addr           string
	ClientName     string
	ClientVersion  string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(addr string) ClientConfig {
	return ClientConfig{
		Addr:           addr,
		ClientName:     "capturectl",
		ClientVersion:  "1.0.0",
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Client is a synchronous client for the captured control protocol.
// One connection serves either request/response calls or one event
// stream; it is not safe for concurrent use.
type Client struct {
	cfg    ClientConfig
	conn   net.Conn
	nextID atomic.Uint32

	mu sync.Mutex
}

// Dial connects to the daemon and performs the protocol handshake.
func Dial(cfg ClientConfig) (*Client, error) {
	conn, err := net.DialTimeout("tcp", cfg.Addr, cfg.ConnectTimeout)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return nil, fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
		}
		return nil, err
	}

	c := &Client{cfg: cfg, conn: conn}

	resp, err := c.call(MsgHandshake, &HandshakeRequest{
		ClientVersion:   cfg.ClientVersion,
		ClientName:      cfg.ClientName,
		ProtocolVersion: ProtocolVersion,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if resp.Header.Type != MsgHandshakeAck {
		conn.Close()
		return nil, fmt.Errorf("handshake: unexpected response type %#x", resp.Header.Type)
	}

	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Ping checks that the daemon is responsive.
func (c *Client) Ping() error {
	resp, err := c.call(MsgPing, nil)
	if err != nil {
		return err
	}
	if resp.Header.Type != MsgPong {
		return fmt.Errorf("unexpected response type %#x", resp.Header.Type)
	}
	return nil
}

// Start asks the daemon to begin capturing.
func (c *Client) Start() (*ControlResponse, error) {
	var out ControlResponse
	if err := c.request(MsgStartCapture, nil, MsgStartCaptureResp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stop asks the daemon to stop capturing.
func (c *Client) Stop() (*ControlResponse, error) {
	var out ControlResponse
	if err := c.request(MsgStopCapture, nil, MsgStopCaptureResp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var out StatusResponse
	if err := c.request(MsgStatusRequest, &StatusRequest{}, MsgStatusResponse, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamEvents switches the connection into streaming mode and invokes
// fn for every received event until ctx is cancelled, the server ends
// the stream, or the connection fails. A nil return means the server
// closed the stream cleanly.
func (c *Client) StreamEvents(ctx context.Context, fn func(bus.Event)) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	var out ControlResponse
	if err := c.request(MsgStreamEvents, nil, MsgStreamEventsResp, &out); err != nil {
		return err
	}

	// Unblock the read when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		msg, err := ReadMessage(c.conn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		switch msg.Header.Type {
		case MsgEvent:
			var ev bus.Event
			if err := Decode(msg.Payload, &ev); err != nil {
				continue
			}
			fn(ev)
		case MsgStreamEnd:
			return nil
		case MsgPing:
			if err := c.write(NewMessage(MsgPong, msg.Header.RequestID, nil)); err != nil {
				return err
			}
		}
	}
}

// request performs one call and decodes the expected response type.
func (c *Client) request(reqType MessageType, in any, wantType MessageType, out any) error {
	resp, err := c.call(reqType, in)
	if err != nil {
		return err
	}
	if resp.Header.Type != wantType {
		return fmt.Errorf("unexpected response type %#x", resp.Header.Type)
	}
	return Decode(resp.Payload, out)
}

// call sends one request and waits for its correlated response,
// answering server pings along the way.
func (c *Client) call(msgType MessageType, in any) (*Message, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var payload []byte
	if in != nil {
		var err error
		payload, err = Encode(in)
		if err != nil {
			return nil, err
		}
	}

	reqID := c.nextID.Add(1)
	if err := c.write(NewMessage(msgType, reqID, payload)); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.cfg.RequestTimeout)
	c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		msg, err := ReadMessage(c.conn)
		if err != nil {
			return nil, err
		}

		switch {
		case msg.Header.Type == MsgPing:
			if err := c.write(NewMessage(MsgPong, msg.Header.RequestID, nil)); err != nil {
				return nil, err
			}
		case msg.Header.RequestID != reqID:
			// Stale frame from a previous exchange; skip it.
		case msg.Header.Type == MsgError:
			var e ErrorResponse
			if err := Decode(msg.Payload, &e); err != nil {
				return nil, fmt.Errorf("daemon error (undecodable payload)")
			}
			return nil, fmt.Errorf("daemon error %d: %s", e.Code, e.Message)
		default:
			return msg, nil
		}
	}
}

func (c *Client) write(msg *Message) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.RequestTimeout))
	return msg.Write(c.conn)
}
