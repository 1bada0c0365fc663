package kds

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait       = 5 * time.Second
	defaultMaxMessageBytes = 4096
)

// ErrConnClosed is returned by Send once the connection has started closing.
var ErrConnClosed = errors.New("kds: connection closed")

// Client is one registered duplex channel as seen by the registry and the
// dispatcher.
type Client interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// FrameConn is a Client that can also read inbound frames. The session
// handler owns exactly one per connection.
type FrameConn interface {
	Client
	ReadFrame() ([]byte, error)
}

// ConnState is the lifecycle of a Conn: open until Close starts, closed once
// the socket is released.
type ConnState int32

const (
	StateOpen ConnState = iota
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnOptions tunes a Conn. Zero values fall back to defaults.
type ConnOptions struct {
	// WriteWait bounds every write so one slow client cannot stall a broadcast.
	WriteWait       time.Duration
	MaxMessageBytes int64
}

// Conn wraps a gorilla websocket connection. Writes are serialized because
// gorilla allows a single concurrent writer; reads belong to the session
// goroutine.
type Conn struct {
	id        string
	ws        *websocket.Conn
	writeWait time.Duration

	writeMu   sync.Mutex
	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

func NewConn(ws *websocket.Conn, opts ConnOptions) *Conn {
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = defaultMaxMessageBytes
	}
	ws.SetReadLimit(opts.MaxMessageBytes)

	return &Conn{
		id:        uuid.NewString(),
		ws:        ws,
		writeWait: opts.WriteWait,
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) State() ConnState { return ConnState(c.state.Load()) }

// Send writes one text frame.
func (c *Conn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.State() != StateOpen {
		return ErrConnClosed
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// ReadFrame blocks until the next text or binary frame arrives.
func (c *Conn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// Close is idempotent. It does not wait for an in-flight write; closing the
// socket makes that write fail.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		c.closeErr = c.ws.Close()
		c.state.Store(int32(StateClosed))
	})
	return c.closeErr
}
