package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/transport/queue"
)

var (
	ErrClosed        = errors.New("ws: connection closed")
	ErrNotConnected  = errors.New("ws: not connected")
	ErrSendQueueFull = errors.New("ws: send queue full")
)

// ConnectError is reported through Listener.ConnectFailed when the dial or the
// handshake write fails. There is no retry.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("connect %s: %v", e.URL, e.Err) }

func (e *ConnectError) Unwrap() error { return e.Err }

// Listener callbacks run on transport goroutines. Implementations must not
// touch simulation state directly.
type Listener interface {
	Connected()
	Disconnected(err error)
	ConnectFailed(err error)
}

type ClientOptions struct {
	URL   string
	Hello protocol.InitialClientData

	// Simulated inbound latency. Zero disables the delay stage.
	LagMin time.Duration
	LagMax time.Duration

	OutboundQueue int
	Logger        *log.Logger
}

// Client is the client side of the message channel. Decoded frames are pushed
// onto the inbound queue in arrival order; the simulation tick drains it.
type Client struct {
	opts     ClientOptions
	inbound  *queue.Queue[protocol.Message]
	listener Listener

	out    chan []byte
	closed chan struct{}
	once   sync.Once
	// Set by Close. Only a local close flushes queued frames.
	flush atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewClient(opts ClientOptions, inbound *queue.Queue[protocol.Message], l Listener) *Client {
	if opts.OutboundQueue <= 0 {
		opts.OutboundQueue = 256
	}
	if opts.LagMax < opts.LagMin {
		opts.LagMax = opts.LagMin
	}
	return &Client{
		opts:     opts,
		inbound:  inbound,
		listener: l,
		out:      make(chan []byte, opts.OutboundQueue),
		closed:   make(chan struct{}),
	}
}

// Connect dials on its own goroutine and returns immediately. The outcome is
// reported through the listener.
func (c *Client) Connect(ctx context.Context) {
	go c.run(ctx)
}

func (c *Client) run(ctx context.Context) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
	}
	conn, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		c.listener.ConnectFailed(&ConnectError{URL: c.opts.URL, Err: err})
		return
	}

	// InitialClientData goes out before anything else can be queued.
	b, err := protocol.Encode(&c.opts.Hello)
	if err == nil {
		err = writeFrame(conn, b)
	}
	if err != nil {
		_ = conn.Close()
		c.listener.ConnectFailed(&ConnectError{URL: c.opts.URL, Err: err})
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.listener.Connected()

	go c.writeLoop(conn)
	err = c.readLoop(conn)

	c.shutdown()
	_ = conn.Close()
	c.listener.Disconnected(err)
}

type pending struct {
	at  time.Time
	msg []byte
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	var delayed chan pending
	var wg sync.WaitGroup
	if c.opts.LagMax > 0 {
		// One goroutine serves every frame in order, so the delay never
		// reorders the stream.
		delayed = make(chan pending, 1024)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range delayed {
				if d := time.Until(p.at); d > 0 {
					select {
					case <-time.After(d):
					case <-c.closed:
						return
					}
				}
				c.deliver(p.msg)
			}
		}()
		defer wg.Wait()
		defer close(delayed)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return nil
			}
			select {
			case <-c.closed:
				return nil
			default:
			}
			return err
		}
		if delayed == nil {
			c.deliver(msg)
			continue
		}
		select {
		case delayed <- pending{at: time.Now().Add(c.lag()), msg: msg}:
		case <-c.closed:
			return nil
		}
	}
}

func (c *Client) lag() time.Duration {
	span := c.opts.LagMax - c.opts.LagMin
	if span <= 0 {
		return c.opts.LagMin
	}
	return c.opts.LagMin + time.Duration(rand.Int63n(int64(span)+1))
}

// deliver queues whatever Decode produced: an *Unknown for frames outside the
// taxonomy, so the tick fails on it in arrival order.
func (c *Client) deliver(b []byte) {
	m, err := protocol.Decode(b)
	if err != nil && c.opts.Logger != nil {
		c.opts.Logger.Printf("decode: %v", err)
	}
	c.inbound.Push(m)
}

func (c *Client) writeLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.closed:
			if !c.flush.Load() {
				// The peer went away: pending sends are dropped.
				return
			}
			// Flush what the tick already handed over, then say goodbye.
			for {
				select {
				case b := <-c.out:
					if writeFrame(conn, b) != nil {
						return
					}
				default:
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
					return
				}
			}
		case b := <-c.out:
			if err := writeFrame(conn, b); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// Send queues m without blocking the caller.
func (c *Client) Send(m protocol.Message) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	select {
	case c.out <- b:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close ends the connection after flushing queued frames.
func (c *Client) Close() error {
	c.flush.Store(true)
	c.shutdown()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	// Give the writer a moment to flush and send the close frame; the server
	// answers with its own close which ends the reader.
	time.AfterFunc(time.Second, func() { _ = conn.Close() })
	return nil
}

func (c *Client) shutdown() { c.once.Do(func() { close(c.closed) }) }
