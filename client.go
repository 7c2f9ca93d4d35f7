package osc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// destination is one (host, port) pair the client broadcasts to.
type destination struct {
	host string
	port int
	addr *net.UDPAddr
}

// Client is a fire-and-forget UDP sender to one or more destinations, per
// spec.md §4.5. Unlike the teacher's single-destination UDPClient, it
// retains a list of destinations and fans a single built datagram out to
// all of them on Send.
//
// A Client is not safe for concurrent use without external
// synchronization, per spec.md §5: the underlying socket is exclusive to
// one Client.
type Client struct {
	mu             sync.Mutex
	destinations   []destination
	conn           *net.UDPConn
	closed         bool
	logger         *slog.Logger
	strictTypeTags bool
}

// NewClient returns a Client with no destinations configured.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{closed: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add validates and appends a destination. host must be non-empty and
// port must be positive, or Add fails with ErrValidation.
func (c *Client) Add(host string, port int) error {
	if host == "" {
		return fmt.Errorf("%w: destination host must not be empty", ErrValidation)
	}
	if port <= 0 {
		return fmt.Errorf("%w: destination port must be positive, got %d", ErrValidation, port)
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.destinations = append(c.destinations, destination{host: host, port: port, addr: addr})
	return nil
}

// Remove deletes the first destination matching (host, port).
func (c *Client) Remove(host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, d := range c.destinations {
		if d.host == host && d.port == port {
			c.destinations = append(c.destinations[:i], c.destinations[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: no destination %s:%d configured", ErrValidation, host, port)
}

// Clear empties the destination list.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destinations = nil
}

// Len reports how many destinations are configured. Go has no operator
// overload for truthiness, so this stands in for the teacher's boolean
// conversion of the client (spec.md §4.5): callers write
// `client.Len() > 0` where the reference would test the client itself.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.destinations)
}

// Send builds p and transmits it to every configured destination. Sends
// fan out concurrently (one goroutine per destination via errgroup,
// grounded on the same family of concurrency helper PFCM-osc's command
// line tool uses) but Send itself blocks until every destination has been
// attempted. If the client's socket was closed, a fresh socket is opened
// transparently.
//
// Only a *Message or *Bundle may be sent; anything else fails with
// ErrValidation, since the Element interface itself is not sealed to
// just those two types.
func (c *Client) Send(ctx context.Context, p Element) error {
	var data []byte
	var err error

	switch v := p.(type) {
	case *Message:
		if c.strictTypeTags {
			data, err = v.MarshalBinaryStrict()
		} else {
			data, err = v.MarshalBinary()
		}
	case *Bundle:
		data, err = v.MarshalBinary()
	default:
		return fmt.Errorf("%w: cannot send element of type %T", ErrValidation, p)
	}
	if err != nil {
		return err
	}

	conn, destinations, err := c.ensureOpen()
	if err != nil {
		return err
	}

	group, _ := errgroup.WithContext(ctx)
	for _, d := range destinations {
		d := d
		group.Go(func() error {
			_, err := conn.WriteToUDP(data, d.addr)
			if err != nil {
				c.logger.Warn("osc: send failed", "destination", d.addr, "error", err)
			}
			return err
		})
	}

	return group.Wait()
}

// ensureOpen returns the client's socket and destination snapshot,
// opening a new non-blocking UDP socket first if the client was closed.
//
// Go's net.UDPConn is already asynchronous by construction (reads and
// writes are multiplexed through the runtime's netpoller), so there is no
// separate non-blocking flag to set as there would be in a language with
// a raw BSD socket API; "non-blocking" here just means Send never
// implicitly dials a connected socket that would block on a single peer.
func (c *Client) ensureOpen() (*net.UDPConn, []destination, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		conn, err := net.ListenUDP("udp", nil)
		if err != nil {
			return nil, nil, err
		}
		c.conn = conn
		c.closed = false
	}

	destinations := make([]destination, len(c.destinations))
	copy(destinations, c.destinations)
	return c.conn, destinations, nil
}

// Close idempotently releases the client's socket. Sending after Close
// transparently reopens a fresh socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
