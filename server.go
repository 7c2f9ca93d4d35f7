package osc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// defaultReadBufSize is sized for a conservative Ethernet MTU, large
// enough for any single OSC datagram in practice; spec.md §4.6 leaves the
// exact figure to the implementation.
const defaultReadBufSize = 1536

// Handler receives one decoded OSC element per datagram. addr is the
// sender's address, root is the parsed Message or Bundle, and recvTime is
// the wall-clock time the datagram arrived. Per spec.md §1's explicit
// non-goal, there is no address-pattern dispatch here: a Server has
// exactly one Handler and leaves routing to the caller.
type Handler interface {
	HandleOSC(addr net.Addr, root Element, recvTime time.Time)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(addr net.Addr, root Element, recvTime time.Time)

func (f HandlerFunc) HandleOSC(addr net.Addr, root Element, recvTime time.Time) {
	f(addr, root, recvTime)
}

// Server receives OSC packets over UDP and dispatches each to a single
// Handler, per spec.md §4.6. Unlike the teacher's UDPServer/TCPServer
// pair, there is no TCP transport and no per-address-pattern routing:
// both are out of scope.
type Server struct {
	addr          string
	handler       Handler
	logger        *slog.Logger
	bufSize       int
	honorTimeTags bool

	conn *net.UDPConn
}

// NewServer returns a Server that will listen on addr (host:port) and
// dispatch every decoded packet to handler.
func NewServer(addr string, handler Handler, opts ...ServerOption) *Server {
	s := &Server{
		addr:          addr,
		handler:       handler,
		logger:        slog.Default(),
		bufSize:       defaultReadBufSize,
		honorTimeTags: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe opens the server's UDP socket with SO_REUSEADDR set and
// runs a single-threaded receive loop until ctx is canceled or the socket
// is closed; any other read error is logged and the loop continues. It
// returns an error only if the socket cannot be opened. Each datagram is
// sanity-checked, parsed, and (for
// a bundle with a future time tag) delayed in place before being handed
// to the Handler, per spec.md §4.6's documented head-of-line blocking.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	packetConn, err := lc.ListenPacket(ctx, "udp", s.addr)
	if err != nil {
		return fmt.Errorf("osc: listen: %w", err)
	}
	conn, ok := packetConn.(*net.UDPConn)
	if !ok {
		return fmt.Errorf("osc: listen: expected *net.UDPConn, got %T", packetConn)
	}
	s.conn = conn

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, s.bufSize)
	for {
		n, sender, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("osc: read failed", "error", err)
			continue
		}

		s.handleDatagram(sender, buf[:n])
	}
}

// handleDatagram sanity-checks, parses, and dispatches one datagram.
// Parse failures are logged and dropped rather than surfaced, per
// spec.md §4.6: a single malformed datagram must not stop the server.
func (s *Server) handleDatagram(sender net.Addr, data []byte) {
	if !IsBundle(data) && !IsMessage(data) {
		s.logger.Warn("osc: dropping datagram with unrecognized prefix", "sender", sender)
		return
	}

	recvTime := time.Now()
	packet, err := ParsePacket(data, recvTime)
	if err != nil {
		s.logger.Warn("osc: dropping unparseable datagram", "sender", sender, "error", err)
		return
	}

	if s.honorTimeTags {
		if bundle, ok := packet.Root.(*Bundle); ok {
			s.waitForTimeTag(bundle.TimeTag)
		}
	}

	s.handler.HandleOSC(sender, packet.Root, recvTime)
}

// waitForTimeTag blocks until tt's deadline, if any. This is the
// single-threaded server's documented trade-off (spec.md §4.6): a bundle
// scheduled far in the future holds up every datagram behind it. Callers
// needing concurrent dispatch should read ahead with their own queue
// instead of relying on this server's ordering guarantee.
func (s *Server) waitForTimeTag(tt TimeTag) {
	if tt.IsImmediate() {
		return
	}
	if d := time.Until(tt.Time()); d > 0 {
		time.Sleep(d)
	}
}

// Close shuts down the server's socket, unblocking ListenAndServe.
func (s *Server) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
