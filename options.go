package osc

import "log/slog"

// ClientOption configures a Client at construction time, per the
// functional-options convention SPEC_FULL.md's configuration section calls
// for in place of the teacher's fixed-field constructors.
type ClientOption func(*Client)

// WithClientLogger overrides the *slog.Logger a Client uses for per-send
// warnings. The zero value falls back to slog.Default().
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStrictTypeTags makes a Client always emit the bare "," type-tag
// string for zero-argument messages instead of omitting it, resolving the
// Open Question in spec.md §9 in favor of strict OSC 1.0 compliance for
// every message the client sends.
func WithStrictTypeTags() ClientOption {
	return func(c *Client) {
		c.strictTypeTags = true
	}
}

// WithDestinations pre-populates a Client's destination list at
// construction time. Invalid entries are silently skipped; use Add
// directly when the caller needs to observe the validation error.
func WithDestinations(destinations ...[2]any) ClientOption {
	return func(c *Client) {
		for _, d := range destinations {
			host, _ := d[0].(string)
			port, _ := d[1].(int)
			_ = c.Add(host, port)
		}
	}
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithServerLogger overrides the *slog.Logger a Server uses for
// parse-error and dispatch diagnostics. The zero value falls back to
// slog.Default().
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadBufferSize overrides the receive buffer's capacity in bytes.
// The default (see NewServer) matches a conservative Ethernet MTU, per
// spec.md §4.6.
func WithReadBufferSize(size int) ServerOption {
	return func(s *Server) {
		if size > 0 {
			s.bufSize = size
		}
	}
}

// WithHonorTimeTags controls whether the server sleeps to honor a
// bundle's future time tag before dispatching it (spec.md §4.6's
// documented head-of-line blocking behavior). Defaults to true; pass
// false to dispatch every bundle immediately regardless of its time tag.
func WithHonorTimeTags(honor bool) ServerOption {
	return func(s *Server) {
		s.honorTimeTags = honor
	}
}
