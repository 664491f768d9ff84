package httpserver

import (
	"log/slog"
	"net"
	"time"
)

// Hook runs on start and stop with the server logger and the bound address.
type Hook func(log *slog.Logger, addr net.Addr)

// Option adjusts a Server after its Config is applied.
type Option func(*Server)

// WithAddr overrides Config.Addr. Use ":0" in tests and read the port from a
// start hook.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.cfg.Addr = addr
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.cfg.ShutdownTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStartHook runs h once the listener is bound.
func WithStartHook(h Hook) Option {
	return func(s *Server) {
		if h != nil {
			s.startHooks = append(s.startHooks, h)
		}
	}
}

// WithStopHook runs h after in-flight requests have drained.
func WithStopHook(h Hook) Option {
	return func(s *Server) {
		if h != nil {
			s.stopHooks = append(s.stopHooks, h)
		}
	}
}
