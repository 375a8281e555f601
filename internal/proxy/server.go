package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/dargan-lbruder/cacheproxy/internal/cache"
	"github.com/dargan-lbruder/cacheproxy/internal/config"
	"github.com/dargan-lbruder/cacheproxy/internal/logging"
	"github.com/dargan-lbruder/cacheproxy/internal/metrics"
	"github.com/dargan-lbruder/cacheproxy/internal/ratelimit"
)

// Server accepts raw TCP connections and dispatches each to a Worker, in the
// shape of an http.Server (Start, Shutdown) but over a plain net.Listener:
// HTTP/1.0 framing here is hand-parsed by the worker, not delegated to
// net/http.
type Server struct {
	addr    string
	worker  *Worker
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	logger  *logging.Logger

	listener  net.Listener
	ready     chan struct{}
	readyOnce sync.Once

	wg      sync.WaitGroup
	closeMu sync.Mutex
	closing bool
}

// NewServer wires a cache store, admission limiter, and ambient
// instrumentation into a Server ready to Start.
// Time Complexity: O(1) - constant time field initialisation.
// Space Complexity: O(1) - fixed size structure.
func NewServer(cfg *config.Config, store *cache.Store, m *metrics.Metrics, logger *logging.Logger) *Server {
	var limiter *ratelimit.Limiter
	if cfg.Admission.Enabled {
		limiter = ratelimit.New(cfg.Admission.BurstConnections, cfg.Admission.RefillPerSecond)
	}
	return &Server{
		addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		worker:  NewWorker(store, m, logger),
		limiter: limiter,
		metrics: m,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// Addr blocks until the listener is bound, then returns its address. Useful
// for tests that start the server on an ephemeral port (":0") and need to
// know which port the OS actually picked.
// Time Complexity: O(1) - blocks on a channel, then a field read.
// Space Complexity: O(1) - no allocations.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// Start opens the listening socket and accepts connections until ctx is
// canceled or Shutdown is called. It blocks for the life of the server, the
// way an http.Server.ListenAndServe wrapper would.
// Time Complexity: O(1) per accepted connection - dispatch to a new
// goroutine; the method itself runs for the life of the server.
// Space Complexity: O(c) where c is the number of in-flight connections,
// each handled by its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("proxy: listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.readyOnce.Do(func() { close(s.ready) })

	s.logger.Info(ctx, "accepting connections", slog.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		s.closeListener()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.closeMu.Lock()
			closing := s.closing
			s.closeMu.Unlock()
			if closing {
				s.wg.Wait()
				return nil
			}
			if isTemporary(err) {
				continue
			}
			return fmt.Errorf("proxy: accept: %w", err)
		}

		remoteHost, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if s.limiter != nil && !s.limiter.Allow(remoteHost) {
			s.metrics.AdmissionRejected()
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker.Handle(ctx, conn)
		}()
	}
}

// Shutdown stops accepting new connections and waits for in-flight
// connections to finish, up to ctx's deadline.
// Time Complexity: O(1) plus however long the slowest in-flight connection
// takes to finish, bounded by ctx's deadline.
// Space Complexity: O(1) - a single done channel.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeListener()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closeListener marks the server as closing and closes the listener exactly
// once, however many callers race to invoke it.
// Time Complexity: O(1) - a mutex acquisition and a boolean check.
// Space Complexity: O(1) - no allocations.
func (s *Server) closeListener() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closing {
		return
	}
	s.closing = true
	if s.listener != nil {
		s.listener.Close()
	}
}

// isTemporary reports whether an Accept error is a timeout, the one kind of
// error treated as transient: accepting continues rather than the server
// exiting its accept loop. Any other error, including a momentary resource
// limit, ends the loop.
// Time Complexity: O(1) - a type assertion and an interface method call.
// Space Complexity: O(1) - no allocations.
func isTemporary(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
