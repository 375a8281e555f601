package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dargan-lbruder/cacheproxy/internal/cache"
	"github.com/dargan-lbruder/cacheproxy/internal/config"
	"github.com/dargan-lbruder/cacheproxy/internal/logging"
	"github.com/dargan-lbruder/cacheproxy/internal/metrics"
)

func newTestServer(t *testing.T, admission bool) (*Server, context.Context, context.CancelFunc) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Port = 0
	cfg.Admission.Enabled = admission
	cfg.Admission.BurstConnections = 1
	cfg.Admission.RefillPerSecond = 1

	store := cache.New(cache.DefaultCapacityBytes, cache.DefaultObjectMaxBytes, cache.NewMetrics(prometheus.NewRegistry()))
	m := metrics.New()
	logger := logging.New("cacheproxy-test", logging.ParseLevel("error"))

	s := NewServer(cfg, store, m, logger)
	ctx, cancel := context.WithCancel(context.Background())
	return s, ctx, cancel
}

func TestServerServesAndShutsDownGracefully(t *testing.T) {
	origin := startFakeOrigin(t, "HTTP/1.0 200 OK\r\n\r\nok")
	defer origin.close()
	_, originPort, _ := net.SplitHostPort(origin.addr())

	s, ctx, cancel := newTestServer(t, false)
	defer cancel()

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start(ctx) }()

	addr := s.Addr().String()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("failed to dial proxy: %v", err)
	}
	fmt.Fprintf(conn, "GET http://127.0.0.1:%s/ok HTTP/1.0\r\n\r\n", originPort)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	if !strings.Contains(line, "200") {
		t.Fatalf("unexpected status line: %q", line)
	}
	conn.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if err := <-startErr; err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
}

func TestServerAdmissionControlRejectsBurst(t *testing.T) {
	s, ctx, cancel := newTestServer(t, true)
	defer cancel()

	go s.Start(ctx)
	addr := s.Addr().String()

	var refused bool
	for i := 0; i < 5; i++ {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("dial %d failed: %v", i, err)
		}
		buf := make([]byte, 1)
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, rerr := conn.Read(buf)
		conn.Close()
		if rerr == io.EOF {
			refused = true
			break
		}
	}
	if !refused {
		t.Fatal("expected at least one connection to be refused by admission control")
	}
}
