package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/dargan-lbruder/cacheproxy/internal/cache"
	"github.com/dargan-lbruder/cacheproxy/internal/logging"
	"github.com/dargan-lbruder/cacheproxy/internal/metrics"
)

// originDialTimeout bounds how long the worker waits to connect to an
// origin server. The original blocking connect(2) call had no such bound;
// net.DialTimeout is the idiomatic Go substitute rather than leaving a
// connection attempt able to hang a goroutine forever.
const originDialTimeout = 10 * time.Second

// relayChunkSize is how much is read from the origin per Read call while
// streaming a response to the client and, in parallel, buffering it for a
// possible cache insert.
const relayChunkSize = 8 * 1024

// Worker turns one accepted client connection into a complete proxy
// exchange by running it through a fixed stage pipeline: parse the request
// line, resolve the requested URL, consult the shared cache, and on a miss
// dial the origin and relay its response while buffering it for insertion.
// Grounded on original_source/proxy.c's doit/serve, restructured as named
// pipeline stages instead of one long C function.
type Worker struct {
	store   *cache.Store
	metrics *metrics.Metrics
	logger  *logging.Logger

	stages []stage
}

// NewWorker builds a Worker sharing the given cache store and ambient
// instrumentation with every connection it handles.
// Time Complexity: O(1) - fixed number of stage slots.
// Space Complexity: O(1) - a fixed-length stage slice.
func NewWorker(store *cache.Store, m *metrics.Metrics, l *logging.Logger) *Worker {
	w := &Worker{store: store, metrics: m, logger: l}
	w.stages = []stage{
		(*Worker).stageReadRequestLine,
		(*Worker).stageRejectNonGET,
		(*Worker).stageParseURL,
		(*Worker).stageReadHeaders,
		(*Worker).stageCacheLookup,
		(*Worker).stageFetchAndRelay,
	}
	return w
}

// Handle processes one accepted connection end to end. It never lets a
// panic escape to the caller: a single malformed request or bug in one
// connection's handling must not take down the accept loop or any other
// connection.
// Time Complexity: O(n) where n is the number of bytes read from and
// written to conn across all pipeline stages.
// Space Complexity: O(n) where n is the response size buffered for a
// possible cache insert, bounded by the cache's per-object limit.
func (w *Worker) Handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	defer conn.Close()

	w.metrics.ConnectionOpened()
	defer w.metrics.ConnectionClosed()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "panic handling connection", fmt.Errorf("%v", r),
				slog.String("remote_addr", remote))
		}
	}()

	ctx, span := w.logger.StartSpan(ctx, "proxy.connection")
	defer span.End()

	c := &connCtx{
		ctx:     ctx,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		log:     w.logger.WithFields(slog.String("remote_addr", remote)),
		outcome: metrics.OutcomeClientError,
	}

	for _, s := range w.stages {
		done, err := s(w, c)
		if err != nil {
			c.log.Debug(c.ctx, "connection pipeline stage failed", slog.String("error", err.Error()))
			break
		}
		if done {
			break
		}
	}

	w.metrics.RecordOutcome(c.outcome)
}

// stageReadRequestLine reads and splits a request line of the form
// "METHOD URI VERSION".
// Time Complexity: O(n) where n is the length of the request line.
// Space Complexity: O(n) - the line and its split fields.
func (w *Worker) stageReadRequestLine(c *connCtx) (bool, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return true, err
	}
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return true, fmt.Errorf("proxy: malformed request line %q", line)
	}
	c.method, c.uri, c.version = fields[0], fields[1], fields[2]
	return false, nil
}

// stageRejectNonGET implements the proxy's sole supported method.
// Time Complexity: O(1) - a single string comparison.
// Space Complexity: O(1) - no allocations on the accepted-method path.
func (w *Worker) stageRejectNonGET(c *connCtx) (bool, error) {
	if strings.EqualFold(c.method, "GET") {
		return false, nil
	}
	writeClientError(c.conn, c.method, "501", "Not Implemented",
		"Tiny Web Server does not implement this method")
	c.log.Info(c.ctx, "rejected non-GET request", slog.String("method", c.method))
	return true, nil
}

// stageParseURL resolves the request URI into host/port/path.
// Time Complexity: O(n) where n is the length of c.uri.
// Space Complexity: O(1) - parseRequestURL's result holds substrings of c.uri.
func (w *Worker) stageParseURL(c *connCtx) (bool, error) {
	parsed, err := parseRequestURL(c.uri)
	if err != nil {
		writeClientError(c.conn, c.uri, "400", "Bad Request",
			"Proxy could not parse the request URL")
		return true, err
	}
	c.parsed = parsed
	// The cache key is the exact request URI, byte-for-byte, per spec.md §3
	// ("url: exact request URL, byte-for-byte") and original_source/proxy.c:171
	// (strcpy(url, uri)) — not a value renormalized from the parsed host/port/
	// path, which would collide textually distinct URIs (e.g. an implicit
	// default port and an explicit ":80") into one cache entry.
	c.url = c.uri
	return false, nil
}

// stageReadHeaders drains the client's header block, up to and including
// the terminating blank line. Each line is classified and rewritten as it
// arrives (Host and any header outside the six boundary headers forwarded
// verbatim, the other five replaced with their canonical value whether or
// not the client supplied one) and appended to c.forwarded in the order the
// client sent them, mirroring original_source/proxy.c's read_requesthdrs
// loop, which rewrites each header line in place as it is read rather than
// buffering a separate pass.
// Time Complexity: O(n) where n is the total length of the client's header
// block.
// Space Complexity: O(n) - c.forwarded accumulates the rewritten header text.
func (w *Worker) stageReadHeaders(c *connCtx) (bool, error) {
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return true, err
		}
		if strings.TrimRight(line, "\r\n") == "" {
			return false, nil
		}
		c.forwarded.WriteString(classifyAndRewriteHeader(line, &c.seen))
	}
}

// stageCacheLookup serves a cache hit directly and short-circuits the
// pipeline; a miss falls through to stageFetchAndRelay.
// Time Complexity: O(n) where n is the size of a matched cached body (see
// cache.Store.Lookup); O(1) on a miss.
// Space Complexity: O(1) - no copy beyond the slice store.Lookup returns.
func (w *Worker) stageCacheLookup(c *connCtx) (bool, error) {
	body, hit := w.store.Lookup(c.url)
	if !hit {
		return false, nil
	}
	if _, err := c.conn.Write(body); err != nil {
		return true, fmt.Errorf("writing cached body to client: %w", err)
	}
	c.log.Info(c.ctx, "served from cache", slog.String("url", c.url), slog.Int("bytes", len(body)))
	c.outcome = metrics.OutcomeHit
	return true, nil
}

// stageFetchAndRelay dials the origin, forwards the rewritten request, and
// relays the response back to the client while buffering it for a possible
// cache insert.
// Time Complexity: O(n) where n is the size of the origin's response, plus
// the dial round trip.
// Space Complexity: O(n) where n is the response size buffered for a
// possible cache insert, bounded by the cache's per-object limit.
func (w *Worker) stageFetchAndRelay(c *connCtx) (bool, error) {
	origin, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", c.parsed.host, c.parsed.port), originDialTimeout)
	if err != nil {
		// The original silently drops the connection on a failed connect
		// rather than emitting an error page; there is no well-formed
		// upstream response to relate a client-facing error to.
		c.outcome = metrics.OutcomeOriginFailed
		return true, fmt.Errorf("dialing origin %s: %w", c.parsed.host, err)
	}
	defer origin.Close()

	request := fmt.Sprintf("GET %s HTTP/1.0\r\n", c.parsed.path) +
		c.forwarded.String() +
		synthesizeMissing(c.seen, c.parsed.host) +
		"\r\n"
	if _, err := origin.Write([]byte(request)); err != nil {
		c.outcome = metrics.OutcomeOriginFailed
		return true, fmt.Errorf("writing request to origin: %w", err)
	}

	if err := w.relayAndCache(c, origin); err != nil {
		c.outcome = metrics.OutcomeOriginFailed
		return true, err
	}
	c.outcome = metrics.OutcomeMiss
	return true, nil
}

// relayAndCache streams the origin's response to the client unchanged while
// buffering it for a possible cache insert, bounded by the cache's
// per-object limit. A write failure to the client or a read failure from
// the origin aborts this connection only; any partially buffered response
// is discarded rather than inserted, per store.Insert's all-or-nothing
// contract.
// Time Complexity: O(n) where n is the size of the origin's response,
// plus O(m) where m is the live entry count for the eventual store.Insert
// call (see cache.Store.Insert).
// Space Complexity: O(n) where n is the response size, bounded by the
// cache's per-object limit once it is known to overflow.
func (w *Worker) relayAndCache(c *connCtx, origin net.Conn) error {
	objectMax := w.store.ObjectMax()
	buf := make([]byte, 0, objectMax)
	overflowed := false

	chunk := make([]byte, relayChunkSize)
	for {
		n, rerr := origin.Read(chunk)
		if n > 0 {
			if _, werr := c.conn.Write(chunk[:n]); werr != nil {
				return fmt.Errorf("writing to client: %w", werr)
			}
			if !overflowed {
				if int64(len(buf)+n) <= objectMax {
					buf = append(buf, chunk[:n]...)
				} else {
					overflowed = true
					buf = nil
				}
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return fmt.Errorf("reading from origin: %w", rerr)
		}
	}

	if overflowed || len(buf) == 0 {
		return nil
	}
	if err := w.store.Insert(c.url, buf); err != nil {
		c.log.Debug(c.ctx, "cache insert declined", slog.String("url", c.url), slog.String("error", err.Error()))
	}
	return nil
}
