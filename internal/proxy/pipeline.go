package proxy

import (
	"bufio"
	"context"
	"net"
	"strings"

	"github.com/dargan-lbruder/cacheproxy/internal/logging"
	"github.com/dargan-lbruder/cacheproxy/internal/metrics"
)

// connCtx carries one connection's state across the pipeline stages below,
// the way a request-scoped context threads through a net/http-based
// middleware chain — except there is no *http.Request this early, only
// bytes on a socket whose HTTP/1.0 framing the proxy itself owns.
type connCtx struct {
	ctx    context.Context
	conn   net.Conn
	reader *bufio.Reader
	log    *logging.Logger

	method  string
	uri     string
	version string

	url       string
	parsed    parsedURL
	seen      headerSeen
	forwarded strings.Builder

	outcome metrics.Outcome
}

// stage is one step of the connection pipeline, generalizing a
// Middleware.Wrap(http.Handler) http.Handler decorator idiom to a sequence
// of named functions over connCtx instead of wrapped handlers: there is no
// handler to wrap, only a fixed sequence of things that must happen in
// order (parse the line, parse the URL, consult the cache, fetch from the
// origin). done reports whether the connection has already been fully
// handled (an error page written, or a cache hit served) and the remaining
// stages should be skipped.
type stage func(w *Worker, c *connCtx) (done bool, err error)
