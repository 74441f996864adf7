// Package loopback captures a single OAuth redirect on a local port.
//
// A Listener accepts exactly one connection, reads one HTTP request line from
// it, answers with a static page and releases the port. It is not an HTTP
// server: headers and bodies are never parsed and nothing is served twice.
package loopback

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/jrsteele09/go-git-oauth/internal/errors"
	"github.com/rs/zerolog"
)

const (
	maxRequestLineBytes = 8 << 10
	maxDrainBytes       = 64 << 10
	drainTimeout        = 500 * time.Millisecond
	defaultReadTimeout  = 30 * time.Second

	confirmationPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Signed in</title></head>
<body><p>Authentication received. You can close this window and go back to your terminal.</p></body></html>
`
	badRequestBody = "Invalid request\n"
)

// Listener is a bound, single-use loopback socket.
type Listener struct {
	ln          net.Listener
	log         zerolog.Logger
	readTimeout time.Duration

	closeOnce sync.Once
	closeErr  error

	mu   sync.Mutex
	conn net.Conn
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Listener) {
		l.log = log
	}
}

// WithReadTimeout bounds the time between accepting the connection and
// receiving a full request line.
func WithReadTimeout(d time.Duration) Option {
	return func(l *Listener) {
		l.readTimeout = d
	}
}

// Bind listens on localhost:<port>. A bind failure, for example because the
// port is taken, wraps ErrPortUnavailable.
func Bind(port string, opts ...Option) (*Listener, error) {
	l := &Listener{
		log:         zerolog.Nop(),
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}

	addr := net.JoinHostPort("localhost", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Mark(errors.ErrPortUnavailable, err, "bind %s", addr)
	}
	l.ln = ln
	l.log.Debug().Str("addr", ln.Addr().String()).Msg("[loopback Bind] listening")
	return l, nil
}

// AwaitOneRedirect binds the port and waits for one redirect.
func AwaitOneRedirect(ctx context.Context, port string, opts ...Option) (RedirectRequest, error) {
	l, err := Bind(port, opts...)
	if err != nil {
		return RedirectRequest{}, err
	}
	return l.Await(ctx)
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close releases the port. It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}

// Await blocks until one connection delivers a request line, then answers it
// and returns the parsed request. The listening socket is closed as soon as
// the connection is accepted, and on every return path. Cancelling ctx aborts
// the wait with ErrFlowCancelled. A Listener can be awaited once.
func (l *Listener) Await(ctx context.Context) (RedirectRequest, error) {
	defer l.Close()

	if err := ctx.Err(); err != nil {
		return RedirectRequest{}, errors.Mark(errors.ErrFlowCancelled, err, "before accept")
	}
	stop := context.AfterFunc(ctx, l.abort)
	defer stop()

	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return RedirectRequest{}, errors.Mark(errors.ErrFlowCancelled, ctx.Err(), "waiting for redirect")
		}
		return RedirectRequest{}, errors.Mark(errors.ErrPortUnavailable, err, "accept")
	}
	// Only one connection is ever serviced; anything queued behind it is refused.
	_ = l.Close()

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	if ctx.Err() != nil {
		// Cancelled between Accept returning and the connection being recorded.
		l.abort()
	}
	defer conn.Close()

	l.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("[loopback Await] accepted connection")

	if l.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	}
	line, err := readRequestLine(conn)
	if err != nil {
		if ctx.Err() != nil {
			return RedirectRequest{}, errors.Mark(errors.ErrFlowCancelled, ctx.Err(), "reading redirect")
		}
		l.respond(conn, "400 Bad Request", "text/plain; charset=utf-8", badRequestBody)
		return RedirectRequest{}, errors.Mark(errors.ErrMalformedRedirect, err, "read request line")
	}

	req, err := parseRequestLine(line)
	if err != nil {
		l.respond(conn, "400 Bad Request", "text/plain; charset=utf-8", badRequestBody)
		return RedirectRequest{}, err
	}

	l.respond(conn, "200 OK", "text/html; charset=utf-8", confirmationPage)
	return req, nil
}

// abort unblocks a pending Accept or read.
func (l *Listener) abort() {
	_ = l.Close()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		_ = l.conn.SetDeadline(time.Now())
	}
}

func readRequestLine(conn net.Conn) (string, error) {
	r := bufio.NewReader(io.LimitReader(conn, maxRequestLineBytes))
	line, err := r.ReadString('\n')
	if err == io.EOF && line != "" && len(line) < maxRequestLineBytes {
		// A client that closes right after the request line still counts.
		return line, nil
	}
	if err != nil {
		return "", err
	}
	return line, nil
}

// respond writes the response, then half-closes and drains the connection so
// unread request headers do not turn the close into a reset that discards the
// page. Failures are logged only: the redirect data is already captured.
func (l *Listener) respond(conn net.Conn, status, contentType, body string) {
	response := fmt.Sprintf("HTTP/1.1 %s\r\ncontent-type: %s\r\ncontent-length: %d\r\nconnection: close\r\n\r\n%s",
		status, contentType, len(body), body)

	_ = conn.SetWriteDeadline(time.Now().Add(drainTimeout * 4))
	if _, err := io.WriteString(conn, response); err != nil {
		l.log.Warn().Err(err).Msg("[loopback respond] failed to write confirmation page")
		return
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	_ = conn.SetReadDeadline(time.Now().Add(drainTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, maxDrainBytes))
}
