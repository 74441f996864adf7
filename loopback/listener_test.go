package loopback_test

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-git-oauth/internal/errors"
	"github.com/jrsteele09/go-git-oauth/loopback"
	"github.com/stretchr/testify/require"
)

// freePort finds a port that was free a moment ago.
func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())
	return port
}

// sendRaw writes payload to addr and returns whatever comes back.
func sendRaw(t *testing.T, addr, payload string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_, err = io.WriteString(conn, payload)
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, _ := io.ReadAll(conn)
	return string(resp)
}

type awaitResult struct {
	req loopback.RedirectRequest
	err error
}

func awaitAsync(ctx context.Context, l *loopback.Listener) <-chan awaitResult {
	ch := make(chan awaitResult, 1)
	go func() {
		req, err := l.Await(ctx)
		ch <- awaitResult{req: req, err: err}
	}()
	return ch
}

func TestListener_CapturesRedirect(t *testing.T) {
	port := freePort(t)
	l, err := loopback.Bind(port)
	require.NoError(t, err)

	results := awaitAsync(context.Background(), l)
	resp := sendRaw(t, l.Addr().String(), "GET /?code=abc123&state=s-1 HTTP/1.1\r\nHost: localhost\r\nUser-Agent: test\r\n\r\n")

	res := <-results
	require.NoError(t, res.err)
	require.Equal(t, "abc123", res.req.Get("code"))
	require.Equal(t, "s-1", res.req.Get("state"))
	require.Equal(t, "/?code=abc123&state=s-1", res.req.Target)
	require.Equal(t, "HTTP/1.1", res.req.Proto)

	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n"), resp)
	require.Contains(t, resp, "content-length: ")
	require.Contains(t, resp, "go back to your terminal")

	// The port is free again once the redirect is served.
	again, err := net.Listen("tcp", net.JoinHostPort("localhost", port))
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestListener_IgnoresPipelinedSecondRequest(t *testing.T) {
	l, err := loopback.Bind(freePort(t))
	require.NoError(t, err)

	results := awaitAsync(context.Background(), l)
	sendRaw(t, l.Addr().String(),
		"GET /?code=first&state=s HTTP/1.1\r\nHost: localhost\r\n\r\nGET /?code=second&state=s HTTP/1.1\r\nHost: localhost\r\n\r\n")

	res := <-results
	require.NoError(t, res.err)
	require.Equal(t, "first", res.req.Get("code"))
}

func TestListener_ServicesOnlyOneConnection(t *testing.T) {
	l, err := loopback.Bind(freePort(t))
	require.NoError(t, err)
	addr := l.Addr().String()

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()
	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()

	_, err = io.WriteString(second, "GET /?code=second&state=s HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	_, err = io.WriteString(first, "GET /?code=first&state=s HTTP/1.1\r\n\r\n")
	require.NoError(t, err)

	req, err := l.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, "first", req.Get("code"))

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, _ := io.ReadAll(second)
	require.NotContains(t, string(resp), "200 OK")
}

func TestListener_AcceptsLineWithoutTerminator(t *testing.T) {
	l, err := loopback.Bind(freePort(t))
	require.NoError(t, err)
	results := awaitAsync(context.Background(), l)

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = io.WriteString(conn, "GET /?code=c&state=s HTTP/1.0")
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	res := <-results
	require.NoError(t, res.err)
	require.Equal(t, "c", res.req.Get("code"))
}

func TestListener_MalformedRedirect(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not http", "HELLO\r\n\r\n"},
		{"post", "POST /?code=a&state=b HTTP/1.1\r\n\r\n"},
		{"http2 preface", "PRI * HTTP/2.0\r\n\r\n"},
		{"absolute form", "GET http://localhost/?code=a HTTP/1.1\r\n\r\n"},
		{"bad escape", "GET /?code=%zz&state=b HTTP/1.1\r\n\r\n"},
		{"empty line", "\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := loopback.Bind(freePort(t))
			require.NoError(t, err)
			results := awaitAsync(context.Background(), l)

			resp := sendRaw(t, l.Addr().String(), tt.payload)
			res := <-results
			require.Error(t, res.err)
			require.True(t, errors.Is(res.err, errors.ErrMalformedRedirect), res.err.Error())
			require.True(t, strings.HasPrefix(resp, "HTTP/1.1 400"), resp)
		})
	}
}

func TestListener_ReadTimeout(t *testing.T) {
	l, err := loopback.Bind(freePort(t), loopback.WithReadTimeout(50*time.Millisecond))
	require.NoError(t, err)
	results := awaitAsync(context.Background(), l)

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case res := <-results:
		require.True(t, errors.Is(res.err, errors.ErrMalformedRedirect))
	case <-time.After(5 * time.Second):
		t.Fatal("Await did not time out")
	}
}

func TestListener_CancelWhileWaiting(t *testing.T) {
	port := freePort(t)
	l, err := loopback.Bind(port)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	results := awaitAsync(ctx, l)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case res := <-results:
		require.True(t, errors.Is(res.err, errors.ErrFlowCancelled))
		require.True(t, errors.Is(res.err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("Await ignored cancellation")
	}

	again, err := net.Listen("tcp", net.JoinHostPort("localhost", port))
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestListener_CancelWhileReading(t *testing.T) {
	l, err := loopback.Bind(freePort(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	results := awaitAsync(ctx, l)

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = io.WriteString(conn, "GET /?code=")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case res := <-results:
		require.True(t, errors.Is(res.err, errors.ErrFlowCancelled), res.err.Error())
	case <-time.After(5 * time.Second):
		t.Fatal("Await ignored cancellation")
	}
}

func TestAwaitOneRedirect_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loopback.AwaitOneRedirect(ctx, freePort(t))
	require.True(t, errors.Is(err, errors.ErrFlowCancelled))
}

func TestBind_PortUnavailable(t *testing.T) {
	taken, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer taken.Close()
	_, port, err := net.SplitHostPort(taken.Addr().String())
	require.NoError(t, err)

	_, err = loopback.Bind(port)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrPortUnavailable))
}

func TestListener_CloseIsIdempotent(t *testing.T) {
	l, err := loopback.Bind(freePort(t))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}
