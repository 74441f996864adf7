package loopback

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/go-git-oauth/internal/errors"
)

// RedirectRequest is the request line captured from the provider's redirect.
// Headers and body are never read.
type RedirectRequest struct {
	Method string
	Target string
	Proto  string
	Query  url.Values
}

// Get returns the first value of a query parameter, or "".
func (r RedirectRequest) Get(key string) string {
	return r.Query.Get(key)
}

// parseRequestLine accepts "GET <origin-form target> HTTP/1.x".
func parseRequestLine(line string) (RedirectRequest, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return RedirectRequest{}, errors.Mark(errors.ErrMalformedRedirect, nil, "request line has %d parts", len(parts))
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if method != "GET" {
		return RedirectRequest{}, errors.Mark(errors.ErrMalformedRedirect, nil, "unexpected method %q", method)
	}
	if !strings.HasPrefix(proto, "HTTP/1.") {
		return RedirectRequest{}, errors.Mark(errors.ErrMalformedRedirect, nil, "unexpected protocol %q", proto)
	}
	if !strings.HasPrefix(target, "/") {
		return RedirectRequest{}, errors.Mark(errors.ErrMalformedRedirect, nil, "target is not origin-form")
	}
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return RedirectRequest{}, errors.Mark(errors.ErrMalformedRedirect, err, "parse target")
	}
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return RedirectRequest{}, errors.Mark(errors.ErrMalformedRedirect, err, "parse query")
	}
	return RedirectRequest{
		Method: method,
		Target: target,
		Proto:  proto,
		Query:  query,
	}, nil
}
