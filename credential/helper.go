package credential

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-git-oauth/internal/errors"
)

// HelperRequest is the attribute set git writes to a credential helper's stdin.
// See gitcredentials(7).
type HelperRequest struct {
	Protocol string
	Host     string
	Path     string
	Username string
}

// HelperAction is the operation git asks a credential helper to perform.
type HelperAction string

const (
	HelperGet   HelperAction = "get"
	HelperStore HelperAction = "store"
	HelperErase HelperAction = "erase"
)

// URL rebuilds the remote URL described by the request.
func (r HelperRequest) URL() string {
	u := url.URL{Scheme: r.Protocol, Host: r.Host, Path: r.Path}
	if r.Path != "" && !strings.HasPrefix(r.Path, "/") {
		u.Path = "/" + r.Path
	}
	return u.String()
}

// ReadHelperRequest parses key=value lines until a blank line or EOF. Unknown
// keys are ignored. A url= attribute is split into its parts.
func ReadHelperRequest(r io.Reader) (HelperRequest, error) {
	var req HelperRequest
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return HelperRequest{}, errors.New(fmt.Sprintf("credential helper: malformed line %q", line))
		}
		switch key {
		case "protocol":
			req.Protocol = value
		case "host":
			req.Host = value
		case "path":
			req.Path = value
		case "username":
			req.Username = value
		case "url":
			u, err := url.Parse(value)
			if err != nil {
				return HelperRequest{}, errors.Wrapf(err, "credential helper: url attribute")
			}
			req.Protocol = u.Scheme
			req.Host = u.Host
			req.Path = strings.TrimPrefix(u.Path, "/")
			if u.User != nil {
				req.Username = u.User.Username()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return HelperRequest{}, errors.Wrapf(err, "credential helper: read request")
	}
	return req, nil
}

// Supports reports whether the request targets a transport that can carry an
// OAuth token.
func (r HelperRequest) Supports() bool {
	return r.Protocol == "https" || r.Protocol == "http"
}

// WriteHelperResponse answers a get request with the username/password pair.
// Nothing is written for protocols other than http(s), which git treats as
// "no credential from this helper".
func (p *Provider) WriteHelperResponse(w io.Writer, req HelperRequest) error {
	if !req.Supports() {
		return nil
	}
	username, secret := p.callback(req.URL(), req.Username, CredentialUserPassPlaintext)
	if strings.ContainsAny(username, "\n\x00") || strings.ContainsAny(secret, "\n\x00") {
		return errors.New("credential helper: credential contains a newline or NUL")
	}
	_, err := fmt.Fprintf(w, "username=%s\npassword=%s\n", username, secret)
	return err
}
