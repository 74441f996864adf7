// Package gitremote runs git operations against a remote with the credential
// obtained from a login flow.
package gitremote

import (
	"context"
	"io"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/jrsteele09/go-git-oauth/internal/errors"
	"github.com/rs/zerolog"
)

// AuthProvider supplies the transport auth for a remote URL.
// credential.Provider implements it.
type AuthProvider interface {
	AuthMethod(remoteURL string) (transport.AuthMethod, error)
}

// Ref is one advertised reference.
type Ref struct {
	Name string
	Hash string
}

// Client performs remote operations.
type Client struct {
	auth AuthProvider
	log  zerolog.Logger
}

func New(auth AuthProvider, log zerolog.Logger) *Client {
	return &Client{auth: auth, log: log}
}

// authFor returns no auth for local repositories and the provider's auth for
// everything else.
func (c *Client) authFor(remoteURL string) (transport.AuthMethod, error) {
	ep, err := transport.NewEndpoint(remoteURL)
	if err != nil {
		return nil, errors.Mark(errors.ErrUnsupportedRemote, err, "parse %q", remoteURL)
	}
	if ep.Protocol == "file" {
		return nil, nil
	}
	return c.auth.AuthMethod(remoteURL)
}

// ListRefs lists the references advertised by the remote, sorted by name.
func (c *Client) ListRefs(ctx context.Context, remoteURL string) ([]Ref, error) {
	auth, err := c.authFor(remoteURL)
	if err != nil {
		return nil, err
	}

	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{remoteURL},
	})
	c.log.Debug().Str("remote", remoteURL).Msg("[gitremote ListRefs] listing")
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		return nil, errors.Wrapf(err, "[gitremote ListRefs] %s", remoteURL)
	}

	out := make([]Ref, 0, len(refs))
	for _, r := range refs {
		out = append(out, Ref{Name: r.Name().String(), Hash: r.Hash().String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Clone clones remoteURL into dir. progress may be nil.
func (c *Client) Clone(ctx context.Context, remoteURL, dir string, progress io.Writer) error {
	auth, err := c.authFor(remoteURL)
	if err != nil {
		return err
	}

	c.log.Debug().Str("remote", remoteURL).Str("dir", dir).Msg("[gitremote Clone] cloning")
	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:      remoteURL,
		Auth:     auth,
		Progress: progress,
	})
	if err != nil {
		return errors.Wrapf(err, "[gitremote Clone] %s", remoteURL)
	}
	return nil
}
