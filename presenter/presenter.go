// Package presenter shows the authorization URL to a human.
package presenter

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
	"github.com/jrsteele09/go-git-oauth/internal/errors"
)

// Presenter is invoked once per login flow with the authorization URL.
type Presenter interface {
	Present(ctx context.Context, authURL string) error
}

// Func adapts a plain function to Presenter.
type Func func(ctx context.Context, authURL string) error

func (f Func) Present(ctx context.Context, authURL string) error {
	return f(ctx, authURL)
}

// Writer prints the URL with a short instruction.
type Writer struct {
	Out io.Writer
}

func (w Writer) Present(_ context.Context, authURL string) error {
	_, err := fmt.Fprintf(w.Out, "Open this URL in your browser:\n%s\n\n", authURL)
	return err
}

// Clipboard copies the URL to the system clipboard.
type Clipboard struct {
	write       func(string) error
	unsupported bool
}

func NewClipboard() Clipboard {
	return Clipboard{write: clipboard.WriteAll, unsupported: clipboard.Unsupported}
}

func (c Clipboard) Present(_ context.Context, authURL string) error {
	if c.unsupported || c.write == nil {
		return errors.New("clipboard is not supported on this system")
	}
	return errors.Wrapf(c.write(authURL), "copy URL to clipboard")
}

// Browser opens the URL with the platform's default handler.
type Browser struct {
	command func(url string) *exec.Cmd
}

func NewBrowser() Browser {
	return Browser{command: openCommand}
}

// Present starts the opener and returns without waiting for the browser.
func (b Browser) Present(_ context.Context, authURL string) error {
	cmd := b.command(authURL)
	if cmd == nil {
		return errors.New(fmt.Sprintf("no browser opener for %s", runtime.GOOS))
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "open browser")
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func openCommand(url string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", url)
	default:
		return nil
	}
}

// Multi presents through every presenter in order and reports the first
// failure after trying them all.
type Multi []Presenter

func (m Multi) Present(ctx context.Context, authURL string) error {
	var first error
	for _, p := range m {
		if err := p.Present(ctx, authURL); err != nil && first == nil {
			first = err
		}
	}
	return first
}
