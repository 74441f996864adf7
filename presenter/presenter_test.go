package presenter

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

const testURL = "https://github.com/login/oauth/authorize?client_id=abc&state=xyz"

func TestWriter_Present(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Writer{Out: &buf}.Present(context.Background(), testURL))
	require.Contains(t, buf.String(), testURL)
}

func TestClipboard_Present(t *testing.T) {
	var copied string
	c := Clipboard{write: func(s string) error { copied = s; return nil }}
	require.NoError(t, c.Present(context.Background(), testURL))
	require.Equal(t, testURL, copied)

	require.Error(t, Clipboard{write: c.write, unsupported: true}.Present(context.Background(), testURL))
}

func TestBrowser_Present(t *testing.T) {
	var opened string
	b := Browser{command: func(url string) *exec.Cmd {
		opened = url
		return exec.Command("true")
	}}
	require.NoError(t, b.Present(context.Background(), testURL))
	require.Equal(t, testURL, opened)

	none := Browser{command: func(string) *exec.Cmd { return nil }}
	require.Error(t, none.Present(context.Background(), testURL))
}

func TestMulti_TriesEveryPresenter(t *testing.T) {
	var calls []string
	failing := Func(func(context.Context, string) error {
		calls = append(calls, "failing")
		return errors.New("no display")
	})
	printing := Func(func(_ context.Context, u string) error {
		calls = append(calls, u)
		return nil
	})

	err := Multi{failing, printing}.Present(context.Background(), testURL)
	require.EqualError(t, err, "no display")
	require.Equal(t, []string{"failing", testURL}, calls)
}
