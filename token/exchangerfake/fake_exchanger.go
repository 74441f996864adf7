package exchangerfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-git-oauth/credential"
)

// FakeExchanger records every code it is asked to exchange.
type FakeExchanger struct {
	mu    sync.Mutex
	codes []string
	token string
	err   error
}

func NewFakeExchanger(token string) *FakeExchanger {
	return &FakeExchanger{token: token}
}

// NewFailingExchanger returns an exchanger whose every call fails with err.
func NewFailingExchanger(err error) *FakeExchanger {
	return &FakeExchanger{err: err}
}

func (f *FakeExchanger) Exchange(_ context.Context, code string) (credential.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	if f.err != nil {
		return credential.AccessToken{}, f.err
	}
	return credential.NewAccessToken(f.token), nil
}

func (f *FakeExchanger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.codes)
}

func (f *FakeExchanger) Codes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.codes...)
}
