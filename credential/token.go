package credential

import "fmt"

const redacted = "[REDACTED]"

// AccessToken holds a bearer token obtained from the provider. Its formatting
// methods never reveal the value; Secret does.
type AccessToken struct {
	value string
}

var (
	_ fmt.Stringer   = AccessToken{}
	_ fmt.GoStringer = AccessToken{}
)

func NewAccessToken(value string) AccessToken {
	return AccessToken{value: value}
}

// Secret returns the raw token.
func (t AccessToken) Secret() string {
	return t.value
}

func (t AccessToken) IsZero() bool {
	return t.value == ""
}

func (t AccessToken) String() string {
	return redacted
}

func (t AccessToken) GoString() string {
	return "credential.AccessToken{" + redacted + "}"
}

func (t AccessToken) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
