// Package auth provides authentication support for HTTP requests against the
// archive. Credentials live only for the duration of a run and are never
// written to configuration or logs.
package auth

import (
	"net/http"
	"os"

	"github.com/glorpus-work/ecget/pkg/errors"
)

// Authenticator defines the interface for applying authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request) error
}

// Credentials holds a username/password pair for the archive portal.
type Credentials struct {
	Username string
	password string
}

// NewCredentials builds a credential holder. The password is kept in an
// unexported field so it cannot be marshalled by accident.
func NewCredentials(username, password string) Credentials {
	return Credentials{Username: username, password: password}
}

// FromEnv reads credentials from the given environment variable names.
func FromEnv(userVar, passVar string) (Credentials, error) {
	user := os.Getenv(userVar)
	pass := os.Getenv(passVar)
	if user == "" || pass == "" {
		return Credentials{}, errors.Wrapf(errors.ErrAuth, "%s and %s must be set", userVar, passVar)
	}
	return NewCredentials(user, pass), nil
}

// IsZero reports whether the holder carries no credentials.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.password == ""
}

// Apply adds Basic Authentication headers to the HTTP request.
func (c Credentials) Apply(req *http.Request) error {
	req.SetBasicAuth(c.Username, c.password)
	return nil
}

// String redacts the password so credentials are safe to format.
func (c Credentials) String() string {
	return c.Username + ":****"
}

// GoString redacts the password in %#v output as well.
func (c Credentials) GoString() string {
	return "auth.Credentials{Username:" + c.Username + ", password:****}"
}
