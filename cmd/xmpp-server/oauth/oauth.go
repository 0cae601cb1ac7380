// Package oauth implements an xmppsasl.CredentialStore that verifies SASL
// PLAIN credentials against an OAuth2 resource-owner password-grant
// endpoint instead of a local account directory.
package oauth

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// Authenticator exchanges a username/password for a token at TokenEndpoint,
// treating a successful exchange as proof of identity. Only the password
// grant is implemented; the resulting token itself is discarded once the
// authentication decision is made.
type Authenticator struct {
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
}

// VerifyPlain implements xmppsasl.CredentialStore.
func (a *Authenticator) VerifyPlain(authzid, username, password string) (string, bool, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequest(http.MethodPost, a.TokenEndpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", false, errors.Wrap(err, "oauth: building token request")
	}
	req.SetBasicAuth(a.ClientID, a.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", false, errors.Wrap(err, "oauth: token request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Pass
	case resp.StatusCode >= 500:
		return "", false, errors.New("oauth: authentication gateway error")
	default:
		return "", false, nil
	}

	if authzid != "" {
		return authzid, true, nil
	}
	return username, true, nil
}

// Password always fails: the password grant never learns a reusable
// cleartext secret DIGEST-MD5 could challenge against.
func (a *Authenticator) Password(string) (string, bool, error) { return "", false, nil }

// ScramSHA1Credentials always fails for the same reason as Password.
func (a *Authenticator) ScramSHA1Credentials(string) ([]byte, int, []byte, bool) {
	return nil, 0, nil, false
}
