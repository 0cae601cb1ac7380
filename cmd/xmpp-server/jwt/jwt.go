// Package jwt implements an xmppsasl.CredentialStore that treats SASL
// PLAIN's password field as a bearer JWT instead of a stored secret, for
// deployments that issue short-lived tokens from an identity provider
// rather than managing XMPP passwords directly.
package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Verifier resolves a compact JWT to a localpart by trusting the token's
// "sub" claim. It does not check the token's signature: that belongs to
// whatever issued it, expected to sit in front of this store as a
// validating proxy, or a future field here once a signing key is wired in.
type Verifier struct{}

// VerifyPlain implements xmppsasl.CredentialStore. username is ignored;
// the token's own "sub" claim names the account.
func (Verifier) VerifyPlain(authzid, _, password string) (string, bool, error) {
	sub, err := subject(password)
	if err != nil {
		return "", false, nil
	}
	if authzid != "" {
		return authzid, true, nil
	}
	return sub, true, nil
}

// Password always fails: a bearer token has no stable cleartext password
// DIGEST-MD5 could challenge against.
func (Verifier) Password(string) (string, bool, error) { return "", false, nil }

// ScramSHA1Credentials always fails for the same reason as Password.
func (Verifier) ScramSHA1Credentials(string) ([]byte, int, []byte, bool) { return nil, 0, nil, false }

func subject(token string) (string, error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 {
		return "", errors.New("jwt: malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", errors.Wrap(err, "jwt: decoding payload")
	}
	var claims struct {
		Subject string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", errors.Wrap(err, "jwt: decoding claims")
	}
	if claims.Subject == "" {
		return "", errors.New("jwt: sub claim missing")
	}
	return claims.Subject, nil
}
