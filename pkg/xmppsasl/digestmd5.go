package xmppsasl

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// DigestMD5Mechanism implements SASL DIGEST-MD5 (RFC 2831): the server
// issues a challenge carrying a nonce, the client answers with a keyed
// digest, and the server proves knowledge of the password back with
// rspauth before a final empty acknowledgement closes the exchange.
type DigestMD5Mechanism struct {
	store  CredentialStore
	realm  string
	step   int
	nonce  string
	cnonce string
	digestURI     string
	ha1           [16]byte
	savedUsername string
	savedAuthzid  string
}

// NewDigestMD5Mechanism creates a DIGEST-MD5 mechanism for realm (the
// serviced domain), verifying credentials against store.
func NewDigestMD5Mechanism(store CredentialStore, realm string) *DigestMD5Mechanism {
	return &DigestMD5Mechanism{store: store, realm: realm}
}

func (m *DigestMD5Mechanism) Name() string { return "DIGEST-MD5" }

func (m *DigestMD5Mechanism) Step(payload []byte) (Result, error) {
	switch m.step {
	case 0:
		return m.stepChallenge()
	case 1:
		return m.stepVerify(payload)
	case 2:
		return m.stepFinish(payload)
	default:
		return Result{}, errAlreadyDone
	}
}

func (m *DigestMD5Mechanism) stepChallenge() (Result, error) {
	nonce, err := randomHex(16)
	if err != nil {
		return Result{}, errors.Wrap(err, "xmppsasl: generating DIGEST-MD5 nonce")
	}
	m.nonce = nonce
	m.step = 1
	challenge := fmt.Sprintf(`realm="%s",nonce="%s",qop="auth",charset=utf-8,algorithm=md5-sess`, m.realm, nonce)
	return Result{Challenge: []byte(challenge)}, nil
}

func (m *DigestMD5Mechanism) stepVerify(payload []byte) (Result, error) {
	dir := parseDigestDirectives(string(payload))

	username := dir["username"]
	if username == "" || dir["nonce"] != m.nonce {
		return Result{Done: true, FailureText: "malformed DIGEST-MD5 response", FailureKind: FailureMalformedRequest}, nil
	}
	m.cnonce = dir["cnonce"]
	m.digestURI = dir["digest-uri"]
	nc := dir["nc"]
	qop := dir["qop"]
	if qop == "" {
		qop = "auth"
	}

	password, ok, err := m.store.Password(username)
	if err != nil {
		return Result{}, errors.Wrap(err, "xmppsasl: DIGEST-MD5 credential lookup failed")
	}
	if !ok {
		return Result{Done: true, FailureText: "invalid username or password"}, nil
	}

	realm := dir["realm"]
	if realm == "" {
		realm = m.realm
	}
	m.ha1 = digestA1(username, realm, password, m.nonce, m.cnonce)
	expected := digestResponse(m.ha1, m.nonce, nc, m.cnonce, qop, "AUTHENTICATE", m.digestURI)

	if !hmacEqual(expected, dir["response"]) {
		return Result{Done: true, FailureText: "invalid username or password"}, nil
	}

	rspauth := digestResponse(m.ha1, m.nonce, nc, m.cnonce, qop, "", m.digestURI)
	m.step = 2
	m.savedAuthzid, m.savedUsername = dir["authzid"], username
	return Result{Challenge: []byte("rspauth=" + rspauth)}, nil
}

func (m *DigestMD5Mechanism) stepFinish(payload []byte) (Result, error) {
	m.step = 3
	authorizedAs := m.savedUsername
	if m.savedAuthzid != "" {
		authorizedAs = m.savedAuthzid
	}
	return Result{Done: true, Success: true, Authzid: authorizedAs}, nil
}

func digestA1(username, realm, password, nonce, cnonce string) [16]byte {
	h := md5.New()
	h.Write([]byte(username + ":" + realm + ":" + password))
	a1part1 := h.Sum(nil)

	h2 := md5.New()
	h2.Write(a1part1)
	h2.Write([]byte(":" + nonce + ":" + cnonce))
	var out [16]byte
	copy(out[:], h2.Sum(nil))
	return out
}

func digestResponse(ha1 [16]byte, nonce, nc, cnonce, qop, method, digestURI string) string {
	a2 := method + ":" + digestURI
	if qop == "auth-int" || qop == "auth-conf" {
		a2 += ":00000000000000000000000000000000"
	}
	ha2 := md5.Sum([]byte(a2))

	kd := hex.EncodeToString(ha1[:]) + ":" + nonce + ":" + nc + ":" + cnonce + ":" + qop + ":" + hex.EncodeToString(ha2[:])
	sum := md5.Sum([]byte(kd))
	return hex.EncodeToString(sum[:])
}

func hmacEqual(expectedHex, got string) bool {
	return len(expectedHex) == len(got) && expectedHex == got
}

func parseDigestDirectives(s string) map[string]string {
	out := map[string]string{}
	for _, part := range splitDirectives(s) {
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		val = strings.Trim(val, `"`)
		out[key] = val
	}
	return out
}

// splitDirectives splits a comma-separated directive list, respecting
// double-quoted values that may themselves contain commas.
func splitDirectives(s string) []string {
	var out []string
	inQuotes := false
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
