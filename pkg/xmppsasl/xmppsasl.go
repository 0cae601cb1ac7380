// Package xmppsasl implements the server side of the SASL mechanisms
// advertised by the session negotiator: PLAIN (RFC 4616), DIGEST-MD5
// (RFC 2831) and SCRAM-SHA-1 (RFC 5802).
//
// Each mechanism is driven the same way the teacher drove PLAIN in
// server_sasl.go: the session feeds it the base64-decoded payload from each
// <auth/>/<response/> element and gets back either a challenge to send, a
// terminal result, or an error - no panics escape a Step call.
package xmppsasl

import "github.com/pkg/errors"

// FailureKind classifies why a mechanism failed, so the session can map it
// to the matching SASL failure condition (RFC 6120 §6.5) instead of
// collapsing every failure into not-authorized.
type FailureKind int

const (
	// FailureNotAuthorized covers rejected credentials, the default kind.
	FailureNotAuthorized FailureKind = iota
	// FailureMalformedRequest covers a payload the mechanism couldn't parse.
	FailureMalformedRequest
	// FailureInvalidAuthzid covers a syntactically valid but unusable
	// authorization identity.
	FailureInvalidAuthzid
	// FailureCredentialsExpired covers a credential store report that the
	// account's credentials are expired.
	FailureCredentialsExpired
	// FailureTemporaryAuthFailure covers a transient error unrelated to the
	// credentials themselves (e.g. a lookup that errored).
	FailureTemporaryAuthFailure
)

// Result is what a mechanism produces after a Step.
type Result struct {
	// Done is true once the exchange either succeeded or failed.
	Done bool
	// Success is only meaningful when Done is true.
	Success bool
	// Challenge is the payload to send to the peer as <challenge/>
	// (non-terminal) or as additional data on <success/> (terminal,
	// SCRAM-SHA-1 only).
	Challenge []byte
	// Authzid is the resulting authorization identity (localpart) once
	// Success is true.
	Authzid string
	// FailureText is set when Done && !Success, and describes why.
	FailureText string
	// FailureKind classifies FailureText when Done && !Success.
	FailureKind FailureKind
}

// CredentialStore resolves credentials during SASL negotiation. PLAIN needs
// only VerifyPlain; DIGEST-MD5 and SCRAM-SHA-1 need the raw or salted
// password material to compute a challenge response without ever learning
// the cleartext password from the wire.
type CredentialStore interface {
	// VerifyPlain checks a username/password pair directly, as sent by
	// SASL PLAIN. authzid may be empty.
	VerifyPlain(authzid, username, password string) (authorizedAs string, ok bool, err error)
	// Password returns the cleartext password for username, used by
	// DIGEST-MD5 and to derive a SCRAM-SHA-1 salted password when no
	// precomputed one is on file.
	Password(username string) (password string, ok bool, err error)
	// ScramSHA1Credentials returns a precomputed SCRAM-SHA-1
	// (RFC 5802 §2.2) salt/iteration count/salted password for username,
	// when the store keeps one instead of a cleartext password.
	ScramSHA1Credentials(username string) (salt []byte, iterations int, saltedPassword []byte, ok bool)
}

// Mechanism drives one SASL exchange to completion.
type Mechanism interface {
	// Name is the mechanism's IANA-registered name, as advertised in
	// <mechanism/>.
	Name() string
	// Step consumes the peer's next payload (empty for PLAIN's initial
	// response when it was omitted) and returns the next Result.
	Step(payload []byte) (Result, error)
}

var errAlreadyDone = errors.New("xmppsasl: Step called after the exchange finished")
