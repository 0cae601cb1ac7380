package xmppsasl

import (
	"bytes"

	"github.com/pkg/errors"
)

// PlainMechanism implements SASL PLAIN (RFC 4616): a single client message
// carrying "authzid\x00authcid\x00password".
type PlainMechanism struct {
	store CredentialStore
	done  bool
}

// NewPlainMechanism creates a PLAIN mechanism verifying credentials
// against store.
func NewPlainMechanism(store CredentialStore) *PlainMechanism {
	return &PlainMechanism{store: store}
}

func (m *PlainMechanism) Name() string { return "PLAIN" }

func (m *PlainMechanism) Step(payload []byte) (Result, error) {
	if m.done {
		return Result{}, errAlreadyDone
	}
	m.done = true

	parts := bytes.SplitN(payload, []byte{0}, 3)
	if len(parts) != 3 {
		return Result{Done: true, Success: false, FailureText: "malformed PLAIN response", FailureKind: FailureMalformedRequest}, nil
	}
	authzid, authcid, password := string(parts[0]), string(parts[1]), string(parts[2])

	authorizedAs, ok, err := m.store.VerifyPlain(authzid, authcid, password)
	if err != nil {
		return Result{}, errors.Wrap(err, "xmppsasl: PLAIN credential lookup failed")
	}
	if !ok {
		return Result{Done: true, Success: false, FailureText: "invalid username or password"}, nil
	}
	return Result{Done: true, Success: true, Authzid: authorizedAs}, nil
}
