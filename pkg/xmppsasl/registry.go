package xmppsasl

import "github.com/pkg/errors"

// SupportedMechanisms is the list, most preferred first, advertised in
// <stream:features>.
var SupportedMechanisms = []string{"SCRAM-SHA-1", "DIGEST-MD5", "PLAIN"}

// NewMechanism builds the named mechanism, or an error if it is unknown.
func NewMechanism(name string, store CredentialStore, realm string) (Mechanism, error) {
	switch name {
	case "PLAIN":
		return NewPlainMechanism(store), nil
	case "DIGEST-MD5":
		return NewDigestMD5Mechanism(store, realm), nil
	case "SCRAM-SHA-1":
		return NewScramSHA1Mechanism(store), nil
	default:
		return nil, errors.Errorf("xmppsasl: unsupported mechanism %q", name)
	}
}
