// Package storage provides in-memory reference implementations of the
// account, roster and offline-message stores the router and SASL layer
// depend on through interfaces. No example in the retrieval pack ships a
// database driver aimed at this exact shape, so these stay on
// sync.RWMutex + map rather than adopting a mismatched dependency just to
// have one.
package storage

import (
	"crypto/sha1"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// Account is one local user.
type Account struct {
	Username string
	Password string
}

// AccountManagement is an in-memory user directory, doubling as an
// xmppsasl.CredentialStore.
type AccountManagement struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewAccountManagement creates an empty account directory.
func NewAccountManagement() *AccountManagement {
	return &AccountManagement{accounts: make(map[string]Account)}
}

// AddAccount registers a user, replacing any existing account of the same
// name.
func (a *AccountManagement) AddAccount(username, password string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[username] = Account{Username: username, Password: password}
}

// VerifyPlain implements xmppsasl.CredentialStore.
func (a *AccountManagement) VerifyPlain(authzid, username, password string) (string, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acct, ok := a.accounts[username]
	if !ok || acct.Password != password {
		return "", false, nil
	}
	if authzid != "" {
		return authzid, true, nil
	}
	return username, true, nil
}

// Password implements xmppsasl.CredentialStore.
func (a *AccountManagement) Password(username string) (string, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acct, ok := a.accounts[username]
	if !ok {
		return "", false, nil
	}
	return acct.Password, true, nil
}

// ScramSHA1Credentials implements xmppsasl.CredentialStore by deriving a
// salted password on the fly from the stored cleartext password. A real
// deployment would persist the salt/iteration count/hash instead of the
// password, but that migration is out of scope for the in-memory store.
func (a *AccountManagement) ScramSHA1Credentials(username string) ([]byte, int, []byte, bool) {
	a.mu.RLock()
	acct, ok := a.accounts[username]
	a.mu.RUnlock()
	if !ok {
		return nil, 0, nil, false
	}
	salt := []byte("vysper-static-salt-" + username)
	const iterations = 4096
	return salt, iterations, pbkdf2.Key([]byte(acct.Password), salt, iterations, sha1.Size, sha1.New), true
}

// Exists reports whether username has an account.
func (a *AccountManagement) Exists(username string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.accounts[username]
	return ok
}
