package model

import "time"

// Account is the identity behind an API key. Accounts are never deleted;
// revoking a key clears Active.
type Account struct {
	ID         int64
	Name       string
	KeyPrefix  string
	Active     bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// IssuedKey is returned once when a key is created. Plaintext is never stored.
type IssuedKey struct {
	Account   Account
	Plaintext string
}
