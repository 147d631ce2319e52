// Package model defines domain entities for the application.
package model

import "time"

// UserRecord represents a registered user and the keys issued to them.
// Records are keyed in the snapshot by an opaque numeric-string user id
// assigned by the chat platform.
type UserRecord struct {
	// Username is the display name, refreshed best-effort on every
	// interaction. Admin lookup by @username scans this field.
	Username string `json:"username"`

	// ManualLimit overrides the computed entitlement when set.
	// nil means "compute automatically from memberships".
	ManualLimit *int `json:"manual_limit"`

	// KeysUsed mirrors len(Keys) for frontend convenience. It is
	// recomputed on every mutation and never trusted on load.
	KeysUsed int `json:"keys_used"`

	// Keys in issuance order. Expired keys stay in history; listing
	// classifies them but never removes them.
	Keys []Key `json:"keys"`
}

// HasManualLimit reports whether an admin override is set.
func (u *UserRecord) HasManualLimit() bool {
	return u.ManualLimit != nil
}

// AppendKey adds a newly issued key and keeps the derived counter in sync.
func (u *UserRecord) AppendKey(k Key) {
	u.Keys = append(u.Keys, k)
	u.KeysUsed = len(u.Keys)
}

// Key is a single issued access credential. Keys are never mutated
// after creation.
type Key struct {
	ID         string    `json:"id"`
	Credential string    `json:"key"`
	ValidUntil time.Time `json:"valid_until"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsExpired reports whether the key is past its validity window at the
// given instant. Expiry is informational at read time; expired keys
// still count against the issuance limit.
func (k *Key) IsExpired(now time.Time) bool {
	return now.After(k.ValidUntil)
}

// ListedKey pairs a key with its read-time expiry classification.
type ListedKey struct {
	Key
	Expired bool `json:"expired"`
}
