package model

import "sort"

// Snapshot is the full persisted state: every user record plus every
// pending payment intent. The store rewrites it in full on each save.
type Snapshot struct {
	Users   map[string]*UserRecord     `json:"users"`
	Pending map[string]*PendingPayment `json:"pending"`
}

// NewSnapshot returns an empty snapshot with initialized maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Users:   make(map[string]*UserRecord),
		Pending: make(map[string]*PendingPayment),
	}
}

// Normalize repairs a freshly decoded snapshot: nil maps become empty
// maps and derived counters are recomputed from the key lists.
func (s *Snapshot) Normalize() {
	if s.Users == nil {
		s.Users = make(map[string]*UserRecord)
	}
	if s.Pending == nil {
		s.Pending = make(map[string]*PendingPayment)
	}
	for _, u := range s.Users {
		u.KeysUsed = len(u.Keys)
	}
}

// EnsureUser inserts a default record if the user is absent, otherwise
// refreshes only the display name. It never resets ManualLimit or Keys
// on an existing user, and an empty username never clears a known one.
func (s *Snapshot) EnsureUser(id, username string) *UserRecord {
	if u, ok := s.Users[id]; ok {
		if username != "" {
			u.Username = username
		}
		return u
	}
	u := &UserRecord{Username: username, Keys: []Key{}}
	s.Users[id] = u
	return u
}

// CredentialExists reports whether any issued key anywhere in the store
// carries the given credential value.
func (s *Snapshot) CredentialExists(credential string) bool {
	for _, u := range s.Users {
		for i := range u.Keys {
			if u.Keys[i].Credential == credential {
				return true
			}
		}
	}
	return false
}

// FindUserByUsername returns the id of the first user whose display
// name matches. Go map iteration is unordered, so ties are broken by
// ascending user id to keep lookups deterministic.
func (s *Snapshot) FindUserByUsername(username string) (string, bool) {
	ids := make([]string, 0, len(s.Users))
	for id := range s.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if s.Users[id].Username == username {
			return id, true
		}
	}
	return "", false
}
