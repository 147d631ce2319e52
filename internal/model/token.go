package model

import "slices"

// Scope constants for service-token authorization.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeRead, ScopeWrite, ScopeAdmin}

// ServiceToken is a configured API credential for a frontend
// collaborator. Only the argon2id hash is held in memory; the plaintext
// token lives with the collaborator.
type ServiceToken struct {
	Name   string
	Scopes []string
	Hash   string
}

// HasScope checks if the token carries a specific scope.
// Admin scope implies all other scopes.
func (t *ServiceToken) HasScope(scope string) bool {
	if slices.Contains(t.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(t.Scopes, scope)
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	TokenName string
	Scopes    []string
}

// HasScope checks if the auth context has a specific scope.
func (a *AuthContext) HasScope(scope string) bool {
	if slices.Contains(a.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(a.Scopes, scope)
}
