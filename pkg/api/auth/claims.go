// Package auth provides bearer-JWT authentication for the control API.
package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT claims for control API operators.
//
// Unlike a user-management system, the control API has no notion of
// accounts: a token simply grants a named operator a set of scopes. The
// only scope enforced today is "functions:invoke", required to call
// POST /v1/plugins/{id}/functions/{name}.
type Claims struct {
	jwt.RegisteredClaims

	// Operator is the human-readable identity the token was issued to,
	// surfaced in audit logging around function invocation.
	Operator string `json:"operator"`

	// Scopes is the list of actions this token authorizes.
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope returns true if the token authorizes the given action.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// ScopeInvokeFunction is required to call the function-invocation endpoint.
const ScopeInvokeFunction = "functions:invoke"
