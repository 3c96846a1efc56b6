// Package token signs, verifies and extracts the realm-scoped access tokens.
//
// Tokens are HS256 JWTs. The global realm is verified with the process
// secret; every intervention realm is verified with its project's secret.
package token

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
)

const (
	GlobalNamespace = "global"
	GlobalPartition = "main"

	ScopeUser  = "user"
	TokenScope = "user_scope"
)

// Claims is the signed payload. Only iat and exp of the registered claims
// are ever set.
type Claims struct {
	NS   string       `json:"ns"`
	DB   string       `json:"db"`
	SC   string       `json:"sc"`
	TK   string       `json:"tk"`
	ID   string       `json:"id"`
	Role *domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// NewClaims builds a claim set for subject id in realm ns/db with the
// fixed user scope identifiers.
func NewClaims(ns, db, id string, role *domain.Role) Claims {
	return Claims{
		NS:   ns,
		DB:   db,
		SC:   ScopeUser,
		TK:   TokenScope,
		ID:   id,
		Role: role,
	}
}

// IsGlobal reports whether the claims belong to the global realm.
func (c Claims) IsGlobal() bool {
	return c.NS == GlobalNamespace && c.DB == GlobalPartition
}

// RoleName returns the role string, or "" when the claims carry none.
func (c Claims) RoleName() string {
	if c.Role == nil {
		return ""
	}
	return c.Role.String()
}
