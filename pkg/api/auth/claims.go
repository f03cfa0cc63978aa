// Package auth provides JWT bearer authentication for the stager API.
package auth

import (
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Role determines which endpoints a token may call.
type Role string

const (
	// RoleReader may call read-only endpoints.
	RoleReader Role = "reader"
	// RoleOperator may also submit tasks and report replica progress.
	RoleOperator Role = "operator"
	// RoleAdmin may additionally remove tasks.
	RoleAdmin Role = "admin"
)

var roleRank = map[Role]int{
	RoleReader:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// AllRoles returns every known role, least privileged first.
func AllRoles() []Role {
	return []Role{RoleReader, RoleOperator, RoleAdmin}
}

// ParseRole converts a role name to a Role.
func ParseRole(name string) (Role, error) {
	r := Role(name)
	if !slices.Contains(AllRoles(), r) {
		return "", fmt.Errorf("unknown role %q", name)
	}
	return r, nil
}

// Allows reports whether r grants at least the privileges of required.
func (r Role) Allows(required Role) bool {
	return roleRank[r] > 0 && roleRank[r] >= roleRank[required]
}

// Claims represents JWT claims issued to stager clients and agents.
type Claims struct {
	jwt.RegisteredClaims

	// Role is the caller's role.
	Role Role `json:"role"`
}

// HasRole reports whether the claims grant required.
func (c *Claims) HasRole(required Role) bool {
	return c.Role.Allows(required)
}
