package auth

import (
	"sort"
	"strings"
)

// Role is a permission tag from the closed role enumeration
type Role string

const (
	RoleLeitura Role = "LEITURA"
	RoleEscrita Role = "ESCRITA"
	RoleAdmin   Role = "ADMIN"
)

// AuthorityPrefix marks a role string as an authority
const AuthorityPrefix = "ROLE_"

var knownRoles = map[Role]struct{}{
	RoleLeitura: {},
	RoleEscrita: {},
	RoleAdmin:   {},
}

// ParseRole upper-cases s and checks it against the enumeration
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(s))
	_, ok := knownRoles[r]
	return r, ok
}

// Authority returns the authority string for r
func (r Role) Authority() string {
	return ToAuthority(string(r))
}

// ToAuthority prefixes role with ROLE_ unless it already carries the prefix
func ToAuthority(role string) string {
	if strings.HasPrefix(role, AuthorityPrefix) {
		return role
	}
	return AuthorityPrefix + role
}

// Authorities maps every role to its authority
func Authorities(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, ToAuthority(r))
	}
	return out
}

// RoleNames returns the sorted string form of roles
func RoleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return names
}
