package authz

import (
	"sort"
	"strings"
)

// Role is a backend role name.
type Role string

// Known roles. Names the backend sends that are not listed here are kept
// as-is and satisfy only requirements that name them.
const (
	RoleAdmin     Role = "ADMIN"
	RoleOrganizer Role = "ORGANIZER"
	RoleUser      Role = "USER"
)

// KnownRoles lists the roles this client understands.
var KnownRoles = []Role{RoleAdmin, RoleOrganizer, RoleUser}

// ParseRole normalizes a role name. The second result reports whether the
// role is one of KnownRoles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range KnownRoles {
		if r == known {
			return r, true
		}
	}
	return r, false
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// RoleSet is an unordered set of roles. Membership is exact: no role
// implies another.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether r is in the set.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Roles returns the members in sorted order.
func (s RoleSet) Roles() []Role {
	roles := make([]Role, 0, len(s))
	for r := range s {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// String renders the set as "ADMIN|ORGANIZER".
func (s RoleSet) String() string {
	names := make([]string, 0, len(s))
	for _, r := range s.Roles() {
		names = append(names, string(r))
	}
	return strings.Join(names, "|")
}
