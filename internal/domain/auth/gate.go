package auth

import "sort"

// Set is an actor's resolved capability set.
type Set map[Permission]struct{}

func NewSet(perms ...Permission) Set {
	out := make(Set, len(perms))
	for _, p := range perms {
		out[p] = struct{}{}
	}
	return out
}

// SetForRole resolves the built-in role table. Unknown roles get an empty set.
func SetForRole(role string) Set {
	return NewSet(RolePermissions[role]...)
}

func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

func (s Set) HasAny(perms ...Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

func (s Set) HasAll(perms ...Permission) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

func (s Set) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID      string
	EmployeeID  string
	Role        string
	Permissions Set
}

func (a Actor) HasAny(perms ...Permission) bool {
	return a.Permissions.HasAny(perms...)
}

func (a Actor) HasAll(perms ...Permission) bool {
	return a.Permissions.HasAll(perms...)
}

// Owns reports whether the actor is the employee that owns a record.
func (a Actor) Owns(employeeID string) bool {
	return a.EmployeeID != "" && a.EmployeeID == employeeID
}
