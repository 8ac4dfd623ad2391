package rbac

import "fmt"

// Role is a closed enumeration of actor roles on the platform.
type Role string

const (
	RoleElder     Role = "elder"
	RoleCaregiver Role = "caregiver"
	RoleYouth     Role = "youth"
	RoleAdmin     Role = "admin"
)

// Permission is a capability scoped to a resource and verb.
type Permission string

const (
	PermReadProfile       Permission = "profile:read"
	PermWriteProfile      Permission = "profile:write"
	PermReadVitals        Permission = "vitals:read"
	PermWriteVitals       Permission = "vitals:write"
	PermReadMeds          Permission = "meds:read"
	PermWriteMeds         Permission = "meds:write"
	PermReadAppointments  Permission = "appointments:read"
	PermWriteAppointments Permission = "appointments:write"
	PermManageUsers       Permission = "users:manage"
	PermBreakGlass        Permission = "emergency:override"
)

// AllPermissions enumerates every capability the platform defines. Mappings
// referencing anything outside this set are rejected at construction.
var AllPermissions = []Permission{
	PermReadProfile, PermWriteProfile,
	PermReadVitals, PermWriteVitals,
	PermReadMeds, PermWriteMeds,
	PermReadAppointments, PermWriteAppointments,
	PermManageUsers, PermBreakGlass,
}

// DefaultRolePermissions is the platform's stock policy. Elders manage their
// own profile and read their health data; caregivers read and write health
// data; youth family members see profile and appointments; admins hold
// everything including the break-glass override.
func DefaultRolePermissions() map[Role][]Permission {
	return map[Role][]Permission{
		RoleElder: {
			PermReadProfile, PermWriteProfile,
			PermReadVitals, PermReadMeds, PermReadAppointments,
		},
		RoleCaregiver: {
			PermReadProfile,
			PermReadVitals, PermWriteVitals,
			PermReadMeds, PermWriteMeds,
			PermReadAppointments, PermWriteAppointments,
		},
		RoleYouth: {
			PermReadProfile, PermReadAppointments,
		},
		RoleAdmin: append([]Permission(nil), AllPermissions...),
	}
}

// Engine answers authorization checks from a static role to permission-set
// mapping. The mapping is read-only after construction and safe for
// unsynchronized concurrent reads.
type Engine struct {
	rolePerms map[Role]map[Permission]struct{}
}

// New builds an engine from the given mapping, rejecting permissions outside
// the closed enumeration so typos fail at startup instead of silently never
// matching.
func New(mapping map[Role][]Permission) (*Engine, error) {
	known := make(map[Permission]struct{}, len(AllPermissions))
	for _, p := range AllPermissions {
		known[p] = struct{}{}
	}

	rolePerms := make(map[Role]map[Permission]struct{}, len(mapping))
	for role, perms := range mapping {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			if _, ok := known[p]; !ok {
				return nil, fmt.Errorf("role %q references unknown permission %q", role, p)
			}
			set[p] = struct{}{}
		}
		rolePerms[role] = set
	}
	return &Engine{rolePerms: rolePerms}, nil
}

// NewDefault builds an engine from DefaultRolePermissions.
func NewDefault() *Engine {
	e, err := New(DefaultRolePermissions())
	if err != nil {
		// The default mapping only uses enumerated permissions.
		panic(err)
	}
	return e
}

// Can reports whether the role holds the permission. Unknown roles hold
// nothing: denial is the answer, never an error.
func (e *Engine) Can(role Role, perm Permission) bool {
	set, ok := e.rolePerms[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// IsOwner reports whether the actor is the owner of a record. Role checks do
// not imply self-access; callers combine both predicates per their policy.
func IsOwner(actorID, ownerID string) bool {
	return actorID != "" && actorID == ownerID
}
