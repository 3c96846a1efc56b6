package domain

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Role is the per-realm role a user holds. The string form is the only
// persisted representation; unknown strings resolve to RoleParti.
type Role string

const (
	RoleRobot Role = "robot"
	RoleAdmin Role = "admin"
	RoleCoord Role = "coord"
	RoleThera Role = "thera"
	RoleParti Role = "parti"
	RoleGuest Role = "guest"
)

// DefaultRole is assigned to every new signup.
const DefaultRole = RoleParti

// AllRoles returns the closed role set.
func AllRoles() []Role {
	return []Role{RoleRobot, RoleAdmin, RoleCoord, RoleThera, RoleParti, RoleGuest}
}

// RolesExcept returns the catalog without the excluded roles.
func RolesExcept(excluded ...Role) []Role {
	out := make([]Role, 0, len(AllRoles()))
	for _, r := range AllRoles() {
		skip := false
		for _, x := range excluded {
			if r == x {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, r)
		}
	}
	return out
}

// ParseRole maps a stored string to a Role, falling back to RoleParti.
func ParseRole(s string) Role {
	r := Role(s)
	if r.Valid() {
		return r
	}
	return RoleParti
}

// Valid reports whether r is one of the catalog roles.
func (r Role) Valid() bool {
	switch r {
	case RoleRobot, RoleAdmin, RoleCoord, RoleThera, RoleParti, RoleGuest:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// Ptr returns a pointer to r, for optional role fields.
func (r Role) Ptr() *Role { return &r }

// UnmarshalText applies the fallback when decoding JSON or env values.
func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}

// MarshalBSONValue stores the role as a plain string.
func (r Role) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(string(r))
}

// UnmarshalBSONValue reads the string form and applies the fallback.
func (r *Role) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bson.TypeNull || t == bson.TypeUndefined {
		*r = RoleParti
		return nil
	}
	if t != bson.TypeString {
		return fmt.Errorf("role: unexpected bson type %s", t)
	}
	var s string
	if err := bson.UnmarshalValue(t, data, &s); err != nil {
		return fmt.Errorf("role: %w", err)
	}
	*r = ParseRole(s)
	return nil
}
