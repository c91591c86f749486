package models

import "fmt"

// Permission is the capability level granted to an API key. Levels are
// ordered so that a higher level satisfies every lower one.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionRead
	PermissionReadWrite
)

// ParsePermission converts the stored text form to a Permission.
func ParsePermission(s string) (Permission, error) {
	switch s {
	case "read":
		return PermissionRead, nil
	case "read_write":
		return PermissionReadWrite, nil
	default:
		return PermissionNone, fmt.Errorf("unknown permission %q", s)
	}
}

func (p Permission) String() string {
	switch p {
	case PermissionRead:
		return "read"
	case PermissionReadWrite:
		return "read_write"
	default:
		return "none"
	}
}

// Satisfies reports whether p grants at least the required level.
func (p Permission) Satisfies(required Permission) bool {
	return p >= required
}

// Valid reports whether p is one of the grantable levels.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionReadWrite
}

// MarshalText renders the permission as "read" or "read_write".
func (p Permission) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid permission %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText parses "read" or "read_write".
func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
