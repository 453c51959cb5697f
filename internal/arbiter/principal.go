package arbiter

import "fmt"

// Role is the access role carried by a principal.
type Role string

const (
	RoleUser      Role = "User"
	RoleAnnotator Role = "Annotator"
	RoleNative    Role = "Native"
	RoleAdmin     Role = "Admin"
	// RoleNativeAdmin is the trusted reviewer: feedback it submits is
	// validated immediately.
	RoleNativeAdmin Role = "NativeAdmin"
)

var knownRoles = map[Role]bool{
	RoleUser:        true,
	RoleAnnotator:   true,
	RoleNative:      true,
	RoleAdmin:       true,
	RoleNativeAdmin: true,
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !knownRoles[r] {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Principal is the authenticated caller. A nil *Principal is anonymous.
type Principal struct {
	ID   string
	Role Role
}

// Authenticated reports whether p identifies a user.
func (p *Principal) Authenticated() bool {
	return p != nil && p.ID != ""
}

// UserID returns the principal's ID, or "" when anonymous.
func (p *Principal) UserID() string {
	if p == nil {
		return ""
	}
	return p.ID
}

// CanSelfValidate reports whether feedback from p skips the review queue.
func (p *Principal) CanSelfValidate() bool {
	return p.Authenticated() && p.Role == RoleNativeAdmin
}

// CanReview reports whether p may accept or reject pending records.
func (p *Principal) CanReview() bool {
	return p.Authenticated() && (p.Role == RoleNativeAdmin || p.Role == RoleAdmin)
}
