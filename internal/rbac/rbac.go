// Package rbac decides what a session role may do with site content.
package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Can reports whether role may perform action. Viewers only read; the
// admin edits everything. Unknown roles may do nothing.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps a role claim from a token to a known role, defaulting to
// viewer.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
